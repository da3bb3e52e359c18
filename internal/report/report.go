// Package report derives read-only views from transaction lists: overall
// totals, per-category totals and filtered listings. Functions here never
// mutate their input; amounts stay in full-precision cents and are rounded
// only when a display string is produced.
package report

import (
	"strconv"
	"strings"

	"monthly/internal/core"
)

// Totals is the headline summary of a transaction list.
type Totals struct {
	Income   core.Money
	Expenses core.Money
	Balance  core.Money
	// SavingsRate is the balance as a percentage of income, 0 when there
	// is no income.
	SavingsRate float64
}

// TotalsDisplay carries presentation strings: two decimal places for
// amounts, one for the rate.
type TotalsDisplay struct {
	Income      string `json:"income"`
	Expenses    string `json:"expenses"`
	Balance     string `json:"balance"`
	SavingsRate string `json:"savingsRate"`
}

// Sum computes income, expenses, balance and savings rate over the list.
func Sum(txs []core.Transaction) Totals {
	var t Totals
	for _, tx := range txs {
		switch tx.Type {
		case core.Income:
			t.Income = t.Income.Add(tx.Amount)
		case core.Expense:
			t.Expenses = t.Expenses.Add(tx.Amount)
		}
	}
	t.Balance = t.Income.Sub(t.Expenses)
	if t.Income.Cents > 0 {
		t.SavingsRate = float64(t.Balance.Cents) / float64(t.Income.Cents) * 100
	}
	return t
}

// Display renders the totals for presentation.
func (t Totals) Display() TotalsDisplay {
	return TotalsDisplay{
		Income:      t.Income.Format(),
		Expenses:    t.Expenses.Format(),
		Balance:     t.Balance.Format(),
		SavingsRate: strconv.FormatFloat(t.SavingsRate, 'f', 1, 64),
	}
}

// Key identifies a category/type aggregation bucket.
type Key struct {
	Category string
	Type     core.TxType
}

// CategoryTotals maps category/type pairs to summed amounts.
type CategoryTotals map[Key]core.Money

// ByCategory sums amounts per category/type pair.
func ByCategory(txs []core.Transaction) CategoryTotals {
	totals := make(CategoryTotals)
	for _, tx := range txs {
		k := Key{Category: tx.Category, Type: tx.Type}
		totals[k] = totals[k].Add(tx.Amount)
	}
	return totals
}

// Amount returns the total for a category/type pair, zero when the pair
// has no transactions. Known pairs therefore always report a value
// instead of being omitted.
func (ct CategoryTotals) Amount(category string, typ core.TxType) core.Money {
	return ct[Key{Category: category, Type: typ}]
}

// CategoryFilterAll is the sentinel that disables category filtering.
const CategoryFilterAll = "all"

// Filter returns the transactions matching the search term and category
// filter, preserving relative order. A transaction matches when the
// category filter is "all" or equals its category, and the search term is
// empty or a case-insensitive substring of its category or description.
func Filter(txs []core.Transaction, searchTerm, categoryFilter string) []core.Transaction {
	search := strings.ToLower(strings.TrimSpace(searchTerm))
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if categoryFilter != CategoryFilterAll && categoryFilter != "" && tx.Category != categoryFilter {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(tx.Category), search) &&
			!strings.Contains(strings.ToLower(tx.Description), search) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// Categories returns the distinct categories present, in first-seen order.
func Categories(txs []core.Transaction) []string {
	seen := make(map[string]struct{}, len(txs))
	out := make([]string, 0, len(txs))
	for _, tx := range txs {
		if _, ok := seen[tx.Category]; ok {
			continue
		}
		seen[tx.Category] = struct{}{}
		out = append(out, tx.Category)
	}
	return out
}
