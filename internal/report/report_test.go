package report

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"monthly/internal/core"
)

func tx(id int64, typ core.TxType, category, description string, cents int64) core.Transaction {
	return core.Transaction{
		ID:          id,
		Type:        typ,
		Category:    category,
		Description: description,
		Amount:      core.Money{Cents: cents},
		Date:        "2026-09-01",
	}
}

func TestSumEmpty(t *testing.T) {
	totals := Sum(nil)
	if totals.Income.Cents != 0 || totals.Expenses.Cents != 0 || totals.Balance.Cents != 0 || totals.SavingsRate != 0 {
		t.Fatalf("expected all-zero totals, got %+v", totals)
	}
}

func TestSum(t *testing.T) {
	totals := Sum([]core.Transaction{
		tx(1, core.Income, "Salary", "", 100000),
		tx(2, core.Expense, "Rent", "", 20000),
		tx(3, core.Expense, "Food", "", 10000),
	})
	if totals.Income.Cents != 100000 {
		t.Fatalf("income expected 100000, got %d", totals.Income.Cents)
	}
	if totals.Expenses.Cents != 30000 {
		t.Fatalf("expenses expected 30000, got %d", totals.Expenses.Cents)
	}
	if totals.Balance.Cents != 70000 {
		t.Fatalf("balance expected 70000, got %d", totals.Balance.Cents)
	}
	if totals.SavingsRate != 70.0 {
		t.Fatalf("savings rate expected 70.0, got %v", totals.SavingsRate)
	}
}

func TestSumNoIncome(t *testing.T) {
	totals := Sum([]core.Transaction{tx(1, core.Expense, "Rent", "", 20000)})
	if totals.SavingsRate != 0 {
		t.Fatalf("savings rate expected 0 with no income, got %v", totals.SavingsRate)
	}
	if totals.Balance.Cents != -20000 {
		t.Fatalf("balance expected -20000, got %d", totals.Balance.Cents)
	}
}

func TestTotalsDisplay(t *testing.T) {
	got := Sum([]core.Transaction{
		tx(1, core.Income, "Salary", "", 100000),
		tx(2, core.Expense, "Rent", "", 30000),
	}).Display()
	want := TotalsDisplay{Income: "1000.00", Expenses: "300.00", Balance: "700.00", SavingsRate: "70.0"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("display mismatch:\n%s", diff)
	}
}

func TestByCategory(t *testing.T) {
	totals := ByCategory([]core.Transaction{
		tx(1, core.Income, "Food", "refund", 5000),
		tx(2, core.Expense, "Food", "groceries", 2000),
		tx(3, core.Expense, "Food", "lunch", 1000),
	})

	if got := totals.Amount("Food", core.Income).Cents; got != 5000 {
		t.Fatalf("Food income expected 5000, got %d", got)
	}
	if got := totals.Amount("Food", core.Expense).Cents; got != 3000 {
		t.Fatalf("Food expense expected 3000, got %d", got)
	}
	// A pair with no transactions reports zero, not absence.
	if got := totals.Amount("Rent", core.Expense).Cents; got != 0 {
		t.Fatalf("Rent expense expected 0, got %d", got)
	}
}

func TestFilter(t *testing.T) {
	txs := []core.Transaction{
		tx(1, core.Expense, "Food", "Lunch at work", 1000),
		tx(2, core.Expense, "Rent", "September rent", 20000),
		tx(3, core.Income, "Salary", "Monthly salary", 100000),
	}

	cases := []struct {
		name     string
		search   string
		category string
		wantIDs  []int64
	}{
		{"no filters", "", "", []int64{1, 2, 3}},
		{"category all", "", "all", []int64{1, 2, 3}},
		{"category exact", "", "Food", []int64{1}},
		{"search matches description", "lunch", "", []int64{1}},
		{"search matches category", "sal", "", []int64{3}},
		{"search is case-insensitive", "SEPTEMBER", "", []int64{2}},
		{"search and category combine", "rent", "Rent", []int64{2}},
		{"no matches", "pizza", "Rent", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Filter(txs, tc.search, tc.category)
			var ids []int64
			for _, tx := range got {
				ids = append(ids, tx.ID)
			}
			if diff := cmp.Diff(tc.wantIDs, ids); diff != "" {
				t.Fatalf("filter mismatch:\n%s", diff)
			}
		})
	}

	// Filter must not alias the input slice.
	out := Filter(txs, "", "")
	out[0].Category = "changed"
	if txs[0].Category != "Food" {
		t.Fatal("filter aliased the input slice")
	}
}

func TestCategories(t *testing.T) {
	got := Categories([]core.Transaction{
		tx(1, core.Expense, "Food", "", 100),
		tx(2, core.Expense, "Rent", "", 100),
		tx(3, core.Income, "Food", "", 100),
	})
	want := []string{"Food", "Rent"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("categories mismatch:\n%s", diff)
	}
}
