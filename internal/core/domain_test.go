package core

import (
	"errors"
	"testing"
)

func TestParseTxType(t *testing.T) {
	cases := []struct {
		in  string
		out TxType
		ok  bool
	}{
		{"income", Income, true},
		{"expense", Expense, true},
		{"Income", Income, true},
		{" EXPENSE ", Expense, true},
		{"transfer", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseTxType(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %q, got %q (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	valid := Transaction{
		Type:     Expense,
		Category: "Food",
		Amount:   Money{Cents: 1250},
		Date:     "2026-09-01",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid transaction rejected: %v", err)
	}

	t.Run("zero amount", func(t *testing.T) {
		tx := valid
		tx.Amount = Money{}
		if err := tx.Validate(); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("expected ErrInvalidAmount, got %v", err)
		}
	})

	t.Run("negative amount", func(t *testing.T) {
		tx := valid
		tx.Amount = Money{Cents: -100}
		if err := tx.Validate(); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("expected ErrInvalidAmount, got %v", err)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		tx := valid
		tx.Type = "transfer"
		if err := tx.Validate(); err == nil {
			t.Fatal("expected error for unknown type")
		}
	})

	t.Run("empty category", func(t *testing.T) {
		tx := valid
		tx.Category = "  "
		if err := tx.Validate(); err == nil {
			t.Fatal("expected error for empty category")
		}
	})

	t.Run("bad date", func(t *testing.T) {
		tx := valid
		tx.Date = "01/09/2026"
		if err := tx.Validate(); err == nil {
			t.Fatal("expected error for bad date")
		}
	})
}

func TestTransactionNormalized(t *testing.T) {
	tx := Transaction{Type: Income, Category: "Salary", Amount: Money{Cents: 100}}
	if got := tx.Normalized().Description; got != "Salary" {
		t.Fatalf("expected description to default to category, got %q", got)
	}

	tx.Description = "Bonus"
	if got := tx.Normalized().Description; got != "Bonus" {
		t.Fatalf("expected explicit description kept, got %q", got)
	}
}
