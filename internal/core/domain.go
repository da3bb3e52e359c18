package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income  TxType = "income"
	Expense TxType = "expense"
)

// DateLayout is the calendar date format used on the wire and in exports.
const DateLayout = "2006-01-02"

type (
	TxType string

	Money struct {
		Cents int64
	}

	// Transaction is a single dated income or expense entry. The ID is a
	// millisecond-timestamp integer assigned at creation and unique within
	// a period. Description defaults to Category when absent.
	Transaction struct {
		ID          int64  `json:"id"`
		Type        TxType `json:"type"`
		Category    string `json:"category"`
		Description string `json:"description,omitempty"`
		Amount      Money  `json:"amount"`
		Date        string `json:"date"`
		Recurring   bool   `json:"recurring,omitempty"`
	}
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidName       = errors.New("invalid period name")
	ErrNoActivePeriod    = errors.New("no active period")
	ErrDuplicateName     = errors.New("duplicate period name")
	ErrNotFound          = errors.New("not found")
	ErrImportParse       = errors.New("import parse error")
	ErrRemoteUnavailable = errors.New("remote unavailable")
)

// ParseTxType validates and normalizes a transaction type string.
func ParseTxType(s string) (TxType, error) {
	switch TxType(strings.ToLower(strings.TrimSpace(s))) {
	case Income:
		return Income, nil
	case Expense:
		return Expense, nil
	default:
		return "", fmt.Errorf("unknown transaction type %q", s)
	}
}

func (t TxType) Valid() bool {
	return t == Income || t == Expense
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (tx Transaction) Validate() error {
	if !tx.Type.Valid() {
		return fmt.Errorf("unknown transaction type %q", tx.Type)
	}
	if strings.TrimSpace(tx.Category) == "" {
		return errors.New("empty category")
	}
	if err := tx.Amount.Validate(); err != nil {
		return err
	}
	if tx.Date != "" {
		if _, err := time.Parse(DateLayout, tx.Date); err != nil {
			return fmt.Errorf("invalid date %q", tx.Date)
		}
	}
	return nil
}

// Normalized returns the canonical shape: description falls back to the
// category. Older exports omitted the description field entirely.
func (tx Transaction) Normalized() Transaction {
	if strings.TrimSpace(tx.Description) == "" {
		tx.Description = tx.Category
	}
	return tx
}
