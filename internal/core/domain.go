package core

import (
	"errors"
	"strings"
)

const (
	Income  TxType = "Income"
	Expense TxType = "Expense"

	Saving      GoalType = "Saving"
	ExpenseGoal GoalType = "Expense"
)

type (
	// TxType is the direction of a transaction.
	TxType string

	// GoalType distinguishes savings targets from spending caps.
	GoalType string

	Transaction struct {
		ID          string    `json:"id"`
		Category    string    `json:"category"`
		Type        TxType    `json:"type"`
		Amount      Amount    `json:"amount"`
		Date        DateInput `json:"date"`
		Description string    `json:"description,omitempty"`
		CreatedAt   string    `json:"createdAt,omitempty"` // RFC 3339
	}

	Goal struct {
		ID        string   `json:"id"`
		Name      string   `json:"name"`
		Type      GoalType `json:"type"`
		Amount    Amount   `json:"amount"`
		Target    Amount   `json:"target"`
		CreatedAt string   `json:"createdAt,omitempty"`
	}

	// Profile is the per-user document holding the opening balance.
	Profile struct {
		UserID      string  `json:"userId"`
		BaseBalance float64 `json:"baseBalance"`
	}

	// Account is a stored identity for the local auth provider.
	Account struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		Email         string `json:"email"`
		PhotoURL      string `json:"photoURL,omitempty"`
		PasswordHash  string `json:"-"`
		EmailVerified bool   `json:"emailVerified"`
		Provider      string `json:"provider"`
		CreatedAt     string `json:"createdAt,omitempty"`
	}
)

// DemoUserID owns the data of unauthenticated sessions.
const DemoUserID = "demo-user"

var (
	ErrInvalidType    = errors.New("invalid type")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrEmptyName      = errors.New("empty name")
	ErrInvalidTarget  = errors.New("invalid target")
	ErrEmptyEmail     = errors.New("empty email")
	ErrEmptyAccountID = errors.New("empty account id")
)

// Valid reports whether t is Income or Expense.
func (t TxType) Valid() bool {
	return t == Income || t == Expense
}

// ParseTxType matches case-insensitively. Unknown values are returned as-is.
func ParseTxType(s string) TxType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income":
		return Income
	case "expense":
		return Expense
	}
	return TxType(s)
}

func (t GoalType) Valid() bool {
	return t == Saving || t == ExpenseGoal
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if t.Amount < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if !g.Type.Valid() {
		return ErrInvalidType
	}
	if g.Amount < 0 {
		return ErrInvalidAmount
	}
	if g.Target < 0 {
		return ErrInvalidTarget
	}
	return nil
}

func (a Account) Validate() error {
	if a.ID == "" {
		return ErrEmptyAccountID
	}
	if strings.TrimSpace(a.Email) == "" {
		return ErrEmptyEmail
	}
	return nil
}

// NormalizeEmail is the lookup form of an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
