package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	Income  FlowType = "income"
	Expense FlowType = "expense"
)

const (
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
	Yearly  Period = "yearly"
)

type (
	// FlowType tells income and expense records apart.
	FlowType string

	// Period is the recurrence window of a budget or a statistic.
	Period string

	// Entity is anything cached inside a collection and patched by identity.
	Entity interface {
		EntityID() int64
	}

	Transaction struct {
		ID           int64           `json:"id"`
		UserID       int64           `json:"userId"`
		Type         FlowType        `json:"type"`
		Amount       decimal.Decimal `json:"amount"`
		CategoryID   int64           `json:"categoryId"`
		CategoryName string          `json:"categoryName,omitempty"`
		Description  string          `json:"description,omitempty"`
		Date         Date            `json:"transactionDate"`
	}

	Budget struct {
		ID           int64           `json:"id"`
		UserID       int64           `json:"userId"`
		CategoryID   int64           `json:"categoryId"`
		CategoryName string          `json:"categoryName,omitempty"`
		Amount       decimal.Decimal `json:"amount"`
		Period       Period          `json:"period"`
		StartDate    Date            `json:"startDate"`
		EndDate      Date            `json:"endDate"`
	}

	Category struct {
		ID        int64    `json:"id"`
		UserID    int64    `json:"userId"`
		Name      string   `json:"name"`
		Type      FlowType `json:"type"`
		Icon      string   `json:"icon,omitempty"`
		SortOrder int      `json:"sortOrder"`
	}

	Notification struct {
		ID        int64  `json:"id"`
		UserID    int64  `json:"userId"`
		Title     string `json:"title"`
		Content   string `json:"content"`
		Type      string `json:"type"`
		IsRead    bool   `json:"isRead"`
		CreatedAt Date   `json:"createTime"`
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidType     = errors.New("invalid type, must be income or expense")
	ErrInvalidPeriod   = errors.New("invalid period")
	ErrEmptyName       = errors.New("empty name")
	ErrMissingCategory = errors.New("missing category")
	ErrMissingDate     = errors.New("missing date")
)

func (t Transaction) EntityID() int64  { return t.ID }
func (b Budget) EntityID() int64       { return b.ID }
func (c Category) EntityID() int64     { return c.ID }
func (n Notification) EntityID() int64 { return n.ID }

func (f FlowType) Validate() error {
	switch f {
	case Income, Expense:
		return nil
	default:
		return ErrInvalidType
	}
}

func (p Period) Validate() error {
	switch p {
	case Weekly, Monthly, Yearly:
		return nil
	default:
		return ErrInvalidPeriod
	}
}

func (t Transaction) Validate() error {
	if err := t.Type.Validate(); err != nil {
		return err
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if t.CategoryID <= 0 {
		return ErrMissingCategory
	}
	if t.Date.IsZero() {
		return ErrMissingDate
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}

func (b Budget) Validate() error {
	if !b.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if b.CategoryID <= 0 {
		return ErrMissingCategory
	}
	if err := b.Period.Validate(); err != nil {
		return err
	}
	if !b.StartDate.IsZero() && !b.EndDate.IsZero() && b.EndDate.Before(b.StartDate.Time) {
		return errors.New("end date must be after start date")
	}
	return nil
}

// Covers reports whether d falls inside the budget window. Open ends match anything.
func (b Budget) Covers(d Date) bool {
	if !b.StartDate.IsZero() && d.Before(b.StartDate.Time) {
		return false
	}
	if !b.EndDate.IsZero() && d.After(b.EndDate.Time) {
		return false
	}
	return true
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return c.Type.Validate()
}
