// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts typed by users
// into decimal values with two fractional digits.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-typed decimal string to a positive amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding to two fractional digits. Returns ErrInvalidAmount for invalid
// formats, negative values, or zero amounts.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,34")  -> 12.34, nil
//	ParseAmount("12.345") -> 12.35, nil
//	ParseAmount("12.344") -> 12.34, nil
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// Sum adds up the amounts of the given transactions of one flow type.
func Sum(txs []Transaction, flow FlowType) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		if t.Type == flow {
			total = total.Add(t.Amount)
		}
	}
	return total
}
