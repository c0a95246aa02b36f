// Package domain holds the Money Keeper business rules the harness checks
// inputs against before driving the application.
package domain

import "strings"

// RuleError is a business-rule violation detected locally.
type RuleError struct {
	Message string
	Details []string
}

func (e *RuleError) Error() string {
	if len(e.Details) > 1 {
		return e.Message + " (" + strings.Join(e.Details[1:], "; ") + ")"
	}
	return e.Message
}
