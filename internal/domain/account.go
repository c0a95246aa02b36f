package domain

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// AccountType is the kind of money account the application manages.
type AccountType string

const (
	AccountTypeBank       AccountType = "Bank Account"
	AccountTypeCreditCard AccountType = "Credit Card"
	AccountTypeCash       AccountType = "Cash"
	AccountTypeInvestment AccountType = "Investment"
)

// AccountTypes lists every valid account type in display order.
var AccountTypes = []AccountType{AccountTypeBank, AccountTypeCreditCard, AccountTypeCash, AccountTypeInvestment}

// SupportedCurrencies lists the currencies the application accepts.
var SupportedCurrencies = []string{"USD", "EUR", "GBP", "JPY", "CNY"}

// MaxAccountNameLength is the longest account name the application accepts.
const MaxAccountNameLength = 100

// AccountForm is the raw input for creating an account, as typed into the
// form or read from a scenario table.
type AccountForm struct {
	Name           string `json:"name"`
	Type           string `json:"type"`
	InitialBalance string `json:"initialBalance"`
	Currency       string `json:"currency"`
	Description    string `json:"description,omitempty"`
}

// AccountFormFromTable maps a two-column scenario table ("Account Name",
// "Account Type", "Initial Balance", "Currency", "Description") onto a form.
// Keys are matched case-insensitively.
func AccountFormFromTable(rows map[string]string) AccountForm {
	var f AccountForm
	for k, v := range rows {
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "account name", "name", "accountname":
			f.Name = v
		case "account type", "type", "accounttype":
			f.Type = v
		case "initial balance", "balance", "initialbalance":
			f.InitialBalance = v
		case "currency":
			f.Currency = v
		case "description":
			f.Description = v
		}
	}
	return f
}

// Validate returns the structural problems with the form: missing required
// fields and a balance that is not a number. An empty slice means valid.
func (f AccountForm) Validate() []string {
	var problems []string
	if strings.TrimSpace(f.Name) == "" {
		problems = append(problems, "Account name is required")
	}
	if strings.TrimSpace(f.Type) == "" {
		problems = append(problems, "Account type is required")
	}
	if strings.TrimSpace(f.InitialBalance) == "" {
		problems = append(problems, "Initial balance is required")
	} else if _, err := f.Balance(); err != nil {
		problems = append(problems, "Initial balance must be a number")
	}
	if strings.TrimSpace(f.Currency) == "" {
		problems = append(problems, "Currency is required")
	}
	return problems
}

// Balance parses the initial balance. Thousands separators are tolerated.
func (f AccountForm) Balance() (float64, error) {
	raw := strings.ReplaceAll(strings.TrimSpace(f.InitialBalance), ",", "")
	return strconv.ParseFloat(raw, 64)
}

// Account is a validated account, and the wire shape of the accounts API.
type Account struct {
	ID             string      `json:"id,omitempty"`
	Name           string      `json:"name"`
	Type           AccountType `json:"type"`
	InitialBalance float64     `json:"balance"`
	Currency       string      `json:"currency"`
	Description    string      `json:"description,omitempty"`
}

// NewAccount enforces the account business rules on a structurally valid form.
func NewAccount(f AccountForm) (Account, error) {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return Account{}, &RuleError{Message: "Account name must be a non-empty string"}
	}
	if len([]rune(name)) > MaxAccountNameLength {
		return Account{}, &RuleError{Message: fmt.Sprintf("Account name must not exceed %d characters", MaxAccountNameLength)}
	}

	accountType := AccountType(f.Type)
	if !slices.Contains(AccountTypes, accountType) {
		return Account{}, &RuleError{Message: fmt.Sprintf("Invalid account type: %s", f.Type)}
	}

	balance, err := f.Balance()
	if err != nil || math.IsNaN(balance) || math.IsInf(balance, 0) || balance < 0 {
		return Account{}, &RuleError{Message: "Initial balance must be a non-negative number"}
	}

	if !slices.Contains(SupportedCurrencies, f.Currency) {
		return Account{}, &RuleError{Message: fmt.Sprintf("Unsupported currency: %s", f.Currency)}
	}

	return Account{
		Name:           name,
		Type:           accountType,
		InitialBalance: balance,
		Currency:       f.Currency,
		Description:    f.Description,
	}, nil
}

// FormattedBalance renders the balance the way the account list shows it.
func (a Account) FormattedBalance() string {
	return strconv.FormatFloat(a.InitialBalance, 'f', 2, 64)
}
