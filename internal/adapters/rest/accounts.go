package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"mke2e/internal/domain"
	"mke2e/internal/ports"
)

const accountsPath = "/accounts"

type accountWire struct {
	ID          flexID             `json:"id,omitempty"`
	Name        string             `json:"name"`
	Type        domain.AccountType `json:"type"`
	Balance     float64            `json:"balance"`
	Currency    string             `json:"currency"`
	Description string             `json:"description,omitempty"`
}

func (w accountWire) toDomain() domain.Account {
	return domain.Account{
		ID:             string(w.ID),
		Name:           w.Name,
		Type:           w.Type,
		InitialBalance: w.Balance,
		Currency:       w.Currency,
		Description:    w.Description,
	}
}

func accountToWire(a domain.Account) accountWire {
	return accountWire{
		ID:          flexID(a.ID),
		Name:        a.Name,
		Type:        a.Type,
		Balance:     a.InitialBalance,
		Currency:    a.Currency,
		Description: a.Description,
	}
}

// AccountClient implements ports.AccountAPI.
type AccountClient struct {
	c *Client
}

var _ ports.AccountAPI = (*AccountClient)(nil)

// ListAccounts returns every stored account.
func (a *AccountClient) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	var wire []accountWire
	if err := a.c.do(ctx, http.MethodGet, accountsPath, nil, &wire); err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	out := make([]domain.Account, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.toDomain())
	}
	return out, nil
}

// CreateAccount stores account and returns the ID the API assigned.
func (a *AccountClient) CreateAccount(ctx context.Context, account domain.Account) (string, error) {
	in := accountToWire(account)
	in.ID = ""
	var created accountWire
	if err := a.c.do(ctx, http.MethodPost, accountsPath, in, &created); err != nil {
		return "", fmt.Errorf("creating account %q: %w", account.Name, err)
	}
	a.c.logger.Debug("Created account %q with id %s", account.Name, created.ID)
	return string(created.ID), nil
}

// GetAccount fetches one account by ID.
func (a *AccountClient) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	var w accountWire
	if err := a.c.do(ctx, http.MethodGet, idPath(accountsPath, id), nil, &w); err != nil {
		return domain.Account{}, fmt.Errorf("getting account %s: %w", id, err)
	}
	return w.toDomain(), nil
}

// FindAccountByName returns the first account whose name matches,
// ignoring case.
func (a *AccountClient) FindAccountByName(ctx context.Context, name string) (domain.Account, bool, error) {
	accounts, err := a.ListAccounts(ctx)
	if err != nil {
		return domain.Account{}, false, err
	}
	for _, acc := range accounts {
		if strings.EqualFold(acc.Name, name) {
			return acc, true, nil
		}
	}
	return domain.Account{}, false, nil
}

// DeleteByName deletes every account named exactly name and returns how
// many went.
func (a *AccountClient) DeleteByName(ctx context.Context, name string) (int, error) {
	accounts, err := a.ListAccounts(ctx)
	if err != nil {
		return 0, err
	}
	var deleted int
	var errs []error
	for _, acc := range accounts {
		if acc.Name != name {
			continue
		}
		if err := a.Delete(ctx, acc.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		deleted++
	}
	return deleted, errors.Join(errs...)
}

// List implements ports.EntityAPI.
func (a *AccountClient) List(ctx context.Context) ([]ports.Entity, error) {
	accounts, err := a.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ports.Entity, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, ports.Entity{ID: acc.ID, Name: acc.Name})
	}
	return out, nil
}

// Delete implements ports.EntityAPI. A missing account counts as deleted.
func (a *AccountClient) Delete(ctx context.Context, id string) error {
	err := a.c.do(ctx, http.MethodDelete, idPath(accountsPath, id), nil, nil)
	if errors.Is(err, ports.ErrNotFound) {
		a.c.logger.Debug("Account %s already gone", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("deleting account %s: %w", id, err)
	}
	return nil
}
