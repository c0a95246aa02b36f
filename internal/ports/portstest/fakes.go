package portstest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"mke2e/internal/domain"
	"mke2e/internal/ports"
)

var (
	_ ports.AccountUI  = (*APIAccountUI)(nil)
	_ ports.CategoryUI = (*APICategoryUI)(nil)
)

// APIAccountUI plays the accounts screen on top of an AccountAPI, so step
// glue and the suite runner can be exercised without a browser. Rejections
// from the API show up the way the real form shows them: the user stays on
// the form and a message is visible.
type APIAccountUI struct {
	API ports.AccountAPI

	mu         sync.Mutex
	form       domain.AccountForm
	onForm     bool
	conflict   string
	validation []string
	lastID     string
}

// NewAPIAccountUI returns an accounts screen backed by api.
func NewAPIAccountUI(api ports.AccountAPI) *APIAccountUI {
	return &APIAccountUI{API: api}
}

func (u *APIAccountUI) NavigateToApp(context.Context) error { return nil }

func (u *APIAccountUI) OpenCreateForm(context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.onForm = true
	u.form = domain.AccountForm{}
	u.conflict, u.validation, u.lastID = "", nil, ""
	return nil
}

func (u *APIAccountUI) FillAccountForm(_ context.Context, form domain.AccountForm) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.onForm {
		return errors.New("account form is not open")
	}
	u.form = form
	return nil
}

func (u *APIAccountUI) SubmitForm(ctx context.Context) error {
	u.mu.Lock()
	form := u.form
	u.mu.Unlock()

	if problems := form.Validate(); len(problems) > 0 {
		u.reject(nil, problems)
		return nil
	}
	account, err := domain.NewAccount(form)
	if err != nil {
		u.reject(nil, []string{err.Error()})
		return nil
	}
	id, err := u.API.CreateAccount(ctx, account)
	switch {
	case errors.Is(err, ports.ErrConflict):
		u.reject(err, nil)
		return nil
	case errors.Is(err, ports.ErrRejected):
		u.reject(nil, []string{err.Error()})
		return nil
	case err != nil:
		return err
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	u.onForm = false
	u.lastID = id
	return nil
}

func (u *APIAccountUI) reject(conflict error, validation []string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if conflict != nil {
		u.conflict = domainMessage(conflict, "Account name already exists")
	}
	u.validation = validation
}

func (u *APIAccountUI) IsAccountListed(ctx context.Context, name, expectedBalance string) (bool, error) {
	accounts, err := u.API.ListAccounts(ctx)
	if err != nil {
		return false, err
	}
	for _, a := range accounts {
		if strings.EqualFold(a.Name, strings.TrimSpace(name)) &&
			(expectedBalance == "" || a.FormattedBalance() == expectedBalance) {
			return true, nil
		}
	}
	return false, nil
}

func (u *APIAccountUI) VerifyCreationSuccess(_ context.Context, name string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.onForm || u.lastID == "" {
		return fmt.Errorf("account %q was not created", name)
	}
	return nil
}

func (u *APIAccountUI) VerifyTotalBalanceUpdated(ctx context.Context) error {
	accounts, err := u.API.ListAccounts(ctx)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		return errors.New("total balance is not shown")
	}
	return nil
}

func (u *APIAccountUI) VerifyConflictError(context.Context) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.conflict, nil
}

func (u *APIAccountUI) VerifyValidationErrors(context.Context) ([]string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.validation...), nil
}

func (u *APIAccountUI) IsOnFormPage(context.Context) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.onForm, nil
}

func (u *APIAccountUI) TrySubmitInvalidForm(ctx context.Context) error {
	return u.SubmitForm(ctx)
}

func (u *APIAccountUI) DeleteAccount(ctx context.Context, name string) error {
	n, err := u.API.DeleteByName(ctx, name)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("account %q is not listed", name)
	}
	return nil
}

func (u *APIAccountUI) LastCreatedAccountID() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lastID
}

// APICategoryUI plays the category screen on top of a CategoryAPI.
type APICategoryUI struct {
	API ports.CategoryAPI

	mu      sync.Mutex
	message string
}

// NewAPICategoryUI returns a category screen backed by api.
func NewAPICategoryUI(api ports.CategoryAPI) *APICategoryUI {
	return &APICategoryUI{API: api}
}

func (u *APICategoryUI) NavigateToCategoryPage(context.Context) error {
	u.show("")
	return nil
}

func (u *APICategoryUI) show(message string) {
	u.mu.Lock()
	u.message = message
	u.mu.Unlock()
}

func (u *APICategoryUI) CreateCategory(ctx context.Context, form domain.CategoryForm) (string, error) {
	if problems := form.Validate(); len(problems) > 0 {
		u.show(problems[0])
		return "", fmt.Errorf("category form rejected: %s", problems[0])
	}
	c := domain.Category{Name: strings.TrimSpace(form.Name), Icon: form.Icon, Type: form.Type}
	if form.Parent != "" {
		parent, ok, err := u.API.FindCategoryByName(ctx, form.Parent)
		if err != nil {
			return "", err
		}
		if !ok {
			u.show("Parent category not found")
			return "", fmt.Errorf("parent category %q is not listed", form.Parent)
		}
		c.ParentID = &parent.ID
	}
	id, err := u.API.CreateCategory(ctx, c)
	if err != nil {
		u.show(domainMessage(err, err.Error()))
		return "", err
	}
	return id, nil
}

func (u *APICategoryUI) IsCategoryCreated(ctx context.Context, name string) (bool, error) {
	_, ok, err := u.API.FindCategoryByName(ctx, name)
	return ok, err
}

func (u *APICategoryUI) IsCategoryChildOf(ctx context.Context, child, parent string) (bool, error) {
	c, ok, err := u.API.FindCategoryByName(ctx, child)
	if err != nil || !ok {
		return false, err
	}
	p, ok, err := u.API.FindCategoryByName(ctx, parent)
	if err != nil || !ok {
		return false, err
	}
	return c.HasParent() && *c.ParentID == p.ID, nil
}

func (u *APICategoryUI) UpdateCategoryParent(ctx context.Context, name, newParent string) error {
	c, ok, err := u.API.FindCategoryByName(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("category %q is not listed", name)
	}
	p, ok, err := u.API.FindCategoryByName(ctx, newParent)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("category %q is not listed", newParent)
	}
	c.ParentID = &p.ID
	if err := u.API.UpdateCategory(ctx, c); err != nil {
		u.show(domainMessage(err, err.Error()))
		return err
	}
	return nil
}

func (u *APICategoryUI) DeleteCategory(ctx context.Context, name string) error {
	n, err := u.API.DeleteByName(ctx, name)
	if err != nil {
		u.show(domainMessage(err, err.Error()))
		return err
	}
	if n == 0 {
		return fmt.Errorf("category %q is not listed", name)
	}
	return nil
}

func (u *APICategoryUI) IsErrorMessageVisible(_ context.Context, message string) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.message != "" && strings.Contains(strings.ToLower(u.message), strings.ToLower(message)), nil
}

func (u *APICategoryUI) ListCategories(ctx context.Context) ([]string, error) {
	categories, err := u.API.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, c.Name)
	}
	return names, nil
}

// domainMessage extracts the application's message from an adapter error,
// dropping the request prefix and the status code. It returns fallback when
// nothing is left.
func domainMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		msg = msg[i+2:]
	}
	if code, rest, ok := strings.Cut(msg, " "); ok && len(code) == 3 && strings.Trim(code, "0123456789") == "" {
		msg = rest
	}
	if strings.TrimSpace(msg) == "" {
		return fallback
	}
	return msg
}
