// Package portstest provides testify mocks of the ports for use case,
// hook and step tests.
package portstest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"mke2e/internal/domain"
	"mke2e/internal/ports"
)

var (
	_ ports.AccountUI   = (*AccountUI)(nil)
	_ ports.CategoryUI  = (*CategoryUI)(nil)
	_ ports.AccountAPI  = (*AccountAPI)(nil)
	_ ports.CategoryAPI = (*CategoryAPI)(nil)
)

// AccountUI mocks ports.AccountUI.
type AccountUI struct {
	mock.Mock
}

func (m *AccountUI) NavigateToApp(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *AccountUI) OpenCreateForm(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *AccountUI) FillAccountForm(ctx context.Context, form domain.AccountForm) error {
	return m.Called(ctx, form).Error(0)
}

func (m *AccountUI) SubmitForm(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *AccountUI) IsAccountListed(ctx context.Context, name, expectedBalance string) (bool, error) {
	args := m.Called(ctx, name, expectedBalance)
	return args.Bool(0), args.Error(1)
}

func (m *AccountUI) VerifyCreationSuccess(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *AccountUI) VerifyTotalBalanceUpdated(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *AccountUI) VerifyConflictError(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *AccountUI) VerifyValidationErrors(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *AccountUI) IsOnFormPage(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *AccountUI) TrySubmitInvalidForm(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *AccountUI) DeleteAccount(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *AccountUI) LastCreatedAccountID() string {
	return m.Called().String(0)
}

// CategoryUI mocks ports.CategoryUI.
type CategoryUI struct {
	mock.Mock
}

func (m *CategoryUI) NavigateToCategoryPage(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *CategoryUI) CreateCategory(ctx context.Context, form domain.CategoryForm) (string, error) {
	args := m.Called(ctx, form)
	return args.String(0), args.Error(1)
}

func (m *CategoryUI) IsCategoryCreated(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *CategoryUI) IsCategoryChildOf(ctx context.Context, child, parent string) (bool, error) {
	args := m.Called(ctx, child, parent)
	return args.Bool(0), args.Error(1)
}

func (m *CategoryUI) UpdateCategoryParent(ctx context.Context, name, newParent string) error {
	return m.Called(ctx, name, newParent).Error(0)
}

func (m *CategoryUI) DeleteCategory(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *CategoryUI) IsErrorMessageVisible(ctx context.Context, message string) (bool, error) {
	args := m.Called(ctx, message)
	return args.Bool(0), args.Error(1)
}

func (m *CategoryUI) ListCategories(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// AccountAPI mocks ports.AccountAPI.
type AccountAPI struct {
	mock.Mock
}

func (m *AccountAPI) List(ctx context.Context) ([]ports.Entity, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ports.Entity), args.Error(1)
}

func (m *AccountAPI) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *AccountAPI) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Account), args.Error(1)
}

func (m *AccountAPI) CreateAccount(ctx context.Context, account domain.Account) (string, error) {
	args := m.Called(ctx, account)
	return args.String(0), args.Error(1)
}

func (m *AccountAPI) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Account), args.Error(1)
}

func (m *AccountAPI) FindAccountByName(ctx context.Context, name string) (domain.Account, bool, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(domain.Account), args.Bool(1), args.Error(2)
}

func (m *AccountAPI) DeleteByName(ctx context.Context, name string) (int, error) {
	args := m.Called(ctx, name)
	return args.Int(0), args.Error(1)
}

// CategoryAPI mocks ports.CategoryAPI.
type CategoryAPI struct {
	mock.Mock
}

func (m *CategoryAPI) List(ctx context.Context) ([]ports.Entity, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ports.Entity), args.Error(1)
}

func (m *CategoryAPI) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *CategoryAPI) ListCategories(ctx context.Context) ([]domain.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Category), args.Error(1)
}

func (m *CategoryAPI) CreateCategory(ctx context.Context, category domain.Category) (string, error) {
	args := m.Called(ctx, category)
	return args.String(0), args.Error(1)
}

func (m *CategoryAPI) GetCategory(ctx context.Context, id string) (domain.Category, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Category), args.Error(1)
}

func (m *CategoryAPI) UpdateCategory(ctx context.Context, category domain.Category) error {
	return m.Called(ctx, category).Error(0)
}

func (m *CategoryAPI) FindCategoryByName(ctx context.Context, name string) (domain.Category, bool, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(domain.Category), args.Bool(1), args.Error(2)
}

func (m *CategoryAPI) DeleteByName(ctx context.Context, name string) (int, error) {
	args := m.Called(ctx, name)
	return args.Int(0), args.Error(1)
}
