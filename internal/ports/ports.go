// Package ports declares the capabilities use cases need from the
// application under test, in business vocabulary.
//
// Each port has named adapters: the web package drives the UI through a
// browser session, the rest package talks to the HTTP API. Use cases depend
// only on these interfaces, so an adapter can be swapped without touching
// them. Adapters report failures as errors with descriptive messages and
// never decide what a failure means for the business; that is the use
// case's job.
package ports

import (
	"context"

	"mke2e/internal/domain"
)

// Entity is the minimal view of a stored entity that teardown needs.
type Entity struct {
	ID       string
	Name     string
	ParentID string
}

// EntityAPI lists and deletes one kind of entity. Delete of an ID that no
// longer exists succeeds.
type EntityAPI interface {
	List(ctx context.Context) ([]Entity, error)
	Delete(ctx context.Context, id string) error
}

// AccountAPI manages accounts over HTTP.
type AccountAPI interface {
	EntityAPI
	ListAccounts(ctx context.Context) ([]domain.Account, error)
	CreateAccount(ctx context.Context, account domain.Account) (string, error)
	GetAccount(ctx context.Context, id string) (domain.Account, error)
	FindAccountByName(ctx context.Context, name string) (domain.Account, bool, error)
	DeleteByName(ctx context.Context, name string) (int, error)
}

// CategoryAPI manages categories over HTTP.
type CategoryAPI interface {
	EntityAPI
	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, category domain.Category) (string, error)
	GetCategory(ctx context.Context, id string) (domain.Category, error)
	UpdateCategory(ctx context.Context, category domain.Category) error
	FindCategoryByName(ctx context.Context, name string) (domain.Category, bool, error)
	DeleteByName(ctx context.Context, name string) (int, error)
}

// AccountUI drives the accounts screen.
type AccountUI interface {
	NavigateToApp(ctx context.Context) error
	OpenCreateForm(ctx context.Context) error
	FillAccountForm(ctx context.Context, form domain.AccountForm) error
	SubmitForm(ctx context.Context) error
	// IsAccountListed reports whether a row with name shows expectedBalance.
	// An empty expectedBalance matches any balance.
	IsAccountListed(ctx context.Context, name, expectedBalance string) (bool, error)
	VerifyCreationSuccess(ctx context.Context, name string) error
	VerifyTotalBalanceUpdated(ctx context.Context) error
	// VerifyConflictError returns the visible conflict message, or "" when none is shown.
	VerifyConflictError(ctx context.Context) (string, error)
	// VerifyValidationErrors returns the visible validation messages.
	VerifyValidationErrors(ctx context.Context) ([]string, error)
	IsOnFormPage(ctx context.Context) (bool, error)
	TrySubmitInvalidForm(ctx context.Context) error
	DeleteAccount(ctx context.Context, name string) error
	// LastCreatedAccountID returns the ID observed for the latest creation, if any.
	LastCreatedAccountID() string
}

// CategoryUI drives the category management screen.
type CategoryUI interface {
	NavigateToCategoryPage(ctx context.Context) error
	// CreateCategory submits the form and returns the ID the application
	// assigned, or "" when it could not be observed.
	CreateCategory(ctx context.Context, form domain.CategoryForm) (string, error)
	IsCategoryCreated(ctx context.Context, name string) (bool, error)
	IsCategoryChildOf(ctx context.Context, child, parent string) (bool, error)
	UpdateCategoryParent(ctx context.Context, name, newParent string) error
	DeleteCategory(ctx context.Context, name string) error
	IsErrorMessageVisible(ctx context.Context, message string) (bool, error)
	ListCategories(ctx context.Context) ([]string, error)
}
