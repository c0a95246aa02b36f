package usecase

import (
	"context"
	"errors"
	"fmt"

	"mke2e/internal/domain"
	"mke2e/internal/ports"
	"mke2e/internal/tracker"
	"mke2e/pkg/logging"
)

// SeedAccount creates an account directly through the API, for scenario
// preconditions.
type SeedAccount struct {
	API ports.AccountAPI
	Deps

	log *logging.Logger
}

// NewSeedAccount wires a SeedAccount workflow.
func NewSeedAccount(api ports.AccountAPI, deps Deps) *SeedAccount {
	return &SeedAccount{API: api, Deps: deps, log: deps.logger("SeedAccount")}
}

// Execute creates the account described by form and tracks it.
func (uc *SeedAccount) Execute(ctx context.Context, form domain.AccountForm) (res Result) {
	defer guard(&res, uc.log)

	if problems := form.Validate(); len(problems) > 0 {
		return ValidationError(problems[0], problems...)
	}
	account, err := domain.NewAccount(form)
	if err != nil {
		return fromRuleError(err)
	}

	id, err := uc.API.CreateAccount(ctx, account)
	if err != nil {
		return createFailed(uc.Deps, uc.log, tracker.KindAccount, account.Name, err)
	}
	track(uc.Deps, uc.log, tracker.KindAccount, id, account.Name)
	uc.log.Debug("Seeded account %q (id=%s)", account.Name, id)
	return Success(id)
}

// SeedCategory creates a category directly through the API, for scenario
// preconditions.
type SeedCategory struct {
	API ports.CategoryAPI
	Deps

	log *logging.Logger
}

// NewSeedCategory wires a SeedCategory workflow.
func NewSeedCategory(api ports.CategoryAPI, deps Deps) *SeedCategory {
	return &SeedCategory{API: api, Deps: deps, log: deps.logger("SeedCategory")}
}

// Execute creates the category described by form, resolving its parent by
// name, and tracks it.
func (uc *SeedCategory) Execute(ctx context.Context, form domain.CategoryForm) (res Result) {
	defer guard(&res, uc.log)

	if problems := form.Validate(); len(problems) > 0 {
		return ValidationError(problems[0], problems...)
	}

	var parentID string
	if form.Parent != "" {
		parent, ok, err := uc.API.FindCategoryByName(ctx, form.Parent)
		if err != nil {
			return UnknownError(fmt.Sprintf("looking up parent category: %v", err))
		}
		if ok {
			parentID = parent.ID
		}
	}

	category, err := domain.NewCategory(form, parentID)
	if err != nil {
		return fromRuleError(err)
	}

	id, err := uc.API.CreateCategory(ctx, category)
	if err != nil {
		return createFailed(uc.Deps, uc.log, tracker.KindCategory, category.Name, err)
	}
	track(uc.Deps, uc.log, tracker.KindCategory, id, category.Name)
	uc.log.Debug("Seeded category %q (id=%s)", category.Name, id)
	return Success(id)
}

// createFailed maps a failed create onto a Result. Unless the API refused
// the entity outright, it may have been stored anyway, so the name is
// tracked and teardown resolves it against the listing.
func createFailed(d Deps, logger *logging.Logger, kind tracker.Kind, name string, err error) Result {
	refused := errors.Is(err, ports.ErrConflict) || errors.Is(err, ports.ErrRejected) || errors.Is(err, ports.ErrNotFound)
	if !refused {
		logger.Warn("Creating %s %q gave no definitive answer, tracking it by name: %v", kind, name, err)
		track(d, logger, kind, "", name)
	}
	return fromAPIError(err)
}
