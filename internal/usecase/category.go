package usecase

import (
	"context"
	"fmt"
	"strings"

	"mke2e/internal/domain"
	"mke2e/internal/ports"
	"mke2e/internal/tracker"
	"mke2e/pkg/logging"
)

// CreateCategory creates a category through the UI.
type CreateCategory struct {
	UI  ports.CategoryUI
	API ports.CategoryAPI // optional; enables the uniqueness pre-check and parent lookup
	Deps

	log *logging.Logger
}

// NewCreateCategory wires a CreateCategory workflow.
func NewCreateCategory(ui ports.CategoryUI, api ports.CategoryAPI, deps Deps) *CreateCategory {
	return &CreateCategory{UI: ui, API: api, Deps: deps, log: deps.logger("CreateCategory")}
}

// Execute validates form, checks the name is free and the parent exists,
// then creates the category through the form and verifies it is shown.
func (uc *CreateCategory) Execute(ctx context.Context, form domain.CategoryForm) (res Result) {
	defer guard(&res, uc.log)

	if problems := form.Validate(); len(problems) > 0 {
		return ValidationError(problems[0], problems...)
	}

	existing, err := uc.existing(ctx)
	if err != nil {
		return UnknownError(fmt.Sprintf("checking category name: %v", err))
	}
	if _, taken := findCategory(existing, form.Name); taken {
		return ConflictError(domain.MsgCategoryNameExists)
	}

	category, err := domain.NewCategory(form, uc.parentID(existing, form.Parent))
	if err != nil {
		return fromRuleError(err)
	}

	if err := uc.UI.NavigateToCategoryPage(ctx); err != nil {
		return UnknownError(err.Error())
	}
	id, err := uc.UI.CreateCategory(ctx, form)
	if err != nil {
		track(uc.Deps, uc.log, tracker.KindCategory, "", category.Name)
		return UnknownError(err.Error())
	}
	track(uc.Deps, uc.log, tracker.KindCategory, id, category.Name)

	if err := uc.verify(ctx, form); err != nil {
		uc.log.Warn("Category %q submitted but not verified: %v", category.Name, err)
		return Success("")
	}
	uc.log.Info("Created category %q (id=%s)", category.Name, id)
	return Success(id)
}

// ExecuteDuplicate attempts to create a category whose name is already
// taken and reports the conflict.
func (uc *CreateCategory) ExecuteDuplicate(ctx context.Context, form domain.CategoryForm) (res Result) {
	defer guard(&res, uc.log)

	existing, err := uc.existing(ctx)
	if err != nil {
		return UnknownError(fmt.Sprintf("checking category name: %v", err))
	}
	if _, taken := findCategory(existing, form.Name); taken {
		return ConflictError(domain.MsgCategoryNameExists)
	}

	if err := uc.UI.NavigateToCategoryPage(ctx); err != nil {
		return UnknownError(err.Error())
	}
	_, createErr := uc.UI.CreateCategory(ctx, form)
	shown, err := uc.UI.IsErrorMessageVisible(ctx, domain.MsgCategoryNameExists)
	if err == nil && shown {
		return ConflictError(domain.MsgCategoryNameExists)
	}
	if createErr != nil {
		return UnknownError(createErr.Error())
	}
	track(uc.Deps, uc.log, tracker.KindCategory, "", strings.TrimSpace(form.Name))
	return UnknownError("Duplicate category was accepted")
}

func (uc *CreateCategory) existing(ctx context.Context) ([]domain.Category, error) {
	if uc.API == nil {
		return nil, nil
	}
	return uc.API.ListCategories(ctx)
}

// parentID resolves the parent by name from the API listing, then from
// the categories this scenario created.
func (uc *CreateCategory) parentID(existing []domain.Category, parent string) string {
	if parent == "" {
		return ""
	}
	if c, ok := findCategory(existing, parent); ok {
		return c.ID
	}
	if uc.Tracker != nil {
		if e, ok := uc.Tracker.Lookup(tracker.KindCategory, parent); ok {
			if e.ID != "" {
				return e.ID
			}
			return e.Name
		}
	}
	return ""
}

func (uc *CreateCategory) verify(ctx context.Context, form domain.CategoryForm) error {
	created, err := uc.UI.IsCategoryCreated(ctx, form.Name)
	if err != nil {
		return err
	}
	if !created {
		return fmt.Errorf("category %q is not shown", form.Name)
	}
	if form.Parent == "" {
		return nil
	}
	nested, err := uc.UI.IsCategoryChildOf(ctx, form.Name, form.Parent)
	if err != nil {
		return err
	}
	if !nested {
		return fmt.Errorf("category %q is not shown under %q", form.Name, form.Parent)
	}
	return nil
}

func findCategory(categories []domain.Category, name string) (domain.Category, bool) {
	name = strings.TrimSpace(name)
	for _, c := range categories {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return domain.Category{}, false
}

// DeleteCategory deletes a category through the UI.
type DeleteCategory struct {
	UI ports.CategoryUI
	Deps

	log *logging.Logger
}

// NewDeleteCategory wires a DeleteCategory workflow.
func NewDeleteCategory(ui ports.CategoryUI, deps Deps) *DeleteCategory {
	return &DeleteCategory{UI: ui, Deps: deps, log: deps.logger("DeleteCategory")}
}

// Execute deletes the category named name and stops tracking it.
func (uc *DeleteCategory) Execute(ctx context.Context, name string) (res Result) {
	defer guard(&res, uc.log)

	if strings.TrimSpace(name) == "" {
		return ValidationError(domain.MsgCategoryNameRequired)
	}
	if err := uc.UI.NavigateToCategoryPage(ctx); err != nil {
		return UnknownError(err.Error())
	}
	if err := uc.UI.DeleteCategory(ctx, name); err != nil {
		return UnknownError(err.Error())
	}
	if uc.Tracker != nil && !uc.Tracker.Untrack(tracker.KindCategory, name) {
		uc.log.Debug("Deleted category %q was not tracked", name)
	}
	return Success("")
}

// UpdateCategoryParent moves a category under another one through the UI.
type UpdateCategoryParent struct {
	UI  ports.CategoryUI
	API ports.CategoryAPI // optional; enables the parent existence check
	Deps

	log *logging.Logger
}

// NewUpdateCategoryParent wires an UpdateCategoryParent workflow.
func NewUpdateCategoryParent(ui ports.CategoryUI, api ports.CategoryAPI, deps Deps) *UpdateCategoryParent {
	return &UpdateCategoryParent{UI: ui, API: api, Deps: deps, log: deps.logger("UpdateCategoryParent")}
}

// Execute moves name under newParent and verifies the new nesting.
func (uc *UpdateCategoryParent) Execute(ctx context.Context, name, newParent string) (res Result) {
	defer guard(&res, uc.log)

	if strings.TrimSpace(name) == "" {
		return ValidationError(domain.MsgCategoryNameRequired)
	}
	if strings.EqualFold(strings.TrimSpace(name), strings.TrimSpace(newParent)) {
		return DomainError("A category cannot be its own parent")
	}

	if uc.API != nil {
		categories, err := uc.API.ListCategories(ctx)
		if err != nil {
			return UnknownError(fmt.Sprintf("checking categories: %v", err))
		}
		if _, ok := findCategory(categories, name); !ok {
			return DomainError(fmt.Sprintf("Category %s does not exist", name))
		}
		if _, ok := findCategory(categories, newParent); !ok {
			return DomainError(fmt.Sprintf("Parent category %s does not exist", newParent))
		}
	}

	if err := uc.UI.NavigateToCategoryPage(ctx); err != nil {
		return UnknownError(err.Error())
	}
	if err := uc.UI.UpdateCategoryParent(ctx, name, newParent); err != nil {
		return UnknownError(err.Error())
	}

	nested, err := uc.UI.IsCategoryChildOf(ctx, name, newParent)
	if err != nil || !nested {
		uc.log.Warn("Category %q moved under %q but the nesting was not verified (err=%v)", name, newParent, err)
	}
	return Success("")
}
