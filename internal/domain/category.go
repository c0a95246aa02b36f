package domain

import (
	"strings"
)

// CategoryType separates income from expense categories.
type CategoryType string

const (
	CategoryIncome  CategoryType = "INCOME"
	CategoryExpense CategoryType = "EXPENSE"
)

// MaxCategoryNameLength is the longest category name the application accepts.
const MaxCategoryNameLength = 50

// Validation messages shown by the category form.
const (
	MsgCategoryNameRequired = "Category name is required"
	MsgCategoryNameTooLong  = "Category name cannot exceed 50 characters"
	MsgCategoryIconRequired = "Category icon is required"
	MsgCategoryTypeInvalid  = "Category type must be either INCOME or EXPENSE"
	MsgCategoryNameExists   = "Category name already exists"
)

// CategoryForm is the raw input for creating a category.
type CategoryForm struct {
	Name   string       `json:"name"`
	Icon   string       `json:"icon"`
	Type   CategoryType `json:"type"`
	Parent string       `json:"parent,omitempty"` // parent category name
}

// Validate returns the form's validation messages. An empty slice means valid.
func (f CategoryForm) Validate() []string {
	var problems []string
	if strings.TrimSpace(f.Name) == "" {
		problems = append(problems, MsgCategoryNameRequired)
	}
	if len([]rune(f.Name)) > MaxCategoryNameLength {
		problems = append(problems, MsgCategoryNameTooLong)
	}
	if strings.TrimSpace(f.Icon) == "" {
		problems = append(problems, MsgCategoryIconRequired)
	}
	if f.Type != CategoryIncome && f.Type != CategoryExpense {
		problems = append(problems, MsgCategoryTypeInvalid)
	}
	return problems
}

// Category is a category as the application stores it.
type Category struct {
	ID       string       `json:"id,omitempty"`
	Name     string       `json:"name"`
	Icon     string       `json:"icon"`
	Type     CategoryType `json:"type"`
	ParentID *string      `json:"parentId"`
}

// HasParent reports whether the category is nested under another one.
func (c Category) HasParent() bool {
	return c.ParentID != nil && *c.ParentID != ""
}

// NewCategory enforces the category business rules. parentID is the resolved
// ID of f.Parent, empty for a top-level category.
func NewCategory(f CategoryForm, parentID string) (Category, error) {
	if problems := f.Validate(); len(problems) > 0 {
		return Category{}, &RuleError{Message: problems[0], Details: problems}
	}
	if f.Parent != "" && strings.EqualFold(strings.TrimSpace(f.Parent), strings.TrimSpace(f.Name)) {
		return Category{}, &RuleError{Message: "A category cannot be its own parent"}
	}
	if f.Parent != "" && parentID == "" {
		return Category{}, &RuleError{Message: "Parent category " + f.Parent + " does not exist"}
	}

	c := Category{
		Name: strings.TrimSpace(f.Name),
		Icon: f.Icon,
		Type: f.Type,
	}
	if parentID != "" {
		c.ParentID = &parentID
	}
	return c, nil
}
