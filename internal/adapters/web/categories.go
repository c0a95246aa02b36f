package web

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/playwright-community/playwright-go"

	"mke2e/internal/domain"
	"mke2e/internal/ports"
)

const (
	testIDAddCategory   = "add-category-button"
	testIDCategoryName  = "input-category-name"
	testIDCategoryIcon  = "select-icon"
	testIDCategoryType  = "select-category-type"
	testIDSubmit        = "button-submit"
	selCategoryName     = `[data-test=category-name]`
	selParentSelect     = `select[name='parent']`
	selUpdateCategory   = `button#update-category`
	selDeleteCategory   = `button#delete-category`
	parentPlaceholder   = "Select parent category"
	categoriesPath      = "/categories"
	categoriesAPISuffix = "/categories"
	defaultIcon         = "Grid"
	// maxIndentDrift is how far apart, in pixels, a child and its parent may
	// start horizontally in the tree.
	maxIndentDrift = 50
)

// CategoryPage implements ports.CategoryUI on the category management screen.
type CategoryPage struct {
	basePage
}

var _ ports.CategoryUI = (*CategoryPage)(nil)

// NewCategoryPage binds a CategoryPage to page.
func NewCategoryPage(page playwright.Page, opts Options) *CategoryPage {
	return &CategoryPage{basePage: newBasePage(page, opts, "CategoryPage")}
}

// NavigateToCategoryPage opens the category screen and waits until it can
// be used.
func (p *CategoryPage) NavigateToCategoryPage(ctx context.Context) error {
	if err := p.gotoPath(ctx, categoriesPath); err != nil {
		return err
	}
	return p.waitVisible(ctx, p.page.GetByTestId(testIDAddCategory), "add category button")
}

// CreateCategory fills and submits the category form and returns the ID
// from the application's create response.
func (p *CategoryPage) CreateCategory(ctx context.Context, form domain.CategoryForm) (string, error) {
	p.logger.Debug("Creating category %q (icon %q, type %s, parent %q)", form.Name, form.Icon, form.Type, form.Parent)

	if err := p.click(ctx, p.page.GetByTestId(testIDAddCategory), "add category button"); err != nil {
		return "", err
	}
	if err := p.fill(ctx, p.page.GetByTestId(testIDCategoryName), "category name", form.Name); err != nil {
		return "", err
	}

	icon := form.Icon
	if icon == "" {
		icon = defaultIcon
	}
	if err := p.pickOption(ctx, p.page.GetByTestId(testIDCategoryIcon), "icon", icon); err != nil {
		return "", err
	}

	if form.Type != "" {
		typeSelect := p.page.GetByTestId(testIDCategoryType)
		if n, err := typeSelect.Count(); err == nil && n > 0 {
			if err := p.pickOption(ctx, typeSelect, "category type", string(form.Type)); err != nil {
				return "", err
			}
		}
	}

	if form.Parent != "" {
		if err := p.pickOption(ctx, p.page.GetByText(parentPlaceholder).First(), "parent category", form.Parent); err != nil {
			return "", err
		}
	}

	submit := p.page.GetByTestId(testIDSubmit)
	if err := p.waitVisible(ctx, submit, "submit button"); err != nil {
		return "", err
	}
	resp, err := p.page.ExpectResponse(func(r playwright.Response) bool {
		return r.Request().Method() == http.MethodPost &&
			strings.HasSuffix(strings.TrimRight(pathOf(r.URL()), "/"), categoriesAPISuffix)
	}, func() error {
		return submit.Click()
	}, playwright.PageExpectResponseOptions{Timeout: playwright.Float(float64(p.timeout.Milliseconds()))})
	if err != nil {
		return "", fmt.Errorf("submitting category %q: %w", form.Name, err)
	}
	if !isCreateResponse(resp.URL(), http.MethodPost, resp.Status(), categoriesAPISuffix) {
		body, _ := resp.Text()
		return "", fmt.Errorf("creating category %q: application answered %d: %s", form.Name, resp.Status(), strings.TrimSpace(body))
	}

	var payload map[string]any
	if err := resp.JSON(&payload); err != nil {
		p.logger.Warn("Category %q created but the response could not be parsed: %v", form.Name, err)
		return "", nil
	}
	id := idFromPayload(payload)
	p.logger.Info("Category %q created with id %s", form.Name, id)
	return id, nil
}

// pickOption opens a dropdown and chooses the option named value.
func (p *CategoryPage) pickOption(ctx context.Context, trigger playwright.Locator, what, value string) error {
	if err := p.click(ctx, trigger, what+" select"); err != nil {
		return err
	}
	option := p.page.GetByRole(*playwright.AriaRoleOption, playwright.PageGetByRoleOptions{
		Name:  value,
		Exact: playwright.Bool(true),
	}).First()
	return p.click(ctx, option, fmt.Sprintf("%s option %q", what, value))
}

// IsCategoryCreated reports whether a category named name is shown.
func (p *CategoryPage) IsCategoryCreated(ctx context.Context, name string) (bool, error) {
	return p.appearsWithinTimeout(ctx, p.page.Locator(textSelector(name)).First(), fmt.Sprintf("category %q", name))
}

func (p *CategoryPage) appearsWithinTimeout(ctx context.Context, loc playwright.Locator, what string) (bool, error) {
	err := p.waitVisible(ctx, loc, what)
	if err == nil {
		return true, nil
	}
	if isPollTimeout(err) {
		return false, nil
	}
	return false, err
}

// IsCategoryChildOf reports whether child is rendered nested under parent:
// below it and at roughly the same indentation.
func (p *CategoryPage) IsCategoryChildOf(ctx context.Context, child, parent string) (bool, error) {
	parentLoc := p.page.Locator(textSelector(parent)).First()
	childLoc := p.page.Locator(textSelector(child)).First()
	for _, l := range []struct {
		loc  playwright.Locator
		name string
	}{{parentLoc, parent}, {childLoc, child}} {
		ok, err := p.appearsWithinTimeout(ctx, l.loc, fmt.Sprintf("category %q", l.name))
		if err != nil || !ok {
			return false, err
		}
	}

	parentBox, err := parentLoc.BoundingBox()
	if err != nil {
		return false, fmt.Errorf("locating category %q: %w", parent, err)
	}
	childBox, err := childLoc.BoundingBox()
	if err != nil {
		return false, fmt.Errorf("locating category %q: %w", child, err)
	}
	if parentBox == nil || childBox == nil {
		return false, nil
	}
	return nestedBelow(*parentBox, *childBox), nil
}

func nestedBelow(parent, child playwright.Rect) bool {
	return child.Y > parent.Y && math.Abs(child.X-parent.X) < maxIndentDrift
}

// UpdateCategoryParent moves name under newParent.
func (p *CategoryPage) UpdateCategoryParent(ctx context.Context, name, newParent string) error {
	if err := p.click(ctx, p.page.Locator(textSelector(name)).First(), fmt.Sprintf("category %q", name)); err != nil {
		return err
	}
	parentSelect := p.page.Locator(selParentSelect)
	if err := p.waitVisible(ctx, parentSelect, "parent select"); err != nil {
		return err
	}
	if _, err := parentSelect.SelectOption(playwright.SelectOptionValues{Labels: &[]string{newParent}}); err != nil {
		return fmt.Errorf("selecting parent %q: %w", newParent, err)
	}
	return p.click(ctx, p.page.Locator(selUpdateCategory), "update category button")
}

// DeleteCategory deletes the category named name.
func (p *CategoryPage) DeleteCategory(ctx context.Context, name string) error {
	item := p.page.Locator(textSelector(name)).First()
	if err := p.click(ctx, item, fmt.Sprintf("category %q", name)); err != nil {
		return err
	}
	if err := p.click(ctx, p.page.Locator(selDeleteCategory), "delete category button"); err != nil {
		return err
	}
	return p.waitHidden(ctx, item, fmt.Sprintf("category %q", name))
}

// IsErrorMessageVisible reports whether message is shown on the page.
func (p *CategoryPage) IsErrorMessageVisible(ctx context.Context, message string) (bool, error) {
	return p.appears(ctx, p.page.Locator(`:text("`+escapeSelector(message)+`")`).First(), fmt.Sprintf("message %q", message))
}

// ListCategories returns the names of every listed category.
func (p *CategoryPage) ListCategories(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	texts, err := p.page.Locator(selCategoryName).AllTextContents()
	if err != nil {
		return nil, fmt.Errorf("reading category names: %w", err)
	}
	return nonEmpty(texts), nil
}
