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

const categoriesPath = "/categories"

type categoryWire struct {
	ID       flexID              `json:"id,omitempty"`
	Name     string              `json:"name"`
	Icon     string              `json:"icon"`
	Type     domain.CategoryType `json:"type"`
	ParentID *flexID             `json:"parentId"`
}

func (w categoryWire) toDomain() domain.Category {
	c := domain.Category{
		ID:   string(w.ID),
		Name: w.Name,
		Icon: w.Icon,
		Type: w.Type,
	}
	if w.ParentID != nil && *w.ParentID != "" {
		parent := string(*w.ParentID)
		c.ParentID = &parent
	}
	return c
}

func categoryToWire(c domain.Category) categoryWire {
	w := categoryWire{
		ID:   flexID(c.ID),
		Name: c.Name,
		Icon: c.Icon,
		Type: c.Type,
	}
	if c.HasParent() {
		parent := flexID(*c.ParentID)
		w.ParentID = &parent
	}
	return w
}

// CategoryClient implements ports.CategoryAPI.
type CategoryClient struct {
	c *Client
}

var _ ports.CategoryAPI = (*CategoryClient)(nil)

// ListCategories returns every stored category.
func (cc *CategoryClient) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var wire []categoryWire
	if err := cc.c.do(ctx, http.MethodGet, categoriesPath, nil, &wire); err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	out := make([]domain.Category, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.toDomain())
	}
	return out, nil
}

// CreateCategory stores category and returns the ID the API assigned.
func (cc *CategoryClient) CreateCategory(ctx context.Context, category domain.Category) (string, error) {
	in := categoryToWire(category)
	in.ID = ""
	var created categoryWire
	if err := cc.c.do(ctx, http.MethodPost, categoriesPath, in, &created); err != nil {
		return "", fmt.Errorf("creating category %q: %w", category.Name, err)
	}
	cc.c.logger.Debug("Created category %q with id %s", category.Name, created.ID)
	return string(created.ID), nil
}

// GetCategory fetches one category by ID.
func (cc *CategoryClient) GetCategory(ctx context.Context, id string) (domain.Category, error) {
	var w categoryWire
	if err := cc.c.do(ctx, http.MethodGet, idPath(categoriesPath, id), nil, &w); err != nil {
		return domain.Category{}, fmt.Errorf("getting category %s: %w", id, err)
	}
	return w.toDomain(), nil
}

// UpdateCategory replaces the stored category with the same ID.
func (cc *CategoryClient) UpdateCategory(ctx context.Context, category domain.Category) error {
	if category.ID == "" {
		return fmt.Errorf("updating category %q: missing id", category.Name)
	}
	if err := cc.c.do(ctx, http.MethodPut, idPath(categoriesPath, category.ID), categoryToWire(category), nil); err != nil {
		return fmt.Errorf("updating category %s: %w", category.ID, err)
	}
	return nil
}

// FindCategoryByName returns the first category whose name matches,
// ignoring case.
func (cc *CategoryClient) FindCategoryByName(ctx context.Context, name string) (domain.Category, bool, error) {
	categories, err := cc.ListCategories(ctx)
	if err != nil {
		return domain.Category{}, false, err
	}
	for _, c := range categories {
		if strings.EqualFold(c.Name, name) {
			return c, true, nil
		}
	}
	return domain.Category{}, false, nil
}

// DeleteByName deletes every category named exactly name and returns how
// many went.
func (cc *CategoryClient) DeleteByName(ctx context.Context, name string) (int, error) {
	categories, err := cc.ListCategories(ctx)
	if err != nil {
		return 0, err
	}
	var deleted int
	var errs []error
	for _, c := range categories {
		if c.Name != name {
			continue
		}
		if err := cc.Delete(ctx, c.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		deleted++
	}
	return deleted, errors.Join(errs...)
}

// List implements ports.EntityAPI.
func (cc *CategoryClient) List(ctx context.Context) ([]ports.Entity, error) {
	categories, err := cc.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ports.Entity, 0, len(categories))
	for _, c := range categories {
		e := ports.Entity{ID: c.ID, Name: c.Name}
		if c.HasParent() {
			e.ParentID = *c.ParentID
		}
		out = append(out, e)
	}
	return out, nil
}

// Delete implements ports.EntityAPI. A missing category counts as deleted.
func (cc *CategoryClient) Delete(ctx context.Context, id string) error {
	err := cc.c.do(ctx, http.MethodDelete, idPath(categoriesPath, id), nil, nil)
	if errors.Is(err, ports.ErrNotFound) {
		cc.c.logger.Debug("Category %s already gone", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("deleting category %s: %w", id, err)
	}
	return nil
}
