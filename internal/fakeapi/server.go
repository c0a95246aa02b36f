// Package fakeapi serves an in-memory double of the Money Keeper REST API.
//
// It implements the subset of the API the harness talks to: accounts and
// categories with list, create, get, update and delete. Names are unique per
// kind, categories may nest, and a category with children cannot be deleted.
// Tests use FailDelete to make individual deletions fail.
package fakeapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"mke2e/internal/domain"
	"mke2e/pkg/logging"
)

// Account is the stored form of an account.
type Account struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Balance     float64 `json:"balance"`
	Currency    string  `json:"currency"`
	Description string  `json:"description,omitempty"`
}

// Category is the stored form of a category.
type Category struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Icon     string `json:"icon"`
	Type     string `json:"type"`
	ParentID *int64 `json:"parentId"`
}

// Server holds the fake API state.
type Server struct {
	mu         sync.Mutex
	nextID     int64
	accounts   map[int64]Account
	categories map[int64]Category
	failDelete map[int64]int

	logger *logging.Logger
}

// New creates an empty fake API.
func New(logger *logging.Logger) *Server {
	return &Server{
		nextID:     1,
		accounts:   make(map[int64]Account),
		categories: make(map[int64]Category),
		failDelete: make(map[int64]int),
		logger:     logger.With("FakeAPI"),
	}
}

// Handler returns the router serving the API under /api.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Route("/api", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", s.handleListAccounts)
			r.Post("/", s.handleCreateAccount)
			r.Get("/{id}", s.handleGetAccount)
			r.Delete("/{id}", s.handleDeleteAccount)
		})
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", s.handleListCategories)
			r.Post("/", s.handleCreateCategory)
			r.Get("/{id}", s.handleGetCategory)
			r.Put("/{id}", s.handleUpdateCategory)
			r.Delete("/{id}", s.handleDeleteCategory)
		})
	})
	return router
}

// FailDelete makes the next deletion of id answer 500. Calling it again
// queues another failure.
func (s *Server) FailDelete(id string) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failDelete[n]++
}

// Reset drops every stored entity and queued fault.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = make(map[int64]Account)
	s.categories = make(map[int64]Category)
	s.failDelete = make(map[int64]int)
}

// Accounts returns the stored accounts ordered by ID.
func (s *Server) Accounts() []Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedAccounts()
}

// Categories returns the stored categories ordered by ID.
func (s *Server) Categories() []Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedCategories()
}

// AddAccount stores an account directly and returns its ID.
func (s *Server) AddAccount(a Account) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.allocID()
	s.accounts[a.ID] = a
	return strconv.FormatInt(a.ID, 10)
}

// AddCategory stores a category directly and returns its ID.
func (s *Server) AddCategory(c Category) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.allocID()
	s.categories[c.ID] = c
	return strconv.FormatInt(c.ID, 10)
}

func (s *Server) allocID() int64 {
	id := s.nextID
	s.nextID++
	return id
}

func (s *Server) sortedAccounts() []Account {
	out := make([]Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) sortedCategories() []Category {
	out := make([]Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// takeFault consumes one queued failure for id.
func (s *Server) takeFault(id int64) bool {
	if s.failDelete[id] == 0 {
		return false
	}
	s.failDelete[id]--
	return true
}

func (s *Server) handleListAccounts(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.Accounts())
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var in Account
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	_, err := domain.NewAccount(domain.AccountForm{
		Name:           in.Name,
		Type:           in.Type,
		InitialBalance: strconv.FormatFloat(in.Balance, 'f', -1, 64),
		Currency:       in.Currency,
		Description:    in.Description,
	})
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.accounts {
		if strings.EqualFold(existing.Name, strings.TrimSpace(in.Name)) {
			respondError(w, http.StatusConflict, errors.New("Account name already exists"))
			return
		}
	}
	in.Name = strings.TrimSpace(in.Name)
	in.ID = s.allocID()
	s.accounts[in.ID] = in
	s.logger.Debug("Created account %d (%s)", in.ID, in.Name)
	respondJSON(w, http.StatusCreated, in)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	a, found := s.accounts[id]
	s.mu.Unlock()
	if !found {
		respondError(w, http.StatusNotFound, fmt.Errorf("account %d not found", id))
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.accounts[id]; !found {
		respondError(w, http.StatusNotFound, fmt.Errorf("account %d not found", id))
		return
	}
	if s.takeFault(id) {
		respondError(w, http.StatusInternalServerError, fmt.Errorf("injected failure deleting account %d", id))
		return
	}
	delete(s.accounts, id)
	s.logger.Debug("Deleted account %d", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCategories(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.Categories())
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var in Category
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if status, err := s.checkCategory(in, 0); err != nil {
		respondError(w, status, err)
		return
	}
	in.Name = strings.TrimSpace(in.Name)
	in.ID = s.allocID()
	s.categories[in.ID] = in
	s.logger.Debug("Created category %d (%s)", in.ID, in.Name)
	respondJSON(w, http.StatusCreated, in)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	c, found := s.categories[id]
	s.mu.Unlock()
	if !found {
		respondError(w, http.StatusNotFound, fmt.Errorf("category %d not found", id))
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var in Category
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.categories[id]; !found {
		respondError(w, http.StatusNotFound, fmt.Errorf("category %d not found", id))
		return
	}
	if status, err := s.checkCategory(in, id); err != nil {
		respondError(w, status, err)
		return
	}
	in.ID = id
	in.Name = strings.TrimSpace(in.Name)
	s.categories[id] = in
	respondJSON(w, http.StatusOK, in)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.categories[id]; !found {
		respondError(w, http.StatusNotFound, fmt.Errorf("category %d not found", id))
		return
	}
	for _, c := range s.categories {
		if c.ParentID != nil && *c.ParentID == id {
			respondError(w, http.StatusConflict, fmt.Errorf("category %d has subcategories", id))
			return
		}
	}
	if s.takeFault(id) {
		respondError(w, http.StatusInternalServerError, fmt.Errorf("injected failure deleting category %d", id))
		return
	}
	delete(s.categories, id)
	s.logger.Debug("Deleted category %d", id)
	w.WriteHeader(http.StatusNoContent)
}

// checkCategory applies the category rules to in. self is the ID being
// updated, zero on create. The caller holds s.mu.
func (s *Server) checkCategory(in Category, self int64) (int, error) {
	form := domain.CategoryForm{Name: in.Name, Icon: in.Icon, Type: domain.CategoryType(in.Type)}
	if problems := form.Validate(); len(problems) > 0 {
		return http.StatusBadRequest, errors.New(strings.Join(problems, "; "))
	}
	if in.ParentID != nil {
		if *in.ParentID == self {
			return http.StatusBadRequest, errors.New("A category cannot be its own parent")
		}
		if _, found := s.categories[*in.ParentID]; !found {
			return http.StatusBadRequest, fmt.Errorf("parent category %d does not exist", *in.ParentID)
		}
	}
	for _, existing := range s.categories {
		if existing.ID != self && strings.EqualFold(existing.Name, strings.TrimSpace(in.Name)) {
			return http.StatusConflict, errors.New(domain.MsgCategoryNameExists)
		}
	}
	return 0, nil
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		respondError(w, http.StatusNotFound, fmt.Errorf("no entity with id %q", raw))
		return 0, false
	}
	return id, true
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, struct {
		Error   string `json:"error"`
		Status  int    `json:"status"`
		Message string `json:"message"`
	}{
		Error:   http.StatusText(status),
		Status:  status,
		Message: err.Error(),
	})
}
