// Package world holds the per-scenario execution context.
//
// A World is created when a scenario starts and discarded when it ends. It
// owns the scenario's browser session, its resource tracker and its report
// record, and carries the scenario-scoped data steps hand to each other.
// Worlds are never shared between scenarios.
package world

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"mke2e/internal/config"
	"mke2e/internal/ports"
	"mke2e/internal/reporting"
	"mke2e/internal/session"
	"mke2e/internal/tracker"
	"mke2e/internal/usecase"
	"mke2e/pkg/logging"
)

type contextKey struct{}

// Ports are the adapters a scenario's steps drive.
type Ports struct {
	AccountUI   ports.AccountUI
	CategoryUI  ports.CategoryUI
	AccountAPI  ports.AccountAPI
	CategoryAPI ports.CategoryAPI
}

// PortsFactory builds the ports for a freshly opened session.
type PortsFactory func(s *session.Session) Ports

// World is the state of one scenario execution.
type World struct {
	ID           string
	ScenarioName string

	Session *session.Session
	Ports   Ports
	Tracker *tracker.Tracker
	Record  *reporting.ScenarioRecord

	Config config.Config
	Logger *logging.Logger

	// LastError is the error of the most recent step that returned one.
	LastError error
	// LastResult is the result of the most recent use case.
	LastResult usecase.Result

	mu   sync.Mutex
	data map[string]any
}

// New creates the World for a scenario. A nil record starts a fresh one. The
// session and ports are attached later by the before-scenario hooks.
func New(scenarioName string, record *reporting.ScenarioRecord, cfg config.Config, logger *logging.Logger) *World {
	id := uuid.NewString()
	if record == nil {
		record = reporting.NewScenarioRecord(id, scenarioName, "", nil)
	}
	return &World{
		ID:           id,
		ScenarioName: scenarioName,
		Tracker:      tracker.New(),
		Record:       record,
		Config:       cfg,
		Logger:       logger,
		data:         map[string]any{},
	}
}

// Deps returns the use case collaborators bound to this World.
func (w *World) Deps() usecase.Deps {
	return usecase.Deps{Tracker: w.Tracker, Logger: w.Logger}
}

// Attach binds a session and builds the ports for it.
func (w *World) Attach(s *session.Session, factory PortsFactory) {
	w.Session = s
	if factory != nil {
		w.Ports = factory(s)
	}
}

// Set stores a scenario-scoped value.
func (w *World) Set(key string, value any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.data[key] = value
}

// Get returns a scenario-scoped value.
func (w *World) Get(key string) (any, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.data[key]
	return v, ok
}

// GetString returns a scenario-scoped string, or "" when the key is unset or
// holds something else.
func (w *World) GetString(key string) string {
	v, _ := w.Get(key)
	s, _ := v.(string)
	return s
}

// RecordResult stores a use case result and its error, if any.
func (w *World) RecordResult(res usecase.Result) {
	w.LastResult = res
	w.LastError = res.Err()
}

// UniqueName returns base suffixed with a random 8 character token, so
// concurrently running scenarios never collide on entity names.
func UniqueName(base string) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	base = strings.TrimSpace(base)
	if base == "" {
		return token
	}
	return fmt.Sprintf("%s-%s", base, token)
}

// UniqueNameFor returns a unique name for base and remembers it, so later
// steps referring to base by its scenario-text name resolve the same entity.
func (w *World) UniqueNameFor(base string) string {
	key := "name:" + base
	if existing := w.GetString(key); existing != "" {
		return existing
	}
	name := UniqueName(base)
	w.Set(key, name)
	return name
}

// ResolveName returns the unique name generated for base, or base itself
// when none was generated.
func (w *World) ResolveName(base string) string {
	if name := w.GetString("name:" + base); name != "" {
		return name
	}
	return base
}

// NewContext returns ctx carrying w.
func NewContext(ctx context.Context, w *World) context.Context {
	return context.WithValue(ctx, contextKey{}, w)
}

// FromContext returns the World carried by ctx.
func FromContext(ctx context.Context) (*World, bool) {
	w, ok := ctx.Value(contextKey{}).(*World)
	return w, ok && w != nil
}
