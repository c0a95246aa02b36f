// Package hooks runs the callbacks that wrap every scenario.
//
// A Pipeline belongs to one scenario. Hooks are registered at one of three
// points and run in registration order within it:
//
//	before-scenario  open the session, record the environment
//	after-step       capture diagnostics
//	after-scenario   tear down tracked entities, close the session
//
// The pipeline moves idle → before → scenario → after-step (per step) →
// after-scenario → idle and rejects calls that arrive out of order with
// ErrInvalidState. RunAfterScenario runs exactly once per RunBefore, even
// when a before-scenario hook or a step failed.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"mke2e/internal/reporting"
	"mke2e/internal/world"
	"mke2e/pkg/logging"
)

// Point is where in a scenario a hook runs.
type Point string

const (
	BeforeScenario Point = "before-scenario"
	AfterStep      Point = "after-step"
	AfterScenario  Point = "after-scenario"
)

// State is the position of a pipeline within its scenario.
type State int

const (
	StateIdle State = iota
	StateBefore
	StateScenario
	StateAfterStep
	StateAfterScenario
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBefore:
		return "before-running"
	case StateScenario:
		return "scenario-running"
	case StateAfterStep:
		return "after-step-running"
	case StateAfterScenario:
		return "after-scenario-running"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	// ErrInvalidState is returned when a pipeline method is called out of order.
	ErrInvalidState = errors.New("hook pipeline called out of order")
	// ErrUnknownPoint is returned when registering a hook at an unknown point.
	ErrUnknownPoint = errors.New("unknown hook point")
)

// Event describes what a hook is reacting to.
type Event struct {
	Point Point
	// Step is set for after-step hooks.
	Step *StepEvent
	// Err is the step error for after-step hooks and the scenario error for
	// after-scenario hooks.
	Err error
}

// StepEvent is a finished step.
type StepEvent struct {
	Text     string
	Status   reporting.Status
	Err      error
	Duration time.Duration
}

// Func is a hook body.
type Func func(ctx context.Context, w *world.World, ev Event) error

// Hook is a named callback bound to a point.
type Hook struct {
	Name  string
	Point Point
	Fn    Func
}

// escalated marks an after-scenario error that must reach the runner.
type escalated struct{ err error }

func (e *escalated) Error() string { return e.err.Error() }
func (e *escalated) Unwrap() error { return e.err }

// Escalate marks err so RunAfterScenario returns it instead of only logging
// it. Nil stays nil.
func Escalate(err error) error {
	if err == nil {
		return nil
	}
	return &escalated{err: err}
}

// IsEscalated reports whether err was marked with Escalate.
func IsEscalated(err error) bool {
	var e *escalated
	return errors.As(err, &e)
}

// Options configures a Pipeline.
type Options struct {
	Logger *logging.Logger
	Tracer trace.Tracer
}

// Pipeline runs the hooks of one scenario.
type Pipeline struct {
	logger *logging.Logger
	tracer trace.Tracer

	mu     sync.Mutex
	hooks  map[Point][]Hook
	state  State
	failed bool

	spanCtx context.Context
	span    trace.Span
}

// New creates an idle pipeline with hooks registered in order.
func New(opts Options, hooks ...Hook) (*Pipeline, error) {
	p := &Pipeline{
		logger: opts.Logger.With("Hooks"),
		tracer: opts.Tracer,
		hooks:  map[Point][]Hook{},
	}
	if p.tracer == nil {
		p.tracer = noop.NewTracerProvider().Tracer("hooks")
	}
	for _, h := range hooks {
		if err := p.Register(h); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Register appends a hook to its point. Hooks can only be registered while
// the pipeline is idle.
func (p *Pipeline) Register(h Hook) error {
	switch h.Point {
	case BeforeScenario, AfterStep, AfterScenario:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPoint, h.Point)
	}
	if h.Fn == nil {
		return fmt.Errorf("hook %q has no function", h.Name)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateIdle {
		return fmt.Errorf("%w: register while %s", ErrInvalidState, p.state)
	}
	p.hooks[h.Point] = append(p.hooks[h.Point], h)
	return nil
}

// State returns the current state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Failed reports whether a before-scenario hook failed.
func (p *Pipeline) Failed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failed
}

// transition moves from one of the allowed states to next.
func (p *Pipeline) transition(next State, allowed ...State) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range allowed {
		if p.state == s {
			p.state = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s while %s", ErrInvalidState, next, p.state)
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *Pipeline) hooksAt(point Point) []Hook {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Hook(nil), p.hooks[point]...)
}

// RunBefore runs the before-scenario hooks in order. The first error stops
// the remaining hooks, marks the scenario failed and is returned; the caller
// must still call RunAfterScenario.
func (p *Pipeline) RunBefore(ctx context.Context, w *world.World) error {
	if err := p.transition(StateBefore, StateIdle); err != nil {
		return err
	}

	p.spanCtx, p.span = p.tracer.Start(ctx, "scenario", trace.WithAttributes(
		attribute.String("scenario.name", w.ScenarioName),
		attribute.String("scenario.world", w.ID),
	))

	for _, h := range p.hooksAt(BeforeScenario) {
		if err := p.call(p.spanCtx, h, w, Event{Point: BeforeScenario}); err != nil {
			err = fmt.Errorf("before-scenario hook %s: %w", h.Name, err)
			p.logger.Error(err, "Scenario %q cannot start", w.ScenarioName)
			w.Record.MarkStepFailed(err)
			if w.Session != nil {
				w.Session.MarkFailed()
			}
			p.mu.Lock()
			p.failed = true
			p.mu.Unlock()
			p.setState(StateScenario)
			return err
		}
	}

	p.setState(StateScenario)
	return nil
}

// RunAfterStep runs every after-step hook, then records the step. Hook
// errors are logged and never affect the step's outcome.
func (p *Pipeline) RunAfterStep(ctx context.Context, w *world.World, step StepEvent) error {
	if err := p.transition(StateAfterStep, StateScenario); err != nil {
		return err
	}
	defer p.setState(StateScenario)

	if step.Err != nil && step.Status == "" {
		step.Status = reporting.StatusFailed
	}
	if step.Status == reporting.StatusFailed && w.Session != nil {
		w.Session.MarkFailed()
	}

	ev := Event{Point: AfterStep, Step: &step, Err: step.Err}
	for _, h := range p.hooksAt(AfterStep) {
		if err := p.call(p.parent(ctx), h, w, ev); err != nil {
			p.logger.Warn("After-step hook %s failed: %v", h.Name, err)
		}
	}

	result := reporting.StepResult{Text: step.Text, Status: step.Status, Duration: step.Duration}
	if step.Err != nil {
		result.Error = step.Err.Error()
	}
	w.Record.AddStep(result)
	return nil
}

// RunAfterScenario runs every after-scenario hook. Errors are logged; those
// marked with Escalate are joined and returned.
func (p *Pipeline) RunAfterScenario(ctx context.Context, w *world.World, scenarioErr error) error {
	if err := p.transition(StateAfterScenario, StateScenario); err != nil {
		return err
	}
	defer p.setState(StateIdle)

	if scenarioErr != nil && w.Session != nil {
		w.Session.MarkFailed()
	}

	var escalations []error
	ev := Event{Point: AfterScenario, Err: scenarioErr}
	for _, h := range p.hooksAt(AfterScenario) {
		err := p.call(p.parent(ctx), h, w, ev)
		if err == nil {
			continue
		}
		if IsEscalated(err) {
			p.logger.Error(err, "After-scenario hook %s failed", h.Name)
			escalations = append(escalations, fmt.Errorf("after-scenario hook %s: %w", h.Name, err))
			continue
		}
		p.logger.Warn("After-scenario hook %s failed: %v", h.Name, err)
	}

	if p.span != nil {
		if scenarioErr != nil || p.Failed() {
			p.span.SetStatus(codes.Error, "scenario failed")
		}
		p.span.End()
		p.span, p.spanCtx = nil, nil
	}
	return errors.Join(escalations...)
}

// parent prefers the scenario span context so hook spans nest under it.
func (p *Pipeline) parent(ctx context.Context) context.Context {
	if p.span == nil {
		return ctx
	}
	return trace.ContextWithSpan(ctx, p.span)
}

// call runs one hook in its own span. A panic becomes an error.
func (p *Pipeline) call(ctx context.Context, h Hook, w *world.World, ev Event) (err error) {
	ctx, span := p.tracer.Start(ctx, "hook "+h.Name, trace.WithAttributes(
		attribute.String("hook.point", string(h.Point)),
	))
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in hook %s: %v", h.Name, r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	return h.Fn(ctx, w, ev)
}
