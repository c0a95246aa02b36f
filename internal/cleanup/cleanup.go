// Package cleanup deletes the domain entities a scenario created.
//
// Teardown resolves tracked entries against one listing per kind, then
// deletes in waves: the most deeply nested categories first, accounts and
// top-level categories last. Each wave fans out concurrently and every
// deletion is attempted exactly once; one failure never stops the others.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"mke2e/internal/ports"
	"mke2e/internal/tracker"
	"mke2e/pkg/logging"
)

const defaultConcurrency = 4

// maxDepth bounds parent chain walks, so a cyclic listing cannot loop.
const maxDepth = 32

// Failure is one entity that could not be deleted.
type Failure struct {
	Entry tracker.Entry
	Err   error
}

func (f Failure) String() string {
	return fmt.Sprintf("%s: %v", f.Entry, f.Err)
}

// Report is the outcome of a teardown or sweep.
type Report struct {
	Attempted  int
	Deleted    int
	Failed     []Failure
	ResolveErr error
}

// OK reports whether every entity was resolved and deleted.
func (r Report) OK() bool {
	return r.ResolveErr == nil && len(r.Failed) == 0
}

// Errors renders every problem as one line each.
func (r Report) Errors() []string {
	var out []string
	if r.ResolveErr != nil {
		out = append(out, "resolve: "+r.ResolveErr.Error())
	}
	for _, f := range r.Failed {
		out = append(out, f.String())
	}
	return out
}

// Options configures a Cleaner.
type Options struct {
	// Concurrency caps the deletions in flight per wave.
	Concurrency int
	Tracer      trace.Tracer
	// Observe is called once per deletion attempt.
	Observe func(kind string, err error)
	Logger  *logging.Logger
}

// Cleaner deletes entities through the API ports.
type Cleaner struct {
	apis        map[tracker.Kind]ports.EntityAPI
	concurrency int
	tracer      trace.Tracer
	observe     func(kind string, err error)
	logger      *logging.Logger
}

// New creates a Cleaner using apis per entity kind.
func New(apis map[tracker.Kind]ports.EntityAPI, opts Options) *Cleaner {
	c := &Cleaner{
		apis:        apis,
		concurrency: opts.Concurrency,
		tracer:      opts.Tracer,
		observe:     opts.Observe,
		logger:      opts.Logger.With("Cleanup"),
	}
	if c.concurrency <= 0 {
		c.concurrency = defaultConcurrency
	}
	if c.tracer == nil {
		c.tracer = noop.NewTracerProvider().Tracer("cleanup")
	}
	return c
}

// target is one resolved deletion.
type target struct {
	entry tracker.Entry
	depth int
}

// Teardown deletes the given tracked entries. A name that matches nothing
// in the listing counts as already deleted. It returns after every attempt
// has finished.
func (c *Cleaner) Teardown(ctx context.Context, entries []tracker.Entry) Report {
	ctx, span := c.tracer.Start(ctx, "cleanup.teardown", trace.WithAttributes(attribute.Int("entries", len(entries))))
	defer span.End()

	targets, resolveErr := c.resolve(ctx, entries)
	report := c.deleteInWaves(ctx, targets)
	report.ResolveErr = resolveErr
	c.finishSpan(span, report)
	return report
}

// Sweep deletes every listed entity whose name satisfies match, for removing
// data left behind by interrupted runs.
func (c *Cleaner) Sweep(ctx context.Context, match func(kind tracker.Kind, name string) bool) Report {
	ctx, span := c.tracer.Start(ctx, "cleanup.sweep")
	defer span.End()

	var (
		targets []target
		errs    []error
	)
	for _, kind := range c.kinds() {
		listed, err := c.apis[kind].List(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("listing %ss: %w", kind, err))
			continue
		}
		depths := depthIndex(listed)
		for _, e := range listed {
			if match(kind, e.Name) {
				targets = append(targets, target{
					entry: tracker.Entry{Kind: kind, ID: e.ID, Name: e.Name},
					depth: depths[e.ID],
				})
			}
		}
	}

	report := c.deleteInWaves(ctx, targets)
	report.ResolveErr = errors.Join(errs...)
	c.finishSpan(span, report)
	return report
}

func (c *Cleaner) finishSpan(span trace.Span, report Report) {
	span.SetAttributes(
		attribute.Int("attempted", report.Attempted),
		attribute.Int("deleted", report.Deleted),
		attribute.Int("failed", len(report.Failed)),
	)
	if !report.OK() {
		span.SetStatus(codes.Error, strings.Join(report.Errors(), "; "))
	}
}

func (c *Cleaner) kinds() []tracker.Kind {
	kinds := make([]tracker.Kind, 0, len(c.apis))
	for k := range c.apis {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// resolve lists each kind present in entries once and turns entries into
// deletion targets. Entries of a kind whose listing failed are kept when
// they carry an ID and dropped otherwise; the listing error is returned.
func (c *Cleaner) resolve(ctx context.Context, entries []tracker.Entry) ([]target, error) {
	byKind := map[tracker.Kind][]tracker.Entry{}
	for _, e := range entries {
		byKind[e.Kind] = append(byKind[e.Kind], e)
	}

	var (
		targets []target
		errs    []error
	)
	kinds := make([]tracker.Kind, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)

	for _, kind := range kinds {
		tracked := byKind[kind]
		api, ok := c.apis[kind]
		if !ok {
			errs = append(errs, fmt.Errorf("no API for %s entries", kind))
			continue
		}

		listed, err := api.List(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("listing %ss: %w", kind, err))
			for _, e := range tracked {
				if e.ID != "" {
					targets = append(targets, target{entry: e})
				} else {
					c.logger.Warn("Cannot resolve %s without a listing", e)
				}
			}
			continue
		}

		depths := depthIndex(listed)
		seen := map[string]bool{}
		for _, e := range tracked {
			for _, t := range c.match(e, listed, depths) {
				if seen[t.entry.ID] {
					continue
				}
				seen[t.entry.ID] = true
				targets = append(targets, t)
			}
		}
	}
	return targets, errors.Join(errs...)
}

// match resolves one tracked entry. An entry with an ID is deleted by ID
// even when the listing does not show it; the API treats a missing ID as
// already deleted. Names match exactly, so a differently cased entity that
// someone else owns is left alone.
func (c *Cleaner) match(e tracker.Entry, listed []ports.Entity, depths map[string]int) []target {
	if e.ID != "" {
		return []target{{entry: e, depth: depths[e.ID]}}
	}
	var out []target
	for _, l := range listed {
		if l.Name == e.Name {
			out = append(out, target{
				entry: tracker.Entry{Kind: e.Kind, ID: l.ID, Name: e.Name},
				depth: depths[l.ID],
			})
		}
	}
	if len(out) == 0 {
		c.logger.Debug("%s is not listed, treating it as already deleted", e)
	}
	return out
}

// depthIndex maps every listed ID to its nesting depth, 0 for top level.
func depthIndex(listed []ports.Entity) map[string]int {
	parents := make(map[string]string, len(listed))
	for _, e := range listed {
		parents[e.ID] = e.ParentID
	}
	depths := make(map[string]int, len(listed))
	for _, e := range listed {
		d := 0
		for p := parents[e.ID]; p != "" && d < maxDepth; p = parents[p] {
			d++
		}
		depths[e.ID] = d
	}
	return depths
}

// deleteInWaves deletes targets deepest first. A wave starts only after the
// previous one has finished.
func (c *Cleaner) deleteInWaves(ctx context.Context, targets []target) Report {
	waves := map[int][]target{}
	for _, t := range targets {
		waves[t.depth] = append(waves[t.depth], t)
	}
	depths := make([]int, 0, len(waves))
	for d := range waves {
		depths = append(depths, d)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(depths)))

	var report Report
	for _, d := range depths {
		errs := c.fanOut(ctx, waves[d])
		for i, err := range errs {
			report.Attempted++
			if err != nil {
				report.Failed = append(report.Failed, Failure{Entry: waves[d][i].entry, Err: err})
				continue
			}
			report.Deleted++
		}
	}
	return report
}

// fanOut deletes every target concurrently and returns one error slot per
// target. Goroutines record their own outcome and never fail the group.
func (c *Cleaner) fanOut(ctx context.Context, targets []target) []error {
	errs := make([]error, len(targets))
	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, t := range targets {
		g.Go(func() error {
			errs[i] = c.deleteOne(ctx, t.entry)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

func (c *Cleaner) deleteOne(ctx context.Context, e tracker.Entry) (err error) {
	ctx, span := c.tracer.Start(ctx, "cleanup.delete", trace.WithAttributes(
		attribute.String("kind", string(e.Kind)),
		attribute.String("id", e.ID),
		attribute.String("name", e.Name),
	))
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic deleting %s: %v", e, r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.logger.Warn("Failed to delete %s: %v", e, err)
		} else {
			c.logger.Debug("Deleted %s", e)
		}
		if c.observe != nil {
			c.observe(string(e.Kind), err)
		}
		span.End()
	}()

	api, ok := c.apis[e.Kind]
	if !ok {
		return fmt.Errorf("no API for %s entries", e.Kind)
	}
	return api.Delete(ctx, e.ID)
}
