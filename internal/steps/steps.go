// Package steps binds the Gherkin steps of the Money Keeper features to the
// use cases.
//
// Steps find their scenario's World in the context godog hands them. Action
// steps ("When I create ...") record the use case result on the World and
// only fail on harness problems; assertion steps ("Then ...") inspect the
// recorded result and the application. Entity names written in a feature are
// suffixed with a per-scenario token, so parallel scenarios never collide.
package steps

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cucumber/godog"

	"mke2e/internal/tracker"
	"mke2e/internal/usecase"
	"mke2e/internal/world"
)

// ErrNoWorld is returned by a step that runs without a scenario World.
var ErrNoWorld = errors.New("no scenario world in context")

// ErrNoBrowser is returned by a UI step when the scenario has no browser
// session.
var ErrNoBrowser = errors.New("scenario has no browser session")

// Register binds every step to sc.
func Register(sc *godog.ScenarioContext) {
	registerCommon(sc)
	registerAccounts(sc)
	registerCategories(sc)
}

func current(ctx context.Context) (*world.World, error) {
	w, ok := world.FromContext(ctx)
	if !ok {
		return nil, ErrNoWorld
	}
	return w, nil
}

// tableMap reads a two-column table into a map. A header row is kept as an
// ordinary row; callers ignore keys they do not know.
func tableMap(table *godog.Table) (map[string]string, error) {
	if table == nil {
		return nil, errors.New("step needs a data table")
	}
	out := make(map[string]string, len(table.Rows))
	for i, row := range table.Rows {
		if len(row.Cells) != 2 {
			return nil, fmt.Errorf("table row %d has %d cells, want 2", i+1, len(row.Cells))
		}
		out[strings.TrimSpace(row.Cells[0].Value)] = strings.TrimSpace(row.Cells[1].Value)
	}
	return out, nil
}

func registerCommon(sc *godog.ScenarioContext) {
	sc.Step(`^the operation should succeed$`, theOperationShouldSucceed)
	sc.Step(`^the result should be a "(success|validation_error|domain_error|conflict_error|unknown_error)"$`, theResultShouldBe)
	sc.Step(`^the error message should contain "([^"]*)"$`, theErrorMessageShouldContain)
	sc.Step(`^(\d+) (account|category|categories|accounts) should be tracked for cleanup$`, entitiesShouldBeTracked)
}

func theOperationShouldSucceed(ctx context.Context) error {
	w, err := current(ctx)
	if err != nil {
		return err
	}
	if !w.LastResult.IsSuccess() {
		return fmt.Errorf("expected success, got %s", w.LastResult)
	}
	return nil
}

func theResultShouldBe(ctx context.Context, kind string) error {
	w, err := current(ctx)
	if err != nil {
		return err
	}
	if w.LastResult.Kind != usecase.Kind(kind) {
		return fmt.Errorf("expected %s, got %s", kind, w.LastResult)
	}
	return nil
}

func theErrorMessageShouldContain(ctx context.Context, fragment string) error {
	w, err := current(ctx)
	if err != nil {
		return err
	}
	if w.LastResult.IsSuccess() {
		return fmt.Errorf("expected a failure mentioning %q, got success", fragment)
	}
	if !containsFold(w.LastResult.Message, fragment) {
		return fmt.Errorf("expected message containing %q, got %q", fragment, w.LastResult.Message)
	}
	return nil
}

func entitiesShouldBeTracked(ctx context.Context, n int, kind string) error {
	w, err := current(ctx)
	if err != nil {
		return err
	}
	want := trackerKind(kind)
	got := 0
	for _, e := range w.Tracker.Entries() {
		if e.Kind == want {
			got++
		}
	}
	if got != n {
		return fmt.Errorf("expected %d tracked %s entries, got %d", n, want, got)
	}
	return nil
}

func trackerKind(word string) tracker.Kind {
	if strings.HasPrefix(word, "account") {
		return tracker.KindAccount
	}
	return tracker.KindCategory
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
