package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mke2e/internal/config"
	"mke2e/internal/reporting"
	"mke2e/internal/suite"
	"mke2e/pkg/logging"
)

const categoriesFeature = `@categories
Feature: Category management

  Background:
    Given the user is on the Category Management page

  @smoke
  Scenario: Create a top-level category
    When I create a category with name "Food", icon "Utensils", type "EXPENSE"
    Then the category "Food" should be created successfully

  Rule: names are unique

    Scenario Outline: Duplicate names
      Given a category "<name>" with icon "Grid" and type "EXPENSE" exists
      When I create another category with name "<name>", icon "Grid", type "EXPENSE"
      Then the category should not be created

      Examples:
        | name |
        | Rent |
`

func writeFeatures(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "categories.feature"), []byte(categoriesFeature), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("not a feature"), 0644))
	return dir
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.GetDefaultConfig()
	cfg.Run.Paths = []string{writeFeatures(t)}
	cfg.Artifacts.ReportsDir = t.TempDir()
	return cfg
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return text.Text
}

func noRun(context.Context, RunRequest) (suite.Outcome, error) {
	return suite.Outcome{}, errors.New("not expected")
}

func TestTools(t *testing.T) {
	s := New(config.GetDefaultConfig(), noRun, "test", logging.Discard())
	var names []string
	for _, tool := range s.Tools() {
		names = append(names, tool.Tool.Name)
		assert.NotNil(t, tool.Handler)
	}
	assert.Equal(t, []string{"e2e_list_features", "e2e_run_suite", "e2e_last_report"}, names)
	assert.NotNil(t, s.MCPServer())
}

func TestListFeatures(t *testing.T) {
	s := New(testConfig(t), noRun, "test", logging.Discard())

	res, err := s.handleListFeatures(context.Background(), callRequest(nil))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	var features []FeatureInfo
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &features))
	require.Len(t, features, 1)
	f := features[0]
	assert.Equal(t, "Category management", f.Name)
	assert.Equal(t, []string{"categories"}, f.Tags)
	require.Len(t, f.Scenarios, 2)
	assert.Equal(t, ScenarioInfo{Name: "Create a top-level category", Tags: []string{"smoke"}, StepCount: 2}, f.Scenarios[0])
	assert.Equal(t, "Duplicate names", f.Scenarios[1].Name)
	assert.True(t, f.Scenarios[1].Outline)
}

func TestListFeatures_MissingPath(t *testing.T) {
	s := New(testConfig(t), noRun, "test", logging.Discard())

	res, err := s.handleListFeatures(context.Background(), callRequest(map[string]any{"path": filepath.Join(t.TempDir(), "missing")}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestRunSuite_PassesOverridesAndKeepsResult(t *testing.T) {
	var got RunRequest
	run := func(_ context.Context, req RunRequest) (suite.Outcome, error) {
		got = req
		return suite.Outcome{Suite: reporting.SuiteResult{RunID: "run-1", Total: 2, Passed: 2}}, nil
	}
	s := New(testConfig(t), run, "test", logging.Discard())

	res, err := s.handleRunSuite(context.Background(), callRequest(map[string]any{
		"path":        "features/categories.feature",
		"tags":        "@smoke",
		"workers":     float64(3),
		"browserless": true,
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))
	assert.Equal(t, RunRequest{Paths: []string{"features/categories.feature"}, Tags: "@smoke", Workers: 3, Browserless: true}, got)

	last, err := s.handleLastReport(context.Background(), callRequest(nil))
	require.NoError(t, err)
	var result reporting.SuiteResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, last)), &result))
	assert.Equal(t, "run-1", result.RunID)
}

func TestRunSuite_RejectsBadWorkers(t *testing.T) {
	s := New(testConfig(t), noRun, "test", logging.Discard())

	res, err := s.handleRunSuite(context.Background(), callRequest(map[string]any{"workers": float64(0)}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestRunSuite_OneRunAtATime(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	run := func(context.Context, RunRequest) (suite.Outcome, error) {
		close(started)
		<-release
		return suite.Outcome{}, nil
	}
	s := New(testConfig(t), run, "test", logging.Discard())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.handleRunSuite(context.Background(), callRequest(nil))
	}()
	<-started

	res, err := s.handleRunSuite(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "already in progress")

	close(release)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("first run did not finish")
	}
}

func TestRunSuite_RunError(t *testing.T) {
	s := New(testConfig(t), noRun, "test", logging.Discard())

	res, err := s.handleRunSuite(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "not expected")
}

func TestLastReport_FallsBackToReportsDir(t *testing.T) {
	cfg := testConfig(t)
	s := New(cfg, noRun, "test", logging.Discard())

	res, err := s.handleLastReport(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "No suite results available")

	reporting.NewJSONReporter(cfg.Artifacts.ReportsDir, logging.Discard()).
		ReportSuiteResult(reporting.SuiteResult{RunID: "from-disk", Total: 1, Failed: 1})

	res, err = s.handleLastReport(context.Background(), callRequest(nil))
	require.NoError(t, err)
	var result reporting.SuiteResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &result))
	assert.Equal(t, "from-disk", result.RunID)
	assert.Equal(t, 1, result.Failed)
}
