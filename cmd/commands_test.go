package cmd

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mke2e/internal/adapters/rest"
	"mke2e/internal/config"
	"mke2e/internal/fakeapi"
	"mke2e/internal/mcpserver"
	"mke2e/internal/ports"
	"mke2e/internal/tracker"
	"mke2e/pkg/logging"
)

func TestPrefixMatcher(t *testing.T) {
	match := prefixMatcher([]string{"Food_", "", "Savings_"}, false)
	assert.True(t, match(tracker.KindCategory, "Food_1700000000"))
	assert.True(t, match(tracker.KindAccount, "Savings_1"))
	assert.False(t, match(tracker.KindAccount, "Checking"), "an empty prefix matches nothing")

	all := prefixMatcher(nil, true)
	assert.True(t, all(tracker.KindAccount, "anything"))
}

func fakeBackend(t *testing.T) (*fakeapi.Server, map[tracker.Kind]ports.EntityAPI) {
	t.Helper()
	backend := fakeapi.New(logging.Discard())
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)
	client := rest.NewClient(rest.Options{BaseURL: srv.URL + "/api", Logger: logging.Discard()})
	return backend, map[tracker.Kind]ports.EntityAPI{
		tracker.KindAccount:  client.Accounts(),
		tracker.KindCategory: client.Categories(),
	}
}

func seedBackend(t *testing.T, backend *fakeapi.Server) {
	t.Helper()
	backend.AddAccount(fakeapi.Account{Name: "Savings_1", Type: "Bank Account", Currency: "USD"})
	backend.AddAccount(fakeapi.Account{Name: "Household", Type: "Cash", Currency: "EUR"})
	parent := backend.AddCategory(fakeapi.Category{Name: "Food_1", Icon: "Utensils", Type: "EXPENSE"})
	parentID, err := strconv.ParseInt(parent, 10, 64)
	require.NoError(t, err)
	backend.AddCategory(fakeapi.Category{Name: "Food_2", Icon: "Pizza", Type: "EXPENSE", ParentID: &parentID})
	backend.AddCategory(fakeapi.Category{Name: "Salary", Icon: "Wallet", Type: "INCOME"})
}

func TestSweep_DeletesMatchingEntities(t *testing.T) {
	backend, apis := fakeBackend(t)
	seedBackend(t, backend)

	var out bytes.Buffer
	err := sweep(context.Background(), &out, apis, prefixMatcher([]string{"Food_", "Savings_"}, false), 1, logging.Discard())
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Deleted 3 of 3 entities")

	require.Len(t, backend.Accounts(), 1)
	assert.Equal(t, "Household", backend.Accounts()[0].Name)
	require.Len(t, backend.Categories(), 1)
	assert.Equal(t, "Salary", backend.Categories()[0].Name)
}

func TestSweep_ReportsFailedDeletions(t *testing.T) {
	backend, apis := fakeBackend(t)
	id := backend.AddAccount(fakeapi.Account{Name: "Savings_1", Type: "Bank Account", Currency: "USD"})
	backend.FailDelete(id)

	var out bytes.Buffer
	err := sweep(context.Background(), &out, apis, prefixMatcher(nil, true), 1, logging.Discard())
	require.Error(t, err)
	assert.Equal(t, ExitFailure, exitCode(err))
	assert.Contains(t, out.String(), "Savings_1")
}

func TestSweep_DryRunDeletesNothing(t *testing.T) {
	backend, apis := fakeBackend(t)
	seedBackend(t, backend)

	cleanDryRun = true
	t.Cleanup(func() { cleanDryRun = false })

	var out bytes.Buffer
	err := sweep(context.Background(), &out, apis, prefixMatcher([]string{"Food_"}, false), 1, logging.Discard())
	require.NoError(t, err)
	assert.Contains(t, out.String(), `category Food_1`)
	assert.Contains(t, out.String(), `category Food_2`)
	assert.NotContains(t, out.String(), "Salary")
	assert.Len(t, backend.Categories(), 3)
}

func TestServeFakeAPI(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- serveFakeAPI(ctx, listener, fakeapi.New(logging.Discard()).Handler(), func(addr string) {
			ready <- addr
		})
	}()

	addr := <-ready
	resp, err := http.Get("http://" + addr + "/api/accounts")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("fake API did not shut down")
	}
}

func TestApplyRunRequest(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Run.Tags = "@smoke"

	out := applyRunRequest(cfg, mcpserver.RunRequest{
		Paths:   []string{"features/accounts.feature"},
		Workers: 3,
	})
	assert.Equal(t, []string{"features/accounts.feature"}, out.Run.Paths)
	assert.Equal(t, "@smoke", out.Run.Tags, "tags are kept when the call sets none")
	assert.Equal(t, 3, out.Run.Workers)
	assert.Equal(t, "none", out.Run.Format)

	assert.Equal(t, []string{config.DefaultFeaturesPath}, cfg.Run.Paths, "the base config is not modified")
	assert.Equal(t, "pretty", cfg.Run.Format)
}
