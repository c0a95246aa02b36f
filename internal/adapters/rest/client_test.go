package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mke2e/internal/domain"
	"mke2e/internal/fakeapi"
	"mke2e/internal/ports"
	"mke2e/pkg/logging"
)

func newFakeClient(t *testing.T, retries int) (*Client, *fakeapi.Server) {
	t.Helper()
	fake := fakeapi.New(logging.Discard())
	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)
	return NewClient(Options{
		BaseURL: srv.URL + "/api/",
		Retries: retries,
		Logger:  logging.Discard(),
	}), fake
}

func TestAccountClient_CRUD(t *testing.T) {
	c, _ := newFakeClient(t, 0)
	accounts := c.Accounts()
	ctx := context.Background()

	id, err := accounts.CreateAccount(ctx, domain.Account{
		Name: "Checking", Type: domain.AccountTypeBank, InitialBalance: 100, Currency: "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, "1", id)

	got, err := accounts.GetAccount(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Checking", got.Name)
	assert.Equal(t, 100.0, got.InitialBalance)

	found, ok, err := accounts.FindAccountByName(ctx, "checking")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, id, found.ID)

	_, err = accounts.CreateAccount(ctx, domain.Account{Name: "Checking", Type: domain.AccountTypeCash, Currency: "USD"})
	assert.ErrorIs(t, err, ports.ErrConflict)

	_, err = accounts.CreateAccount(ctx, domain.Account{Name: "Bad", Type: "Piggy", Currency: "USD"})
	assert.ErrorIs(t, err, ports.ErrRejected)

	require.NoError(t, accounts.Delete(ctx, id))
	_, err = accounts.GetAccount(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAccountClient_DeleteMissingSucceeds(t *testing.T) {
	c, _ := newFakeClient(t, 0)
	assert.NoError(t, c.Accounts().Delete(context.Background(), "999"))
}

func TestAccountClient_DeleteByName(t *testing.T) {
	c, fake := newFakeClient(t, 0)
	fake.AddAccount(fakeapi.Account{Name: "Dup", Type: "Cash", Currency: "USD"})
	fake.AddAccount(fakeapi.Account{Name: "Other", Type: "Cash", Currency: "USD"})

	n, err := c.Accounts().DeleteByName(context.Background(), "dup")
	require.NoError(t, err)
	assert.Zero(t, n, "deletion matches the exact name")
	assert.Len(t, fake.Accounts(), 2)

	n, err = c.Accounts().DeleteByName(context.Background(), "Dup")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, fake.Accounts(), 1)
}

func TestCategoryClient_ParentsAndUpdate(t *testing.T) {
	c, fake := newFakeClient(t, 0)
	categories := c.Categories()
	ctx := context.Background()

	parentID, err := categories.CreateCategory(ctx, domain.Category{Name: "Food", Icon: "Grid", Type: domain.CategoryExpense})
	require.NoError(t, err)
	childID, err := categories.CreateCategory(ctx, domain.Category{Name: "Groceries", Icon: "Grid", Type: domain.CategoryExpense, ParentID: &parentID})
	require.NoError(t, err)

	entities, err := categories.List(ctx)
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, ports.Entity{ID: childID, Name: "Groceries", ParentID: parentID}, entities[1])

	child, err := categories.GetCategory(ctx, childID)
	require.NoError(t, err)
	child.ParentID = nil
	require.NoError(t, categories.UpdateCategory(ctx, child))

	stored := fake.Categories()
	assert.Nil(t, stored[1].ParentID)

	_, err = categories.CreateCategory(ctx, domain.Category{Name: "food", Icon: "Grid", Type: domain.CategoryExpense})
	assert.ErrorIs(t, err, ports.ErrConflict)
	assert.ErrorContains(t, err, domain.MsgCategoryNameExists)
}

func TestDelete_RetriesTransientFailure(t *testing.T) {
	c, fake := newFakeClient(t, 2)
	id := fake.AddAccount(fakeapi.Account{Name: "Flaky", Type: "Cash", Currency: "USD"})
	fake.FailDelete(id)

	require.NoError(t, c.Accounts().Delete(context.Background(), id))
	assert.Empty(t, fake.Accounts())
}

func TestDelete_FailureSurfacesWithoutRetries(t *testing.T) {
	c, fake := newFakeClient(t, 0)
	id := fake.AddAccount(fakeapi.Account{Name: "Flaky", Type: "Cash", Currency: "USD"})
	fake.FailDelete(id)

	err := c.Accounts().Delete(context.Background(), id)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
	assert.Contains(t, statusErr.Message, "injected failure")
}

func TestCreate_PostIsNotReplayedOnServerError(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		handler func(w http.ResponseWriter)
	}{
		{
			name:    "bad gateway",
			handler: func(w http.ResponseWriter) { w.WriteHeader(http.StatusBadGateway) },
		},
		{
			name:    "client timeout",
			timeout: 100 * time.Millisecond,
			handler: func(w http.ResponseWriter) {
				time.Sleep(300 * time.Millisecond)
				w.WriteHeader(http.StatusCreated)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				hits.Add(1)
				tt.handler(w)
			}))
			t.Cleanup(srv.Close)

			c := NewClient(Options{BaseURL: srv.URL, Retries: 3, Timeout: tt.timeout, Logger: logging.Discard()})
			_, err := c.Accounts().CreateAccount(context.Background(), domain.Account{Name: "x"})
			require.Error(t, err)
			assert.NotErrorIs(t, err, ports.ErrConflict)
			assert.Equal(t, int32(1), hits.Load())
		})
	}
}

func TestList_RetriesTransportTimeout(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			time.Sleep(300 * time.Millisecond)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Options{BaseURL: srv.URL, Retries: 2, Timeout: 100 * time.Millisecond, Logger: logging.Discard()})
	accounts, err := c.Accounts().ListAccounts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, accounts)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFlexID_StringIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"c-1","name":"Root","icon":"Grid","type":"INCOME","parentId":null},` +
			`{"id":"c-2","name":"Leaf","icon":"Grid","type":"INCOME","parentId":"c-1"}]`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Options{BaseURL: srv.URL, Logger: logging.Discard()})
	entities, err := c.Categories().List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []ports.Entity{
		{ID: "c-1", Name: "Root"},
		{ID: "c-2", Name: "Leaf", ParentID: "c-1"},
	}, entities)
}

func TestRateLimitHonoursContext(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://127.0.0.1:1", RequestsPerSecond: 0.001, Logger: logging.Discard()})
	// First token is available, the second would take far longer than the context allows.
	require.True(t, c.limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Accounts().List(ctx)
	assert.ErrorContains(t, err, "rate limit wait")
}
