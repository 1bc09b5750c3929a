package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"listraksync/internal/config"
	"listraksync/internal/database"
	"listraksync/internal/domain"
	"listraksync/internal/listrak"
	"listraksync/internal/models"
	"listraksync/internal/queue"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiCall struct {
	endpoint string
	opts     models.RequestOptions
}

type fakeAPI struct {
	mu    sync.Mutex
	calls []apiCall
	fail  error
}

func (f *fakeAPI) Request(_ context.Context, endpoint string, opts models.RequestOptions, batch *models.FailedRequestBatch) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, apiCall{endpoint: endpoint, opts: opts})
	if f.fail != nil {
		if errors.Is(f.fail, models.ErrTransport) {
			batch.Save("/path", http.MethodPost, opts, f.fail.Error())
		}
		return nil, f.fail
	}
	return []byte(`{}`), nil
}

func (f *fakeAPI) Retry(context.Context, *models.FailedRequest) ([]byte, error) {
	return nil, errors.New("not used")
}

type failingStore struct {
	*database.DB
}

func (failingStore) Flush(context.Context, *models.FailedRequestBatch) error {
	return fmt.Errorf("%w: disk full", models.ErrPersistence)
}

type fixture struct {
	db       *database.DB
	api      *fakeAPI
	queue    *queue.MemoryQueue
	settings config.Settings
	d        *Dispatcher
}

func newFixture(t *testing.T, pageSize int) *fixture {
	t.Helper()
	db, err := database.NewDB(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	settings := config.Settings{
		Global: map[string]string{
			models.SettingDataClientID:       "data-id",
			models.SettingDataClientSecret:   "data-secret",
			models.SettingEmailClientID:      "email-id",
			models.SettingEmailClientSecret:  "email-secret",
			models.SettingListID:             "42",
			models.SettingEnableCustomerSync: "true",
			models.SettingEnableOrderSync:    "true",
		},
		Scopes: map[string]map[string]string{},
	}

	f := &fixture{db: db, api: &fakeAPI{}, queue: queue.NewMemoryQueue(64), settings: settings}
	f.d = f.build(db, pageSize)
	return f
}

func (f *fixture) build(store domain.FailedRequestStore, pageSize int) *Dispatcher {
	logger := zerolog.Nop()
	sources := Sources{Scopes: f.db, Customers: f.db, Orders: f.db, NewsletterRecipients: f.db}
	return New(sources, f.settings, f.api, store, f.queue, pageSize, &logger)
}

func (f *fixture) seedCustomers(t *testing.T, scopeID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, f.db.UpsertCustomer(context.Background(), models.Customer{
			ID:      fmt.Sprintf("%s-c%04d", scopeID, i),
			ScopeID: scopeID,
			Email:   fmt.Sprintf("c%d@example.com", i),
		}))
	}
}

// drain handles queued jobs until the queue stays empty and returns how many
// jobs were handled.
func (f *fixture) drain(t *testing.T) int {
	t.Helper()
	handled := 0
	for {
		job, ok, err := f.queue.Dequeue(context.Background(), 10*time.Millisecond)
		require.NoError(t, err)
		if !ok {
			return handled
		}
		handled++
		require.NoError(t, f.d.Handle(context.Background(), job))
	}
}

func TestPagingIssuesOneCallPerPage(t *testing.T) {
	const limit = 100
	for _, n := range []int{0, 1, 99, 100, 101, 250} {
		t.Run(fmt.Sprintf("N=%d", n), func(t *testing.T) {
			f := newFixture(t, limit)
			f.seedCustomers(t, "s1", n)

			require.NoError(t, f.d.Dispatch(context.Background(), models.EntityCustomer, "s1", 0, limit, nil))
			handled := f.drain(t)

			pages := (n + limit - 1) / limit
			assert.Len(t, f.api.calls, pages)

			// a full last page costs one extra empty job
			wantJobs := pages
			if n%limit == 0 {
				wantJobs++
			}
			assert.Equal(t, wantJobs, handled)

			seen := map[string]bool{}
			for _, call := range f.api.calls {
				var records []models.ListrakCustomer
				require.NoError(t, json.Unmarshal(call.opts.Body, &records))
				for _, r := range records {
					assert.False(t, seen[r.Email], "customer sent twice: %s", r.Email)
					seen[r.Email] = true
				}
			}
			assert.Len(t, seen, n)
		})
	}
}

func TestHandleExplicitIDsNeverContinue(t *testing.T) {
	f := newFixture(t, 1)
	f.seedCustomers(t, "s1", 3)

	require.NoError(t, f.d.SyncCustomer(context.Background(), "s1", "s1-c0001"))
	assert.Equal(t, 1, f.drain(t))
	require.Len(t, f.api.calls, 1)

	var records []models.ListrakCustomer
	require.NoError(t, json.Unmarshal(f.api.calls[0].opts.Body, &records))
	require.Len(t, records, 1)
	assert.Equal(t, "c1@example.com", records[0].Email)
}

func TestHandleZeroMappedStops(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		require.NoError(t, f.db.UpsertCustomer(ctx, models.Customer{ID: fmt.Sprintf("c%d", i), ScopeID: "s1"}))
	}

	require.NoError(t, f.d.Handle(ctx, models.SyncJob{Entity: models.EntityCustomer, ScopeID: "s1", Limit: 2}))
	assert.Empty(t, f.api.calls)
	n, _ := f.queue.Len(ctx)
	assert.Equal(t, int64(0), n)
}

func TestHandleSkipsUnmappableEntities(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	require.NoError(t, f.db.UpsertOrder(ctx, models.Order{ID: "o1", ScopeID: "s1", OrderNumber: "1", Customer: models.OrderCustomer{Email: "a@b.c"}}))
	require.NoError(t, f.db.UpsertOrder(ctx, models.Order{ID: "o2", ScopeID: "s1", OrderNumber: ""}))

	require.NoError(t, f.d.Handle(ctx, models.SyncJob{Entity: models.EntityOrder, ScopeID: "s1", Limit: 10}))
	require.Len(t, f.api.calls, 1)
	assert.Equal(t, listrak.OrderImport, f.api.calls[0].endpoint)

	var records []models.ListrakOrder
	require.NoError(t, json.Unmarshal(f.api.calls[0].opts.Body, &records))
	assert.Len(t, records, 1)
}

func TestHandleTransportFailureFlushedAndContinues(t *testing.T) {
	f := newFixture(t, 2)
	f.seedCustomers(t, "s1", 3)
	f.api.fail = fmt.Errorf("%w: http 503", models.ErrTransport)
	ctx := context.Background()

	require.NoError(t, f.d.Dispatch(ctx, models.EntityCustomer, "s1", 0, 2, nil))
	assert.Equal(t, 2, f.drain(t))

	recs, err := f.db.FailedRequests(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	for _, rec := range recs {
		assert.Equal(t, 1, rec.RetryCount)
		assert.Equal(t, "s1", rec.Options.ScopeID)
	}
}

func TestHandleAuthFailureFailsPage(t *testing.T) {
	f := newFixture(t, 2)
	f.seedCustomers(t, "s1", 2)
	f.api.fail = &listrak.AuthError{ClientID: "data-id", Err: errors.New("invalid_client")}
	ctx := context.Background()

	err := f.d.Handle(ctx, models.SyncJob{Entity: models.EntityCustomer, ScopeID: "s1", Limit: 2})
	assert.ErrorIs(t, err, models.ErrAuth)
	n, _ := f.queue.Len(ctx)
	assert.Equal(t, int64(0), n)

	recs, err := f.db.FailedRequests(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestHandlePersistenceFailureFailsOnlyThisPage(t *testing.T) {
	f := newFixture(t, 2)
	f.seedCustomers(t, "s1", 3)
	f.api.fail = fmt.Errorf("%w: http 500", models.ErrTransport)
	d := f.build(failingStore{f.db}, 2)
	ctx := context.Background()

	err := d.Handle(ctx, models.SyncJob{Entity: models.EntityCustomer, ScopeID: "s1", Limit: 2})
	assert.ErrorIs(t, err, models.ErrPersistence)

	// the next page is still dispatched
	next, ok, err := f.queue.Dequeue(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, next.Offset)
}

func TestHandleNewsletterRecipients(t *testing.T) {
	f := newFixture(t, 10)
	f.settings.Global[models.SettingFirstNameSegmentationFieldID] = "7"
	ctx := context.Background()
	require.NoError(t, f.db.UpsertNewsletterRecipient(ctx, models.NewsletterRecipient{ID: "n1", ScopeID: "s1", Email: "a@b.c", Status: models.NewsletterDirect, FirstName: "Ann"}))
	require.NoError(t, f.db.UpsertNewsletterRecipient(ctx, models.NewsletterRecipient{ID: "n2", ScopeID: "s1", Email: "d@e.f", Status: models.NewsletterOptIn}))

	require.NoError(t, f.d.Handle(ctx, models.SyncJob{Entity: models.EntityNewsletterRecipient, ScopeID: "s1", Limit: 10}))
	require.Len(t, f.api.calls, 2)

	call := f.api.calls[0]
	assert.Equal(t, listrak.ContactCreate, call.endpoint)
	assert.Equal(t, []string{"42"}, call.opts.Segments)
	assert.Equal(t, models.CredentialsEmail, call.opts.Credentials)

	var contact models.ListrakContact
	require.NoError(t, json.Unmarshal(call.opts.Body, &contact))
	assert.Equal(t, "Subscribed", contact.SubscriptionState)
	assert.Equal(t, []models.SegmentationFieldValue{{SegmentationFieldID: "7", Value: "Ann"}}, contact.SegmentationFieldValues)
}

func TestDispatchConfiguration(t *testing.T) {
	ctx := context.Background()

	t.Run("MissingCredentials", func(t *testing.T) {
		f := newFixture(t, 10)
		delete(f.settings.Global, models.SettingDataClientSecret)

		err := f.d.Dispatch(ctx, models.EntityOrder, "s1", 0, 0, nil)
		assert.ErrorIs(t, err, models.ErrConfiguration)
		n, _ := f.queue.Len(ctx)
		assert.Equal(t, int64(0), n)
	})

	t.Run("FlagDisabledForScope", func(t *testing.T) {
		f := newFixture(t, 10)
		f.settings.Scopes["s2"] = map[string]string{models.SettingEnableOrderSync: "false"}

		assert.ErrorIs(t, f.d.Dispatch(ctx, models.EntityOrder, "s2", 0, 0, nil), models.ErrConfiguration)
		assert.NoError(t, f.d.Dispatch(ctx, models.EntityOrder, "s1", 0, 0, nil))
	})

	t.Run("NewsletterNeedsList", func(t *testing.T) {
		f := newFixture(t, 10)
		delete(f.settings.Global, models.SettingListID)
		assert.ErrorIs(t, f.d.SyncNewsletterRecipient(ctx, "s1", "n1"), models.ErrConfiguration)
	})

	t.Run("UnknownEntity", func(t *testing.T) {
		f := newFixture(t, 10)
		err := f.d.Dispatch(ctx, models.Entity("product"), "s1", 0, 0, nil)
		require.Error(t, err)
		assert.NotErrorIs(t, err, models.ErrConfiguration)
	})

	t.Run("DefaultLimit", func(t *testing.T) {
		f := newFixture(t, 25)
		require.NoError(t, f.d.Dispatch(ctx, models.EntityCustomer, "s1", 0, 0, nil))
		job, ok, err := f.queue.Dequeue(ctx, 10*time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 25, job.Limit)
	})
}

func TestDispatchAll(t *testing.T) {
	ctx := context.Background()

	t.Run("SkipsMisconfiguredScopes", func(t *testing.T) {
		f := newFixture(t, 10)
		require.NoError(t, f.db.UpsertScope(ctx, models.Scope{ID: "s1", Name: "Storefront"}))
		require.NoError(t, f.db.UpsertScope(ctx, models.Scope{ID: "s2", Name: "Wholesale"}))
		f.settings.Scopes["s2"] = map[string]string{models.SettingEnableCustomerSync: "0"}

		summary, err := f.d.DispatchAll(ctx, models.EntityCustomer, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"s1"}, summary.Dispatched)
		assert.Contains(t, summary.Skipped, "s2")

		n, _ := f.queue.Len(ctx)
		assert.Equal(t, int64(1), n)

		job, ok, err := f.queue.Dequeue(ctx, 10*time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 0, job.Offset)
		assert.Equal(t, 10, job.Limit)
	})

	t.Run("OffsetAndLimitForwarded", func(t *testing.T) {
		f := newFixture(t, 10)
		require.NoError(t, f.db.UpsertScope(ctx, models.Scope{ID: "s1", Name: "Storefront"}))
		require.NoError(t, f.db.UpsertScope(ctx, models.Scope{ID: "s2", Name: "Wholesale"}))

		summary, err := f.d.DispatchAll(ctx, models.EntityCustomer, 200, 50)
		require.NoError(t, err)
		assert.Len(t, summary.Dispatched, 2)

		for range summary.Dispatched {
			job, ok, err := f.queue.Dequeue(ctx, 10*time.Millisecond)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, 200, job.Offset)
			assert.Equal(t, 50, job.Limit)
		}
	})
}
