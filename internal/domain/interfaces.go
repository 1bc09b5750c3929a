package domain

import (
	"context"
	"time"

	"listraksync/internal/models"
)

// Host collaborators. The commerce platform owns these entities; the
// connector only pages through them. Pages are ordered by entity id; a
// non-empty ids list restricts the page to those entities.

type ScopeSource interface {
	Scopes(ctx context.Context) ([]models.Scope, error)
}

type CustomerSource interface {
	CustomersPage(ctx context.Context, scopeID string, ids []string, offset, limit int) ([]models.Customer, error)
}

type OrderSource interface {
	OrdersPage(ctx context.Context, scopeID string, ids []string, offset, limit int) ([]models.Order, error)
}

type NewsletterRecipientSource interface {
	NewsletterRecipientsPage(ctx context.Context, scopeID string, ids []string, offset, limit int) ([]models.NewsletterRecipient, error)
}

type ProductSource interface {
	ProductsPage(ctx context.Context, scopeID string, offset, limit int) ([]models.Product, error)
}

// SettingsProvider is the merged configuration contract: a key resolved for a
// scope with global fallback. An empty scopeID reads the global value.
type SettingsProvider interface {
	Get(name, scopeID string) string
	Bool(name, scopeID string) bool
	// AnyBool reports whether the flag is on globally or in any scope.
	AnyBool(name string) bool
	Credentials(kind models.CredentialKind, scopeID string) (clientID, clientSecret string)
	HasCredentials(kind models.CredentialKind, scopeID string) bool
}

// FailedRequestStore is the durable record of failed Listrak calls.
type FailedRequestStore interface {
	Flush(ctx context.Context, batch *models.FailedRequestBatch) error
	RemoveFailedRequest(ctx context.Context, id string) error
	RetryableFailedRequests(ctx context.Context) ([]models.FailedRequest, error)
	IncrementFailedRequestRetry(ctx context.Context, id string, expected int, response string, at time.Time) (bool, error)
}

// FailedRequestLister reads every record, exhausted ones included.
type FailedRequestLister interface {
	FailedRequests(ctx context.Context) ([]models.FailedRequest, error)
}

// TokenCache shares bearer tokens between worker processes. GetToken returns
// the token with its remaining lifetime; an empty token is a miss.
type TokenCache interface {
	GetToken(ctx context.Context, key string) (token string, ttl time.Duration, err error)
	SetToken(ctx context.Context, key, token string, ttl time.Duration) error
	DeleteToken(ctx context.Context, key string) error
}

// JobQueue carries SyncJobs between the dispatcher and workers.
type JobQueue interface {
	Enqueue(ctx context.Context, job models.SyncJob) error
	// Dequeue waits up to timeout for a job. ok is false when none arrived.
	Dequeue(ctx context.Context, timeout time.Duration) (job models.SyncJob, ok bool, err error)
	DeadLetter(ctx context.Context, job models.SyncJob, cause error) error
}

// ListrakAPI is the slice of the API client the dispatcher and retry engine use.
type ListrakAPI interface {
	Request(ctx context.Context, endpoint string, opts models.RequestOptions, batch *models.FailedRequestBatch) ([]byte, error)
	Retry(ctx context.Context, record *models.FailedRequest) ([]byte, error)
}
