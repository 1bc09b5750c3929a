package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MaxRetryCount caps how many attempts a failed request gets, the original
// call included.
const MaxRetryCount = 3

// CredentialKind selects which Listrak credential pair signs a request.
type CredentialKind string

const (
	CredentialsData  CredentialKind = "data"
	CredentialsEmail CredentialKind = "email"
)

// RequestOptions is everything needed to replay a call later. It is stored as
// JSON in failed_requests.options. Segments only shape the endpoint path,
// which the record keeps already resolved.
type RequestOptions struct {
	Segments    []string          `json:"-"`
	Body        json.RawMessage   `json:"body,omitempty"`
	Query       map[string]string `json:"query,omitempty"`
	ScopeID     string            `json:"scope_id,omitempty"`
	Credentials CredentialKind    `json:"credentials"`
}

// FailedRequest is a Listrak call that failed and may be replayed by the
// retry sweep.
type FailedRequest struct {
	ID          string         `json:"id"`
	Method      string         `json:"method"`
	Endpoint    string         `json:"endpoint"`
	Options     RequestOptions `json:"options"`
	Response    string         `json:"response"`
	RetryCount  int            `json:"retry_count"`
	LastRetryAt *time.Time     `json:"last_retry_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Retryable reports whether the sweep may attempt this record again.
func (r *FailedRequest) Retryable() bool {
	return r.RetryCount < MaxRetryCount
}

// FailedRequestBatch buffers failures of one sync pass so they are persisted
// with a single write. A nil batch means there is no durable context and
// failures are only logged.
type FailedRequestBatch struct {
	records []FailedRequest
	now     func() time.Time
}

func NewFailedRequestBatch() *FailedRequestBatch {
	return &FailedRequestBatch{now: time.Now}
}

// Save buffers a new record. Nothing is written until the store flushes the
// batch.
func (b *FailedRequestBatch) Save(endpoint, method string, options RequestOptions, response string) FailedRequest {
	now := time.Now()
	if b.now != nil {
		now = b.now()
	}
	rec := FailedRequest{
		ID:          uuid.NewString(),
		Method:      method,
		Endpoint:    endpoint,
		Options:     options,
		Response:    response,
		RetryCount:  1,
		LastRetryAt: &now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	b.records = append(b.records, rec)
	return rec
}

// Records returns a copy of the buffered records.
func (b *FailedRequestBatch) Records() []FailedRequest {
	if b == nil {
		return nil
	}
	out := make([]FailedRequest, len(b.records))
	copy(out, b.records)
	return out
}

func (b *FailedRequestBatch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.records)
}

func (b *FailedRequestBatch) Reset() {
	if b == nil {
		return
	}
	b.records = b.records[:0]
}
