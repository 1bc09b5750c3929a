package models

import "time"

// Entity names a kind of data synchronized to Listrak.
type Entity string

const (
	EntityCustomer            Entity = "customer"
	EntityOrder               Entity = "order"
	EntityNewsletterRecipient Entity = "newsletter_recipient"
)

// Valid reports whether e is a known sync entity.
func (e Entity) Valid() bool {
	switch e {
	case EntityCustomer, EntityOrder, EntityNewsletterRecipient:
		return true
	default:
		return false
	}
}

// SyncJob is one page of a sync pass. It is consumed exactly once; a worker
// that receives a full page enqueues a successor with Offset advanced by Limit.
type SyncJob struct {
	ID         string    `json:"id"`
	Entity     Entity    `json:"entity"`
	ScopeID    string    `json:"scope_id"`
	Offset     int       `json:"offset"`
	Limit      int       `json:"limit"`
	EntityIDs  []string  `json:"entity_ids,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Next returns the continuation job for the following page.
func (j SyncJob) Next() SyncJob {
	next := j
	next.ID = ""
	next.Offset = j.Offset + j.Limit
	next.EnqueuedAt = time.Time{}
	return next
}

// Explicit reports whether the job targets a fixed entity set and therefore
// never continues.
func (j SyncJob) Explicit() bool {
	return len(j.EntityIDs) > 0
}
