package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"listraksync/internal/domain"
	"listraksync/internal/listrak"
	"listraksync/internal/logging"
	"listraksync/internal/mapper"
	"listraksync/internal/metrics"
	"listraksync/internal/models"

	"github.com/rs/zerolog"
)

// Sources are the host collaborators the dispatcher pages through.
type Sources struct {
	Scopes               domain.ScopeSource
	Customers            domain.CustomerSource
	Orders               domain.OrderSource
	NewsletterRecipients domain.NewsletterRecipientSource
}

// Dispatcher turns sync triggers into paged SyncJobs and handles those jobs
// on the worker side.
type Dispatcher struct {
	sources  Sources
	settings domain.SettingsProvider
	api      domain.ListrakAPI
	store    domain.FailedRequestStore
	queue    domain.JobQueue
	pageSize int
	logger   *zerolog.Logger
}

func New(
	sources Sources,
	settings domain.SettingsProvider,
	api domain.ListrakAPI,
	store domain.FailedRequestStore,
	queue domain.JobQueue,
	pageSize int,
	logger *zerolog.Logger,
) *Dispatcher {
	if pageSize <= 0 {
		pageSize = models.DefaultPageSize
	}
	return &Dispatcher{
		sources:  sources,
		settings: settings,
		api:      api,
		store:    store,
		queue:    queue,
		pageSize: pageSize,
		logger:   logging.Component(logger, "dispatcher"),
	}
}

// Summary reports a full-mode dispatch: scopes that got a job and scopes
// skipped with the reason.
type Summary struct {
	Dispatched []string          `json:"dispatched"`
	Skipped    map[string]string `json:"skipped,omitempty"`
}

// Dispatch starts a sync chain for one scope. A non-empty ids list syncs
// exactly those entities and never continues. Missing credentials or a
// disabled feature flag fail with models.ErrConfiguration.
func (d *Dispatcher) Dispatch(ctx context.Context, entity models.Entity, scopeID string, offset, limit int, ids []string) error {
	if !entity.Valid() {
		return fmt.Errorf("unknown sync entity %q", entity)
	}
	if err := d.CheckScope(entity, scopeID); err != nil {
		d.logger.Warn().Err(err).Str("entity", string(entity)).Str("scope_id", scopeID).Msg("sync skipped")
		return err
	}
	if limit <= 0 {
		limit = d.pageSize
	}
	if len(ids) > 0 {
		offset, limit = 0, len(ids)
	}
	if offset < 0 {
		offset = 0
	}

	job := models.SyncJob{Entity: entity, ScopeID: scopeID, Offset: offset, Limit: limit, EntityIDs: ids}
	if err := d.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueue %s sync for scope %q: %w", entity, scopeID, err)
	}
	d.logger.Info().
		Str("entity", string(entity)).
		Str("scope_id", scopeID).
		Int("offset", offset).
		Int("limit", limit).
		Int("ids", len(ids)).
		Msg("sync dispatched")
	return nil
}

// DispatchAll starts one chain per scope known to the host, each from the
// same offset and page size. Scopes that fail the configuration check are
// skipped and reported.
func (d *Dispatcher) DispatchAll(ctx context.Context, entity models.Entity, offset, limit int) (Summary, error) {
	summary := Summary{Skipped: map[string]string{}}
	if !entity.Valid() {
		return summary, fmt.Errorf("unknown sync entity %q", entity)
	}

	scopes, err := d.sources.Scopes.Scopes(ctx)
	if err != nil {
		return summary, fmt.Errorf("list scopes: %w", err)
	}
	for _, scope := range scopes {
		err := d.Dispatch(ctx, entity, scope.ID, offset, limit, nil)
		switch {
		case err == nil:
			summary.Dispatched = append(summary.Dispatched, scope.ID)
		case errors.Is(err, models.ErrConfiguration):
			summary.Skipped[scope.ID] = err.Error()
		default:
			return summary, err
		}
	}
	return summary, nil
}

func (d *Dispatcher) SyncCustomer(ctx context.Context, scopeID, id string) error {
	return d.Dispatch(ctx, models.EntityCustomer, scopeID, 0, 0, []string{id})
}

func (d *Dispatcher) SyncOrder(ctx context.Context, scopeID, id string) error {
	return d.Dispatch(ctx, models.EntityOrder, scopeID, 0, 0, []string{id})
}

func (d *Dispatcher) SyncNewsletterRecipient(ctx context.Context, scopeID, id string) error {
	return d.Dispatch(ctx, models.EntityNewsletterRecipient, scopeID, 0, 0, []string{id})
}

// CheckScope verifies that entity can be synced for scopeID.
func (d *Dispatcher) CheckScope(entity models.Entity, scopeID string) error {
	switch entity {
	case models.EntityCustomer:
		if !d.settings.Bool(models.SettingEnableCustomerSync, scopeID) {
			return fmt.Errorf("%w: customer sync is disabled for scope %q", models.ErrConfiguration, scopeID)
		}
		return d.requireCredentials(models.CredentialsData, scopeID)
	case models.EntityOrder:
		if !d.settings.Bool(models.SettingEnableOrderSync, scopeID) {
			return fmt.Errorf("%w: order sync is disabled for scope %q", models.ErrConfiguration, scopeID)
		}
		return d.requireCredentials(models.CredentialsData, scopeID)
	case models.EntityNewsletterRecipient:
		if err := d.requireCredentials(models.CredentialsEmail, scopeID); err != nil {
			return err
		}
		if d.settings.Get(models.SettingListID, scopeID) == "" {
			return fmt.Errorf("%w: no listrak list configured for scope %q", models.ErrConfiguration, scopeID)
		}
		return nil
	default:
		return fmt.Errorf("unknown sync entity %q", entity)
	}
}

func (d *Dispatcher) requireCredentials(kind models.CredentialKind, scopeID string) error {
	if !d.settings.HasCredentials(kind, scopeID) {
		return fmt.Errorf("%w: %s api credentials missing for scope %q", models.ErrConfiguration, kind, scopeID)
	}
	return nil
}

// Handle processes one page. The successor job is enqueued only when the
// source returned a full page and at least one entity mapped. Transport
// failures are buffered and flushed with the page; a flush failure fails
// this page only.
func (d *Dispatcher) Handle(ctx context.Context, job models.SyncJob) error {
	if job.Limit <= 0 {
		job.Limit = d.pageSize
	}
	log := d.logger.With().
		Str("job_id", job.ID).
		Str("entity", string(job.Entity)).
		Str("scope_id", job.ScopeID).
		Int("offset", job.Offset).
		Logger()

	batch := models.NewFailedRequestBatch()
	var (
		fetched, mapped int
		err             error
	)
	switch job.Entity {
	case models.EntityCustomer:
		fetched, mapped, err = d.customerPage(ctx, job, batch, &log)
	case models.EntityOrder:
		fetched, mapped, err = d.orderPage(ctx, job, batch, &log)
	case models.EntityNewsletterRecipient:
		fetched, mapped, err = d.newsletterPage(ctx, job, batch, &log)
	default:
		err = fmt.Errorf("unknown sync entity %q", job.Entity)
	}
	if err == nil && mapped > 0 && fetched == job.Limit && !job.Explicit() {
		if qerr := d.queue.Enqueue(ctx, job.Next()); qerr != nil {
			err = fmt.Errorf("enqueue continuation: %w", qerr)
		}
	}

	recorded := batch.Len()
	if ferr := d.store.Flush(ctx, batch); ferr != nil {
		err = errors.Join(err, ferr)
	} else {
		metrics.AddFailedRequests(recorded)
	}
	if err != nil {
		metrics.ObserveSyncPage(string(job.Entity), "error")
		return err
	}

	outcome := "ok"
	if mapped == 0 {
		outcome = "empty"
	}
	metrics.ObserveSyncPage(string(job.Entity), outcome)
	log.Info().Int("fetched", fetched).Int("mapped", mapped).Int("failed_requests", recorded).Msg("sync page handled")
	return nil
}

func (d *Dispatcher) customerPage(ctx context.Context, job models.SyncJob, batch *models.FailedRequestBatch, log *zerolog.Logger) (int, int, error) {
	page, err := d.sources.Customers.CustomersPage(ctx, job.ScopeID, job.EntityIDs, job.Offset, job.Limit)
	if err != nil {
		return 0, 0, fmt.Errorf("read customers page: %w", err)
	}
	records := make([]models.ListrakCustomer, 0, len(page))
	for _, c := range page {
		rec, err := mapper.Customer(c)
		if err != nil {
			log.Warn().Err(err).Str("customer_id", c.ID).Msg("customer skipped")
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return len(page), 0, nil
	}
	return len(page), len(records), d.send(ctx, listrak.CustomerImport, job.ScopeID, records, batch)
}

func (d *Dispatcher) orderPage(ctx context.Context, job models.SyncJob, batch *models.FailedRequestBatch, log *zerolog.Logger) (int, int, error) {
	page, err := d.sources.Orders.OrdersPage(ctx, job.ScopeID, job.EntityIDs, job.Offset, job.Limit)
	if err != nil {
		return 0, 0, fmt.Errorf("read orders page: %w", err)
	}
	records := make([]models.ListrakOrder, 0, len(page))
	for _, o := range page {
		rec, err := mapper.Order(o)
		if err != nil {
			log.Warn().Err(err).Str("order_id", o.ID).Msg("order skipped")
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return len(page), 0, nil
	}
	return len(page), len(records), d.send(ctx, listrak.OrderImport, job.ScopeID, records, batch)
}

// newsletterPage creates one contact per call; the contact endpoint takes a
// single contact.
func (d *Dispatcher) newsletterPage(ctx context.Context, job models.SyncJob, batch *models.FailedRequestBatch, log *zerolog.Logger) (int, int, error) {
	page, err := d.sources.NewsletterRecipients.NewsletterRecipientsPage(ctx, job.ScopeID, job.EntityIDs, job.Offset, job.Limit)
	if err != nil {
		return 0, 0, fmt.Errorf("read newsletter recipients page: %w", err)
	}

	fields := mapper.SegmentationFields{
		Salutation: d.settings.Get(models.SettingSalutationSegmentationFieldID, job.ScopeID),
		FirstName:  d.settings.Get(models.SettingFirstNameSegmentationFieldID, job.ScopeID),
		LastName:   d.settings.Get(models.SettingLastNameSegmentationFieldID, job.ScopeID),
	}
	listID := d.settings.Get(models.SettingListID, job.ScopeID)

	mapped := 0
	for _, r := range page {
		if r.Email == "" {
			log.Warn().Str("recipient_id", r.ID).Msg("newsletter recipient without email skipped")
			continue
		}
		body, err := json.Marshal(mapper.Contact(r, fields))
		if err != nil {
			log.Warn().Err(err).Str("recipient_id", r.ID).Msg("newsletter recipient skipped")
			continue
		}
		mapped++
		opts := models.RequestOptions{
			Segments:    []string{listID},
			Body:        body,
			ScopeID:     job.ScopeID,
			Credentials: models.CredentialsEmail,
		}
		if _, err := d.api.Request(ctx, listrak.ContactCreate, opts, batch); err != nil && !errors.Is(err, models.ErrTransport) {
			return len(page), mapped, err
		}
	}
	return len(page), mapped, nil
}

// send posts one page of records. Transport failures are already in the
// batch and do not fail the page.
func (d *Dispatcher) send(ctx context.Context, endpoint, scopeID string, records any, batch *models.FailedRequestBatch) error {
	body, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("%w: encode %s payload: %v", models.ErrMapping, endpoint, err)
	}
	opts := models.RequestOptions{Body: body, ScopeID: scopeID, Credentials: models.CredentialsData}
	if _, err := d.api.Request(ctx, endpoint, opts, batch); err != nil && !errors.Is(err, models.ErrTransport) {
		return err
	}
	return nil
}
