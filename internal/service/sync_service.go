package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"listraksync/internal/config"
	"listraksync/internal/dispatcher"
	"listraksync/internal/domain"
	"listraksync/internal/feed"
	"listraksync/internal/logging"
	"listraksync/internal/models"
	"listraksync/internal/worker"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Result is what a trigger reports back to its invoker.
type Result struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason"`
}

func ok(format string, args ...any) Result {
	return Result{OK: true, Reason: fmt.Sprintf(format, args...)}
}

func failed(err error) Result {
	return Result{OK: false, Reason: err.Error()}
}

type Dispatcher interface {
	Dispatch(ctx context.Context, entity models.Entity, scopeID string, offset, limit int, ids []string) error
	DispatchAll(ctx context.Context, entity models.Entity, offset, limit int) (dispatcher.Summary, error)
}

type Sweeper interface {
	Sweep(ctx context.Context) (worker.SweepReport, error)
}

type ReportWriter interface {
	Export(ctx context.Context, path string) (int, error)
}

// SyncService is the trigger surface shared by the CLI and the HTTP API.
// An empty scope id means every scope, each starting at the same offset.
type SyncService struct {
	dispatcher Dispatcher
	exporter   *feed.Exporter
	sweeper    Sweeper
	reports    ReportWriter
	settings   domain.SettingsProvider
	feed       config.FeedConfig
	localFs    afero.Fs
	logger     *zerolog.Logger
}

func NewSyncService(
	d Dispatcher,
	exporter *feed.Exporter,
	sweeper Sweeper,
	reports ReportWriter,
	settings domain.SettingsProvider,
	feedCfg config.FeedConfig,
	localFs afero.Fs,
	logger *zerolog.Logger,
) *SyncService {
	if localFs == nil {
		localFs = afero.NewOsFs()
	}
	return &SyncService{
		dispatcher: d,
		exporter:   exporter,
		sweeper:    sweeper,
		reports:    reports,
		settings:   settings,
		feed:       feedCfg,
		localFs:    localFs,
		logger:     logging.Component(logger, "sync_service"),
	}
}

func (s *SyncService) SyncCustomers(ctx context.Context, scopeID string, offset, limit int) Result {
	return s.sync(ctx, models.EntityCustomer, scopeID, offset, limit)
}

func (s *SyncService) SyncOrders(ctx context.Context, scopeID string) Result {
	return s.sync(ctx, models.EntityOrder, scopeID, 0, 0)
}

func (s *SyncService) SyncNewsletterRecipients(ctx context.Context, scopeID string) Result {
	return s.sync(ctx, models.EntityNewsletterRecipient, scopeID, 0, 0)
}

func (s *SyncService) sync(ctx context.Context, entity models.Entity, scopeID string, offset, limit int) Result {
	if scopeID != "" {
		if err := s.dispatcher.Dispatch(ctx, entity, scopeID, offset, limit, nil); err != nil {
			return failed(err)
		}
		return ok("%s sync dispatched for scope %s", entity, scopeID)
	}

	summary, err := s.dispatcher.DispatchAll(ctx, entity, offset, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("entity", string(entity)).Msg("full sync dispatch failed")
		return failed(err)
	}
	if len(summary.Dispatched) == 0 {
		if len(summary.Skipped) == 0 {
			return Result{OK: false, Reason: "no eligible scopes"}
		}
		return Result{OK: false, Reason: "no eligible scopes: " + describeSkipped(summary.Skipped)}
	}
	reason := fmt.Sprintf("%s sync dispatched for %d scope(s)", entity, len(summary.Dispatched))
	if len(summary.Skipped) > 0 {
		reason += "; skipped " + describeSkipped(summary.Skipped)
	}
	return Result{OK: true, Reason: reason}
}

// SyncProducts builds the product feed and delivers it to the local feed
// directory or to the Listrak FTP server.
func (s *SyncService) SyncProducts(ctx context.Context, scopeID string, limit int, local bool) Result {
	var transport feed.Transport
	if local {
		transport = feed.NewLocalTransport(s.localFs, s.feed.LocalDir)
	} else {
		ftpTransport, err := feed.NewFTPTransport(s.settings, scopeID, s.feed.RemoteDir, s.logger)
		if err != nil {
			return failed(err)
		}
		transport = ftpTransport
	}

	rows, err := s.exporter.WithPageSize(limit).Export(ctx, scopeID, transport)
	if err != nil {
		s.logger.Error().Err(err).Str("scope_id", scopeID).Msg("product feed export failed")
		return failed(err)
	}
	if rows == 0 {
		return Result{OK: false, Reason: "no eligible products"}
	}
	return ok("product feed written with %d products", rows)
}

func (s *SyncService) RetryFailedRequests(ctx context.Context) Result {
	report, err := s.sweeper.Sweep(ctx)
	if err != nil {
		return failed(err)
	}
	if report.Skipped {
		return Result{OK: false, Reason: "order and customer sync are disabled"}
	}
	return ok("retried %d failed request(s): %d succeeded, %d failed", report.Attempted, report.Succeeded, report.Failed)
}

func (s *SyncService) ExportFailedRequests(ctx context.Context, path string) Result {
	if path == "" {
		return failed(errors.New("report path is required"))
	}
	n, err := s.reports.Export(ctx, path)
	if err != nil {
		return failed(err)
	}
	return ok("%d failed request(s) written to %s", n, path)
}

func describeSkipped(skipped map[string]string) string {
	ids := make([]string, 0, len(skipped))
	for id := range skipped {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s (%s)", id, skipped[id]))
	}
	return strings.Join(parts, ", ")
}
