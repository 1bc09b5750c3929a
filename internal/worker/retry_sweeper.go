package worker

import (
	"context"
	"fmt"
	"time"

	"listraksync/internal/domain"
	"listraksync/internal/logging"
	"listraksync/internal/models"

	"github.com/rs/zerolog"
)

// SweepReport summarizes one retry sweep.
type SweepReport struct {
	Skipped   bool `json:"skipped"`
	Attempted int  `json:"attempted"`
	Succeeded int  `json:"succeeded"`
	Failed    int  `json:"failed"`
}

// RetrySweeper replays failed requests on a fixed interval.
type RetrySweeper struct {
	store    domain.FailedRequestStore
	api      domain.ListrakAPI
	settings domain.SettingsProvider
	interval time.Duration
	logger   *zerolog.Logger
}

func NewRetrySweeper(store domain.FailedRequestStore, api domain.ListrakAPI, settings domain.SettingsProvider, interval time.Duration, logger *zerolog.Logger) *RetrySweeper {
	if interval <= 0 {
		interval = models.RetrySweepInterval * time.Second
	}
	return &RetrySweeper{
		store:    store,
		api:      api,
		settings: settings,
		interval: interval,
		logger:   logging.Component(logger, "retry_sweeper"),
	}
}

// Start sweeps on every tick until ctx is done.
func (s *RetrySweeper) Start(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("retry sweeper started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("retry sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error().Err(err).Msg("retry sweep failed")
			}
		}
	}
}

// Sweep retries every record below the retry cap, each independently. It
// does nothing unless order or customer sync is enabled globally or for at
// least one scope; the flags are read once per sweep, not per record.
func (s *RetrySweeper) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	if !s.settings.AnyBool(models.SettingEnableOrderSync) && !s.settings.AnyBool(models.SettingEnableCustomerSync) {
		report.Skipped = true
		s.logger.Debug().Msg("retry sweep skipped, order and customer sync disabled")
		return report, nil
	}

	records, err := s.store.RetryableFailedRequests(ctx)
	if err != nil {
		return report, fmt.Errorf("load retryable requests: %w", err)
	}

	for i := range records {
		if ctx.Err() != nil {
			break
		}
		rec := &records[i]
		report.Attempted++
		if _, err := s.api.Retry(ctx, rec); err != nil {
			report.Failed++
			s.logger.Warn().Err(err).
				Str("failed_request_id", rec.ID).
				Str("endpoint", rec.Endpoint).
				Int("retry_count", rec.RetryCount).
				Msg("retry failed")
			continue
		}
		report.Succeeded++
	}

	s.logger.Info().
		Int("attempted", report.Attempted).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Msg("retry sweep finished")
	return report, ctx.Err()
}
