package listrak

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"listraksync/internal/config"
	"listraksync/internal/domain"
	"listraksync/internal/metrics"
	"listraksync/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const maxResponseBody = 1 << 20

// Client talks to the Listrak Data and Email APIs. Failed calls are buffered
// into the caller's batch so the retry sweep can replay them.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *TokenProvider
	settings   domain.SettingsProvider
	store      domain.FailedRequestStore
	limiter    *rate.Limiter
	logger     *zerolog.Logger
	now        func() time.Time
}

func NewClient(
	cfg config.ListrakConfig,
	settings domain.SettingsProvider,
	tokens *TokenProvider,
	store domain.FailedRequestStore,
	logger *zerolog.Logger,
) *Client {
	limit := rate.Inf
	if cfg.RateLimit.RPS > 0 {
		limit = rate.Limit(cfg.RateLimit.RPS)
	}
	burst := cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tokens:     tokens,
		settings:   settings,
		store:      store,
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
		now:        time.Now,
	}
}

// Request calls the named endpoint. A transport failure is saved into batch
// when one is given and only logged otherwise; either way the error is
// returned. Configuration and auth failures never produce a record.
func (c *Client) Request(ctx context.Context, endpoint string, opts models.RequestOptions, batch *models.FailedRequestBatch) ([]byte, error) {
	ep, ok := Lookup(endpoint)
	if !ok {
		return nil, fmt.Errorf("%w: unknown listrak endpoint %q", models.ErrConfiguration, endpoint)
	}
	path := ep.ResolvePath(opts.Segments, opts.Query)

	body, err := c.do(ctx, endpoint, ep.Method, path, opts)
	if err == nil {
		return body, nil
	}

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		return nil, err
	}
	if batch == nil {
		c.logger.Error().Err(err).
			Str("endpoint", path).
			Str("scope_id", opts.ScopeID).
			Msg("listrak request failed, no batch to record it")
		return nil, err
	}
	rec := batch.Save(path, ep.Method, opts, reqErr.Response())
	c.logger.Warn().Err(err).
		Str("endpoint", path).
		Str("failed_request_id", rec.ID).
		Msg("listrak request failed, buffered for retry")
	return nil, err
}

// Retry replays a stored failed request. Success removes the record; any
// failure bumps its retry count, unless another sweep already did.
func (c *Client) Retry(ctx context.Context, record *models.FailedRequest) ([]byte, error) {
	if !record.Retryable() {
		return nil, fmt.Errorf("failed request %s reached %d attempts", record.ID, record.RetryCount)
	}

	body, err := c.do(ctx, "retry", record.Method, record.Endpoint, record.Options)
	if err == nil {
		if rmErr := c.store.RemoveFailedRequest(ctx, record.ID); rmErr != nil {
			return body, rmErr
		}
		metrics.ObserveRetry("success")
		return body, nil
	}

	response := err.Error()
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		response = reqErr.Response()
	}

	at := c.now()
	updated, incErr := c.store.IncrementFailedRequestRetry(ctx, record.ID, record.RetryCount, response, at)
	if incErr != nil {
		return nil, errors.Join(err, incErr)
	}
	if !updated {
		c.logger.Warn().Str("failed_request_id", record.ID).Msg("retry count changed concurrently, not incremented")
	} else {
		record.RetryCount++
		record.Response = response
		record.LastRetryAt = &at
	}
	metrics.ObserveRetry("failure")
	return nil, err
}

func (c *Client) do(ctx context.Context, label, method, path string, opts models.RequestOptions) ([]byte, error) {
	kind := opts.Credentials
	if kind == "" {
		kind = models.CredentialsData
	}
	if !c.settings.HasCredentials(kind, opts.ScopeID) {
		metrics.ObserveAPIRequest(label, "config_error")
		return nil, fmt.Errorf("%w: %s credentials missing for scope %q", models.ErrConfiguration, kind, opts.ScopeID)
	}
	clientID, clientSecret := c.settings.Credentials(kind, opts.ScopeID)

	token, err := c.tokens.AccessToken(ctx, clientID, clientSecret)
	if err != nil {
		metrics.ObserveAPIRequest(label, "auth_error")
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reader io.Reader
	if len(opts.Body) > 0 {
		reader = bytes.NewReader(opts.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveAPIRequest(label, "error")
		return nil, &RequestError{Method: method, Endpoint: path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		metrics.ObserveAPIRequest(label, "error")
		return nil, &RequestError{Method: method, Endpoint: path, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		if resp.StatusCode == http.StatusUnauthorized {
			c.tokens.Forget(ctx, clientID, clientSecret)
		}
		metrics.ObserveAPIRequest(label, "http_error")
		return nil, &RequestError{Method: method, Endpoint: path, StatusCode: resp.StatusCode, Body: string(body)}
	}

	metrics.ObserveAPIRequest(label, "ok")
	return body, nil
}
