package listrak

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"listraksync/internal/domain"
	"listraksync/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// defaultTokenTTL applies when the token endpoint omits expires_in.
const defaultTokenTTL = 30 * time.Minute

type cachedToken struct {
	value     string
	expiresAt time.Time
}

// TokenProvider obtains client-credentials tokens and caches them per
// credential pair, in process and optionally in a shared cache.
type TokenProvider struct {
	tokenURL   string
	httpClient *http.Client
	shared     domain.TokenCache
	logger     *zerolog.Logger

	mu     sync.Mutex
	tokens map[string]cachedToken
	now    func() time.Time
}

func NewTokenProvider(tokenURL string, httpClient *http.Client, shared domain.TokenCache, logger *zerolog.Logger) *TokenProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &TokenProvider{
		tokenURL:   tokenURL,
		httpClient: httpClient,
		shared:     shared,
		logger:     logger,
		tokens:     make(map[string]cachedToken),
		now:        time.Now,
	}
}

// AccessToken returns a bearer token for the pair, fetching a new one only
// when no cached token is still valid.
func (p *TokenProvider) AccessToken(ctx context.Context, clientID, clientSecret string) (string, error) {
	key := credentialKey(clientID, clientSecret)

	p.mu.Lock()
	tok, ok := p.tokens[key]
	p.mu.Unlock()
	if ok && p.now().Before(tok.expiresAt) {
		return tok.value, nil
	}

	if p.shared != nil {
		value, ttl, err := p.shared.GetToken(ctx, key)
		if err != nil {
			p.logger.Warn().Err(err).Msg("shared token cache read failed")
		} else if value != "" {
			p.remember(key, value, ttl)
			return value, nil
		}
	}

	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     p.tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	token, err := cfg.Token(context.WithValue(ctx, oauth2.HTTPClient, p.httpClient))
	if err != nil {
		return "", &AuthError{ClientID: clientID, Err: err}
	}

	ttl := defaultTokenTTL
	if !token.Expiry.IsZero() {
		ttl = token.Expiry.Sub(p.now())
	}
	ttl -= models.TokenCacheTTLSkew * time.Second
	if ttl <= 0 {
		// too short-lived to cache, use it once
		return token.AccessToken, nil
	}

	p.remember(key, token.AccessToken, ttl)
	if p.shared != nil {
		if err := p.shared.SetToken(ctx, key, token.AccessToken, ttl); err != nil {
			p.logger.Warn().Err(err).Msg("shared token cache write failed")
		}
	}
	p.logger.Debug().Str("client_id", clientID).Dur("ttl", ttl).Msg("listrak token issued")
	return token.AccessToken, nil
}

// Forget drops the cached token of a pair, e.g. after a 401, here and in
// the shared cache so no process picks the rejected token up again.
func (p *TokenProvider) Forget(ctx context.Context, clientID, clientSecret string) {
	key := credentialKey(clientID, clientSecret)
	p.mu.Lock()
	delete(p.tokens, key)
	p.mu.Unlock()

	if p.shared != nil {
		if err := p.shared.DeleteToken(ctx, key); err != nil {
			p.logger.Warn().Err(err).Msg("shared token cache delete failed")
		}
	}
}

func (p *TokenProvider) remember(key, value string, ttl time.Duration) {
	p.mu.Lock()
	p.tokens[key] = cachedToken{value: value, expiresAt: p.now().Add(ttl)}
	p.mu.Unlock()
}

// credentialKey hashes the pair so secrets never end up in redis keys.
func credentialKey(clientID, clientSecret string) string {
	sum := sha256.Sum256([]byte(clientID + "\x00" + clientSecret))
	return hex.EncodeToString(sum[:])
}
