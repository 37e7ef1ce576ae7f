package twitch

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/kottz/kolmodin-go/internal/logger"
)

// tokenRefreshGracePeriod is how far ahead of expiry the provider refreshes.
const tokenRefreshGracePeriod = time.Hour

const (
	tokenFetchRetryDelay   = 30 * time.Second
	tokenFetchMaxAttempts  = 3
	tokenFetchBackoffDelay = 5 * time.Minute
)

// TokenProvider holds the single app access token shared by every Channel
// Agent and IRC Connection Worker, refreshing it in the background ahead of
// expiry. A single writer goroutine owns the refresh loop, readers take a
// read lock, and a buffered-channel immediate-refresh signal lets a caller
// force a refresh on a 401.
type TokenProvider struct {
	httpClient   *http.Client
	clientID     string
	clientSecret string

	mu    sync.RWMutex
	token Token

	forceRefresh chan struct{}
}

// NewTokenProvider fetches the initial token and starts the background
// refresh loop. The loop runs until ctx is cancelled.
func NewTokenProvider(ctx context.Context, clientID, clientSecret string) (*TokenProvider, error) {
	httpClient := &http.Client{Timeout: 10 * time.Second}

	initial, err := fetchAppAccessToken(ctx, httpClient, clientID, clientSecret)
	if err != nil {
		return nil, err
	}

	p := &TokenProvider{
		httpClient:   httpClient,
		clientID:     clientID,
		clientSecret: clientSecret,
		token:        initial,
		forceRefresh: make(chan struct{}, 1),
	}

	go p.refreshLoop(ctx)
	return p, nil
}

// Token returns the current token secret.
func (p *TokenProvider) Token() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token.Secret
}

// SignalImmediateRefresh requests the background loop attempt a refresh as
// soon as possible, e.g. in response to a 401 from an IRC auth attempt.
func (p *TokenProvider) SignalImmediateRefresh() {
	select {
	case p.forceRefresh <- struct{}{}:
	default:
	}
}

func (p *TokenProvider) refreshLoop(ctx context.Context) {
	log := logger.Twitch()
	timer := time.NewTimer(p.sleepDurationUntilGrace())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			log.Info().Msg("scheduled token refresh period reached")
		case <-p.forceRefresh:
			log.Info().Msg("immediate token refresh signaled")
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		p.attemptRefreshWithRetry(ctx)

		if ctx.Err() != nil {
			return
		}
		timer.Reset(p.sleepDurationUntilGrace())
	}
}

func (p *TokenProvider) sleepDurationUntilGrace() time.Duration {
	p.mu.RLock()
	expiresAt := p.token.ExpiresAt
	p.mu.RUnlock()

	timeToExpiry := time.Until(expiresAt)
	if timeToExpiry <= tokenRefreshGracePeriod {
		return 0
	}
	return timeToExpiry - tokenRefreshGracePeriod
}

// attemptRefreshWithRetry retries the fetch up to tokenFetchMaxAttempts times
// with a short fixed delay, then falls back to a long backoff so the outer
// loop re-evaluates rather than spinning while Twitch is down.
func (p *TokenProvider) attemptRefreshWithRetry(ctx context.Context) {
	log := logger.Twitch()

	for attempt := 1; ; attempt++ {
		log.Info().Int("attempt", attempt).Msg("attempting to fetch new app access token")
		newToken, err := fetchAppAccessToken(ctx, p.httpClient, p.clientID, p.clientSecret)
		if err == nil {
			p.mu.Lock()
			p.token = newToken
			p.mu.Unlock()
			log.Info().Msg("app access token fetched/updated successfully")
			return
		}

		log.Error().Err(err).Int("attempt", attempt).Msg("failed to fetch new app access token")

		if attempt >= tokenFetchMaxAttempts {
			log.Error().Int("attempts", attempt).Msg("giving up on token fetch for now, will retry at next scheduled window")
			sleepOrDone(ctx, tokenFetchBackoffDelay)
			return
		}

		log.Warn().Int("attempt", attempt).Dur("retry_in", tokenFetchRetryDelay).Msg("token fetch attempt failed, retrying")
		if !sleepOrDone(ctx, tokenFetchRetryDelay) {
			return
		}
	}
}

// sleepOrDone sleeps for d or returns early (false) if ctx is cancelled.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
