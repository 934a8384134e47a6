package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"sport-activities/internal/database"
	"sport-activities/internal/metrics"
)

// expiryBuffer treats tokens this close to expiry as already expired
const expiryBuffer = 5 * time.Minute

// ErrAuthFailed wraps every failure to obtain a usable session.
var ErrAuthFailed = errors.New("garmin authentication failed")

// Store persists sessions between runs
type Store interface {
	GetSession(username string) (*database.Session, error)
	UpsertSession(s *database.Session) error
	DeleteSession(username string) error
}

// CachingProvider reuses a valid session when it can, refreshes an expired
// one when a refresh token is available and logs in otherwise.
type CachingProvider struct {
	auth   Authenticator
	store  Store
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	current *Credentials
}

// NewCachingProvider creates a provider. A nil store disables persistence;
// sessions are then kept in memory for the life of the provider only.
func NewCachingProvider(auth Authenticator, store Store, logger *slog.Logger) *CachingProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachingProvider{
		auth:   auth,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Acquire returns a handle backed by valid credentials
func (p *CachingProvider) Acquire(ctx context.Context) (Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	creds, outcome, err := p.credentials(ctx)
	if err != nil {
		metrics.SessionAcquisitionsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		return nil, err
	}
	metrics.SessionAcquisitionsTotal.WithLabelValues(outcome).Inc()
	p.current = creds

	p.logger.Debug("session acquired", "session_id", creds.SessionID, "outcome", outcome)
	return p.auth.Open(*creds), nil
}

// Release ends the use of a handle. The underlying session stays cached.
func (p *CachingProvider) Release(h Handle) {
	if h == nil {
		return
	}
	p.logger.Debug("session released", "session_id", h.ID())
}

// Logout forgets the cached session in memory and in the store
func (p *CachingProvider) Logout(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = nil
	if p.store == nil {
		return nil
	}
	if err := p.store.DeleteSession(p.auth.Username()); err != nil {
		return fmt.Errorf("failed to delete cached session: %w", err)
	}
	p.logger.Info("cached session deleted", "username", p.auth.Username())
	return nil
}

func (p *CachingProvider) credentials(ctx context.Context) (*Credentials, string, error) {
	if p.valid(p.current) {
		return p.current, metrics.OutcomeMemory, nil
	}

	cached := p.current
	if cached == nil {
		cached = p.loadCached()
		if p.valid(cached) {
			return cached, metrics.OutcomeCached, nil
		}
	}

	if cached != nil && cached.RefreshToken != "" {
		refreshed, err := p.auth.Refresh(ctx, cached.RefreshToken)
		if err == nil {
			p.persist(refreshed)
			return refreshed, metrics.OutcomeRefresh, nil
		}
		if ctx.Err() != nil {
			return nil, "", fmt.Errorf("%w: %w", ErrAuthFailed, ctx.Err())
		}
		p.logger.Warn("session refresh failed, logging in again", "error", err)
	}

	creds, err := p.auth.Login(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}
	p.persist(creds)
	return creds, metrics.OutcomeLogin, nil
}

func (p *CachingProvider) valid(c *Credentials) bool {
	return c != nil && c.AccessToken != "" && p.now().Add(expiryBuffer).Before(c.ExpiresAt)
}

func (p *CachingProvider) loadCached() *Credentials {
	if p.store == nil {
		return nil
	}
	s, err := p.store.GetSession(p.auth.Username())
	if err != nil {
		p.logger.Warn("failed to read cached session", "error", err)
		return nil
	}
	if s == nil {
		return nil
	}
	return &Credentials{
		SessionID:    s.SessionID,
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.ExpiresAt,
	}
}

// persist saves creds. Failures are logged; the session is still usable.
func (p *CachingProvider) persist(c *Credentials) {
	if p.store == nil {
		return
	}
	err := p.store.UpsertSession(&database.Session{
		Username:     p.auth.Username(),
		SessionID:    c.SessionID,
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		ExpiresAt:    c.ExpiresAt,
	})
	if err != nil {
		p.logger.Warn("failed to persist session", "error", err)
	}
}
