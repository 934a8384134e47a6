package metrics

import (
	"context"
	"log/slog"
	"time"
)

// SessionExpiry is one cached session as seen by the collector
type SessionExpiry struct {
	Username  string
	ExpiresAt time.Time
}

// SessionLister is implemented by the session store
type SessionLister interface {
	SessionExpiries() ([]SessionExpiry, error)
}

// StartSessionTTLCollector periodically publishes the remaining lifetime of
// every cached session. It blocks until ctx is done.
func StartSessionTTLCollector(ctx context.Context, store SessionLister, interval time.Duration) {
	logger := slog.Default()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	collectSessionTTLs(store, logger, time.Now)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Session TTL collector stopping")
			return
		case <-ticker.C:
			collectSessionTTLs(store, logger, time.Now)
		}
	}
}

func collectSessionTTLs(store SessionLister, logger *slog.Logger, now func() time.Time) {
	sessions, err := store.SessionExpiries()
	if err != nil {
		logger.Error("Failed to list cached sessions", "error", err)
		return
	}

	SessionTTLSeconds.Reset()
	for _, s := range sessions {
		ttl := s.ExpiresAt.Sub(now()).Seconds()
		if ttl < 0 {
			ttl = 0
		}
		SessionTTLSeconds.WithLabelValues(s.Username).Set(ttl)
	}
}
