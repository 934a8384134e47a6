// Package session supplies authenticated Garmin Connect handles to the
// activity walker and keeps logins cached between runs.
package session

import (
	"context"
	"time"
)

// PageRequest selects one page of the remote activity listing. Start and
// End are optional hints; a zero value means the listing is not filtered
// remotely.
type PageRequest struct {
	Offset int
	Limit  int
	Start  time.Time
	End    time.Time
}

// Handle is an authenticated upstream session.
type Handle interface {
	ID() string
	// ListActivities returns raw activity payloads in upstream order. An
	// empty slice means the listing is exhausted.
	ListActivities(ctx context.Context, req PageRequest) ([]map[string]any, error)
	// ActivityDetails returns the raw detail payload for id. A nil map
	// means upstream had nothing for it.
	ActivityDetails(ctx context.Context, id string) (map[string]any, error)
}

// Provider hands out handles. Callers Release every handle they Acquire.
type Provider interface {
	Acquire(ctx context.Context) (Handle, error)
	Release(h Handle)
}

// Credentials is the token material behind a handle.
type Credentials struct {
	SessionID    string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Authenticator logs in to the upstream service and builds handles.
type Authenticator interface {
	Username() string
	Login(ctx context.Context) (*Credentials, error)
	Refresh(ctx context.Context, refreshToken string) (*Credentials, error)
	Open(creds Credentials) Handle
}
