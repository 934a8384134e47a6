package garmin

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"sport-activities/internal/metrics"
	"sport-activities/internal/session"
)

const (
	activitiesPath = "/activitylist-service/activities/search/activities"
	detailsPath    = "/activity-service/activity/%s/details"
)

// Session is an authenticated view of one Garmin Connect account
type Session struct {
	id     string
	client *Client
	token  string
}

var _ session.Handle = (*Session)(nil)

// ID identifies the login this session belongs to
func (s *Session) ID() string { return s.id }

// ListActivities fetches one page of the activity list
func (s *Session) ListActivities(ctx context.Context, req session.PageRequest) ([]map[string]any, error) {
	query := url.Values{
		"start": {strconv.Itoa(req.Offset)},
		"limit": {strconv.Itoa(req.Limit)},
	}
	if !req.Start.IsZero() {
		query.Set("startDate", req.Start.Format("2006-01-02"))
	}
	if !req.End.IsZero() {
		query.Set("endDate", req.End.Format("2006-01-02"))
	}

	var page []map[string]any
	if _, err := s.client.getJSON(ctx, metrics.OpListActivities, activitiesPath, query, s.token, &page); err != nil {
		return nil, err
	}
	if page == nil {
		page = []map[string]any{}
	}
	return page, nil
}

// ActivityDetails fetches the detail payload of one activity. It returns
// nil when Garmin has no details for it.
func (s *Session) ActivityDetails(ctx context.Context, id string) (map[string]any, error) {
	path := fmt.Sprintf(detailsPath, url.PathEscape(id))

	var details map[string]any
	found, err := s.client.getJSON(ctx, metrics.OpActivityDetails, path, nil, s.token, &details)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil || !found {
		return nil, err
	}
	return details, nil
}

// Account binds credentials to a client and plugs into the session cache
type Account struct {
	client   *Client
	username string
	password string
}

var _ session.Authenticator = (*Account)(nil)

// NewAccount creates an authenticator for one Garmin Connect login
func NewAccount(client *Client, username, password string) *Account {
	return &Account{client: client, username: username, password: password}
}

func (a *Account) Username() string { return a.username }

func (a *Account) Login(ctx context.Context) (*session.Credentials, error) {
	token, err := a.client.Login(ctx, a.username, a.password)
	if err != nil {
		return nil, err
	}
	return credentials(token), nil
}

func (a *Account) Refresh(ctx context.Context, refreshToken string) (*session.Credentials, error) {
	token, err := a.client.RefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}
	return credentials(token), nil
}

func (a *Account) Open(creds session.Credentials) session.Handle {
	return &Session{id: creds.SessionID, client: a.client, token: creds.AccessToken}
}

func credentials(t *Token) *session.Credentials {
	return &session.Credentials{
		SessionID:    uuid.NewString(),
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    t.ExpiresAt,
	}
}
