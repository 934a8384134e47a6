package garmin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sport-activities/internal/metrics"
)

const (
	DefaultAPIURL = "https://connectapi.garmin.com"
	DefaultSSOURL = "https://connectapi.garmin.com/oauth-service"
	maxRetries    = 5
	initialDelay  = 1 * time.Second
	maxDelay      = 5 * time.Minute
)

// Client is a Garmin Connect API client
type Client struct {
	httpClient   *http.Client
	apiURL       string
	ssoURL       string
	logger       *slog.Logger
	throttle     *Throttle
	initialDelay time.Duration
}

// NewClient creates a new Garmin Connect client. Empty URLs fall back to
// the public Garmin endpoints.
func NewClient(apiURL, ssoURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if ssoURL == "" {
		ssoURL = DefaultSSOURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		apiURL:       strings.TrimRight(apiURL, "/"),
		ssoURL:       strings.TrimRight(ssoURL, "/"),
		logger:       logger,
		throttle:     NewThrottle(),
		initialDelay: initialDelay,
	}
}

// Token is an OAuth token pair issued by Garmin SSO
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
}

// Login exchanges account credentials for a token
func (c *Client) Login(ctx context.Context, username, password string) (*Token, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("login failed: username and password are required")
	}
	return c.requestToken(ctx, metrics.OpLogin, url.Values{
		"grant_type": {"password"},
		"username":   {username},
		"password":   {password},
	})
}

// RefreshToken exchanges a refresh token for a new token
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	return c.requestToken(ctx, metrics.OpRefreshToken, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	})
}

func (c *Client) requestToken(ctx context.Context, op string, form url.Values) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ssoURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	metrics.GarminAPIRequestDuration.WithLabelValues(op).Observe(duration.Seconds())

	if err != nil {
		metrics.GarminAPIRequestsTotal.WithLabelValues(op, "error").Inc()
		c.logger.Error("token request failed", "operation", op, "error", err, "duration_ms", duration.Milliseconds())
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}
	defer resp.Body.Close()

	metrics.GarminAPIRequestsTotal.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()
	c.logger.Info("garmin_token_request", "operation", op, "status", resp.StatusCode, "duration_ms", duration.Milliseconds())

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%s failed: %w", op, &HTTPError{StatusCode: resp.StatusCode, Body: string(body)})
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("%s failed: response carried no access token", op)
	}

	token := &Token{AccessToken: tr.AccessToken, RefreshToken: tr.RefreshToken}
	switch {
	case tr.ExpiresAt > 0:
		token.ExpiresAt = time.Unix(tr.ExpiresAt, 0).UTC()
	case tr.ExpiresIn > 0:
		token.ExpiresAt = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second).UTC()
	default:
		token.ExpiresAt = time.Now().Add(time.Hour).UTC()
	}
	return token, nil
}

// doRequest performs an authenticated GET with retries on rate limiting,
// server errors and network failures
func (c *Client) doRequest(ctx context.Context, op, path string, query url.Values, accessToken string) (*http.Response, error) {
	target := c.apiURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var lastErr error
	delay := c.initialDelay

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Info("retrying request", "operation", op, "attempt", attempt, "delay_ms", delay.Milliseconds())
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay = min(delay*2, maxDelay)
		}

		if err := c.throttle.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		duration := time.Since(start)
		metrics.GarminAPIRequestDuration.WithLabelValues(op).Observe(duration.Seconds())

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			metrics.GarminAPIRequestsTotal.WithLabelValues(op, "error").Inc()
			c.logger.Error("request failed", "operation", op, "path", path, "error", err, "attempt", attempt)
			continue
		}

		metrics.GarminAPIRequestsTotal.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()
		c.logger.Info("garmin_api_request", "operation", op, "path", path, "status", resp.StatusCode, "duration_ms", duration.Milliseconds())

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return resp, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			resp.Body.Close()
			if retryAfter := parseRetryAfter(resp.Header); retryAfter > 0 {
				delay = retryAfter
				c.throttle.Hold(retryAfter)
			}
			lastErr = &HTTPError{StatusCode: resp.StatusCode}
			continue
		case resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = &HTTPError{StatusCode: resp.StatusCode}
			continue
		default:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// getJSON decodes a response body keeping numbers as json.Number. An empty
// body decodes to nothing and reports found=false.
func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, accessToken string, v any) (bool, error) {
	resp, err := c.doRequest(ctx, op, path, query, accessToken)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return false, nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return true, nil
}

// ThrottleStatus reports the current 429 cool-down
func (c *Client) ThrottleStatus() ThrottleStatus {
	return c.throttle.Status()
}

// parseRetryAfter extracts retry delay from Retry-After header
func parseRetryAfter(headers http.Header) time.Duration {
	retryAfter := headers.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(retryAfter); err == nil {
		return max(time.Until(at), 0)
	}
	return 0
}
