package remo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the Nature Remo cloud API endpoint.
const DefaultBaseURL = "https://api.nature.global"

var (
	// ErrUnauthorized indicates the access token was rejected
	ErrUnauthorized = errors.New("nature remo: unauthorized")

	// ErrRateLimited indicates the cloud API rate limit was exceeded
	ErrRateLimited = errors.New("nature remo: rate limited")

	// ErrThrottled indicates the local rate limiter could not admit the
	// request before the context deadline
	ErrThrottled = errors.New("nature remo: throttled")
)

// APIError is a non-2xx response from the cloud API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("nature remo: status %d: code %d: %s", e.StatusCode, e.Code, e.Message)
}

// Unwrap maps well-known status codes to sentinel errors.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second
	Burst     int
}

// Client is a Nature Remo cloud API client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new cloud client authenticated with token.
func NewClient(token string, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 0.1
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), opts.Burst),
	}
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Appliances returns all appliances registered to the account.
func (c *Client) Appliances(ctx context.Context) ([]Appliance, error) {
	var appliances []Appliance
	if err := c.do(ctx, http.MethodGet, "/1/appliances", nil, &appliances); err != nil {
		return nil, fmt.Errorf("list appliances: %w", err)
	}
	return appliances, nil
}

// SendSignal replays a learned IR signal.
func (c *Client) SendSignal(ctx context.Context, signalID string) error {
	path := fmt.Sprintf("/1/signals/%s/send", url.PathEscape(signalID))
	if err := c.do(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("send signal %s: %w", signalID, err)
	}
	return nil
}

// SendTVButton presses a preset button of a TV appliance and returns the
// state the cloud reports afterwards.
func (c *Client) SendTVButton(ctx context.Context, applianceID, button string) (*TVState, error) {
	path := fmt.Sprintf("/1/appliances/%s/tv", url.PathEscape(applianceID))
	form := url.Values{"button": {button}}

	var state TVState
	if err := c.do(ctx, http.MethodPost, path, form, &state); err != nil {
		return nil, fmt.Errorf("send tv button %s to %s: %w", button, applianceID, err)
	}
	return &state, nil
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrThrottled, err)
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("Nature Remo request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if len(data) > 0 {
			if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil {
				apiErr.Message = strings.TrimSpace(string(data))
			}
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
