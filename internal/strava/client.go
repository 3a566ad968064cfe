package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const BaseURL = "https://www.strava.com/api/v3"

// PerPage is the page size used for activity fetches — Strava's maximum.
const PerPage = 100

// Client is a Strava API client for a multi-member deployment.
//
// Unlike a personal integration there is no single token to bake into the
// HTTP client: every member has their own credentials, so the access token
// is passed per call and ends up in the Authorization header of just that
// request. The rate limiter is shared — Strava's quota is per application,
// not per athlete.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *RateLimiter
}

// NewClient creates a new Strava API client.
func NewClient() *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     BaseURL,
		rateLimiter: NewRateLimiter(),
	}
}

// NewClientWithBaseURL creates a client pointed at a different API root.
// Tests use this with an httptest server.
func NewClientWithBaseURL(baseURL string) *Client {
	c := NewClient()
	c.baseURL = baseURL
	return c
}

// APIError is a non-2xx response from Strava.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("strava: API error %d: %s", e.StatusCode, e.Body)
}

// ListActivities fetches one page of the athlete's activities.
//
// after bounds the results to activities started strictly after that time
// (a zero after means no bound). Pages are 1-based; an empty page or one
// shorter than perPage means the listing is exhausted.
func (c *Client) ListActivities(ctx context.Context, accessToken string, after time.Time, page, perPage int) ([]Activity, error) {
	params := url.Values{}
	if !after.IsZero() {
		params.Set("after", strconv.FormatInt(after.Unix(), 10))
	}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))

	resp, err := c.get(ctx, accessToken, "/athlete/activities", params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var activities []Activity
	if err := json.NewDecoder(resp.Body).Decode(&activities); err != nil {
		return nil, fmt.Errorf("strava: decoding activities: %w", err)
	}
	return activities, nil
}

// RateLimitStatus returns the remaining request budget.
func (c *Client) RateLimitStatus() (shortRemaining, dailyRemaining int) {
	return c.rateLimiter.Status()
}

func (c *Client) get(ctx context.Context, accessToken, path string, params url.Values) (*http.Response, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("strava: %w", err)
	}

	// The headers on every response carry the authoritative quota usage.
	c.rateLimiter.UpdateFromHeaders(resp.Header)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return resp, nil
}
