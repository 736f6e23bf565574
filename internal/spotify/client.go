// Package spotify provides a wrapper around the Spotify Web API.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/time/rate"
)

const (
	defaultSearchRate  = 10 // requests per second
	defaultSearchBurst = 5
	defaultConcurrency = 4
	profileRetryDelay  = 250 * time.Millisecond
)

// Client wraps the Spotify API client with convenience methods.
type Client struct {
	api         *spotify.Client
	limiter     *rate.Limiter
	concurrency int
	retryDelay  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithSearchRate limits track searches to perSecond requests with the given burst.
func WithSearchRate(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond > 0 && burst > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithConcurrency sets how many searches may be in flight at once.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// New creates a new Spotify client wrapper.
// The underlying client should already be authenticated.
func New(api *spotify.Client, opts ...Option) *Client {
	c := &Client{
		api:         api,
		limiter:     rate.NewLimiter(defaultSearchRate, defaultSearchBurst),
		concurrency: defaultConcurrency,
		retryDelay:  profileRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UserID returns the current user's Spotify ID.
func (c *Client) UserID(ctx context.Context) (string, error) {
	user, err := c.api.CurrentUser(ctx)
	if err != nil {
		return "", fmt.Errorf("getting current user: %w", err)
	}
	return user.ID, nil
}

// Profile returns the current user's profile. A transient failure (401, 429 or 5xx)
// is retried once after a short delay.
func (c *Client) Profile(ctx context.Context) (Profile, error) {
	user, err := c.api.CurrentUser(ctx)
	if err != nil && retryable(err) {
		select {
		case <-ctx.Done():
			return Profile{}, ctx.Err()
		case <-time.After(c.retryDelay):
		}
		user, err = c.api.CurrentUser(ctx)
	}
	if err != nil {
		return Profile{}, fmt.Errorf("getting current user: %w", err)
	}

	return Profile{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
	}, nil
}

func retryable(err error) bool {
	var apiErr spotify.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Status {
	case http.StatusUnauthorized, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
