// Package client implements browser-style session continuity for API
// consumers: requests that bounce with 401 trigger one silent token refresh,
// concurrent 401s coalesce into a single refresh call, and the original
// request is replayed at most once. A failed refresh terminates the session
// for every waiter at once.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrSessionTerminated reports that a refresh failed and the session is
	// over; the caller must re-authenticate through a login flow.
	ErrSessionTerminated = errors.New("session terminated")
)

// refreshKey is the single slot all concurrent refreshes join.
const refreshKey = "refresh"

// Requests to these endpoints never trigger a refresh: a 401 from them is a
// final answer about the credentials presented, not a stale access token.
var authPathSuffixes = []string{
	"/login",
	"/register",
	"/verify-otp",
	"/resend-otp",
	"/auth/refresh",
	"/auth/logout",
}

// Client wraps an http.Client with silent session renewal. Cookies are held
// in a jar, so the token pair travels exactly as a browser would carry it.
type Client struct {
	baseURL string
	http    *http.Client

	group singleflight.Group

	mu         sync.Mutex
	terminated bool
}

// New creates a continuity client for the API at baseURL.
func New(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Jar: jar},
	}, nil
}

// NewWithHTTPClient uses the given http.Client; it must carry a cookie jar.
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
	}
}

// Terminated reports whether a failed refresh has ended the session.
func (c *Client) Terminated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminated
}

// Reset clears the terminated flag; call after a successful re-login.
func (c *Client) Reset() {
	c.mu.Lock()
	c.terminated = false
	c.mu.Unlock()
}

// Do sends the request. On a 401 from a non-auth endpoint it refreshes the
// session (joining any refresh already in flight) and replays the request
// once. The request must have a replayable body (GetBody set or no body),
// which is true for all requests built with http.NewRequest.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized || isAuthPath(req.URL.Path) {
		return resp, nil
	}

	if c.Terminated() {
		return resp, nil
	}

	if err := c.refreshSession(req.Context()); err != nil {
		resp.Body.Close()
		return nil, err
	}

	replay, err := cloneRequest(req)
	if err != nil {
		return resp, nil
	}
	resp.Body.Close()

	// One replay only. A second 401 is returned as-is: the fresh token was
	// rejected, so retrying further cannot succeed.
	return c.http.Do(replay)
}

// refreshSession coalesces concurrent callers into one refresh round-trip.
// Every joiner observes the same outcome; failure flips the terminated flag
// before any joiner returns.
func (c *Client) refreshSession(ctx context.Context) error {
	_, err, _ := c.group.Do(refreshKey, func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/api/v1/auth/refresh", nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSessionTerminated, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			c.mu.Lock()
			c.terminated = true
			c.mu.Unlock()
			return nil, ErrSessionTerminated
		}
		return nil, nil
	})
	return err
}

func cloneRequest(req *http.Request) (*http.Request, error) {
	replay := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return replay, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("request body is not replayable")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	replay.Body = body
	return replay, nil
}

func isAuthPath(path string) bool {
	for _, suffix := range authPathSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}
