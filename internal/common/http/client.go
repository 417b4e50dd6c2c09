// internal/common/http/client.go
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned without calling upstream while the breaker is open.
var ErrCircuitOpen = gobreaker.ErrOpenState

// Options configures a Client. A zero MaxFailures disables the breaker.
type Options struct {
	Name          string
	Timeout       time.Duration
	MaxFailures   int
	OpenTimeout   time.Duration
	OnStateChange func(name, from, to string)
}

// Client is an outbound HTTP client with a per-call timeout and an optional
// circuit breaker. 5xx responses count as breaker failures but are still
// returned to the caller.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

type serverStatusError struct {
	status int
}

func (e *serverStatusError) Error() string {
	return fmt.Sprintf("upstream returned %d", e.status)
}

func NewClient(timeout time.Duration) *Client {
	return NewResilientClient(Options{Timeout: timeout})
}

func NewResilientClient(opts Options) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
	}
	if opts.MaxFailures <= 0 {
		return c
	}

	maxFailures := uint32(opts.MaxFailures)
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if opts.OnStateChange != nil {
				opts.OnStateChange(name, from.String(), to.String())
			}
		},
	})
	return c
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.httpClient.Do(req)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, &serverStatusError{status: resp.StatusCode}
		}
		return resp, nil
	})

	var statusErr *serverStatusError
	if errors.As(err, &statusErr) {
		return result.(*http.Response), nil
	}
	if err != nil {
		return nil, err
	}
	return result.(*http.Response), nil
}

// RoundTrip implements http.RoundTripper so c can back an *http.Client.
func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	return c.Do(req)
}

// Standard returns an *http.Client whose requests go through c, for
// libraries that only accept the standard client.
func (c *Client) Standard() *http.Client {
	return &http.Client{Transport: c}
}

// State reports the breaker state, or "disabled".
func (c *Client) State() string {
	if c.breaker == nil {
		return "disabled"
	}
	return c.breaker.State().String()
}
