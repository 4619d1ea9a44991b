package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/icodeforyou/solarcast-etl/etlerr"
	"github.com/sony/gobreaker"
)

// Transport issues a single GET and returns the raw body.
type Transport interface {
	Get(ctx context.Context, endpoint string, params url.Values) ([]byte, error)
}

type StatusError struct {
	Endpoint string
	Code     int
	Status   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %s", e.Endpoint, e.Status)
}

// HTTPTransport is a Transport guarded by a circuit breaker. Failures are classified
// into transient (connection, timeout, 5xx, 429) and fatal (other 4xx) errors.
type HTTPTransport struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewHTTPTransport(name string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		client: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
			// A rejected request says nothing about the health of the source.
			IsSuccessful: func(err error) bool {
				return err == nil || !etlerr.Retryable(err)
			},
		}),
	}
}

func (t *HTTPTransport) Get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	u := endpoint
	if len(params) > 0 {
		u = fmt.Sprintf("%s?%s", endpoint, params.Encode())
	}

	result, err := t.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, etlerr.FatalRequest("build request", err)
		}

		res, err := t.client.Do(req)
		if err != nil {
			return nil, classifyNetError(ctx, err)
		}
		defer res.Body.Close()

		if err := classifyStatus(endpoint, res); err != nil {
			return nil, err
		}

		body, err := io.ReadAll(res.Body)
		if err != nil {
			return nil, etlerr.Transient("read body", err)
		}
		return body, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, etlerr.Transient("circuit breaker", err)
		}
		return nil, err
	}

	return result.([]byte), nil
}

func classifyNetError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return etlerr.Transient("timeout", err)
	}
	return etlerr.Transient("connection failure", err)
}

func classifyStatus(endpoint string, res *http.Response) error {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}
	statusErr := &StatusError{Endpoint: endpoint, Code: res.StatusCode, Status: res.Status}
	switch {
	case res.StatusCode == http.StatusTooManyRequests:
		return etlerr.Transient("rate limited", statusErr)
	case res.StatusCode >= 500:
		return etlerr.Transient("server error", statusErr)
	default:
		return etlerr.FatalRequest("request rejected", statusErr)
	}
}
