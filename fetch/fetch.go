package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"
)

type Client struct {
	transport Transport
	policy    Policy
	logger    *slog.Logger
}

func NewClient(logger *slog.Logger, transport Transport, policy Policy) *Client {
	c := &Client{transport: transport, policy: policy, logger: logger}
	if c.policy.OnRetry == nil {
		c.policy.OnRetry = func(attempt int, wait time.Duration, err error) {
			logger.Warn("request failed, retrying",
				slog.Int("attempt", attempt),
				slog.Duration("wait", wait),
				slog.Any("error", err))
		}
	}
	return c
}

// Body performs one GET, retrying transient failures. Exhausting the attempts is an error.
func (c *Client) Body(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	var body []byte
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		var err error
		body, err = c.transport.Get(ctx, endpoint, params)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", endpoint, err)
	}
	return body, nil
}

// Fetch retrieves and decodes one dataset.
func (c *Client) Fetch(ctx context.Context, endpoint string, params url.Values) (Records, error) {
	body, err := c.Body(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	rows, err := DecodeRecords(body)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", endpoint, err)
	}
	return rows, nil
}

// FetchPaginated issues sequential offset/limit requests until total records are covered and
// concatenates the batches in request order. A batch that still fails after its retries is
// logged and skipped; no successful batch at all yields an empty result, not an error.
func (c *Client) FetchPaginated(ctx context.Context, endpoint string, total, batchSize int, filter url.Values) (Records, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	var rows Records
	succeeded := 0
	for offset := 0; offset < total; offset += batchSize {
		limit := min(batchSize, total-offset)

		params := url.Values{}
		for k, v := range filter {
			params[k] = append([]string(nil), v...)
		}
		params.Set("offset", strconv.Itoa(offset))
		params.Set("limit", strconv.Itoa(limit))

		batch, err := c.Fetch(ctx, endpoint, params)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return nil, err
			}
			c.logger.Error("batch failed, skipping",
				slog.Int("offset", offset),
				slog.Int("limit", limit),
				slog.Any("error", err))
			continue
		}

		c.logger.Debug("batch fetched", slog.Int("offset", offset), slog.Int("rows", len(batch)))
		rows = append(rows, batch...)
		succeeded++
	}

	if succeeded == 0 {
		c.logger.Warn("no batch could be fetched", slog.String("endpoint", endpoint), slog.Int("total", total))
		return Records{}, nil
	}

	return rows, nil
}
