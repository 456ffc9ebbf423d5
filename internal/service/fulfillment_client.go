package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"webhook-gateway/internal/models"
	"webhook-gateway/internal/resilience"
	"webhook-gateway/internal/util"

	"go.uber.org/zap"
)

// FulfillmentClient submits order snapshots to the fulfillment system.
// The Idempotency-Key header carries the order_id so a resubmission
// after an abandoned timeout cannot duplicate the external effect.
type FulfillmentClient struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewFulfillmentClient creates a client for the fulfillment endpoint.
func NewFulfillmentClient(url string) *FulfillmentClient {
	return &FulfillmentClient{
		url: url,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: util.GetLogger(),
	}
}

// Submit posts the snapshot to the fulfillment system. Non-2xx
// responses surface as resilience.HTTPError so the retry layer can
// classify them; a Retry-After header is passed through.
func (fc *FulfillmentClient) Submit(ctx context.Context, order *models.OrderSnapshot) error {
	body, err := json.Marshal(order)
	if err != nil {
		return resilience.NonRetryable(fmt.Errorf("failed to marshal order: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fc.url, bytes.NewReader(body))
	if err != nil {
		return resilience.NonRetryable(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", order.OrderID)

	resp, err := fc.client.Do(req)
	if err != nil {
		return fmt.Errorf("fulfillment request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	httpErr := &resilience.HTTPError{StatusCode: resp.StatusCode}
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			httpErr.RetryAfter = time.Duration(secs) * time.Second
		}
	}

	fc.logger.Warn("Fulfillment submission rejected",
		zap.String("order_id", order.OrderID),
		zap.Int("status", resp.StatusCode))
	return httpErr
}
