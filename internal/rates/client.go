// Package rates is the HTTP client for the external shipping-rate oracle.
package rates

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"

	"github.com/blocohub/checkout/internal/domain/shipping"
)

var _ shipping.Oracle = (*Client)(nil)

// Client quotes shipping options from the rate service over HTTP.
type Client struct {
	baseURL string
	hc      *http.Client
}

// NewClient creates a Client for the rate service at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: timeout},
	}
}

type quoteRequest struct {
	PostalCode string               `json:"postal_code"`
	Items      []shipping.QuoteItem `json:"items"`
}

// Quote requests the available shipping options for a destination.
func (c *Client) Quote(ctx context.Context, postalCode string, items []shipping.QuoteItem) ([]shipping.Option, error) {
	body, err := json.Marshal(quoteRequest{PostalCode: postalCode, Items: items})
	if err != nil {
		return nil, errors.Wrap(err, "marshal quote request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/quotes", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build quote request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "quote shipping rates")
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("rate service returned %s", resp.Status)
	}

	var options []shipping.Option
	if err := json.NewDecoder(resp.Body).Decode(&options); err != nil {
		return nil, fmt.Errorf("decoding rate service response: %w", err)
	}
	return options, nil
}
