// Package payment holds the client for the external payment collaborator.
// The engine only asks one question: has the winner paid for this auction.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type statusResponse struct {
	Paid bool `json:"paid"`
}

func (c *HTTPClient) HasCompletedPayment(ctx context.Context, bidderID, auctionID int64) (bool, error) {
	url := fmt.Sprintf("%s/internal/payments/status?bidder_id=%d&auction_id=%d",
		c.baseURL, bidderID, auctionID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("payment status lookup returned %d", resp.StatusCode)
	}

	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return false, err
	}
	return status.Paid, nil
}
