package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rewardflow/rewardflow-backend/internal/domain"
)

// SnapshotClient implements domain.HoldingsSnapshotProvider against the
// HTTP API of the NFT-holdings indexer service.
type SnapshotClient struct {
	baseURL string
	httpc   *http.Client
}

// NewSnapshotClient creates a new snapshot client
func NewSnapshotClient(baseURL string) *SnapshotClient {
	return &SnapshotClient{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

type holdingPayload struct {
	WalletAddress string `json:"wallet_address"`
	UserHandle    string `json:"user_handle"`
	Weight        int64  `json:"weight"`
}

// GetHoldings fetches the month's snapshot. The indexer answers 409 while
// indexing for the month is still running, which maps to
// ErrSnapshotUnavailable and never to an empty holder set.
func (c *SnapshotClient) GetHoldings(ctx context.Context, month string) ([]domain.Holding, error) {
	endpoint := fmt.Sprintf("%s/holdings?month=%s", c.baseURL, url.QueryEscape(month))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build snapshot request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSnapshotUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusConflict, http.StatusServiceUnavailable:
		return nil, fmt.Errorf("%w: indexer has not finished month %s", domain.ErrSnapshotUnavailable, month)
	default:
		return nil, fmt.Errorf("snapshot request for %s returned status %d", month, resp.StatusCode)
	}

	var payload struct {
		Holdings []holdingPayload `json:"holdings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot response: %w", err)
	}

	holdings := make([]domain.Holding, 0, len(payload.Holdings))
	for _, h := range payload.Holdings {
		holdings = append(holdings, domain.Holding{
			WalletAddress: h.WalletAddress,
			UserHandle:    h.UserHandle,
			Weight:        h.Weight,
		})
	}

	return holdings, nil
}
