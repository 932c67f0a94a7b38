package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// WalletClient implements domain.ChainTransferClient and
// domain.ChainBurnClient against the HTTP API of the wallet/broadcast
// service. Key management and transaction construction stay on that side of
// the boundary.
type WalletClient struct {
	baseURL string
	httpc   *http.Client
}

// NewWalletClient creates a new wallet client
func NewWalletClient(baseURL string) *WalletClient {
	return &WalletClient{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 60 * time.Second},
	}
}

// Send broadcasts one reward payment and returns its transaction hash
func (c *WalletClient) Send(ctx context.Context, walletAddress string, amount decimal.Decimal) (string, error) {
	body := map[string]string{
		"wallet_address": walletAddress,
		"amount":         amount.String(),
	}

	var resp struct {
		TxHash string `json:"tx_hash"`
	}
	if err := c.post(ctx, "/transfers", body, &resp); err != nil {
		return "", err
	}
	if resp.TxHash == "" {
		return "", fmt.Errorf("wallet service returned an empty tx hash")
	}

	return resp.TxHash, nil
}

// Burn broadcasts the burn of an uncollected remainder
func (c *WalletClient) Burn(ctx context.Context, amount decimal.Decimal) (string, error) {
	body := map[string]string{
		"amount": amount.String(),
	}

	var resp struct {
		TxRef string `json:"tx_ref"`
	}
	if err := c.post(ctx, "/burns", body, &resp); err != nil {
		return "", err
	}
	if resp.TxRef == "" {
		return "", fmt.Errorf("wallet service returned an empty burn tx ref")
	}

	return resp.TxRef, nil
}

func (c *WalletClient) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("wallet service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("wallet service %s returned status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode wallet service response: %w", err)
	}

	return nil
}
