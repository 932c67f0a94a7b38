package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Holding is one wallet's position in the reward-eligible NFT collection at
// snapshot time.
type Holding struct {
	WalletAddress string
	UserHandle    string // optional, empty if the indexer has no handle
	Weight        int64  // NFT count
}

// HoldingsSnapshotProvider returns the eligible wallets and their weights for
// a given month. Implemented against the external NFT-holdings indexer.
type HoldingsSnapshotProvider interface {
	// GetHoldings returns the snapshot for a YYYY-MM month.
	// Returns ErrSnapshotUnavailable if indexing for the month is not yet
	// complete; callers must never treat that as zero holders.
	GetHoldings(ctx context.Context, month string) ([]Holding, error)
}

// ChainTransferClient broadcasts one reward payment. How the transaction is
// cryptographically constructed lives behind this boundary; the claim service
// only decides whether and how many times to call it.
type ChainTransferClient interface {
	Send(ctx context.Context, walletAddress string, amount decimal.Decimal) (txHash string, err error)
}

// ChainBurnClient broadcasts the burn of an uncollected remainder.
type ChainBurnClient interface {
	Burn(ctx context.Context, amount decimal.Decimal) (txRef string, err error)
}
