package domain

import "errors"

// Engine error taxonomy. Services wrap these with fmt.Errorf("...: %w", ...)
// so callers can classify with errors.Is while keeping the detail.
var (
	// ErrInsufficientData means calculation refused to proceed: no holders
	// in the snapshot, or a non-positive revenue figure.
	ErrInsufficientData = errors.New("insufficient data for reward calculation")

	// ErrInvalidState means a lifecycle transition was attempted from the
	// wrong status. The attempt is always rejected cleanly; stored state is
	// never corrupted.
	ErrInvalidState = errors.New("invalid distribution state for this operation")

	// ErrWindowClosed means a claim arrived at or after the window deadline
	// (or after close). The holder must wait for the next distribution.
	ErrWindowClosed = errors.New("collection window is closed")

	// ErrTransferFailed means the external broadcast failed. Retried up to
	// the attempt cap, after which the transfer becomes burn-eligible.
	ErrTransferFailed = errors.New("reward transfer failed")

	// ErrBurnExecution means the external burn transaction failed. The burn
	// record is still persisted for manual reconciliation; the window never
	// reopens.
	ErrBurnExecution = errors.New("burn execution failed")

	// ErrSnapshotUnavailable means the holdings indexer has not finished
	// indexing the requested month. Never treated as zero holders.
	ErrSnapshotUnavailable = errors.New("holdings snapshot unavailable")

	// ErrNotFound means the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateMonth means a distribution already exists for the month.
	ErrDuplicateMonth = errors.New("distribution already exists for month")
)
