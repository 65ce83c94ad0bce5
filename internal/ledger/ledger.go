package ledger

import (
	"context"
	"errors"
)

var (
	// ErrInsufficientFunds occurs when the source account lacks available balance
	// to cover a requested posting.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateTransaction indicates the provided client transaction identifier
	// already exists and therefore the operation should be treated as idempotent.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrTransactionMismatch is returned when a client transaction identifier is
	// replayed from the same source with a different recipient or amount.
	ErrTransactionMismatch = errors.New("client transaction id reused with different posting")

	// ErrAccountNotFound is returned when a posting names an unknown account.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidAmount is returned for zero or negative postings.
	ErrInvalidAmount = errors.New("amount must be positive")
)

const (
	// StatusCompleted marks a settled posting.
	StatusCompleted = "completed"
	// IssuanceAccountCode is the contra account debited when tokens are credited
	// to a wallet without a sender. Its balance is allowed to go negative.
	IssuanceAccountCode = "issuance:tokens"

	KindTransfer = "transfer"
	KindCredit   = "credit"
)

// WalletAccountCode returns the ledger account code owned by a wallet.
func WalletAccountCode(walletID string) string {
	return "wallet:" + walletID
}

// TransactionResult captures the outcome of a ledger posting.
type TransactionResult struct {
	TransactionID string
	FromBalance   int64
	ToBalance     int64
}

// CreditResult captures the outcome of an issuance credit.
type CreditResult struct {
	TransactionID string
	Balance       int64
}

// Ledger defines the contract implemented by ledger backends.
type Ledger interface {
	EnsureAccount(ctx context.Context, code string) error
	Balance(ctx context.Context, code string) (int64, error)
	Credit(ctx context.Context, code, clientTxID string, amount int64) (CreditResult, error)
	Transfer(ctx context.Context, fromCode, toCode, kind, clientTxID string, amount int64) (TransactionResult, error)
}
