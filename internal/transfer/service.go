// Package transfer moves tokens between wallets over the ledger.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/walletsvc/wallet_service/internal/domain"
	"github.com/walletsvc/wallet_service/internal/ledger"
	"github.com/walletsvc/wallet_service/internal/notification"
	"github.com/walletsvc/wallet_service/internal/wallet"
)

// Wallets is the subset of wallet.Service a transfer needs.
type Wallets interface {
	GetByID(ctx context.Context, id string) (wallet.Wallet, error)
	Authorize(ctx context.Context, actingWalletID, targetWalletID string) error
}

// Service wires wallet ledger postings for transfers.
type Service struct {
	ledger   ledger.Ledger
	wallets  Wallets
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService constructs a transfer service.
func NewService(led ledger.Ledger, wallets Wallets, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{ledger: led, wallets: wallets, notifier: notifier, logger: logger}
}

// Input captures the data needed to move tokens between wallets.
// ActingWalletID, when set, must be allowed to act on the source wallet.
type Input struct {
	FromWalletID   string
	ToWalletID     string
	Amount         int64
	ClientTxID     string
	ActingWalletID string
}

// Result describes the ledger outcome of a transfer. Replayed is set when
// ClientTxID had already been posted; balances then reflect the current state.
type Result struct {
	TransactionID string
	FromBalance   int64
	ToBalance     int64
	Replayed      bool
	CompletedAt   time.Time
}

// Transfer posts a balanced ledger entry between two active wallets.
func (s *Service) Transfer(ctx context.Context, in Input) (Result, error) {
	if in.Amount <= 0 {
		return Result{}, domain.NewValidationError("amount", "must be positive")
	}
	if in.FromWalletID == in.ToWalletID {
		return Result{}, domain.NewValidationError("to_wallet_id", "must differ from the source wallet")
	}
	if in.ClientTxID == "" {
		in.ClientTxID = uuid.NewString()
	}

	if in.ActingWalletID != "" {
		if err := s.wallets.Authorize(ctx, in.ActingWalletID, in.FromWalletID); err != nil {
			return Result{}, err
		}
	}

	from, err := s.activeWallet(ctx, in.FromWalletID)
	if err != nil {
		return Result{}, err
	}
	to, err := s.activeWallet(ctx, in.ToWalletID)
	if err != nil {
		return Result{}, err
	}

	res, err := s.ledger.Transfer(ctx, ledger.WalletAccountCode(from.ID), ledger.WalletAccountCode(to.ID),
		ledger.KindTransfer, in.ClientTxID, in.Amount)
	switch {
	case errors.Is(err, ledger.ErrDuplicateTransaction):
		return Result{
			TransactionID: res.TransactionID,
			FromBalance:   res.FromBalance,
			ToBalance:     res.ToBalance,
			Replayed:      true,
			CompletedAt:   time.Now().UTC(),
		}, nil
	case errors.Is(err, ledger.ErrTransactionMismatch):
		return Result{}, fmt.Errorf("client_tx_id %s already used for a different transfer: %w", in.ClientTxID, domain.ErrConflict)
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return Result{}, fmt.Errorf("wallet %s: %w", from.Name, domain.NewValidationError("amount", "insufficient funds"))
	case errors.Is(err, ledger.ErrAccountNotFound):
		return Result{}, fmt.Errorf("ledger: %w", domain.ErrNotFound)
	case err != nil:
		return Result{}, fmt.Errorf("ledger transfer: %w", err)
	}

	s.notify(ctx, notification.Message{
		Kind:        notification.KindTransferReceived,
		Destination: to.ID,
		Body:        fmt.Sprintf("You received %d tokens from wallet %s", in.Amount, from.Name),
	})

	return Result{
		TransactionID: res.TransactionID,
		FromBalance:   res.FromBalance,
		ToBalance:     res.ToBalance,
		CompletedAt:   time.Now().UTC(),
	}, nil
}

// Credit issues amount tokens to walletID out of the issuance account.
func (s *Service) Credit(ctx context.Context, walletID, clientTxID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, domain.NewValidationError("amount", "must be positive")
	}
	w, err := s.activeWallet(ctx, walletID)
	if err != nil {
		return 0, err
	}
	if clientTxID == "" {
		clientTxID = uuid.NewString()
	}

	res, err := s.ledger.Credit(ctx, ledger.WalletAccountCode(w.ID), clientTxID, amount)
	if errors.Is(err, ledger.ErrTransactionMismatch) {
		return 0, fmt.Errorf("client_tx_id %s already used for a different credit: %w", clientTxID, domain.ErrConflict)
	}
	if err != nil && !errors.Is(err, ledger.ErrDuplicateTransaction) {
		return 0, fmt.Errorf("ledger credit: %w", err)
	}
	if err == nil {
		s.notify(ctx, notification.Message{
			Kind:        notification.KindWalletFunded,
			Destination: w.ID,
			Body:        fmt.Sprintf("%d tokens were issued to wallet %s", amount, w.Name),
		})
	}
	return res.Balance, nil
}

func (s *Service) activeWallet(ctx context.Context, id string) (wallet.Wallet, error) {
	w, err := s.wallets.GetByID(ctx, id)
	if err != nil {
		return wallet.Wallet{}, err
	}
	if !w.Active {
		return wallet.Wallet{}, fmt.Errorf("wallet %s is inactive: %w", id, domain.ErrNotFound)
	}
	return w, nil
}

// notify sends msg, or queues it when ctx was prepared with notification.Defer.
func (s *Service) notify(ctx context.Context, msg notification.Message) {
	if s.notifier == nil {
		return
	}
	if notification.Hold(ctx, func(ctx context.Context) { s.send(ctx, msg) }) {
		return
	}
	s.send(ctx, msg)
}

func (s *Service) send(ctx context.Context, msg notification.Message) {
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "notification failed", "kind", msg.Kind, "error", err)
	}
}
