// Package batch drives bulk wallet creation and token transfers from
// uploaded CSV files. Rows are independent: a failed row is reported in the
// result and never aborts its siblings.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/walletsvc/wallet_service/internal/config"
	"github.com/walletsvc/wallet_service/internal/domain"
	"github.com/walletsvc/wallet_service/internal/infra"
	"github.com/walletsvc/wallet_service/internal/notification"
	"github.com/walletsvc/wallet_service/internal/transfer"
	"github.com/walletsvc/wallet_service/internal/wallet"
)

// Wallets is the subset of wallet.Service the pipelines need.
type Wallets interface {
	GetByID(ctx context.Context, id string) (wallet.Wallet, error)
	GetByName(ctx context.Context, name string) (wallet.Wallet, error)
	CreateWallet(ctx context.Context, name string) (wallet.Wallet, error)
	Authorize(ctx context.Context, actingWalletID, targetWalletID string) error
}

// Transfers is the subset of transfer.Service the pipelines need.
type Transfers interface {
	Transfer(ctx context.Context, in transfer.Input) (transfer.Result, error)
	Credit(ctx context.Context, walletID, clientTxID string, amount int64) (int64, error)
}

// Row outcome statuses.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

const reasonRecipientNotFound = "recipient not found"

// Input drives one pipeline run. When Rows is nil the pipeline parses
// FilePath itself; otherwise FilePath is kept for audit only.
type Input struct {
	SenderWalletName string
	SenderWalletID   string
	DefaultAmount    decimal.Decimal
	Rows             []Row
	FilePath         string
	ActingWalletID   string
	BatchID          string
}

// RowOutcome is the tagged per-row result.
type RowOutcome struct {
	Line       int    `json:"line"`
	WalletName string `json:"wallet_name"`
	WalletID   string `json:"wallet_id,omitempty"`
	Amount     int64  `json:"amount"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
}

// Result aggregates a pipeline run.
type Result struct {
	Message   string       `json:"message"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Rows      []RowOutcome `json:"rows"`
}

// Pipeline runs batch operations row by row.
type Pipeline struct {
	wallets   Wallets
	transfers Transfers
	tx        infra.TxRunner
	cfg       config.BatchConfig
	logger    *slog.Logger
}

// NewPipeline wires a pipeline. A nil tx runs rows without a surrounding
// transaction.
func NewPipeline(wallets Wallets, transfers Transfers, tx infra.TxRunner, cfg config.BatchConfig, logger *slog.Logger) *Pipeline {
	if tx == nil {
		tx = infra.NoopTx{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{wallets: wallets, transfers: transfers, tx: tx, cfg: cfg, logger: logger}
}

// CreateWallets creates one wallet per row and funds it with the row amount,
// from the sender when one is named and from token issuance otherwise.
func (p *Pipeline) CreateWallets(ctx context.Context, in Input) (Result, error) {
	rows, err := p.prepare(ctx, &in)
	if err != nil {
		return Result{}, err
	}

	var sender *wallet.Wallet
	if in.SenderWalletName != "" || in.SenderWalletID != "" {
		w, err := p.resolveSender(ctx, in)
		if err != nil {
			return Result{}, err
		}
		sender = &w
	}

	outcomes := make([]RowOutcome, 0, len(rows))
	for _, row := range rows {
		outcomes = append(outcomes, p.createRow(ctx, in, sender, row))
	}
	return p.finish(ctx, "create", in.BatchID, "Batch wallet creation", outcomes), nil
}

// TransferTokens moves the row amount from the sender to each named wallet.
// Unknown recipients fail their row; they are never created on the fly.
func (p *Pipeline) TransferTokens(ctx context.Context, in Input) (Result, error) {
	rows, err := p.prepare(ctx, &in)
	if err != nil {
		return Result{}, err
	}
	if in.SenderWalletName == "" && in.SenderWalletID == "" {
		return Result{}, domain.NewValidationError("sender_wallet", "required")
	}
	sender, err := p.resolveSender(ctx, in)
	if err != nil {
		return Result{}, err
	}

	outcomes := make([]RowOutcome, 0, len(rows))
	for _, row := range rows {
		outcomes = append(outcomes, p.transferRow(ctx, in, sender, row))
	}
	return p.finish(ctx, "transfer", in.BatchID, "Batch transfer", outcomes), nil
}

func (p *Pipeline) prepare(ctx context.Context, in *Input) ([]Row, error) {
	if in.BatchID == "" {
		in.BatchID = uuid.NewString()
	}
	if in.DefaultAmount.IsNegative() || !in.DefaultAmount.IsInteger() {
		return nil, domain.NewValidationError("token_transfer_amount_default", "must be a non-negative integer")
	}

	rows := in.Rows
	if rows == nil {
		parseCtx := ctx
		if p.cfg.ParseTimeout > 0 {
			var cancel context.CancelFunc
			parseCtx, cancel = context.WithTimeout(ctx, p.cfg.ParseTimeout)
			defer cancel()
		}
		parsed, err := ParseFile(parseCtx, in.FilePath, p.cfg.MaxRows)
		if err != nil {
			return nil, err
		}
		rows = parsed
	}
	if p.cfg.MaxRows > 0 && len(rows) > p.cfg.MaxRows {
		return nil, &PipelineError{Op: "parse rows", Err: fmt.Errorf("file has more than %d rows", p.cfg.MaxRows)}
	}
	return rows, nil
}

func (p *Pipeline) resolveSender(ctx context.Context, in Input) (wallet.Wallet, error) {
	var (
		sender wallet.Wallet
		err    error
	)
	if in.SenderWalletID != "" {
		sender, err = p.wallets.GetByID(ctx, in.SenderWalletID)
	} else {
		sender, err = p.wallets.GetByName(ctx, in.SenderWalletName)
	}
	if err != nil {
		return wallet.Wallet{}, &PipelineError{Op: "resolve sender", Err: err}
	}
	if in.SenderWalletName != "" && sender.Name != in.SenderWalletName {
		return wallet.Wallet{}, domain.NewValidationError("sender_wallet", "name does not match sender wallet id")
	}
	if !sender.Active {
		return wallet.Wallet{}, &PipelineError{Op: "resolve sender", Err: fmt.Errorf("wallet %s is inactive: %w", sender.ID, domain.ErrNotFound)}
	}
	if err := p.wallets.Authorize(ctx, in.ActingWalletID, sender.ID); err != nil {
		return wallet.Wallet{}, err
	}
	return sender, nil
}

func (p *Pipeline) createRow(ctx context.Context, in Input, sender *wallet.Wallet, row Row) RowOutcome {
	out := RowOutcome{Line: row.Line, WalletName: row.WalletName}

	amount, err := rowAmount(row, in.DefaultAmount)
	if err != nil {
		return fail(out, err)
	}
	out.Amount = amount

	rowCtx, cancel := p.rowContext(ctx)
	defer cancel()

	// Notifications for the row go out only once its transaction commits.
	heldCtx, pending := notification.Defer(rowCtx)
	var created wallet.Wallet
	err = p.tx.RunInTx(heldCtx, func(txCtx context.Context) error {
		w, err := p.wallets.CreateWallet(txCtx, row.WalletName)
		if err != nil {
			return err
		}
		created = w
		if amount == 0 {
			return nil
		}

		clientTxID := clientTxID(in.BatchID, row.Line)
		if sender == nil {
			_, err = p.transfers.Credit(txCtx, w.ID, clientTxID, amount)
			return err
		}
		_, err = p.transfers.Transfer(txCtx, transfer.Input{
			FromWalletID: sender.ID,
			ToWalletID:   w.ID,
			Amount:       amount,
			ClientTxID:   clientTxID,
		})
		return err
	})
	if err != nil {
		p.logger.WarnContext(ctx, "batch create row failed",
			slog.String("batch_id", in.BatchID), slog.Int("line", row.Line), slog.Any("error", err))
		return fail(out, timeoutAware(rowCtx, err))
	}
	pending.Flush(ctx)

	out.WalletID = created.ID
	out.Status = StatusSuccess
	return out
}

func (p *Pipeline) transferRow(ctx context.Context, in Input, sender wallet.Wallet, row Row) RowOutcome {
	out := RowOutcome{Line: row.Line, WalletName: row.WalletName}

	amount, err := rowAmount(row, in.DefaultAmount)
	if err != nil {
		return fail(out, err)
	}
	if amount == 0 {
		return fail(out, domain.NewValidationError("amount", "must be positive"))
	}
	out.Amount = amount

	rowCtx, cancel := p.rowContext(ctx)
	defer cancel()

	recipient, err := p.wallets.GetByName(rowCtx, row.WalletName)
	if errors.Is(err, domain.ErrNotFound) {
		out.Status = StatusFailure
		out.Reason = reasonRecipientNotFound
		return out
	}
	if err != nil {
		return fail(out, timeoutAware(rowCtx, err))
	}
	out.WalletID = recipient.ID

	_, err = p.transfers.Transfer(rowCtx, transfer.Input{
		FromWalletID: sender.ID,
		ToWalletID:   recipient.ID,
		Amount:       amount,
		ClientTxID:   clientTxID(in.BatchID, row.Line),
	})
	if err != nil {
		p.logger.WarnContext(ctx, "batch transfer row failed",
			slog.String("batch_id", in.BatchID), slog.Int("line", row.Line), slog.Any("error", err))
		return fail(out, timeoutAware(rowCtx, err))
	}

	out.Status = StatusSuccess
	return out
}

func (p *Pipeline) rowContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.RowTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.cfg.RowTimeout)
}

func (p *Pipeline) finish(ctx context.Context, op, batchID, label string, outcomes []RowOutcome) Result {
	res := Result{Rows: outcomes}
	for _, o := range outcomes {
		if o.Status == StatusSuccess {
			res.Succeeded++
		} else {
			res.Failed++
		}
	}
	if res.Failed == 0 {
		res.Message = label + " successful"
	} else {
		res.Message = fmt.Sprintf("%s completed: %d succeeded, %d failed", label, res.Succeeded, res.Failed)
	}

	p.logger.InfoContext(ctx, "batch finished",
		slog.String("op", op),
		slog.String("batch_id", batchID),
		slog.Int("succeeded", res.Succeeded),
		slog.Int("failed", res.Failed))
	return res
}

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// rowAmount picks the overwrite when present, else the default.
func rowAmount(row Row, def decimal.Decimal) (int64, error) {
	if row.WalletName == "" {
		return 0, domain.NewValidationError("wallet_name", "required")
	}
	amount := def
	if row.RawAmount != "" {
		if row.AmountOverwrite == nil {
			return 0, domain.NewValidationError(columnAmount, "must be a number")
		}
		amount = *row.AmountOverwrite
		if !amount.IsPositive() {
			return 0, domain.NewValidationError(columnAmount, "must be positive")
		}
	}
	if !amount.IsInteger() {
		return 0, domain.NewValidationError(columnAmount, "must be a whole number of tokens")
	}
	if amount.IsNegative() || amount.GreaterThan(maxAmount) {
		return 0, domain.NewValidationError(columnAmount, "out of range")
	}
	return amount.IntPart(), nil
}

func clientTxID(batchID string, line int) string {
	return fmt.Sprintf("batch:%s:%d", batchID, line)
}

func timeoutAware(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("row timed out: %w", context.DeadlineExceeded)
	}
	return err
}

func fail(out RowOutcome, err error) RowOutcome {
	out.Status = StatusFailure
	out.Reason = reason(err)
	return out
}

func reason(err error) string {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr) && len(verr.Errors) > 0:
		fe := verr.Errors[0]
		return fe.Field + ": " + fe.Message
	case errors.Is(err, domain.ErrConflict):
		return "wallet name already exists"
	case errors.Is(err, domain.ErrNotFound):
		return "wallet not found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	default:
		return err.Error()
	}
}
