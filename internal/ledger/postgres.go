package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/walletsvc/wallet_service/internal/infra"
)

// PostgresLedger persists ledger entries in PostgreSQL ensuring double-entry balance.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// EnsureAccount guarantees an account exists for the provided code.
func (l *PostgresLedger) EnsureAccount(ctx context.Context, code string) error {
	_, err := infra.QuerierFromCtx(ctx, l.db).Exec(ctx, `INSERT INTO accounts (id, code) VALUES ($1, $2)
        ON CONFLICT (code) DO NOTHING`, uuid.New(), code)
	if err != nil {
		return fmt.Errorf("ensure account %s: %w", code, err)
	}
	return nil
}

// Balance returns the summed balance for the specified account code.
func (l *PostgresLedger) Balance(ctx context.Context, code string) (int64, error) {
	const query = `
        SELECT a.id, COALESCE(SUM(e.amount), 0)
        FROM accounts a
        LEFT JOIN entries e ON e.account_id = a.id
        WHERE a.code = $1
        GROUP BY a.id`
	var (
		id      uuid.UUID
		balance int64
	)
	if err := infra.QuerierFromCtx(ctx, l.db).QueryRow(ctx, query, code).Scan(&id, &balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("account %s: %w", code, ErrAccountNotFound)
		}
		return 0, err
	}
	return balance, nil
}

// Credit issues amount to code, balanced against the issuance account.
func (l *PostgresLedger) Credit(ctx context.Context, code, clientTxID string, amount int64) (CreditResult, error) {
	res, err := l.post(ctx, IssuanceAccountCode, code, KindCredit, clientTxID, amount, false)
	return CreditResult{TransactionID: res.TransactionID, Balance: res.ToBalance}, err
}

// Transfer records a balanced posting between two accounts.
func (l *PostgresLedger) Transfer(ctx context.Context, fromCode, toCode, kind, clientTxID string, amount int64) (TransactionResult, error) {
	return l.post(ctx, fromCode, toCode, kind, clientTxID, amount, true)
}

// begin opens a transaction, or a savepoint when ctx already carries one.
func (l *PostgresLedger) begin(ctx context.Context) (pgx.Tx, error) {
	if outer, ok := infra.QuerierFromCtx(ctx, l.db).(pgx.Tx); ok {
		return outer.Begin(ctx)
	}
	return l.db.BeginTx(ctx, pgx.TxOptions{})
}

func (l *PostgresLedger) post(ctx context.Context, fromCode, toCode, kind, clientTxID string, amount int64, checkFunds bool) (TransactionResult, error) {
	if amount <= 0 {
		return TransactionResult{}, ErrInvalidAmount
	}

	tx, err := l.begin(ctx)
	if err != nil {
		return TransactionResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	// Lock in code order so opposing transfers cannot deadlock.
	first, second := fromCode, toCode
	if second < first {
		first, second = second, first
	}
	firstID, err := accountIDForCode(ctx, tx, first)
	if err != nil {
		return TransactionResult{}, err
	}
	secondID, err := accountIDForCode(ctx, tx, second)
	if err != nil {
		return TransactionResult{}, err
	}
	fromAccountID, toAccountID := firstID, secondID
	if first != fromCode {
		fromAccountID, toAccountID = secondID, firstID
	}

	// Replays are scoped to the source account.
	const existingTxQuery = `SELECT id, to_account_id, amount FROM transactions
        WHERE client_tx_id = $1 AND kind = $2 AND from_account_id = $3`
	var (
		existingTxID   uuid.UUID
		existingTo     uuid.UUID
		existingAmount int64
	)
	err = tx.QueryRow(ctx, existingTxQuery, clientTxID, kind, fromAccountID).Scan(&existingTxID, &existingTo, &existingAmount)
	if err == nil {
		if existingTo != toAccountID || existingAmount != amount {
			return TransactionResult{}, fmt.Errorf("transaction %s: %w", clientTxID, ErrTransactionMismatch)
		}
		res, balErr := balances(ctx, tx, existingTxID, fromAccountID, toAccountID)
		if balErr != nil {
			return TransactionResult{}, balErr
		}
		return res, ErrDuplicateTransaction
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return TransactionResult{}, err
	}

	if checkFunds {
		fromBalance, err := balanceForAccount(ctx, tx, fromAccountID)
		if err != nil {
			return TransactionResult{}, err
		}
		if fromBalance < amount {
			return TransactionResult{}, ErrInsufficientFunds
		}
	}

	txID := uuid.New()
	const insertTxQuery = `INSERT INTO transactions (id, client_tx_id, kind, from_account_id, to_account_id, amount, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.Exec(ctx, insertTxQuery, txID, clientTxID, kind, fromAccountID, toAccountID, amount, StatusCompleted); err != nil {
		return TransactionResult{}, err
	}

	const entryQuery = `INSERT INTO entries (id, transaction_id, account_id, amount) VALUES ($1, $2, $3, $4)`
	if _, err := tx.Exec(ctx, entryQuery, uuid.New(), txID, fromAccountID, -amount); err != nil {
		return TransactionResult{}, err
	}
	if _, err := tx.Exec(ctx, entryQuery, uuid.New(), txID, toAccountID, amount); err != nil {
		return TransactionResult{}, err
	}

	res, err := balances(ctx, tx, txID, fromAccountID, toAccountID)
	if err != nil {
		return TransactionResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return TransactionResult{}, err
	}
	return res, nil
}

func balances(ctx context.Context, tx pgx.Tx, txID, fromAccountID, toAccountID uuid.UUID) (TransactionResult, error) {
	fromBal, err := balanceForAccount(ctx, tx, fromAccountID)
	if err != nil {
		return TransactionResult{}, err
	}
	toBal, err := balanceForAccount(ctx, tx, toAccountID)
	if err != nil {
		return TransactionResult{}, err
	}
	return TransactionResult{TransactionID: txID.String(), FromBalance: fromBal, ToBalance: toBal}, nil
}

func accountIDForCode(ctx context.Context, tx pgx.Tx, code string) (uuid.UUID, error) {
	const query = `SELECT id FROM accounts WHERE code = $1 FOR UPDATE`
	var id uuid.UUID
	if err := tx.QueryRow(ctx, query, code).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("account %s: %w", code, ErrAccountNotFound)
		}
		return uuid.Nil, err
	}
	return id, nil
}

func balanceForAccount(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM entries WHERE account_id = $1`
	var balance int64
	if err := tx.QueryRow(ctx, query, accountID).Scan(&balance); err != nil {
		return 0, err
	}
	return balance, nil
}
