package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletsvc/wallet_service/internal/infra"
	"github.com/walletsvc/wallet_service/internal/infra/testhelper"
)

func TestPostgresLedger_CreditAndTransfer(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	l := NewPostgresLedger(pool)
	ctx := context.Background()

	from := WalletAccountCode(uuid.NewString())
	to := WalletAccountCode(uuid.NewString())
	require.NoError(t, l.EnsureAccount(ctx, from))
	require.NoError(t, l.EnsureAccount(ctx, to))
	require.NoError(t, l.EnsureAccount(ctx, from), "EnsureAccount is idempotent")

	credited, err := l.Credit(ctx, from, "credit-"+uuid.NewString(), 1_000)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000), credited.Balance)

	txID := "transfer-" + uuid.NewString()
	res, err := l.Transfer(ctx, from, to, KindTransfer, txID, 400)
	require.NoError(t, err)
	assert.Equal(t, int64(600), res.FromBalance)
	assert.Equal(t, int64(400), res.ToBalance)

	replay, err := l.Transfer(ctx, from, to, KindTransfer, txID, 400)
	require.ErrorIs(t, err, ErrDuplicateTransaction)
	assert.Equal(t, res.TransactionID, replay.TransactionID)

	_, err = l.Transfer(ctx, to, from, KindTransfer, "transfer-"+uuid.NewString(), 401)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	bal, err := l.Balance(ctx, to)
	require.NoError(t, err)
	assert.Equal(t, int64(400), bal)

	_, err = l.Balance(ctx, WalletAccountCode(uuid.NewString()))
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestPostgresLedger_RollsBackWithOuterTransaction(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	l := NewPostgresLedger(pool)
	tx := infra.NewTxManager(pool)
	ctx := context.Background()

	code := WalletAccountCode(uuid.NewString())
	require.NoError(t, l.EnsureAccount(ctx, code))

	boom := errors.New("boom")
	err := tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := l.Credit(ctx, code, "credit-"+uuid.NewString(), 50); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	bal, err := l.Balance(ctx, code)
	require.NoError(t, err)
	assert.Zero(t, bal)

	var n int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT count(*) FROM entries e JOIN accounts a ON a.id = e.account_id WHERE a.code = $1`, code).Scan(&n))
	assert.Zero(t, n)
}

func TestPostgresLedger_ReplayScopedToSource(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	l := NewPostgresLedger(pool)
	ctx := context.Background()

	codes := make([]string, 4)
	for i := range codes {
		codes[i] = WalletAccountCode(uuid.NewString())
		require.NoError(t, l.EnsureAccount(ctx, codes[i]))
	}
	a, b, c, d := codes[0], codes[1], codes[2], codes[3]
	_, err := l.Credit(ctx, a, "credit-"+uuid.NewString(), 100)
	require.NoError(t, err)
	_, err = l.Credit(ctx, c, "credit-"+uuid.NewString(), 100)
	require.NoError(t, err)

	txID := "pay-" + uuid.NewString()
	_, err = l.Transfer(ctx, a, b, KindTransfer, txID, 10)
	require.NoError(t, err)

	res, err := l.Transfer(ctx, c, d, KindTransfer, txID, 50)
	require.NoError(t, err, "same id from another source posts")
	assert.Equal(t, int64(50), res.FromBalance)
	assert.Equal(t, int64(50), res.ToBalance)

	_, err = l.Transfer(ctx, a, d, KindTransfer, txID, 10)
	require.ErrorIs(t, err, ErrTransactionMismatch)
	_, err = l.Transfer(ctx, a, b, KindTransfer, txID, 11)
	require.ErrorIs(t, err, ErrTransactionMismatch)

	bal, err := l.Balance(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, int64(90), bal)
}
