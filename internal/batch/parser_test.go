package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_HeaderAndOverwrite(t *testing.T) {
	input := "\ufeffWallet_Name,token_transfer_amount_overwrite\nwallet1,50\nwallet2,\n"

	rows, err := Parse(context.Background(), strings.NewReader(input), 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, "wallet1", rows[0].WalletName)
	require.NotNil(t, rows[0].AmountOverwrite)
	assert.Equal(t, "50", rows[0].AmountOverwrite.String())

	assert.Equal(t, 3, rows[1].Line)
	assert.Nil(t, rows[1].AmountOverwrite)
	assert.Empty(t, rows[1].RawAmount)
}

func TestParse_OverwriteColumnOptional(t *testing.T) {
	rows, err := Parse(context.Background(), strings.NewReader("wallet_name\nalpha\n\nbeta\n"), 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "beta", rows[1].WalletName)
	assert.Equal(t, 4, rows[1].Line)
}

func TestParse_KeepsUnparseableAmountForRowValidation(t *testing.T) {
	rows, err := Parse(context.Background(), strings.NewReader("wallet_name,token_transfer_amount_overwrite\nalpha,lots\n"), 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].AmountOverwrite)
	assert.Equal(t, "lots", rows[0].RawAmount)
}

func TestParse_SkipsBlankRecords(t *testing.T) {
	rows, err := Parse(context.Background(), strings.NewReader("wallet_name,token_transfer_amount_overwrite\n , \nalpha,1\n"), 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "alpha", rows[0].WalletName)
}

func TestParse_Failures(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"missing column": "name,amount\nalpha,1\n",
		"bad quoting":    "wallet_name\n\"alpha\n",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(context.Background(), strings.NewReader(input), 0)
			var perr *PipelineError
			require.ErrorAs(t, err, &perr)
		})
	}
}

func TestParse_MaxRows(t *testing.T) {
	_, err := Parse(context.Background(), strings.NewReader("wallet_name\na\nb\nc\n"), 2)
	var perr *PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Error(), "more than 2 rows")
}

func TestParse_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Parse(ctx, strings.NewReader("wallet_name\nalpha\n"), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.csv")
	require.NoError(t, os.WriteFile(path, []byte("wallet_name\nalpha\n"), 0o600))

	rows, err := ParseFile(context.Background(), path, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	_, err = ParseFile(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), 10)
	var perr *PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "open file", perr.Op)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
