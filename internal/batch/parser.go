package batch

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	columnWalletName = "wallet_name"
	columnAmount     = "token_transfer_amount_overwrite"
)

// Row is one record of an uploaded batch file. Line is 1-based and counts
// the header, so it matches what a spreadsheet shows.
type Row struct {
	Line            int
	WalletName      string
	AmountOverwrite *decimal.Decimal
	// RawAmount keeps the overwrite cell as uploaded so an unparseable value
	// fails its row rather than the whole file.
	RawAmount string
}

// ParseFile reads the CSV at path. Any failure to open or decode the file is
// returned as a *PipelineError. maxRows <= 0 disables the row cap.
func ParseFile(ctx context.Context, path string, maxRows int) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &PipelineError{Op: "open file", Err: err}
	}
	defer f.Close()

	rows, err := Parse(ctx, f, maxRows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Parse decodes CSV records from r. The header must contain wallet_name and
// may contain token_transfer_amount_overwrite; other columns are ignored.
func Parse(ctx context.Context, r io.Reader, maxRows int) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &PipelineError{Op: "parse header", Err: errors.New("file is empty")}
	}
	if err != nil {
		return nil, &PipelineError{Op: "parse header", Err: err}
	}

	nameIdx, amountIdx := -1, -1
	for i, col := range header {
		col = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		switch col {
		case columnWalletName:
			nameIdx = i
		case columnAmount:
			amountIdx = i
		}
	}
	if nameIdx < 0 {
		return nil, &PipelineError{Op: "parse header", Err: fmt.Errorf("missing %s column", columnWalletName)}
	}

	var rows []Row
	for {
		if err := ctx.Err(); err != nil {
			return nil, &PipelineError{Op: "parse rows", Err: err}
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &PipelineError{Op: "parse rows", Err: err}
		}
		line, _ := reader.FieldPos(0)

		if isBlank(record) {
			continue
		}
		if maxRows > 0 && len(rows) >= maxRows {
			return nil, &PipelineError{Op: "parse rows", Err: fmt.Errorf("file has more than %d rows", maxRows)}
		}

		row := Row{Line: line, WalletName: strings.TrimSpace(cell(record, nameIdx))}
		if amountIdx >= 0 {
			row.RawAmount = strings.TrimSpace(cell(record, amountIdx))
			if row.RawAmount != "" {
				if d, err := decimal.NewFromString(row.RawAmount); err == nil {
					row.AmountOverwrite = &d
				}
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func cell(record []string, idx int) string {
	if idx < len(record) {
		return record[idx]
	}
	return ""
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
