package ledger

import (
	"context"
	"sync"
)

// posting remembers what a client transaction id was used for.
type posting struct {
	toCode string
	amount int64
	result TransactionResult
}

type inMemoryLedger struct {
	mu           sync.RWMutex
	balances     map[string]int64
	transactions map[string]posting
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		balances:     map[string]int64{IssuanceAccountCode: 0},
		transactions: make(map[string]posting),
	}
}

func (l *inMemoryLedger) EnsureAccount(_ context.Context, code string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.balances[code]; !exists {
		l.balances[code] = 0
	}
	return nil
}

func (l *inMemoryLedger) Balance(_ context.Context, code string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	balance, exists := l.balances[code]
	if !exists {
		return 0, ErrAccountNotFound
	}
	return balance, nil
}

func (l *inMemoryLedger) Credit(_ context.Context, code, clientTxID string, amount int64) (CreditResult, error) {
	res, err := l.post(IssuanceAccountCode, code, KindCredit, clientTxID, amount, false)
	return CreditResult{TransactionID: res.TransactionID, Balance: res.ToBalance}, err
}

func (l *inMemoryLedger) Transfer(_ context.Context, fromCode, toCode, kind, clientTxID string, amount int64) (TransactionResult, error) {
	return l.post(fromCode, toCode, kind, clientTxID, amount, true)
}

func (l *inMemoryLedger) post(fromCode, toCode, kind, clientTxID string, amount int64, checkFunds bool) (TransactionResult, error) {
	if amount <= 0 {
		return TransactionResult{}, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := kind + ":" + fromCode + ":" + clientTxID
	if prev, exists := l.transactions[key]; exists {
		if prev.toCode != toCode || prev.amount != amount {
			return TransactionResult{}, ErrTransactionMismatch
		}
		res := prev.result
		res.FromBalance = l.balances[fromCode]
		res.ToBalance = l.balances[toCode]
		return res, ErrDuplicateTransaction
	}

	fromBalance, ok := l.balances[fromCode]
	if !ok {
		return TransactionResult{}, ErrAccountNotFound
	}
	toBalance, ok := l.balances[toCode]
	if !ok {
		return TransactionResult{}, ErrAccountNotFound
	}

	if checkFunds && fromBalance < amount {
		return TransactionResult{}, ErrInsufficientFunds
	}

	fromBalance -= amount
	toBalance += amount

	l.balances[fromCode] = fromBalance
	l.balances[toCode] = toBalance

	res := TransactionResult{
		TransactionID: key,
		FromBalance:   fromBalance,
		ToBalance:     toBalance,
	}
	l.transactions[key] = posting{toCode: toCode, amount: amount, result: res}
	return res, nil
}
