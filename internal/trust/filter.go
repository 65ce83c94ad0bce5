package trust

import (
	"strings"
	"time"

	"github.com/walletsvc/wallet_service/internal/domain"
	"github.com/walletsvc/wallet_service/internal/wallet"
)

const (
	defaultLimit = 100
	maxLimit     = 1000

	orderASC  = "ASC"
	orderDESC = "DESC"
)

// Filter selects trust edges touching a wallet, as actor or as target.
// Empty State, Type and RequestType match anything.
type Filter struct {
	WalletID    string
	State       State
	Type        Type
	RequestType RequestType

	// SortBy: created_at, updated_at, state, type or request_type.
	// Default created_at.
	SortBy string
	// Order: ASC or DESC. Default ASC.
	Order     string
	Limit     int
	Offset    int
	WithCount bool
}

var trustSortColumns = map[string]bool{
	"created_at":   true,
	"updated_at":   true,
	"state":        true,
	"type":         true,
	"request_type": true,
}

// normalize applies defaults and rejects values outside the enums.
func (f *Filter) normalize() error {
	var errs []domain.FieldError
	if f.WalletID == "" {
		errs = append(errs, domain.FieldError{Field: "wallet_id", Message: "is required"})
	}
	if f.State != "" && !f.State.IsValid() {
		errs = append(errs, domain.FieldError{Field: "state", Message: "unknown state " + string(f.State)})
	}
	if f.Type != "" && !f.Type.IsValid() {
		errs = append(errs, domain.FieldError{Field: "type", Message: "unknown type " + string(f.Type)})
	}
	if f.RequestType != "" && !f.RequestType.IsValid() {
		errs = append(errs, domain.FieldError{Field: "request_type", Message: "unknown request type " + string(f.RequestType)})
	}

	f.SortBy = strings.ToLower(strings.TrimSpace(f.SortBy))
	if f.SortBy == "" {
		f.SortBy = "created_at"
	}
	if !trustSortColumns[f.SortBy] {
		errs = append(errs, domain.FieldError{Field: "sort_by", Message: "unsupported sort column " + f.SortBy})
	}

	order, err := normalizeOrder(f.Order)
	if err != nil {
		errs = append(errs, *err)
	}
	f.Order = order
	f.Limit, f.Offset = clampPage(f.Limit, f.Offset)

	if len(errs) > 0 {
		return domain.NewValidationErrors(errs)
	}
	return nil
}

// ReachableQuery asks for the wallets a focal wallet can act upon.
type ReachableQuery struct {
	WalletID string
	// Name is a case-insensitive substring match.
	Name string
	// CreatedFrom and CreatedTo bound created_at by calendar day (UTC),
	// both ends inclusive.
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	// SortBy: name or created_at. Default created_at.
	SortBy    string
	Order     string
	Limit     int
	Offset    int
	WithCount bool
}

// ReachableResult is one page of reachable wallets. Count is the total
// across pages and is only filled when the query set WithCount.
type ReachableResult struct {
	Wallets []wallet.Wallet
	Count   int
}

func (q *ReachableQuery) normalize() error {
	var errs []domain.FieldError
	if q.WalletID == "" {
		errs = append(errs, domain.FieldError{Field: "wallet_id", Message: "is required"})
	}

	q.Name = strings.TrimSpace(q.Name)

	q.SortBy = strings.ToLower(strings.TrimSpace(q.SortBy))
	switch q.SortBy {
	case "":
		q.SortBy = "created_at"
	case "name", "created_at":
	default:
		errs = append(errs, domain.FieldError{Field: "sort_by", Message: "must be name or created_at"})
	}

	order, err := normalizeOrder(q.Order)
	if err != nil {
		errs = append(errs, *err)
	}
	q.Order = order
	q.Limit, q.Offset = clampPage(q.Limit, q.Offset)

	if q.CreatedFrom != nil {
		from := startOfDay(*q.CreatedFrom)
		q.CreatedFrom = &from
	}
	if q.CreatedTo != nil {
		to := startOfDay(*q.CreatedTo)
		q.CreatedTo = &to
	}
	if q.CreatedFrom != nil && q.CreatedTo != nil && q.CreatedTo.Before(*q.CreatedFrom) {
		errs = append(errs, domain.FieldError{Field: "created_at_end_date", Message: "must not be before the start date"})
	}

	if len(errs) > 0 {
		return domain.NewValidationErrors(errs)
	}
	return nil
}

// createdBefore returns the exclusive upper bound for CreatedTo.
func (q *ReachableQuery) createdBefore() *time.Time {
	if q.CreatedTo == nil {
		return nil
	}
	next := q.CreatedTo.AddDate(0, 0, 1)
	return &next
}

func normalizeOrder(order string) (string, *domain.FieldError) {
	switch strings.ToUpper(strings.TrimSpace(order)) {
	case "", orderASC:
		return orderASC, nil
	case orderDESC:
		return orderDESC, nil
	default:
		return orderASC, &domain.FieldError{Field: "order", Message: "must be ASC or DESC"}
	}
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
