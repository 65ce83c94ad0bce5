package trust

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/walletsvc/wallet_service/internal/domain"
	"github.com/walletsvc/wallet_service/internal/wallet"
)

// WalletLookup resolves wallet records. wallet.Repository satisfies it.
type WalletLookup interface {
	GetByID(ctx context.Context, id string) (wallet.Wallet, error)
	GetByName(ctx context.Context, name string) (wallet.Wallet, error)
}

type memoryRepository struct {
	mu      sync.RWMutex
	edges   map[string]Trust
	wallets WalletLookup
}

// NewMemoryRepository constructs an in-memory repository for tests and
// development. Reachability joins against wallets.
func NewMemoryRepository(wallets WalletLookup) Repository {
	return &memoryRepository{edges: make(map[string]Trust), wallets: wallets}
}

func (r *memoryRepository) Create(ctx context.Context, t Trust) error {
	for _, id := range []string{t.ActorWalletID, t.TargetWalletID, t.OriginatorWalletID} {
		if _, err := r.wallets.GetByID(ctx, id); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.edges[t.ID]; exists {
		return fmt.Errorf("trust %s: %w", t.ID, domain.ErrConflict)
	}
	for _, e := range r.edges {
		if e.Active && isOpen(e.State) &&
			e.ActorWalletID == t.ActorWalletID && e.TargetWalletID == t.TargetWalletID && e.RequestType == t.RequestType {
			return fmt.Errorf("trust %s: %w", t.ID, domain.ErrConflict)
		}
	}
	r.edges[t.ID] = t
	return nil
}

func (r *memoryRepository) GetByID(_ context.Context, id string) (Trust, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.edges[id]
	if !ok {
		return Trust{}, fmt.Errorf("trust %s: %w", id, domain.ErrNotFound)
	}
	return t, nil
}

func (r *memoryRepository) List(_ context.Context, f Filter) ([]Trust, int, error) {
	if err := f.normalize(); err != nil {
		return nil, 0, err
	}

	r.mu.RLock()
	matched := make([]Trust, 0)
	for _, e := range r.edges {
		if !e.Active || !e.Involves(f.WalletID) {
			continue
		}
		if f.State != "" && e.State != f.State {
			continue
		}
		if f.Type != "" && e.Type != f.Type {
			continue
		}
		if f.RequestType != "" && e.RequestType != f.RequestType {
			continue
		}
		matched = append(matched, e)
	}
	r.mu.RUnlock()

	slices.SortFunc(matched, func(a, b Trust) int {
		c := compareTrust(a, b, f.SortBy)
		if c == 0 {
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		if f.Order == orderDESC {
			return -c
		}
		return c
	})

	count := 0
	if f.WithCount {
		count = len(matched)
	}
	return page(matched, f.Limit, f.Offset), count, nil
}

func (r *memoryRepository) UpdateState(_ context.Context, id string, from, to State) (Trust, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.edges[id]
	if !ok {
		return Trust{}, fmt.Errorf("trust %s: %w", id, domain.ErrNotFound)
	}
	if !t.Active || t.State != from {
		return Trust{}, fmt.Errorf("trust %s is %s, not %s: %w", id, t.State, from, domain.ErrConflict)
	}
	t.State = to
	t.UpdatedAt = time.Now().UTC()
	r.edges[id] = t
	return t, nil
}

func (r *memoryRepository) CloseAllForWallet(_ context.Context, walletID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	changed := 0
	for id, e := range r.edges {
		if !e.Active || !e.Involves(walletID) {
			continue
		}
		switch e.State {
		case StateTrusted:
			e.State = StateRevoked
		case StateRequested:
			e.State = StateRejected
		default:
			continue
		}
		e.UpdatedAt = now
		r.edges[id] = e
		changed++
	}
	return changed, nil
}

func (r *memoryRepository) Manages(_ context.Context, actorID, targetID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.edges {
		if !e.Active || e.State != StateTrusted {
			continue
		}
		if e.RequestType == RequestManage && e.ActorWalletID == actorID && e.TargetWalletID == targetID {
			return true, nil
		}
		if e.RequestType == RequestYield && e.ActorWalletID == targetID && e.TargetWalletID == actorID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepository) ListReachableWallets(ctx context.Context, q ReachableQuery) (ReachableResult, error) {
	if err := q.normalize(); err != nil {
		return ReachableResult{}, err
	}

	ids := map[string]struct{}{q.WalletID: {}}
	r.mu.RLock()
	for _, e := range r.edges {
		if !e.Active || e.State != StateTrusted {
			continue
		}
		switch {
		case e.RequestType == RequestManage && e.ActorWalletID == q.WalletID:
			ids[e.TargetWalletID] = struct{}{}
		case e.RequestType == RequestYield && e.TargetWalletID == q.WalletID:
			ids[e.ActorWalletID] = struct{}{}
		}
	}
	r.mu.RUnlock()

	name := strings.ToLower(q.Name)
	before := q.createdBefore()
	matched := make([]wallet.Wallet, 0, len(ids))
	for id := range ids {
		w, err := r.wallets.GetByID(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return ReachableResult{}, err
		}
		if !w.Active {
			continue
		}
		if id != q.WalletID && !matchesFilters(w, name, q.CreatedFrom, before) {
			continue
		}
		matched = append(matched, w)
	}

	slices.SortFunc(matched, func(a, b wallet.Wallet) int {
		var c int
		if q.SortBy == "name" {
			c = strings.Compare(a.Name, b.Name)
		} else {
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		if q.Order == orderDESC {
			return -c
		}
		return c
	})

	res := ReachableResult{Wallets: page(matched, q.Limit, q.Offset)}
	if q.WithCount {
		res.Count = len(matched)
	}
	return res, nil
}

// matchesFilters applies the name and creation-day filters of a reachability
// query to a managed or yielded wallet.
func matchesFilters(w wallet.Wallet, name string, from, before *time.Time) bool {
	if name != "" && !strings.Contains(strings.ToLower(w.Name), name) {
		return false
	}
	if from != nil && w.CreatedAt.Before(*from) {
		return false
	}
	if before != nil && !w.CreatedAt.Before(*before) {
		return false
	}
	return true
}

func isOpen(s State) bool {
	return s == StateRequested || s == StateTrusted
}

func compareTrust(a, b Trust, sortBy string) int {
	switch sortBy {
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case "state":
		return cmp.Compare(a.State, b.State)
	case "type":
		return cmp.Compare(a.Type, b.Type)
	case "request_type":
		return cmp.Compare(a.RequestType, b.RequestType)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := min(offset+limit, len(items))
	return items[offset:end]
}
