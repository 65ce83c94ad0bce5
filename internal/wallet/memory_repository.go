package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/walletsvc/wallet_service/internal/domain"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Wallet
}

// NewMemoryRepository constructs an in-memory repository for tests and
// development. It enforces active-name uniqueness like the SQL index does.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string]Wallet)}
}

func (r *memoryRepository) Create(_ context.Context, w Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.storage[w.ID]; exists {
		return fmt.Errorf("wallet %s: %w", w.ID, domain.ErrConflict)
	}
	if w.Active && r.activeNameTaken(w.Name, "") {
		return fmt.Errorf("wallet %s: %w", w.Name, domain.ErrConflict)
	}
	r.storage[w.ID] = w
	return nil
}

func (r *memoryRepository) GetByID(_ context.Context, id string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.storage[id]
	if !ok {
		return Wallet{}, fmt.Errorf("wallet %s: %w", id, domain.ErrNotFound)
	}
	return w, nil
}

func (r *memoryRepository) GetByName(_ context.Context, name string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.storage {
		if w.Active && w.Name == name {
			return w, nil
		}
	}
	return Wallet{}, fmt.Errorf("wallet %s: %w", name, domain.ErrNotFound)
}

func (r *memoryRepository) ExistsByName(_ context.Context, name string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeNameTaken(name, ""), nil
}

func (r *memoryRepository) Update(_ context.Context, id string, patch Patch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.storage[id]
	if !ok {
		return fmt.Errorf("wallet %s: %w", id, domain.ErrNotFound)
	}
	if patch.Name != nil {
		if w.Active && r.activeNameTaken(*patch.Name, id) {
			return fmt.Errorf("wallet %s: %w", *patch.Name, domain.ErrConflict)
		}
		w.Name = *patch.Name
	}
	if patch.About != nil {
		w.About = patch.About
	}
	if patch.LogoURL != nil {
		w.LogoURL = patch.LogoURL
	}
	if patch.CoverURL != nil {
		w.CoverURL = patch.CoverURL
	}
	if patch.AddToWebMap != nil {
		w.AddToWebMap = *patch.AddToWebMap
	}
	w.UpdatedAt = time.Now().UTC()
	r.storage[id] = w
	return nil
}

func (r *memoryRepository) Deactivate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.storage[id]
	if !ok || !w.Active {
		return fmt.Errorf("wallet %s: %w", id, domain.ErrNotFound)
	}
	w.Active = false
	w.UpdatedAt = time.Now().UTC()
	r.storage[id] = w
	return nil
}

// activeNameTaken must be called with the lock held.
func (r *memoryRepository) activeNameTaken(name, exceptID string) bool {
	for id, w := range r.storage {
		if id != exceptID && w.Active && w.Name == name {
			return true
		}
	}
	return false
}
