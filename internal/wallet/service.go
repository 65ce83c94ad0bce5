package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/walletsvc/wallet_service/internal/asset"
	"github.com/walletsvc/wallet_service/internal/domain"
	"github.com/walletsvc/wallet_service/internal/infra"
	"github.com/walletsvc/wallet_service/internal/ledger"
)

const maxNameLength = 255

// TrustGraph answers delegation questions about wallets. Implemented by
// trust.Service.
type TrustGraph interface {
	CanManage(ctx context.Context, actorWalletID, targetWalletID string) (bool, error)
	RevokeAllForWallet(ctx context.Context, walletID string) (int, error)
}

// Service exposes wallet operations backed by the repository and the ledger.
type Service struct {
	repo   Repository
	trust  TrustGraph
	ledger ledger.Ledger
	assets asset.Store
	tx     infra.TxRunner
	logger *slog.Logger
}

// NewService builds a wallet service instance.
func NewService(repo Repository, trust TrustGraph, led ledger.Ledger, assets asset.Store, tx infra.TxRunner, logger *slog.Logger) *Service {
	if tx == nil {
		tx = infra.NoopTx{}
	}
	return &Service{repo: repo, trust: trust, ledger: led, assets: assets, tx: tx, logger: logger}
}

// Image is an uploaded logo or cover picture.
type Image struct {
	Data        []byte
	ContentType string
}

// UpdateInput carries a partial update. Nil fields are left untouched.
type UpdateInput struct {
	WalletID       string
	ActingWalletID string
	Name           *string
	About          *string
	AddToWebMap    *bool
	Logo           *Image
	Cover          *Image
}

// Balance is the ledger balance of a wallet at a point in time.
type Balance struct {
	WalletID string
	Amount   int64
	AsOf     time.Time
}

// GetByID returns the wallet with id.
func (s *Service) GetByID(ctx context.Context, id string) (Wallet, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByName returns the active wallet named name.
func (s *Service) GetByName(ctx context.Context, name string) (Wallet, error) {
	return s.repo.GetByName(ctx, name)
}

// Exists reports whether an active wallet carries name. Store failures are
// returned, never folded into false.
func (s *Service) Exists(ctx context.Context, name string) (bool, error) {
	return s.repo.ExistsByName(ctx, name)
}

// CreateWallet provisions a wallet and its ledger account.
func (s *Service) CreateWallet(ctx context.Context, name string) (Wallet, error) {
	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return Wallet{}, err
	}

	exists, err := s.repo.ExistsByName(ctx, name)
	if err != nil {
		return Wallet{}, fmt.Errorf("check wallet name: %w", err)
	}
	if exists {
		return Wallet{}, fmt.Errorf("wallet %s already exists: %w", name, domain.ErrConflict)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Wallet{}, fmt.Errorf("generate wallet id: %w", err)
	}
	now := time.Now().UTC()
	w := Wallet{
		ID:        id.String(),
		Name:      name,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, w); err != nil {
			return err
		}
		return s.ledger.EnsureAccount(ctx, ledger.WalletAccountCode(w.ID))
	})
	if err != nil {
		return Wallet{}, err
	}

	s.logger.InfoContext(ctx, "wallet created", "wallet_id", w.ID, "name", w.Name)
	return w, nil
}

// Authorize checks that actingWalletID may act on targetWalletID: either it
// is the same wallet or it manages the target through a trusted edge.
func (s *Service) Authorize(ctx context.Context, actingWalletID, targetWalletID string) error {
	if actingWalletID == "" {
		return domain.ErrUnauthorized
	}
	if actingWalletID == targetWalletID {
		return nil
	}
	if s.trust == nil {
		return fmt.Errorf("wallet %s: %w", targetWalletID, domain.ErrForbidden)
	}
	ok, err := s.trust.CanManage(ctx, actingWalletID, targetWalletID)
	if err != nil {
		return fmt.Errorf("check trust: %w", err)
	}
	if !ok {
		return fmt.Errorf("wallet %s: %w", targetWalletID, domain.ErrForbidden)
	}
	return nil
}

// UpdateWallet applies the supplied fields and returns the stored record.
// Images are uploaded before the row is touched.
func (s *Service) UpdateWallet(ctx context.Context, in UpdateInput) (Wallet, error) {
	current, err := s.repo.GetByID(ctx, in.WalletID)
	if err != nil {
		return Wallet{}, err
	}
	if err := s.Authorize(ctx, in.ActingWalletID, in.WalletID); err != nil {
		return Wallet{}, err
	}

	var patch Patch
	patch.About = in.About
	patch.AddToWebMap = in.AddToWebMap

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := validateName(name); err != nil {
			return Wallet{}, err
		}
		if name != current.Name {
			exists, err := s.repo.ExistsByName(ctx, name)
			if err != nil {
				return Wallet{}, fmt.Errorf("check wallet name: %w", err)
			}
			if exists {
				return Wallet{}, fmt.Errorf("wallet %s already exists: %w", name, domain.ErrConflict)
			}
		}
		patch.Name = &name
	}

	if in.Logo != nil {
		url, err := s.upload(ctx, "logos", in.Logo)
		if err != nil {
			return Wallet{}, err
		}
		patch.LogoURL = &url
	}
	if in.Cover != nil {
		url, err := s.upload(ctx, "covers", in.Cover)
		if err != nil {
			return Wallet{}, err
		}
		patch.CoverURL = &url
	}

	if patch.IsEmpty() {
		return current, nil
	}
	if err := s.repo.Update(ctx, in.WalletID, patch); err != nil {
		return Wallet{}, err
	}
	return s.repo.GetByID(ctx, in.WalletID)
}

// Deactivate revokes every trust edge of walletID and then marks it inactive,
// both inside one transaction.
func (s *Service) Deactivate(ctx context.Context, actingWalletID, walletID string) error {
	if _, err := s.repo.GetByID(ctx, walletID); err != nil {
		return err
	}
	if err := s.Authorize(ctx, actingWalletID, walletID); err != nil {
		return err
	}

	var revoked int
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if s.trust != nil {
			n, err := s.trust.RevokeAllForWallet(ctx, walletID)
			if err != nil {
				return fmt.Errorf("revoke trust: %w", err)
			}
			revoked = n
		}
		return s.repo.Deactivate(ctx, walletID)
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "wallet deactivated", "wallet_id", walletID, "revoked_edges", revoked)
	return nil
}

// Balance returns the ledger balance for the wallet.
func (s *Service) Balance(ctx context.Context, id string) (Balance, error) {
	w, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Balance{}, err
	}
	amount, err := s.ledger.Balance(ctx, ledger.WalletAccountCode(w.ID))
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return Balance{WalletID: w.ID, AsOf: time.Now().UTC()}, nil
		}
		return Balance{}, err
	}
	return Balance{WalletID: w.ID, Amount: amount, AsOf: time.Now().UTC()}, nil
}

func (s *Service) upload(ctx context.Context, prefix string, img *Image) (string, error) {
	if s.assets == nil {
		return "", fmt.Errorf("asset storage not configured: %w", domain.ErrUpstream)
	}
	if !asset.IsImage(img.ContentType) {
		return "", domain.NewValidationError(prefix, "unsupported image type "+img.ContentType)
	}
	if len(img.Data) == 0 {
		return "", domain.NewValidationError(prefix, "image is empty")
	}
	url, err := s.assets.Put(ctx, asset.ObjectKey(prefix, img.Data, img.ContentType), img.Data, img.ContentType)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w: %v", prefix, domain.ErrUpstream, err)
	}
	return url, nil
}

func validateName(name string) error {
	if name == "" {
		return domain.NewValidationError("name", "is required")
	}
	if len(name) > maxNameLength {
		return domain.NewValidationError("name", fmt.Sprintf("must be at most %d characters", maxNameLength))
	}
	return nil
}
