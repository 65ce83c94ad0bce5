package trust

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/walletsvc/wallet_service/internal/domain"
	"github.com/walletsvc/wallet_service/internal/wallet"
)

// Service runs the trust workflow and answers graph queries.
type Service struct {
	repo    Repository
	wallets WalletLookup
	logger  *slog.Logger
}

// NewService builds a trust service.
func NewService(repo Repository, wallets WalletLookup, logger *slog.Logger) *Service {
	return &Service{repo: repo, wallets: wallets, logger: logger}
}

// RequestInput opens a trust request. Requester and Requestee are wallet ids
// or names; the acting wallet must be the requester or manage it.
type RequestInput struct {
	ActingWalletID string
	RequestType    RequestType
	Requester      string
	Requestee      string
}

// GetAllWallets returns the focal wallet and every wallet it can act upon.
func (s *Service) GetAllWallets(ctx context.Context, actingWalletID string, q ReachableQuery) (ReachableResult, error) {
	if _, err := s.wallets.GetByID(ctx, q.WalletID); err != nil {
		return ReachableResult{}, err
	}
	if err := s.authorize(ctx, actingWalletID, q.WalletID); err != nil {
		return ReachableResult{}, err
	}
	return s.repo.ListReachableWallets(ctx, q)
}

// GetTrustRelationships lists edges where the wallet is actor or target.
func (s *Service) GetTrustRelationships(ctx context.Context, actingWalletID string, f Filter) ([]Trust, int, error) {
	if _, err := s.wallets.GetByID(ctx, f.WalletID); err != nil {
		return nil, 0, err
	}
	if err := s.authorize(ctx, actingWalletID, f.WalletID); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, f)
}

// Request creates an edge in the requested state.
func (s *Service) Request(ctx context.Context, in RequestInput) (Trust, error) {
	if !in.RequestType.IsValid() {
		return Trust{}, domain.NewValidationError("trust_request_type", "unknown request type "+string(in.RequestType))
	}
	requester, err := s.resolve(ctx, "requester_wallet", in.Requester)
	if err != nil {
		return Trust{}, err
	}
	requestee, err := s.resolve(ctx, "requestee_wallet", in.Requestee)
	if err != nil {
		return Trust{}, err
	}
	if requester.ID == requestee.ID {
		return Trust{}, domain.NewValidationError("requestee_wallet", "cannot trust itself")
	}
	if err := s.authorize(ctx, in.ActingWalletID, requester.ID); err != nil {
		return Trust{}, err
	}

	actor, target := requester.ID, requestee.ID
	if in.RequestType == RequestReceive || in.RequestType == RequestRelease {
		actor, target = target, actor
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Trust{}, fmt.Errorf("generate trust id: %w", err)
	}
	now := time.Now().UTC()
	t := Trust{
		ID:                 id.String(),
		ActorWalletID:      actor,
		TargetWalletID:     target,
		OriginatorWalletID: in.ActingWalletID,
		Type:               in.RequestType.Type(),
		RequestType:        in.RequestType,
		State:              StateRequested,
		Active:             true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return Trust{}, err
	}

	s.logger.InfoContext(ctx, "trust requested",
		"trust_id", t.ID, "request_type", t.RequestType, "actor_wallet_id", actor, "target_wallet_id", target)
	return t, nil
}

// Approve moves a requested edge to trusted. Only the side that did not
// originate the request may approve it.
func (s *Service) Approve(ctx context.Context, actingWalletID, trustID string) (Trust, error) {
	return s.transition(ctx, actingWalletID, trustID, StateTrusted)
}

// Reject moves a requested edge to rejected. Either side may reject, which
// also covers the requester cancelling.
func (s *Service) Reject(ctx context.Context, actingWalletID, trustID string) (Trust, error) {
	return s.transition(ctx, actingWalletID, trustID, StateRejected)
}

// Revoke moves a trusted edge to revoked.
func (s *Service) Revoke(ctx context.Context, actingWalletID, trustID string) (Trust, error) {
	return s.transition(ctx, actingWalletID, trustID, StateRevoked)
}

// RevokeAllForWallet closes every open edge touching walletID.
func (s *Service) RevokeAllForWallet(ctx context.Context, walletID string) (int, error) {
	n, err := s.repo.CloseAllForWallet(ctx, walletID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "trust closed for wallet", "wallet_id", walletID, "edges", n)
	}
	return n, nil
}

// CanManage reports whether actorWalletID manages targetWalletID.
func (s *Service) CanManage(ctx context.Context, actorWalletID, targetWalletID string) (bool, error) {
	return s.repo.Manages(ctx, actorWalletID, targetWalletID)
}

func (s *Service) transition(ctx context.Context, actingWalletID, trustID string, to State) (Trust, error) {
	t, err := s.repo.GetByID(ctx, trustID)
	if err != nil {
		return Trust{}, err
	}

	if to == StateTrusted {
		if err := s.authorize(ctx, actingWalletID, counterparty(t)); err != nil {
			return Trust{}, err
		}
	} else if err := s.authorizeAny(ctx, actingWalletID, t.ActorWalletID, t.TargetWalletID); err != nil {
		return Trust{}, err
	}

	if !t.State.CanTransition(to) {
		return Trust{}, fmt.Errorf("trust %s cannot move from %s to %s: %w", t.ID, t.State, to, domain.ErrConflict)
	}

	updated, err := s.repo.UpdateState(ctx, t.ID, t.State, to)
	if err != nil {
		return Trust{}, err
	}

	s.logger.InfoContext(ctx, "trust state changed",
		"trust_id", t.ID, "from", t.State, "to", to, "acting_wallet_id", actingWalletID)
	return updated, nil
}

// counterparty is the participant that received the request.
func counterparty(t Trust) string {
	if t.RequestType == RequestReceive || t.RequestType == RequestRelease {
		return t.ActorWalletID
	}
	return t.TargetWalletID
}

func (s *Service) authorize(ctx context.Context, actingWalletID, walletID string) error {
	return s.authorizeAny(ctx, actingWalletID, walletID)
}

// authorizeAny succeeds when the acting wallet is, or manages, any of walletIDs.
func (s *Service) authorizeAny(ctx context.Context, actingWalletID string, walletIDs ...string) error {
	if actingWalletID == "" {
		return domain.ErrUnauthorized
	}
	for _, id := range walletIDs {
		if id == actingWalletID {
			return nil
		}
	}
	for _, id := range walletIDs {
		ok, err := s.repo.Manages(ctx, actingWalletID, id)
		if err != nil {
			return fmt.Errorf("check trust: %w", err)
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("wallet %s may not act for %v: %w", actingWalletID, walletIDs, domain.ErrForbidden)
}

func (s *Service) resolve(ctx context.Context, field, ref string) (wallet.Wallet, error) {
	if ref == "" {
		return wallet.Wallet{}, domain.NewValidationError(field, "is required")
	}
	if _, err := uuid.Parse(ref); err == nil {
		w, err := s.wallets.GetByID(ctx, ref)
		if err == nil && w.Active {
			return w, nil
		}
		if err != nil && !isNotFound(err) {
			return wallet.Wallet{}, err
		}
	}
	w, err := s.wallets.GetByName(ctx, ref)
	if err != nil {
		if isNotFound(err) {
			return wallet.Wallet{}, fmt.Errorf("%s %s: %w", field, ref, domain.ErrNotFound)
		}
		return wallet.Wallet{}, err
	}
	return w, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
