package wallet

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletsvc/wallet_service/internal/asset"
	"github.com/walletsvc/wallet_service/internal/domain"
	"github.com/walletsvc/wallet_service/internal/infra"
	"github.com/walletsvc/wallet_service/internal/ledger"
	"github.com/walletsvc/wallet_service/internal/logging"
)

type fakeTrust struct {
	managed map[[2]string]bool
	revoked []string
	err     error
}

func (f *fakeTrust) CanManage(_ context.Context, actor, target string) (bool, error) {
	return f.managed[[2]string{actor, target}], f.err
}

func (f *fakeTrust) RevokeAllForWallet(_ context.Context, walletID string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.revoked = append(f.revoked, walletID)
	return 2, nil
}

type fixture struct {
	svc    *Service
	repo   Repository
	trust  *fakeTrust
	ledger ledger.Ledger
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store, err := asset.NewDiskStore(t.TempDir(), "http://assets.local")
	require.NoError(t, err)

	repo := NewMemoryRepository()
	trust := &fakeTrust{managed: map[[2]string]bool{}}
	led := ledger.NewInMemory()
	return fixture{
		svc:    NewService(repo, trust, led, store, infra.NoopTx{}, logging.Discard()),
		repo:   repo,
		trust:  trust,
		ledger: led,
	}
}

func strPtr(s string) *string { return &s }

func TestService_CreateAndLookupAgree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreateWallet(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, created.Active)
	assert.NotEmpty(t, created.ID)

	byID, err := f.svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	byName, err := f.svc.GetByName(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, byID, byName)

	exists, err := f.svc.Exists(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, exists)

	balance, err := f.svc.Balance(ctx, created.ID)
	require.NoError(t, err)
	assert.Zero(t, balance.Amount)
}

func TestService_CreateDuplicateConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.CreateWallet(ctx, "acme")
	require.NoError(t, err)

	_, err = f.svc.CreateWallet(ctx, "acme")
	require.ErrorIs(t, err, domain.ErrConflict)

	got, err := f.svc.GetByName(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}

func TestService_CreateNameIsCaseSensitive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateWallet(ctx, "acme")
	require.NoError(t, err)
	_, err = f.svc.CreateWallet(ctx, "Acme")
	require.NoError(t, err)
}

func TestService_CreateValidatesName(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateWallet(context.Background(), "   ")
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.CreateWallet(context.Background(), strings.Repeat("x", maxNameLength+1))
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestService_GetMissing(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.GetByName(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_UpdateKeepsOmittedFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w, err := f.svc.CreateWallet(ctx, "acme")
	require.NoError(t, err)

	updated, err := f.svc.UpdateWallet(ctx, UpdateInput{WalletID: w.ID, ActingWalletID: w.ID, About: strPtr("first")})
	require.NoError(t, err)
	require.NotNil(t, updated.About)
	assert.Equal(t, "first", *updated.About)

	webMap := true
	updated, err = f.svc.UpdateWallet(ctx, UpdateInput{WalletID: w.ID, ActingWalletID: w.ID, AddToWebMap: &webMap})
	require.NoError(t, err)
	assert.Equal(t, "acme", updated.Name)
	require.NotNil(t, updated.About)
	assert.Equal(t, "first", *updated.About)
	assert.True(t, updated.AddToWebMap)
	assert.Nil(t, updated.LogoURL)
}

func TestService_UpdateRenameConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.CreateWallet(ctx, "a")
	require.NoError(t, err)
	_, err = f.svc.CreateWallet(ctx, "b")
	require.NoError(t, err)

	_, err = f.svc.UpdateWallet(ctx, UpdateInput{WalletID: a.ID, ActingWalletID: a.ID, Name: strPtr("b")})
	require.ErrorIs(t, err, domain.ErrConflict)

	renamed, err := f.svc.UpdateWallet(ctx, UpdateInput{WalletID: a.ID, ActingWalletID: a.ID, Name: strPtr("c")})
	require.NoError(t, err)
	assert.Equal(t, "c", renamed.Name)
}

func TestService_UpdateUploadsImages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w, err := f.svc.CreateWallet(ctx, "acme")
	require.NoError(t, err)

	updated, err := f.svc.UpdateWallet(ctx, UpdateInput{
		WalletID:       w.ID,
		ActingWalletID: w.ID,
		Logo:           &Image{Data: []byte("png"), ContentType: "image/png"},
	})
	require.NoError(t, err)
	require.NotNil(t, updated.LogoURL)
	assert.True(t, strings.HasPrefix(*updated.LogoURL, "http://assets.local/logos/"))
	assert.Nil(t, updated.CoverURL)

	_, err = f.svc.UpdateWallet(ctx, UpdateInput{
		WalletID:       w.ID,
		ActingWalletID: w.ID,
		Cover:          &Image{Data: []byte("%PDF"), ContentType: "application/pdf"},
	})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestService_UpdateAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner, err := f.svc.CreateWallet(ctx, "owner")
	require.NoError(t, err)
	managed, err := f.svc.CreateWallet(ctx, "managed")
	require.NoError(t, err)
	stranger, err := f.svc.CreateWallet(ctx, "stranger")
	require.NoError(t, err)

	f.trust.managed[[2]string{owner.ID, managed.ID}] = true

	_, err = f.svc.UpdateWallet(ctx, UpdateInput{WalletID: managed.ID, ActingWalletID: stranger.ID, About: strPtr("x")})
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.UpdateWallet(ctx, UpdateInput{WalletID: managed.ID, About: strPtr("x")})
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	updated, err := f.svc.UpdateWallet(ctx, UpdateInput{WalletID: managed.ID, ActingWalletID: owner.ID, About: strPtr("x")})
	require.NoError(t, err)
	assert.Equal(t, "x", *updated.About)
}

func TestService_UnknownWalletIsNotFoundBeforeAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stranger, err := f.svc.CreateWallet(ctx, "stranger")
	require.NoError(t, err)

	_, err = f.svc.UpdateWallet(ctx, UpdateInput{WalletID: "does-not-exist", ActingWalletID: stranger.ID, About: strPtr("x")})
	require.ErrorIs(t, err, domain.ErrNotFound)

	err = f.svc.Deactivate(ctx, stranger.ID, "does-not-exist")
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, f.trust.revoked)
}

func TestService_DeactivateRevokesTrustAndFreesName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w, err := f.svc.CreateWallet(ctx, "acme")
	require.NoError(t, err)

	require.NoError(t, f.svc.Deactivate(ctx, w.ID, w.ID))
	assert.Equal(t, []string{w.ID}, f.trust.revoked)

	got, err := f.svc.GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	exists, err := f.svc.Exists(ctx, "acme")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = f.svc.CreateWallet(ctx, "acme")
	require.NoError(t, err)
}

func TestService_DeactivateStopsWhenRevokeFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w, err := f.svc.CreateWallet(ctx, "acme")
	require.NoError(t, err)
	f.trust.err = errors.New("store down")

	require.Error(t, f.svc.Deactivate(ctx, w.ID, w.ID))

	got, err := f.svc.GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, got.Active)
}
