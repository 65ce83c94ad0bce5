package wallet

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/walletsvc/wallet_service/internal/domain"
	"github.com/walletsvc/wallet_service/internal/infra"
)

// Repository persists wallet records.
type Repository interface {
	Create(ctx context.Context, wallet Wallet) error
	GetByID(ctx context.Context, id string) (Wallet, error)
	// GetByName looks the name up among active wallets.
	GetByName(ctx context.Context, name string) (Wallet, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	Update(ctx context.Context, id string, patch Patch) error
	Deactivate(ctx context.Context, id string) error
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var walletColumns = []string{
	"id", "name", "about", "logo_url", "cover_url", "add_to_web_map", "active", "created_at", "updated_at",
}

// PostgresRepository stores wallets in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a wallet record. A duplicate active name yields domain.ErrConflict.
func (r *PostgresRepository) Create(ctx context.Context, w Wallet) error {
	walletID, err := uuid.Parse(w.ID)
	if err != nil {
		return domain.NewValidationError("id", "must be a uuid")
	}
	_, err = infra.QuerierFromCtx(ctx, r.db).Exec(ctx, `INSERT INTO wallets
        (id, name, about, logo_url, cover_url, add_to_web_map, active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		walletID, w.Name, w.About, w.LogoURL, w.CoverURL, w.AddToWebMap, w.Active, w.CreatedAt.UTC(), w.UpdatedAt.UTC())
	return infra.MapError(err, "wallet", w.Name)
}

// GetByID fetches a wallet by identifier.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (Wallet, error) {
	walletID, err := uuid.Parse(id)
	if err != nil {
		return Wallet{}, fmt.Errorf("wallet %s: %w", id, domain.ErrNotFound)
	}
	query, args, err := psql.Select(walletColumns...).From("wallets").Where(sq.Eq{"id": walletID.String()}).ToSql()
	if err != nil {
		return Wallet{}, err
	}
	w, err := scanWallet(infra.QuerierFromCtx(ctx, r.db).QueryRow(ctx, query, args...))
	if err != nil {
		return Wallet{}, infra.MapError(err, "wallet", id)
	}
	return w, nil
}

// GetByName fetches the active wallet carrying name.
func (r *PostgresRepository) GetByName(ctx context.Context, name string) (Wallet, error) {
	query, args, err := psql.Select(walletColumns...).From("wallets").
		Where(sq.Eq{"name": name, "active": true}).ToSql()
	if err != nil {
		return Wallet{}, err
	}
	w, err := scanWallet(infra.QuerierFromCtx(ctx, r.db).QueryRow(ctx, query, args...))
	if err != nil {
		return Wallet{}, infra.MapError(err, "wallet", name)
	}
	return w, nil
}

// ExistsByName reports whether an active wallet carries name.
func (r *PostgresRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := infra.QuerierFromCtx(ctx, r.db).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM wallets WHERE name = $1 AND active)`, name).Scan(&exists)
	if err != nil {
		return false, infra.MapError(err, "wallet", name)
	}
	return exists, nil
}

// Update applies the non-nil fields of patch to the wallet.
func (r *PostgresRepository) Update(ctx context.Context, id string, patch Patch) error {
	walletID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("wallet %s: %w", id, domain.ErrNotFound)
	}

	set := map[string]any{"updated_at": time.Now().UTC()}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.About != nil {
		set["about"] = *patch.About
	}
	if patch.LogoURL != nil {
		set["logo_url"] = *patch.LogoURL
	}
	if patch.CoverURL != nil {
		set["cover_url"] = *patch.CoverURL
	}
	if patch.AddToWebMap != nil {
		set["add_to_web_map"] = *patch.AddToWebMap
	}

	query, args, err := psql.Update("wallets").SetMap(set).Where(sq.Eq{"id": walletID.String()}).ToSql()
	if err != nil {
		return err
	}
	tag, err := infra.QuerierFromCtx(ctx, r.db).Exec(ctx, query, args...)
	if err != nil {
		return infra.MapError(err, "wallet", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Deactivate marks the wallet inactive, freeing its name.
func (r *PostgresRepository) Deactivate(ctx context.Context, id string) error {
	walletID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("wallet %s: %w", id, domain.ErrNotFound)
	}
	tag, err := infra.QuerierFromCtx(ctx, r.db).Exec(ctx,
		`UPDATE wallets SET active = FALSE, updated_at = now() WHERE id = $1 AND active`, walletID)
	if err != nil {
		return infra.MapError(err, "wallet", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var (
		w     Wallet
		id    uuid.UUID
		about *string
		logo  *string
		cover *string
	)
	if err := row.Scan(&id, &w.Name, &about, &logo, &cover, &w.AddToWebMap, &w.Active, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return Wallet{}, err
	}
	w.ID = id.String()
	w.About = about
	w.LogoURL = logo
	w.CoverURL = cover
	w.CreatedAt = w.CreatedAt.UTC()
	w.UpdatedAt = w.UpdatedAt.UTC()
	return w, nil
}
