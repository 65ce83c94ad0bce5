package trust

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/walletsvc/wallet_service/internal/domain"
	"github.com/walletsvc/wallet_service/internal/infra"
	"github.com/walletsvc/wallet_service/internal/wallet"
)

// Repository persists trust edges and answers graph queries over them.
type Repository interface {
	// Create inserts a new edge. An open (requested or trusted) active edge
	// with the same actor, target and request type yields domain.ErrConflict.
	Create(ctx context.Context, t Trust) error
	GetByID(ctx context.Context, id string) (Trust, error)
	List(ctx context.Context, f Filter) ([]Trust, int, error)
	// UpdateState moves edge id from state from to state to. When the edge is
	// no longer in from the call fails with domain.ErrConflict.
	UpdateState(ctx context.Context, id string, from, to State) (Trust, error)
	// CloseAllForWallet revokes trusted edges and rejects pending ones that
	// touch walletID, returning how many edges changed.
	CloseAllForWallet(ctx context.Context, walletID string) (int, error)
	// Manages reports whether actorID may manage targetID through a trusted
	// manage edge (actor→target) or yield edge (target→actor).
	Manages(ctx context.Context, actorID, targetID string) (bool, error)
	ListReachableWallets(ctx context.Context, q ReachableQuery) (ReachableResult, error)
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var trustColumns = []string{
	"id", "actor_wallet_id", "target_wallet_id", "originator_wallet_id",
	"type", "request_type", "state", "active", "created_at", "updated_at",
}

var reachableColumns = []string{
	"w.id", "w.name", "w.about", "w.logo_url", "w.cover_url",
	"w.add_to_web_map", "w.active", "w.created_at", "w.updated_at",
}

// PostgresRepository stores trust edges in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, t Trust) error {
	query, args, err := psql.Insert("wallet_trust").
		Columns(trustColumns...).
		Values(t.ID, t.ActorWalletID, t.TargetWalletID, t.OriginatorWalletID,
			string(t.Type), string(t.RequestType), string(t.State), t.Active, t.CreatedAt.UTC(), t.UpdatedAt.UTC()).
		ToSql()
	if err != nil {
		return err
	}
	_, err = infra.QuerierFromCtx(ctx, r.db).Exec(ctx, query, args...)
	return infra.MapError(err, "trust", t.ID)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (Trust, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Trust{}, fmt.Errorf("trust %s: %w", id, domain.ErrNotFound)
	}
	query, args, err := psql.Select(trustColumns...).From("wallet_trust").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return Trust{}, err
	}
	t, err := scanTrust(infra.QuerierFromCtx(ctx, r.db).QueryRow(ctx, query, args...))
	if err != nil {
		return Trust{}, infra.MapError(err, "trust", id)
	}
	return t, nil
}

func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]Trust, int, error) {
	if err := f.normalize(); err != nil {
		return nil, 0, err
	}
	if _, err := uuid.Parse(f.WalletID); err != nil {
		return []Trust{}, 0, nil
	}

	where := sq.And{
		sq.Eq{"active": true},
		sq.Or{sq.Eq{"actor_wallet_id": f.WalletID}, sq.Eq{"target_wallet_id": f.WalletID}},
	}
	if f.State != "" {
		where = append(where, sq.Eq{"state": string(f.State)})
	}
	if f.Type != "" {
		where = append(where, sq.Eq{"type": string(f.Type)})
	}
	if f.RequestType != "" {
		where = append(where, sq.Eq{"request_type": string(f.RequestType)})
	}

	q := infra.QuerierFromCtx(ctx, r.db)

	query, args, err := psql.Select(trustColumns...).From("wallet_trust").Where(where).
		OrderBy(fmt.Sprintf("%s %s", f.SortBy, f.Order), "created_at "+f.Order, "id "+f.Order).
		Limit(uint64(f.Limit)).Offset(uint64(f.Offset)).
		ToSql()
	if err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, infra.MapError(err, "trust list", f.WalletID)
	}
	edges, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Trust, error) {
		return scanTrust(row)
	})
	if err != nil {
		return nil, 0, infra.MapError(err, "trust list", f.WalletID)
	}

	count := 0
	if f.WithCount {
		countQuery, countArgs, err := psql.Select("COUNT(*)").From("wallet_trust").Where(where).ToSql()
		if err != nil {
			return nil, 0, err
		}
		if err := q.QueryRow(ctx, countQuery, countArgs...).Scan(&count); err != nil {
			return nil, 0, infra.MapError(err, "trust count", f.WalletID)
		}
	}
	return edges, count, nil
}

func (r *PostgresRepository) UpdateState(ctx context.Context, id string, from, to State) (Trust, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Trust{}, fmt.Errorf("trust %s: %w", id, domain.ErrNotFound)
	}
	query, args, err := psql.Update("wallet_trust").
		Set("state", string(to)).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id, "state": string(from), "active": true}).
		Suffix("RETURNING " + strings.Join(trustColumns, ", ")).
		ToSql()
	if err != nil {
		return Trust{}, err
	}

	t, err := scanTrust(infra.QuerierFromCtx(ctx, r.db).QueryRow(ctx, query, args...))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Trust{}, infra.MapError(err, "trust", id)
	}

	current, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return Trust{}, getErr
	}
	return Trust{}, fmt.Errorf("trust %s is %s, not %s: %w", id, current.State, from, domain.ErrConflict)
}

func (r *PostgresRepository) CloseAllForWallet(ctx context.Context, walletID string) (int, error) {
	if _, err := uuid.Parse(walletID); err != nil {
		return 0, nil
	}
	const query = `
        UPDATE wallet_trust
        SET state = CASE state WHEN 'trusted' THEN 'revoked' ELSE 'rejected' END,
            updated_at = now()
        WHERE active
          AND state IN ('requested', 'trusted')
          AND (actor_wallet_id = $1 OR target_wallet_id = $1)`
	tag, err := infra.QuerierFromCtx(ctx, r.db).Exec(ctx, query, walletID)
	if err != nil {
		return 0, infra.MapError(err, "trust for wallet", walletID)
	}
	return int(tag.RowsAffected()), nil
}

func (r *PostgresRepository) Manages(ctx context.Context, actorID, targetID string) (bool, error) {
	if _, err := uuid.Parse(actorID); err != nil {
		return false, nil
	}
	if _, err := uuid.Parse(targetID); err != nil {
		return false, nil
	}
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM wallet_trust
            WHERE active AND state = 'trusted'
              AND ((actor_wallet_id = $1 AND target_wallet_id = $2 AND request_type = 'manage')
                OR (actor_wallet_id = $2 AND target_wallet_id = $1 AND request_type = 'yield')))`
	var ok bool
	if err := infra.QuerierFromCtx(ctx, r.db).QueryRow(ctx, query, actorID, targetID).Scan(&ok); err != nil {
		return false, infra.MapError(err, "trust", actorID)
	}
	return ok, nil
}

// ListReachableWallets unions three branches (the focal wallet, wallets it
// manages, wallets that yielded to it). Name and date filters apply to the
// managed and yielded branches only; the focal wallet is always listed.
func (r *PostgresRepository) ListReachableWallets(ctx context.Context, rq ReachableQuery) (ReachableResult, error) {
	if err := rq.normalize(); err != nil {
		return ReachableResult{}, err
	}
	if _, err := uuid.Parse(rq.WalletID); err != nil {
		return ReachableResult{}, fmt.Errorf("wallet %s: %w", rq.WalletID, domain.ErrNotFound)
	}

	union, err := reachableUnion(rq)
	if err != nil {
		return ReachableResult{}, err
	}

	q := infra.QuerierFromCtx(ctx, r.db)

	cols := make([]string, len(reachableColumns))
	for i, c := range reachableColumns {
		cols[i] = "r." + strings.TrimPrefix(c, "w.")
	}
	query, args, err := psql.Select(cols...).FromSelect(union, "r").
		OrderBy(fmt.Sprintf("r.%s %s", rq.SortBy, rq.Order), "r.id "+rq.Order).
		Limit(uint64(rq.Limit)).Offset(uint64(rq.Offset)).
		ToSql()
	if err != nil {
		return ReachableResult{}, err
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return ReachableResult{}, infra.MapError(err, "reachable wallets", rq.WalletID)
	}
	wallets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (wallet.Wallet, error) {
		return scanWallet(row)
	})
	if err != nil {
		return ReachableResult{}, infra.MapError(err, "reachable wallets", rq.WalletID)
	}

	res := ReachableResult{Wallets: wallets}
	if rq.WithCount {
		countQuery, countArgs, err := psql.Select("COUNT(*)").FromSelect(union, "r").ToSql()
		if err != nil {
			return ReachableResult{}, err
		}
		if err := q.QueryRow(ctx, countQuery, countArgs...).Scan(&res.Count); err != nil {
			return ReachableResult{}, infra.MapError(err, "reachable wallets count", rq.WalletID)
		}
	}
	return res, nil
}

// reachableUnion builds
//
//	self UNION managed UNION yielded
//
// as a single select builder so it can be wrapped with FromSelect.
func reachableUnion(rq ReachableQuery) (sq.SelectBuilder, error) {
	self := sq.Select(reachableColumns...).From("wallets w").
		Where(sq.Eq{"w.id": rq.WalletID, "w.active": true})

	managed := withWalletFilters(sq.Select(reachableColumns...).From("wallets w").
		Join("wallet_trust t ON t.target_wallet_id = w.id").
		Where(sq.Eq{
			"t.actor_wallet_id": rq.WalletID,
			"t.request_type":    string(RequestManage),
			"t.state":           string(StateTrusted),
			"t.active":          true,
		}), rq)

	yielded := withWalletFilters(sq.Select(reachableColumns...).From("wallets w").
		Join("wallet_trust t ON t.actor_wallet_id = w.id").
		Where(sq.Eq{
			"t.target_wallet_id": rq.WalletID,
			"t.request_type":     string(RequestYield),
			"t.state":            string(StateTrusted),
			"t.active":           true,
		}), rq)

	managedSQL, managedArgs, err := managed.ToSql()
	if err != nil {
		return sq.SelectBuilder{}, err
	}
	yieldedSQL, yieldedArgs, err := yielded.ToSql()
	if err != nil {
		return sq.SelectBuilder{}, err
	}

	return self.
		Suffix("UNION "+managedSQL, managedArgs...).
		Suffix("UNION "+yieldedSQL, yieldedArgs...), nil
}

func withWalletFilters(b sq.SelectBuilder, rq ReachableQuery) sq.SelectBuilder {
	b = b.Where(sq.Eq{"w.active": true})
	if rq.Name != "" {
		b = b.Where(sq.ILike{"w.name": "%" + escapeLike(rq.Name) + "%"})
	}
	if rq.CreatedFrom != nil {
		b = b.Where(sq.GtOrEq{"w.created_at": *rq.CreatedFrom})
	}
	if before := rq.createdBefore(); before != nil {
		b = b.Where(sq.Lt{"w.created_at": *before})
	}
	return b
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func scanTrust(row pgx.Row) (Trust, error) {
	var (
		t                             Trust
		id, actor, target, originator uuid.UUID
		typ, requestType, state       string
	)
	if err := row.Scan(&id, &actor, &target, &originator, &typ, &requestType, &state, &t.Active, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return Trust{}, err
	}
	t.ID = id.String()
	t.ActorWalletID = actor.String()
	t.TargetWalletID = target.String()
	t.OriginatorWalletID = originator.String()
	t.Type = Type(typ)
	t.RequestType = RequestType(requestType)
	t.State = State(state)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}

func scanWallet(row pgx.Row) (wallet.Wallet, error) {
	var (
		w  wallet.Wallet
		id uuid.UUID
	)
	if err := row.Scan(&id, &w.Name, &w.About, &w.LogoURL, &w.CoverURL, &w.AddToWebMap, &w.Active, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return wallet.Wallet{}, err
	}
	w.ID = id.String()
	w.CreatedAt = w.CreatedAt.UTC()
	w.UpdatedAt = w.UpdatedAt.UTC()
	return w, nil
}
