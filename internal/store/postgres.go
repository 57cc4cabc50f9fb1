package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/kwimport/internal/core"
	"github.com/JonMunkholm/kwimport/internal/store/migrations"
)

// PoolConfig sizes the connection pool. Zero values keep pgx defaults.
type PoolConfig struct {
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// PostgresStore is the PostgreSQL keyword store.
type PostgresStore struct {
	Pool *pgxpool.Pool
}

var (
	_ core.KeywordStore = (*PostgresStore)(nil)
	_ core.BatchUpdater = (*PostgresStore)(nil)
)

// NewPostgres connects a pool and verifies it with a ping.
func NewPostgres(ctx context.Context, connString string, pc PoolConfig) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if pc.MaxConns > 0 {
		cfg.MaxConns = int32(pc.MaxConns)
	}
	if pc.MinConns > 0 {
		cfg.MinConns = int32(pc.MinConns)
	}
	if pc.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = pc.MaxConnLifetime
	}
	if pc.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = pc.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{Pool: pool}, nil
}

// RunMigrations applies the embedded migrations.
func RunMigrations(connString string) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, connString)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.Pool.Close()
}

// CreateList creates a keyword list for a project and returns its id.
func (s *PostgresStore) CreateList(ctx context.Context, projectID, name string) (string, error) {
	var id string
	err := s.Pool.QueryRow(ctx,
		`INSERT INTO keyword_lists (project_id, name) VALUES ($1, $2) RETURNING id::text`,
		projectID, name,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create keyword list: %w", err)
	}
	return id, nil
}

const pgKeywordColumns = `k.id::text, k.list_id::text, k.text, k.search_volume, k.difficulty,
	COALESCE(k.region, ''), k.extra_data, k.created_at`

// ListExistingKeywords returns every keyword in the project's lists, oldest first.
func (s *PostgresStore) ListExistingKeywords(ctx context.Context, projectID string) ([]core.ExistingKeyword, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+pgKeywordColumns+`
		FROM keywords k
		JOIN keyword_lists l ON l.id = k.list_id
		WHERE l.project_id = $1
		ORDER BY k.created_at, k.id`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list keywords: %w", err)
	}
	defer rows.Close()

	out := []core.ExistingKeyword{}
	for rows.Next() {
		var (
			kw    core.ExistingKeyword
			extra []byte
		)
		if err := rows.Scan(&kw.ID, &kw.ListID, &kw.Text, &kw.SearchVolume, &kw.Difficulty, &kw.Region, &extra, &kw.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan keyword: %w", err)
		}
		if kw.ExtraData, err = decodeExtra(extra); err != nil {
			return nil, fmt.Errorf("keyword %s: %w", kw.ID, err)
		}
		out = append(out, kw)
	}
	return out, rows.Err()
}

func pgPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

// UpdateKeyword writes the non-nil fields of u.
func (s *PostgresStore) UpdateKeyword(ctx context.Context, id string, u core.KeywordUpdate) error {
	kid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrKeywordNotFound, id)
	}
	query, args, ok, err := buildUpdate(u, kid, pgPlaceholder, time.Now().UTC())
	if err != nil || !ok {
		return err
	}

	tag, err := s.Pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update keyword %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrKeywordNotFound, id)
	}
	return nil
}

// UpdateKeywords applies every merged keyword in one transaction, sending
// the updates as a single batch.
func (s *PostgresStore) UpdateKeywords(ctx context.Context, merged []core.MergedKeyword) error {
	if len(merged) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	ids := make([]string, 0, len(merged))
	for _, m := range merged {
		kid, err := uuid.Parse(m.ID)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrKeywordNotFound, m.ID)
		}
		query, args, ok, err := buildUpdate(core.UpdateFromMerged(m), kid, pgPlaceholder, time.Now().UTC())
		if err != nil {
			return err
		}
		if ok {
			batch.Queue(query, args...)
			ids = append(ids, m.ID)
		}
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		tag, err := br.Exec()
		if err != nil {
			br.Close()
			return fmt.Errorf("update keyword %s: %w", ids[i], err)
		}
		if tag.RowsAffected() == 0 {
			br.Close()
			return fmt.Errorf("%w: %s", ErrKeywordNotFound, ids[i])
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("update keywords: %w", err)
	}
	return tx.Commit(ctx)
}

var pgInsertColumns = []string{"id", "list_id", "text", "search_volume", "difficulty", "region", "extra_data"}

// InsertKeywords bulk-loads new keywords into a list with COPY.
func (s *PostgresStore) InsertKeywords(ctx context.Context, listID string, keywords []core.NewKeyword) error {
	if len(keywords) == 0 {
		return nil
	}
	lid, err := uuid.Parse(listID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrListNotFound, listID)
	}

	rows := make([][]any, 0, len(keywords))
	for _, nk := range keywords {
		extra, err := encodeExtra(nk.ExtraData)
		if err != nil {
			return err
		}
		rows = append(rows, []any{uuid.New(), lid, nk.Keyword, nk.SearchVolume, nk.Difficulty, nullString(nk.Region), extra})
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM keyword_lists WHERE id = $1)`, lid).Scan(&exists); err != nil {
		return fmt.Errorf("check keyword list: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrListNotFound, listID)
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"keywords"}, pgInsertColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy keywords: %w", err)
	}
	if int(n) != len(rows) {
		return fmt.Errorf("copy keywords: wrote %d of %d rows", n, len(rows))
	}
	return tx.Commit(ctx)
}
