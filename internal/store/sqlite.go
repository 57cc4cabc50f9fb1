package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/kwimport/internal/core"
)

// sqliteTime is fixed-width so stored timestamps sort as text.
const sqliteTime = "2006-01-02 15:04:05.000000000"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS keyword_lists (
    id          TEXT PRIMARY KEY,
    project_id  TEXT NOT NULL,
    name        TEXT NOT NULL,
    created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_keyword_lists_project ON keyword_lists(project_id);
CREATE TABLE IF NOT EXISTS keywords (
    id             TEXT PRIMARY KEY,
    list_id        TEXT NOT NULL REFERENCES keyword_lists(id) ON DELETE CASCADE,
    text           TEXT NOT NULL,
    search_volume  REAL,
    difficulty     REAL,
    region         TEXT,
    extra_data     TEXT NOT NULL DEFAULT '{}',
    created_at     TEXT NOT NULL,
    updated_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_keywords_list ON keywords(list_id);
`

// SQLiteStore is a single-file keyword store.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ core.KeywordStore = (*SQLiteStore)(nil)
	_ core.BatchUpdater = (*SQLiteStore)(nil)
)

// OpenSQLite opens (creating if needed) the database at path and ensures
// the schema exists.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serialises writers and keeps PRAGMAs in effect.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{`PRAGMA foreign_keys = ON`, `PRAGMA busy_timeout = 5000`, sqliteSchema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init sqlite schema: %w", err)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) stamp() string {
	return s.now().UTC().Format(sqliteTime)
}

// CreateList creates a keyword list for a project and returns its id.
func (s *SQLiteStore) CreateList(ctx context.Context, projectID, name string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO keyword_lists (id, project_id, name, created_at) VALUES (?, ?, ?, ?)`,
		id, projectID, name, s.stamp(),
	)
	if err != nil {
		return "", fmt.Errorf("create keyword list: %w", err)
	}
	return id, nil
}

// ListExistingKeywords returns every keyword in the project's lists, oldest first.
func (s *SQLiteStore) ListExistingKeywords(ctx context.Context, projectID string) ([]core.ExistingKeyword, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT k.id, k.list_id, k.text, k.search_volume, k.difficulty, k.region, k.extra_data, k.created_at
		FROM keywords k
		JOIN keyword_lists l ON l.id = k.list_id
		WHERE l.project_id = ?
		ORDER BY k.created_at, k.rowid`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list keywords: %w", err)
	}
	defer rows.Close()

	out := []core.ExistingKeyword{}
	for rows.Next() {
		var (
			kw          core.ExistingKeyword
			volume, kd  sql.NullFloat64
			region      sql.NullString
			extra       string
			createdText string
		)
		if err := rows.Scan(&kw.ID, &kw.ListID, &kw.Text, &volume, &kd, &region, &extra, &createdText); err != nil {
			return nil, fmt.Errorf("scan keyword: %w", err)
		}
		if volume.Valid {
			kw.SearchVolume = &volume.Float64
		}
		if kd.Valid {
			kw.Difficulty = &kd.Float64
		}
		kw.Region = region.String
		if kw.ExtraData, err = decodeExtra([]byte(extra)); err != nil {
			return nil, fmt.Errorf("keyword %s: %w", kw.ID, err)
		}
		if kw.CreatedAt, err = time.Parse(sqliteTime, createdText); err != nil {
			return nil, fmt.Errorf("keyword %s: parse created_at: %w", kw.ID, err)
		}
		out = append(out, kw)
	}
	return out, rows.Err()
}

func sqlitePlaceholder(int) string { return "?" }

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) updateOne(ctx context.Context, ex execer, id string, u core.KeywordUpdate) error {
	query, args, ok, err := buildUpdate(u, id, sqlitePlaceholder, s.stamp())
	if err != nil || !ok {
		return err
	}
	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update keyword %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrKeywordNotFound, id)
	}
	return nil
}

// UpdateKeyword writes the non-nil fields of u.
func (s *SQLiteStore) UpdateKeyword(ctx context.Context, id string, u core.KeywordUpdate) error {
	return s.updateOne(ctx, s.db, id, u)
}

// UpdateKeywords applies every merged keyword in one transaction.
func (s *SQLiteStore) UpdateKeywords(ctx context.Context, merged []core.MergedKeyword) error {
	if len(merged) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // No-op if already committed

	for _, m := range merged {
		if err := s.updateOne(ctx, tx, m.ID, core.UpdateFromMerged(m)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// InsertKeywords adds keywords to a list in one transaction.
func (s *SQLiteStore) InsertKeywords(ctx context.Context, listID string, keywords []core.NewKeyword) error {
	if len(keywords) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // No-op if already committed

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM keyword_lists WHERE id = ?`, listID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrListNotFound, listID)
	}
	if err != nil {
		return fmt.Errorf("check keyword list: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO keywords (id, list_id, text, search_volume, difficulty, region, extra_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := s.stamp()
	for _, nk := range keywords {
		extra, err := encodeExtra(nk.ExtraData)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			uuid.New().String(), listID, nk.Keyword, nk.SearchVolume, nk.Difficulty,
			nullString(nk.Region), string(extra), now, now,
		); err != nil {
			return fmt.Errorf("insert keyword %q: %w", nk.Keyword, err)
		}
	}
	return tx.Commit()
}
