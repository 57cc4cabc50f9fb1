// Package store holds the keyword storage backends used by the import
// pipeline: PostgreSQL for the server and SQLite for the CLI and tests.
// Both implement core.KeywordStore and core.BatchUpdater.
package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JonMunkholm/kwimport/internal/core"
)

// setClause is one "column = value" assignment of an update.
type setClause struct {
	column string
	value  any
}

// updateClauses lists the assignments for the non-nil fields of u.
func updateClauses(u core.KeywordUpdate) ([]setClause, error) {
	var sets []setClause
	if u.SearchVolume != nil {
		sets = append(sets, setClause{"search_volume", *u.SearchVolume})
	}
	if u.Difficulty != nil {
		sets = append(sets, setClause{"difficulty", *u.Difficulty})
	}
	if u.Region != nil {
		sets = append(sets, setClause{"region", nullString(*u.Region)})
	}
	if u.ExtraData != nil {
		raw, err := encodeExtra(*u.ExtraData)
		if err != nil {
			return nil, err
		}
		sets = append(sets, setClause{"extra_data", raw})
	}
	return sets, nil
}

// buildUpdate renders an UPDATE for id. placeholder renders the n-th
// (1-based) bind parameter in the driver's syntax. ok is false when u
// carries nothing to write.
func buildUpdate(u core.KeywordUpdate, id any, placeholder func(n int) string, updatedAt any) (query string, args []any, ok bool, err error) {
	sets, err := updateClauses(u)
	if err != nil || len(sets) == 0 {
		return "", nil, false, err
	}

	parts := make([]string, 0, len(sets)+1)
	for _, s := range sets {
		args = append(args, s.value)
		parts = append(parts, fmt.Sprintf("%s = %s", s.column, placeholder(len(args))))
	}
	args = append(args, updatedAt)
	parts = append(parts, "updated_at = "+placeholder(len(args)))
	args = append(args, id)

	query = fmt.Sprintf("UPDATE keywords SET %s WHERE id = %s", strings.Join(parts, ", "), placeholder(len(args)))
	return query, args, true, nil
}

func encodeExtra(e core.ExtraData) ([]byte, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode extra data: %w", err)
	}
	return raw, nil
}

func decodeExtra(raw []byte) (core.ExtraData, error) {
	var e core.ExtraData
	if len(raw) == 0 {
		return e, nil
	}
	if err := json.Unmarshal(raw, &e); err != nil {
		return e, fmt.Errorf("decode extra data: %w", err)
	}
	return e, nil
}

// nullString maps "" to SQL NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
