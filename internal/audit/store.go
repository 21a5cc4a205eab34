package audit

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type DBTX interface {
	ExecContext(ctx context.Context, q string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, q string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, q string, args ...any) *sql.Row
}

type Store struct{ db DBTX }

func NewStore(db DBTX) *Store { return &Store{db: db} }

func (s *Store) Insert(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO audit_logs (entry_ulid, actor_id, action, entity_type, entity_id, reason, before_json, after_json, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EntryULID, e.ActorID, e.Action, e.EntityType, e.EntityID, e.Reason,
		e.Before, e.After, e.CreatedAt.UTC())
	return err
}

// List: 動的WHERE + LIMIT/OFFSET
func (s *Store) List(ctx context.Context, q ListQuery) ([]Entry, error) {
	var (
		buf    bytes.Buffer
		args   []any
		wheres []string
	)
	buf.WriteString(`
	SELECT entry_ulid, actor_id, action, entity_type, entity_id, reason, before_json, after_json, created_at
	FROM audit_logs
	`)
	if q.ActorID != nil && *q.ActorID != "" {
		wheres = append(wheres, "actor_id = ?")
		args = append(args, *q.ActorID)
	}
	if q.EntityID != nil && *q.EntityID != "" {
		wheres = append(wheres, "entity_id = ?")
		args = append(args, *q.EntityID)
	}
	if len(wheres) > 0 {
		buf.WriteString(" WHERE " + strings.Join(wheres, " AND "))
	}
	buf.WriteString(" ORDER BY created_at DESC, entry_ulid DESC")

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	buf.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, q.Offset))

	rows, err := s.db.QueryContext(ctx, buf.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.EntryULID, &e.ActorID, &e.Action, &e.EntityType, &e.EntityID,
			&e.Reason, &e.Before, &e.After, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
