package timeclock

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

type DBTX interface {
	ExecContext(ctx context.Context, q string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, q string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, q string, args ...any) *sql.Row
}

// EventStore: Service が依存する永続層の境界。
// 本番は MySQL 実装（Store）、テストはインメモリのフェイクを差す。
type EventStore interface {
	Append(ctx context.Context, ev TimeEvent) error
	MostRecent(ctx context.Context, userID string) (*TimeEvent, error)
	InRange(ctx context.Context, userID string, from, to time.Time) ([]TimeEvent, error)
	FindByID(ctx context.Context, eventULID string) (*TimeEvent, error)
	Update(ctx context.Context, ev TimeEvent) error
	Delete(ctx context.Context, eventULID string) error
	FindSummary(ctx context.Context, userID, workedOn string) (*DailySummary, error)
	UpsertSummary(ctx context.Context, s DailySummary) error
	SummariesInRange(ctx context.Context, userID, from, to string) ([]DailySummary, error)
}

type Store struct{ db DBTX }

func NewStore(db DBTX) *Store { return &Store{db: db} }

const eventColumns = `event_ulid, user_id, kind, happened_at, source, terminal_id, note, is_modified, modified_by`

func scanEvent(row interface{ Scan(...any) error }) (TimeEvent, error) {
	var r eventRow
	err := row.Scan(&r.EventULID, &r.UserID, &r.Kind, &r.HappenedAt, &r.Source,
		&r.TerminalID, &r.Note, &r.IsModified, &r.ModifiedBy)
	if err != nil {
		return TimeEvent{}, err
	}
	return r.toModel(), nil
}

func (s *Store) Append(ctx context.Context, ev TimeEvent) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO time_events (`+eventColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.EventULID, ev.UserID, string(ev.Kind), ev.HappenedAt.UTC(), string(ev.Source),
		ev.TerminalID, ev.Note, ev.IsModified, ev.ModifiedBy)
	return err
}

// MostRecent: ユーザの最新イベント。無ければ nil。
func (s *Store) MostRecent(ctx context.Context, userID string) (*TimeEvent, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT `+eventColumns+`
	FROM time_events
	WHERE user_id = ?
	ORDER BY happened_at DESC, event_ulid DESC
	LIMIT 1`, userID)
	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// InRange: [from, to) の半開区間、時系列昇順。
func (s *Store) InRange(ctx context.Context, userID string, from, to time.Time) ([]TimeEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT `+eventColumns+`
	FROM time_events
	WHERE user_id = ? AND happened_at >= ? AND happened_at < ?
	ORDER BY happened_at ASC, event_ulid ASC`,
		userID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TimeEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *Store) FindByID(ctx context.Context, eventULID string) (*TimeEvent, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT `+eventColumns+`
	FROM time_events
	WHERE event_ulid = ?`, eventULID)
	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (s *Store) Update(ctx context.Context, ev TimeEvent) error {
	res, err := s.db.ExecContext(ctx, `
	UPDATE time_events
	SET happened_at = ?, note = ?, is_modified = ?, modified_by = ?
	WHERE event_ulid = ?`,
		ev.HappenedAt.UTC(), ev.Note, ev.IsModified, ev.ModifiedBy, ev.EventULID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound("time event not found")
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, eventULID string) error {
	res, err := s.db.ExecContext(ctx, `
	DELETE FROM time_events WHERE event_ulid = ?`, eventULID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound("time event not found")
	}
	return nil
}

// ===== DailySummary =====

func (s *Store) FindSummary(ctx context.Context, userID, workedOn string) (*DailySummary, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT user_id, DATE_FORMAT(worked_on, '%Y-%m-%d') AS worked_on,
	       total_work_minutes, total_break_minutes, overtime_minutes,
	       is_compliant, notes_json, recalculated_at
	FROM daily_summaries
	WHERE user_id = ? AND worked_on = ?`, userID, workedOn)

	var r summaryRow
	err := row.Scan(&r.UserID, &r.WorkedOn, &r.TotalWorkMinutes, &r.TotalBreakMinutes,
		&r.OvertimeMinutes, &r.IsCompliant, &r.NotesJSON, &r.RecalculatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sum := r.toModel()
	return &sum, nil
}

// UpsertSummary: (user_id, worked_on) UNIQUE でINSERTまたは全派生フィールド上書き。
func (s *Store) UpsertSummary(ctx context.Context, sum DailySummary) error {
	notes, err := json.Marshal(sum.ComplianceNotes)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
	INSERT INTO daily_summaries
	  (user_id, worked_on, total_work_minutes, total_break_minutes, overtime_minutes, is_compliant, notes_json, recalculated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
	  total_work_minutes  = VALUES(total_work_minutes),
	  total_break_minutes = VALUES(total_break_minutes),
	  overtime_minutes    = VALUES(overtime_minutes),
	  is_compliant        = VALUES(is_compliant),
	  notes_json          = VALUES(notes_json),
	  recalculated_at     = VALUES(recalculated_at)`,
		sum.UserID, sum.WorkedOn, sum.TotalWorkMinutes, sum.TotalBreakMinutes,
		sum.OvertimeMinutes, sum.IsCompliant, notes, sum.RecalculatedAt.UTC())
	return err
}

func (s *Store) SummariesInRange(ctx context.Context, userID, from, to string) ([]DailySummary, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT user_id, DATE_FORMAT(worked_on, '%Y-%m-%d') AS worked_on,
	       total_work_minutes, total_break_minutes, overtime_minutes,
	       is_compliant, notes_json, recalculated_at
	FROM daily_summaries
	WHERE user_id = ? AND worked_on >= ? AND worked_on <= ?
	ORDER BY worked_on ASC`, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DailySummary
	for rows.Next() {
		var r summaryRow
		if err := rows.Scan(&r.UserID, &r.WorkedOn, &r.TotalWorkMinutes, &r.TotalBreakMinutes,
			&r.OvertimeMinutes, &r.IsCompliant, &r.NotesJSON, &r.RecalculatedAt); err != nil {
			return nil, err
		}
		out = append(out, r.toModel())
	}
	return out, rows.Err()
}
