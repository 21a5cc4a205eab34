package timeclock

import (
	"encoding/json"
	"time"
)

type EventKind string

const (
	KindClockIn    EventKind = "CLOCK_IN"
	KindClockOut   EventKind = "CLOCK_OUT"
	KindBreakStart EventKind = "BREAK_START"
	KindBreakEnd   EventKind = "BREAK_END"
)

func (k EventKind) Valid() bool {
	switch k {
	case KindClockIn, KindClockOut, KindBreakStart, KindBreakEnd:
		return true
	}
	return false
}

type EventSource string

const (
	SourceWeb      EventSource = "WEB"
	SourceTerminal EventSource = "TERMINAL"
	SourceMobile   EventSource = "MOBILE"
	SourceManual   EventSource = "MANUAL"
)

func (s EventSource) Valid() bool {
	switch s {
	case SourceWeb, SourceTerminal, SourceMobile, SourceManual:
		return true
	}
	return false
}

type ClockState string

const (
	StateClockedOut ClockState = "CLOCKED_OUT"
	StateClockedIn  ClockState = "CLOCKED_IN"
	StateOnBreak    ClockState = "ON_BREAK"
)

// Service ↔ Store で使うモデル。タイムスタンプは常にUTC。
type TimeEvent struct {
	EventULID  string
	UserID     string
	Kind       EventKind
	HappenedAt time.Time
	Source     EventSource
	TerminalID *string
	Note       *string
	IsModified bool
	ModifiedBy *string
}

// 日次集計キャッシュ。TimeEventから常に再構築可能で、手編集はしない。
type DailySummary struct {
	UserID            string
	WorkedOn          string // YYYY-MM-DD（基準タイムゾーン）
	TotalWorkMinutes  int
	TotalBreakMinutes int
	OvertimeMinutes   int // 符号付き（負ならアンダータイム）
	IsCompliant       bool
	ComplianceNotes   []string
	RecalculatedAt    time.Time
}

// ===== DB行（スキャン用） =====

type eventRow struct {
	EventULID  string
	UserID     string
	Kind       string
	HappenedAt time.Time
	Source     string
	TerminalID *string
	Note       *string
	IsModified bool
	ModifiedBy *string
}

func (r eventRow) toModel() TimeEvent {
	return TimeEvent{
		EventULID:  r.EventULID,
		UserID:     r.UserID,
		Kind:       EventKind(r.Kind),
		HappenedAt: r.HappenedAt.UTC(),
		Source:     EventSource(r.Source),
		TerminalID: r.TerminalID,
		Note:       r.Note,
		IsModified: r.IsModified,
		ModifiedBy: r.ModifiedBy,
	}
}

type summaryRow struct {
	UserID            string
	WorkedOn          string // DATE → "YYYY-MM-DD"
	TotalWorkMinutes  int
	TotalBreakMinutes int
	OvertimeMinutes   int
	IsCompliant       bool
	NotesJSON         []byte
	RecalculatedAt    time.Time
}

func (r summaryRow) toModel() DailySummary {
	var notes []string
	if len(r.NotesJSON) > 0 {
		// 壊れたJSONはノート無し扱い（キャッシュなので再計算で直る）
		_ = json.Unmarshal(r.NotesJSON, &notes)
	}
	return DailySummary{
		UserID:            r.UserID,
		WorkedOn:          r.WorkedOn,
		TotalWorkMinutes:  r.TotalWorkMinutes,
		TotalBreakMinutes: r.TotalBreakMinutes,
		OvertimeMinutes:   r.OvertimeMinutes,
		IsCompliant:       r.IsCompliant,
		ComplianceNotes:   notes,
		RecalculatedAt:    r.RecalculatedAt.UTC(),
	}
}
