package timeclock

import "time"

const (
	DateLayout   = "2006-01-02"
	DefaultTZ    = "UTC"
	MaxRangeDays = 92 // タイムシート取得の上限（約1四半期）
)

type ClockActionRequest struct {
	Source     EventSource `json:"source" binding:"required"`
	TerminalID *string     `json:"terminal_id,omitempty"`
	Note       *string     `json:"note,omitempty"`
}

type EventResponse struct {
	EventULID  string      `json:"event_ulid"`
	UserID     string      `json:"user_id"`
	Kind       EventKind   `json:"kind"`
	HappenedAt time.Time   `json:"happened_at"`
	Source     EventSource `json:"source"`
	TerminalID *string     `json:"terminal_id,omitempty"`
	Note       *string     `json:"note,omitempty"`
	IsModified bool        `json:"is_modified"`
	ModifiedBy *string     `json:"modified_by,omitempty"`
}

func (e TimeEvent) toDTO() EventResponse {
	return EventResponse{
		EventULID:  e.EventULID,
		UserID:     e.UserID,
		Kind:       e.Kind,
		HappenedAt: e.HappenedAt,
		Source:     e.Source,
		TerminalID: e.TerminalID,
		Note:       e.Note,
		IsModified: e.IsModified,
		ModifiedBy: e.ModifiedBy,
	}
}

type StatusResponse struct {
	UserID              string     `json:"user_id"`
	State               ClockState `json:"state"`
	ClockedInSince      *time.Time `json:"clocked_in_since,omitempty"`
	BreakStartedAt      *time.Time `json:"break_started_at,omitempty"`
	ElapsedWorkMinutes  int        `json:"elapsed_work_minutes"`
	ElapsedBreakMinutes int        `json:"elapsed_break_minutes"`
	TodayWorkMinutes    int        `json:"today_work_minutes"`
	TodayBreakMinutes   int        `json:"today_break_minutes"`
}

type SummaryResponse struct {
	UserID            string    `json:"user_id"`
	WorkedOn          string    `json:"worked_on"` // YYYY-MM-DD
	TotalWorkMinutes  int       `json:"total_work_minutes"`
	TotalBreakMinutes int       `json:"total_break_minutes"`
	OvertimeMinutes   int       `json:"overtime_minutes"`
	IsCompliant       bool      `json:"is_compliant"`
	ComplianceNotes   []string  `json:"compliance_notes"`
	RecalculatedAt    time.Time `json:"recalculated_at"`
}

func (s DailySummary) toDTO() SummaryResponse {
	notes := s.ComplianceNotes
	if notes == nil {
		notes = []string{}
	}
	return SummaryResponse{
		UserID:            s.UserID,
		WorkedOn:          s.WorkedOn,
		TotalWorkMinutes:  s.TotalWorkMinutes,
		TotalBreakMinutes: s.TotalBreakMinutes,
		OvertimeMinutes:   s.OvertimeMinutes,
		IsCompliant:       s.IsCompliant,
		ComplianceNotes:   notes,
		RecalculatedAt:    s.RecalculatedAt,
	}
}

type TimesheetDay struct {
	Date    string           `json:"date"` // YYYY-MM-DD
	Events  []EventResponse  `json:"events"`
	Summary *SummaryResponse `json:"summary,omitempty"`
}

type TimesheetResponse struct {
	UserID string         `json:"user_id"`
	From   string         `json:"from"`
	To     string         `json:"to"`
	Days   []TimesheetDay `json:"days"`
}

type AddManualEntryRequest struct {
	TargetUserID string    `json:"target_user_id" binding:"required"`
	Kind         EventKind `json:"kind" binding:"required"`
	HappenedAt   time.Time `json:"happened_at" binding:"required"`
	Reason       string    `json:"reason" binding:"required"`
}

type EditEntryRequest struct {
	HappenedAt *time.Time `json:"happened_at,omitempty"`
	Note       *string    `json:"note,omitempty"`
	Reason     string     `json:"reason" binding:"required"`
}

type DeleteEntryRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type TeamMemberStatus struct {
	UserID      string         `json:"user_id"`
	DisplayName string         `json:"display_name"`
	Status      StatusResponse `json:"status"`
}

type TeamStatusResponse struct {
	ManagerID string             `json:"manager_id"`
	Members   []TeamMemberStatus `json:"members"`
}
