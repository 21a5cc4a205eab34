package timeclock

import (
	"context"
	"time"
)

// ===== Daily Summary Calculator =====

// Recalculate: (user, date) のサマリキャッシュを生イベントから再構築してupsertする。
// 何度呼んでも同じイベント集合からは同じ結果になる（冪等）。
// 未クローズ区間はその日のスナップショット評価から除外する。
func (s *Service) Recalculate(ctx context.Context, userID, date string) (DailySummary, error) {
	dayStart, err := time.ParseInLocation(DateLayout, date, s.loc)
	if err != nil {
		return DailySummary{}, ErrInvalid("date must be YYYY-MM-DD")
	}
	ok, err := s.dir.Exists(ctx, userID)
	if err != nil {
		return DailySummary{}, err
	}
	if !ok {
		return DailySummary{}, ErrNotFound("user not found")
	}

	events, err := s.store.InRange(ctx, userID, dayStart.UTC(), dayStart.AddDate(0, 0, 1).UTC())
	if err != nil {
		return DailySummary{}, err
	}
	target, err := s.dir.DailyTargetMinutes(ctx, userID)
	if err != nil {
		return DailySummary{}, err
	}

	work, breaks, _, _ := pairIntervals(events)
	res := s.rules.Evaluate(work, breaks, target)

	sum := DailySummary{
		UserID:            userID,
		WorkedOn:          date,
		TotalWorkMinutes:  res.TotalWorkMinutes,
		TotalBreakMinutes: res.TotalBreakMinutes,
		OvertimeMinutes:   res.OvertimeMinutes,
		IsCompliant:       res.IsCompliant,
		ComplianceNotes:   res.Notes,
		RecalculatedAt:    s.clock.Now().UTC(),
	}
	if err := s.store.UpsertSummary(ctx, sum); err != nil {
		return DailySummary{}, err
	}
	return sum, nil
}
