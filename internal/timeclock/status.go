package timeclock

import (
	"context"
	"time"
)

// ===== Status Resolver =====

// GetStatus: 最新イベントから現在状態を導出し、当日分の実績を生イベントから集計する。
// 当日はまだ未確定なのでキャッシュ（DailySummary）は一切見ない。
func (s *Service) GetStatus(ctx context.Context, userID string) (StatusResponse, error) {
	if userID == "" {
		return StatusResponse{}, ErrInvalid("user_id is required")
	}
	ok, err := s.dir.Exists(ctx, userID)
	if err != nil {
		return StatusResponse{}, err
	}
	if !ok {
		return StatusResponse{}, ErrNotFound("user not found")
	}

	last, err := s.store.MostRecent(ctx, userID)
	if err != nil {
		return StatusResponse{}, err
	}
	now := s.clock.Now().UTC()
	resp := StatusResponse{UserID: userID, State: stateOf(last)}

	dayStart := startOfDay(now, s.loc)
	today, err := s.store.InRange(ctx, userID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return StatusResponse{}, err
	}

	// 未クローズ区間は now を仮の終端として当日実績に含める
	work, breaks, openClock, openBreak := pairIntervals(today)
	if openClock != nil {
		work = append(work, Interval{Start: *openClock, End: now})
	}
	if openBreak != nil {
		breaks = append(breaks, Interval{Start: *openBreak, End: now})
	}
	gross, deducted, totalBreak := 0, 0, 0
	for _, b := range breaks {
		totalBreak += b.Minutes()
		for _, w := range work {
			deducted += overlapMinutes(b, w)
		}
	}
	for _, w := range work {
		gross += w.Minutes()
	}
	resp.TodayWorkMinutes = gross - deducted
	if resp.TodayWorkMinutes < 0 {
		resp.TodayWorkMinutes = 0
	}
	resp.TodayBreakMinutes = totalBreak

	switch resp.State {
	case StateClockedIn, StateOnBreak:
		since, err := s.openSessionStart(ctx, userID, now, today)
		if err != nil {
			return StatusResponse{}, err
		}
		if since != nil {
			resp.ClockedInSince = since
			resp.ElapsedWorkMinutes = int(now.Sub(*since) / time.Minute)
		}
		if resp.State == StateOnBreak && last != nil {
			t := last.HappenedAt
			resp.BreakStartedAt = &t
			resp.ElapsedBreakMinutes = int(now.Sub(t) / time.Minute)
		}
	}
	return resp, nil
}

// openSessionStart: 現在オープン中の勤務セッションの開始時刻（CLOCK_IN）。
// 当日のイベントに見つからなければ前日以前から跨いでいるので遡って探す。
func (s *Service) openSessionStart(ctx context.Context, userID string, now time.Time, today []TimeEvent) (*time.Time, error) {
	for i := len(today) - 1; i >= 0; i-- {
		switch today[i].Kind {
		case KindClockIn:
			t := today[i].HappenedAt
			return &t, nil
		case KindClockOut:
			return nil, nil
		}
	}
	// 日跨ぎ勤務: 過去7日まで遡れば十分
	past, err := s.store.InRange(ctx, userID, now.AddDate(0, 0, -7), startOfDay(now, s.loc))
	if err != nil {
		return nil, err
	}
	for i := len(past) - 1; i >= 0; i-- {
		switch past[i].Kind {
		case KindClockIn:
			t := past[i].HappenedAt
			return &t, nil
		case KindClockOut:
			return nil, nil
		}
	}
	return nil, nil
}

// startOfDay: loc 基準の日付境界をUTCで返す
func startOfDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc).UTC()
}
