package timeclock

import (
	"fmt"
	"time"
)

// ===== 労働時間規制チェック（純粋関数） =====

// 閾値は設定で上書き可能。デフォルトは法定労働時間の標準値。
type RuleSet struct {
	MaxDailyMinutes     int // 1日の労働上限
	BreakAfterMinutes   int // この時間を超えたら休憩必須
	MinBreakMinutes     int // 必須休憩（小）
	LongDayMinutes      int // この時間を超えたら長めの休憩必須
	LongDayBreakMinutes int // 必須休憩（大）
}

func DefaultRules() RuleSet {
	return RuleSet{
		MaxDailyMinutes:     600,
		BreakAfterMinutes:   360,
		MinBreakMinutes:     30,
		LongDayMinutes:      540,
		LongDayBreakMinutes: 45,
	}
}

// 閉区間（Start ≤ End）。分未満は切り捨て。
type Interval struct {
	Start time.Time
	End   time.Time
}

func (iv Interval) Minutes() int {
	if iv.End.Before(iv.Start) {
		return 0
	}
	return int(iv.End.Sub(iv.Start) / time.Minute)
}

// overlapMinutes: 2区間の重なり（分）
func overlapMinutes(a, b Interval) int {
	start := a.Start
	if b.Start.After(start) {
		start = b.Start
	}
	end := a.End
	if b.End.Before(end) {
		end = b.End
	}
	if end.Before(start) {
		return 0
	}
	return Interval{Start: start, End: end}.Minutes()
}

type ComplianceResult struct {
	TotalWorkMinutes  int
	TotalBreakMinutes int
	OvertimeMinutes   int
	IsCompliant       bool
	Notes             []string
}

// Evaluate: 1日分の勤務区間・休憩区間と目標時間から判定を出す。
// 入力は閉区間のみ（未クローズ区間は呼び出し側で除外済み）。
func (rs RuleSet) Evaluate(work, breaks []Interval, targetMinutes int) ComplianceResult {
	gross := 0
	for _, iv := range work {
		gross += iv.Minutes()
	}

	totalBreak := 0
	deducted := 0
	for _, b := range breaks {
		totalBreak += b.Minutes()
		// 勤務区間内に収まる休憩だけが労働時間から控除される
		for _, w := range work {
			deducted += overlapMinutes(b, w)
		}
	}

	totalWork := gross - deducted
	if totalWork < 0 {
		totalWork = 0
	}

	var notes []string
	if totalWork > rs.MaxDailyMinutes {
		notes = append(notes, fmt.Sprintf(
			"daily working time of %d min exceeds the %d min limit", totalWork, rs.MaxDailyMinutes))
	}
	if totalWork > rs.BreakAfterMinutes && totalBreak < rs.MinBreakMinutes {
		notes = append(notes, fmt.Sprintf(
			"more than %d min worked with less than the required %d min break", rs.BreakAfterMinutes, rs.MinBreakMinutes))
	}
	if totalWork > rs.LongDayMinutes && totalBreak < rs.LongDayBreakMinutes {
		notes = append(notes, fmt.Sprintf(
			"more than %d min worked with less than the required %d min break", rs.LongDayMinutes, rs.LongDayBreakMinutes))
	}

	return ComplianceResult{
		TotalWorkMinutes:  totalWork,
		TotalBreakMinutes: totalBreak,
		OvertimeMinutes:   totalWork - targetMinutes,
		IsCompliant:       len(notes) == 0,
		Notes:             notes,
	}
}

// pairIntervals: 時系列順のイベント列を勤務区間・休憩区間にペアリングする。
// 末尾の未クローズ CLOCK_IN / BREAK_START は open* として返し、閉区間には含めない。
// 状態機械上ありえない迷子イベント（対応の無い CLOCK_OUT 等）は無視する。
func pairIntervals(events []TimeEvent) (work, breaks []Interval, openClock, openBreak *time.Time) {
	for _, ev := range events {
		ts := ev.HappenedAt
		switch ev.Kind {
		case KindClockIn:
			if openClock == nil {
				t := ts
				openClock = &t
			}
		case KindClockOut:
			if openClock != nil {
				// 閉じ忘れの休憩は退勤時刻でクローズ
				if openBreak != nil {
					breaks = append(breaks, Interval{Start: *openBreak, End: ts})
					openBreak = nil
				}
				work = append(work, Interval{Start: *openClock, End: ts})
				openClock = nil
			}
		case KindBreakStart:
			if openClock != nil && openBreak == nil {
				t := ts
				openBreak = &t
			}
		case KindBreakEnd:
			if openBreak != nil {
				breaks = append(breaks, Interval{Start: *openBreak, End: ts})
				openBreak = nil
			}
		}
	}
	return work, breaks, openClock, openBreak
}
