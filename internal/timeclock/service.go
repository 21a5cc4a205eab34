package timeclock

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ===== インターフェース群 =====

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type IDGen interface {
	New() (string, error)
}

type ulidGen struct{}

func (ulidGen) New() (string, error) {
	t := time.Now().UTC()
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Directory: 社員台帳（外部コラボレータ）。この層からは読み取り専用。
type Directory interface {
	Exists(ctx context.Context, userID string) (bool, error)
	DisplayNameOf(ctx context.Context, userID string) (string, error)
	ManagerOf(ctx context.Context, userID string) (string, error) // 上長なしは ""
	SubordinatesOf(ctx context.Context, managerID string) ([]string, error)
	SubstituteDelegatesOf(ctx context.Context, managerID string) ([]string, error)
	ManagersDelegatingTo(ctx context.Context, substituteID string) ([]string, error)
	IsAdmin(ctx context.Context, userID string) (bool, error)
	DailyTargetMinutes(ctx context.Context, userID string) (int, error)
}

// AuditSink: 監査ログ。この層からは fire-and-forget（失敗しても処理は止めない）。
type AuditSink interface {
	Record(ctx context.Context, actorID, action, entityType, entityID, reason string, before, after any)
}

// ===== 設定 =====

type Config struct {
	Rules    RuleSet
	Timezone string // 日・週の境界を決める基準タイムゾーン
}

// ===== per-user 直列化 =====

// 打刻は check-then-act なので、同一ユーザの変更操作はプロセス内で直列化する。
// （複数プロセス構成にする場合はDB側のユニーク制約が別途必要）
type userLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func (l *userLocks) get(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.m == nil {
		l.m = make(map[string]*sync.Mutex)
	}
	if _, ok := l.m[userID]; !ok {
		l.m[userID] = &sync.Mutex{}
	}
	return l.m[userID]
}

// ===== Service本体 =====

type Service struct {
	store EventStore
	dir   Directory
	audit AuditSink
	rules RuleSet
	loc   *time.Location
	clock Clock
	id    IDGen
	locks userLocks
}

func NewService(store EventStore, dir Directory, audit AuditSink, cfg Config) *Service {
	loc := time.UTC
	if cfg.Timezone != "" && cfg.Timezone != DefaultTZ {
		if l, err := time.LoadLocation(cfg.Timezone); err == nil {
			loc = l
		} else {
			log.Printf("[WARN] unknown timezone %q, falling back to UTC", cfg.Timezone)
		}
	}
	// ルール値は項目ごとに補完する（設定で一部だけ上書きできるように）
	rules := cfg.Rules
	def := DefaultRules()
	if rules.MaxDailyMinutes <= 0 {
		rules.MaxDailyMinutes = def.MaxDailyMinutes
	}
	if rules.BreakAfterMinutes <= 0 {
		rules.BreakAfterMinutes = def.BreakAfterMinutes
	}
	if rules.MinBreakMinutes <= 0 {
		rules.MinBreakMinutes = def.MinBreakMinutes
	}
	if rules.LongDayMinutes <= 0 {
		rules.LongDayMinutes = def.LongDayMinutes
	}
	if rules.LongDayBreakMinutes <= 0 {
		rules.LongDayBreakMinutes = def.LongDayBreakMinutes
	}
	return &Service{
		store: store,
		dir:   dir,
		audit: audit,
		rules: rules,
		loc:   loc,
		clock: realClock{},
		id:    ulidGen{},
	}
}

// ===== 打刻アクション =====

func (s *Service) ClockIn(ctx context.Context, userID string, req ClockActionRequest) (EventResponse, error) {
	return s.clockAction(ctx, userID, KindClockIn, req)
}

func (s *Service) ClockOut(ctx context.Context, userID string, req ClockActionRequest) (EventResponse, error) {
	return s.clockAction(ctx, userID, KindClockOut, req)
}

func (s *Service) StartBreak(ctx context.Context, userID string, req ClockActionRequest) (EventResponse, error) {
	return s.clockAction(ctx, userID, KindBreakStart, req)
}

func (s *Service) EndBreak(ctx context.Context, userID string, req ClockActionRequest) (EventResponse, error) {
	return s.clockAction(ctx, userID, KindBreakEnd, req)
}

func (s *Service) clockAction(ctx context.Context, userID string, kind EventKind, req ClockActionRequest) (EventResponse, error) {
	if userID == "" {
		return EventResponse{}, ErrInvalid("user_id is required")
	}
	if !req.Source.Valid() {
		return EventResponse{}, ErrInvalid("source must be one of WEB, TERMINAL, MOBILE, MANUAL")
	}

	mu := s.locks.get(userID)
	mu.Lock()
	defer mu.Unlock()

	ok, err := s.dir.Exists(ctx, userID)
	if err != nil {
		return EventResponse{}, err
	}
	if !ok {
		return EventResponse{}, ErrNotFound("user not found")
	}

	last, err := s.store.MostRecent(ctx, userID)
	if err != nil {
		return EventResponse{}, err
	}
	if err := checkTransition(stateOf(last), kind); err != nil {
		return EventResponse{}, err
	}

	id, err := s.id.New()
	if err != nil {
		return EventResponse{}, err
	}
	ev := TimeEvent{
		EventULID:  id,
		UserID:     userID,
		Kind:       kind,
		HappenedAt: s.clock.Now().UTC(),
		Source:     req.Source,
		TerminalID: req.TerminalID,
		Note:       req.Note,
	}
	if err := s.store.Append(ctx, ev); err != nil {
		return EventResponse{}, err
	}

	// 退勤で当日のサマリを再計算。イベントは確定済みなので、
	// 再計算の失敗はロールバックせずエラーとして報告だけする。
	if kind == KindClockOut {
		date := ev.HappenedAt.In(s.loc).Format(DateLayout)
		if _, err := s.Recalculate(ctx, userID, date); err != nil {
			log.Printf("[WARN] summary recalculation failed (user=%s date=%s): %v", userID, date, err)
			return ev.toDTO(), ErrInternal(fmt.Sprintf("clock-out recorded, but daily summary recalculation failed: %v", err))
		}
	}
	return ev.toDTO(), nil
}

// stateOf: 最新イベント種別から現在状態を導出（遷移表どおり）。
func stateOf(last *TimeEvent) ClockState {
	if last == nil {
		return StateClockedOut
	}
	switch last.Kind {
	case KindClockIn, KindBreakEnd:
		return StateClockedIn
	case KindBreakStart:
		return StateOnBreak
	default: // CLOCK_OUT
		return StateClockedOut
	}
}

func checkTransition(state ClockState, kind EventKind) error {
	switch kind {
	case KindClockIn:
		switch state {
		case StateOnBreak:
			return ErrConflict("cannot clock in while on break")
		case StateClockedIn:
			return ErrConflict("already clocked in")
		}
	case KindClockOut:
		switch state {
		case StateOnBreak:
			return ErrConflict("cannot clock out while on break")
		case StateClockedOut:
			return ErrConflict("not clocked in")
		}
	case KindBreakStart:
		if state != StateClockedIn {
			return ErrConflict("breaks can only start while clocked in")
		}
	case KindBreakEnd:
		if state != StateOnBreak {
			return ErrConflict("no break in progress")
		}
	default:
		return ErrInvalid("unknown event kind")
	}
	return nil
}

// ===== 参照系 =====

func (s *Service) GetDailySummary(ctx context.Context, userID, date string) (SummaryResponse, error) {
	if _, err := time.ParseInLocation(DateLayout, date, s.loc); err != nil {
		return SummaryResponse{}, ErrInvalid("date must be YYYY-MM-DD")
	}
	ok, err := s.dir.Exists(ctx, userID)
	if err != nil {
		return SummaryResponse{}, err
	}
	if !ok {
		return SummaryResponse{}, ErrNotFound("user not found")
	}
	sum, err := s.store.FindSummary(ctx, userID, date)
	if err != nil {
		return SummaryResponse{}, err
	}
	if sum == nil {
		// キャッシュ未作成ならその場で再構築する
		rebuilt, err := s.Recalculate(ctx, userID, date)
		if err != nil {
			return SummaryResponse{}, err
		}
		return rebuilt.toDTO(), nil
	}
	return sum.toDTO(), nil
}

// GetTimeSheet: [from, to] の日別タイムシート（生イベント＋サマリキャッシュ）。
func (s *Service) GetTimeSheet(ctx context.Context, userID, from, to string) (TimesheetResponse, error) {
	fromDay, toDay, err := s.parseRange(from, to)
	if err != nil {
		return TimesheetResponse{}, err
	}
	ok, err := s.dir.Exists(ctx, userID)
	if err != nil {
		return TimesheetResponse{}, err
	}
	if !ok {
		return TimesheetResponse{}, ErrNotFound("user not found")
	}

	events, err := s.store.InRange(ctx, userID, fromDay.UTC(), toDay.AddDate(0, 0, 1).UTC())
	if err != nil {
		return TimesheetResponse{}, err
	}
	summaries, err := s.store.SummariesInRange(ctx, userID, from, to)
	if err != nil {
		return TimesheetResponse{}, err
	}
	sumByDate := make(map[string]DailySummary, len(summaries))
	for _, sum := range summaries {
		sumByDate[sum.WorkedOn] = sum
	}
	evByDate := make(map[string][]EventResponse)
	for _, ev := range events {
		d := ev.HappenedAt.In(s.loc).Format(DateLayout)
		evByDate[d] = append(evByDate[d], ev.toDTO())
	}

	resp := TimesheetResponse{UserID: userID, From: from, To: to}
	for d := fromDay; !d.After(toDay); d = d.AddDate(0, 0, 1) {
		key := d.Format(DateLayout)
		day := TimesheetDay{Date: key, Events: evByDate[key]}
		if day.Events == nil {
			day.Events = []EventResponse{}
		}
		if sum, ok := sumByDate[key]; ok {
			dto := sum.toDTO()
			day.Summary = &dto
		}
		resp.Days = append(resp.Days, day)
	}
	return resp, nil
}

func (s *Service) parseRange(from, to string) (time.Time, time.Time, error) {
	fromDay, err := time.ParseInLocation(DateLayout, from, s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, ErrInvalid("from must be YYYY-MM-DD")
	}
	toDay, err := time.ParseInLocation(DateLayout, to, s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, ErrInvalid("to must be YYYY-MM-DD")
	}
	if toDay.Before(fromDay) {
		return time.Time{}, time.Time{}, ErrInvalid("to must be >= from")
	}
	if toDay.Sub(fromDay) > time.Duration(MaxRangeDays)*24*time.Hour {
		return time.Time{}, time.Time{}, ErrInvalid(fmt.Sprintf("range must not exceed %d days", MaxRangeDays))
	}
	return fromDay, toDay, nil
}
