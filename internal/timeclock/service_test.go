package timeclock

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockActionsStateMachine(t *testing.T) {
	ctx := context.Background()
	now := mustTime("2025-03-10T08:00:00Z")

	t.Run("clock in from clocked out", func(t *testing.T) {
		env := newTestEnv(now)
		env.dir.addUser("u1", "Tanaka", "", false, 480)

		res, err := env.svc.ClockIn(ctx, "u1", ClockActionRequest{Source: SourceWeb})
		require.NoError(t, err)
		assert.Equal(t, KindClockIn, res.Kind)
		assert.Len(t, env.store.events, 1)

		status, err := env.svc.GetStatus(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, StateClockedIn, status.State)
	})

	t.Run("double clock in conflicts and creates no event", func(t *testing.T) {
		env := newTestEnv(now)
		env.dir.addUser("u1", "Tanaka", "", false, 480)

		_, err := env.svc.ClockIn(ctx, "u1", ClockActionRequest{Source: SourceWeb})
		require.NoError(t, err)

		_, err = env.svc.ClockIn(ctx, "u1", ClockActionRequest{Source: SourceTerminal})
		require.Error(t, err)
		api, ok := err.(*APIError)
		require.True(t, ok)
		assert.Equal(t, CodeConflict, api.Code)
		assert.Equal(t, "already clocked in", api.Message)
		assert.Len(t, env.store.events, 1)
	})

	t.Run("transition table", func(t *testing.T) {
		tests := []struct {
			name     string
			state    ClockState
			kind     EventKind
			wantErr  bool
			wantMsg  string
		}{
			{"clock in while on break", StateOnBreak, KindClockIn, true, "cannot clock in while on break"},
			{"clock out while on break", StateOnBreak, KindClockOut, true, "cannot clock out while on break"},
			{"clock out while clocked out", StateClockedOut, KindClockOut, true, "not clocked in"},
			{"break start while clocked out", StateClockedOut, KindBreakStart, true, ""},
			{"break end while clocked in", StateClockedIn, KindBreakEnd, true, ""},
			{"break start while clocked in", StateClockedIn, KindBreakStart, false, ""},
			{"break end while on break", StateOnBreak, KindBreakEnd, false, ""},
			{"clock out while clocked in", StateClockedIn, KindClockOut, false, ""},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := checkTransition(tt.state, tt.kind)
				if tt.wantErr {
					require.Error(t, err)
					api := err.(*APIError)
					assert.Equal(t, CodeConflict, api.Code)
					if tt.wantMsg != "" {
						assert.Equal(t, tt.wantMsg, api.Message)
					}
				} else {
					assert.NoError(t, err)
				}
			})
		}
	})

	t.Run("unknown user is not found", func(t *testing.T) {
		env := newTestEnv(now)
		_, err := env.svc.ClockIn(ctx, "ghost", ClockActionRequest{Source: SourceWeb})
		require.Error(t, err)
		assert.Equal(t, CodeNotFound, err.(*APIError).Code)
	})

	t.Run("invalid source is rejected", func(t *testing.T) {
		env := newTestEnv(now)
		env.dir.addUser("u1", "Tanaka", "", false, 480)
		_, err := env.svc.ClockIn(ctx, "u1", ClockActionRequest{Source: "FAX"})
		require.Error(t, err)
		assert.Equal(t, CodeInvalidArgument, err.(*APIError).Code)
	})
}

func TestConcurrentClockInIsSerializedPerUser(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(mustTime("2025-03-10T08:00:00Z"))
	env.dir.addUser("u1", "Tanaka", "", false, 480)

	// 1本目をMostRecentの読み取り中（ロック保持中）で止めてから2本目を発射する
	entered := make(chan struct{})
	release := make(chan struct{})
	calls := 0
	env.store.onMostRecent = func() {
		calls++
		if calls == 1 {
			close(entered)
			<-release
		}
	}

	req := ClockActionRequest{Source: SourceWeb}
	errs := make(chan error, 2)
	go func() {
		_, err := env.svc.ClockIn(ctx, "u1", req)
		errs <- err
	}()
	<-entered
	go func() {
		_, err := env.svc.ClockIn(ctx, "u1", req)
		errs <- err
	}()
	close(release)

	var okCount, conflictCount int
	for i := 0; i < 2; i++ {
		err := <-errs
		if err == nil {
			okCount++
			continue
		}
		api, ok := err.(*APIError)
		require.True(t, ok)
		assert.Equal(t, CodeConflict, api.Code)
		assert.Equal(t, "already clocked in", api.Message)
		conflictCount++
	}
	assert.Equal(t, 1, okCount)
	assert.Equal(t, 1, conflictCount)

	evs := env.store.sortedFor("u1")
	require.Len(t, evs, 1, "exactly one clock-in may land")
	assert.Equal(t, KindClockIn, evs[0].Kind)
}

func TestPartialRuleConfigFallsBackPerField(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	dir := newFakeDirectory()
	dir.addUser("u1", "Tanaka", "", false, 480)
	svc := NewService(store, dir, &fakeAudit{}, Config{Rules: RuleSet{MinBreakMinutes: 45}})
	svc.clock = &fixedClock{t: mustTime("2025-03-10T19:00:00Z")}
	svc.id = &seqIDGen{}

	def := DefaultRules()
	assert.Equal(t, def.MaxDailyMinutes, svc.rules.MaxDailyMinutes)
	assert.Equal(t, def.BreakAfterMinutes, svc.rules.BreakAfterMinutes)
	assert.Equal(t, 45, svc.rules.MinBreakMinutes)
	assert.Equal(t, def.LongDayMinutes, svc.rules.LongDayMinutes)
	assert.Equal(t, def.LongDayBreakMinutes, svc.rules.LongDayBreakMinutes)

	// 通常の8時間勤務＋60分休憩が非適合扱いにならないこと
	store.events = []TimeEvent{
		{EventULID: "a", UserID: "u1", Kind: KindClockIn, HappenedAt: mustTime("2025-03-10T09:00:00Z"), Source: SourceWeb},
		{EventULID: "b", UserID: "u1", Kind: KindBreakStart, HappenedAt: mustTime("2025-03-10T12:00:00Z"), Source: SourceWeb},
		{EventULID: "c", UserID: "u1", Kind: KindBreakEnd, HappenedAt: mustTime("2025-03-10T13:00:00Z"), Source: SourceWeb},
		{EventULID: "d", UserID: "u1", Kind: KindClockOut, HappenedAt: mustTime("2025-03-10T18:00:00Z"), Source: SourceWeb},
	}
	sum, err := svc.Recalculate(ctx, "u1", "2025-03-10")
	require.NoError(t, err)
	assert.True(t, sum.IsCompliant, "notes: %v", sum.ComplianceNotes)
	assert.Equal(t, 480, sum.TotalWorkMinutes)
}

func TestClockOutTriggersRecalculation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(mustTime("2025-03-10T08:00:00Z"))
	env.dir.addUser("u1", "Tanaka", "", false, 480)

	_, err := env.svc.ClockIn(ctx, "u1", ClockActionRequest{Source: SourceWeb})
	require.NoError(t, err)

	env.clock.t = mustTime("2025-03-10T16:00:00Z")
	_, err = env.svc.ClockOut(ctx, "u1", ClockActionRequest{Source: SourceWeb})
	require.NoError(t, err)

	sum, ok := env.store.summaries[sumKey("u1", "2025-03-10")]
	require.True(t, ok, "clock-out must upsert the day's summary")
	assert.Equal(t, 480, sum.TotalWorkMinutes)
	assert.Equal(t, 0, sum.OvertimeMinutes)
}

func TestClockOutRecalcFailureKeepsEvent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(mustTime("2025-03-10T08:00:00Z"))
	env.dir.addUser("u1", "Tanaka", "", false, 480)

	_, err := env.svc.ClockIn(ctx, "u1", ClockActionRequest{Source: SourceWeb})
	require.NoError(t, err)

	env.clock.t = mustTime("2025-03-10T16:00:00Z")
	env.store.failUpsert = true
	_, err = env.svc.ClockOut(ctx, "u1", ClockActionRequest{Source: SourceWeb})
	require.Error(t, err, "recalculation failure must be reported")
	assert.Equal(t, CodeInternal, err.(*APIError).Code)

	// イベントログが正。CLOCK_OUT はロールバックされない
	assert.Len(t, env.store.events, 2)
	last, _ := env.store.MostRecent(ctx, "u1")
	assert.Equal(t, KindClockOut, last.Kind)
}

func TestRecalculateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(mustTime("2025-03-10T18:00:00Z"))
	env.dir.addUser("u1", "Tanaka", "", false, 480)

	events := []TimeEvent{
		{EventULID: "a", UserID: "u1", Kind: KindClockIn, HappenedAt: mustTime("2025-03-10T08:00:00Z"), Source: SourceWeb},
		{EventULID: "b", UserID: "u1", Kind: KindBreakStart, HappenedAt: mustTime("2025-03-10T10:00:00Z"), Source: SourceWeb},
		{EventULID: "c", UserID: "u1", Kind: KindBreakEnd, HappenedAt: mustTime("2025-03-10T10:15:00Z"), Source: SourceWeb},
		{EventULID: "d", UserID: "u1", Kind: KindClockOut, HappenedAt: mustTime("2025-03-10T16:15:00Z"), Source: SourceWeb},
	}
	env.store.events = events

	first, err := env.svc.Recalculate(ctx, "u1", "2025-03-10")
	require.NoError(t, err)
	second, err := env.svc.Recalculate(ctx, "u1", "2025-03-10")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 480, first.TotalWorkMinutes)
	assert.Equal(t, 15, first.TotalBreakMinutes)
}

func TestRecalculateExcludesOpenInterval(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(mustTime("2025-03-10T12:00:00Z"))
	env.dir.addUser("u1", "Tanaka", "", false, 480)

	env.store.events = []TimeEvent{
		{EventULID: "a", UserID: "u1", Kind: KindClockIn, HappenedAt: mustTime("2025-03-10T08:00:00Z"), Source: SourceWeb},
	}
	sum, err := env.svc.Recalculate(ctx, "u1", "2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, 0, sum.TotalWorkMinutes, "open interval is excluded from the snapshot")
	assert.Equal(t, -480, sum.OvertimeMinutes)
}

func TestRecalculateUnknownUser(t *testing.T) {
	env := newTestEnv(mustTime("2025-03-10T12:00:00Z"))
	_, err := env.svc.Recalculate(context.Background(), "ghost", "2025-03-10")
	require.Error(t, err)
	assert.Equal(t, CodeNotFound, err.(*APIError).Code)
}

func TestGetStatusLiveMinutes(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(mustTime("2025-03-10T11:30:00Z"))
	env.dir.addUser("u1", "Tanaka", "", false, 480)

	env.store.events = []TimeEvent{
		{EventULID: "a", UserID: "u1", Kind: KindClockIn, HappenedAt: mustTime("2025-03-10T08:00:00Z"), Source: SourceWeb},
		{EventULID: "b", UserID: "u1", Kind: KindBreakStart, HappenedAt: mustTime("2025-03-10T10:00:00Z"), Source: SourceWeb},
		{EventULID: "c", UserID: "u1", Kind: KindBreakEnd, HappenedAt: mustTime("2025-03-10T10:15:00Z"), Source: SourceWeb},
	}

	status, err := env.svc.GetStatus(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, StateClockedIn, status.State)
	require.NotNil(t, status.ClockedInSince)
	assert.Equal(t, mustTime("2025-03-10T08:00:00Z"), *status.ClockedInSince)
	assert.Equal(t, 210, status.ElapsedWorkMinutes) // 08:00→11:30
	// 当日実績は now を仮終端として集計（210 − 休憩15）
	assert.Equal(t, 195, status.TodayWorkMinutes)
	assert.Equal(t, 15, status.TodayBreakMinutes)
}

func TestGetStatusOnBreak(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(mustTime("2025-03-10T10:20:00Z"))
	env.dir.addUser("u1", "Tanaka", "", false, 480)

	env.store.events = []TimeEvent{
		{EventULID: "a", UserID: "u1", Kind: KindClockIn, HappenedAt: mustTime("2025-03-10T08:00:00Z"), Source: SourceWeb},
		{EventULID: "b", UserID: "u1", Kind: KindBreakStart, HappenedAt: mustTime("2025-03-10T10:00:00Z"), Source: SourceWeb},
	}

	status, err := env.svc.GetStatus(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, StateOnBreak, status.State)
	require.NotNil(t, status.BreakStartedAt)
	assert.Equal(t, 20, status.ElapsedBreakMinutes)
	assert.Equal(t, 20, status.TodayBreakMinutes)
	assert.Equal(t, 120, status.TodayWorkMinutes) // 08:00→10:00 実働、休憩20分控除済み
}

func TestGetStatusOvernightSession(t *testing.T) {
	ctx := context.Background()

	t.Run("session start is found by looking back past midnight", func(t *testing.T) {
		env := newTestEnv(mustTime("2025-03-11T02:00:00Z"))
		env.dir.addUser("u1", "Tanaka", "", false, 480)
		env.store.events = []TimeEvent{
			{EventULID: "a", UserID: "u1", Kind: KindClockIn, HappenedAt: mustTime("2025-03-10T22:00:00Z"), Source: SourceWeb},
		}

		status, err := env.svc.GetStatus(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, StateClockedIn, status.State)
		require.NotNil(t, status.ClockedInSince)
		assert.Equal(t, mustTime("2025-03-10T22:00:00Z"), *status.ClockedInSince)
		assert.Equal(t, 240, status.ElapsedWorkMinutes)
	})

	t.Run("lookback read failure is surfaced", func(t *testing.T) {
		env := newTestEnv(mustTime("2025-03-11T02:00:00Z"))
		env.dir.addUser("u1", "Tanaka", "", false, 480)
		env.store.events = []TimeEvent{
			{EventULID: "a", UserID: "u1", Kind: KindClockIn, HappenedAt: mustTime("2025-03-10T22:00:00Z"), Source: SourceWeb},
		}
		calls := 0
		env.store.onInRange = func() error {
			calls++
			if calls == 2 { // 2回目＝日跨ぎの遡り読み
				return fmt.Errorf("storage unavailable")
			}
			return nil
		}

		_, err := env.svc.GetStatus(ctx, "u1")
		require.Error(t, err)
		assert.ErrorContains(t, err, "storage unavailable")
	})
}

func TestGetStatusClockedOutIsEmpty(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(mustTime("2025-03-10T07:00:00Z"))
	env.dir.addUser("u1", "Tanaka", "", false, 480)

	status, err := env.svc.GetStatus(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, StateClockedOut, status.State)
	assert.Nil(t, status.ClockedInSince)
	assert.Zero(t, status.TodayWorkMinutes)
}

func TestGetDailySummaryRebuildsMissingCache(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(mustTime("2025-03-11T09:00:00Z"))
	env.dir.addUser("u1", "Tanaka", "", false, 480)

	env.store.events = []TimeEvent{
		{EventULID: "a", UserID: "u1", Kind: KindClockIn, HappenedAt: mustTime("2025-03-10T08:00:00Z"), Source: SourceWeb},
		{EventULID: "b", UserID: "u1", Kind: KindClockOut, HappenedAt: mustTime("2025-03-10T17:00:00Z"), Source: SourceWeb},
	}

	res, err := env.svc.GetDailySummary(ctx, "u1", "2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, 540, res.TotalWorkMinutes)
	_, ok := env.store.summaries[sumKey("u1", "2025-03-10")]
	assert.True(t, ok, "missing cache is rebuilt on read")
}

func TestGetTimeSheetRange(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(mustTime("2025-03-12T09:00:00Z"))
	env.dir.addUser("u1", "Tanaka", "", false, 480)

	t.Run("bad range is invalid argument", func(t *testing.T) {
		_, err := env.svc.GetTimeSheet(ctx, "u1", "2025-03-12", "2025-03-10")
		require.Error(t, err)
		assert.Equal(t, CodeInvalidArgument, err.(*APIError).Code)

		_, err = env.svc.GetTimeSheet(ctx, "u1", "12-03-2025", "2025-03-12")
		require.Error(t, err)
		assert.Equal(t, CodeInvalidArgument, err.(*APIError).Code)
	})

	t.Run("days are filled for the whole range", func(t *testing.T) {
		ts, err := env.svc.GetTimeSheet(ctx, "u1", "2025-03-10", "2025-03-12")
		require.NoError(t, err)
		require.Len(t, ts.Days, 3)
		assert.Equal(t, "2025-03-10", ts.Days[0].Date)
		assert.Equal(t, "2025-03-12", ts.Days[2].Date)
	})
}
