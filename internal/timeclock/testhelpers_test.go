package timeclock

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// ===== インメモリフェイク =====

type fakeStore struct {
	events     []TimeEvent
	summaries  map[string]DailySummary // "user|date"
	failUpsert bool

	onMostRecent func()       // 呼び出しタイミングを制御したいテスト用
	onInRange    func() error // 読み取り失敗を注入するテスト用
}

func newFakeStore() *fakeStore {
	return &fakeStore{summaries: make(map[string]DailySummary)}
}

func sumKey(userID, date string) string { return userID + "|" + date }

func (f *fakeStore) Append(_ context.Context, ev TimeEvent) error {
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeStore) sortedFor(userID string) []TimeEvent {
	var out []TimeEvent
	for _, ev := range f.events {
		if ev.UserID == userID {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].HappenedAt.Equal(out[j].HappenedAt) {
			return out[i].HappenedAt.Before(out[j].HappenedAt)
		}
		return out[i].EventULID < out[j].EventULID
	})
	return out
}

func (f *fakeStore) MostRecent(_ context.Context, userID string) (*TimeEvent, error) {
	if f.onMostRecent != nil {
		f.onMostRecent()
	}
	evs := f.sortedFor(userID)
	if len(evs) == 0 {
		return nil, nil
	}
	ev := evs[len(evs)-1]
	return &ev, nil
}

func (f *fakeStore) InRange(_ context.Context, userID string, from, to time.Time) ([]TimeEvent, error) {
	if f.onInRange != nil {
		if err := f.onInRange(); err != nil {
			return nil, err
		}
	}
	var out []TimeEvent
	for _, ev := range f.sortedFor(userID) {
		if !ev.HappenedAt.Before(from) && ev.HappenedAt.Before(to) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeStore) FindByID(_ context.Context, id string) (*TimeEvent, error) {
	for _, ev := range f.events {
		if ev.EventULID == id {
			e := ev
			return &e, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) Update(_ context.Context, ev TimeEvent) error {
	for i := range f.events {
		if f.events[i].EventULID == ev.EventULID {
			f.events[i] = ev
			return nil
		}
	}
	return ErrNotFound("time event not found")
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	for i := range f.events {
		if f.events[i].EventULID == id {
			f.events = append(f.events[:i], f.events[i+1:]...)
			return nil
		}
	}
	return ErrNotFound("time event not found")
}

func (f *fakeStore) FindSummary(_ context.Context, userID, date string) (*DailySummary, error) {
	if s, ok := f.summaries[sumKey(userID, date)]; ok {
		return &s, nil
	}
	return nil, nil
}

func (f *fakeStore) UpsertSummary(_ context.Context, s DailySummary) error {
	if f.failUpsert {
		return fmt.Errorf("storage unavailable")
	}
	f.summaries[sumKey(s.UserID, s.WorkedOn)] = s
	return nil
}

func (f *fakeStore) SummariesInRange(_ context.Context, userID, from, to string) ([]DailySummary, error) {
	var out []DailySummary
	for _, s := range f.summaries {
		if s.UserID == userID && s.WorkedOn >= from && s.WorkedOn <= to {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkedOn < out[j].WorkedOn })
	return out, nil
}

type fakeUser struct {
	name    string
	manager string // "" = 上長なし
	admin   bool
	target  int
}

type fakeDirectory struct {
	users map[string]fakeUser
	subs  map[string][]string // manager -> substitutes
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{users: make(map[string]fakeUser), subs: make(map[string][]string)}
}

func (d *fakeDirectory) addUser(id, name, manager string, admin bool, target int) {
	d.users[id] = fakeUser{name: name, manager: manager, admin: admin, target: target}
}

func (d *fakeDirectory) Exists(_ context.Context, id string) (bool, error) {
	_, ok := d.users[id]
	return ok, nil
}

func (d *fakeDirectory) DisplayNameOf(_ context.Context, id string) (string, error) {
	u, ok := d.users[id]
	if !ok {
		return "", ErrNotFound("user not found")
	}
	return u.name, nil
}

func (d *fakeDirectory) ManagerOf(_ context.Context, id string) (string, error) {
	u, ok := d.users[id]
	if !ok {
		return "", ErrNotFound("user not found")
	}
	return u.manager, nil
}

func (d *fakeDirectory) SubordinatesOf(_ context.Context, managerID string) ([]string, error) {
	var out []string
	for id, u := range d.users {
		if u.manager == managerID {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (d *fakeDirectory) SubstituteDelegatesOf(_ context.Context, managerID string) ([]string, error) {
	return d.subs[managerID], nil
}

func (d *fakeDirectory) ManagersDelegatingTo(_ context.Context, substituteID string) ([]string, error) {
	var out []string
	for mgr, subs := range d.subs {
		for _, s := range subs {
			if s == substituteID {
				out = append(out, mgr)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func (d *fakeDirectory) IsAdmin(_ context.Context, id string) (bool, error) {
	return d.users[id].admin, nil
}

func (d *fakeDirectory) DailyTargetMinutes(_ context.Context, id string) (int, error) {
	u, ok := d.users[id]
	if !ok {
		return 0, ErrNotFound("user not found")
	}
	if u.target <= 0 {
		return 480, nil
	}
	return u.target, nil
}

type auditCall struct {
	actorID, action, entityType, entityID, reason string
	before, after                                 any
}

type fakeAudit struct{ calls []auditCall }

func (a *fakeAudit) Record(_ context.Context, actorID, action, entityType, entityID, reason string, before, after any) {
	a.calls = append(a.calls, auditCall{actorID, action, entityType, entityID, reason, before, after})
}

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

type seqIDGen struct{ n int }

func (g *seqIDGen) New() (string, error) {
	g.n++
	return fmt.Sprintf("EV%08d", g.n), nil
}

// ===== 組み立て =====

type testEnv struct {
	svc   *Service
	store *fakeStore
	dir   *fakeDirectory
	audit *fakeAudit
	clock *fixedClock
}

func newTestEnv(now time.Time) *testEnv {
	store := newFakeStore()
	dir := newFakeDirectory()
	aud := &fakeAudit{}
	svc := NewService(store, dir, aud, Config{})
	clk := &fixedClock{t: now}
	svc.clock = clk
	svc.id = &seqIDGen{}
	return &testEnv{svc: svc, store: store, dir: dir, audit: aud, clock: clk}
}

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}
