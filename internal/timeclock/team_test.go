package timeclock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTeamStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("direct subordinates", func(t *testing.T) {
		env := correctionEnv(mustTime("2025-03-10T09:00:00Z"))
		res, err := env.svc.GetTeamStatus(ctx, "mgr1")
		require.NoError(t, err)
		ids := memberIDs(res)
		assert.Equal(t, []string{"u1", "u2"}, ids)
	})

	t.Run("substitute sees the delegating manager's team", func(t *testing.T) {
		env := correctionEnv(mustTime("2025-03-10T09:00:00Z"))
		res, err := env.svc.GetTeamStatus(ctx, "sub1")
		require.NoError(t, err)
		assert.Equal(t, []string{"u1", "u2"}, memberIDs(res))
	})

	t.Run("union of own team and delegated teams", func(t *testing.T) {
		env := correctionEnv(mustTime("2025-03-10T09:00:00Z"))
		// mgr2 が mgr1 を代理人として登録 → mgr1 は u3 も見える
		env.dir.subs["mgr2"] = []string{"mgr1"}
		res, err := env.svc.GetTeamStatus(ctx, "mgr1")
		require.NoError(t, err)
		assert.Equal(t, []string{"u1", "u2", "u3"}, memberIDs(res))
	})

	t.Run("statuses come from the resolver", func(t *testing.T) {
		env := correctionEnv(mustTime("2025-03-10T09:00:00Z"))
		env.store.events = []TimeEvent{
			{EventULID: "a", UserID: "u1", Kind: KindClockIn, HappenedAt: mustTime("2025-03-10T08:00:00Z"), Source: SourceWeb},
		}
		res, err := env.svc.GetTeamStatus(ctx, "mgr1")
		require.NoError(t, err)
		byID := make(map[string]TeamMemberStatus)
		for _, m := range res.Members {
			byID[m.UserID] = m
		}
		assert.Equal(t, StateClockedIn, byID["u1"].Status.State)
		assert.Equal(t, StateClockedOut, byID["u2"].Status.State)
		assert.Equal(t, "Tanaka", byID["u1"].DisplayName)
	})

	t.Run("empty team is fine", func(t *testing.T) {
		env := correctionEnv(mustTime("2025-03-10T09:00:00Z"))
		res, err := env.svc.GetTeamStatus(ctx, "other")
		require.NoError(t, err)
		assert.Empty(t, res.Members)
	})

	t.Run("unknown manager is not found", func(t *testing.T) {
		env := correctionEnv(mustTime("2025-03-10T09:00:00Z"))
		_, err := env.svc.GetTeamStatus(ctx, "ghost")
		require.Error(t, err)
		assert.Equal(t, CodeNotFound, err.(*APIError).Code)
	})
}

func TestGetTeamMemberEntries(t *testing.T) {
	ctx := context.Background()
	env := correctionEnv(mustTime("2025-03-11T09:00:00Z"))
	env.store.events = []TimeEvent{
		{EventULID: "a", UserID: "u1", Kind: KindClockIn, HappenedAt: mustTime("2025-03-10T08:00:00Z"), Source: SourceWeb},
		{EventULID: "b", UserID: "u1", Kind: KindClockOut, HappenedAt: mustTime("2025-03-10T17:00:00Z"), Source: SourceWeb},
	}

	t.Run("manager can read entries", func(t *testing.T) {
		ts, err := env.svc.GetTeamMemberEntries(ctx, "mgr1", "u1", "2025-03-10", "2025-03-10")
		require.NoError(t, err)
		require.Len(t, ts.Days, 1)
		assert.Len(t, ts.Days[0].Events, 2)
	})

	t.Run("substitute can read entries", func(t *testing.T) {
		_, err := env.svc.GetTeamMemberEntries(ctx, "sub1", "u1", "2025-03-10", "2025-03-10")
		assert.NoError(t, err)
	})

	t.Run("unrelated actor is forbidden", func(t *testing.T) {
		_, err := env.svc.GetTeamMemberEntries(ctx, "other", "u1", "2025-03-10", "2025-03-10")
		require.Error(t, err)
		assert.Equal(t, CodeForbidden, err.(*APIError).Code)
	})
}

func memberIDs(res TeamStatusResponse) []string {
	ids := make([]string, 0, len(res.Members))
	for _, m := range res.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}
