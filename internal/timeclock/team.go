package timeclock

import (
	"context"
	"sort"
)

// ===== Team Status Aggregator =====

// resolveTeam: actor から見えるチームメンバーの集合。
//   (a) actor を直属上長とするユーザ
// ∪ (b) actor を代理人として登録している各上長の直属部下
// 1ホップのみで、代理の代理までは辿らない。
func (s *Service) resolveTeam(ctx context.Context, actorID string) ([]string, error) {
	members, err := s.dir.SubordinatesOf(ctx, actorID)
	if err != nil {
		return nil, err
	}
	managers, err := s.dir.ManagersDelegatingTo(ctx, actorID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(members))
	out := make([]string, 0, len(members))
	for _, m := range members {
		if _, ok := seen[m]; !ok {
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	for _, mgr := range managers {
		subs, err := s.dir.SubordinatesOf(ctx, mgr)
		if err != nil {
			return nil, err
		}
		for _, m := range subs {
			if _, ok := seen[m]; !ok {
				seen[m] = struct{}{}
				out = append(out, m)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Service) GetTeamStatus(ctx context.Context, managerID string) (TeamStatusResponse, error) {
	if managerID == "" {
		return TeamStatusResponse{}, ErrInvalid("manager_id is required")
	}
	ok, err := s.dir.Exists(ctx, managerID)
	if err != nil {
		return TeamStatusResponse{}, err
	}
	if !ok {
		return TeamStatusResponse{}, ErrNotFound("manager not found")
	}

	members, err := s.resolveTeam(ctx, managerID)
	if err != nil {
		return TeamStatusResponse{}, err
	}
	resp := TeamStatusResponse{ManagerID: managerID, Members: make([]TeamMemberStatus, 0, len(members))}
	for _, userID := range members {
		status, err := s.GetStatus(ctx, userID)
		if err != nil {
			return TeamStatusResponse{}, err
		}
		name, err := s.dir.DisplayNameOf(ctx, userID)
		if err != nil {
			return TeamStatusResponse{}, err
		}
		resp.Members = append(resp.Members, TeamMemberStatus{
			UserID:      userID,
			DisplayName: name,
			Status:      status,
		})
	}
	return resp, nil
}

// GetTeamMemberEntries: 手動修正と同じ関係チェック（直属上長/管理者/1ホップ代理人）。
// 無関係な actor は FORBIDDEN。
func (s *Service) GetTeamMemberEntries(ctx context.Context, actorID, targetUserID, from, to string) (TimesheetResponse, error) {
	if err := s.authorizeManage(ctx, actorID, targetUserID); err != nil {
		return TimesheetResponse{}, err
	}
	return s.GetTimeSheet(ctx, targetUserID, from, to)
}
