package timeclock

import (
	"context"
	"fmt"
	"log"
)

// ===== Manual Correction Editor =====
//
// 手動修正は 直属上長 / 管理者 / 上長の代理人（1ホップのみ、推移しない）に限る。
// 修正イベントは is_modified / modified_by を付け、監査ログを残し、
// 影響した日付のサマリを再計算する。

// authorizeManage: actor が target のレコードを管理できるか。
// 不許可は FORBIDDEN、存在しないユーザは NOT_FOUND。
func (s *Service) authorizeManage(ctx context.Context, actorID, targetID string) error {
	if actorID == "" || targetID == "" {
		return ErrInvalid("actor and target user are required")
	}
	ok, err := s.dir.Exists(ctx, targetID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound("target user not found")
	}

	admin, err := s.dir.IsAdmin(ctx, actorID)
	if err != nil {
		return err
	}
	if admin {
		return nil
	}

	manager, err := s.dir.ManagerOf(ctx, targetID)
	if err != nil {
		return err
	}
	if manager != "" {
		if manager == actorID {
			return nil
		}
		subs, err := s.dir.SubstituteDelegatesOf(ctx, manager)
		if err != nil {
			return err
		}
		for _, sub := range subs {
			if sub == actorID {
				return nil
			}
		}
	}
	return ErrForbidden("not a manager, admin, or substitute delegate of the target user")
}

func (s *Service) AddManualEntry(ctx context.Context, actorID string, req AddManualEntryRequest) (EventResponse, error) {
	if !req.Kind.Valid() {
		return EventResponse{}, ErrInvalid("kind must be one of CLOCK_IN, CLOCK_OUT, BREAK_START, BREAK_END")
	}
	if req.Reason == "" {
		return EventResponse{}, ErrInvalid("reason is required")
	}
	if err := s.authorizeManage(ctx, actorID, req.TargetUserID); err != nil {
		return EventResponse{}, err
	}

	mu := s.locks.get(req.TargetUserID)
	mu.Lock()
	defer mu.Unlock()

	id, err := s.id.New()
	if err != nil {
		return EventResponse{}, err
	}
	reason := req.Reason
	ev := TimeEvent{
		EventULID:  id,
		UserID:     req.TargetUserID,
		Kind:       req.Kind,
		HappenedAt: req.HappenedAt.UTC(),
		Source:     SourceManual,
		Note:       &reason,
		IsModified: true,
		ModifiedBy: &actorID,
	}
	if err := s.store.Append(ctx, ev); err != nil {
		return EventResponse{}, err
	}
	s.audit.Record(ctx, actorID, "time_event.manual_add", "time_event", ev.EventULID, req.Reason, nil, ev)
	return ev.toDTO(), s.recalcReport(ctx, req.TargetUserID, ev.HappenedAt.In(s.loc).Format(DateLayout))
}

func (s *Service) EditTimeEntry(ctx context.Context, actorID, eventULID string, req EditEntryRequest) (EventResponse, error) {
	if req.Reason == "" {
		return EventResponse{}, ErrInvalid("reason is required")
	}
	if req.HappenedAt == nil && req.Note == nil {
		return EventResponse{}, ErrInvalid("nothing to update")
	}

	before, err := s.store.FindByID(ctx, eventULID)
	if err != nil {
		return EventResponse{}, err
	}
	if before == nil {
		return EventResponse{}, ErrNotFound("time event not found")
	}
	if err := s.authorizeManage(ctx, actorID, before.UserID); err != nil {
		return EventResponse{}, err
	}

	mu := s.locks.get(before.UserID)
	mu.Lock()
	defer mu.Unlock()

	after := *before
	if req.HappenedAt != nil {
		after.HappenedAt = req.HappenedAt.UTC()
	}
	if req.Note != nil {
		after.Note = req.Note
	}
	after.IsModified = true
	after.ModifiedBy = &actorID

	if err := s.store.Update(ctx, after); err != nil {
		return EventResponse{}, err
	}
	s.audit.Record(ctx, actorID, "time_event.edit", "time_event", eventULID, req.Reason, before, after)

	// タイムスタンプ移動が日付を跨いだら移動元・移動先の両日を再計算する
	oldDate := before.HappenedAt.In(s.loc).Format(DateLayout)
	newDate := after.HappenedAt.In(s.loc).Format(DateLayout)
	dates := []string{oldDate}
	if newDate != oldDate {
		dates = append(dates, newDate)
	}
	return after.toDTO(), s.recalcReport(ctx, after.UserID, dates...)
}

func (s *Service) DeleteTimeEntry(ctx context.Context, actorID, eventULID, reason string) error {
	if reason == "" {
		return ErrInvalid("reason is required")
	}
	before, err := s.store.FindByID(ctx, eventULID)
	if err != nil {
		return err
	}
	if before == nil {
		return ErrNotFound("time event not found")
	}
	if err := s.authorizeManage(ctx, actorID, before.UserID); err != nil {
		return err
	}

	mu := s.locks.get(before.UserID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.store.Delete(ctx, eventULID); err != nil {
		return err
	}
	s.audit.Record(ctx, actorID, "time_event.delete", "time_event", eventULID, reason, before, nil)
	return s.recalcReport(ctx, before.UserID, before.HappenedAt.In(s.loc).Format(DateLayout))
}

// recalcReport: 修正イベントは既に確定しているので、再計算の失敗は
// ロールバックせず INTERNAL として呼び出し元に報告する。
// キャッシュは次の再計算で直せる。
func (s *Service) recalcReport(ctx context.Context, userID string, dates ...string) error {
	for _, date := range dates {
		if _, err := s.Recalculate(ctx, userID, date); err != nil {
			log.Printf("[WARN] summary recalculation failed (user=%s date=%s): %v", userID, date, err)
			return ErrInternal(fmt.Sprintf("entry recorded, but daily summary recalculation failed for %s: %v", date, err))
		}
	}
	return nil
}
