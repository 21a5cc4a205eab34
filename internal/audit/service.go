package audit

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"log"
	"time"

	"github.com/oklog/ulid/v2"

	"TEMPO-backend/internal/platform/db"
)

type Service struct {
	db    *sql.DB
	store *Store
}

func NewService(conn *sql.DB) *Service {
	return &Service{db: conn, store: NewStore(conn)}
}

// Record: 監査ログの書き込み。呼び出し元の処理を止めないため、
// 失敗は警告ログに留めてエラーは返さない（fire-and-forget）。
func (s *Service) Record(ctx context.Context, actorID, action, entityType, entityID, reason string, before, after any) {
	id, err := newULID()
	if err != nil {
		log.Printf("[WARN] audit: id generation failed: %v", err)
		return
	}
	e := Entry{
		EntryULID:  id,
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Reason:     reason,
		Before:     marshalSnapshot(before),
		After:      marshalSnapshot(after),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.Insert(ctx, e); err != nil {
		log.Printf("[WARN] audit: record failed (actor=%s action=%s entity=%s): %v",
			actorID, action, entityID, err)
	}
}

// List: 一覧は読み取り専用Txで読む
func (s *Service) List(ctx context.Context, q ListQuery) ([]Entry, error) {
	var out []Entry
	err := db.ReadOnly(ctx, s.db, func(ctx context.Context, tx db.DBTX) error {
		var lerr error
		out, lerr = NewStore(tx).List(ctx, q)
		return lerr
	})
	return out, err
}

func marshalSnapshot(v any) *string {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("[WARN] audit: snapshot marshal failed: %v", err)
		return nil
	}
	s := string(b)
	return &s
}

func newULID() (string, error) {
	t := time.Now().UTC()
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
