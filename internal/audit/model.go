package audit

import "time"

type Entry struct {
	EntryULID  string     `json:"entry_ulid"`
	ActorID    string     `json:"actor_id"`
	Action     string     `json:"action"`
	EntityType string     `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	Reason     string     `json:"reason"`
	Before     *string    `json:"before,omitempty"` // JSONスナップショット
	After      *string    `json:"after,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type ListQuery struct {
	ActorID  *string
	EntityID *string
	Limit    int
	Offset   int
}

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)
