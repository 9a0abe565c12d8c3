package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/pgkit/internal/record"
)

// Action is the lifecycle event an Entry records.
type Action string

const (
	ActionInsert     Action = "insert"
	ActionUpdate     Action = "update"
	ActionRemove     Action = "remove"
	ActionSoftRemove Action = "soft-remove"
	ActionRestore    Action = "restore"
)

// Entry is one audit log row.
type Entry struct {
	ID        uuid.UUID      `json:"id"`
	Entity    string         `json:"entity"`
	EntityID  string         `json:"entityId"`
	Action    Action         `json:"action"`
	Actor     string         `json:"actor,omitempty"`
	Changes   []FieldChange  `json:"changes,omitempty"`
	OldValues *record.Record `json:"oldValues,omitempty"`
	NewValues *record.Record `json:"newValues,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// ListFilter narrows Repository.List. Zero Entity means all entities.
type ListFilter struct {
	Entity string
	Limit  int
	Offset int
}

// Repository persists audit entries.
type Repository interface {
	Insert(ctx context.Context, e *Entry) error
	// List returns one page of entries, newest first, plus the total count
	// matching the filter.
	List(ctx context.Context, f ListFilter) ([]*Entry, int, error)
}

type actorKey struct{}

// WithActor stores the acting user's id in ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor set by WithActor.
func ActorFromContext(ctx context.Context) (string, bool) {
	a, ok := ctx.Value(actorKey{}).(string)
	return a, ok && a != ""
}
