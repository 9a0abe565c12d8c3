package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/pgkit/internal/logging"
	"github.com/dmitrijs2005/pgkit/internal/record"
)

// Event describes one entity lifecycle change.
type Event struct {
	Entity   string
	EntityID string
	Action   Action
	Old      *record.Record
	New      *record.Record
}

// Subscriber turns lifecycle events into audit entries. Failures to store an
// entry are logged and never propagated to the caller's write path.
type Subscriber struct {
	repo   Repository
	cfg    Config
	logger logging.Logger
	now    func() time.Time
	newID  func() uuid.UUID
}

// NewSubscriber wires a subscriber to repo.
func NewSubscriber(repo Repository, cfg Config, logger logging.Logger) *Subscriber {
	return &Subscriber{
		repo:   repo,
		cfg:    cfg,
		logger: logging.OrNop(logger).With("module", "audit"),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.New,
	}
}

func (s *Subscriber) AfterInsert(ctx context.Context, entity, id string, values *record.Record) {
	s.Emit(ctx, Event{Entity: entity, EntityID: id, Action: ActionInsert, New: values})
}

func (s *Subscriber) AfterUpdate(ctx context.Context, entity, id string, before, after *record.Record) {
	s.Emit(ctx, Event{Entity: entity, EntityID: id, Action: ActionUpdate, Old: before, New: after})
}

func (s *Subscriber) AfterRemove(ctx context.Context, entity, id string, before *record.Record) {
	s.Emit(ctx, Event{Entity: entity, EntityID: id, Action: ActionRemove, Old: before})
}

func (s *Subscriber) AfterSoftRemove(ctx context.Context, entity, id string, before *record.Record) {
	s.Emit(ctx, Event{Entity: entity, EntityID: id, Action: ActionSoftRemove, Old: before})
}

func (s *Subscriber) AfterRestore(ctx context.Context, entity, id string, after *record.Record) {
	s.Emit(ctx, Event{Entity: entity, EntityID: id, Action: ActionRestore, New: after})
}

// Build turns ev into an entry under the entity's policy. It returns nil for
// updates that change nothing visible.
func (s *Subscriber) Build(ctx context.Context, ev Event) *Entry {
	p := s.cfg.PolicyFor(ev.Entity)
	f := p.Filter()

	e := &Entry{
		ID:        s.newID(),
		Entity:    ev.Entity,
		EntityID:  ev.EntityID,
		Action:    ev.Action,
		OldValues: f.Apply(ev.Old),
		NewValues: f.Apply(ev.New),
		CreatedAt: s.now(),
	}
	if actor, ok := ActorFromContext(ctx); ok {
		e.Actor = actor
	}
	if ev.Action == ActionUpdate {
		e.Changes = p.Changes(ev.Old, ev.New)
		if e.Changes == nil {
			return nil
		}
	}
	return e
}

// Emit builds and stores the entry for ev. It returns the stored entry, or
// nil when nothing was written.
func (s *Subscriber) Emit(ctx context.Context, ev Event) *Entry {
	e := s.Build(ctx, ev)
	if e == nil {
		s.logger.Debug(ctx, "audit skipped, no changes", "entity", ev.Entity, "id", ev.EntityID)
		return nil
	}
	if err := s.repo.Insert(ctx, e); err != nil {
		s.logger.Error(ctx, "audit log write failed",
			"entity", ev.Entity, "id", ev.EntityID, "action", string(ev.Action), "error", err)
		return nil
	}
	return e
}
