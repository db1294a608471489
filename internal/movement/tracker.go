package movement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store persists movements per case. PutMovements must upsert: it never
// deletes and never turns a read movement back to unread.
type Store interface {
	Movements(ctx context.Context, caseID string) ([]Movement, error)
	PutMovements(ctx context.Context, caseID string, ms []Movement) error
}

// Tracker runs read-merge-write cycles against a Store, one at a time per case.
type Tracker struct {
	store Store
	locks *caseLocks
	now   func() time.Time
	newID func() string
}

// TrackerOption customises a Tracker.
type TrackerOption func(*Tracker)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// WithIDs overrides the id generator used for new movements.
func WithIDs(newID func() string) TrackerOption {
	return func(t *Tracker) { t.newID = newID }
}

// NewTracker creates a Tracker over store.
func NewTracker(store Store, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		store: store,
		locks: newCaseLocks(),
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Feed returns the stored movements of caseID, newest first.
func (t *Tracker) Feed(ctx context.Context, caseID string) (Summary, error) {
	ms, err := t.store.Movements(ctx, caseID)
	if err != nil {
		return Summary{}, fmt.Errorf("movement: load %s: %w", caseID, err)
	}
	SortNewestFirst(ms)
	return Summary{Movements: ms, Unread: CountUnread(ms)}, nil
}

// Refresh merges fetched into the stored feed of caseID and persists the
// movements seen for the first time.
func (t *Tracker) Refresh(ctx context.Context, caseID string, fetched []Movement) (Summary, error) {
	unlock := t.locks.lock(caseID)
	defer unlock()

	stored, err := t.store.Movements(ctx, caseID)
	if err != nil {
		return Summary{}, fmt.Errorf("movement: load %s: %w", caseID, err)
	}

	incoming := make([]Movement, len(fetched))
	for i, m := range fetched {
		m.CaseID = caseID
		incoming[i] = m
	}

	sum := Summarize(stored, incoming, t.now(), t.newID)
	if len(sum.Added) == 0 {
		return sum, nil
	}
	if err := t.store.PutMovements(ctx, caseID, sum.Added); err != nil {
		return Summary{}, fmt.Errorf("movement: store %s: %w", caseID, err)
	}
	return sum, nil
}

// MarkRead acknowledges every unread movement of caseID and returns how
// many changed. A second call in a row returns 0.
func (t *Tracker) MarkRead(ctx context.Context, caseID string) (int, error) {
	unlock := t.locks.lock(caseID)
	defer unlock()

	ms, err := t.store.Movements(ctx, caseID)
	if err != nil {
		return 0, fmt.Errorf("movement: load %s: %w", caseID, err)
	}
	changed := make([]Movement, 0, len(ms))
	for _, m := range ms {
		if m.CaseID == caseID && m.State.MarkRead() {
			changed = append(changed, m)
		}
	}
	if len(changed) == 0 {
		return 0, nil
	}
	if err := t.store.PutMovements(ctx, caseID, changed); err != nil {
		return 0, fmt.Errorf("movement: store %s: %w", caseID, err)
	}
	return len(changed), nil
}
