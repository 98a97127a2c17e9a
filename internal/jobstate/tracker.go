package jobstate

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Tracker guards per-RO notification idempotency. All mutation runs under a
// per-RO mutex so two concurrent events for the same RO cannot race the
// check-then-act on a sent flag.
type Tracker struct {
	store Store
	locks *mutexMap
}

// NewTracker constructs a Tracker over the given store.
func NewTracker(store Store) *Tracker {
	return &Tracker{store: store, locks: newMutexMap()}
}

// ShouldSendInitialNotice reports whether the initial notice has not yet been
// sent for this RO.
func (t *Tracker) ShouldSendInitialNotice(ctx context.Context, roNumber string) (bool, error) {
	state, err := t.load(ctx, roNumber)
	if err != nil {
		return false, err
	}
	return !state.InitialNoticeSent, nil
}

// MarkInitialNoticeSent flips the initial flag. Call only after a
// confirmed-successful send. Idempotent.
func (t *Tracker) MarkInitialNoticeSent(ctx context.Context, roNumber string) error {
	return t.mutate(ctx, roNumber, func(state *State) {
		state.InitialNoticeSent = true
	})
}

// SetNeedsCalibration records whether the RO needs calibration, for later
// reference in completion messaging.
func (t *Tracker) SetNeedsCalibration(ctx context.Context, roNumber string, needed bool) error {
	return t.mutate(ctx, roNumber, func(state *State) {
		state.NeedsCalibration = &needed
	})
}

// MarkDocumentPresent records the arrival of a lifecycle document.
func (t *Tracker) MarkDocumentPresent(ctx context.Context, roNumber string, kind DocumentKind) error {
	if !KnownDocumentKind(kind) {
		return fmt.Errorf("unknown document kind %q", kind)
	}
	return t.mutate(ctx, roNumber, func(state *State) {
		state.Documents[kind] = true
	})
}

// ShouldSendFinalNotice reports whether all final documents are present and
// the final notice has not been sent yet.
func (t *Tracker) ShouldSendFinalNotice(ctx context.Context, roNumber string) (bool, error) {
	state, err := t.load(ctx, roNumber)
	if err != nil {
		return false, err
	}
	return state.allFinalDocsPresent() && !state.FinalNoticeSent, nil
}

// MarkFinalNoticeSent flips the final flag. Idempotent.
func (t *Tracker) MarkFinalNoticeSent(ctx context.Context, roNumber string) error {
	return t.mutate(ctx, roNumber, func(state *State) {
		state.FinalNoticeSent = true
	})
}

// NeedsCalibration returns the recorded decision, nil when none was made.
func (t *Tracker) NeedsCalibration(ctx context.Context, roNumber string) (*bool, error) {
	state, err := t.load(ctx, roNumber)
	if err != nil {
		return nil, err
	}
	return state.NeedsCalibration, nil
}

// DocumentStatus summarizes document arrival for an RO.
func (t *Tracker) DocumentStatus(ctx context.Context, roNumber string) (DocumentStatus, error) {
	state, err := t.load(ctx, roNumber)
	if err != nil {
		return DocumentStatus{}, err
	}
	return DocumentStatus{
		AllFinalDocsPresent: state.allFinalDocsPresent(),
		Present:             state.presentKinds(),
	}, nil
}

// SendOnce runs fn at most once per (roNumber, kind). The sent flag flips only
// when fn returns nil, so a failed delivery stays retryable. For NoticeFinal
// the document precondition is re-checked under the lock. Returns whether fn
// ran and succeeded.
func (t *Tracker) SendOnce(ctx context.Context, roNumber string, kind NoticeKind, fn func(context.Context) error) (bool, error) {
	t.locks.Lock(roNumber)
	defer t.locks.Unlock(roNumber)

	state, err := t.loadLocked(ctx, roNumber)
	if err != nil {
		return false, err
	}

	switch kind {
	case NoticeInitial:
		if state.InitialNoticeSent {
			return false, nil
		}
	case NoticeFinal:
		if state.FinalNoticeSent {
			return false, nil
		}
		if !state.allFinalDocsPresent() {
			return false, nil
		}
	default:
		return false, fmt.Errorf("unknown notice kind %q", kind)
	}

	if err := fn(ctx); err != nil {
		return false, err
	}

	switch kind {
	case NoticeInitial:
		state.InitialNoticeSent = true
	case NoticeFinal:
		state.FinalNoticeSent = true
	}
	state.UpdatedAt = time.Now().UTC()
	if err := t.store.Save(ctx, state); err != nil {
		// The notice went out; losing the flag risks a duplicate later, which
		// the caller surfaces but cannot undo.
		return true, fmt.Errorf("notice sent but state save failed: %w", err)
	}
	return true, nil
}

func (t *Tracker) load(ctx context.Context, roNumber string) (State, error) {
	t.locks.Lock(roNumber)
	defer t.locks.Unlock(roNumber)
	return t.loadLocked(ctx, roNumber)
}

func (t *Tracker) loadLocked(ctx context.Context, roNumber string) (State, error) {
	state, err := t.store.Get(ctx, roNumber)
	if errors.Is(err, ErrNotFound) {
		return newState(roNumber), nil
	}
	return state, err
}

func (t *Tracker) mutate(ctx context.Context, roNumber string, apply func(*State)) error {
	t.locks.Lock(roNumber)
	defer t.locks.Unlock(roNumber)

	state, err := t.loadLocked(ctx, roNumber)
	if err != nil {
		return err
	}
	apply(&state)
	state.UpdatedAt = time.Now().UTC()
	return t.store.Save(ctx, state)
}
