package jobstate

import "context"

// Store persists per-RO job state. Implementations must treat Get/Save as
// plain reads/writes; serialization of check-then-act sequences is the
// Tracker's responsibility.
type Store interface {
	Get(ctx context.Context, roNumber string) (State, error)
	Save(ctx context.Context, state State) error
}
