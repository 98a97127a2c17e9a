package records

import "context"

// Repo defines persistence operations for RO records and the shop directory.
type Repo interface {
	// Get returns the record for an RO number, or ErrNotFound.
	Get(ctx context.Context, roNumber string) (Record, error)
	// Upsert creates or merges a record. Only non-nil fields change.
	Upsert(ctx context.Context, roNumber string, fields Partial) (Record, error)
	// AppendNote adds an audit event to the record's append-only note log,
	// creating the record if it does not exist yet.
	AppendNote(ctx context.Context, roNumber string, note NoteEvent) error
	// LookupShopByName resolves a shop's contact info by name. Exact
	// normalized match first, then substring containment with a 3-character
	// minimum. Returns ErrShopNotFound on a miss.
	LookupShopByName(ctx context.Context, name string) (ShopContact, error)
}
