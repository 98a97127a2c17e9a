package records

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory implementation of Repo, used in dev mode and
// tests.
type MemoryRepo struct {
	mu    sync.RWMutex
	data  map[string]Record
	shops []ShopContact
}

// NewMemoryRepo constructs an empty MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Record)}
}

// AddShop seeds a shop directory entry.
func (r *MemoryRepo) AddShop(shop ShopContact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shops = append(r.shops, shop)
}

// Get returns the record for an RO number.
func (r *MemoryRepo) Get(ctx context.Context, roNumber string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.data[roNumber]
	if !ok {
		return Record{}, ErrNotFound
	}
	return cloneRecord(rec), nil
}

// Upsert creates or merges a record.
func (r *MemoryRepo) Upsert(ctx context.Context, roNumber string, fields Partial) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if !ValidRONumber(roNumber) {
		return Record{}, ErrInvalidRONumber
	}

	now := time.Now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.data[roNumber]
	if !ok {
		rec = Record{RONumber: roNumber, Status: StatusNew, CreatedAt: now}
	}
	if fields.ShopName != nil {
		rec.ShopName = *fields.ShopName
	}
	if fields.Vehicle != nil {
		rec.Vehicle = *fields.Vehicle
	}
	if fields.VIN != nil {
		rec.VIN = *fields.VIN
	}
	if fields.Status != nil {
		rec.Status = *fields.Status
	}
	rec.UpdatedAt = now
	r.data[roNumber] = rec
	return cloneRecord(rec), nil
}

// AppendNote adds an audit event, creating the record if needed.
func (r *MemoryRepo) AppendNote(ctx context.Context, roNumber string, note NoteEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !ValidRONumber(roNumber) {
		return ErrInvalidRONumber
	}
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	if note.Timestamp.IsZero() {
		note.Timestamp = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.data[roNumber]
	if !ok {
		now := time.Now().UTC()
		rec = Record{RONumber: roNumber, Status: StatusNew, CreatedAt: now, UpdatedAt: now}
	}
	rec.Notes = append(rec.Notes, note)
	r.data[roNumber] = rec
	return nil
}

// LookupShopByName resolves a shop contact from the seeded directory.
func (r *MemoryRepo) LookupShopByName(ctx context.Context, name string) (ShopContact, error) {
	if err := ctx.Err(); err != nil {
		return ShopContact{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if shop, ok := matchShop(r.shops, name); ok {
		return shop, nil
	}
	return ShopContact{}, ErrShopNotFound
}

func cloneRecord(rec Record) Record {
	out := rec
	out.Notes = append([]NoteEvent(nil), rec.Notes...)
	return out
}

var _ Repo = (*MemoryRepo)(nil)
