package records

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Get returns the record for an RO number with its note log, oldest first.
func (r *PGRepo) Get(ctx context.Context, roNumber string) (Record, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT ro_number, shop_name, vehicle, vin, status, created_at, updated_at
		FROM ro_records WHERE ro_number = $1`, roNumber)

	var rec Record
	err := row.Scan(&rec.RONumber, &rec.ShopName, &rec.Vehicle, &rec.VIN, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, ts, actor, action FROM ro_notes
		WHERE ro_number = $1 ORDER BY ts ASC, id ASC`, roNumber)
	if err != nil {
		return Record{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var n NoteEvent
		if err := rows.Scan(&n.ID, &n.Timestamp, &n.Actor, &n.Action); err != nil {
			return Record{}, err
		}
		rec.Notes = append(rec.Notes, n)
	}
	if err := rows.Err(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Upsert creates or merges a record; nil fields keep their stored value.
func (r *PGRepo) Upsert(ctx context.Context, roNumber string, fields Partial) (Record, error) {
	if !ValidRONumber(roNumber) {
		return Record{}, ErrInvalidRONumber
	}
	now := time.Now().UTC()
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO ro_records (ro_number, shop_name, vehicle, vin, status, created_at, updated_at)
		VALUES ($1, COALESCE($2, ''), COALESCE($3, ''), COALESCE($4, ''), COALESCE($5, 'New'), $6, $6)
		ON CONFLICT (ro_number) DO UPDATE SET
			shop_name  = COALESCE($2, ro_records.shop_name),
			vehicle    = COALESCE($3, ro_records.vehicle),
			vin        = COALESCE($4, ro_records.vin),
			status     = COALESCE($5, ro_records.status),
			updated_at = $6`,
		roNumber, fields.ShopName, fields.Vehicle, fields.VIN, fields.Status, now)
	if err != nil {
		return Record{}, err
	}
	return r.Get(ctx, roNumber)
}

// AppendNote adds an audit event, creating the record row if needed.
func (r *PGRepo) AppendNote(ctx context.Context, roNumber string, note NoteEvent) error {
	if !ValidRONumber(roNumber) {
		return ErrInvalidRONumber
	}
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	if note.Timestamp.IsZero() {
		note.Timestamp = time.Now().UTC()
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ro_records (ro_number, status, created_at, updated_at)
		VALUES ($1, 'New', $2, $2)
		ON CONFLICT (ro_number) DO NOTHING`, roNumber, note.Timestamp); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ro_notes (id, ro_number, ts, actor, action)
		VALUES ($1, $2, $3, $4, $5)`,
		note.ID, roNumber, note.Timestamp, note.Actor, note.Action); err != nil {
		return err
	}
	return tx.Commit()
}

// LookupShopByName resolves a shop contact from the shops table.
func (r *PGRepo) LookupShopByName(ctx context.Context, name string) (ShopContact, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT name, email, billing_cc FROM shops`)
	if err != nil {
		return ShopContact{}, err
	}
	defer rows.Close()

	var shops []ShopContact
	for rows.Next() {
		var s ShopContact
		if err := rows.Scan(&s.Name, &s.Email, &s.BillingCC); err != nil {
			return ShopContact{}, err
		}
		shops = append(shops, s)
	}
	if err := rows.Err(); err != nil {
		return ShopContact{}, err
	}

	// The directory is small; fuzzy matching stays in one place (matchShop)
	// so both implementations resolve names identically.
	if shop, ok := matchShop(shops, name); ok {
		return shop, nil
	}
	return ShopContact{}, ErrShopNotFound
}

var _ Repo = (*PGRepo)(nil)
