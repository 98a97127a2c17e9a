package jobstate

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PGStore implements Store using Postgres, one row per RO.
type PGStore struct {
	DB *sql.DB
}

// Get returns the state for an RO number.
func (s *PGStore) Get(ctx context.Context, roNumber string) (State, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT ro_number, initial_notice_sent, final_notice_sent, needs_calibration,
		       doc_estimate, doc_pre_scan, doc_report, doc_post_scan, doc_invoice, updated_at
		FROM job_states WHERE ro_number = $1`, roNumber)

	state := newState(roNumber)
	var needsCal sql.NullBool
	var estimate, preScan, report, postScan, invoice bool
	err := row.Scan(&state.RONumber, &state.InitialNoticeSent, &state.FinalNoticeSent, &needsCal,
		&estimate, &preScan, &report, &postScan, &invoice, &state.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return State{}, ErrNotFound
	}
	if err != nil {
		return State{}, err
	}
	if needsCal.Valid {
		state.NeedsCalibration = &needsCal.Bool
	}
	state.Documents[DocEstimate] = estimate
	state.Documents[DocPreScan] = preScan
	state.Documents[DocReport] = report
	state.Documents[DocPostScan] = postScan
	state.Documents[DocInvoice] = invoice
	return state, nil
}

// Save upserts the state row.
func (s *PGStore) Save(ctx context.Context, state State) error {
	var needsCal sql.NullBool
	if state.NeedsCalibration != nil {
		needsCal = sql.NullBool{Bool: *state.NeedsCalibration, Valid: true}
	}
	now := time.Now().UTC()
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO job_states (ro_number, initial_notice_sent, final_notice_sent, needs_calibration,
			doc_estimate, doc_pre_scan, doc_report, doc_post_scan, doc_invoice, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (ro_number) DO UPDATE SET
			initial_notice_sent = $2,
			final_notice_sent   = $3,
			needs_calibration   = $4,
			doc_estimate        = $5,
			doc_pre_scan        = $6,
			doc_report          = $7,
			doc_post_scan       = $8,
			doc_invoice         = $9,
			updated_at          = $10`,
		state.RONumber, state.InitialNoticeSent, state.FinalNoticeSent, needsCal,
		state.Documents[DocEstimate], state.Documents[DocPreScan], state.Documents[DocReport],
		state.Documents[DocPostScan], state.Documents[DocInvoice], now)
	return err
}

var _ Store = (*PGStore)(nil)
