package records

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoUpsertMergesAndReloads(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	status := StatusReady

	mock.ExpectExec("INSERT INTO ro_records").
		WithArgs("12345", nil, nil, nil, StatusReady, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT ro_number, shop_name, vehicle, vin, status, created_at, updated_at").
		WithArgs("12345").
		WillReturnRows(sqlmock.NewRows([]string{"ro_number", "shop_name", "vehicle", "vin", "status", "created_at", "updated_at"}).
			AddRow("12345", "JMD", "", "", StatusReady, now, now))
	mock.ExpectQuery("SELECT id, ts, actor, action FROM ro_notes").
		WithArgs("12345").
		WillReturnRows(sqlmock.NewRows([]string{"id", "ts", "actor", "action"}))

	rec, err := repo.Upsert(context.Background(), "12345", Partial{Status: &status})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if rec.Status != StatusReady || rec.ShopName != "JMD" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpsertRejectsInvalidRO(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	if _, err := repo.Upsert(context.Background(), "12", Partial{}); !errors.Is(err, ErrInvalidRONumber) {
		t.Fatalf("err = %v, want ErrInvalidRONumber", err)
	}
}

func TestPGRepoAppendNoteCreatesRowFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	note := NoteEvent{ID: "note-1", Actor: "router", Action: "Needs Attention: shop name not found", Timestamp: time.Now().UTC()}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ro_records").
		WithArgs("12345", note.Timestamp).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO ro_notes").
		WithArgs(note.ID, "12345", note.Timestamp, note.Actor, note.Action).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.AppendNote(context.Background(), "12345", note); err != nil {
		t.Fatalf("AppendNote: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	mock.ExpectQuery("SELECT ro_number, shop_name, vehicle, vin, status, created_at, updated_at").
		WithArgs("99999").
		WillReturnRows(sqlmock.NewRows([]string{"ro_number", "shop_name", "vehicle", "vin", "status", "created_at", "updated_at"}))

	if _, err := repo.Get(context.Background(), "99999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPGRepoLookupShopByName(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	mock.ExpectQuery("SELECT name, email, billing_cc FROM shops").
		WillReturnRows(sqlmock.NewRows([]string{"name", "email", "billing_cc"}).
			AddRow("JMD Collision Center", "office@jmd.example", "billing@jmd.example").
			AddRow("Precision Auto Body", "frontdesk@precision.example", ""))

	shop, err := repo.LookupShopByName(context.Background(), "jmd collision")
	if err != nil {
		t.Fatalf("LookupShopByName: %v", err)
	}
	if shop.Email != "office@jmd.example" {
		t.Fatalf("wrong shop: %+v", shop)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
