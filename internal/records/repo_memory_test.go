package records

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestMemoryRepoUpsertMergeSemantics(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	rec, err := repo.Upsert(ctx, "12345", Partial{ShopName: strPtr("JMD Collision"), Vehicle: strPtr("2021 Accord")})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if rec.Status != StatusNew {
		t.Fatalf("new record status = %q, want %q", rec.Status, StatusNew)
	}

	rec, err = repo.Upsert(ctx, "12345", Partial{Status: strPtr(StatusReady)})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if rec.ShopName != "JMD Collision" || rec.Vehicle != "2021 Accord" {
		t.Fatalf("merge lost untouched fields: %+v", rec)
	}
	if rec.Status != StatusReady {
		t.Fatalf("status = %q, want %q", rec.Status, StatusReady)
	}
}

func TestMemoryRepoRejectsInvalidRONumbers(t *testing.T) {
	repo := NewMemoryRepo()
	for _, ro := range []string{"", "123", "123456789", "12a45"} {
		if _, err := repo.Upsert(context.Background(), ro, Partial{}); !errors.Is(err, ErrInvalidRONumber) {
			t.Errorf("Upsert(%q) err = %v, want ErrInvalidRONumber", ro, err)
		}
	}
}

func TestMemoryRepoGetMissing(t *testing.T) {
	repo := NewMemoryRepo()
	if _, err := repo.Get(context.Background(), "99999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryRepoNotesAppendOnly(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	first := NoteEvent{Actor: "router", Action: "Calibration confirmation sent to shop@example.com", Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	second := NoteEvent{Actor: "router", Action: "Auto-closed: all documents received", Timestamp: time.Date(2026, 3, 2, 17, 30, 0, 0, time.UTC)}
	if err := repo.AppendNote(ctx, "12345", first); err != nil {
		t.Fatalf("AppendNote: %v", err)
	}
	if err := repo.AppendNote(ctx, "12345", second); err != nil {
		t.Fatalf("AppendNote: %v", err)
	}

	rec, err := repo.Get(ctx, "12345")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(rec.Notes) != 2 {
		t.Fatalf("notes = %d, want 2", len(rec.Notes))
	}
	if rec.Notes[0].Action != first.Action || rec.Notes[1].Action != second.Action {
		t.Fatalf("notes out of order: %+v", rec.Notes)
	}
	for _, n := range rec.Notes {
		if n.ID == "" {
			t.Fatal("note ID should be assigned")
		}
	}

	rendered := RenderNotes(rec.Notes)
	want := "2026-03-01 09:00 [router] Calibration confirmation sent to shop@example.com\n" +
		"2026-03-02 17:30 [router] Auto-closed: all documents received"
	if rendered != want {
		t.Fatalf("RenderNotes =\n%q\nwant\n%q", rendered, want)
	}
}

func TestShopLookup(t *testing.T) {
	repo := NewMemoryRepo()
	repo.AddShop(ShopContact{Name: "JMD Collision Center", Email: "office@jmd.example", BillingCC: "billing@jmd.example"})
	repo.AddShop(ShopContact{Name: "Precision Auto Body", Email: "frontdesk@precision.example"})
	ctx := context.Background()

	// Exact normalized match.
	shop, err := repo.LookupShopByName(ctx, "  jmd COLLISION center ")
	if err != nil {
		t.Fatalf("LookupShopByName: %v", err)
	}
	if shop.Email != "office@jmd.example" {
		t.Fatalf("wrong shop: %+v", shop)
	}

	// Substring containment.
	shop, err = repo.LookupShopByName(ctx, "Precision Auto")
	if err != nil {
		t.Fatalf("LookupShopByName: %v", err)
	}
	if shop.Email != "frontdesk@precision.example" {
		t.Fatalf("wrong shop: %+v", shop)
	}

	// Below the 3-character minimum no fuzzy match is attempted.
	if _, err := repo.LookupShopByName(ctx, "JM"); !errors.Is(err, ErrShopNotFound) {
		t.Fatalf("short needle err = %v, want ErrShopNotFound", err)
	}

	if _, err := repo.LookupShopByName(ctx, "Unknown Shop LLC"); !errors.Is(err, ErrShopNotFound) {
		t.Fatalf("miss err = %v, want ErrShopNotFound", err)
	}
}

func TestValidRONumber(t *testing.T) {
	valid := []string{"1234", "12345678", "00042"}
	invalid := []string{"", "123", "123456789", "12 45", "abcd", "12-45"}
	for _, ro := range valid {
		if !ValidRONumber(ro) {
			t.Errorf("ValidRONumber(%q) = false, want true", ro)
		}
	}
	for _, ro := range invalid {
		if ValidRONumber(ro) {
			t.Errorf("ValidRONumber(%q) = true, want false", ro)
		}
	}
}

func TestRenderNotesEmpty(t *testing.T) {
	if got := RenderNotes(nil); got != "" {
		t.Fatalf("RenderNotes(nil) = %q, want empty", got)
	}
	if !strings.Contains(RenderNotes([]NoteEvent{{Actor: "router", Action: "x", Timestamp: time.Now()}}), "[router]") {
		t.Fatal("rendered note should contain actor tag")
	}
}
