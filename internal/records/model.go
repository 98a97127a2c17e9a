package records

import (
	"fmt"
	"strings"
	"time"
)

// RO record statuses written by the routing layer.
const (
	StatusNew            = "New"
	StatusReady          = "Ready"
	StatusNeedsAttention = "Needs Attention"
	StatusCompleted      = "Completed"
)

// Record is the durable row for a repair order, keyed by RO number.
type Record struct {
	RONumber  string      `json:"roNumber"`
	ShopName  string      `json:"shopName,omitempty"`
	Vehicle   string      `json:"vehicle,omitempty"`
	VIN       string      `json:"vin,omitempty"`
	Status    string      `json:"status"`
	Notes     []NoteEvent `json:"notes,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// NoteEvent is one entry of the append-only audit trail on a record.
type NoteEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
}

// Partial carries the fields of an upsert; nil fields are left untouched
// (merge semantics). Notes are never part of an upsert, they only grow
// through AppendNote.
type Partial struct {
	ShopName *string
	Vehicle  *string
	VIN      *string
	Status   *string
}

// ShopContact is a shop directory entry.
type ShopContact struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	BillingCC string `json:"billingCc,omitempty"`
}

// ValidRONumber reports whether key is a well-formed RO/PO number: 4 to 8
// ASCII digits.
func ValidRONumber(key string) bool {
	if len(key) < 4 || len(key) > 8 {
		return false
	}
	for _, r := range key {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// RenderNotes produces the human-readable notes blob from the structured
// event log: one line per event, timestamp prefix first, newest last. This is
// the external note format downstream sheets and emails expect.
func RenderNotes(notes []NoteEvent) string {
	var b strings.Builder
	for i, n := range notes {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s [%s] %s", n.Timestamp.UTC().Format("2006-01-02 15:04"), n.Actor, n.Action)
	}
	return b.String()
}
