package jobstate

import (
	"errors"
	"time"
)

// DocumentKind identifies one of the lifecycle documents tracked per RO.
type DocumentKind string

const (
	DocEstimate DocumentKind = "ESTIMATE"
	DocPreScan  DocumentKind = "PRE_SCAN"
	DocReport   DocumentKind = "REPORT"
	DocPostScan DocumentKind = "POST_SCAN"
	DocInvoice  DocumentKind = "INVOICE"
)

// NoticeKind names a once-only notification gated by the tracker.
type NoticeKind string

const (
	NoticeInitial NoticeKind = "initial"
	NoticeFinal   NoticeKind = "final"
)

// finalDocKinds are the documents that must all be present before the final
// notice fires and the RO can auto-close. PRE_SCAN is tracked but optional.
var finalDocKinds = []DocumentKind{DocEstimate, DocReport, DocPostScan, DocInvoice}

// KnownDocumentKind reports whether kind is one of the tracked kinds.
func KnownDocumentKind(kind DocumentKind) bool {
	switch kind {
	case DocEstimate, DocPreScan, DocReport, DocPostScan, DocInvoice:
		return true
	}
	return false
}

// State is the per-RO send-idempotency record. The two sent flags are
// monotonic: they flip false to true on a confirmed-successful send and are
// never reset. A corrected re-send requires manual intervention.
type State struct {
	RONumber          string
	InitialNoticeSent bool
	FinalNoticeSent   bool
	NeedsCalibration  *bool
	Documents         map[DocumentKind]bool
	UpdatedAt         time.Time
}

// DocumentStatus summarizes which documents have arrived for an RO.
type DocumentStatus struct {
	AllFinalDocsPresent bool           `json:"allFinalDocsPresent"`
	Present             []DocumentKind `json:"present"`
}

// ErrNotFound is returned by stores when no state exists for an RO.
var ErrNotFound = errors.New("job state not found")

func newState(roNumber string) State {
	return State{RONumber: roNumber, Documents: make(map[DocumentKind]bool)}
}

func (s State) allFinalDocsPresent() bool {
	for _, kind := range finalDocKinds {
		if !s.Documents[kind] {
			return false
		}
	}
	return true
}

func (s State) presentKinds() []DocumentKind {
	var out []DocumentKind
	for _, kind := range []DocumentKind{DocEstimate, DocPreScan, DocReport, DocPostScan, DocInvoice} {
		if s.Documents[kind] {
			out = append(out, kind)
		}
	}
	return out
}
