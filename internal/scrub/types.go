package scrub

// StatusHint is an upstream system's own verdict on a scrub comparison. It is
// treated as authoritative when present and unambiguous.
type StatusHint string

const (
	HintAllSourcesAgree     StatusHint = "ALL_SOURCES_AGREE"
	HintVerified            StatusHint = "VERIFIED"
	HintOK                  StatusHint = "OK"
	HintAligned             StatusHint = "ALIGNED"
	HintNoCalibrationNeeded StatusHint = "NO_CALIBRATION_NEEDED"
	HintNeedsReview         StatusHint = "NEEDS_REVIEW"
	HintDiscrepancy         StatusHint = "DISCREPANCY"
	HintMismatch            StatusHint = "MISMATCH"
	HintError               StatusHint = "ERROR"
)

// EstimateItem is a calibration requirement derived from estimate text. The
// estimate side may overcount: it addresses repairs that don't necessarily
// require a calibration.
type EstimateItem struct {
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// ReportItem is a calibration enumerated by the canonical calibration report,
// the source of truth when present.
type ReportItem struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"` // Static, Dynamic or Reset
}

// Result is the comparison input for a single repair order, assembled from an
// inbound event (processed email, uploaded document, status change).
//
// An empty ReportCalibrations list means either "no calibration needed" or
// "report missing"; the two are only distinguishable through StatusHint and
// the explicit boolean overrides.
type Result struct {
	RONumber             string         `json:"roNumber"`
	ShopName             string         `json:"shopName"`
	Vehicle              string         `json:"vehicle,omitempty"`
	VIN                  string         `json:"vin,omitempty"`
	EstimateCalibrations []EstimateItem `json:"estimateCalibrations"`
	ReportCalibrations   []ReportItem   `json:"reportCalibrations"`
	RepairOperations     []string       `json:"repairOperations,omitempty"`
	ReportSummary        string         `json:"reportSummary,omitempty"`
	MissingItems         []string       `json:"missingItems,omitempty"`
	StatusHint           StatusHint     `json:"statusHint,omitempty"`
	StatusMessage        string         `json:"statusMessage,omitempty"`
	NeedsReview          *bool          `json:"needsReview,omitempty"`
	NeedsAttention       *bool          `json:"needsAttention,omitempty"`
}

// Outcome is the verification verdict for a scrub result. Reason is only set
// when Verified is false and is written for a human reader.
type Outcome struct {
	Verified bool   `json:"verified"`
	Reason   string `json:"reason,omitempty"`
}
