package scrub

import "fmt"

// Classify compares the estimate-derived and report-derived calibration lists
// and decides whether the repair order is verified or needs human review.
// Pure and deterministic; it never fails, malformed inputs degrade to empty
// lists.
//
// Rules run in priority order, first match wins:
//  1. positive status hint      -> verified
//  2. explicit all-clear booleans plus matching lists -> verified
//  3. explicit review/attention booleans -> not verified
//  4. negative status hint      -> not verified
//  5. explicitly flagged missing items or a bare count mismatch -> not verified
//  6. no conclusive signal      -> verified (permissive default)
func Classify(res Result) Outcome {
	estimate := len(res.EstimateCalibrations)
	report := len(res.ReportCalibrations)

	if verified, ok := classifySignals(res, estimate, report); ok {
		if verified {
			return Outcome{Verified: true}
		}
		return Outcome{Verified: false, Reason: discrepancyReason(res, estimate, report)}
	}

	return Outcome{Verified: true}
}

// classifySignals returns (verdict, true) when some signal is conclusive, and
// (false, false) when no rule matched.
func classifySignals(res Result, estimate, report int) (bool, bool) {
	switch res.StatusHint {
	case HintAllSourcesAgree, HintVerified, HintOK, HintAligned, HintNoCalibrationNeeded:
		return true, true
	}

	reviewOff := res.NeedsReview != nil && !*res.NeedsReview
	attentionOn := res.NeedsAttention != nil && *res.NeedsAttention
	reviewOn := res.NeedsReview != nil && *res.NeedsReview

	if reviewOff && !attentionOn {
		if estimate == 0 && report == 0 {
			return true, true
		}
		if estimate == report && len(res.MissingItems) == 0 {
			return true, true
		}
	}

	if attentionOn || reviewOn {
		return false, true
	}

	switch res.StatusHint {
	case HintNeedsReview, HintDiscrepancy, HintMismatch, HintError:
		return false, true
	}

	if len(res.MissingItems) > 0 {
		return false, true
	}

	if estimate != report {
		return false, true
	}

	return false, false
}

func discrepancyReason(res Result, estimate, report int) string {
	switch {
	case estimate > 0 && report == 0:
		return fmt.Sprintf("Estimate suggests %d calibration(s) but report shows none.", estimate)
	case estimate == 0 && report > 0:
		return fmt.Sprintf("Report shows %d calibration(s) but no matching repair operations found.", report)
	case estimate != report:
		return fmt.Sprintf("Estimate: %d calibrations vs Report: %d calibrations.", estimate, report)
	}
	if res.StatusMessage != "" {
		return res.StatusMessage
	}
	return "Calibration counts do not match."
}
