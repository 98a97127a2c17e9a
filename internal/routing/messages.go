package routing

import (
	"fmt"
	"html"
	"strings"

	"calibration-backend/internal/notify"
	"calibration-backend/internal/records"
	"calibration-backend/internal/scrub"
)

// maxRenderedOps caps the repair operations rendered into a review request so
// a pathological estimate cannot produce an unbounded message.
const maxRenderedOps = 10

func buildShopConfirmation(res scrub.Result, shop records.ShopContact, list []scrub.ReportItem, attachment *notify.Attachment) notify.Message {
	subject := fmt.Sprintf("Calibration Complete - RO %s", res.RONumber)
	if res.Vehicle != "" {
		subject += " - " + res.Vehicle
	}

	var htmlBuf, textBuf strings.Builder
	fmt.Fprintf(&htmlBuf, "<p>Calibration work for RO <strong>%s</strong> has been verified.</p>", html.EscapeString(res.RONumber))
	fmt.Fprintf(&textBuf, "Calibration work for RO %s has been verified.\n", res.RONumber)
	if res.Vehicle != "" {
		fmt.Fprintf(&htmlBuf, "<p>Vehicle: %s", html.EscapeString(res.Vehicle))
		fmt.Fprintf(&textBuf, "Vehicle: %s", res.Vehicle)
		if res.VIN != "" {
			fmt.Fprintf(&htmlBuf, " (VIN %s)", html.EscapeString(res.VIN))
			fmt.Fprintf(&textBuf, " (VIN %s)", res.VIN)
		}
		htmlBuf.WriteString("</p>")
		textBuf.WriteString("\n")
	}

	if len(list) == 0 {
		htmlBuf.WriteString("<p>No calibration was required for this vehicle.</p>")
		textBuf.WriteString("No calibration was required for this vehicle.\n")
	} else {
		htmlBuf.WriteString("<p>Calibrations performed:</p><ul>")
		textBuf.WriteString("Calibrations performed:\n")
		for _, item := range list {
			label := item.Name
			if item.Type != "" {
				label += " (" + item.Type + ")"
			}
			fmt.Fprintf(&htmlBuf, "<li>%s</li>", html.EscapeString(label))
			fmt.Fprintf(&textBuf, "  - %s\n", label)
		}
		htmlBuf.WriteString("</ul>")
	}

	if attachment != nil {
		htmlBuf.WriteString("<p>The calibration report is attached.</p>")
		textBuf.WriteString("The calibration report is attached.\n")
	}

	msg := notify.Message{
		To:       shop.Email,
		Subject:  subject,
		HTMLBody: htmlBuf.String(),
		TextBody: textBuf.String(),
	}
	if shop.BillingCC != "" {
		msg.CC = []string{shop.BillingCC}
	}
	if attachment != nil {
		msg.Attachments = []notify.Attachment{*attachment}
	}
	return msg
}

func buildTechReview(res scrub.Result, reason string, origin OriginSender) notify.Message {
	subject := fmt.Sprintf("Action Needed - RO %s Scrub Review", res.RONumber)

	var htmlBuf, textBuf strings.Builder
	fmt.Fprintf(&htmlBuf, "<p>The scrub for RO <strong>%s</strong> needs review.</p>", html.EscapeString(res.RONumber))
	fmt.Fprintf(&textBuf, "The scrub for RO %s needs review.\n", res.RONumber)
	fmt.Fprintf(&htmlBuf, "<p>Reason: %s</p>", html.EscapeString(reason))
	fmt.Fprintf(&textBuf, "Reason: %s\n", reason)

	writeList := func(title string, items []string) {
		if len(items) == 0 {
			fmt.Fprintf(&htmlBuf, "<p>%s: none</p>", html.EscapeString(title))
			fmt.Fprintf(&textBuf, "%s: none\n", title)
			return
		}
		fmt.Fprintf(&htmlBuf, "<p>%s:</p><ul>", html.EscapeString(title))
		fmt.Fprintf(&textBuf, "%s:\n", title)
		for _, item := range items {
			fmt.Fprintf(&htmlBuf, "<li>%s</li>", html.EscapeString(item))
			fmt.Fprintf(&textBuf, "  - %s\n", item)
		}
		htmlBuf.WriteString("</ul>")
	}

	var estimate []string
	for _, item := range res.EstimateCalibrations {
		label := item.Name
		if item.Category != "" {
			label += " [" + item.Category + "]"
		}
		estimate = append(estimate, label)
	}
	var report []string
	for _, item := range res.ReportCalibrations {
		label := item.Name
		if item.Type != "" {
			label += " (" + item.Type + ")"
		}
		report = append(report, label)
	}

	writeList("Estimate calibrations", estimate)
	writeList("Report calibrations", report)

	ops := res.RepairOperations
	truncated := 0
	if len(ops) > maxRenderedOps {
		truncated = len(ops) - maxRenderedOps
		ops = ops[:maxRenderedOps]
	}
	writeList("Detected repair operations", ops)
	if truncated > 0 {
		fmt.Fprintf(&htmlBuf, "<p>(+%d more not shown)</p>", truncated)
		fmt.Fprintf(&textBuf, "(+%d more not shown)\n", truncated)
	}

	return notify.Message{
		To:       origin.Address,
		Subject:  subject,
		HTMLBody: htmlBuf.String(),
		TextBody: textBuf.String(),
	}
}

func buildCompletionNotice(rec records.Record, shop records.ShopContact, needsCalibration *bool) notify.Message {
	subject := fmt.Sprintf("RO %s Closed", rec.RONumber)

	var htmlBuf, textBuf strings.Builder
	fmt.Fprintf(&htmlBuf, "<p>All documents for RO <strong>%s</strong> have been received and the job is now closed.</p>", html.EscapeString(rec.RONumber))
	fmt.Fprintf(&textBuf, "All documents for RO %s have been received and the job is now closed.\n", rec.RONumber)
	if rec.Vehicle != "" {
		fmt.Fprintf(&htmlBuf, "<p>Vehicle: %s</p>", html.EscapeString(rec.Vehicle))
		fmt.Fprintf(&textBuf, "Vehicle: %s\n", rec.Vehicle)
	}

	switch {
	case needsCalibration != nil && *needsCalibration:
		htmlBuf.WriteString("<p>Calibration work was performed and verified for this vehicle.</p>")
		textBuf.WriteString("Calibration work was performed and verified for this vehicle.\n")
	case needsCalibration != nil:
		htmlBuf.WriteString("<p>No calibration was required for this vehicle.</p>")
		textBuf.WriteString("No calibration was required for this vehicle.\n")
	}

	msg := notify.Message{
		To:       shop.Email,
		Subject:  subject,
		HTMLBody: htmlBuf.String(),
		TextBody: textBuf.String(),
	}
	if shop.BillingCC != "" {
		msg.CC = []string{shop.BillingCC}
	}
	return msg
}
