package routing

import (
	"context"

	"calibration-backend/internal/jobstate"
	"calibration-backend/internal/records"
	"calibration-backend/internal/shared/metrics"
	"calibration-backend/internal/shared/telemetry"
)

// AutoClose marks an RO "Completed" once every final document has arrived and
// sends the closing notice to the shop. The close stands even when the notice
// fails; the notice is best-effort and never rolls back the status write.
func (d *Dispatcher) AutoClose(ctx context.Context, roNumber string) CloseResult {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultRouteTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	docs, err := d.Tracker.DocumentStatus(ctx, roNumber)
	if err != nil {
		return CloseResult{Closed: false, Reason: err.Error()}
	}
	if !docs.AllFinalDocsPresent {
		return CloseResult{Closed: false, Reason: "Missing documents"}
	}

	status := records.StatusCompleted
	rec, err := d.Records.Upsert(ctx, roNumber, records.Partial{Status: &status})
	if err != nil {
		return CloseResult{Closed: false, Reason: err.Error()}
	}
	d.appendCloseNote(ctx, roNumber)
	metrics.IncAutoClose()

	sent := d.sendFinalNotice(ctx, rec)
	return CloseResult{Closed: true, NotificationSent: sent}
}

func (d *Dispatcher) appendCloseNote(ctx context.Context, roNumber string) {
	err := d.Records.AppendNote(ctx, roNumber, records.NoteEvent{
		Actor:  dispatcherActor,
		Action: "Auto-closed: all documents received",
	})
	if err == nil {
		return
	}
	telemetry.Error("autoclose.note_write_failed", map[string]any{
		"ro_number": roNumber,
		"error":     err.Error(),
	})
	d.enqueueDeferredWrite(ctx, roNumber, "", "Auto-closed: all documents received")
}

func (d *Dispatcher) sendFinalNotice(ctx context.Context, rec records.Record) bool {
	if rec.ShopName == "" {
		telemetry.Warn("autoclose.no_shop_name", map[string]any{"ro_number": rec.RONumber})
		return false
	}
	shop, err := d.Records.LookupShopByName(ctx, rec.ShopName)
	if err != nil {
		telemetry.Warn("autoclose.shop_lookup_failed", map[string]any{
			"ro_number": rec.RONumber,
			"shop_name": rec.ShopName,
			"error":     err.Error(),
		})
		return false
	}

	needsCal, err := d.Tracker.NeedsCalibration(ctx, rec.RONumber)
	if err != nil {
		needsCal = nil
	}
	msg := buildCompletionNotice(rec, shop, needsCal)

	sent, err := d.Tracker.SendOnce(ctx, rec.RONumber, jobstate.NoticeFinal, func(ctx context.Context) error {
		_, sendErr := d.Sender.Send(ctx, msg)
		return sendErr
	})
	if err != nil && !sent {
		telemetry.Error("autoclose.final_notice_failed", map[string]any{
			"ro_number": rec.RONumber,
			"error":     err.Error(),
		})
		return false
	}
	if err != nil {
		telemetry.Error("autoclose.notice_flag_save_failed", map[string]any{
			"ro_number": rec.RONumber,
			"error":     err.Error(),
		})
	}
	if sent {
		metrics.IncNoticeSent()
	} else {
		metrics.IncNoticeSuppressed()
	}
	return sent
}
