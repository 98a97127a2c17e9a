package routing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"calibration-backend/internal/jobstate"
	"calibration-backend/internal/notify"
	"calibration-backend/internal/queue"
	"calibration-backend/internal/records"
	"calibration-backend/internal/scrub"
	"calibration-backend/internal/shared/metrics"
	"calibration-backend/internal/shared/storage/object"
	"calibration-backend/internal/shared/telemetry"
)

const defaultRouteTimeout = 15 * time.Second

const dispatcherActor = "dispatcher"

// Dispatcher routes verified scrub results to the shop and discrepancies back
// to the technician, recording each decision on the RO record. Objects and
// Queue are optional; without a queue, failed record writes are only logged.
type Dispatcher struct {
	Records records.Repo
	Tracker *jobstate.Tracker
	Sender  notify.Sender
	Objects object.ObjectStore
	Queue   queue.Client
	Timeout time.Duration
}

// Route classifies the event's scrub result and delivers the matching
// notification. Delivery failures leave the idempotency flag unset so the
// same event can be re-routed later.
func (d *Dispatcher) Route(ctx context.Context, ev Event) Decision {
	started := time.Now()
	defer func() {
		metrics.ObserveRoutingDurationMs(float64(time.Since(started).Microseconds()) / 1000.0)
	}()

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultRouteTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outcome := scrub.Classify(ev.Scrub)
	if outcome.Verified {
		return d.routeToShop(ctx, ev)
	}
	return d.routeToTech(ctx, ev, outcome.Reason)
}

func (d *Dispatcher) routeToShop(ctx context.Context, ev Event) Decision {
	roNumber := ev.Scrub.RONumber
	if ev.Scrub.ShopName == "" {
		return d.manualRequired(ctx, roNumber, "shop name not found")
	}

	shop, err := d.Records.LookupShopByName(ctx, ev.Scrub.ShopName)
	if errors.Is(err, records.ErrShopNotFound) {
		return d.manualRequired(ctx, roNumber, fmt.Sprintf("shop %q not found in directory", ev.Scrub.ShopName))
	}
	if err != nil {
		return d.manualRequired(ctx, roNumber, fmt.Sprintf("shop lookup failed: %v", err))
	}

	// The report-derived list is the source of truth; fall back to parsing
	// the free-text report summary when it was not extracted upstream.
	list := ev.Scrub.ReportCalibrations
	if len(list) == 0 {
		list = scrub.ParseReportSummary(ev.Scrub.ReportSummary)
	}
	if err := d.Tracker.SetNeedsCalibration(ctx, roNumber, len(list) > 0); err != nil {
		telemetry.Warn("route.needs_calibration_save_failed", map[string]any{
			"ro_number": roNumber,
			"error":     err.Error(),
		})
	}

	msg := buildShopConfirmation(ev.Scrub, shop, list, d.loadAttachment(ctx, ev))

	sent, err := d.Tracker.SendOnce(ctx, roNumber, jobstate.NoticeInitial, func(ctx context.Context) error {
		_, sendErr := d.Sender.Send(ctx, msg)
		return sendErr
	})
	if err != nil && !sent {
		return Decision{Action: ActionSentToShop, Recipient: shop.Email, Success: false, Error: err.Error()}
	}
	if err != nil {
		// Delivered, but the sent flag could not be saved; a later retry may
		// duplicate the notice. Surface it loudly and keep going.
		telemetry.Error("route.notice_flag_save_failed", map[string]any{
			"ro_number": roNumber,
			"error":     err.Error(),
		})
	}
	if !sent && err == nil {
		metrics.IncNoticeSuppressed()
		telemetry.Info("route.duplicate_suppressed", map[string]any{
			"ro_number": roNumber,
			"recipient": shop.Email,
		})
		return Decision{Action: ActionSentToShop, Recipient: shop.Email, Success: true}
	}

	metrics.IncNoticeSent()
	metrics.IncRoutedToShop()
	d.writeOutcome(ctx, roNumber, records.StatusReady,
		fmt.Sprintf("Calibration confirmation sent to %s", shop.Email))
	return Decision{Action: ActionSentToShop, Recipient: shop.Email, Success: true}
}

func (d *Dispatcher) routeToTech(ctx context.Context, ev Event, reason string) Decision {
	roNumber := ev.Scrub.RONumber
	if ev.Origin.Address == "" {
		return d.manualRequired(ctx, roNumber, "original sender address not found")
	}

	msg := buildTechReview(ev.Scrub, reason, ev.Origin)

	// Review requests are deliberately not once-gated: a corrected re-scrub
	// that still disagrees must be able to notify the technician again.
	if _, err := d.Sender.Send(ctx, msg); err != nil {
		return Decision{Action: ActionSentToTech, Recipient: ev.Origin.Address, Success: false, Reason: reason, Error: err.Error()}
	}

	metrics.IncNoticeSent()
	metrics.IncRoutedToTech()
	d.writeOutcome(ctx, roNumber, records.StatusNeedsAttention,
		fmt.Sprintf("Review request sent to %s: %s", ev.Origin.Address, reason))
	return Decision{Action: ActionSentToTech, Recipient: ev.Origin.Address, Success: true, Reason: reason}
}

func (d *Dispatcher) manualRequired(ctx context.Context, roNumber, reason string) Decision {
	metrics.IncManualRequired()
	d.writeOutcome(ctx, roNumber, records.StatusNeedsAttention,
		"Manual handling required: "+reason)
	return Decision{Action: ActionManualRequired, Success: false, Error: reason}
}

// writeOutcome records the decision on the RO. A failed write never undoes an
// already-sent notification; it is queued for retry instead when a queue is
// configured.
func (d *Dispatcher) writeOutcome(ctx context.Context, roNumber, status, action string) {
	var upsertErr error
	if _, err := d.Records.Upsert(ctx, roNumber, records.Partial{Status: &status}); err != nil {
		upsertErr = err
	}
	noteErr := d.Records.AppendNote(ctx, roNumber, records.NoteEvent{
		Actor:  dispatcherActor,
		Action: action,
	})
	if upsertErr == nil && noteErr == nil {
		return
	}

	err := upsertErr
	if err == nil {
		err = noteErr
	}
	telemetry.Error("route.record_write_failed", map[string]any{
		"ro_number": roNumber,
		"status":    status,
		"error":     err.Error(),
	})
	d.enqueueDeferredWrite(ctx, roNumber, status, action)
}

// enqueueDeferredWrite queues a failed record write for replay by the worker.
func (d *Dispatcher) enqueueDeferredWrite(ctx context.Context, roNumber, status, action string) {
	if d.Queue == nil {
		return
	}
	qmsg := queue.Message{
		RONumber:   roNumber,
		Status:     status,
		NoteActor:  dispatcherActor,
		NoteAction: action,
		RequestID:  uuid.NewString(),
		EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
		Version:    1,
	}
	if err := d.Queue.Send(ctx, qmsg); err != nil {
		telemetry.Error("route.deferred_write_enqueue_failed", map[string]any{
			"ro_number": roNumber,
			"error":     err.Error(),
		})
	}
}

// loadAttachment fetches the report attachment from the object store. Missing
// or unreadable attachments degrade to a message without one.
func (d *Dispatcher) loadAttachment(ctx context.Context, ev Event) *notify.Attachment {
	if d.Objects == nil || ev.AttachmentKey == "" {
		return nil
	}
	rc, err := d.Objects.Open(ctx, ev.AttachmentKey)
	if err != nil {
		telemetry.Warn("route.attachment_open_failed", map[string]any{
			"ro_number":   ev.Scrub.RONumber,
			"storage_key": ev.AttachmentKey,
			"error":       err.Error(),
		})
		return nil
	}
	defer rc.Close()
	content, err := io.ReadAll(rc)
	if err != nil {
		telemetry.Warn("route.attachment_read_failed", map[string]any{
			"ro_number":   ev.Scrub.RONumber,
			"storage_key": ev.AttachmentKey,
			"error":       err.Error(),
		})
		return nil
	}
	name := ev.AttachmentName
	if name == "" {
		name = "calibration-report.pdf"
	}
	return &notify.Attachment{Filename: name, Content: content}
}
