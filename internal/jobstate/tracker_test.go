package jobstate

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func newTestTracker() *Tracker {
	return NewTracker(NewMemoryStore())
}

func TestInitialNoticeIdempotence(t *testing.T) {
	tr := newTestTracker()
	ctx := context.Background()

	should, err := tr.ShouldSendInitialNotice(ctx, "12345")
	if err != nil {
		t.Fatalf("ShouldSendInitialNotice: %v", err)
	}
	if !should {
		t.Fatal("fresh RO should allow initial notice")
	}

	// Marking twice is not an error and the gate stays closed.
	if err := tr.MarkInitialNoticeSent(ctx, "12345"); err != nil {
		t.Fatalf("MarkInitialNoticeSent: %v", err)
	}
	if err := tr.MarkInitialNoticeSent(ctx, "12345"); err != nil {
		t.Fatalf("MarkInitialNoticeSent twice: %v", err)
	}
	should, err = tr.ShouldSendInitialNotice(ctx, "12345")
	if err != nil {
		t.Fatalf("ShouldSendInitialNotice: %v", err)
	}
	if should {
		t.Fatal("initial notice should be suppressed after mark")
	}
}

func TestFinalNoticeRequiresAllDocs(t *testing.T) {
	tr := newTestTracker()
	ctx := context.Background()

	for _, kind := range []DocumentKind{DocEstimate, DocReport, DocPostScan} {
		if err := tr.MarkDocumentPresent(ctx, "12345", kind); err != nil {
			t.Fatalf("MarkDocumentPresent(%s): %v", kind, err)
		}
	}
	should, err := tr.ShouldSendFinalNotice(ctx, "12345")
	if err != nil {
		t.Fatalf("ShouldSendFinalNotice: %v", err)
	}
	if should {
		t.Fatal("final notice must wait for the invoice")
	}

	if err := tr.MarkDocumentPresent(ctx, "12345", DocInvoice); err != nil {
		t.Fatalf("MarkDocumentPresent(invoice): %v", err)
	}
	should, err = tr.ShouldSendFinalNotice(ctx, "12345")
	if err != nil {
		t.Fatalf("ShouldSendFinalNotice: %v", err)
	}
	if !should {
		t.Fatal("all final docs present, final notice should fire")
	}

	status, err := tr.DocumentStatus(ctx, "12345")
	if err != nil {
		t.Fatalf("DocumentStatus: %v", err)
	}
	if !status.AllFinalDocsPresent {
		t.Fatal("AllFinalDocsPresent should be true")
	}
	if len(status.Present) != 4 {
		t.Fatalf("present = %v, want 4 kinds", status.Present)
	}
}

func TestPreScanIsOptionalForFinalNotice(t *testing.T) {
	tr := newTestTracker()
	ctx := context.Background()
	for _, kind := range []DocumentKind{DocEstimate, DocReport, DocPostScan, DocInvoice} {
		if err := tr.MarkDocumentPresent(ctx, "12345", kind); err != nil {
			t.Fatalf("MarkDocumentPresent(%s): %v", kind, err)
		}
	}
	should, err := tr.ShouldSendFinalNotice(ctx, "12345")
	if err != nil {
		t.Fatalf("ShouldSendFinalNotice: %v", err)
	}
	if !should {
		t.Fatal("pre-scan absence must not block the final notice")
	}
}

func TestMarkDocumentPresentRejectsUnknownKind(t *testing.T) {
	tr := newTestTracker()
	if err := tr.MarkDocumentPresent(context.Background(), "12345", DocumentKind("SELFIE")); err == nil {
		t.Fatal("expected error for unknown document kind")
	}
}

func TestSendOnceGatesAndRetries(t *testing.T) {
	tr := newTestTracker()
	ctx := context.Background()
	calls := 0

	// Failed send leaves the gate open.
	sent, err := tr.SendOnce(ctx, "12345", NoticeInitial, func(context.Context) error {
		calls++
		return errors.New("smtp 550")
	})
	if err == nil || sent {
		t.Fatalf("failed send: sent=%v err=%v", sent, err)
	}

	// Retry succeeds and closes the gate.
	sent, err = tr.SendOnce(ctx, "12345", NoticeInitial, func(context.Context) error {
		calls++
		return nil
	})
	if err != nil || !sent {
		t.Fatalf("retry: sent=%v err=%v", sent, err)
	}

	// Further sends are suppressed without running fn.
	sent, err = tr.SendOnce(ctx, "12345", NoticeInitial, func(context.Context) error {
		calls++
		return nil
	})
	if err != nil || sent {
		t.Fatalf("suppressed send: sent=%v err=%v", sent, err)
	}
	if calls != 2 {
		t.Fatalf("fn ran %d times, want 2", calls)
	}
}

func TestSendOnceFinalChecksDocsUnderLock(t *testing.T) {
	tr := newTestTracker()
	ctx := context.Background()

	sent, err := tr.SendOnce(ctx, "12345", NoticeFinal, func(context.Context) error {
		t.Fatal("fn must not run before documents are complete")
		return nil
	})
	if err != nil || sent {
		t.Fatalf("incomplete docs: sent=%v err=%v", sent, err)
	}
}

func TestSendOnceConcurrentSingleDelivery(t *testing.T) {
	tr := newTestTracker()
	ctx := context.Background()

	var mu sync.Mutex
	deliveries := 0
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = tr.SendOnce(ctx, "12345", NoticeInitial, func(context.Context) error {
				mu.Lock()
				deliveries++
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	if deliveries != 1 {
		t.Fatalf("deliveries = %d, want exactly 1", deliveries)
	}
}

func TestNeedsCalibrationRoundTrip(t *testing.T) {
	tr := newTestTracker()
	ctx := context.Background()

	got, err := tr.NeedsCalibration(ctx, "12345")
	if err != nil {
		t.Fatalf("NeedsCalibration: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil before any decision")
	}

	if err := tr.SetNeedsCalibration(ctx, "12345", true); err != nil {
		t.Fatalf("SetNeedsCalibration: %v", err)
	}
	got, err = tr.NeedsCalibration(ctx, "12345")
	if err != nil {
		t.Fatalf("NeedsCalibration: %v", err)
	}
	if got == nil || !*got {
		t.Fatalf("got %v, want true", got)
	}
}
