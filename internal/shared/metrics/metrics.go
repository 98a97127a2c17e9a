package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	routedToShopTotal      atomic.Uint64
	routedToTechTotal      atomic.Uint64
	manualRequiredTotal    atomic.Uint64
	noticesSentTotal       atomic.Uint64
	noticesSuppressedTotal atomic.Uint64
	autoCloseTotal         atomic.Uint64

	deferredWritesReceived atomic.Uint64
	deferredWritesApplied  atomic.Uint64
	deferredWritesFailed   atomic.Uint64
	deferredWritesDropped  atomic.Uint64

	routingDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
)

// IncRoutedToShop increments the shop-confirmation counter.
func IncRoutedToShop() {
	routedToShopTotal.Add(1)
}

// IncRoutedToTech increments the tech-review counter.
func IncRoutedToTech() {
	routedToTechTotal.Add(1)
}

// IncManualRequired increments the manual-handling counter.
func IncManualRequired() {
	manualRequiredTotal.Add(1)
}

// IncNoticeSent increments the delivered-notice counter.
func IncNoticeSent() {
	noticesSentTotal.Add(1)
}

// IncNoticeSuppressed increments the suppressed-duplicate counter.
func IncNoticeSuppressed() {
	noticesSuppressedTotal.Add(1)
}

// IncAutoClose increments the auto-close counter.
func IncAutoClose() {
	autoCloseTotal.Add(1)
}

// IncDeferredWriteReceived increments the worker's received counter.
func IncDeferredWriteReceived() {
	deferredWritesReceived.Add(1)
}

// IncDeferredWriteApplied increments the worker's applied counter.
func IncDeferredWriteApplied() {
	deferredWritesApplied.Add(1)
}

// IncDeferredWriteFailed increments the worker's failed counter.
func IncDeferredWriteFailed() {
	deferredWritesFailed.Add(1)
}

// IncDeferredWriteDropped increments the worker's unrecoverable-drop counter.
func IncDeferredWriteDropped() {
	deferredWritesDropped.Add(1)
}

// ObserveRoutingDurationMs records a routing duration in milliseconds.
func ObserveRoutingDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	routingDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "routed_to_shop_total", "Total scrub results routed to the shop", routedToShopTotal.Load())
	writeCounter(&buf, "routed_to_tech_total", "Total scrub results routed to the technician", routedToTechTotal.Load())
	writeCounter(&buf, "manual_required_total", "Total scrub results requiring manual handling", manualRequiredTotal.Load())
	writeCounter(&buf, "notices_sent_total", "Total notices delivered", noticesSentTotal.Load())
	writeCounter(&buf, "notices_suppressed_total", "Total duplicate notices suppressed", noticesSuppressedTotal.Load())
	writeCounter(&buf, "auto_close_total", "Total repair orders auto-closed", autoCloseTotal.Load())
	writeCounter(&buf, "deferred_writes_received_total", "Total deferred record writes received", deferredWritesReceived.Load())
	writeCounter(&buf, "deferred_writes_applied_total", "Total deferred record writes applied", deferredWritesApplied.Load())
	writeCounter(&buf, "deferred_writes_failed_total", "Total deferred record writes that failed", deferredWritesFailed.Load())
	writeCounter(&buf, "deferred_writes_dropped_total", "Total unrecoverable deferred writes dropped", deferredWritesDropped.Load())
	writeHistogram(&buf, "routing_duration_ms", "Routing duration in milliseconds", routingDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// NowMillis returns current time in milliseconds, useful for callers without time utilities.
func NowMillis() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Millisecond)
}
