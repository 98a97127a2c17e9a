package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"calibration-backend/internal/jobstate"
	"calibration-backend/internal/notify"
	"calibration-backend/internal/records"
)

func newTestRouter(t *testing.T) (*gin.Engine, *records.MemoryRepo, *notify.MemorySender) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := records.NewMemoryRepo()
	repo.AddShop(records.ShopContact{Name: "JMD", Email: "jmd@shop.example"})
	sender := notify.NewMemorySender()
	tracker := jobstate.NewTracker(jobstate.NewMemoryStore())
	d := &Dispatcher{Records: repo, Tracker: tracker, Sender: sender}

	router := gin.New()
	h := &Handler{Dispatcher: d, Tracker: tracker, Records: repo}
	h.Register(router.Group("/api/v1"))
	return router, repo, sender
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestScrubResultEndpointRoutesToShop(t *testing.T) {
	router, repo, sender := newTestRouter(t)

	resp := postJSON(t, router, "/api/v1/scrub-results", gin.H{
		"scrubResult": gin.H{
			"roNumber":             "12345",
			"shopName":             "JMD",
			"estimateCalibrations": []gin.H{{"name": "Front Camera"}},
			"reportCalibrations":   []gin.H{{"name": "Front Camera"}},
		},
		"originalSender": gin.H{"address": "tech@example.com"},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var decision Decision
	if err := json.Unmarshal(resp.Body.Bytes(), &decision); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decision.Action != ActionSentToShop || !decision.Success {
		t.Fatalf("unexpected decision: %+v", decision)
	}
	if len(sender.Sent()) != 1 {
		t.Fatalf("expected one send, got %d", len(sender.Sent()))
	}

	rec, err := repo.Get(context.Background(), "12345")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Status != records.StatusReady {
		t.Fatalf("expected status %q, got %q", records.StatusReady, rec.Status)
	}
}

func TestScrubResultEndpointRejectsBadRONumber(t *testing.T) {
	router, _, _ := newTestRouter(t)

	resp := postJSON(t, router, "/api/v1/scrub-results", gin.H{
		"scrubResult": gin.H{"roNumber": "12", "shopName": "JMD"},
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestMarkDocumentRejectsUnknownKind(t *testing.T) {
	router, _, _ := newTestRouter(t)

	resp := postJSON(t, router, "/api/v1/ros/12345/documents", gin.H{"kind": "SELFIE"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestDocumentFlowThroughClose(t *testing.T) {
	router, repo, sender := newTestRouter(t)

	shopName := "JMD"
	if _, err := repo.Upsert(context.Background(), "12345", records.Partial{ShopName: &shopName}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	for _, kind := range []string{"ESTIMATE", "REPORT", "POST_SCAN"} {
		resp := postJSON(t, router, "/api/v1/ros/12345/documents", gin.H{"kind": kind})
		if resp.Code != http.StatusOK {
			t.Fatalf("mark %s: expected 200, got %d", kind, resp.Code)
		}
	}

	// Close must refuse while the invoice is missing.
	resp := postJSON(t, router, "/api/v1/ros/12345/close", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var result CloseResult
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Closed || result.Reason != "Missing documents" {
		t.Fatalf("unexpected close result: %+v", result)
	}

	resp = postJSON(t, router, "/api/v1/ros/12345/documents", gin.H{"kind": "INVOICE"})
	if resp.Code != http.StatusOK {
		t.Fatalf("mark INVOICE: expected 200, got %d", resp.Code)
	}

	var status jobstate.DocumentStatus
	if err := json.Unmarshal(resp.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.AllFinalDocsPresent {
		t.Fatalf("all final docs should be present: %+v", status)
	}

	resp = postJSON(t, router, "/api/v1/ros/12345/close", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Closed || !result.NotificationSent {
		t.Fatalf("unexpected close result: %+v", result)
	}
	if len(sender.Sent()) != 1 {
		t.Fatalf("expected one closing notice, got %d", len(sender.Sent()))
	}

	rec, err := repo.Get(context.Background(), "12345")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Status != records.StatusCompleted {
		t.Fatalf("expected status %q, got %q", records.StatusCompleted, rec.Status)
	}
}

func TestGetRecordNotFound(t *testing.T) {
	router, _, _ := newTestRouter(t)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/ros/99999", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, r)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestGetRecordIncludesRenderedNotes(t *testing.T) {
	router, repo, _ := newTestRouter(t)

	if err := repo.AppendNote(context.Background(), "12345", records.NoteEvent{Actor: "dispatcher", Action: "Calibration confirmation sent to jmd@shop.example"}); err != nil {
		t.Fatalf("AppendNote: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/api/v1/ros/12345", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, r)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var payload struct {
		NotesText string `json:"notesText"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.NotesText == "" {
		t.Fatalf("expected rendered notes")
	}
}
