package routing

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"calibration-backend/internal/jobstate"
	"calibration-backend/internal/records"
	"calibration-backend/internal/scrub"
	"calibration-backend/internal/shared/server/respond"
	"calibration-backend/internal/shared/storage/object"
)

// Handler exposes the routing engine over HTTP.
type Handler struct {
	Dispatcher *Dispatcher
	Tracker    *jobstate.Tracker
	Records    records.Repo
	Objects    object.ObjectStore
}

// Register mounts the routing endpoints on the given router group.
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/scrub-results", h.routeScrubResult)
	r.GET("/ros/:roNumber", h.getRecord)
	r.POST("/ros/:roNumber/close", h.closeRO)
	r.GET("/ros/:roNumber/documents", h.getDocumentStatus)
	r.POST("/ros/:roNumber/documents", h.markDocument)
	r.POST("/ros/:roNumber/attachments", h.uploadAttachment)
}

type routeRequest struct {
	ScrubResult    scrub.Result `json:"scrubResult"`
	OriginalSender OriginSender `json:"originalSender"`
	AttachmentKey  string       `json:"attachmentKey,omitempty"`
	AttachmentName string       `json:"attachmentName,omitempty"`
}

func (h *Handler) routeScrubResult(c *gin.Context) {
	var req routeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON", err.Error())
		return
	}
	if !records.ValidRONumber(req.ScrubResult.RONumber) {
		respond.Error(c, http.StatusBadRequest, "invalid_ro_number", "RO number must be 4-8 digits", nil)
		return
	}

	c.Set("roNumber", req.ScrubResult.RONumber)

	decision := h.Dispatcher.Route(c.Request.Context(), Event{
		Scrub:          req.ScrubResult,
		Origin:         req.OriginalSender,
		AttachmentKey:  req.AttachmentKey,
		AttachmentName: req.AttachmentName,
	})
	c.Set("routeAction", string(decision.Action))

	respond.OK(c, decision)
}

func (h *Handler) getRecord(c *gin.Context) {
	roNumber := c.Param("roNumber")
	c.Set("roNumber", roNumber)

	rec, err := h.Records.Get(c.Request.Context(), roNumber)
	if errors.Is(err, records.ErrNotFound) {
		respond.Error(c, http.StatusNotFound, "not_found", "No record for this RO number", nil)
		return
	}
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal", "Failed to load record", nil)
		return
	}
	respond.OK(c, gin.H{
		"record":    rec,
		"notesText": records.RenderNotes(rec.Notes),
	})
}

func (h *Handler) closeRO(c *gin.Context) {
	roNumber := c.Param("roNumber")
	if !records.ValidRONumber(roNumber) {
		respond.Error(c, http.StatusBadRequest, "invalid_ro_number", "RO number must be 4-8 digits", nil)
		return
	}
	c.Set("roNumber", roNumber)

	result := h.Dispatcher.AutoClose(c.Request.Context(), roNumber)
	if result.Closed {
		c.Set("statusTransition", "->Completed")
	}
	respond.OK(c, result)
}

type markDocumentRequest struct {
	Kind string `json:"kind"`
}

func (h *Handler) markDocument(c *gin.Context) {
	roNumber := c.Param("roNumber")
	if !records.ValidRONumber(roNumber) {
		respond.Error(c, http.StatusBadRequest, "invalid_ro_number", "RO number must be 4-8 digits", nil)
		return
	}
	c.Set("roNumber", roNumber)

	var req markDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON", err.Error())
		return
	}
	kind := jobstate.DocumentKind(req.Kind)
	if !jobstate.KnownDocumentKind(kind) {
		respond.Error(c, http.StatusBadRequest, "invalid_document_kind", "Unknown document kind", req.Kind)
		return
	}

	if err := h.Tracker.MarkDocumentPresent(c.Request.Context(), roNumber, kind); err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal", "Failed to record document", nil)
		return
	}

	status, err := h.Tracker.DocumentStatus(c.Request.Context(), roNumber)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal", "Failed to load document status", nil)
		return
	}
	respond.OK(c, status)
}

func (h *Handler) getDocumentStatus(c *gin.Context) {
	roNumber := c.Param("roNumber")
	c.Set("roNumber", roNumber)

	status, err := h.Tracker.DocumentStatus(c.Request.Context(), roNumber)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal", "Failed to load document status", nil)
		return
	}
	respond.OK(c, status)
}

func (h *Handler) uploadAttachment(c *gin.Context) {
	roNumber := c.Param("roNumber")
	if !records.ValidRONumber(roNumber) {
		respond.Error(c, http.StatusBadRequest, "invalid_ro_number", "RO number must be 4-8 digits", nil)
		return
	}
	c.Set("roNumber", roNumber)

	if h.Objects == nil {
		respond.Error(c, http.StatusServiceUnavailable, "no_object_store", "Attachment storage is not configured", nil)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_upload", "Multipart field 'file' is required", nil)
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_upload", "Could not read uploaded file", nil)
		return
	}
	defer f.Close()

	key, size, mimeType, err := h.Objects.Save(c.Request.Context(), roNumber, fileHeader.Filename, f)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal", "Failed to store attachment", nil)
		return
	}
	respond.JSON(c, http.StatusCreated, gin.H{
		"storageKey": key,
		"sizeBytes":  size,
		"mimeType":   mimeType,
	})
}
