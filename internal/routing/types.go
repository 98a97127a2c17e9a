package routing

import "calibration-backend/internal/scrub"

// Action names the outcome of a routing decision.
type Action string

const (
	ActionSentToShop     Action = "SENT_TO_SHOP"
	ActionSentToTech     Action = "SENT_TO_TECH"
	ActionManualRequired Action = "MANUAL_REQUIRED"
)

// OriginSender identifies the inbound sender that triggered a scrub event,
// usually the technician whose email was processed.
type OriginSender struct {
	Address   string `json:"address"`
	MessageID string `json:"messageId,omitempty"`
}

// Event is the triggering payload for one routing pass.
type Event struct {
	Scrub          scrub.Result
	Origin         OriginSender
	AttachmentKey  string
	AttachmentName string
}

// Decision is the structured result of Route. Success reports whether the
// notification was delivered; a failed delivery is retryable by re-invoking
// Route with the same event.
type Decision struct {
	Action    Action `json:"action"`
	Recipient string `json:"recipient,omitempty"`
	Success   bool   `json:"success"`
	Reason    string `json:"reason,omitempty"`
	Error     string `json:"error,omitempty"`
}

// CloseResult is the outcome of an auto-close attempt. Closed=false with a
// "Missing documents" reason is an expected state, not an error; the caller
// re-checks after the next document arrives.
type CloseResult struct {
	Closed           bool   `json:"closed"`
	NotificationSent bool   `json:"notificationSent"`
	Reason           string `json:"reason,omitempty"`
}
