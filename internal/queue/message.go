package queue

import "encoding/json"

// Message is a deferred RO record write: the payload of an audit write that
// failed after a notification already went out, queued for retry by the
// worker.
type Message struct {
	RONumber   string `json:"roNumber"`
	Status     string `json:"status,omitempty"`
	NoteActor  string `json:"noteActor,omitempty"`
	NoteAction string `json:"noteAction,omitempty"`
	RequestID  string `json:"requestId"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
