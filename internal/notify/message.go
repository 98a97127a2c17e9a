package notify

import "strings"

// Attachment is a file carried by a message. Attachments with empty content
// or no filename are skipped at send time, never delivered as zero-byte
// files.
type Attachment struct {
	Filename string
	Content  []byte
	MimeType string
}

// Message is a deliverable notification.
type Message struct {
	To          string
	CC          []string
	Subject     string
	HTMLBody    string
	TextBody    string
	Attachments []Attachment
}

// normalized returns a copy of the message with unsendable attachments and
// blank CC entries dropped.
func (m Message) normalized() Message {
	out := m
	out.Attachments = nil
	for _, a := range m.Attachments {
		if len(a.Content) == 0 || strings.TrimSpace(a.Filename) == "" {
			continue
		}
		if a.MimeType == "" {
			a.MimeType = "application/octet-stream"
		}
		out.Attachments = append(out.Attachments, a)
	}
	out.CC = nil
	for _, cc := range m.CC {
		if trimmed := strings.TrimSpace(cc); trimmed != "" {
			out.CC = append(out.CC, trimmed)
		}
	}
	return out
}
