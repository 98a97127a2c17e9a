package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const gmailSendURL = "https://gmail.googleapis.com/gmail/v1/users/me/messages/send"

// GmailSender delivers messages through the Gmail REST API on behalf of the
// configured sender address, authenticating with an OAuth refresh token.
type GmailSender struct {
	httpClient *http.Client
	from       string
	endpoint   string
}

// NewGmailSender builds a GmailSender. The refresh token must carry the
// gmail.send scope.
func NewGmailSender(ctx context.Context, clientID, clientSecret, refreshToken, from string) (*GmailSender, error) {
	if clientID == "" || clientSecret == "" || refreshToken == "" {
		return nil, fmt.Errorf("gmail sender requires client id, client secret and refresh token")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("gmail sender requires a from address")
	}
	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       []string{"https://www.googleapis.com/auth/gmail.send"},
		Endpoint:     google.Endpoint,
	}
	client := conf.Client(ctx, &oauth2.Token{RefreshToken: refreshToken})
	client.Timeout = 15 * time.Second
	return &GmailSender{httpClient: client, from: from, endpoint: gmailSendURL}, nil
}

// Send builds an RFC 822 message and posts it to the Gmail API, returning the
// provider message ID.
func (s *GmailSender) Send(ctx context.Context, msg Message) (string, error) {
	msg = msg.normalized()
	if strings.TrimSpace(msg.To) == "" {
		return "", fmt.Errorf("message has no recipient")
	}

	raw, err := buildMIME(s.from, msg)
	if err != nil {
		return "", fmt.Errorf("build mime: %w", err)
	}

	payload, err := json.Marshal(map[string]string{
		"raw": base64.URLEncoding.EncodeToString(raw),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gmail send: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("gmail send read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("gmail send status %d: %s", resp.StatusCode, truncate(string(body), 300))
	}

	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("gmail send parse response: %w", err)
	}
	return parsed.ID, nil
}

// buildMIME assembles a multipart/mixed message: an alternative part with the
// text and HTML bodies, followed by base64 attachments.
func buildMIME(from string, msg Message) ([]byte, error) {
	var buf bytes.Buffer
	mixed := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", sanitizeHeader(from))
	fmt.Fprintf(&buf, "To: %s\r\n", sanitizeHeader(msg.To))
	if len(msg.CC) > 0 {
		fmt.Fprintf(&buf, "Cc: %s\r\n", sanitizeHeader(strings.Join(msg.CC, ", ")))
	}
	fmt.Fprintf(&buf, "Subject: %s\r\n", sanitizeHeader(msg.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mixed.Boundary())

	altBuf := &bytes.Buffer{}
	alt := multipart.NewWriter(altBuf)
	if msg.TextBody != "" {
		part, err := alt.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=UTF-8"}})
		if err != nil {
			return nil, err
		}
		if _, err := io.WriteString(part, msg.TextBody); err != nil {
			return nil, err
		}
	}
	if msg.HTMLBody != "" {
		part, err := alt.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/html; charset=UTF-8"}})
		if err != nil {
			return nil, err
		}
		if _, err := io.WriteString(part, msg.HTMLBody); err != nil {
			return nil, err
		}
	}
	if err := alt.Close(); err != nil {
		return nil, err
	}

	bodyPart, err := mixed.CreatePart(textproto.MIMEHeader{
		"Content-Type": {fmt.Sprintf("multipart/alternative; boundary=%q", alt.Boundary())},
	})
	if err != nil {
		return nil, err
	}
	if _, err := bodyPart.Write(altBuf.Bytes()); err != nil {
		return nil, err
	}

	for _, a := range msg.Attachments {
		part, err := mixed.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {a.MimeType},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", sanitizeHeader(a.Filename))},
		})
		if err != nil {
			return nil, err
		}
		enc := base64.NewEncoder(base64.StdEncoding, part)
		if _, err := enc.Write(a.Content); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
	}
	if err := mixed.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sanitizeHeader(v string) string {
	v = strings.ReplaceAll(v, "\r", " ")
	v = strings.ReplaceAll(v, "\n", " ")
	return strings.TrimSpace(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var _ Sender = (*GmailSender)(nil)
