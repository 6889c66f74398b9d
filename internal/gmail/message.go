package gmail

import (
	"encoding/base64"
	"net/mail"
	"strings"
	"time"

	gmailv1 "google.golang.org/api/gmail/v1"
)

// Message is a read-only view over a raw Gmail API message. Accessors never
// panic on missing fields; absence maps to zero values. Decoded text parts
// are computed once on first access and cached for the message's lifetime
// (the raw structure is immutable once constructed).
type Message struct {
	raw       *gmailv1.Message
	textParts map[string]string
}

// NewMessage wraps a raw Gmail message. A nil message yields an empty but
// usable record.
func NewMessage(raw *gmailv1.Message) *Message {
	if raw == nil {
		raw = &gmailv1.Message{}
	}
	return &Message{raw: raw}
}

// Raw exposes the underlying API message.
func (m *Message) Raw() *gmailv1.Message {
	return m.raw
}

// ID returns the message identifier, empty if unset.
func (m *Message) ID() string {
	return m.raw.Id
}

// ThreadID returns the thread identifier, empty if unset.
func (m *Message) ThreadID() string {
	return m.raw.ThreadId
}

// Snippet returns the short preview supplied by the API.
func (m *Message) Snippet() string {
	return m.raw.Snippet
}

// LabelIDs returns a copy of the message's label identifiers.
func (m *Message) LabelIDs() []string {
	return append([]string(nil), m.raw.LabelIds...)
}

// Header returns the first header matching name, case-insensitively, or ""
// if absent.
func (m *Message) Header(name string) string {
	target := strings.ToLower(strings.TrimSpace(name))
	if target == "" || m.raw.Payload == nil {
		return ""
	}
	for _, h := range m.raw.Payload.Headers {
		if h != nil && strings.ToLower(h.Name) == target {
			return h.Value
		}
	}
	return ""
}

// Headers collects all payload headers into a name/value map. Later
// duplicates overwrite earlier ones; use Header for first-match semantics.
func (m *Message) Headers() map[string]string {
	collected := map[string]string{}
	if m.raw.Payload == nil {
		return collected
	}
	for _, h := range m.raw.Payload.Headers {
		if h != nil && h.Name != "" {
			collected[h.Name] = h.Value
		}
	}
	return collected
}

// Subject returns the Subject header.
func (m *Message) Subject() string {
	return m.Header("Subject")
}

// Sender returns the From header.
func (m *Message) Sender() string {
	return m.Header("From")
}

// To returns the To header.
func (m *Message) To() string {
	return m.Header("To")
}

// Cc returns the Cc header.
func (m *Message) Cc() string {
	return m.Header("Cc")
}

// Bcc returns the Bcc header.
func (m *Message) Bcc() string {
	return m.Header("Bcc")
}

// PlainBody returns the decoded text/plain part, empty if absent.
func (m *Message) PlainBody() string {
	return m.extractTextParts()["text/plain"]
}

// HTMLBody returns the decoded text/html part, empty if absent.
func (m *Message) HTMLBody() string {
	return m.extractTextParts()["text/html"]
}

// Body selects a body per policy: the HTML part when preferred and present,
// otherwise plain, otherwise HTML, otherwise the snippet when fallback is
// enabled.
func (m *Message) Body(preferHTML, fallbackToSnippet bool) string {
	plain := m.PlainBody()
	html := m.HTMLBody()
	if preferHTML && html != "" {
		return html
	}
	if plain != "" {
		return plain
	}
	if html != "" {
		return html
	}
	if fallbackToSnippet {
		return m.Snippet()
	}
	return ""
}

// ReceivedAt returns the receipt timestamp: the millisecond-epoch
// InternalDate when present, else the parsed Date header. The second return
// is false when neither yields a timestamp.
func (m *Message) ReceivedAt() (time.Time, bool) {
	if m.raw.InternalDate != 0 {
		return time.UnixMilli(m.raw.InternalDate).UTC(), true
	}
	if header := m.Header("Date"); header != "" {
		if parsed, err := mail.ParseDate(header); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// HasAttachments reports whether any MIME part carries an attachment
// reference.
func (m *Message) HasAttachments() bool {
	if m.raw.Payload == nil {
		return false
	}
	stack := []*gmailv1.MessagePart{m.raw.Payload}
	for len(stack) > 0 {
		part := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if part == nil {
			continue
		}
		if part.Body != nil && part.Body.AttachmentId != "" {
			return true
		}
		stack = append(stack, part.Parts...)
	}
	return false
}

// extractTextParts walks the MIME part tree once, keeping the first decoded
// occurrence of each text/* MIME type. The walk is iterative so deeply
// nested structures cannot exhaust the stack.
func (m *Message) extractTextParts() map[string]string {
	if m.textParts != nil {
		return m.textParts
	}

	found := map[string]string{}
	if m.raw.Payload != nil {
		stack := []*gmailv1.MessagePart{m.raw.Payload}
		for len(stack) > 0 {
			part := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if part == nil {
				continue
			}

			mimeType := strings.ToLower(part.MimeType)
			if strings.HasPrefix(mimeType, "text/") && part.Body != nil && part.Body.Data != "" {
				if _, seen := found[mimeType]; !seen {
					found[mimeType] = decodeBase64URL(part.Body.Data)
				}
			}
			// Children pushed in reverse so the walk visits them in
			// document order.
			for i := len(part.Parts) - 1; i >= 0; i-- {
				stack = append(stack, part.Parts[i])
			}
		}
	}

	m.textParts = found
	return found
}

// decodeBase64URL decodes Gmail's URL-safe base64, restoring stripped
// padding. Undecodable data falls through unchanged.
func decodeBase64URL(data string) string {
	if padding := len(data) % 4; padding != 0 {
		data += strings.Repeat("=", 4-padding)
	}
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
		if err != nil {
			return data
		}
	}
	return string(decoded)
}
