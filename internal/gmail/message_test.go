package gmail_test

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailv1 "google.golang.org/api/gmail/v1"

	"github.com/hal9000y/gmail-triage/internal/gmail"
)

func b64url(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func TestMessageHeaders(t *testing.T) {
	msg := gmail.NewMessage(&gmailv1.Message{
		Id:       "m-001",
		ThreadId: "t-001",
		Snippet:  "a short preview",
		LabelIds: []string{"INBOX", "UNREAD"},
		Payload: &gmailv1.MessagePart{
			Headers: []*gmailv1.MessagePartHeader{
				{Name: "From", Value: "Jane <jane@example.com>"},
				{Name: "SUBJECT", Value: "First subject"},
				{Name: "Subject", Value: "Second subject"},
				{Name: "To", Value: "me@example.com"},
			},
		},
	})

	assert.Equal(t, "m-001", msg.ID())
	assert.Equal(t, "t-001", msg.ThreadID())
	assert.Equal(t, []string{"INBOX", "UNREAD"}, msg.LabelIDs())
	assert.Equal(t, "Jane <jane@example.com>", msg.Sender())
	// Case-insensitive lookup, first match wins.
	assert.Equal(t, "First subject", msg.Subject())
	assert.Equal(t, "me@example.com", msg.To())
	assert.Equal(t, "", msg.Cc())
	assert.Equal(t, "", msg.Bcc())
}

func TestMessageAccessorsTolerateMissingFields(t *testing.T) {
	msg := gmail.NewMessage(nil)

	assert.Equal(t, "", msg.ID())
	assert.Equal(t, "", msg.Subject())
	assert.Equal(t, "", msg.PlainBody())
	assert.Equal(t, "", msg.Body(true, false))
	assert.False(t, msg.HasAttachments())

	_, ok := msg.ReceivedAt()
	assert.False(t, ok)
}

func TestMessageNestedPlainBody(t *testing.T) {
	// payload.body.data absent at top level, text/plain nested inside a
	// multipart/alternative child.
	msg := gmail.NewMessage(&gmailv1.Message{
		Payload: &gmailv1.MessagePart{
			MimeType: "multipart/mixed",
			Parts: []*gmailv1.MessagePart{
				{
					MimeType: "multipart/alternative",
					Parts: []*gmailv1.MessagePart{
						{
							MimeType: "text/plain",
							Body:     &gmailv1.MessagePartBody{Data: b64url("nested plain body")},
						},
						{
							MimeType: "text/html",
							Body:     &gmailv1.MessagePartBody{Data: b64url("<p>nested html body</p>")},
						},
					},
				},
			},
		},
	})

	assert.Equal(t, "nested plain body", msg.PlainBody())
	assert.Equal(t, "<p>nested html body</p>", msg.HTMLBody())
}

func TestMessageFirstTextPartWins(t *testing.T) {
	msg := gmail.NewMessage(&gmailv1.Message{
		Payload: &gmailv1.MessagePart{
			MimeType: "multipart/mixed",
			Parts: []*gmailv1.MessagePart{
				{
					MimeType: "text/plain",
					Body:     &gmailv1.MessagePartBody{Data: b64url("first")},
				},
				{
					MimeType: "text/plain",
					Body:     &gmailv1.MessagePartBody{Data: b64url("second")},
				},
			},
		},
	})

	assert.Equal(t, "first", msg.PlainBody())
}

func TestMessageBodySelection(t *testing.T) {
	plain := &gmailv1.MessagePart{
		MimeType: "text/plain",
		Body:     &gmailv1.MessagePartBody{Data: b64url("plain body")},
	}
	html := &gmailv1.MessagePart{
		MimeType: "text/html",
		Body:     &gmailv1.MessagePartBody{Data: b64url("<b>html body</b>")},
	}

	cases := []struct {
		name              string
		parts             []*gmailv1.MessagePart
		preferHTML        bool
		fallbackToSnippet bool
		expected          string
	}{
		{"plain preferred by default", []*gmailv1.MessagePart{plain, html}, false, true, "plain body"},
		{"html when preferred", []*gmailv1.MessagePart{plain, html}, true, true, "<b>html body</b>"},
		{"html when plain absent", []*gmailv1.MessagePart{html}, false, true, "<b>html body</b>"},
		{"snippet fallback", nil, false, true, "the snippet"},
		{"no fallback", nil, false, false, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := gmail.NewMessage(&gmailv1.Message{
				Snippet: "the snippet",
				Payload: &gmailv1.MessagePart{
					MimeType: "multipart/alternative",
					Parts:    tc.parts,
				},
			})
			assert.Equal(t, tc.expected, msg.Body(tc.preferHTML, tc.fallbackToSnippet))
		})
	}
}

func TestMessageReceivedAt(t *testing.T) {
	t.Run("internal date wins", func(t *testing.T) {
		msg := gmail.NewMessage(&gmailv1.Message{
			InternalDate: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).UnixMilli(),
			Payload: &gmailv1.MessagePart{
				Headers: []*gmailv1.MessagePartHeader{
					{Name: "Date", Value: "Mon, 02 Jun 2025 08:00:00 +0000"},
				},
			},
		})

		got, ok := msg.ReceivedAt()
		require.True(t, ok)
		assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), got)
	})

	t.Run("date header fallback", func(t *testing.T) {
		msg := gmail.NewMessage(&gmailv1.Message{
			Payload: &gmailv1.MessagePart{
				Headers: []*gmailv1.MessagePartHeader{
					{Name: "Date", Value: "Mon, 02 Jun 2025 08:00:00 +0000"},
				},
			},
		})

		got, ok := msg.ReceivedAt()
		require.True(t, ok)
		assert.True(t, got.Equal(time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)))
	})

	t.Run("unparseable date header", func(t *testing.T) {
		msg := gmail.NewMessage(&gmailv1.Message{
			Payload: &gmailv1.MessagePart{
				Headers: []*gmailv1.MessagePartHeader{
					{Name: "Date", Value: "not a date"},
				},
			},
		})

		_, ok := msg.ReceivedAt()
		assert.False(t, ok)
	})
}

func TestMessageHasAttachments(t *testing.T) {
	withAttachment := gmail.NewMessage(&gmailv1.Message{
		Payload: &gmailv1.MessagePart{
			MimeType: "multipart/mixed",
			Parts: []*gmailv1.MessagePart{
				{
					MimeType: "multipart/alternative",
					Parts: []*gmailv1.MessagePart{
						{
							MimeType: "application/pdf",
							Body:     &gmailv1.MessagePartBody{AttachmentId: "att-1"},
						},
					},
				},
			},
		},
	})
	assert.True(t, withAttachment.HasAttachments())

	without := gmail.NewMessage(&gmailv1.Message{
		Payload: &gmailv1.MessagePart{
			MimeType: "text/plain",
			Body:     &gmailv1.MessagePartBody{Data: b64url("just text")},
		},
	})
	assert.False(t, without.HasAttachments())
}

func TestMessageDecodesPaddedAndUnpaddedBase64(t *testing.T) {
	// "hi!" encodes to aGkh with no padding needed; "hi" to aGk= padded.
	padded := gmail.NewMessage(&gmailv1.Message{
		Payload: &gmailv1.MessagePart{
			MimeType: "text/plain",
			Body:     &gmailv1.MessagePartBody{Data: "aGk="},
		},
	})
	assert.Equal(t, "hi", padded.PlainBody())

	unpadded := gmail.NewMessage(&gmailv1.Message{
		Payload: &gmailv1.MessagePart{
			MimeType: "text/plain",
			Body:     &gmailv1.MessagePartBody{Data: "aGk"},
		},
	})
	assert.Equal(t, "hi", unpadded.PlainBody())
}
