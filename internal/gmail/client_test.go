package gmail

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailv1 "google.golang.org/api/gmail/v1"
)

func messageReceivedAt(id string, at time.Time) *Message {
	return NewMessage(&gmailv1.Message{
		Id:           id,
		InternalDate: at.UnixMilli(),
	})
}

func TestFilterByWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	fresh := messageReceivedAt("fresh", now.Add(-30*time.Minute))
	boundary := messageReceivedAt("boundary", now.Add(-time.Hour))
	stale := messageReceivedAt("stale", now.Add(-2*time.Hour))
	undated := NewMessage(&gmailv1.Message{Id: "undated"})

	filtered := filterByWindow([]*Message{fresh, boundary, stale, undated}, time.Hour, now)

	ids := make([]string, 0, len(filtered))
	for _, msg := range filtered {
		ids = append(ids, msg.ID())
	}

	// The boundary message is exactly now-window old and still passes;
	// messages without a receipt time never do.
	assert.Equal(t, []string{"fresh", "boundary"}, ids)
}

func TestGetMessagesRejectsNegativeWindow(t *testing.T) {
	r := NewReader(nil, nil)

	_, err := r.GetMessages(context.Background(), "in:inbox", 50, -time.Minute)
	require.ErrorIs(t, err, ErrInvalidWindow)
}
