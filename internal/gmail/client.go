// Package gmail provides read-only access to a Gmail mailbox: a chainable
// search query builder, a typed view over raw API messages, and a thin
// reader over the Gmail service.
package gmail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/hal9000y/gmail-triage/internal/auth"
)

const gmailUserID = "me"

// ErrInvalidWindow indicates a negative lookback window was supplied. It is
// returned before any network call.
var ErrInvalidWindow = errors.New("window must be greater than or equal to zero")

// defaultLabelIDs scopes listing to the inbox unless told otherwise.
var defaultLabelIDs = []string{"INBOX"}

// NewReader creates a Reader bound to the given OAuth config and token.
func NewReader(cfg *oauth2.Config, tok *auth.Token) *Reader {
	return &Reader{
		cfg: cfg,
		tok: tok,
		now: time.Now,
	}
}

// Reader performs the two read operations the agent needs: listing candidate
// message IDs and fetching full messages.
type Reader struct {
	cfg *oauth2.Config
	tok *auth.Token
	now func() time.Time
}

// ListMessageIDs returns the IDs of messages matching the query within the
// given label scope, up to maxResults. A nil labelIDs defaults to INBOX.
func (r *Reader) ListMessageIDs(ctx context.Context, query string, maxResults int64, labelIDs []string) ([]string, error) {
	svc, err := r.newSvc(ctx)
	if err != nil {
		return nil, fmt.Errorf("newSvc failed: %w", err)
	}

	if labelIDs == nil {
		labelIDs = defaultLabelIDs
	}

	result, err := svc.Users.Messages.List(gmailUserID).
		Q(query).
		LabelIds(labelIDs...).
		MaxResults(maxResults).
		Do()
	if err != nil {
		return nil, fmt.Errorf("messages.List failed: %w", err)
	}

	ids := make([]string, 0, len(result.Messages))
	for _, m := range result.Messages {
		if m != nil && m.Id != "" {
			ids = append(ids, m.Id)
		}
	}

	return ids, nil
}

// GetMessage fetches one full message by ID.
func (r *Reader) GetMessage(ctx context.Context, msgID string) (*Message, error) {
	svc, err := r.newSvc(ctx)
	if err != nil {
		return nil, fmt.Errorf("newSvc failed: %w", err)
	}

	msg, err := svc.Users.Messages.Get(gmailUserID, msgID).Format("full").Do()
	if err != nil {
		return nil, fmt.Errorf("messages.Get failed: %w", err)
	}

	return NewMessage(msg), nil
}

// GetMessages fetches up to maxResults full messages matching the query,
// then filters client-side to those received within the lookback window.
// A zero window disables the filter; a negative window fails before any
// fetch.
func (r *Reader) GetMessages(ctx context.Context, query string, maxResults int64, window time.Duration) ([]*Message, error) {
	if window < 0 {
		return nil, ErrInvalidWindow
	}

	ids, err := r.ListMessageIDs(ctx, query, maxResults, nil)
	if err != nil {
		return nil, fmt.Errorf("ListMessageIDs failed: %w", err)
	}

	messages := make([]*Message, 0, len(ids))
	for _, id := range ids {
		msg, err := r.GetMessage(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get message %s failed: %w", id, err)
		}
		messages = append(messages, msg)
	}

	if window == 0 {
		return messages, nil
	}

	return filterByWindow(messages, window, r.now()), nil
}

// filterByWindow keeps messages received at or after now-window. Messages
// without a parseable receipt time never pass.
func filterByWindow(messages []*Message, window time.Duration, now time.Time) []*Message {
	cutoff := now.Add(-window)
	filtered := make([]*Message, 0, len(messages))
	for _, msg := range messages {
		receivedAt, ok := msg.ReceivedAt()
		if ok && !receivedAt.Before(cutoff) {
			filtered = append(filtered, msg)
		}
	}
	return filtered
}

func (r *Reader) newSvc(ctx context.Context) (*gmailv1.Service, error) {
	t, err := r.tok.OAuthToken()
	if err != nil {
		return nil, fmt.Errorf("tok.OAuthToken failed: %w", err)
	}

	clt := r.cfg.Client(ctx, t)

	svc, err := gmailv1.NewService(ctx, option.WithHTTPClient(clt))
	if err != nil {
		return nil, fmt.Errorf("gmail.NewService failed: %w", err)
	}

	return svc, nil
}
