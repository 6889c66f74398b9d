// Package discord builds notification embeds and dispatches them to a
// Discord webhook in size-limited chunks.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hal9000y/gmail-triage/internal/config"
)

// MaxEmbedsPerWebhook is Discord's hard limit on embeds per message.
const MaxEmbedsPerWebhook = 10

const (
	defaultContent = "I have messages you might be interested in.\n\n"
	embedColor     = 15258703
	inboxLinkBase  = "https://mail.google.com/mail/u/0/#inbox/"
	sendTimeout    = 10 * time.Second
)

// Author identifies the embed author block.
type Author struct {
	Name    string `json:"name,omitempty"`
	URL     string `json:"url,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

// Field is one name/value pair inside an embed.
type Field struct {
	Name   string `json:"name,omitempty"`
	Value  string `json:"value,omitempty"`
	Inline bool   `json:"inline,omitempty"`
}

// Footer is the embed footer block.
type Footer struct {
	Text    string `json:"text,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

// Image is an embed image reference.
type Image struct {
	URL string `json:"url"`
}

// Thumbnail is an embed thumbnail reference.
type Thumbnail struct {
	URL string `json:"url"`
}

// Embed is one Discord notification card. Every optional field is tagged
// omitempty so empty values never appear in the serialized body.
type Embed struct {
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	URL         string     `json:"url,omitempty"`
	Color       int        `json:"color,omitempty"`
	Fields      []Field    `json:"fields,omitempty"`
	Author      *Author    `json:"author,omitempty"`
	Footer      *Footer    `json:"footer,omitempty"`
	Image       *Image     `json:"image,omitempty"`
	Thumbnail   *Thumbnail `json:"thumbnail,omitempty"`
}

type webhookPayload struct {
	Content   string  `json:"content,omitempty"`
	Embeds    []Embed `json:"embeds,omitempty"`
	Username  string  `json:"username,omitempty"`
	AvatarURL string  `json:"avatar_url,omitempty"`
}

// DispatchResult records the outcome of one webhook call.
type DispatchResult struct {
	StatusCode int
}

// EmailEmbed builds the notification card for one email. It is pure: the
// link is derived from the message ID alone.
func EmailEmbed(messageID, subject, summary string) Embed {
	return Embed{
		Title:       subject,
		URL:         inboxLinkBase + messageID,
		Description: summary,
		Color:       embedColor,
	}
}

// Notifier binds a message's identity so the triage loop can turn summaries
// into cards without re-threading ID and subject.
func Notifier(messageID, subject string) func(summary string) Embed {
	return func(summary string) Embed {
		return EmailEmbed(messageID, subject, summary)
	}
}

var httpClt = &http.Client{Timeout: sendTimeout}

// Send posts one webhook message. It fails before any network call if the
// URL is empty or the embed count exceeds the Discord limit.
func Send(ctx context.Context, url string, embeds []Embed, content string) (DispatchResult, error) {
	if url == "" {
		return DispatchResult{}, fmt.Errorf("DISCORD_WEBHOOK_URL is required: %w", config.ErrMissing)
	}
	if len(embeds) > MaxEmbedsPerWebhook {
		return DispatchResult{}, fmt.Errorf("webhook messages support a maximum of %d embeds, got %d", MaxEmbedsPerWebhook, len(embeds))
	}

	body, err := json.Marshal(webhookPayload{
		Content: content,
		Embeds:  embeds,
	})
	if err != nil {
		return DispatchResult{}, fmt.Errorf("json.Marshal failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return DispatchResult{}, fmt.Errorf("http.NewRequest failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := httpClt.Do(req)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return DispatchResult{}, fmt.Errorf("webhook returned %s: %s", res.Status, bytes.TrimSpace(payload))
	}

	return DispatchResult{StatusCode: res.StatusCode}, nil
}

// SendChunked partitions embeds into consecutive groups of at most
// chunkSize and dispatches each group in order. Only the first chunk
// carries the content line. The first failure stops dispatching; chunks
// already sent stay sent.
func SendChunked(ctx context.Context, url string, embeds []Embed, chunkSize int) ([]DispatchResult, error) {
	if url == "" {
		return nil, fmt.Errorf("DISCORD_WEBHOOK_URL is required: %w", config.ErrMissing)
	}
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be greater than 0, got %d", chunkSize)
	}

	var results []DispatchResult
	for start := 0; start < len(embeds); start += chunkSize {
		end := min(start+chunkSize, len(embeds))

		content := ""
		if start == 0 {
			content = defaultContent
		}

		result, err := Send(ctx, url, embeds[start:end], content)
		if err != nil {
			return results, fmt.Errorf("sending chunk starting at %d failed: %w", start, err)
		}
		results = append(results, result)
	}

	return results, nil
}
