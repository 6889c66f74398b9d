// Package agent orchestrates email triage: it drives a tool-calling
// conversation with the model for each candidate message and dispatches the
// accepted notifications.
package agent

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/hal9000y/gmail-triage/internal/config"
	"github.com/hal9000y/gmail-triage/internal/discord"
	"github.com/hal9000y/gmail-triage/internal/gmail"
	"github.com/hal9000y/gmail-triage/internal/ollama"
)

type chatClient interface {
	Chat(ctx context.Context, messages []ollama.Message) (*ollama.ChatResponse, error)
}

type mailReader interface {
	GetMessages(ctx context.Context, query string, maxResults int64, window time.Duration) ([]*gmail.Message, error)
}

// toolHandler interprets one tool invocation proposed by the model. It may
// produce a notification embed and a tool-result message to append to the
// conversation; either may be nil.
type toolHandler func(fn ollama.ToolCallFunction, notify func(summary string) discord.Embed) (*discord.Embed, *ollama.Message)

// dispatchFunc matches discord.SendChunked; swappable in tests.
type dispatchFunc func(ctx context.Context, url string, embeds []discord.Embed, chunkSize int) ([]discord.DispatchResult, error)

// Agent triages recent emails and notifies about the important ones.
type Agent struct {
	chat         chatClient
	reader       mailReader
	cfg          config.Config
	systemPrompt string
	handlers     map[string]toolHandler
	dispatch     dispatchFunc
}

// New creates an Agent. The system prompt is resolved once here, honoring
// file overrides.
func New(chat chatClient, reader mailReader, cfg config.Config) *Agent {
	return &Agent{
		chat:         chat,
		reader:       reader,
		cfg:          cfg,
		systemPrompt: loadSystemPrompt(systemPromptPaths()),
		// New tools get a handler entry here, not a branch in CheckEmail.
		handlers: map[string]toolHandler{
			"notify": notifyHandler,
		},
		dispatch: discord.SendChunked,
	}
}

// CheckEmail runs one bounded tool-calling exchange for a single message and
// returns the accepted notification embeds, zero or more.
func (a *Agent) CheckEmail(ctx context.Context, msg *gmail.Message) ([]discord.Embed, error) {
	messageID := msg.ID()
	if messageID == "" {
		log.Println("Skipping email with no message id.")
		return nil, nil
	}

	conversation := []ollama.Message{
		{Role: "system", Content: a.systemPrompt},
		{Role: "user", Content: buildPrompt(msg)},
	}
	notify := discord.Notifier(messageID, msg.Subject())

	resp, err := a.chat.Chat(ctx, conversation)
	if err != nil {
		return nil, fmt.Errorf("first chat call failed: %w", err)
	}
	// The assistant message is appended verbatim, tool-call metadata
	// included, whether or not it proposes an invocation.
	conversation = append(conversation, resp.Message)

	var embeds []discord.Embed
	for _, tc := range resp.Message.ToolCalls {
		handler, known := a.handlers[tc.Function.Name]
		if !known {
			continue
		}
		embed, toolMsg := handler(tc.Function, notify)
		if embed != nil {
			embeds = append(embeds, *embed)
		}
		if toolMsg != nil {
			conversation = append(conversation, *toolMsg)
		}
	}

	final, err := a.chat.Chat(ctx, conversation)
	if err != nil {
		return nil, fmt.Errorf("second chat call failed: %w", err)
	}
	// Closing remark is operator visibility only; it never affects the
	// returned embeds.
	log.Println(final.Message.Content)

	return embeds, nil
}

// notifyHandler accepts a `notify` invocation when its summary is non-empty
// after trimming. A blank summary is silently skipped: no embed, no
// tool-result message.
func notifyHandler(fn ollama.ToolCallFunction, notify func(summary string) discord.Embed) (*discord.Embed, *ollama.Message) {
	summary := strings.TrimSpace(stringArg(fn.DecodedArguments(), "summary"))
	if summary == "" {
		return nil, nil
	}

	embed := notify(summary)
	return &embed, &ollama.Message{
		Role:     "tool",
		ToolName: fn.Name,
		Content:  "Notification queued.",
	}
}

func stringArg(args map[string]any, key string) string {
	value, ok := args[key]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}

// Run fetches candidate messages within the lookback window, triages them
// sequentially and dispatches the aggregated notification batch. Per-email
// failures are logged and skipped; a dispatch failure is logged, not
// returned. Errors are returned only for failures before per-message work
// begins.
func (a *Agent) Run(ctx context.Context, window time.Duration) error {
	query, err := gmail.NewQuery().NewerThan("1d").In("inbox").Build()
	if err != nil {
		return fmt.Errorf("building query failed: %w", err)
	}

	messages, err := a.reader.GetMessages(ctx, query, a.cfg.MaxResults, window)
	if err != nil {
		return fmt.Errorf("fetching messages failed: %w", err)
	}

	var embeds []discord.Embed
	for _, msg := range messages {
		found, err := a.CheckEmail(ctx, msg)
		if err != nil {
			log.Printf("Failed to process message %s: %v", msg.ID(), err)
			continue
		}
		embeds = append(embeds, found...)
	}

	if len(embeds) == 0 {
		log.Println("No notifications were queued.")
		return nil
	}

	results, err := a.dispatch(ctx, a.cfg.WebhookURL, embeds, discord.MaxEmbedsPerWebhook)
	if err != nil {
		log.Printf("Failed to send queued notifications: %v", err)
		return nil
	}

	statuses := make([]string, 0, len(results))
	for _, r := range results {
		statuses = append(statuses, strconv.Itoa(r.StatusCode))
	}
	log.Printf("Queued notifications sent (%d embeds across %d webhook message(s); status: %s).",
		len(embeds), len(results), strings.Join(statuses, ", "))

	return nil
}
