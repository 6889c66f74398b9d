// Package ollama implements a minimal chat client for the Ollama /api/chat
// endpoint with function-calling support.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/hal9000y/gmail-triage/internal/config"
)

const (
	// readTimeout bounds one chat call; local models can take minutes to
	// produce a full non-streaming response.
	readTimeout = 180 * time.Second

	// connectTimeout bounds establishing the TCP connection only.
	connectTimeout = 10 * time.Second

	keepAlive   = "30m"
	numCtx      = 4096
	temperature = 0.1
)

// Message is one turn of a chat conversation. ToolName is only set on
// role "tool" messages; ToolCalls only appears on assistant responses.
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolName  string     `json:"tool_name,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a function invocation proposed by the model.
type ToolCall struct {
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction carries the proposed function name and its raw arguments.
type ToolCallFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// DecodedArguments decodes the raw arguments into a map. It is total:
// arguments may be a JSON object, a string containing a JSON object, or
// garbage. Anything that fails to parse as an object yields an empty map,
// never an error.
func (f ToolCallFunction) DecodedArguments() map[string]any {
	if len(f.Arguments) == 0 {
		return map[string]any{}
	}

	var asObject map[string]any
	if err := json.Unmarshal(f.Arguments, &asObject); err == nil && asObject != nil {
		return asObject
	}

	var asString string
	if err := json.Unmarshal(f.Arguments, &asString); err == nil {
		var nested map[string]any
		if err := json.Unmarshal([]byte(asString), &nested); err == nil && nested != nil {
			return nested
		}
	}

	return map[string]any{}
}

// ChatResponse is the non-streaming response from /api/chat.
type ChatResponse struct {
	Model      string  `json:"model"`
	Message    Message `json:"message"`
	Done       bool    `json:"done"`
	DoneReason string  `json:"done_reason,omitempty"`
}

// Tool describes one function exposed to the model.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction is the schema of a callable function.
type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  ToolParameters `json:"parameters"`
}

// ToolParameters is a JSON-schema object describing function arguments.
type ToolParameters struct {
	Type       string                  `json:"type"`
	Required   []string                `json:"required,omitempty"`
	Properties map[string]ToolProperty `json:"properties"`
}

// ToolProperty is one argument in a function schema.
type ToolProperty struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// NotifyToolSchema exposes the single `notify` function used for email
// triage.
var NotifyToolSchema = []Tool{{
	Type: "function",
	Function: ToolFunction{
		Name:        "notify",
		Description: "Notify the user of a relevant email",
		Parameters: ToolParameters{
			Type:     "object",
			Required: []string{"summary"},
			Properties: map[string]ToolProperty{
				"summary": {Type: "string", Description: "A summary of the email"},
			},
		},
	},
}}

type chatRequest struct {
	Model     string      `json:"model"`
	Messages  []Message   `json:"messages"`
	Tools     []Tool      `json:"tools"`
	Stream    bool        `json:"stream"`
	KeepAlive string      `json:"keep_alive"`
	Think     bool        `json:"think"`
	Options   chatOptions `json:"options"`
}

type chatOptions struct {
	NumCtx      int     `json:"num_ctx"`
	Temperature float64 `json:"temperature"`
}

// NewClient creates a chat client. Empty chatURL or model is tolerated here
// and rejected by Chat, so construction never fails.
func NewClient(chatURL, model string) *Client {
	return &Client{
		chatURL: chatURL,
		model:   model,
		tools:   NotifyToolSchema,
		httpClt: &http.Client{
			Timeout: readTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		},
	}
}

// Client talks to one Ollama chat endpoint with a fixed model and tool set.
type Client struct {
	chatURL string
	model   string
	tools   []Tool
	httpClt *http.Client
}

// Chat sends the conversation and returns the model's structured response.
// On a timeout the identical request is retried exactly once; a second
// timeout propagates. Any other failure propagates immediately.
func (c *Client) Chat(ctx context.Context, messages []Message) (*ChatResponse, error) {
	if c.chatURL == "" {
		return nil, fmt.Errorf("OLLAMA_CHAT_URL is required: %w", config.ErrMissing)
	}
	if c.model == "" {
		return nil, fmt.Errorf("OLLAMA_MODEL is required: %w", config.ErrMissing)
	}

	body, err := json.Marshal(chatRequest{
		Model:     c.model,
		Messages:  messages,
		Tools:     c.tools,
		Stream:    false,
		KeepAlive: keepAlive,
		Think:     false,
		Options: chatOptions{
			NumCtx:      numCtx,
			Temperature: temperature,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("json.Marshal failed: %w", err)
	}

	resp, err := c.post(ctx, body)
	if isTimeout(err) {
		resp, err = c.post(ctx, body)
	}
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *Client) post(ctx context.Context, body []byte) (*ChatResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chatURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("http.NewRequest failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClt.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("chat request returned %s: %s", res.Status, bytes.TrimSpace(payload))
	}

	chatResp := &ChatResponse{}
	if err := json.NewDecoder(res.Body).Decode(chatResp); err != nil {
		return nil, fmt.Errorf("decoding chat response failed: %w", err)
	}

	return chatResp, nil
}

// isTimeout reports whether err is a network timeout, the one failure worth
// a single identical retry (model still generating, not structurally
// broken).
func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}
