package agent

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/hal9000y/gmail-triage/internal/format"
	"github.com/hal9000y/gmail-triage/internal/gmail"
)

// bodyPreviewLimit caps how many characters of body text enter the prompt,
// protecting prompt-size and latency budgets.
const bodyPreviewLimit = 700

// defaultSystemPrompt describes the triage criteria when no prompt file
// overrides it.
const defaultSystemPrompt = "You triage email for career opportunities. " +
	"Call `notify` only for recruiter/hiring outreach, interview scheduling, application status updates, " +
	"recruiter feedback/next steps, or clearly relevant job opportunities " +
	"(software/backend/data/automation/LIMS/Python/Go/SQL). " +
	"Ignore newsletters, promos, generic digests, social alerts, receipts, and unrelated email. " +
	"If unsure but likely recruiting/hiring, notify. " +
	"Call `notify` at most once. " +
	"Summary must be one sentence with: type, company/sender, role (if any), action/deadline (if any)."

// systemPromptPaths lists prompt override locations, most specific first.
func systemPromptPaths() []string {
	paths := []string{}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".gmail-triage", "PROMPT.md"))
	}
	return append(paths, "PROMPT.md", filepath.Join("prompts", "PROMPT.md"))
}

// loadSystemPrompt returns the first non-empty readable prompt file, or the
// built-in default. Unreadable candidates are logged and skipped.
func loadSystemPrompt(paths []string) string {
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Failed to read system prompt from %s: %v", path, err)
			continue
		}
		if content := strings.TrimSpace(string(raw)); content != "" {
			return content
		}
	}
	return defaultSystemPrompt
}

// buildPrompt renders the per-email user message: sender, subject, snippet
// and a flattened, truncated body preview.
func buildPrompt(msg *gmail.Message) string {
	var b strings.Builder
	b.WriteString("From: " + msg.Sender() + "\n")
	b.WriteString("Subject: " + msg.Subject() + "\n")
	b.WriteString("Snippet: " + msg.Snippet() + "\n")
	b.WriteString("Body: " + bodyPreview(msg) + "\n")
	return b.String()
}

// bodyPreview prefers the plain text part, converts an HTML-only body to
// text, and falls back to the snippet. Newlines are flattened to spaces and
// the result is truncated to the preview limit.
func bodyPreview(msg *gmail.Message) string {
	body := msg.PlainBody()
	if body == "" {
		if html := msg.HTMLBody(); html != "" {
			body = format.HTMLToText(format.UnwrapTableLayout([]byte(html)))
		}
	}
	if strings.TrimSpace(body) == "" {
		body = msg.Snippet()
	}

	flattened := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(strings.TrimSpace(body))
	if runes := []rune(flattened); len(runes) > bodyPreviewLimit {
		return string(runes[:bodyPreviewLimit])
	}
	return flattened
}
