package agent

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailv1 "google.golang.org/api/gmail/v1"

	"github.com/hal9000y/gmail-triage/internal/gmail"
)

func b64url(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt(testMessage("m-1", "Interview invite", "Hello,\nwe would like to talk."))

	assert.Equal(t,
		"From: sender@example.com\n"+
			"Subject: Interview invite\n"+
			"Snippet: snippet of m-1\n"+
			"Body: Hello, we would like to talk.\n",
		prompt)
}

func TestBodyPreviewFlattensAndTruncates(t *testing.T) {
	long := strings.Repeat("word ", 200) // 1000 chars
	msg := testMessage("m-1", "Long", "line one\r\nline two\rline three\n"+long)

	preview := bodyPreview(msg)

	assert.NotContains(t, preview, "\n")
	assert.NotContains(t, preview, "\r")
	assert.True(t, strings.HasPrefix(preview, "line one line two line three"))
	assert.Len(t, []rune(preview), bodyPreviewLimit)
}

func TestBodyPreviewConvertsHTMLOnlyBody(t *testing.T) {
	msg := gmail.NewMessage(&gmailv1.Message{
		Id:      "m-html",
		Snippet: "fallback snippet",
		Payload: &gmailv1.MessagePart{
			MimeType: "text/html",
			Body: &gmailv1.MessagePartBody{
				Data: b64url(`<html><body><p>Paragraph one.</p><p>Paragraph two.</p></body></html>`),
			},
		},
	})

	assert.Equal(t, "Paragraph one. Paragraph two.", bodyPreview(msg))
}

func TestBodyPreviewFallsBackToSnippet(t *testing.T) {
	msg := gmail.NewMessage(&gmailv1.Message{
		Id:      "m-empty",
		Snippet: "only the snippet survives",
	})

	assert.Equal(t, "only the snippet survives", bodyPreview(msg))
}

func TestLoadSystemPrompt(t *testing.T) {
	dir := t.TempDir()

	blank := filepath.Join(dir, "blank.md")
	require.NoError(t, os.WriteFile(blank, []byte("  \n\t\n"), 0o600))

	custom := filepath.Join(dir, "custom.md")
	require.NoError(t, os.WriteFile(custom, []byte("  custom triage rules\n"), 0o600))

	t.Run("first readable non-empty file wins", func(t *testing.T) {
		paths := []string{filepath.Join(dir, "missing.md"), blank, custom}
		assert.Equal(t, "custom triage rules", loadSystemPrompt(paths))
	})

	t.Run("default without overrides", func(t *testing.T) {
		paths := []string{filepath.Join(dir, "missing.md"), blank}
		assert.Equal(t, defaultSystemPrompt, loadSystemPrompt(paths))
	})

	t.Run("directories are skipped", func(t *testing.T) {
		assert.Equal(t, defaultSystemPrompt, loadSystemPrompt([]string{dir}))
	})
}
