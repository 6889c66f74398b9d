// Gmail triage reviews recent Gmail messages with a local Ollama model and
// notifies a Discord webhook about the important ones.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailv1 "google.golang.org/api/gmail/v1"

	"github.com/hal9000y/gmail-triage/internal/agent"
	"github.com/hal9000y/gmail-triage/internal/auth"
	"github.com/hal9000y/gmail-triage/internal/config"
	"github.com/hal9000y/gmail-triage/internal/gmail"
	"github.com/hal9000y/gmail-triage/internal/ollama"
)

func main() {
	timeDeltaParam := flag.String("time-delta", "1h", "Only process emails received within this duration (e.g. 30m, 2h, 1d)")
	envFileParam := flag.String("env-file", "", "Path to env file")
	oauthTokenFile := flag.String("oauth-token-file", "./data/gmail-triage-token.json", "Path to cache google oauth token, empty to avoid storing")
	maxResults := flag.Int64("max-results", config.DefaultMaxResults, "Maximum number of messages to fetch per run")

	flag.Parse()

	log.SetOutput(os.Stdout)

	window := mustParseTimeDelta(*timeDeltaParam)
	oauthCfg := mustCreateOauthCfg(envFileParam)

	tok, err := auth.NewToken(oauthCfg, *oauthTokenFile)
	if err != nil {
		panic(fmt.Errorf("auth.NewToken failed: %w", err))
	}

	ctx := context.Background()
	if err := auth.EnsureToken(ctx, tok); err != nil {
		panic(fmt.Errorf("auth.EnsureToken failed: %w", err))
	}

	cfg := config.FromEnv()
	cfg.MaxResults = *maxResults

	reader := gmail.NewReader(oauthCfg, tok)
	chat := ollama.NewClient(cfg.OllamaChatURL, cfg.OllamaModel)

	runErr := agent.New(chat, reader, cfg).Run(ctx, window)

	log.Println("Persisting token if exists")
	if err := tok.Persist(); err != nil {
		log.Println(fmt.Errorf("tok.Persist failed: %w", err))
	}

	if runErr != nil {
		log.Println(fmt.Errorf("run failed: %w", runErr))
		os.Exit(1)
	}
}

var timeDeltaRE = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*([smhd])\s*$`)

var timeDeltaUnits = map[string]time.Duration{
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
}

func mustParseTimeDelta(raw string) time.Duration {
	match := timeDeltaRE.FindStringSubmatch(strings.ToLower(raw))
	if match == nil {
		panic(fmt.Errorf("invalid -time-delta value %q, use format like 30m, 2h, or 1d", raw))
	}

	amount, err := strconv.ParseFloat(match[1], 64)
	if err != nil || amount < 0 {
		panic(fmt.Errorf("-time-delta must be non-negative, got %q", raw))
	}

	return time.Duration(amount * float64(timeDeltaUnits[match[2]]))
}

func mustCreateOauthCfg(envFileParam *string) *oauth2.Config {
	if envFileParam != nil && *envFileParam != "" {
		if err := godotenv.Load(*envFileParam); err != nil {
			panic(fmt.Errorf("godotenv.Load failed: %w", err))
		}
	}

	oauthClientID := os.Getenv("OAUTH_GOOGLE_CLIENT_ID")
	oauthClientSec := os.Getenv("OAUTH_GOOGLE_CLIENT_SECRET")

	if oauthClientID == "" || oauthClientSec == "" {
		panic("Env variables OAUTH_GOOGLE_CLIENT_ID and OAUTH_GOOGLE_CLIENT_SECRET must be set")
	}

	return &oauth2.Config{
		ClientID:     oauthClientID,
		ClientSecret: oauthClientSec,
		Scopes:       []string{gmailv1.GmailReadonlyScope},
		Endpoint:     google.Endpoint,
	}
}
