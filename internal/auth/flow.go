package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"time"
)

// authorizeTimeout bounds how long the local flow waits for the user to
// complete authorization in the browser.
const authorizeTimeout = 5 * time.Minute

// EnsureToken makes sure tok holds a usable token, running the local
// browser authorization flow when none is loaded. The flow listens on an
// ephemeral localhost port, opens the authorization URL, captures the
// redirect and exchanges the code.
func EnsureToken(ctx context.Context, tok *Token) error {
	if _, err := tok.OAuthToken(); err == nil {
		return nil
	} else if !errors.Is(err, ErrTokenNotSet) {
		return fmt.Errorf("tok.OAuthToken failed: %w", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("net.Listen failed: %w", err)
	}

	tok.cfg.RedirectURL = fmt.Sprintf("http://%s/oauth/callback", ln.Addr().String())

	authURL, err := tok.AuthCodeURL()
	if err != nil {
		return fmt.Errorf("tok.AuthCodeURL failed: %w", err)
	}

	done := make(chan error, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/callback", func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		state := r.URL.Query().Get("state")
		if code == "" {
			http.Error(w, "Missing authorization code", http.StatusBadRequest)
			return
		}

		if err := tok.AuthorizeCode(r.Context(), code, state); err != nil {
			log.Println("tok.AuthorizeCode failed", err)
			http.Error(w, "Unable to authorize provided code", http.StatusBadRequest)
			done <- fmt.Errorf("tok.AuthorizeCode failed: %w", err)
			return
		}

		_, _ = fmt.Fprintln(w, "Authorization complete, you may close this window.")
		done <- nil
	})

	srv := &http.Server{Handler: mux}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			done <- fmt.Errorf("srv.Serve failed: %w", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Println(fmt.Errorf("srv.Shutdown failed: %w", err))
		}
	}()

	log.Println("Authorize this application in the browser:", authURL)
	openBrowser(authURL)

	select {
	case err := <-done:
		return err
	case <-time.After(authorizeTimeout):
		return errors.New("timed out waiting for authorization")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func openBrowser(url string) {
	var err error
	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		err = exec.Command("open", url).Start()
	default:
		err = fmt.Errorf("unsupported platform")
	}

	if err != nil {
		log.Printf("Could not open browser automatically: %v; please copy and open the link manually\n", err)
	}
}
