package cmd

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/sidetrack-cli/sidetrack/internal/auth"
	"github.com/sidetrack-cli/sidetrack/internal/config"
	"github.com/sidetrack-cli/sidetrack/pkg/spotify"
	"github.com/spf13/cobra"
)

// authTimeout is how long the flow waits for the browser redirect.
const authTimeout = 5 * time.Minute

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize Spotify remote playback control",
	Long: `Auth runs the delegated authorization flow against Spotify. It
prints a URL to open in your browser, waits for the redirect on a
local callback port, and persists the resulting token.

You need a (free) Spotify application client ID from
https://developer.spotify.com/dashboard with the redirect URI
` + spotify.DefaultRedirectURI + ` registered.`,
	Args: cobra.NoArgs,
	RunE: runAuth,
}

func init() {
	rootCmd.AddCommand(authCmd)
}

func runAuth(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	clientID, err := promptClientID(cfg.Spotify.ClientID)
	if err != nil {
		return err
	}

	client, err := spotify.NewClient(spotify.Config{ClientID: clientID})
	if err != nil {
		return err
	}

	verifier := spotify.GenerateVerifier()
	state := spotify.GenerateVerifier()
	authURL := client.Auth().AuthorizeURL(state, verifier)

	code, err := waitForCallback(authURL, state)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	token, err := client.Auth().Exchange(ctx, code, verifier)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	store := auth.NewStore(config.TokenPath())
	if err := store.Persist(token); err != nil {
		return fmt.Errorf("failed to persist token: %w", err)
	}

	cfg.Spotify.ClientID = clientID
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println("Authorized. Remote playback control is ready.")
	return nil
}

// promptClientID asks for the Spotify client ID, offering the
// configured one as the default.
func promptClientID(current string) (string, error) {
	reader := bufio.NewReader(os.Stdin)

	if current != "" {
		fmt.Printf("Spotify client ID [%s]: ", current)
	} else {
		fmt.Print("Spotify client ID: ")
	}

	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	line = strings.TrimSpace(line)
	if line != "" {
		return line, nil
	}
	if current != "" {
		return current, nil
	}
	return "", fmt.Errorf("a Spotify client ID is required")
}

// waitForCallback serves the local redirect endpoint and returns the
// authorization code Spotify delivers to it.
func waitForCallback(authURL, state string) (string, error) {
	redirect, err := url.Parse(spotify.DefaultRedirectURI)
	if err != nil {
		return "", fmt.Errorf("malformed redirect URI: %w", err)
	}

	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", redirect.Host, err)
	}
	defer listener.Close()

	type result struct {
		code string
		err  error
	}
	results := make(chan result, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(redirect.Path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			results <- result{err: fmt.Errorf("authorization state mismatch")}
			return
		}
		if errParam := q.Get("error"); errParam != "" {
			http.Error(w, "authorization denied", http.StatusForbidden)
			results <- result{err: fmt.Errorf("authorization denied: %s", errParam)}
			return
		}

		fmt.Fprintln(w, "Authorized. You can close this tab and return to the terminal.")
		results <- result{code: q.Get("code")}
	})

	server := &http.Server{Handler: mux}
	go func() { _ = server.Serve(listener) }()
	defer server.Close()

	fmt.Println("Open this URL in your browser to authorize:")
	fmt.Println()
	fmt.Println("  " + authURL)
	fmt.Println()
	fmt.Println("Waiting for authorization...")

	select {
	case res := <-results:
		if res.err != nil {
			return "", res.err
		}
		if res.code == "" {
			return "", fmt.Errorf("redirect carried no authorization code")
		}
		return res.code, nil
	case <-time.After(authTimeout):
		return "", fmt.Errorf("timed out waiting for authorization")
	}
}
