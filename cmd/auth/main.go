// Package main provides the Spotify refresh-token helper.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/osa030/segue/internal/infra/logger"
	"github.com/osa030/segue/internal/infra/spotify"
)

var (
	app          = kingpin.New("segue-auth", "Obtain a Spotify refresh token for segue playlist sources")
	clientID     = app.Flag("client-id", "Spotify Client ID").Envar("SPOTIFY_CLIENT_ID").Required().String()
	clientSecret = app.Flag("client-secret", "Spotify Client Secret").Envar("SPOTIFY_CLIENT_SECRET").Required().String()
	port         = app.Flag("port", "Callback server port").Default("8888").Int()
)

const donePage = `<!DOCTYPE html>
<html>
<head><title>segue - Authorization Complete</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 20vh">
  <h1>Authorization Complete</h1>
  <p>You can close this window and return to the terminal.</p>
</body>
</html>
`

func main() {
	_ = godotenv.Load()
	kingpin.MustParse(app.Parse(os.Args[1:]))

	if _, err := logger.Init(logger.Config{Output: "stderr", Level: "info"}); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	state, err := newState()
	if err != nil {
		zlog.Fatal().Msgf("Failed to generate state: %v", err)
	}

	auth := spotifyauth.New(
		spotifyauth.WithRedirectURL(fmt.Sprintf("http://127.0.0.1:%d/callback", *port)),
		spotifyauth.WithClientID(*clientID),
		spotifyauth.WithClientSecret(*clientSecret),
		spotifyauth.WithScopes(spotify.Scopes...),
	)

	tokenCh := make(chan *oauth2.Token, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", callbackHandler(auth, state, tokenCh))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Msgf("Failed to start callback server: %v", err)
		}
	}()

	fmt.Println("Please visit the following URL to authorize segue:")
	fmt.Println("")
	fmt.Println(auth.AuthURL(state))
	fmt.Println("")
	fmt.Println("Waiting for authorization...")

	token := <-tokenCh

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		zlog.Warn().Msgf("Failed to shutdown callback server: %v", err)
	}

	fmt.Println("")
	fmt.Println("=== Authorization Successful ===")
	fmt.Println("")
	fmt.Println("Add this to your segue config:")
	fmt.Println("")
	fmt.Println("spotify:")
	fmt.Printf("  refresh_token: \"%s\"\n", token.RefreshToken)
	fmt.Println("")
	fmt.Println("Or set as environment variable:")
	fmt.Printf("export SPOTIFY_REFRESH_TOKEN=\"%s\"\n", token.RefreshToken)
}

// callbackHandler exchanges the authorization code and hands the token to tokenCh once.
func callbackHandler(auth *spotifyauth.Authenticator, state string, tokenCh chan<- *oauth2.Token) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if st := r.FormValue("state"); st != state {
			http.Error(w, "State mismatch", http.StatusForbidden)
			zlog.Warn().Msgf("auth: state mismatch: got=%s", st)
			return
		}

		token, err := auth.Token(r.Context(), state, r)
		if err != nil {
			http.Error(w, "Failed to get token", http.StatusForbidden)
			zlog.Error().Msgf("auth: failed to get token: %v", err)
			return
		}

		fmt.Fprint(w, donePage)
		select {
		case tokenCh <- token:
		default:
		}
	}
}

func newState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "segue-" + hex.EncodeToString(b), nil
}
