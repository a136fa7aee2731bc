// Package main provides the playback daemon entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/segue/internal/api/connect"
	"github.com/osa030/segue/internal/app/filter"
	"github.com/osa030/segue/internal/app/library"
	"github.com/osa030/segue/internal/app/notification"
	"github.com/osa030/segue/internal/app/playback"
	"github.com/osa030/segue/internal/infra/audio"
	"github.com/osa030/segue/internal/infra/config"
	"github.com/osa030/segue/internal/infra/logger"
	"github.com/osa030/segue/internal/infra/metrics"
	"github.com/osa030/segue/internal/infra/spotify"
)

var (
	app        = kingpin.New("segued", "segue playback daemon")
	configPath = app.Flag("config", "Path to config file").Default("config/segue.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
	simulate   = app.Flag("simulate", "Simulate audio output with a wall clock").Bool()

	// list-tracks command
	listTracksCmd = app.Command("list-tracks", "List the tracks of every configured source and exit")

	// list-filters command
	listFiltersCmd = app.Command("list-filters", "List available import filters and exit")
)

func init() {
	app.Command("start", "Start the daemon (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	closer, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer closer.Close()

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if command == listTracksCmd.FullCommand() {
		if err := listTracks(cfg); err != nil {
			zlog.Error().Msgf("Failed to list tracks: %v", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Daemon error: %+v", err)
		os.Exit(1)
	}
}

// run executes the daemon. Using a separate function ensures deferred cleanup
// runs even when returning with an error.
func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
			SampleRate:  cfg.Sentry.SampleRate,
		}); err != nil {
			return errors.Wrap(err, "failed to initialize sentry")
		}
		defer sentry.Flush(2 * time.Second)
		defer sentry.Recover()
		zlog.Info().Msgf("Sentry enabled: environment=%s", cfg.Sentry.Environment)
	}

	collector := metrics.NewCollector()
	report := func(err error) {
		collector.RecordFailure(err)
		sentry.CaptureException(err)
	}

	sources, err := newSources(ctx, cfg)
	if err != nil {
		return err
	}

	chain, err := filter.NewChainFromConfig(cfg.Library.Filters)
	if err != nil {
		return errors.Wrap(err, "invalid filter config")
	}

	notifier := notification.NewManager(notification.DefaultBufferSize)
	controller := playback.NewController(
		playback.Config{
			TickInterval: cfg.Playback.TickInterval(),
			FadeWindow:   cfg.Playback.FadeWindow(),
			Mode:         cfg.Playback.PlaylistMode(),
			EndPolicy:    cfg.Playback.PlaylistEndPolicy(),
			Seed:         cfg.Playback.RandomSeed,
		},
		playback.WithSink(playback.MultiSink{notifier, collector}),
		playback.WithFailureHandler(report),
	)

	opener := newOpener()
	importer := library.NewImporter(sources, opener, controller, chain)
	result, err := importer.Import(ctx)
	if err != nil {
		zlog.Warn().Msgf("Some sources failed to import: %v", err)
		report(err)
	}
	zlog.Info().Msgf("Library imported: added=%d skipped=%d", result.Added, result.Skipped)

	var watcher *library.Watcher
	if cfg.Library.Watch {
		watcher, err = library.NewWatcher(sources, opener, controller, chain, report)
		if err != nil {
			return errors.Wrap(err, "failed to start library watcher")
		}
		go watcher.Run(ctx)
	}

	// Create RPC service
	playerService := apiconnect.NewPlayerService(controller, notifier, importer)

	mux := http.NewServeMux()
	playerPath, playerHandler := apiconnect.NewPlayerServiceHandler(
		playerService,
		connect.WithInterceptors(apiconnect.NewAdminAuthInterceptor(cfg.Admin.Token)),
	)
	mux.Handle(playerPath, playerHandler)
	mux.Handle(cfg.Server.MetricsPath, collector.Handler())

	// Create server with h2c (HTTP/2 cleartext) support
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	if cfg.Playback.Autoplay {
		if err := controller.Play(); err != nil {
			zlog.Error().Msgf("Autoplay failed: %v", err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		runErr = errors.Wrap(err, "server error")
	}

	// Graceful shutdown
	controller.Stop()
	cancel()
	if watcher != nil {
		if err := watcher.Close(); err != nil {
			zlog.Warn().Msgf("Failed to close watcher: %v", err)
		}
	}

	// Close notifications first to end active subscription streams
	notifier.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	controller.Close()
	zlog.Info().Msg("Daemon stopped")

	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")
	return runErr
}

// newSources builds the configured sources and checks that remote playlists exist.
func newSources(ctx context.Context, cfg *config.Config) ([]library.Source, error) {
	var spotifyClient library.SpotifyClient
	if cfg.HasSourceType(config.SourceTypeSpotify) {
		client, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			RefreshToken: cfg.Spotify.RefreshToken,
			Market:       cfg.Spotify.Market,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create Spotify client")
		}
		spotifyClient = client
	}

	sources, err := library.NewSourcesFromConfig(cfg, spotifyClient)
	if err != nil {
		return nil, err
	}

	for _, src := range sources {
		checker, ok := src.(interface{ Check(context.Context) error })
		if !ok {
			continue
		}
		zlog.Info().Msgf("Validating source: name=%s", src.Name())
		if err := checker.Check(ctx); err != nil {
			return nil, errors.Wrapf(err, "source %s is not reachable", src.Name())
		}
	}
	return sources, nil
}

func newOpener() *audio.Opener {
	if *simulate || !audio.SpeakerAvailable {
		zlog.Info().Msg("Audio output is simulated")
		return audio.NewOpener(audio.WithSimulatedOutput())
	}
	return audio.NewOpener()
}

// listTracks prints the tracks of every configured source.
func listTracks(cfg *config.Config) error {
	ctx := context.Background()
	sources, err := newSources(ctx, cfg)
	if err != nil {
		return err
	}

	for _, src := range sources {
		tracks, err := src.Tracks(ctx)
		if err != nil {
			return errors.Wrapf(err, "source %s", src.Name())
		}
		fmt.Printf("%s (%d tracks)\n", src.Name(), len(tracks))
		for i, t := range tracks {
			fmt.Printf("  %3d  %-36s  %s\n", i, t.ID, t.DisplayName())
		}
	}
	return nil
}

// printFilters prints available filters.
func printFilters() {
	registry := filter.GetRegistered()

	fmt.Println("Available Filters:")
	for _, name := range filter.Names() {
		f := registry[name]()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
