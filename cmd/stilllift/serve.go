package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"stilllift/internal/api"
	"stilllift/pkg/assets"
	"stilllift/pkg/audio"
	"stilllift/pkg/config"
	"stilllift/pkg/content"
	"stilllift/pkg/db"
	"stilllift/pkg/db/maintenance"
	"stilllift/pkg/logging"
	"stilllift/pkg/narration"
	"stilllift/pkg/probe"
	"stilllift/pkg/selector"
	"stilllift/pkg/speech"
	"stilllift/pkg/store"
	"stilllift/pkg/tracker"
	"stilllift/pkg/tts"
	"stilllift/pkg/tts/azure"
	"stilllift/pkg/tts/edgetts"
	"stilllift/pkg/version"
)

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the narration service and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", defaultConfigPath, "path to the YAML config file")
	return cmd
}

func run(ctx context.Context, configPath string) error {
	// Secrets for the TTS engines may live in .env
	envErr := godotenv.Load()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()
	tts.SetLogPath(appCfg.Log.TTS.Path)

	slog.Info("Still Lift started", "version", version.Version)
	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		slog.Warn("Failed to read .env", "error", envErr)
	}

	dbConn, st, err := initDB(appCfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	maintenance.Run(ctx, dbConn, maintenance.Options{
		CacheTTL:    appCfg.DB.CacheTTL.Std(),
		HistoryKeep: appCfg.DB.HistoryKeep,
	})

	lib, err := loadLibrary(appCfg.Content.LibraryPath)
	if err != nil {
		return err
	}

	tr := tracker.New()
	cfgProv := config.NewProvider(appCfg, st)

	src, err := newAssetSource(&appCfg.Assets, tr)
	if err != nil {
		return err
	}
	cache, err := assets.NewCache(appCfg.Assets.CacheEntries, tr)
	if err != nil {
		return err
	}
	out := newOutput(appCfg.Audio.Output, cfgProv.Volume(ctx))
	player := audio.NewPlayer(src, cache, out)

	engine := speech.NewEngine(newTTSProvider(&appCfg.TTS, tr), out, st)
	coord := narration.NewCoordinator(
		narration.WithSpeechEngine(engine),
		narration.WithSuppressWindow(appCfg.Narration.SuppressWindow.Std()),
	)
	defer coord.StopAll()
	engine.SetErrorHandler(func(code speech.ErrorCode, err error) {
		coord.ReportSpeechError(code, err)
	})

	resolver := narration.NewResolver(narration.PlayerClips(player), coord, tr, appCfg.Narration.LoadTimeout.Std())
	narrator := narration.NewNarrator(coord, resolver,
		narration.WithSpeech(engine),
		narration.WithFallbackPolicy(cfgProv),
		narration.WithHistory(st),
		narration.WithEventLogger(logging.LogNarration),
	)

	// Startup Probes
	probes := []probe.Probe{
		probe.Database(dbConn),
		probe.Library(lib),
		probe.AssetSource(src),
		probe.Speech(engine, cfgProv.TTSFallback(ctx)),
	}
	if err := probe.AnalyzeResults(probe.Run(ctx, probes)); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	if appCfg.Assets.Preload {
		go func() {
			paths := preloadPaths(lib)
			n := player.Preload(ctx, paths...)
			slog.Info("Audio preload finished", "loaded", n, "requested", len(paths))
		}()
	}

	handlers := api.Handlers{
		Messages:  api.NewMessageHandler(lib, selector.New(lib), st),
		Narration: api.NewNarrationHandler(narrator, st),
		Audio:     api.NewAudioHandler(player, coord, cfgProv),
		Config:    api.NewConfigHandler(cfgProv, player),
		Stats:     api.NewStatsHandler(tr),
	}
	if appCfg.Assets.BaseURL == "" {
		handlers.AssetsDir = appCfg.Assets.Dir
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	srv := api.NewServer(appCfg.Server.Address, handlers, shutdownFunc)
	return runServerLifecycle(ctx, srv, quit, appCfg.Server.ShutdownTimeout.Std())
}

func initDB(appCfg *config.Config) (*db.DB, *store.SQLiteStore, error) {
	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbConn, store.NewSQLiteStore(dbConn), nil
}

// loadLibrary reads the configured library or falls back to the built-in
// one. Malformed records are reported and skipped.
func loadLibrary(path string) (*content.Library, error) {
	if path == "" {
		return content.Default(), nil
	}
	lib, res, err := content.LoadFile(path)
	if err != nil {
		return nil, err
	}
	for _, e := range res.Errors {
		slog.Warn("Content library problem", "path", path, "error", e)
	}
	slog.Info("Content library loaded", "path", path, "messages", lib.Count())
	return lib, nil
}

func newAssetSource(cfg *config.AssetsConfig, tr *tracker.Tracker) (assets.Source, error) {
	if cfg.BaseURL == "" {
		slog.Info("Serving narration audio from directory", "dir", cfg.Dir)
		return assets.NewDirSource(cfg.Dir, tr), nil
	}
	b := assets.NewBackoff(cfg.Backoff.BaseDelay.Std(), cfg.Backoff.MaxDelay.Std())
	src, err := assets.NewHTTPSource(cfg.BaseURL, cfg.Timeout.Std(), b, tr)
	if err != nil {
		return nil, fmt.Errorf("invalid assets.base_url: %w", err)
	}
	slog.Info("Fetching narration audio from origin", "url", cfg.BaseURL)
	return src, nil
}

func newOutput(kind string, volume float64) audio.Output {
	if kind == config.OutputNull {
		out := audio.NewNullOutput()
		out.SetVolume(volume)
		return out
	}
	return audio.NewSpeakerOutput(volume)
}

// newTTSProvider returns nil when no engine is configured or usable, which
// leaves the speech engine unavailable.
func newTTSProvider(cfg *config.TTSConfig, tr *tracker.Tracker) tts.Provider {
	switch cfg.Engine {
	case config.EngineEdge:
		ec := edgetts.ConfigFromEnv()
		if ec.Voice == "" {
			ec.Voice = cfg.EdgeTTS.VoiceID
		}
		if err := ec.Validate(); err != nil {
			slog.Warn("Edge TTS disabled", "error", err)
			return nil
		}
		return edgetts.NewProvider(ec, tr)
	case config.EngineAzure:
		if cfg.AzureSpeech.Key == "" || cfg.AzureSpeech.Region == "" {
			slog.Warn("Azure Speech disabled: key and region are required")
			return nil
		}
		return azure.NewProvider(cfg.AzureSpeech, tr)
	}
	return nil
}

// preloadPaths lists the homepage track and the canonical asset of every
// library message.
func preloadPaths(lib *content.Library) []string {
	paths := []string{assets.HomepagePath}
	for _, b := range lib.Buckets() {
		for _, m := range b.Messages {
			opts := narration.DefaultOptions()
			opts.Mood, opts.Context, opts.AudioIndex, opts.PreferExactIndex = b.Mood, b.Context, m.AudioIndex, true
			paths = append(paths, narration.Candidates("", m.Text, opts)[0])
		}
	}
	return paths
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit <-chan os.Signal, timeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		select {
		case <-quit:
			slog.Info("Shutting down server...")
		case <-gctx.Done():
			slog.Info("Context cancelled, shutting down...")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
