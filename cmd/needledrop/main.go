package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sydlexius/needledrop/internal/api"
	"github.com/sydlexius/needledrop/internal/api/middleware"
	"github.com/sydlexius/needledrop/internal/config"
	"github.com/sydlexius/needledrop/internal/database"
	"github.com/sydlexius/needledrop/internal/event"
	"github.com/sydlexius/needledrop/internal/logging"
	"github.com/sydlexius/needledrop/internal/maintenance"
	"github.com/sydlexius/needledrop/internal/match"
	"github.com/sydlexius/needledrop/internal/provider"
	"github.com/sydlexius/needledrop/internal/provider/deezer"
	"github.com/sydlexius/needledrop/internal/provider/discogs"
	"github.com/sydlexius/needledrop/internal/provider/youtube"
	"github.com/sydlexius/needledrop/internal/release"
	"github.com/sydlexius/needledrop/internal/review"
	"github.com/sydlexius/needledrop/internal/version"
	"github.com/sydlexius/needledrop/internal/watcher"
	"github.com/sydlexius/needledrop/internal/webhook"
)

const defaultConfigPath = "/data/config.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "needledrop",
		Short:         "Match vinyl release tracklists to streamable audio",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadDotEnv()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), resolveConfigPath(configPath))
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default $ND_CONFIG_PATH or "+defaultConfigPath+")")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), resolveConfigPath(configPath))
		},
	})

	var asJSON bool
	matchCmd := &cobra.Command{
		Use:   "match <release-id>",
		Short: "Fetch a Discogs release, match its tracks and store the results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseReleaseID(args[0])
			if err != nil {
				return err
			}
			return runMatch(cmd.Context(), resolveConfigPath(configPath), id, asJSON)
		},
	}
	matchCmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	root.AddCommand(matchCmd)

	root.AddCommand(&cobra.Command{
		Use:   "clear-matches <release-id>",
		Short: "Delete all stored matches and the run summary of a release",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseReleaseID(args[0])
			if err != nil {
				return err
			}
			return runClear(cmd.Context(), resolveConfigPath(configPath), id)
		},
	})

	return root
}

// loadDotEnv loads .env from the working directory when present. Variables
// already set in the environment win.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

func resolveConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if p := os.Getenv("ND_CONFIG_PATH"); p != "" {
		return p
	}
	return defaultConfigPath
}

func parseReleaseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid release id %q", s)
	}
	return id, nil
}

// app holds the wiring shared by every subcommand.
type app struct {
	db       *sql.DB
	releases *release.Service
}

// setup opens the database and builds the release service with the
// configured providers. events may be nil.
func setup(cfg *config.Config, events event.Publisher, logger *slog.Logger) (*app, error) {
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("database ready", slog.String("path", cfg.Database.Path))

	rateLimiters := provider.NewRateLimiterMap()

	var fetcher release.Fetcher
	if cfg.Providers.DiscogsToken != "" {
		dc := discogs.New(rateLimiters, cfg.Providers.DiscogsToken, logger)
		dc.SetUserAgent(cfg.Providers.UserAgent)
		fetcher = dc
	} else {
		logger.Warn("no Discogs token configured; releases must be supplied in the request body")
	}

	var searchers []provider.NamedSearcher
	if cfg.Providers.YouTubeAPIKey != "" {
		searchers = append(searchers, youtube.New(rateLimiters, cfg.Providers.YouTubeAPIKey, logger))
	}
	if cfg.Providers.DeezerEnabled {
		searchers = append(searchers, deezer.New(rateLimiters, logger))
	}
	var searcher match.Searcher
	if len(searchers) > 0 {
		searcher = provider.NewSearchChain(logger, searchers...)
	}

	engine := match.NewEngine(searcher, logger, match.Options{
		FallbackTimeout: cfg.Matching.FallbackTimeout,
		Concurrency:     cfg.Matching.Concurrency,
	})
	store := review.NewService(db)
	releases := release.NewService(fetcher, engine, store, events, logger, release.Options{
		AutoApproveTop: cfg.Matching.AutoApproveTop,
	})

	logger.Debug("providers wired",
		slog.Bool("discogs", fetcher != nil),
		slog.Int("searchers", len(searchers)),
	)

	return &app{db: db, releases: releases}, nil
}

func loadConfig(configPath string) (*config.Config, *logging.Manager, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logManager, logger := logging.NewManager(cfg.LoggingManagerConfig())
	slog.SetDefault(logger)
	return cfg, logManager, logger, nil
}

func runServe(parent context.Context, configPath string) error {
	cfg, logManager, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer logManager.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eventBus := event.NewBus(logger, 256)
	a, err := setup(cfg, eventBus, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.db.Close(); err != nil {
			logger.Error("closing database", "error", err)
		}
	}()

	webhookService := webhook.NewService(a.db)
	webhookDispatcher := webhook.NewDispatcher(webhookService, logger)
	webhookDispatcher.Register(eventBus)

	busDone := make(chan struct{})
	go func() {
		eventBus.Start()
		close(busDone)
	}()

	logger.Info("starting needledrop",
		slog.String("version", version.Version),
		slog.String("commit", version.Commit),
	)

	cw := watcher.NewConfigWatcher(configPath, func(context.Context) error {
		next, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if logManager.Reconfigure(next.LoggingManagerConfig()) {
			logger.Info("logging reconfigured", "config", next.LoggingManagerConfig().String())
		}
		return nil
	}, logger)
	go cw.Start(ctx)

	maintenanceSvc := maintenance.NewService(a.db, cfg.Database.Path, logger)
	if cfg.Database.OptimizeInterval > 0 {
		go maintenanceSvc.StartScheduler(ctx, cfg.Database.OptimizeInterval)
	}

	router := api.NewRouter(api.RouterDeps{
		ReleaseService:    a.releases,
		WebhookService:    webhookService,
		WebhookDispatcher: webhookDispatcher,
		MaintenanceSvc:    maintenanceSvc,
		MatchLimiter:      middleware.NewIPRateLimiter(ctx, 2*time.Second, 5),
		DB:                a.db,
		Logger:            logger,
		BasePath:          cfg.Server.BasePath,
		Version:           version.Version,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Matching a release with fallback searches can take a while.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.Int("port", cfg.Server.Port), slog.String("base_path", cfg.Server.BasePath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)

	eventBus.Stop()
	<-busDone
	webhookDispatcher.Wait()
	return err
}

func runMatch(parent context.Context, configPath string, id int, asJSON bool) error {
	cfg, logManager, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer logManager.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := setup(cfg, nil, logger)
	if err != nil {
		return err
	}
	defer a.db.Close() //nolint:errcheck

	out, err := a.releases.MatchRelease(ctx, id)
	if err != nil {
		if errors.Is(err, release.ErrNoFetcher) {
			return fmt.Errorf("set ND_DISCOGS_TOKEN or providers.discogs_token to fetch releases")
		}
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tPOS\tTITLE\tCONF\tBUCKET\tURL") //nolint:errcheck
	for _, tm := range out.Result.Matches {
		if tm.BestMatch == nil {
			fmt.Fprintf(tw, "%d\t%s\t%s\t-\t-\t-\n", tm.TrackIndex, tm.TrackPosition, tm.TrackTitle) //nolint:errcheck
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n", //nolint:errcheck
			tm.TrackIndex, tm.TrackPosition, tm.TrackTitle,
			tm.BestMatch.Confidence, review.BucketForScore(tm.BestMatch.Confidence), tm.BestMatch.URL)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nsaved %d, auto-approved %d, needs review %d, approvable %t\n",
		out.Saved, out.AutoApproved, out.NeedsReview, out.CanApprove)
	return nil
}

func runClear(parent context.Context, configPath string, id int) error {
	cfg, logManager, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer logManager.Close() //nolint:errcheck

	a, err := setup(cfg, nil, logger)
	if err != nil {
		return err
	}
	defer a.db.Close() //nolint:errcheck

	n, err := a.releases.Clear(parent, id)
	if err != nil {
		return err
	}
	fmt.Printf("removed %d matches for release %d\n", n, id)
	return nil
}
