package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lysyi3m/article-comb/app/api"
	"github.com/lysyi3m/article-comb/app/browser"
	"github.com/lysyi3m/article-comb/app/cfg"
	"github.com/lysyi3m/article-comb/app/database"
	"github.com/lysyi3m/article-comb/app/extract"
	"github.com/lysyi3m/article-comb/app/harvest"
	"github.com/lysyi3m/article-comb/app/listing"
	"github.com/lysyi3m/article-comb/app/optimizer"
	"github.com/lysyi3m/article-comb/app/search"
	"github.com/lysyi3m/article-comb/app/source"
	"github.com/lysyi3m/article-comb/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	setupLogger(appCfg.Debug)

	if err := run(appCfg); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

func run(appCfg *cfg.Cfg) error {
	slog.Info("Starting Article Comb server", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	configCache := source.NewConfigCache(appCfg.SourcesDir)
	if err := configCache.Run(); err != nil {
		return fmt.Errorf("failed to load source configurations: %w", err)
	}
	slog.Info("Source configurations loaded", "dir", appCfg.SourcesDir, "count", configCache.GetConfigCount())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, err := newServices(ctx, appCfg, configCache, db)
	if err != nil {
		return err
	}

	tracker := tasks.NewTracker(tasks.DefaultTrackerLimit)
	scheduler := tasks.NewScheduler(services, tracker, tasks.SchedulerOptions{
		Interval:    time.Duration(appCfg.SchedulerInterval) * time.Second,
		TaskTimeout: appCfg.TaskTimeoutDuration(),
		WorkerCount: appCfg.WorkerCount,
	})

	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount, "interval", appCfg.SchedulerInterval)
	scheduler.Start()
	defer scheduler.Stop()

	baseURL := appCfg.BaseUrl
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%s", appCfg.Port)
	}

	handler := api.NewHandler(configCache, services.SourceRepo, services.Articles, scheduler.Dispatcher(), baseURL, appCfg.Version)
	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler, appCfg.APIAccessKey, appCfg.Version),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port, "base_url", baseURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case runErr = <-serverErrChan:
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	return runErr
}

func newServices(ctx context.Context, appCfg *cfg.Cfg, configCache *source.ConfigCache, db *database.DB) (*tasks.Services, error) {
	fetcher := browser.NewFetcher(browser.Options{
		Bin:               appCfg.BrowserBin,
		Headless:          appCfg.BrowserHeadless,
		NoSandbox:         appCfg.BrowserNoSandbox,
		Stealth:           appCfg.BrowserStealth,
		PoolSize:          appCfg.BrowserPoolSize,
		UserAgent:         appCfg.UserAgent,
		NavigationTimeout: appCfg.NavigationTimeoutDuration(),
		SettleMin:         time.Duration(appCfg.SettleMinMs) * time.Millisecond,
		SettleMax:         time.Duration(appCfg.SettleMaxMs) * time.Millisecond,
	})

	var providers []search.Provider
	if appCfg.SearchAPIEnabled() {
		providers = append(providers, search.NewAPIProvider(appCfg.SearchAPIKey, appCfg.SearchEngineID))
		slog.Info("Search API enabled")
	}
	providers = append(providers, search.NewBrowserProvider(fetcher, search.BrowserOptions{
		URLTemplate:   appCfg.SearchURLTemplate,
		MaxWait:       appCfg.ChallengeMaxWaitDuration(),
		ScreenshotDir: filepath.Join(appCfg.DataDir, "screenshots"),
	}))

	generator, err := optimizer.NewGeminiGenerator(ctx, appCfg.LLMAPIKey, appCfg.LLMModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}

	extractor := extract.NewExtractor()

	return &tasks.Services{
		Sources:    configCache,
		SourceRepo: database.NewSourceRepository(db),
		Articles:   database.NewArticleRepository(db),
		Launcher:   fetcher,
		Crawler:    listing.NewCrawler(appCfg.UserAgent),
		Extractor:  extractor,
		Search:     search.NewService(providers...),
		Harvester:  harvest.NewHarvester(fetcher, extractor, time.Second),
		Optimizer: optimizer.NewOptimizer(generator, optimizer.Options{
			MaxOutputTokens: int32(appCfg.LLMMaxOutputTokens),
			Temperature:     &appCfg.LLMTemperature,
		}),
		Locks:       tasks.NewKeyedMutex(),
		PendingSize: tasks.DefaultPendingSize,
	}, nil
}
