package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/trykimu/videoeditor-sub001/internal/api"
	"github.com/trykimu/videoeditor-sub001/internal/auth"
	"github.com/trykimu/videoeditor-sub001/internal/config"
	"github.com/trykimu/videoeditor-sub001/internal/db"
	"github.com/trykimu/videoeditor-sub001/internal/editor"
	"github.com/trykimu/videoeditor-sub001/internal/logging"
	"github.com/trykimu/videoeditor-sub001/internal/media"
	"github.com/trykimu/videoeditor-sub001/internal/project"
	"github.com/trykimu/videoeditor-sub001/internal/render"
	"github.com/trykimu/videoeditor-sub001/internal/snapshot"
)

const lockFilename = "editord.lock"

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	for _, dir := range []string{cfg.DataDir(), cfg.SnapshotDir(), cfg.ExportDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	logger := logging.NewLogger(cfg.LogLevel(), cfg.LogFormat())
	logger.Info("starting editor daemon",
		"version", config.Version,
		"commit", config.GitCommit,
		"data_dir", cfg.DataDir(),
		"store", cfg.Store(),
	)

	lock := flock.New(filepath.Join(cfg.DataDir(), lockFilename))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire data dir lock: %w", err)
	}
	if !locked {
		return errors.New("another editor daemon is already using " + cfg.DataDir())
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release data dir lock", "error", err)
		}
	}()

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := project.NewRepository(database.Conn())

	var store snapshot.Store = repo
	if cfg.Store() == config.StoreFile {
		fs, err := openFileStore(cfg.SnapshotDir(), logger)
		if err != nil {
			return err
		}
		store = fs
	}

	resolver, token, err := newResolver(cfg, repo, logger)
	if err != nil {
		return err
	}
	printBanner(cfg, token)

	svc := editor.NewService(repo, store, newProber(cfg, logger), newRenderClient(cfg, logger), editor.Options{
		FPS:          cfg.FPS(),
		PollInterval: cfg.RenderPollInterval(),
	}, logger)
	defer svc.Close()

	server := api.NewServer(api.ServerConfig{
		Addr:      cfg.Addr(),
		Editor:    svc,
		Resolver:  resolver,
		ExportDir: cfg.ExportDir(),
		Logger:    logger,
		StartTime: startTime,
		Version:   config.Version,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown HTTP server", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("HTTP server: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

func openFileStore(dir string, logger *slog.Logger) (*project.FileStore, error) {
	fs, err := project.NewFileStore(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot directory: %w", err)
	}
	ids, err := fs.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot directory: %w", err)
	}
	logger.Info("timeline snapshots stored as files", "dir", dir, "projects", len(ids))
	return fs, nil
}

func newResolver(cfg config.Config, repo project.Repository, logger *slog.Logger) (auth.Resolver, string, error) {
	if cfg.AuthMode() == config.AuthSession {
		logger.Info("delegating authentication to session endpoint", "url", cfg.AuthSessionURL())
		return auth.NewSessionResolver(cfg.AuthSessionURL(), logger), "", nil
	}

	token := cfg.AuthToken()
	if token == "" {
		var err error
		token, err = ensureAuthToken(repo)
		if err != nil {
			return nil, "", fmt.Errorf("failed to ensure auth token: %w", err)
		}
	}
	return auth.NewTokenResolver(token, cfg.AuthUserID()), token, nil
}

func newProber(cfg config.Config, logger *slog.Logger) media.Prober {
	var p media.Prober
	ff, err := media.NewFFProbe(media.Config{
		FFProbePath: cfg.FFProbePath(),
		Logger:      logging.WithComponent(logger, "media"),
	})
	if err != nil {
		logger.Warn("ffprobe unavailable, media durations must be supplied by clients", "error", err)
		p = media.NewStubProber(nil)
	} else {
		p = ff
	}
	return media.NewCachedProber(p, logger)
}

func newRenderClient(cfg config.Config, logger *slog.Logger) render.Client {
	if cfg.RenderURL() == "" {
		logger.Info("no render service configured, using local stub")
		return render.NewStubClient(3, logger)
	}
	logger.Info("render service configured", "url", cfg.RenderURL())
	return render.NewHTTPClient(cfg.RenderURL(), cfg.RenderToken(), cfg.RenderTimeout(), logger)
}

func printBanner(cfg config.Config, token string) {
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║  TIMELINE EDITOR %-41s║\n", "v"+config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    %-45s║\n", "http://"+cfg.Addr())
	if token == "" {
		fmt.Printf("║  Auth:       %-45s║\n", "session")
	}
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	if token != "" {
		fmt.Println("  Auth Token: " + token)
	}
	fmt.Println()
}

// ensureAuthToken returns the persisted API token, generating one on first run.
func ensureAuthToken(repo project.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}
	return token, nil
}
