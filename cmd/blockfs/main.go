package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"blockfs/internal/config"
	"blockfs/internal/fs"
	"blockfs/internal/logging"
	"blockfs/internal/shell"
	"blockfs/internal/store"
)

var (
	logger = logging.GetLogger()
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to a YAML config file")
	mountPoint := flag.String("mount", "", "Mount point; when empty an interactive shell runs on stdin")
	blocks := flag.Int("blocks", 0, "Number of blocks in the pool (overrides config)")
	verbose := flag.Bool("verbose", false, "Enable verbose logging")
	flag.Parse()

	// Shell output owns stdout
	logger.SetOutput(os.Stderr)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load config: %v", err)
		os.Exit(1)
	}
	if *blocks != 0 {
		cfg.TotalBlocks = *blocks
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration: %v", err)
		os.Exit(1)
	}

	// Configure logging based on config and flags
	logger.SetLevel(cfg.Level())
	if *verbose {
		logger.SetLevel(logging.LevelDebug)
	}

	logger.Info("Starting blockfs...")
	logger.Debug("Config: %s", cfg)

	st, err := store.New(cfg.TotalBlocks)
	if err != nil {
		logger.Error("Failed to create block store: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *mountPoint == "" {
		if err := runShell(ctx, st); err != nil {
			logger.Error("Shell error: %v", err)
			os.Exit(1)
		}
		logger.Info("Clean shutdown complete")
		return
	}

	if err := runMount(ctx, st, cfg, filepath.Clean(*mountPoint)); err != nil {
		logger.Error("Mount error: %v", err)
		os.Exit(1)
	}
	logger.Info("Clean shutdown complete")
}

func runShell(ctx context.Context, st *store.BlockStore) error {
	logger.Info("Starting shell on stdin (type help for commands)")
	sh := shell.New(store.NewSession(st), os.Stdout, ">")

	// Unblock the pending read on a signal
	go func() {
		<-ctx.Done()
		os.Stdin.Close()
	}()

	err := sh.Run(ctx, os.Stdin)
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runMount(ctx context.Context, st *store.BlockStore, cfg *config.Config, mountPoint string) error {
	logger.Debug("Mount point: %s", mountPoint)
	bfs := fs.NewBlockFS(st, fs.Options{
		FSName:     cfg.Mount.FSName,
		AllowOther: cfg.Mount.AllowOther,
		UID:        cfg.UID,
		GID:        cfg.GID,
		BlockSize:  cfg.BlockSize,
	})
	return bfs.Serve(ctx, mountPoint)
}
