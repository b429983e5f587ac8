// Package cmd holds the pfc-export subcommands that work on a cabinet file
// without an IMAP server.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dhcgn/pfc-export/cabinet"
	"github.com/dhcgn/pfc-export/config"
	"github.com/dhcgn/pfc-export/progress"
)

// Register adds the export, list and stats subcommands to root. root must
// carry the persistent flags from config.RegisterFlags.
func Register(root *cobra.Command) {
	root.AddCommand(newExportCmd(), newListCmd(), newStatsCmd())
}

// SetupLogger builds the process logger from the logging options. The
// returned cleanup closes the log file, if one was opened.
func SetupLogger(cfg config.Config) (*slog.Logger, func() error, error) {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}

	opts := &slog.HandlerOptions{Level: level}
	cleanup := func() error { return nil }

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, cleanup, err
		}

		logFilePath := filepath.Join(cfg.LogDir, fmt.Sprintf("pfc-export-%s.log", time.Now().Format("20060102T150405")))
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, cleanup, err
		}

		handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, file), opts)
		cleanup = func() error {
			return file.Close()
		}
		return slog.New(handler), cleanup, nil
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler), cleanup, nil
}

// OpenCabinet reads the cabinet at path, drawing a read bar at info level.
func OpenCabinet(ctx context.Context, path, logLevel string, logger *slog.Logger) (*cabinet.Container, error) {
	bar := progress.NewReadBar("Reading "+filepath.Base(path), logLevel == "info")
	c, err := cabinet.Open(ctx, path, cabinet.Options{Logger: logger, Progress: bar.Update})
	bar.Stop()
	if err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Debug("cabinet loaded", "path", path, "records", c.Len())
	}
	return c, nil
}

// withLogging loads the logging options of cmd and runs fn with a logger.
func withLogging(cmd *cobra.Command, fn func(cfg config.Config, logger *slog.Logger) error) error {
	cfg, err := config.LoadLogging(cmd)
	if err != nil {
		return err
	}
	logger, cleanup, err := SetupLogger(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = cleanup()
	}()
	return fn(cfg, logger)
}

// startFolder resolves --folder and --all into the record to start from.
// A nil record with a nil error means the whole cabinet.
func startFolder(c *cabinet.Container, folder string, all bool) (*cabinet.Record, error) {
	if all {
		if folder != "" {
			return nil, fmt.Errorf("--all and --folder are mutually exclusive")
		}
		return nil, nil
	}
	rec, err := c.FolderByPath(folder)
	if err != nil {
		return nil, fmt.Errorf("resolve folder %q: %w", folder, err)
	}
	return rec, nil
}
