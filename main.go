package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dhcgn/pfc-export/cmd"
	"github.com/dhcgn/pfc-export/config"
	"github.com/dhcgn/pfc-export/filter"
	"github.com/dhcgn/pfc-export/imap"
	"github.com/dhcgn/pfc-export/progress"
	"github.com/dhcgn/pfc-export/runner"
	"github.com/dhcgn/pfc-export/source"
	"github.com/dhcgn/pfc-export/stats"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pfc-export",
		Short: "Upload the mail of an AOL personal filing cabinet into an IMAP mailbox",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(c)
			if err != nil {
				return err
			}

			logger, cleanup, err := cmd.SetupLogger(cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = cleanup()
			}()

			slog.SetDefault(logger)
			logger.Info("starting pfc-export", "cabinet", cfg.CabinetPath, "folder", cfg.Folder, "target", cfg.TargetFolder, "dryRun", cfg.DryRun)

			return run(c.Context(), cfg, logger)
		},
	}

	if err := config.RegisterFlags(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "failed to register CLI flags: %v\n", err)
		os.Exit(1)
	}
	cmd.Register(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	c, err := cmd.OpenCabinet(ctx, cfg.CabinetPath, cfg.LogLevel, logger)
	if err != nil {
		return err
	}

	r, err := runner.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("runner.New: %w", err)
	}
	stats.NewReporter(r, logger)

	sourceOpts := source.Options{
		Folder: cfg.Folder,
		All:    cfg.All,
		Filter: filter.Options{
			IncludeHeader: cfg.IncludeHeader,
			IncludeBody:   cfg.IncludeBody,
			ExcludeHeader: cfg.ExcludeHeader,
			ExcludeBody:   cfg.ExcludeBody,
		},
	}

	reader, err := source.NewReader(c, sourceOpts, logger)
	if err != nil {
		return fmt.Errorf("source.NewReader: %w", err)
	}
	total, err := reader.Count()
	if err != nil {
		return fmt.Errorf("count messages: %w", err)
	}
	bar := progress.New(total, r.Tracker().Snapshot().Processed, cfg.LogLevel)
	progress.NewProgressReporter(r, bar, logger)

	source.NewProducer(reader, r)

	uploaderOpts := imap.Options{
		Host:               cfg.IMAPHost,
		Port:               cfg.IMAPPort,
		Username:           cfg.IMAPUser,
		Password:           cfg.IMAPPass,
		UseTLS:             cfg.UseTLS,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		AuthPlain:          cfg.AuthPlain,
		TargetFolder:       cfg.TargetFolder,
		KeepFolders:        cfg.KeepFolders,
		DryRun:             cfg.DryRun,
	}

	if _, err := imap.NewUploader(uploaderOpts, r, logger); err != nil {
		return fmt.Errorf("imap.NewUploader: %w", err)
	}

	return r.Start()
}
