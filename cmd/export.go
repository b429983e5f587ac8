package cmd

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dhcgn/pfc-export/cabinet"
	"github.com/dhcgn/pfc-export/config"
	"github.com/dhcgn/pfc-export/convert"
	"github.com/dhcgn/pfc-export/export"
	"github.com/dhcgn/pfc-export/progress"
	"github.com/dhcgn/pfc-export/stats"
)

type exportOptions struct {
	format string
	out    string
	folder string
	all    bool
}

func newExportCmd() *cobra.Command {
	var opts exportOptions

	cmd := &cobra.Command{
		Use:   "export [cabinet file]",
		Short: "Write cabinet mail or favorites to an mbox, Eudora or HTML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogging(cmd, func(cfg config.Config, logger *slog.Logger) error {
				return runExport(cmd, args[0], opts, cfg, logger)
			})
		},
	}

	formats := make([]string, 0, len(export.Formats))
	for _, f := range export.Formats {
		formats = append(formats, string(f))
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.format, "format", "f", string(export.FormatMbox), "Output format: "+strings.Join(formats, ", "))
	flags.StringVarP(&opts.out, "out", "o", "", "Output file")
	flags.StringVar(&opts.folder, "folder", "", "Cabinet folder to export, as a slash separated path of folder names (default: root folder)")
	flags.BoolVar(&opts.all, "all", false, "Export every mail record, ignoring the folder tree")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func runExport(cmd *cobra.Command, path string, opts exportOptions, cfg config.Config, logger *slog.Logger) error {
	format := export.Format(strings.ToLower(opts.format))
	if opts.all && format == export.FormatFavorites {
		return fmt.Errorf("--all exports mail records and cannot be used with --format %s", format)
	}
	exp, err := export.New(format, opts.out)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	c, err := OpenCabinet(ctx, path, cfg.LogLevel, logger)
	if err != nil {
		return err
	}
	start, err := startFolder(c, opts.folder, opts.all)
	if err != nil {
		return err
	}

	collector := stats.NewCollector()
	runOpts := export.Options{
		Logger: logger,
		OnExport: func(rec *cabinet.Record) {
			collector.Apply(stats.Event{Stage: stats.StageExport, Type: stats.EventTypeExported, MessageID: convert.ID(rec)})
		},
		OnSkip: func(rec *cabinet.Record, err error) {
			collector.Apply(stats.Event{Stage: stats.StageExport, Type: stats.EventTypeError, MessageID: convert.ID(rec), Err: err})
		},
	}

	logger.Info("starting export", "cabinet", path, "format", format, "out", opts.out, "folder", opts.folder, "all", opts.all)
	started := time.Now()

	if start == nil {
		_, err = export.RunAll(ctx, c, exp, runOpts)
	} else {
		_, err = export.Run(ctx, c, start, exp, runOpts)
	}
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	summary := collector.Snapshot()
	logger.Info("export finished", summary.LogAttrs()...)
	if cfg.LogLevel == "info" {
		progress.PrintSummary(summary, time.Since(started))
	}
	return nil
}
