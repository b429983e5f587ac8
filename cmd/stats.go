package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/emersion/go-message/textproto"
	"github.com/spf13/cobra"

	"github.com/dhcgn/pfc-export/cabinet"
	"github.com/dhcgn/pfc-export/codec"
	"github.com/dhcgn/pfc-export/config"
	"github.com/dhcgn/pfc-export/filter"
	"github.com/dhcgn/pfc-export/model"
	"github.com/dhcgn/pfc-export/source"
	"github.com/dhcgn/pfc-export/stats"
)

var headersToTrack = []string{"From", "To", "Subject"}

type statsOptions struct {
	reportDir string
	topN      int
	filter    filter.Options
}

func newStatsCmd() *cobra.Command {
	var opts statsOptions

	cmd := &cobra.Command{
		Use:   "stats [cabinet file]",
		Short: "Analyse the cabinet and show statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogging(cmd, func(cfg config.Config, logger *slog.Logger) error {
				return runStats(cmd, args[0], opts, cfg, logger)
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.reportDir, "output", "o", "", "Output directory for CSV reports (no reports when empty)")
	flags.IntVarP(&opts.topN, "top", "t", 10, "Number of top items to display in statistics")
	flags.StringArrayVar(&opts.filter.IncludeHeader, "include-header", nil, "Regex allow-list applied to message headers (mutually exclusive with exclude flags)")
	flags.StringArrayVar(&opts.filter.IncludeBody, "include-body", nil, "Regex allow-list applied to message bodies (mutually exclusive with exclude flags)")
	flags.StringArrayVar(&opts.filter.ExcludeHeader, "exclude-header", nil, "Regex block-list applied to message headers (mutually exclusive with include flags)")
	flags.StringArrayVar(&opts.filter.ExcludeBody, "exclude-body", nil, "Regex block-list applied to message bodies (mutually exclusive with include flags)")

	return cmd
}

func runStats(cmd *cobra.Command, path string, opts statsOptions, cfg config.Config, logger *slog.Logger) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	c, err := OpenCabinet(ctx, path, cfg.LogLevel, logger)
	if err != nil {
		return err
	}

	reader, err := source.NewReader(c, source.Options{All: true, Filter: opts.filter}, logger)
	if err != nil {
		return err
	}

	collector := stats.NewCollector()
	reader.OnFiltered(func(id string) {
		collector.Apply(stats.Event{Stage: stats.StageCabinet, Type: stats.EventTypeFiltered, MessageID: id})
	})

	counter := make(map[string]map[string]int)
	for _, h := range headersToTrack {
		counter[h] = make(map[string]int)
	}

	err = stream(ctx, reader, func(env model.Envelope) {
		if env.Err != nil {
			collector.Apply(stats.Event{Stage: stats.StageCabinet, Type: stats.EventTypeError, MessageID: env.Message.ID, Err: env.Err})
			return
		}
		collector.Apply(stats.Event{Stage: stats.StageCabinet, Type: stats.EventTypeScanned, MessageID: env.Message.ID})
		countHeaders(counter, env.Message.Raw)
	})
	if err != nil {
		return fmt.Errorf("read cabinet mail: %w", err)
	}

	fmt.Fprintf(out, "Cabinet: %s (%d records)\n\n", path, c.Len())
	printTypeCounts(out, c.TypeCounts())

	summary := collector.Snapshot()
	total := summary.Scanned + summary.Filtered
	var filterPercent float64
	if total > 0 {
		filterPercent = float64(summary.Filtered) / float64(total) * 100
	}
	fmt.Fprintf(out, "Processed %d messages (skipped %d by filters, %.2f%%, %d unreadable)\n\n",
		summary.Scanned, summary.Filtered, filterPercent, summary.Errors)

	printFilterStats(out, reader.Filter().GetStats())

	for _, header := range headersToTrack {
		fmt.Fprintf(out, "Top %d %s:\n", opts.topN, header)
		stats.FprintTop(out, counter[header], opts.topN)
		fmt.Fprintln(out)
	}

	if opts.reportDir == "" {
		return nil
	}
	if err := saveCSVReports(counter, headersToTrack, opts.reportDir, 1000); err != nil {
		return fmt.Errorf("error saving CSV reports: %w", err)
	}
	fmt.Fprintf(out, "Reports saved to directory: %s\n", opts.reportDir)
	return nil
}

// stream runs reader in the background and hands every envelope to fn.
func stream(ctx context.Context, reader source.Reader, fn func(model.Envelope)) error {
	envelopes := make(chan model.Envelope, 64)
	errc := make(chan error, 1)
	go func() {
		defer close(envelopes)
		errc <- reader.Stream(ctx, envelopes)
	}()

	for env := range envelopes {
		fn(env)
	}
	return <-errc
}

func countHeaders(counter map[string]map[string]int, raw []byte) {
	header, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return
	}
	for _, name := range headersToTrack {
		if value := header.Get(name); value != "" {
			counter[name][value]++
		}
	}
}

func printTypeCounts(w io.Writer, counts map[cabinet.RecordType]int) {
	types := make([]cabinet.RecordType, 0, len(counts))
	width := 1
	for t, n := range counts {
		types = append(types, t)
		width = max(width, len(strconv.Itoa(n)))
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	fmt.Fprintln(w, "Records by type:")
	for _, t := range types {
		fmt.Fprintf(w, "  %-14s %s\n", t.String(), codec.PadInt(counts[t], width))
	}
	fmt.Fprintln(w)
}

func printFilterStats(w io.Writer, filterStats filter.Stats) {
	sections := []struct {
		title    string
		patterns []string
		hits     map[string]int
	}{
		{"Include Header Filters", filterStats.IncludeHeaderPatterns, filterStats.IncludeHeaderHits},
		{"Include Body Filters", filterStats.IncludeBodyPatterns, filterStats.IncludeBodyHits},
		{"Exclude Header Filters", filterStats.ExcludeHeaderPatterns, filterStats.ExcludeHeaderHits},
		{"Exclude Body Filters", filterStats.ExcludeBodyPatterns, filterStats.ExcludeBodyHits},
	}

	printed := false
	for _, s := range sections {
		if len(s.patterns) == 0 {
			continue
		}
		printed = true
		fmt.Fprintf(w, "%s:\n", s.title)
		printFilterHits(w, s.patterns, s.hits)
		fmt.Fprintln(w)
	}
	if printed {
		fmt.Fprintln(w, "---")
		fmt.Fprintln(w)
	}
}

func saveCSVReports(counter map[string]map[string]int, headers []string, dir string, limit int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	for _, header := range headers {
		filename := fmt.Sprintf("report_%s.csv", normalizeHeaderName(header))
		if err := writeCSVReport(filepath.Join(dir, filename), counter[header], limit); err != nil {
			return err
		}
	}
	return nil
}

func writeCSVReport(path string, counts map[string]int, limit int) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"Value", "Count"}); err != nil {
		return err
	}
	for _, p := range stats.Top(counts, limit) {
		if err := writer.Write([]string{p.Key, strconv.Itoa(p.Value)}); err != nil {
			return err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return file.Close()
}

func normalizeHeaderName(header string) string {
	name := strings.ToLower(header)
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, " ", "_")
	return name
}

func printFilterHits(w io.Writer, patterns []string, hits map[string]int) {
	type pair struct {
		Pattern string
		Count   int
	}
	pairs := make([]pair, 0, len(patterns))
	for _, pattern := range patterns {
		pairs = append(pairs, pair{pattern, hits[pattern]})
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].Count != pairs[j].Count {
			return pairs[i].Count > pairs[j].Count
		}
		return pairs[i].Pattern < pairs[j].Pattern
	})

	for _, p := range pairs {
		if p.Count > 0 {
			fmt.Fprintf(w, "  ✓ %s: %d hits\n", p.Pattern, p.Count)
		} else {
			fmt.Fprintf(w, "  ✗ %s: 0 hits\n", p.Pattern)
		}
	}
}
