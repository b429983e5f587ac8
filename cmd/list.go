package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"
	"github.com/spf13/cobra"

	"github.com/dhcgn/pfc-export/cabinet"
	"github.com/dhcgn/pfc-export/config"
)

func newListCmd() *cobra.Command {
	var folder string

	cmd := &cobra.Command{
		Use:   "list [cabinet file]",
		Short: "Show the folder tree of a cabinet with the columns of every item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogging(cmd, func(cfg config.Config, logger *slog.Logger) error {
				c, err := OpenCabinet(cmd.Context(), args[0], cfg.LogLevel, logger)
				if err != nil {
					return err
				}
				start, err := startFolder(c, folder, false)
				if err != nil {
					return err
				}

				tree, err := renderTree(c, start)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), tree)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&folder, "folder", "", "Folder to list, as a slash separated path of folder names (default: root folder)")
	return cmd
}

// renderTree draws the subtree below start.
func renderTree(c *cabinet.Container, start *cabinet.Record) (string, error) {
	lv := &lister{}
	if err := c.Walk(start, lv); err != nil {
		return "", err
	}
	return pterm.DefaultTree.WithRoot(putils.TreeFromLeveledList(lv.list)).Srender()
}

type lister struct {
	list  pterm.LeveledList
	depth int
}

func (l *lister) EnterFolder(folder *cabinet.Record) error {
	l.list = append(l.list, pterm.LeveledListItem{Level: l.depth, Text: folder.Label() + "/"})
	l.depth++
	return nil
}

func (l *lister) LeaveFolder(*cabinet.Record) error {
	l.depth--
	return nil
}

func (l *lister) Visit(item *cabinet.Record) error {
	l.list = append(l.list, pterm.LeveledListItem{Level: l.depth, Text: itemLine(item)})
	return nil
}

// itemLine is the record type followed by the non-empty label columns.
func itemLine(item *cabinet.Record) string {
	cols := make([]string, 0, 3)
	for _, col := range item.Columns() {
		if col = strings.TrimSpace(col); col != "" {
			cols = append(cols, col)
		}
	}
	if len(cols) == 0 {
		return fmt.Sprintf("[%s] #%d", item.Type, item.Index)
	}
	return fmt.Sprintf("[%s] %s", item.Type, strings.Join(cols, " | "))
}
