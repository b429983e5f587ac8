// Package export writes cabinet content to mbox files, Eudora mailboxes and
// HTML bookmark files.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dhcgn/pfc-export/cabinet"
)

// ErrUnknownFormat is returned by New for an unsupported format name.
var ErrUnknownFormat = errors.New("export: unknown format")

// Exporter receives the records of an export run. OpenFolder and
// CloseFolder bracket every folder in walk order, the starting folder
// included. env is nil when a data record is exported without an envelope.
type Exporter interface {
	Exportable(env *cabinet.Record) bool
	Open() error
	OpenFolder(folder *cabinet.Record) error
	Export(env, data *cabinet.Record) error
	CloseFolder(folder *cabinet.Record) error
	Close() error
}

// RecordError reports a record whose content could not be rebuilt. Runs skip
// such records and carry on.
type RecordError struct {
	Index int
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Options tune an export run. All fields are optional.
type Options struct {
	Logger *slog.Logger
	// OnExport is called after every exported record.
	OnExport func(rec *cabinet.Record)
	// OnSkip is called for every record skipped because of a RecordError or
	// a dangling data pointer.
	OnSkip func(rec *cabinet.Record, err error)
}

// Run exports item with exp. A folder exports its whole subtree; any other
// record exports itself when exp accepts it. It returns the number of
// records exported. exp is always closed once opened.
func Run(ctx context.Context, c *cabinet.Container, item *cabinet.Record, exp Exporter, opts Options) (n int, err error) {
	if err := exp.Open(); err != nil {
		return 0, fmt.Errorf("open exporter: %w", err)
	}
	defer func() {
		if cerr := exp.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close exporter: %w", cerr))
		}
	}()

	v := &runVisitor{ctx: ctx, c: c, exp: exp, opts: opts}
	err = c.Walk(item, v)
	return v.count, err
}

// RunAll exports every mail data record of c in index order, ignoring the
// folder structure.
func RunAll(ctx context.Context, c *cabinet.Container, exp Exporter, opts Options) (n int, err error) {
	if err := exp.Open(); err != nil {
		return 0, fmt.Errorf("open exporter: %w", err)
	}
	defer func() {
		if cerr := exp.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close exporter: %w", cerr))
		}
	}()

	v := &runVisitor{ctx: ctx, c: c, exp: exp, opts: opts}
	for _, rec := range c.OfType(cabinet.MailData) {
		if err := ctx.Err(); err != nil {
			return v.count, err
		}
		if err := v.export(nil, rec); err != nil {
			return v.count, err
		}
	}
	return v.count, nil
}

type runVisitor struct {
	ctx   context.Context
	c     *cabinet.Container
	exp   Exporter
	opts  Options
	count int
}

func (v *runVisitor) EnterFolder(folder *cabinet.Record) error {
	return v.exp.OpenFolder(folder)
}

func (v *runVisitor) LeaveFolder(folder *cabinet.Record) error {
	return v.exp.CloseFolder(folder)
}

func (v *runVisitor) Visit(item *cabinet.Record) error {
	if err := v.ctx.Err(); err != nil {
		return err
	}
	if !v.exp.Exportable(item) {
		return nil
	}
	data, err := v.c.Data(item)
	if err != nil {
		v.skip(item, err)
		return nil
	}
	return v.export(item, data)
}

func (v *runVisitor) export(env, data *cabinet.Record) error {
	rec := data
	if env != nil {
		rec = env
	}

	err := v.exp.Export(env, data)
	var rerr *RecordError
	if errors.As(err, &rerr) {
		v.skip(rec, err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("export record %d: %w", rec.Index, err)
	}

	v.count++
	if v.opts.OnExport != nil {
		v.opts.OnExport(rec)
	}
	return nil
}

func (v *runVisitor) skip(rec *cabinet.Record, err error) {
	if v.opts.Logger != nil {
		v.opts.Logger.Warn("record skipped", "index", rec.Index, "type", rec.Type.String(), "err", err)
	}
	if v.opts.OnSkip != nil {
		v.opts.OnSkip(rec, err)
	}
}

// Format names an export file format.
type Format string

const (
	FormatMbox      Format = "mbox"
	FormatEudora    Format = "eudora"
	FormatFavorites Format = "favorites"
)

// Formats lists the supported formats.
var Formats = []Format{FormatMbox, FormatEudora, FormatFavorites}

// New returns an exporter of the given format writing to path.
func New(format Format, path string) (Exporter, error) {
	switch format {
	case FormatMbox:
		return NewMbox(path), nil
	case FormatEudora:
		return NewEudora(path), nil
	case FormatFavorites:
		return NewFavorites(path), nil
	}
	return nil, fmt.Errorf("%q: %w", format, ErrUnknownFormat)
}
