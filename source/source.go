// Package source feeds the mail of a decoded cabinet into the upload
// pipeline.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dhcgn/pfc-export/cabinet"
	"github.com/dhcgn/pfc-export/content"
	"github.com/dhcgn/pfc-export/convert"
	"github.com/dhcgn/pfc-export/filter"
	"github.com/dhcgn/pfc-export/model"
	"github.com/dhcgn/pfc-export/runner"
	"github.com/dhcgn/pfc-export/stats"
)

type Options struct {
	// Folder is the slash separated path of the folder to read; empty means
	// the root folder.
	Folder string
	// All reads every mail data record and ignores the folder tree.
	All    bool
	Filter filter.Options
}

type Reader interface {
	Stream(ctx context.Context, out chan<- model.Envelope) error
}

// CabinetReader renders the mail of one folder subtree, or of the whole
// cabinet, as upload messages.
type CabinetReader struct {
	c      *cabinet.Container
	start  *cabinet.Record
	all    bool
	filter *filter.Filter
	logger *slog.Logger

	// filtered is called with the id of every message the filter rejects.
	filtered func(id string)
}

func NewReader(c *cabinet.Container, opts Options, logger *slog.Logger) (*CabinetReader, error) {
	if c == nil {
		return nil, fmt.Errorf("cabinet is nil")
	}
	f, err := filter.New(opts.Filter)
	if err != nil {
		return nil, err
	}

	reader := &CabinetReader{c: c, all: opts.All, filter: f, logger: logger}
	if !opts.All {
		reader.start, err = c.FolderByPath(opts.Folder)
		if err != nil {
			return nil, fmt.Errorf("resolve folder: %w", err)
		}
	}
	return reader, nil
}

// OnFiltered registers fn to be called with the id of every message the
// filter rejects.
func (f *CabinetReader) OnFiltered(fn func(id string)) {
	f.filtered = fn
}

// Filter returns the compiled message filter.
func (f *CabinetReader) Filter() *filter.Filter {
	return f.filter
}

// Count returns the number of mail records Stream will look at, before
// filtering.
func (f *CabinetReader) Count() (int, error) {
	if f.all {
		return len(f.c.OfType(cabinet.MailData)), nil
	}
	n := 0
	err := f.c.Walk(f.start, &counter{n: &n})
	return n, err
}

func (f *CabinetReader) Stream(ctx context.Context, out chan<- model.Envelope) error {
	if f.all {
		for _, rec := range f.c.OfType(cabinet.MailData) {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := f.emitMail(ctx, out, rec, ""); err != nil {
				return err
			}
		}
		return nil
	}
	return f.c.Walk(f.start, &streamer{f: f, ctx: ctx, out: out})
}

// emitMail renders the mail behind rec, a mail envelope or data record.
func (f *CabinetReader) emitMail(ctx context.Context, out chan<- model.Envelope, rec *cabinet.Record, folder string) error {
	id := convert.ID(rec)

	mail, err := content.LoadMail(f.c, rec)
	if err != nil {
		return f.emitError(ctx, out, id, fmt.Errorf("record %d: %w", rec.Index, err))
	}
	msg, err := convert.Message(rec, mail, folder)
	if err != nil {
		return f.emitError(ctx, out, id, err)
	}

	header, body := filter.SplitRawMessage(msg.Raw)
	if !f.filter.Allows(header, body) {
		if f.filtered != nil {
			f.filtered(id)
		}
		return nil
	}

	return f.emitEnvelope(ctx, out, model.Envelope{Message: msg})
}

// emitError hands a record-local failure downstream and keeps streaming.
func (f *CabinetReader) emitError(ctx context.Context, out chan<- model.Envelope, id string, err error) error {
	if f.logger != nil {
		f.logger.Debug("cabinet record failed", "id", id, "err", err)
	}
	return f.emitEnvelope(ctx, out, model.Envelope{Message: model.Message{ID: id}, Err: err})
}

func (f *CabinetReader) emitEnvelope(ctx context.Context, out chan<- model.Envelope, env model.Envelope) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- env:
		return nil
	}
}

// streamer walks the start folder and tracks the folder path below it.
type streamer struct {
	f    *CabinetReader
	ctx  context.Context
	out  chan<- model.Envelope
	path []string
}

func (s *streamer) EnterFolder(folder *cabinet.Record) error {
	if folder.Index != s.f.start.Index {
		s.path = append(s.path, folder.Label())
	}
	return nil
}

func (s *streamer) LeaveFolder(folder *cabinet.Record) error {
	if folder.Index != s.f.start.Index && len(s.path) > 0 {
		s.path = s.path[:len(s.path)-1]
	}
	return nil
}

func (s *streamer) Visit(item *cabinet.Record) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	if item.Type != cabinet.MailEnvelope || item.Pointers.Data == cabinet.None {
		return nil
	}
	return s.f.emitMail(s.ctx, s.out, item, strings.Join(s.path, "/"))
}

type counter struct {
	n *int
}

func (c *counter) EnterFolder(*cabinet.Record) error { return nil }
func (c *counter) LeaveFolder(*cabinet.Record) error { return nil }

func (c *counter) Visit(item *cabinet.Record) error {
	if item.Type == cabinet.MailEnvelope && item.Pointers.Data != cabinet.None {
		*c.n++
	}
	return nil
}

// Producer is the pipeline stage that streams cabinet mail into a runner.
type Producer struct {
	reader *CabinetReader
	runner *runner.Runner
}

// NewProducer registers reader as the cabinet stage of r. The stage starts
// at once, so stats subscribers must already be attached.
func NewProducer(reader *CabinetReader, r *runner.Runner) *Producer {
	reader.OnFiltered(func(id string) {
		r.EmitEvent(stats.Event{Stage: stats.StageCabinet, Type: stats.EventTypeFiltered, MessageID: id})
	})
	producer := &Producer{reader: reader, runner: r}
	r.AddStage("cabinet", producer.run)
	return producer
}

// Reader returns the underlying cabinet reader.
func (p *Producer) Reader() *CabinetReader {
	return p.reader
}

func (p *Producer) run(ctx context.Context) error {
	defer p.runner.CloseMailbox()
	return p.reader.Stream(ctx, p.runner.MailboxWriter())
}
