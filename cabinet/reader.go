package cabinet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dhcgn/pfc-export/codec"
)

// Identity is the literal at the start of every cabinet file.
const Identity = "AOLVM100"

// File header and index offsets.
const (
	offIndexStart   = 16
	idxOffLength    = 4
	idxOffCount     = 8
	idxOffEntries   = 12
	idxOffRoot      = 16
	recOffLength    = 4
	recHeaderLength = 8
)

// ProgressFunc receives the percentage of the index consumed so far.
type ProgressFunc func(percent int)

// Options tune a container read. Both fields are optional.
type Options struct {
	Logger   *slog.Logger
	Progress ProgressFunc
}

// Open reads the cabinet file at path.
func Open(ctx context.Context, path string, opts Options) (*Container, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cabinet: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat cabinet: %w", err)
	}

	return Read(ctx, file, info.Size(), opts)
}

// Read decodes a whole cabinet from r. It checks ctx once per index entry.
// On failure it returns a *ReadError and no Container.
func Read(ctx context.Context, r io.ReaderAt, size int64, opts Options) (*Container, error) {
	rd := &reader{src: r, size: size, logger: opts.Logger, progress: opts.Progress}
	c, err := rd.read(ctx)
	if err != nil {
		if rd.logger != nil {
			rd.logger.Error("cabinet read failed", "percent", rd.percent, "err", err)
		}
		return nil, &ReadError{Percent: rd.percent, Err: err}
	}
	return c, nil
}

type reader struct {
	src      io.ReaderAt
	size     int64
	logger   *slog.Logger
	progress ProgressFunc
	percent  int
}

func (rd *reader) read(ctx context.Context) (*Container, error) {
	ident := make([]byte, len(Identity))
	if err := rd.readFull(ident, 0); err != nil {
		if errors.Is(err, ErrTruncatedRead) {
			return nil, ErrInvalidContainer
		}
		return nil, err
	}
	if string(ident) != Identity {
		return nil, ErrInvalidContainer
	}

	idxStart, err := rd.uint32At(offIndexStart)
	if err != nil {
		return nil, fmt.Errorf("index start: %w", err)
	}
	base := int64(idxStart)

	c := &Container{IndexStart: idxStart}
	if c.IndexLength, err = rd.uint32At(base + idxOffLength); err != nil {
		return nil, fmt.Errorf("index length: %w", err)
	}
	if c.IndexCount, err = rd.uint32At(base + idxOffCount); err != nil {
		return nil, fmt.Errorf("index count: %w", err)
	}

	end := base + 8 + int64(c.IndexLength)
	if end > rd.size {
		return nil, fmt.Errorf("index of %d bytes at %d exceeds file size %d: %w",
			c.IndexLength, idxStart, rd.size, ErrTruncatedRead)
	}
	if base+idxOffRoot+4 <= rd.size {
		if c.RootAddress, err = rd.uint32At(base + idxOffRoot); err != nil {
			return nil, fmt.Errorf("root address: %w", err)
		}
	}

	if rd.logger != nil {
		rd.logger.Debug("cabinet index", "start", "0x"+codec.Hex(idxStart, 8), "length", c.IndexLength,
			"count", c.IndexCount, "root", c.RootAddress)
	}

	debug := rd.logger != nil && rd.logger.Enabled(ctx, slog.LevelDebug)
	var records []*Record
	for pos := base + idxOffEntries; pos < end; pos += 4 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		addr, err := rd.uint32At(pos)
		if err != nil {
			return nil, fmt.Errorf("index entry %d: %w", len(records), err)
		}

		rec, err := rd.record(addr)
		if err != nil {
			return nil, fmt.Errorf("record %d at 0x%s: %w", len(records), codec.Hex(addr, 8), err)
		}
		rec.Index = len(records)
		rec.Address = addr
		records = append(records, rec)

		if debug {
			rd.logger.Debug("cabinet record", "index", rec.Index, "address", "0x"+codec.Hex(addr, 8),
				"type", rec.Type.String(), "length", rec.Len())
		}

		rd.report(int((pos - base - 8) * 100 / int64(c.IndexLength)))
	}

	c.records = records
	rd.report(100)

	if rd.logger != nil {
		rd.logger.Debug("cabinet read complete", "records", len(records))
	}
	return c, nil
}

// record reads and classifies the record at addr. Address zero is an empty
// slot and yields a placeholder so indices stay dense.
func (rd *reader) record(addr uint32) (*Record, error) {
	if addr == 0 {
		rec := DecodeRecord(nil)
		return &rec, nil
	}

	length, err := rd.uint32At(int64(addr) + recOffLength)
	if err != nil {
		return nil, fmt.Errorf("length: %w", err)
	}
	start := int64(addr) + recHeaderLength
	if start+int64(length) > rd.size {
		return nil, fmt.Errorf("%d content bytes at %d exceed file size %d: %w",
			length, start, rd.size, ErrTruncatedRead)
	}

	content := make([]byte, length)
	if err := rd.readFull(content, start); err != nil {
		return nil, err
	}
	rec := DecodeRecord(content)
	return &rec, nil
}

func (rd *reader) report(pct int) {
	if pct > 100 {
		pct = 100
	}
	if pct <= rd.percent {
		return
	}
	rd.percent = pct
	if rd.progress != nil {
		rd.progress(pct)
	}
}

func (rd *reader) uint32At(off int64) (uint32, error) {
	var b [4]byte
	if err := rd.readFull(b[:], off); err != nil {
		return 0, err
	}
	return codec.Uint32(b[:], 0)
}

func (rd *reader) readFull(b []byte, off int64) error {
	if off < 0 || off+int64(len(b)) > rd.size {
		return fmt.Errorf("%d bytes at %d of %d: %w", len(b), off, rd.size, ErrTruncatedRead)
	}
	n, err := rd.src.ReadAt(b, off)
	if n == len(b) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return fmt.Errorf("%d of %d bytes at %d: %w", n, len(b), off, ErrTruncatedRead)
	}
	return fmt.Errorf("read at %d: %w", off, err)
}
