package export

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhcgn/pfc-export/cabinet"
	"github.com/dhcgn/pfc-export/codec"
)

// DescmapName is the Eudora folder description file kept next to mailboxes.
const DescmapName = "descmap.pce"

// TOC layout.
const (
	tocHeaderSize  = 104
	tocEntrySize   = 218
	tocCountOffset = 102
	tocNameSize    = 32
	tocFieldSize   = 64

	tocStatusRead     = 1
	tocPriorityNormal = 3
)

type tocFile interface {
	io.Writer
	io.WriterAt
	io.Closer
}

var createTOC = func(name string) (tocFile, error) {
	return os.Create(name)
}

// Eudora writes an mbox file plus the Eudora table of contents for it, and
// registers the mailbox in the directory's descmap.pce.
type Eudora struct {
	*Mbox

	tocPath string
	toc     tocFile
	count   uint16
}

// NewEudora returns a Eudora exporter for the mailbox at path. The TOC file
// takes the mailbox name with a .toc extension.
func NewEudora(path string) *Eudora {
	return &Eudora{
		Mbox:    NewMbox(path),
		tocPath: filepath.Join(filepath.Dir(path), mailboxID(path)+".toc"),
	}
}

// TOCPath returns the table of contents file path.
func (e *Eudora) TOCPath() string {
	return e.tocPath
}

func (e *Eudora) Open() error {
	if err := e.Mbox.Open(); err != nil {
		return err
	}
	toc, err := createTOC(e.tocPath)
	if err != nil {
		e.Mbox.Close()
		return fmt.Errorf("create toc: %w", err)
	}
	if _, err := toc.Write(tocHeader(mailboxID(e.path))); err != nil {
		toc.Close()
		e.Mbox.Close()
		return fmt.Errorf("write toc header: %w", err)
	}
	e.toc = toc
	e.count = 0
	return nil
}

func (e *Eudora) Export(env, data *cabinet.Record) error {
	offset := e.size
	msg, err := e.export(data)
	if err != nil {
		return err
	}

	when, t := asctime(msg)
	entry := make([]byte, tocEntrySize)
	binary.LittleEndian.PutUint32(entry[0:], uint32(offset))
	binary.LittleEndian.PutUint32(entry[4:], uint32(e.size-offset))
	if !t.IsZero() {
		binary.LittleEndian.PutUint32(entry[8:], uint32(t.Unix()))
	}
	binary.LittleEndian.PutUint16(entry[12:], tocStatusRead)
	binary.LittleEndian.PutUint16(entry[16:], tocPriorityNormal)
	copy(entry[18:18+tocNameSize], codec.Legacy(when))
	copy(entry[50:50+tocFieldSize], codec.Legacy(msg.From))
	copy(entry[114:114+tocFieldSize], codec.Legacy(msg.Subject))
	for i := 178; i < 186; i++ {
		entry[i] = 0xff
	}

	if _, err := e.toc.Write(entry); err != nil {
		return fmt.Errorf("write toc entry: %w", err)
	}
	e.count++
	return nil
}

// Close finishes the mailbox, stores the message count in the TOC header
// and registers the mailbox in descmap.pce.
func (e *Eudora) Close() error {
	errs := []error{e.Mbox.Close()}
	if e.toc != nil {
		var count [2]byte
		binary.LittleEndian.PutUint16(count[:], e.count)
		if _, err := e.toc.WriteAt(count[:], tocCountOffset); err != nil {
			errs = append(errs, fmt.Errorf("write toc count: %w", err))
		}
		if err := e.toc.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close toc: %w", err))
		}
		e.toc = nil
	}
	if err := AddMailbox(e.path); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func tocHeader(name string) []byte {
	h := make([]byte, tocHeaderSize)
	h[0] = 0x30
	copy(h[8:8+tocNameSize], codec.Legacy(name))
	h[40] = 0x03
	for i := 54; i < 70; i++ {
		h[i] = 0xff
	}
	h[70] = 0x02
	h[72] = 0x02
	return h
}

// mailboxID is the file name without its extension. A leading dot is kept.
func mailboxID(path string) string {
	name := filepath.Base(path)
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i]
	}
	return name
}

// AddMailbox appends an entry for the mailbox file at path to the
// descmap.pce in the same directory, unless a line already names the file.
func AddMailbox(path string) error {
	name := filepath.Base(path)
	pce := filepath.Join(filepath.Dir(path), DescmapName)

	found, err := descmapHas(pce, name)
	if err != nil {
		return err
	}
	if found {
		return nil
	}

	f, err := os.OpenFile(pce, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", DescmapName, err)
	}
	line := mailboxID(path) + "," + name + ",M,N\n"
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", DescmapName, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", DescmapName, err)
	}
	return nil
}

func descmapHas(pce, name string) (bool, error) {
	f, err := os.Open(pce)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("open %s: %w", DescmapName, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.SplitN(scanner.Text(), ",", 3)
		if len(fields) < 3 {
			continue
		}
		if strings.EqualFold(fields[1], name) {
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("read %s: %w", DescmapName, err)
	}
	return false, nil
}
