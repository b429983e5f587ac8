package content

import (
	"bytes"
	"errors"
	"io"

	"github.com/klauspost/compress/flate"
)

// inflater collects the chunks of a raw deflate stream and decodes them in a
// single pass when drained. It lives for one message.
type inflater struct {
	in       bytes.Buffer
	produced int
	failed   bool
}

func (f *inflater) feed(chunk []byte) {
	f.in.Write(chunk)
}

// drain inflates everything fed so far and returns the output not handed out
// by an earlier drain. After the first error later drains return nothing.
func (f *inflater) drain() ([]byte, error) {
	if f.failed || f.in.Len() == 0 {
		return nil, nil
	}

	r := flate.NewReader(bytes.NewReader(f.in.Bytes()))
	defer r.Close()

	out, err := io.ReadAll(r)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		// Truncated stream: keep what was decoded.
		err = nil
	}
	if err != nil {
		f.failed = true
	}

	var fresh []byte
	if len(out) > f.produced {
		fresh = out[f.produced:]
		f.produced = len(out)
	}
	return fresh, err
}
