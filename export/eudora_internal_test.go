package export

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingTOC struct {
	closed bool
}

func (f *failingTOC) Write([]byte) (int, error)          { return 0, errors.New("disk full") }
func (f *failingTOC) WriteAt([]byte, int64) (int, error) { return 0, errors.New("disk full") }
func (f *failingTOC) Close() error {
	f.closed = true
	return nil
}

func TestEudoraOpenClosesFilesWhenTOCHeaderFails(t *testing.T) {
	toc := &failingTOC{}
	orig := createTOC
	createTOC = func(string) (tocFile, error) { return toc, nil }
	t.Cleanup(func() { createTOC = orig })

	e := NewEudora(filepath.Join(t.TempDir(), "box.mbx"))
	err := e.Open()
	require.ErrorContains(t, err, "write toc header")

	assert.True(t, toc.closed, "toc must be closed")
	assert.Nil(t, e.Mbox.file, "mbox must be closed")
	assert.Nil(t, e.toc)
}
