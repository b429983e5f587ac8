package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/data/Jane Doe.pfc", "processed-jane_doe.jsonl"},
		{"C:/aol/screenname", "processed-screenname.jsonl"},
		{"mail.v7.PFC", "processed-mail_v7.jsonl"},
		{".pfc", "processed-cabinet.jsonl"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, FileName(tt.path))
		})
	}
}

func TestFileTrackerPersists(t *testing.T) {
	dir := t.TempDir()
	name := FileName("box.pfc")

	tracker, err := NewFileTracker(dir, name, true)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, name), tracker.Path())

	require.NoError(t, tracker.MarkProcessed("h1", "pfc-1"))
	require.NoError(t, tracker.MarkProcessed("h1", "pfc-1"))
	require.NoError(t, tracker.MarkProcessed("h2", "pfc-2"))
	require.NoError(t, tracker.MarkProcessed("", "pfc-3"))
	assert.True(t, tracker.AlreadyProcessed("h1"))
	assert.False(t, tracker.AlreadyProcessed(""))
	assert.Equal(t, 2, tracker.Snapshot().Processed)

	require.NoError(t, tracker.Close())
	require.NoError(t, tracker.Close())
	assert.ErrorIs(t, tracker.MarkProcessed("h4", "pfc-4"), ErrClosed)

	raw, err := os.ReadFile(tracker.Path())
	require.NoError(t, err)
	assert.Equal(t, "{\"hash\":\"h1\",\"message_id\":\"pfc-1\"}\n{\"hash\":\"h2\",\"message_id\":\"pfc-2\"}\n", string(raw))

	reloaded, err := NewFileTracker(dir, name, false)
	require.NoError(t, err)
	assert.True(t, reloaded.AlreadyProcessed("h2"))
	assert.Equal(t, 2, reloaded.Snapshot().Processed)
	require.NoError(t, reloaded.MarkProcessed("h5", "pfc-5"))
	require.NoError(t, reloaded.Close())

	other, err := NewFileTracker(dir, FileName("other.pfc"), false)
	require.NoError(t, err)
	assert.False(t, other.AlreadyProcessed("h1"))
}

func TestFileTrackerRejectsBadState(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.jsonl"), []byte("{\"hash\":\"ok\"}\n\nnot json\n"), 0o600))

	_, err := NewFileTracker(dir, "bad.jsonl", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")

	_, err = NewFileTracker("", "x.jsonl", false)
	require.Error(t, err)
	_, err = NewFileTracker(dir, " ", false)
	require.Error(t, err)
}
