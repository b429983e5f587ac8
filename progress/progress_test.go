package progress

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhcgn/pfc-export/stats"
)

type stream struct {
	names []string
}

func (s *stream) SubscribeStats(name string, _ func(context.Context, <-chan stats.Event) error) {
	s.names = append(s.names, name)
}

func TestDisabledBarsAreNoops(t *testing.T) {
	bar := New(10, 0, "debug")
	assert.False(t, bar.Enabled())
	bar.Update(stats.Event{Type: stats.EventTypeScanned})
	bar.Stop()

	assert.False(t, New(0, 0, "info").Enabled(), "nothing to process")

	read := NewReadBar("Reading", false)
	read.Update(50)
	read.Stop()

	var nilBar *Bar
	assert.False(t, nilBar.Enabled())
}

func TestProgressReporterSubscribesOnlyWhenEnabled(t *testing.T) {
	s := &stream{}
	NewProgressReporter(s, New(10, 0, "warn"), nil)
	assert.Empty(t, s.names)
}

func TestSubscriberDrainsUntilClosed(t *testing.T) {
	bar := New(2, 0, "error")
	events := make(chan stats.Event, 2)
	events <- stats.Event{Type: stats.EventTypeScanned}
	events <- stats.Event{Type: stats.EventTypeFiltered}
	close(events)

	require.NoError(t, bar.Subscriber(context.Background(), events))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, bar.Subscriber(ctx, make(chan stats.Event)), context.Canceled)
}
