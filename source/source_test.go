package source_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhcgn/pfc-export/block"
	"github.com/dhcgn/pfc-export/cabinet"
	"github.com/dhcgn/pfc-export/cabinet/cabinettest"
	"github.com/dhcgn/pfc-export/config"
	"github.com/dhcgn/pfc-export/filter"
	"github.com/dhcgn/pfc-export/model"
	"github.com/dhcgn/pfc-export/runner"
	"github.com/dhcgn/pfc-export/source"
	"github.com/dhcgn/pfc-export/state"
	"github.com/dhcgn/pfc-export/stats"
)

func mailData(subject string) []byte {
	return cabinettest.Data([]block.SubItem{
		cabinettest.MailMarker(),
		cabinettest.Str(5, "12/2/01"),
		cabinettest.Str(6, "a@x.com"),
		cabinettest.Str(10, subject),
	})
}

// fixture lays out:
//
//	Mail
//	  hello (mail, seen)
//	  Saved
//	    spam offer (mail)
//	    broken (mail, truncated)
//	  empty (mail envelope without data)
func fixture(t *testing.T) *cabinet.Container {
	t.Helper()
	b := cabinettest.New()
	b.Add(nil)
	root := b.Add(nil)
	m1 := b.Add(nil)
	m1Data := b.Add(mailData("hello"))
	saved := b.Add(nil)
	m2 := b.Add(nil)
	m2Data := b.Add(mailData("spam offer"))
	m3 := b.Add(nil)
	body := block.Append(nil, cabinettest.MailMarker())
	m3Data := b.Add(block.Frame(append(body, 10, 0, 9, 50, 0, 0, 0)))
	empty := b.Add(nil)

	b.Set(root, cabinettest.Envelope{Folder: true, Label: "Mail", Child: m1}.Bytes())
	b.Set(m1, cabinettest.Envelope{Kind: 7, Flags: cabinet.FlagSeen, Data: m1Data, Next: saved, Parent: root}.Bytes())
	b.Set(saved, cabinettest.Envelope{Folder: true, Label: "Saved", Child: m2, Next: empty, Parent: root}.Bytes())
	b.Set(m2, cabinettest.Envelope{Kind: 7, Data: m2Data, Next: m3, Parent: saved}.Bytes())
	b.Set(m3, cabinettest.Envelope{Kind: 7, Data: m3Data, Parent: saved}.Bytes())
	b.Set(empty, cabinettest.Envelope{Kind: 7, Parent: root}.Bytes())

	raw := b.Bytes()
	c, err := cabinet.Read(context.Background(), bytes.NewReader(raw), int64(len(raw)), cabinet.Options{})
	require.NoError(t, err)
	return c
}

func collect(t *testing.T, r source.Reader) []model.Envelope {
	t.Helper()
	out := make(chan model.Envelope, 16)
	require.NoError(t, r.Stream(context.Background(), out))
	close(out)

	var envs []model.Envelope
	for env := range out {
		envs = append(envs, env)
	}
	return envs
}

func TestStreamFolderTree(t *testing.T) {
	r, err := source.NewReader(fixture(t), source.Options{}, nil)
	require.NoError(t, err)

	n, err := r.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	envs := collect(t, r)
	require.Len(t, envs, 3)

	assert.NoError(t, envs[0].Err)
	assert.Equal(t, "pfc-2", envs[0].Message.ID)
	assert.Equal(t, "", envs[0].Message.Folder)
	assert.True(t, envs[0].Message.Seen)
	assert.Contains(t, string(envs[0].Message.Raw), "Subject: hello")

	assert.NoError(t, envs[1].Err)
	assert.Equal(t, "Saved", envs[1].Message.Folder)
	assert.False(t, envs[1].Message.Seen)

	assert.ErrorIs(t, envs[2].Err, block.ErrTruncatedSubItem)
	assert.Equal(t, "pfc-7", envs[2].Message.ID)
}

func TestStreamSubFolder(t *testing.T) {
	r, err := source.NewReader(fixture(t), source.Options{Folder: "saved"}, nil)
	require.NoError(t, err)

	envs := collect(t, r)
	require.Len(t, envs, 2)
	assert.Equal(t, "", envs[0].Message.Folder)

	_, err = source.NewReader(fixture(t), source.Options{Folder: "Nope"}, nil)
	require.ErrorIs(t, err, cabinet.ErrNoSuchChild)
}

func TestStreamAll(t *testing.T) {
	r, err := source.NewReader(fixture(t), source.Options{All: true}, nil)
	require.NoError(t, err)

	n, err := r.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	envs := collect(t, r)
	require.Len(t, envs, 3)
	assert.Equal(t, "pfc-3", envs[0].Message.ID)
	assert.False(t, envs[0].Message.Seen, "data records carry no flags")
}

func TestStreamCancelled(t *testing.T) {
	r, err := source.NewReader(fixture(t), source.Options{}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, r.Stream(ctx, make(chan model.Envelope)), context.Canceled)
}

func TestProducerFiltersAndFeedsRunner(t *testing.T) {
	r := runner.NewWithTracker(config.Config{}, state.NewMemoryTracker(), nil)

	reader, err := source.NewReader(fixture(t), source.Options{
		Filter: filter.Options{ExcludeHeader: []string{"(?i)subject: spam"}},
	}, nil)
	require.NoError(t, err)

	// Counting walks the whole cabinet before any subscriber is attached;
	// the stage must not start until after that.
	total, err := reader.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	summary := stats.NewReporter(r, nil)
	late := stats.NewCollector()
	r.SubscribeStats("late", func(ctx context.Context, events <-chan stats.Event) error {
		late.Run(ctx, events)
		return nil
	})

	producer := source.NewProducer(reader, r)
	assert.Same(t, reader, producer.Reader())

	var got []model.Message
	r.AddStage("sink", func(ctx context.Context) error {
		for msg := range r.Uploads() {
			got = append(got, msg)
		}
		return nil
	})

	require.NoError(t, r.Start())
	require.Len(t, got, 1)
	assert.Equal(t, "pfc-2", got[0].ID)

	for _, s := range []stats.Summary{summary.Summary(), late.Snapshot()} {
		assert.Equal(t, 1, s.Scanned)
		assert.Equal(t, 1, s.Filtered)
		assert.Equal(t, 1, s.Enqueued)
		assert.Equal(t, 1, s.Errors)
		assert.Equal(t, total, s.Scanned+s.Filtered+s.Errors)
	}
}
