package filter_test

import (
	"strings"
	"testing"

	"github.com/dhcgn/pfc-export/content"
	"github.com/dhcgn/pfc-export/convert"
	"github.com/dhcgn/pfc-export/filter"
)

// renderedMessage is an AOL mail item as the upload pipeline sees it.
func renderedMessage(b *testing.B, bodyLines int) (header, body []byte) {
	b.Helper()
	msg := &content.MailMessage{
		DateString: "12/2/2001 6:18:53 PM Eastern Standard Time",
		From:       "PenPal42",
		To:         "someone@example.com",
		Subject:    "Weekend plans",
		Body:       strings.Repeat("See you at the lake<BR>bring snacks &amp; a towel<BR>", bodyLines),
	}
	raw, err := convert.Render(msg, "1.bench@pfc-export.invalid")
	if err != nil {
		b.Fatal(err)
	}
	header, body = filter.SplitRawMessage(raw)
	if len(header) == 0 || len(body) == 0 {
		b.Fatal("rendered message did not split")
	}
	return header, body
}

func benchmarkAllows(b *testing.B, opts filter.Options, bodyLines int) {
	f, err := filter.New(opts)
	if err != nil {
		b.Fatal(err)
	}
	header, body := renderedMessage(b, bodyLines)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Allows(header, body)
	}
}

func BenchmarkAllowsNoFilters(b *testing.B) {
	benchmarkAllows(b, filter.Options{}, 4)
}

func BenchmarkAllowsIncludeScreenName(b *testing.B) {
	benchmarkAllows(b, filter.Options{IncludeHeader: []string{`(?m)^From: PenPal\d+`}}, 4)
}

// Every pattern matches, so each call records a hit per pattern.
func BenchmarkAllowsExcludeCountsHits(b *testing.B) {
	benchmarkAllows(b, filter.Options{
		ExcludeHeader: []string{"Weekend", "PenPal", "(?i)message-id"},
		ExcludeBody:   []string{"lake", "towel"},
	}, 4)
}

func BenchmarkAllowsLongBody(b *testing.B) {
	benchmarkAllows(b, filter.Options{ExcludeBody: []string{"(?i)unsubscribe"}}, 2000)
}

func BenchmarkSplitRenderedMessage(b *testing.B) {
	msg := &content.MailMessage{
		DateString: "12/2/01",
		From:       "a@x.com",
		Subject:    "Hi",
		Body:       strings.Repeat("hello<BR>", 500),
	}
	raw, err := convert.Render(msg, "2.bench@pfc-export.invalid")
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		filter.SplitRawMessage(raw)
	}
}

func TestExcludeHitsOnRenderedMessage(t *testing.T) {
	f, err := filter.New(filter.Options{ExcludeHeader: []string{"Weekend", "nomatch"}})
	if err != nil {
		t.Fatal(err)
	}
	raw, err := convert.Render(&content.MailMessage{From: "PenPal42", Subject: "Weekend plans", Body: "hi"}, "3.t@pfc-export.invalid")
	if err != nil {
		t.Fatal(err)
	}
	header, body := filter.SplitRawMessage(raw)
	if f.Allows(header, body) {
		t.Fatal("expected the rendered subject to be excluded")
	}
	st := f.GetStats()
	if st.ExcludeHeaderHits["Weekend"] != 1 || st.ExcludeHeaderHits["nomatch"] != 0 {
		t.Errorf("ExcludeHeaderHits = %v", st.ExcludeHeaderHits)
	}
}
