package aggregator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nao1215/dnsblcheck/internal/digest"
	"github.com/nao1215/dnsblcheck/internal/fetcher"
	"github.com/nao1215/dnsblcheck/internal/model"
)

var (
	cleanImage   = []byte("clean status image")
	listedImage  = []byte("listed status image")
	unknownImage = []byte("something else entirely")
)

func testClassifier() *digest.Classifier {
	return digest.NewClassifier(digest.SumBytes(cleanImage), digest.SumBytes(listedImage))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubSource returns canned outcomes without network access.
type stubSource struct {
	outcomes map[string]fetcher.Outcome
}

func (s stubSource) Name() string { return "stub" }

func (s stubSource) Fetch(_ context.Context, refs []string) map[string]fetcher.Outcome {
	got := make(map[string]fetcher.Outcome)
	for _, ref := range refs {
		if out, ok := s.outcomes[ref]; ok {
			got[ref] = out
		}
	}
	return got
}

func ok(ref string, body []byte) fetcher.Outcome {
	return fetcher.Outcome{Reference: ref, Digest: digest.SumBytes(body), Size: int64(len(body))}
}

func TestIgnoreSet(t *testing.T) {
	t.Parallel()

	set := NewIgnoreSet("ips.backscatterer.org", "  Spam.Example  ", "")

	tests := []struct {
		name string
		in   string
		want bool
	}{
		{name: "exact", in: "ips.backscatterer.org", want: true},
		{name: "case folded", in: "IPS.Backscatterer.ORG", want: true},
		{name: "surrounding space", in: " spam.example ", want: true},
		{name: "substring is not member", in: "backscatterer.org", want: false},
		{name: "superstring is not member", in: "ips.backscatterer.org.evil", want: false},
		{name: "empty", in: "", want: false},
		{name: "unrelated", in: "zen.spamhaus.org", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := set.Contains(tt.in); got != tt.want {
				t.Errorf("Contains(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	if set.Len() != 2 {
		t.Errorf("Len() = %d, want 2", set.Len())
	}
	names := set.Names()
	if len(names) != 2 || names[0] != "ips.backscatterer.org" || names[1] != "spam.example" {
		t.Errorf("Names() = %v", names)
	}
}

func TestEmptyIgnoreSet(t *testing.T) {
	t.Parallel()

	var zero IgnoreSet
	if zero.Contains("anything") {
		t.Error("zero IgnoreSet should contain nothing")
	}
	if NewIgnoreSet().Contains("") {
		t.Error("empty IgnoreSet should contain nothing")
	}
	if !DefaultIgnoreSet().Contains("ips.backscatterer.org") {
		t.Error("default set should contain ips.backscatterer.org")
	}
}

func TestDecide(t *testing.T) {
	t.Parallel()

	rec := func(name string, status model.Status, ignored bool) model.ProviderRecord {
		return model.ProviderRecord{Name: name, Status: status, Ignored: ignored}
	}

	tests := []struct {
		name    string
		records []model.ProviderRecord
		want    bool
	}{
		{
			name:    "no providers",
			records: nil,
			want:    true,
		},
		{
			name: "all clean",
			records: []model.ProviderRecord{
				rec("A", model.StatusClean, false),
				rec("B", model.StatusClean, false),
			},
			want: true,
		},
		{
			name: "clean listed unknown",
			records: []model.ProviderRecord{
				rec("A", model.StatusClean, false),
				rec("B", model.StatusListed, false),
				rec("C", model.StatusUnknown, false),
			},
			want: false,
		},
		{
			name: "single unknown fails",
			records: []model.ProviderRecord{
				rec("A", model.StatusClean, false),
				rec("C", model.StatusUnknown, false),
			},
			want: false,
		},
		{
			name: "ignored unknown does not fail",
			records: []model.ProviderRecord{
				rec("A", model.StatusClean, false),
				rec("B", model.StatusClean, false),
				rec("C", model.StatusUnknown, true),
			},
			want: true,
		},
		{
			name: "ignored listed does not fail",
			records: []model.ProviderRecord{
				rec("A", model.StatusClean, false),
				rec("C", model.StatusListed, true),
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Decide(tt.records); got != tt.want {
				t.Errorf("Decide() = %v, want %v", got, tt.want)
			}

			reversed := make([]model.ProviderRecord, len(tt.records))
			for i, r := range tt.records {
				reversed[len(tt.records)-1-i] = r
			}
			if got := Decide(reversed); got != tt.want {
				t.Errorf("Decide(reversed) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecideAppliesIgnoreSet(t *testing.T) {
	t.Parallel()

	records := []model.ProviderRecord{
		{Name: "A", Status: model.StatusClean},
		{Name: "B", Status: model.StatusClean},
		{Name: "C", Status: model.StatusUnknown},
	}
	withIgnored := func(set IgnoreSet) []model.ProviderRecord {
		out := make([]model.ProviderRecord, len(records))
		for i, r := range records {
			r.Ignored = set.Contains(r.Name)
			out[i] = r
		}
		return out
	}

	if Decide(withIgnored(NewIgnoreSet())) {
		t.Error("unknown provider should fail with empty ignore set")
	}
	if !Decide(withIgnored(NewIgnoreSet("c"))) {
		t.Error("ignored unknown provider should not fail the verdict")
	}
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	records := []model.ProviderRecord{
		{Name: "clean.example", ImageURL: "http://img/clean"},
		{Name: "listed.example", ImageURL: "http://img/listed"},
		{Name: "odd.example", ImageURL: "http://img/odd"},
		{Name: "broken.example", ImageURL: "http://img/broken"},
		{Name: "absent.example", ImageURL: "http://img/absent"},
	}
	src := stubSource{outcomes: map[string]fetcher.Outcome{
		"http://img/clean":  ok("http://img/clean", cleanImage),
		"http://img/listed": ok("http://img/listed", listedImage),
		"http://img/odd":    ok("http://img/odd", unknownImage),
		"http://img/broken": {Reference: "http://img/broken", Err: errors.New("boom")},
	}}

	agg := New(src, WithClassifier(testClassifier()), WithIgnoreSet(NewIgnoreSet()), WithLogger(discardLogger()))
	got, verdict := agg.Evaluate(context.Background(), records)

	if verdict {
		t.Error("verdict should be false")
	}
	if len(got) != len(records) {
		t.Fatalf("got %d records, want %d", len(got), len(records))
	}

	want := []struct {
		status     model.Status
		hasDigest  bool
		fetchError string
	}{
		{status: model.StatusClean, hasDigest: true},
		{status: model.StatusListed, hasDigest: true},
		{status: model.StatusUnknown, hasDigest: true},
		{status: model.StatusUnknown, fetchError: "boom"},
		{status: model.StatusUnknown},
	}
	for i, w := range want {
		r := got[i]
		if r.Name != records[i].Name {
			t.Errorf("record %d name = %q, want %q (order changed)", i, r.Name, records[i].Name)
		}
		if r.Status != w.status {
			t.Errorf("record %d status = %v, want %v", i, r.Status, w.status)
		}
		if (r.Digest != "") != w.hasDigest {
			t.Errorf("record %d digest = %q, want present=%v", i, r.Digest, w.hasDigest)
		}
		if r.FetchError != w.fetchError {
			t.Errorf("record %d fetch error = %q, want %q", i, r.FetchError, w.fetchError)
		}
	}

	if records[0].Status != model.StatusUnknown {
		t.Error("Evaluate must not modify the input slice")
	}
}

func TestEvaluateIgnoreSet(t *testing.T) {
	t.Parallel()

	records := []model.ProviderRecord{
		{Name: "A", ImageURL: "http://img/a"},
		{Name: "B", ImageURL: "http://img/b"},
		{Name: "C", ImageURL: "http://img/c"},
	}
	src := stubSource{outcomes: map[string]fetcher.Outcome{
		"http://img/a": ok("http://img/a", cleanImage),
		"http://img/b": ok("http://img/b", cleanImage),
		"http://img/c": ok("http://img/c", unknownImage),
	}}

	agg := New(src, WithClassifier(testClassifier()), WithIgnoreSet(NewIgnoreSet("C")), WithLogger(discardLogger()))
	got, verdict := agg.Evaluate(context.Background(), records)

	if !verdict {
		t.Error("ignored unknown provider should not fail the verdict")
	}
	if !got[2].Ignored {
		t.Error("record C should be marked ignored")
	}
	if got[0].Ignored || got[1].Ignored {
		t.Error("records A and B should not be marked ignored")
	}
}

func TestEvaluateEmpty(t *testing.T) {
	t.Parallel()

	agg := New(stubSource{}, WithLogger(discardLogger()))
	got, verdict := agg.Evaluate(context.Background(), nil)
	if !verdict {
		t.Error("no providers should give a clean verdict")
	}
	if len(got) != 0 {
		t.Errorf("got %d records, want 0", len(got))
	}
}

func TestEvaluateSharedImage(t *testing.T) {
	t.Parallel()

	records := []model.ProviderRecord{
		{Name: "A", ImageURL: "http://img/same"},
		{Name: "B", ImageURL: "http://img/same"},
	}
	src := stubSource{outcomes: map[string]fetcher.Outcome{
		"http://img/same": ok("http://img/same", listedImage),
	}}

	agg := New(src, WithClassifier(testClassifier()), WithLogger(discardLogger()))
	got, verdict := agg.Evaluate(context.Background(), records)
	if verdict {
		t.Error("verdict should be false")
	}
	for i, r := range got {
		if r.Status != model.StatusListed {
			t.Errorf("record %d status = %v, want listed", i, r.Status)
		}
	}
}

func TestStrategiesAgree(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/clean.gif", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(cleanImage)
	})
	mux.HandleFunc("/listed.gif", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(listedImage)
	})
	mux.HandleFunc("/odd.gif", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(unknownImage)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	scenarios := []struct {
		name    string
		records []model.ProviderRecord
		ignore  IgnoreSet
		want    bool
	}{
		{
			name: "clean listed unknown",
			records: []model.ProviderRecord{
				{Name: "A", ImageURL: server.URL + "/clean.gif"},
				{Name: "B", ImageURL: server.URL + "/listed.gif"},
				{Name: "C", ImageURL: server.URL + "/odd.gif"},
			},
			ignore: NewIgnoreSet(),
			want:   false,
		},
		{
			name: "ignored unknown",
			records: []model.ProviderRecord{
				{Name: "A", ImageURL: server.URL + "/clean.gif"},
				{Name: "B", ImageURL: server.URL + "/clean.gif"},
				{Name: "C", ImageURL: server.URL + "/odd.gif"},
			},
			ignore: NewIgnoreSet("C"),
			want:   true,
		},
		{
			name: "unreachable image fails closed",
			records: []model.ProviderRecord{
				{Name: "A", ImageURL: server.URL + "/clean.gif"},
				{Name: "D", ImageURL: server.URL + "/missing.gif"},
			},
			ignore: NewIgnoreSet(),
			want:   false,
		},
	}

	f := fetcher.New(server.Client(), fetcher.WithLogger(discardLogger()))
	sources := []fetcher.Source{
		fetcher.NewSequential(f),
		fetcher.NewParallel(f),
		fetcher.NewParallel(f, fetcher.WithConcurrency(0)),
	}

	for _, sc := range scenarios {
		for _, src := range sources {
			t.Run(sc.name+"/"+src.Name(), func(t *testing.T) {
				t.Parallel()

				agg := New(src,
					WithClassifier(testClassifier()),
					WithIgnoreSet(sc.ignore),
					WithLogger(discardLogger()),
				)
				got, verdict := agg.Evaluate(context.Background(), sc.records)
				if verdict != sc.want {
					t.Errorf("verdict = %v, want %v", verdict, sc.want)
				}
				if len(got) != len(sc.records) {
					t.Errorf("got %d records, want %d", len(got), len(sc.records))
				}
			})
		}
	}
}

func TestNewDefaults(t *testing.T) {
	t.Parallel()

	agg := New(stubSource{})
	if agg.Strategy() != "stub" {
		t.Errorf("Strategy() = %q, want stub", agg.Strategy())
	}
	if agg.classifier.Clean() != digest.MustParseSum(digest.DefaultCleanHex) {
		t.Error("default classifier should use the default clean digest")
	}
	if !agg.ignore.Contains("ips.backscatterer.org") {
		t.Error("default ignore set should contain ips.backscatterer.org")
	}
}
