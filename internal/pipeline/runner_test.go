package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/skinlytics/skinlytics/internal/config"
	"github.com/skinlytics/skinlytics/internal/dedup"
	"github.com/skinlytics/skinlytics/internal/model"
	"github.com/skinlytics/skinlytics/internal/source"
	"github.com/skinlytics/skinlytics/internal/storage"
)

type fakeRecord struct {
	item    model.Item
	listing model.Listing
	err     error
}

func (r fakeRecord) Normalize() (model.Item, model.Listing, error) {
	return r.item, r.listing, r.err
}

func record(name, nativeID string, price int64) fakeRecord {
	return fakeRecord{
		item: model.Item{MarketHashName: name, DisplayName: name},
		listing: model.Listing{
			MarketHashName: name,
			Source:         model.SourceFloatMarket,
			NativeID:       nativeID,
			PriceCents:     price,
			ObservedAt:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
	}
}

// fakeAdapter serves pre-built pages addressed by numeric cursor and can
// inject one quota rejection at a chosen request index.
type fakeAdapter struct {
	src        model.Source
	pages      []*source.Page
	rejectAt   int // request index that gets a one-shot 429; 0 = never
	fatalErr   error
	requests   int
	rejectSent bool
}

func (a *fakeAdapter) Source() model.Source { return a.src }

func (a *fakeAdapter) FetchPage(_ context.Context, cursor string) (*source.Page, error) {
	a.requests++
	if a.fatalErr != nil {
		return nil, a.fatalErr
	}
	if a.rejectAt > 0 && a.requests == a.rejectAt && !a.rejectSent {
		a.rejectSent = true
		return nil, &source.APIError{StatusCode: 429, Message: "quota exceeded"}
	}
	idx := 0
	if cursor != "" {
		var err error
		idx, err = strconv.Atoi(cursor)
		if err != nil {
			return nil, fmt.Errorf("bad cursor %q", cursor)
		}
	}
	return a.pages[idx], nil
}

func pagesOf(records []source.Record, perPage int) []*source.Page {
	var pages []*source.Page
	for start := 0; start < len(records); start += perPage {
		end := start + perPage
		if end > len(records) {
			end = len(records)
		}
		pages = append(pages, &source.Page{Records: records[start:end]})
	}
	for i := range pages[:len(pages)-1] {
		pages[i].NextCursor = strconv.Itoa(i + 1)
	}
	return pages
}

type fakeLimiter struct {
	mu        sync.Mutex
	acquires  int
	penalties int
	successes int
}

func (l *fakeLimiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	l.acquires++
	l.mu.Unlock()
	return ctx.Err()
}

func (l *fakeLimiter) Penalize() {
	l.mu.Lock()
	l.penalties++
	l.mu.Unlock()
}

func (l *fakeLimiter) Success() {
	l.mu.Lock()
	l.successes++
	l.mu.Unlock()
}

type fakeWriter struct {
	mu       sync.Mutex
	written  []model.Listing
	inactive map[model.Source][]string
}

func (w *fakeWriter) Write(_ context.Context, _ model.Item, listing model.Listing) (storage.WriteResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, prev := range w.written {
		if prev.Source == listing.Source && prev.NativeID == listing.NativeID && prev.Fingerprint == listing.Fingerprint {
			return storage.WriteResult{Outcome: storage.OutcomeDuplicate}, nil
		}
	}
	w.written = append(w.written, listing)
	return storage.WriteResult{Outcome: storage.OutcomeInserted}, nil
}

func (w *fakeWriter) MarkInactive(_ context.Context, src model.Source, seen []string) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inactive == nil {
		w.inactive = make(map[model.Source][]string)
	}
	w.inactive[src] = seen
	return 0, nil
}

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
	}
}

func newTestRunner(tasks []SourceTask, writer ListingWriter, cfg config.PipelineConfig) *Runner {
	return NewRunner(tasks, writer, dedup.NewCache(1000), cfg, nil)
}

func TestRunCycle_QuotaRejectionDelaysNotErrors(t *testing.T) {
	// 20 pages of 2 records with a 429 injected mid-walk. The cycle
	// must absorb the rejection: same cursor retried, nothing dropped.
	var records []source.Record
	for i := 0; i < 40; i++ {
		records = append(records, record(
			fmt.Sprintf("Item %02d", i), fmt.Sprintf("native-%02d", i), int64(1000+i)))
	}

	adapter := &fakeAdapter{src: model.SourceFloatMarket, pages: pagesOf(records, 2), rejectAt: 10}
	limiter := &fakeLimiter{}
	writer := &fakeWriter{}

	r := newTestRunner([]SourceTask{{Adapter: adapter, Limiter: limiter}}, writer, testPipelineConfig())
	summary, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	stats := summary.Sources[model.SourceFloatMarket]
	if stats.Failed {
		t.Fatalf("source failed: %s", stats.FailureReason)
	}
	if stats.Errored != 0 {
		t.Errorf("Errored = %d, want 0", stats.Errored)
	}
	if stats.Accepted != 40 {
		t.Errorf("Accepted = %d, want 40", stats.Accepted)
	}
	if limiter.penalties != 1 {
		t.Errorf("penalties = %d, want 1", limiter.penalties)
	}
	// 20 pages + 1 rejected request.
	if adapter.requests != 21 {
		t.Errorf("requests = %d, want 21", adapter.requests)
	}
	if summary.Status() != "completed" {
		t.Errorf("Status = %q, want completed", summary.Status())
	}
}

func TestRunCycle_MalformedRecordRejectedOthersKept(t *testing.T) {
	records := []source.Record{
		record("Item A", "native-a", 100),
		fakeRecord{err: &source.RejectError{Reason: "missing price field"}},
		record("Item B", "native-b", 200),
	}

	adapter := &fakeAdapter{src: model.SourceFloatMarket, pages: pagesOf(records, 3)}
	writer := &fakeWriter{}

	r := newTestRunner([]SourceTask{{Adapter: adapter, Limiter: &fakeLimiter{}}}, writer, testPipelineConfig())
	summary, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	stats := summary.Sources[model.SourceFloatMarket]
	if stats.Rejected != 1 {
		t.Errorf("Rejected = %d, want 1", stats.Rejected)
	}
	if stats.Accepted != 2 {
		t.Errorf("Accepted = %d, want 2", stats.Accepted)
	}
	if len(writer.written) != 2 {
		t.Errorf("written = %d listings, want 2", len(writer.written))
	}
}

func TestRunCycle_SourceFailureIsolated(t *testing.T) {
	healthy := &fakeAdapter{
		src:   model.SourceStorefront,
		pages: pagesOf([]source.Record{record("Item A", "native-a", 100)}, 1),
	}
	broken := &fakeAdapter{
		src:      model.SourceFloatMarket,
		fatalErr: &source.APIError{StatusCode: 401, Message: "bad credential"},
	}

	writer := &fakeWriter{}
	r := newTestRunner([]SourceTask{
		{Adapter: healthy, Limiter: &fakeLimiter{}},
		{Adapter: broken, Limiter: &fakeLimiter{}},
	}, writer, testPipelineConfig())

	summary, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if !summary.Sources[model.SourceFloatMarket].Failed {
		t.Error("broken source not marked failed")
	}
	if summary.Sources[model.SourceStorefront].Failed {
		t.Error("healthy source marked failed")
	}
	if summary.Sources[model.SourceStorefront].Accepted != 1 {
		t.Error("healthy source did not complete")
	}
	if summary.Status() != "partial" {
		t.Errorf("Status = %q, want partial", summary.Status())
	}
}

func TestRunCycle_TransientErrorExhaustsRetries(t *testing.T) {
	adapter := &fakeAdapter{
		src:      model.SourceAggregator,
		fatalErr: &source.APIError{StatusCode: 502, Message: "bad gateway"},
	}
	limiter := &fakeLimiter{}

	r := newTestRunner([]SourceTask{{Adapter: adapter, Limiter: limiter}}, &fakeWriter{}, testPipelineConfig())
	summary, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	stats := summary.Sources[model.SourceAggregator]
	if !stats.Failed {
		t.Fatal("source not marked failed after retry exhaustion")
	}
	// Initial attempt plus MaxRetries.
	if adapter.requests != 4 {
		t.Errorf("requests = %d, want 4", adapter.requests)
	}
}

func TestRunCycle_SeenFingerprintsKeepDuplicatesActive(t *testing.T) {
	// The same offer on two pages: second sighting is a duplicate but
	// its fingerprint must still reach MarkInactive as seen.
	records := []source.Record{
		record("Item A", "native-a", 100),
		record("Item A", "native-a", 100),
	}

	adapter := &fakeAdapter{src: model.SourceFloatMarket, pages: pagesOf(records, 1)}
	writer := &fakeWriter{}

	r := newTestRunner([]SourceTask{{Adapter: adapter, Limiter: &fakeLimiter{}}}, writer, testPipelineConfig())
	summary, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	stats := summary.Sources[model.SourceFloatMarket]
	if stats.Accepted != 1 || stats.Duplicate != 1 {
		t.Errorf("Accepted = %d, Duplicate = %d, want 1 and 1", stats.Accepted, stats.Duplicate)
	}
	seen := writer.inactive[model.SourceFloatMarket]
	if len(seen) != 2 {
		t.Errorf("seen fingerprints = %d, want 2", len(seen))
	}
}

func TestRunCycle_EmptyFeedStillMarksInactive(t *testing.T) {
	// A source whose feed emptied out completely: MarkInactive must
	// still run, and with a non-nil slice so the store sees an empty
	// array rather than a NULL that matches nothing.
	adapter := &fakeAdapter{
		src:   model.SourceStorefront,
		pages: []*source.Page{{Records: nil}},
	}
	writer := &fakeWriter{}

	r := newTestRunner([]SourceTask{{Adapter: adapter, Limiter: &fakeLimiter{}}}, writer, testPipelineConfig())
	summary, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if summary.Sources[model.SourceStorefront].Failed {
		t.Fatal("empty feed marked the source failed")
	}
	seen, called := writer.inactive[model.SourceStorefront]
	if !called {
		t.Fatal("MarkInactive not called for an empty feed")
	}
	if seen == nil {
		t.Error("seen fingerprints slice is nil, want empty non-nil")
	}
	if len(seen) != 0 {
		t.Errorf("seen fingerprints = %v, want none", seen)
	}
}

func TestRunCycle_TruncatedCycleSkipsMarkInactive(t *testing.T) {
	var records []source.Record
	for i := 0; i < 10; i++ {
		records = append(records, record(fmt.Sprintf("Item %d", i), fmt.Sprintf("native-%d", i), 100))
	}

	adapter := &fakeAdapter{src: model.SourceFloatMarket, pages: pagesOf(records, 1)}
	writer := &fakeWriter{}

	cfg := testPipelineConfig()
	cfg.MaxPages = 3
	r := newTestRunner([]SourceTask{{Adapter: adapter, Limiter: &fakeLimiter{}}}, writer, cfg)

	summary, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	stats := summary.Sources[model.SourceFloatMarket]
	if !stats.Truncated {
		t.Error("cycle not marked truncated")
	}
	if stats.Accepted != 3 {
		t.Errorf("Accepted = %d, want 3", stats.Accepted)
	}
	if _, called := writer.inactive[model.SourceFloatMarket]; called {
		t.Error("MarkInactive called after a truncated walk")
	}
}
