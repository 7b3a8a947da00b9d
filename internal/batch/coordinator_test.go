package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"reelpress/internal/article"
	"reelpress/internal/model"
	"reelpress/internal/publish"
	"reelpress/internal/storage"
)

type fakeMetadata struct {
	mu         sync.Mutex
	configured bool
	items      map[int64]model.Metadata
	errs       map[int64]error
	calls      []int64
	onFetch    func(sourceID int64)
}

func (f *fakeMetadata) Configured() bool { return f.configured }

func (f *fakeMetadata) FetchDetails(_ context.Context, sourceID int64, kind model.Kind) (*model.Metadata, error) {
	f.mu.Lock()
	f.calls = append(f.calls, sourceID)
	hook := f.onFetch
	f.mu.Unlock()
	if hook != nil {
		hook(sourceID)
	}

	if err := f.errs[sourceID]; err != nil {
		return nil, err
	}
	meta, ok := f.items[sourceID]
	if !ok {
		return nil, fmt.Errorf("details for %d: not found", sourceID)
	}
	if kind != model.KindAuto && meta.Kind != kind {
		return nil, fmt.Errorf("details for %d: wrong kind", sourceID)
	}
	return &meta, nil
}

type fakeImages struct {
	attached []int64
	err      error
}

func (f *fakeImages) AttachImages(_ context.Context, itemID int64, _ model.Metadata) (*model.Asset, error) {
	f.attached = append(f.attached, itemID)
	return nil, f.err
}

type recordingAnnouncer struct {
	items []int64
	err   error
}

func (r *recordingAnnouncer) Announce(_ context.Context, item *model.ContentItem, _ model.Metadata) error {
	r.items = append(r.items, item.SourceID)
	return r.err
}

type announceFunc func(ctx context.Context, item *model.ContentItem, meta model.Metadata) error

func (f announceFunc) Announce(ctx context.Context, item *model.ContentItem, meta model.Metadata) error {
	return f(ctx, item, meta)
}

type harness struct {
	store    *storage.SQLite
	metadata *fakeMetadata
	images   *fakeImages
	entries  *publish.Materializer
	coord    *Coordinator
}

func catalogue() map[int64]model.Metadata {
	return map[int64]model.Metadata{
		603: {SourceID: 603, Kind: model.KindMovie, Title: "The Matrix", Year: 1999,
			Genres: []string{"Action", "Science Fiction"}, Synopsis: "A hacker learns the truth."},
		238: {SourceID: 238, Kind: model.KindMovie, Title: "The Godfather", Year: 1972,
			Genres: []string{"Drama", "Crime"}},
		1396: {SourceID: 1396, Kind: model.KindSeries, Title: "Breaking Bad", Year: 2008,
			Genres: []string{"Drama"}},
	}
}

func newHarness(t *testing.T, announcers ...Announcer) *harness {
	t.Helper()
	store, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &harness{
		store:    store,
		metadata: &fakeMetadata{configured: true, items: catalogue(), errs: map[int64]error{}},
		images:   &fakeImages{},
		entries:  publish.NewDefault(store, log),
	}
	h.coord = New(Deps{
		Store:      store,
		Metadata:   h.metadata,
		Writer:     article.New(nil, log),
		Entries:    h.entries,
		Images:     h.images,
		Announcers: announcers,
	}, log)
	h.coord.SetItemDelay(0)
	return h
}

// seed materializes sourceID directly, outside any batch.
func (h *harness) seed(t *testing.T, sourceID int64) {
	t.Helper()
	meta := h.metadata.items[sourceID]
	if _, err := h.entries.Materialize(context.Background(), meta, model.Article{Body: article.Fallback(meta)}, "Hulu"); err != nil {
		t.Fatalf("seed %d: %v", sourceID, err)
	}
}

type counts struct {
	Total, Completed, Failed, Skipped, Progress int
	Status                                      model.BatchStatus
}

func countsOf(j *model.BatchJob) counts {
	return counts{
		Total:     j.Total,
		Completed: len(j.Completed),
		Failed:    len(j.Failed),
		Skipped:   len(j.Skipped),
		Progress:  j.Progress,
		Status:    j.Status,
	}
}

func TestRunEndToEnd(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seed(t, 238)

	job, err := h.coord.Run(ctx, Request{SourceIDs: []int64{603, 238}, Platform: "Netflix"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := counts{Total: 2, Completed: 1, Skipped: 1, Progress: 100, Status: model.BatchCompleted}
	if diff := cmp.Diff(want, countsOf(job)); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
	if job.FinishedAt == nil {
		t.Error("FinishedAt not set")
	}
	if diff := cmp.Diff([]int64{603}, h.metadata.calls); diff != "" {
		t.Errorf("existing item was fetched (-want +got):\n%s", diff)
	}

	item, err := h.entries.Exists(ctx, 603, model.KindMovie)
	if err != nil || item == nil {
		t.Fatalf("item 603 missing: %v", err)
	}
	if item.Body == "" {
		t.Error("item 603 has an empty body")
	}
	platform, err := h.entries.Platform(ctx, item.ID)
	if err != nil || platform != "Netflix" {
		t.Errorf("platform = %q, %v; want Netflix", platform, err)
	}
	if diff := cmp.Diff([]int64{item.ID}, job.ItemIDs); diff != "" {
		t.Errorf("item IDs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{item.ID}, h.images.attached); diff != "" {
		t.Errorf("images attached (-want +got):\n%s", diff)
	}

	polled, err := h.coord.Status(ctx, job.Token)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if diff := cmp.Diff(countsOf(job), countsOf(polled)); diff != "" {
		t.Errorf("polled snapshot differs (-want +got):\n%s", diff)
	}

	again, err := h.coord.Run(ctx, Request{SourceIDs: []int64{603}, Platform: "Netflix"})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	want = counts{Total: 1, Skipped: 1, Progress: 100, Status: model.BatchCompleted}
	if diff := cmp.Diff(want, countsOf(again)); diff != "" {
		t.Errorf("second run counts mismatch (-want +got):\n%s", diff)
	}
	if again.Token == job.Token {
		t.Error("tokens must be unique per submission")
	}
}

func TestRunRecordsFailuresAndContinues(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.metadata.errs[238] = errors.New("upstream timeout")

	job, err := h.coord.Run(ctx, Request{SourceIDs: []int64{238, 999, 603}, Platform: "Max", Kind: model.KindMovie})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := counts{Total: 3, Completed: 1, Failed: 2, Progress: 100, Status: model.BatchCompleted}
	if diff := cmp.Diff(want, countsOf(job)); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{603}, job.Completed); diff != "" {
		t.Errorf("completed mismatch (-want +got):\n%s", diff)
	}
	if job.Failed[0].SourceID != 238 || job.Failed[1].SourceID != 999 {
		t.Errorf("failed order = %+v", job.Failed)
	}
	if job.Processed() != job.Total {
		t.Errorf("processed %d of %d", job.Processed(), job.Total)
	}
}

func TestRunKindHint(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	job, err := h.coord.Run(ctx, Request{SourceIDs: []int64{1396}, Platform: "Netflix", Kind: "tv"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if job.Kind != model.KindSeries || len(job.Completed) != 1 {
		t.Fatalf("job = %+v", job)
	}
	// A movie with the same numeric ID is a different item.
	if existing, _ := h.entries.Exists(ctx, 1396, model.KindMovie); existing != nil {
		t.Error("series item must not claim the movie namespace")
	}
}

func TestProgressSavedAfterEveryItem(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	var token string
	var seen []int
	h.metadata.onFetch = func(int64) {
		job, err := h.coord.Status(ctx, token)
		if err != nil {
			t.Errorf("status during run: %v", err)
			return
		}
		seen = append(seen, job.Processed())
	}

	job, err := h.coord.Submit(ctx, Request{SourceIDs: []int64{603, 238, 1396}, Platform: "Netflix"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	token = job.Token
	if _, err := h.coord.Process(ctx, token); err != nil {
		t.Fatalf("process: %v", err)
	}
	if diff := cmp.Diff([]int{0, 1, 2}, seen); diff != "" {
		t.Errorf("progress observed by poller (-want +got):\n%s", diff)
	}
}

func TestAnnouncerFailureDoesNotFailItem(t *testing.T) {
	ann := &recordingAnnouncer{err: errors.New("graph api down")}
	h := newHarness(t, ann)
	h.images.err = errors.New("image host down")

	job, err := h.coord.Run(context.Background(), Request{SourceIDs: []int64{603, 238}, Platform: "Netflix"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(job.Completed) != 2 || len(job.Failed) != 0 {
		t.Errorf("job = %+v", countsOf(job))
	}
	if diff := cmp.Diff([]int64{603, 238}, ann.items); diff != "" {
		t.Errorf("announced (-want +got):\n%s", diff)
	}
}

func TestCancelLeavesProcessing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cancelAfterFirst := announceFunc(func(context.Context, *model.ContentItem, model.Metadata) error {
		cancel()
		return nil
	})
	h := newHarness(t, cancelAfterFirst)
	h.coord.SetItemDelay(time.Hour)

	job, err := h.coord.Run(ctx, Request{SourceIDs: []int64{603, 238}, Platform: "Netflix"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}

	stored, err := h.coord.Status(context.Background(), job.Token)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	want := counts{Total: 2, Completed: 1, Progress: 50, Status: model.BatchProcessing}
	if diff := cmp.Diff(want, countsOf(stored)); diff != "" {
		t.Errorf("stored counts mismatch (-want +got):\n%s", diff)
	}

	// Processing the same token again resumes where it stopped.
	resumed, err := h.coord.Process(context.Background(), job.Token)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	want = counts{Total: 2, Completed: 2, Progress: 100, Status: model.BatchCompleted}
	if diff := cmp.Diff(want, countsOf(resumed)); diff != "" {
		t.Errorf("resumed counts mismatch (-want +got):\n%s", diff)
	}
}

func TestItemDelayBetweenItems(t *testing.T) {
	h := newHarness(t)
	h.coord.SetItemDelay(time.Second)

	type pause struct {
		After int
		Delay time.Duration
	}
	var pauses []pause
	h.coord.sleep = func(_ context.Context, d time.Duration) error {
		pauses = append(pauses, pause{After: len(h.metadata.calls), Delay: d})
		return nil
	}

	job, err := h.coord.Run(context.Background(), Request{SourceIDs: []int64{603, 238, 1396}, Platform: "Netflix"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if job.Status != model.BatchCompleted {
		t.Fatalf("Status = %q, want completed", job.Status)
	}
	want := []pause{{After: 1, Delay: time.Second}, {After: 2, Delay: time.Second}}
	if diff := cmp.Diff(want, pauses); diff != "" {
		t.Errorf("pauses mismatch (-want +got):\n%s", diff)
	}
}

func TestStatusRejectsUnknownState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.store.SetOption(ctx, OptionPrefix+"batch_corrupt", `{"token":"batch_corrupt","status":"exploded"}`); err != nil {
		t.Fatalf("seed option: %v", err)
	}
	if _, err := h.coord.Status(ctx, "batch_corrupt"); err == nil {
		t.Error("Status() error = nil, want unknown status error")
	}
	if _, err := h.coord.Process(ctx, "batch_corrupt"); err == nil {
		t.Error("Process() error = nil, want unknown status error")
	}
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{name: "empty", req: Request{Platform: "Netflix"}, wantErr: ErrInvalidRequest},
		{name: "too many", req: Request{SourceIDs: []int64{1, 2, 3, 4, 5, 6}, Platform: "Netflix"}, wantErr: ErrInvalidRequest},
		{name: "non-positive", req: Request{SourceIDs: []int64{603, 0}, Platform: "Netflix"}, wantErr: ErrInvalidRequest},
		{name: "missing platform", req: Request{SourceIDs: []int64{603}, Platform: "  "}, wantErr: ErrInvalidRequest},
		{name: "unknown kind", req: Request{SourceIDs: []int64{603}, Platform: "Netflix", Kind: "podcast"}, wantErr: ErrInvalidRequest},
		{name: "five is fine", req: Request{SourceIDs: []int64{1, 2, 3, 4, 5}, Platform: "Netflix"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			job, err := h.coord.Submit(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Submit() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && (job.Status != model.BatchProcessing || job.Kind != model.KindAuto) {
				t.Errorf("job = %+v", job)
			}
		})
	}
}

func TestSubmitNotConfigured(t *testing.T) {
	h := newHarness(t)
	h.metadata.configured = false

	_, err := h.coord.Submit(context.Background(), Request{SourceIDs: []int64{603}, Platform: "Netflix"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("Submit() error = %v, want ErrNotConfigured", err)
	}
}

func TestStatusUnknownToken(t *testing.T) {
	h := newHarness(t)
	for _, token := range []string{"", "batch_missing"} {
		if _, err := h.coord.Status(context.Background(), token); !errors.Is(err, ErrJobNotFound) {
			t.Errorf("Status(%q) error = %v, want ErrJobNotFound", token, err)
		}
	}
}

func TestBudget(t *testing.T) {
	h := newHarness(t)
	h.coord.SetItemDelay(2 * time.Second)
	h.coord.SetItemBudget(90 * time.Second)

	tests := []struct {
		n    int
		want time.Duration
	}{
		{n: 0, want: 0},
		{n: 1, want: 90 * time.Second},
		{n: 5, want: 5*90*time.Second + 4*2*time.Second},
	}
	for _, tt := range tests {
		if got := h.coord.Budget(tt.n); got != tt.want {
			t.Errorf("Budget(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestSummary(t *testing.T) {
	job := &model.BatchJob{Completed: []int64{1, 2}, Failed: []model.FailedItem{{SourceID: 3}}, Skipped: []int64{}}
	if got, want := Summary(job), "2 created, 1 failed, 0 skipped"; got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
}
