// Package batch runs small ordered batches of source IDs through the fetch, generate,
// materialize and attach pipeline and keeps a pollable progress record for each run.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"reelpress/internal/model"
	"reelpress/internal/publish"
	"reelpress/internal/storage"
)

// MaxItems is the largest number of source IDs accepted in one batch.
const MaxItems = 5

// OptionPrefix namespaces progress records in the options table.
const OptionPrefix = "batch_progress_"

// Default pacing.
const (
	DefaultItemDelay  = 2 * time.Second
	DefaultItemBudget = 90 * time.Second
)

var (
	// ErrInvalidRequest is returned by Submit for malformed requests.
	ErrInvalidRequest = errors.New("invalid batch request")
	// ErrNotConfigured is returned by Submit when no metadata credentials are set.
	ErrNotConfigured = errors.New("metadata source is not configured: set TMDB_API_KEY")
	// ErrJobNotFound is returned for unknown batch tokens.
	ErrJobNotFound = errors.New("batch not found")
)

// MetadataSource fetches details for one source ID.
type MetadataSource interface {
	Configured() bool
	FetchDetails(ctx context.Context, sourceID int64, kind model.Kind) (*model.Metadata, error)
}

// Writer produces an article for fetched metadata. It must not fail.
type Writer interface {
	Generate(ctx context.Context, meta model.Metadata) model.Article
}

// Entries checks for and creates content items.
type Entries interface {
	Exists(ctx context.Context, sourceID int64, kind model.Kind) (*model.ContentItem, error)
	Materialize(ctx context.Context, meta model.Metadata, art model.Article, platform string) (publish.Result, error)
}

// Images attaches downloaded images to a freshly created item.
type Images interface {
	AttachImages(ctx context.Context, itemID int64, meta model.Metadata) (*model.Asset, error)
}

// Announcer is told about every item a batch creates. Failures are logged and never
// change the batch outcome.
type Announcer interface {
	Announce(ctx context.Context, item *model.ContentItem, meta model.Metadata) error
}

// Request is one batch submission.
type Request struct {
	SourceIDs []int64
	Platform  string
	Kind      model.Kind
}

// Deps are the collaborators of a Coordinator. Images and Announcers are optional.
type Deps struct {
	Store      storage.Storage
	Metadata   MetadataSource
	Writer     Writer
	Entries    Entries
	Images     Images
	Announcers []Announcer
}

// Coordinator submits and processes batches.
type Coordinator struct {
	store      storage.Storage
	metadata   MetadataSource
	writer     Writer
	entries    Entries
	images     Images
	announcers []Announcer
	log        *slog.Logger

	itemDelay  time.Duration
	itemBudget time.Duration
	now        func() time.Time
	newToken   func() string
	sleep      func(ctx context.Context, d time.Duration) error
}

// New creates a Coordinator with the default pacing.
func New(d Deps, log *slog.Logger) *Coordinator {
	return &Coordinator{
		store:      d.Store,
		metadata:   d.Metadata,
		writer:     d.Writer,
		entries:    d.Entries,
		images:     d.Images,
		announcers: d.Announcers,
		log:        log.With("component", "batch"),
		itemDelay:  DefaultItemDelay,
		itemBudget: DefaultItemBudget,
		now:        func() time.Time { return time.Now().UTC() },
		newToken:   func() string { return "batch_" + uuid.NewString() },
		sleep:      sleep,
	}
}

// SetItemDelay overrides the pause between two items.
func (c *Coordinator) SetItemDelay(d time.Duration) {
	c.itemDelay = d
}

// SetItemBudget overrides the time allowed for a single item.
func (c *Coordinator) SetItemBudget(d time.Duration) {
	c.itemBudget = d
}

// Budget returns how long a caller should allow a batch of n items to run.
func (c *Coordinator) Budget(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n)*c.itemBudget + time.Duration(n-1)*c.itemDelay
}

// Submit validates req and stores a new processing record for it.
func (c *Coordinator) Submit(ctx context.Context, req Request) (*model.BatchJob, error) {
	kind, err := validate(&req)
	if err != nil {
		return nil, err
	}
	if c.metadata == nil || !c.metadata.Configured() {
		return nil, ErrNotConfigured
	}

	now := c.now()
	job := &model.BatchJob{
		Token:     c.newToken(),
		SourceIDs: req.SourceIDs,
		Platform:  req.Platform,
		Kind:      kind,
		Status:    model.BatchProcessing,
		Total:     len(req.SourceIDs),
		Completed: []int64{},
		Failed:    []model.FailedItem{},
		Skipped:   []int64{},
		ItemIDs:   []int64{},
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := c.save(ctx, job); err != nil {
		return nil, err
	}
	c.log.Info("batch submitted", "batch", job.Token, "total", job.Total, "platform", job.Platform, "kind", kind)
	return job, nil
}

func validate(req *Request) (model.Kind, error) {
	switch {
	case len(req.SourceIDs) == 0:
		return "", fmt.Errorf("%w: at least one source ID is required", ErrInvalidRequest)
	case len(req.SourceIDs) > MaxItems:
		return "", fmt.Errorf("%w: at most %d source IDs per batch, got %d", ErrInvalidRequest, MaxItems, len(req.SourceIDs))
	}
	for _, id := range req.SourceIDs {
		if id <= 0 {
			return "", fmt.Errorf("%w: source ID %d must be positive", ErrInvalidRequest, id)
		}
	}
	req.Platform = strings.TrimSpace(req.Platform)
	if req.Platform == "" {
		return "", fmt.Errorf("%w: platform is required", ErrInvalidRequest)
	}
	kind, ok := model.ParseKind(string(req.Kind))
	if !ok {
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidRequest, req.Kind)
	}
	return kind, nil
}

// Run submits req and processes it to completion.
func (c *Coordinator) Run(ctx context.Context, req Request) (*model.BatchJob, error) {
	job, err := c.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.Process(ctx, job.Token)
}

// Status returns the latest snapshot of a batch.
func (c *Coordinator) Status(ctx context.Context, token string) (*model.BatchJob, error) {
	if token == "" {
		return nil, ErrJobNotFound
	}
	raw, err := c.store.GetOption(ctx, OptionPrefix+token)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load batch: %w", err)
	}
	var job model.BatchJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("decode batch %s: %w", token, err)
	}
	if !job.Status.IsValid() {
		return nil, fmt.Errorf("decode batch %s: unknown status %q", token, job.Status)
	}
	return &job, nil
}

// Process runs every remaining item of a batch in order. Item failures are recorded in
// the job and never returned. A cancelled ctx stops the loop and leaves the record in
// the processing state; the returned job is the last saved snapshot.
func (c *Coordinator) Process(ctx context.Context, token string) (*model.BatchJob, error) {
	job, err := c.Status(ctx, token)
	if err != nil {
		return nil, err
	}
	if job.Status == model.BatchCompleted {
		return job, nil
	}

	for i := job.Processed(); i < job.Total; i++ {
		if err := ctx.Err(); err != nil {
			return job, err
		}
		id := job.SourceIDs[i]
		job.Current = id
		if err := c.save(ctx, job); err != nil {
			return job, err
		}

		itemID, skipped, err := c.processItem(ctx, job, id)
		if err != nil && ctx.Err() != nil {
			return job, ctx.Err()
		}
		switch {
		case err != nil:
			c.log.Error("batch item failed", "batch", job.Token, "source_id", id, "platform", job.Platform, "error", err)
			job.Failed = append(job.Failed, model.FailedItem{SourceID: id, Reason: err.Error()})
		case skipped:
			c.log.Info("batch item skipped, already exists", "batch", job.Token, "source_id", id, "item_id", itemID)
			job.Skipped = append(job.Skipped, id)
		default:
			job.Completed = append(job.Completed, id)
			job.ItemIDs = append(job.ItemIDs, itemID)
		}
		job.Progress = job.Processed() * 100 / job.Total
		// The item is done even if ctx was cancelled meanwhile; record it.
		if err := c.save(context.WithoutCancel(ctx), job); err != nil {
			return job, err
		}

		if i < job.Total-1 {
			if err := c.sleep(ctx, c.itemDelay); err != nil {
				return job, err
			}
		}
	}

	finished := c.now()
	job.Status = model.BatchCompleted
	job.Progress = 100
	job.Current = 0
	job.FinishedAt = &finished
	if err := c.save(ctx, job); err != nil {
		return job, err
	}
	c.log.Info("batch completed", "batch", job.Token, "summary", Summary(job))
	return job, nil
}

// processItem returns the created or existing item ID and whether the item was skipped.
func (c *Coordinator) processItem(ctx context.Context, job *model.BatchJob, sourceID int64) (int64, bool, error) {
	existing, err := c.entries.Exists(ctx, sourceID, job.Kind)
	if err != nil {
		return 0, false, err
	}
	if existing != nil {
		return existing.ID, true, nil
	}

	meta, err := c.metadata.FetchDetails(ctx, sourceID, job.Kind)
	if err != nil {
		return 0, false, fmt.Errorf("fetch details: %w", err)
	}
	art := c.writer.Generate(ctx, *meta)

	res, err := c.entries.Materialize(ctx, *meta, art, job.Platform)
	if err != nil {
		return 0, false, fmt.Errorf("materialize: %w", err)
	}
	if res.Existed {
		return res.Item.ID, true, nil
	}

	if c.images != nil {
		if _, err := c.images.AttachImages(ctx, res.Item.ID, *meta); err != nil {
			c.log.Warn("attach images", "batch", job.Token, "source_id", sourceID, "item_id", res.Item.ID, "error", err)
		}
	}
	for _, a := range c.announcers {
		if err := a.Announce(ctx, res.Item, *meta); err != nil {
			c.log.Warn("announce item", "batch", job.Token, "source_id", sourceID, "item_id", res.Item.ID, "error", err)
		}
	}
	return res.Item.ID, false, nil
}

func (c *Coordinator) save(ctx context.Context, job *model.BatchJob) error {
	job.UpdatedAt = c.now()
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	if err := c.store.SetOption(ctx, OptionPrefix+job.Token, string(data)); err != nil {
		return fmt.Errorf("save batch %s: %w", job.Token, err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Summary renders the final counters of a job.
func Summary(job *model.BatchJob) string {
	return fmt.Sprintf("%d created, %d failed, %d skipped", len(job.Completed), len(job.Failed), len(job.Skipped))
}
