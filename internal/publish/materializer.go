// Package publish turns fetched metadata and a generated article into a stored content
// item. It owns the at-most-once rule per source ID, slug uniqueness, the controlled
// category vocabulary and platform storage.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"reelpress/internal/article"
	"reelpress/internal/model"
	"reelpress/internal/storage"
)

// Category names in the controlled vocabulary.
const (
	CategoryMovies  = "Movies"
	CategoryTVShows = "TV Shows"
)

// Field and meta keys written for every item.
const (
	FieldPlatform  = "platform"
	MetaSourceID   = "source_id"
	MetaRelease    = "release_date"
	MetaRuntime    = "runtime"
	MetaRating     = "rating"
	MetaTrailer    = "trailer_key"
	MetaStyle      = "style"
	MetaGenerator  = "generator"
	maxSlugLength  = 190
	maxSlugAttempt = 1000
)

var numericRe = regexp.MustCompile(`^\d+$`)

// Result is the outcome of Materialize.
type Result struct {
	Item    *model.ContentItem
	Existed bool
}

// Materializer creates content items.
type Materializer struct {
	store  storage.Storage
	fields *Fields
	log    *slog.Logger
}

// New creates a Materializer storing platform values through fields.
func New(store storage.Storage, fields *Fields, log *slog.Logger) *Materializer {
	return &Materializer{store: store, fields: fields, log: log.With("component", "publish")}
}

// NewDefault creates a Materializer with the structured and plain field backends.
func NewDefault(store storage.Storage, log *slog.Logger) *Materializer {
	fields := NewFields(log, StructuredFields{Store: store}, MetaFields{Store: store})
	return New(store, fields, log)
}

// Exists returns the item already materialized for sourceID, or nil.
func (m *Materializer) Exists(ctx context.Context, sourceID int64, kind model.Kind) (*model.ContentItem, error) {
	item, err := m.store.FindItem(ctx, sourceID, kind)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("check existing item: %w", err)
	}
	return item, nil
}

// Materialize stores meta and art as a new item for platform. When an item for the
// same source ID and kind already exists it is returned unchanged and nothing is written.
func (m *Materializer) Materialize(ctx context.Context, meta model.Metadata, art model.Article, platform string) (Result, error) {
	if existing, err := m.Exists(ctx, meta.SourceID, meta.Kind); err != nil || existing != nil {
		return Result{Item: existing, Existed: existing != nil}, err
	}

	platform = strings.TrimSpace(platform)
	title := strings.TrimSpace(art.Title)
	if title == "" {
		title = article.ExtractTitle(art.Body)
	}
	if title == "" {
		title = article.FallbackTitle(meta)
	}

	slug, err := m.uniqueSlug(ctx, Slugify(title), meta.SourceID)
	if err != nil {
		return Result{}, err
	}

	item := &model.ContentItem{
		SourceID:    meta.SourceID,
		Kind:        meta.Kind,
		Title:       title,
		Slug:        slug,
		Synopsis:    meta.Synopsis,
		ReleaseDate: meta.ReleaseDate,
		Runtime:     meta.Runtime,
		Genres:      meta.Genres,
		Rating:      meta.Rating,
		Platform:    platform,
		Body:        art.Body,
		TrailerKey:  meta.TrailerKey,
		Status:      model.ItemPublished,
		Categories:  Categories(meta.Kind),
		Tags:        Tags(meta.Genres, platform),
	}
	if err := m.store.CreateItem(ctx, item); err != nil {
		// Lost a race with a concurrent creator: report theirs.
		if existing, findErr := m.Exists(ctx, meta.SourceID, meta.Kind); findErr == nil && existing != nil {
			return Result{Item: existing, Existed: true}, nil
		}
		return Result{}, fmt.Errorf("create item: %w", err)
	}

	if err := m.fields.Set(ctx, item.ID, FieldPlatform, platform); err != nil {
		return Result{}, m.discard(ctx, item, fmt.Errorf("store platform: %w", err))
	}
	if err := m.writeMeta(ctx, item.ID, meta, art); err != nil {
		return Result{}, m.discard(ctx, item, err)
	}

	m.log.Info("materialized item", "item_id", item.ID, "source_id", meta.SourceID,
		"kind", meta.Kind, "slug", slug, "platform", platform, "fallback", art.Fallback)
	return Result{Item: item}, nil
}

// discard removes a partially written item so the source can be retried, and
// returns cause.
func (m *Materializer) discard(ctx context.Context, item *model.ContentItem, cause error) error {
	if err := m.store.DeleteItem(context.WithoutCancel(ctx), item.ID); err != nil {
		m.log.Error("discard partial item", "item_id", item.ID, "source_id", item.SourceID, "error", err)
		return errors.Join(cause, fmt.Errorf("discard item %d: %w", item.ID, err))
	}
	m.log.Warn("discarded partial item", "item_id", item.ID, "source_id", item.SourceID, "error", cause)
	return cause
}

// Platform reads an item's platform back through the field backends.
func (m *Materializer) Platform(ctx context.Context, itemID int64) (string, error) {
	return m.fields.Get(ctx, itemID, FieldPlatform)
}

func (m *Materializer) writeMeta(ctx context.Context, itemID int64, meta model.Metadata, art model.Article) error {
	generator := "llm"
	if art.Fallback {
		generator = "fallback"
	}
	values := [][2]string{
		{MetaSourceID, strconv.FormatInt(meta.SourceID, 10)},
		{MetaRelease, meta.ReleaseDate},
		{MetaRuntime, strconv.Itoa(meta.Runtime)},
		{MetaRating, meta.Rating},
		{MetaTrailer, meta.TrailerKey},
		{MetaStyle, styleSummary(art.Style)},
		{MetaGenerator, generator},
	}
	for _, kv := range values {
		if kv[1] == "" {
			continue
		}
		if err := m.store.SetMeta(ctx, itemID, kv[0], kv[1]); err != nil {
			return fmt.Errorf("store meta: %w", err)
		}
	}
	return nil
}

func styleSummary(s model.Style) string {
	if s.Tone == "" && s.TitleTemplate == "" {
		return ""
	}
	return s.Tone + " | " + s.TitleTemplate
}

func (m *Materializer) uniqueSlug(ctx context.Context, base string, sourceID int64) (string, error) {
	if base == "" {
		base = "item-" + strconv.FormatInt(sourceID, 10)
	}
	candidate := base
	for n := 2; n <= maxSlugAttempt; n++ {
		taken, err := m.store.SlugExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check slug: %w", err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + "-" + strconv.Itoa(n)
	}
	return "", fmt.Errorf("no free slug for %q", base)
}

// Slugify lowercases s and joins its letter and digit runs with hyphens.
func Slugify(s string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case isSlugRune(r):
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		case r == '\'' || r == '’':
			// Apostrophes vanish instead of splitting words.
		default:
			pendingDash = true
		}
	}
	out := b.String()
	if len(out) > maxSlugLength {
		out = strings.TrimRight(truncateBytes(out, maxSlugLength), "-")
	}
	return out
}

func isSlugRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// truncateBytes cuts s to at most n bytes on a rune boundary.
func truncateBytes(s string, n int) string {
	cut := 0
	for i := range s {
		if i > n {
			break
		}
		cut = i
	}
	if len(s) <= n {
		return s
	}
	return s[:cut]
}

// Categories returns the fixed category set for kind, never containing a numeric name.
func Categories(kind model.Kind) []string {
	cats := []string{CategoryMovies}
	if kind == model.KindSeries {
		cats = append(cats, CategoryTVShows)
	}
	return safeCategories(cats)
}

func safeCategories(names []string) []string {
	var out []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || numericRe.MatchString(n) {
			continue
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return []string{CategoryMovies}
	}
	return out
}

// Tags returns genre tags plus the platform, deduplicated case-insensitively and
// without numeric names.
func Tags(genres []string, platform string) []string {
	seen := map[string]bool{}
	var tags []string
	for _, t := range append(append([]string{}, genres...), platform) {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || numericRe.MatchString(t) || seen[key] {
			continue
		}
		seen[key] = true
		tags = append(tags, t)
	}
	return tags
}
