// Package discovery reads "new on ..." style feeds and resolves their entries to
// catalogue IDs that can be submitted as a batch.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"reelpress/internal/filter"
	"reelpress/internal/model"
	"reelpress/internal/tmdb"
)

const maxFeedBytes = 5 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Searcher resolves a title to catalogue entries.
type Searcher interface {
	Search(ctx context.Context, query string, kind model.Kind, year int) ([]tmdb.SearchResult, error)
}

// Lookup tells whether a source ID was already materialized.
type Lookup interface {
	Exists(ctx context.Context, sourceID int64, kind model.Kind) (*model.ContentItem, error)
}

// Feed is one configured source of entries.
type Feed struct {
	Name string
	URL  string
	Kind model.Kind
}

// Discoverer turns feed entries into candidates.
type Discoverer struct {
	client     HTTPClient
	search     Searcher
	lookup     Lookup
	feeds      []Feed
	filters    *filter.Set
	log        *slog.Logger
	timeout    time.Duration
	pause      time.Duration
	maxEntries int
}

// New creates a Discoverer. filters may be nil.
func New(client HTTPClient, search Searcher, lookup Lookup, feeds []Feed, filters *filter.Set, log *slog.Logger) *Discoverer {
	return &Discoverer{
		client:     client,
		search:     search,
		lookup:     lookup,
		feeds:      feeds,
		filters:    filters,
		log:        log.With("component", "discovery"),
		timeout:    30 * time.Second,
		pause:      250 * time.Millisecond,
		maxEntries: 25,
	}
}

// SetPause overrides the delay between two search calls.
func (d *Discoverer) SetPause(p time.Duration) {
	d.pause = p
}

// Fetch downloads and parses a feed.
func (d *Discoverer) Fetch(ctx context.Context, url string) (*gofeed.Feed, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "reelpress/1.0")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

// Discover reads every feed and returns the resolved candidates, in feed order and
// without duplicates. A failing feed is logged and skipped; the joined feed errors are
// returned along with whatever was resolved.
func (d *Discoverer) Discover(ctx context.Context) ([]model.Candidate, error) {
	if len(d.feeds) == 0 {
		return nil, nil
	}

	var (
		out   []model.Candidate
		errs  []error
		seen  = map[string]bool{}
		found = map[int64]bool{}
	)
	for _, f := range d.feeds {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		feed, err := d.Fetch(ctx, f.URL)
		if err != nil {
			d.log.Error("fetch feed", "feed", f.Name, "url", f.URL, "error", err)
			errs = append(errs, fmt.Errorf("feed %s: %w", f.Name, err))
			continue
		}

		for _, entry := range d.entries(feed) {
			title, year := CleanTitle(entry.Title)
			key := strings.ToLower(title) + "|" + strconv.Itoa(year)
			if title == "" || seen[key] {
				continue
			}
			seen[key] = true

			c, ok, err := d.resolve(ctx, f, entry, title, year)
			if err != nil {
				if errors.Is(err, tmdb.ErrNotConfigured) || ctx.Err() != nil {
					return out, err
				}
				d.log.Warn("resolve entry", "feed", f.Name, "title", title, "error", err)
				continue
			}
			if !ok || found[c.SourceID] {
				continue
			}
			found[c.SourceID] = true
			out = append(out, c)

			if err := sleep(ctx, d.pause); err != nil {
				return out, err
			}
		}
	}

	d.log.Info("discovery finished", "feeds", len(d.feeds), "candidates", len(out))
	return out, errors.Join(errs...)
}

func (d *Discoverer) entries(feed *gofeed.Feed) []*gofeed.Item {
	var items []*gofeed.Item
	for _, it := range feed.Items {
		if !d.filters.Allows(filter.Entry{Title: it.Title, Description: it.Description}) {
			continue
		}
		items = append(items, it)
		if len(items) == d.maxEntries {
			break
		}
	}
	return items
}

func (d *Discoverer) resolve(ctx context.Context, f Feed, entry *gofeed.Item, title string, year int) (model.Candidate, bool, error) {
	kind := f.Kind
	if kind == "" {
		kind = model.KindAuto
	}
	results, err := d.search.Search(ctx, title, kind, year)
	if err != nil {
		return model.Candidate{}, false, err
	}
	if len(results) == 0 {
		d.log.Debug("no catalogue match", "feed", f.Name, "title", title, "year", year)
		return model.Candidate{}, false, nil
	}
	best := results[0]

	c := model.Candidate{
		FeedTitle: entry.Title,
		Title:     best.Title,
		Year:      best.Year,
		Link:      entry.Link,
		SourceID:  best.SourceID,
		Kind:      best.Kind,
	}
	if d.lookup != nil {
		existing, err := d.lookup.Exists(ctx, best.SourceID, best.Kind)
		if err != nil {
			return model.Candidate{}, false, err
		}
		c.Exists = existing != nil
	}
	return c, true, nil
}

var (
	yearSuffixRe = regexp.MustCompile(`\s*[(\[]((?:19|20)\d{2})[)\]]\s*$`)
	seasonRe     = regexp.MustCompile(`(?i)\s*[:\-–|,]?\s*(?:season|series)\s+\d+.*$`)
	promoRe      = regexp.MustCompile(`(?i)^\s*(?:new on [^:|\-–]+|now streaming|now on [^:|\-–]+|coming soon|just added|trailer|watch)\s*[:|\-–]\s*`)
	spacesRe     = regexp.MustCompile(`\s+`)
)

// CleanTitle strips promotional prefixes and season markers from a feed title and
// extracts a trailing "(YYYY)" year.
func CleanTitle(raw string) (string, int) {
	t := spacesRe.ReplaceAllString(html.UnescapeString(raw), " ")
	t = promoRe.ReplaceAllString(t, "")

	year := 0
	if m := yearSuffixRe.FindStringSubmatch(t); m != nil {
		year, _ = strconv.Atoi(m[1])
		t = t[:len(t)-len(m[0])]
	}
	t = seasonRe.ReplaceAllString(t, "")
	return strings.Trim(strings.TrimSpace(t), `"'“”`), year
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
