// Package tmdb is a small client for the TMDB v3 REST API. It fetches movie and series
// details, searches by title and maps responses onto model.Metadata. It never retries;
// callers decide what to do with the typed errors it returns.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"reelpress/internal/model"
)

// Errors returned by the client. Compare with errors.Is.
var (
	ErrNotConfigured = errors.New("tmdb api key is not configured: set TMDB_API_KEY")
	ErrNotFound      = errors.New("tmdb: not found")
	ErrTimeout       = errors.New("tmdb: request timed out")
	ErrTransient     = errors.New("tmdb: upstream error")
	ErrRateLimited   = errors.New("tmdb: rate limited")
	ErrInvalidID     = errors.New("tmdb: source id must be a positive integer")
	ErrInvalidQuery  = errors.New("tmdb: search query is empty")

	errWrongKind = errors.New("tmdb: response is not of the requested kind")
)

// RateLimitError is returned on HTTP 429. RetryAfter is zero when the upstream sent no hint.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("tmdb: rate limited, retry after %s", e.RetryAfter)
	}
	return "tmdb: rate limited"
}

// Is makes errors.Is(err, ErrRateLimited) match.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a Client. Empty fields take the defaults below.
type Options struct {
	APIKey       string
	BaseURL      string
	ImageBaseURL string
	Language     string
	Region       string
	Timeout      time.Duration
}

const (
	defaultBaseURL      = "https://api.themoviedb.org/3"
	defaultImageBaseURL = "https://image.tmdb.org/t/p/"
	backdropSize        = "w1280"
	posterSize          = "w780"
)

// Client talks to the TMDB API.
type Client struct {
	http HTTPClient
	opts Options
}

// New creates a Client. A nil client uses http.DefaultClient.
func New(client HTTPClient, opts Options) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.ImageBaseURL == "" {
		opts.ImageBaseURL = defaultImageBaseURL
	}
	if opts.Language == "" {
		opts.Language = "en-US"
	}
	if opts.Region == "" {
		opts.Region = "US"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Client{http: client, opts: opts}
}

// Configured reports whether an API credential is present.
func (c *Client) Configured() bool {
	return strings.TrimSpace(c.opts.APIKey) != ""
}

// FetchDetails returns metadata for a source ID. KindAuto tries movie first, then series.
func (c *Client) FetchDetails(ctx context.Context, sourceID int64, kind model.Kind) (*model.Metadata, error) {
	if sourceID <= 0 {
		return nil, ErrInvalidID
	}
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	switch kind {
	case model.KindMovie:
		return c.fetchOne(ctx, sourceID, model.KindMovie)
	case model.KindSeries:
		return c.fetchOne(ctx, sourceID, model.KindSeries)
	case model.KindAuto, "":
		meta, err := c.fetchOne(ctx, sourceID, model.KindMovie)
		if err == nil || !errors.Is(err, ErrNotFound) {
			return meta, err
		}
		return c.fetchOne(ctx, sourceID, model.KindSeries)
	}
	return nil, fmt.Errorf("unknown kind %q", kind)
}

func (c *Client) fetchOne(ctx context.Context, sourceID int64, kind model.Kind) (*model.Metadata, error) {
	path, extra := fmt.Sprintf("/movie/%d", sourceID), "videos,release_dates"
	if kind == model.KindSeries {
		path, extra = fmt.Sprintf("/tv/%d", sourceID), "videos,content_ratings"
	}

	var d details
	if err := c.get(ctx, path, url.Values{"append_to_response": {extra}}, &d); err != nil {
		return nil, err
	}

	meta, err := c.toMetadata(d, kind)
	if err != nil {
		// A payload without the kind's name field is a miss for this kind.
		return nil, fmt.Errorf("fetch %s %d: %w: %w", kind, sourceID, ErrNotFound, err)
	}
	meta.SourceID = sourceID
	return meta, nil
}

// SearchResult is one hit from a title search.
type SearchResult struct {
	SourceID   int64      `json:"source_id"`
	Kind       model.Kind `json:"kind"`
	Title      string     `json:"title"`
	Year       int        `json:"year,omitempty"`
	Overview   string     `json:"overview,omitempty"`
	Popularity float64    `json:"popularity"`
}

// Search looks up titles by name. year narrows the search when positive.
func (c *Client) Search(ctx context.Context, query string, kind model.Kind, year int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrInvalidQuery
	}
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	params := url.Values{"query": {query}, "include_adult": {"false"}}
	var path string
	switch kind {
	case model.KindMovie:
		path = "/search/movie"
		if year > 0 {
			params.Set("year", strconv.Itoa(year))
		}
	case model.KindSeries:
		path = "/search/tv"
		if year > 0 {
			params.Set("first_air_date_year", strconv.Itoa(year))
		}
	default:
		path = "/search/multi"
	}

	var page searchPage
	if err := c.get(ctx, path, params, &page); err != nil {
		return nil, err
	}

	var results []SearchResult
	for _, r := range page.Results {
		k := kind
		if k != model.KindMovie && k != model.KindSeries {
			switch r.MediaType {
			case "movie":
				k = model.KindMovie
			case "tv":
				k = model.KindSeries
			default:
				continue
			}
		}
		title, date := r.Title, r.ReleaseDate
		if k == model.KindSeries {
			title, date = r.Name, r.FirstAirDate
		}
		if title == "" {
			continue
		}
		y := yearOf(date)
		if year > 0 && kind == model.KindAuto && y != 0 && y != year {
			continue
		}
		results = append(results, SearchResult{
			SourceID:   r.ID,
			Kind:       k,
			Title:      title,
			Year:       y,
			Overview:   r.Overview,
			Popularity: r.Popularity,
		})
	}
	return results, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	params.Set("language", c.opts.Language)
	params.Set("region", c.opts.Region)

	key := strings.TrimSpace(c.opts.APIKey)
	bearer := strings.HasPrefix(key, "eyJ")
	if !bearer {
		params.Set("api_key", key)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if bearer {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: %s", ErrTimeout, path)
		}
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: credentials rejected", ErrNotConfigured)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrTransient, resp.StatusCode)
	default:
		return fmt.Errorf("tmdb: unexpected status %d: %s", resp.StatusCode, statusMessage(resp.Body))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: reading %s", ErrTimeout, path)
		}
		return fmt.Errorf("%w: read body: %w", ErrTransient, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrTransient, err)
	}
	return nil
}

func (c *Client) toMetadata(d details, kind model.Kind) (*model.Metadata, error) {
	meta := &model.Metadata{
		Kind:     kind,
		Synopsis: strings.TrimSpace(d.Overview),
	}
	for _, g := range d.Genres {
		if g.Name != "" {
			meta.Genres = append(meta.Genres, g.Name)
		}
	}

	if kind == model.KindMovie {
		if d.Title == "" {
			return nil, errWrongKind
		}
		meta.Title = d.Title
		meta.ReleaseDate = d.ReleaseDate
		meta.Runtime = d.Runtime
		meta.Rating = movieCertification(d.ReleaseDates.Results, c.opts.Region)
	} else {
		if d.Name == "" {
			return nil, errWrongKind
		}
		meta.Title = d.Name
		meta.ReleaseDate = d.FirstAirDate
		if len(d.EpisodeRunTime) > 0 {
			meta.Runtime = d.EpisodeRunTime[0]
		}
		meta.Rating = seriesRating(d.ContentRatings.Results, c.opts.Region)
	}

	meta.Year = yearOf(meta.ReleaseDate)
	meta.TrailerKey = trailerKey(d.Videos.Results)
	if d.BackdropPath != "" {
		meta.BackdropURL = c.opts.ImageBaseURL + backdropSize + d.BackdropPath
	}
	if d.PosterPath != "" {
		meta.PosterURL = c.opts.ImageBaseURL + posterSize + d.PosterPath
	}
	return meta, nil
}

func trailerKey(videos []video) string {
	pick := func(match func(video) bool) string {
		for _, v := range videos {
			if v.Site == "YouTube" && v.Key != "" && match(v) {
				return v.Key
			}
		}
		return ""
	}
	if k := pick(func(v video) bool { return v.Type == "Trailer" && v.Official }); k != "" {
		return k
	}
	if k := pick(func(v video) bool { return v.Type == "Trailer" }); k != "" {
		return k
	}
	return pick(func(v video) bool { return v.Type == "Teaser" })
}

func movieCertification(countries []releaseCountry, region string) string {
	first := ""
	for _, c := range countries {
		for _, rd := range c.ReleaseDates {
			if rd.Certification == "" {
				continue
			}
			if c.Country == region {
				return rd.Certification
			}
			if first == "" {
				first = rd.Certification
			}
		}
	}
	return first
}

func seriesRating(ratings []contentRating, region string) string {
	first := ""
	for _, r := range ratings {
		if r.Rating == "" {
			continue
		}
		if r.Country == region {
			return r.Rating
		}
		if first == "" {
			first = r.Rating
		}
	}
	return first
}

func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return y
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d.Round(time.Second)
		}
	}
	return 0
}

func statusMessage(r io.Reader) string {
	var payload struct {
		StatusMessage string `json:"status_message"`
	}
	data, _ := io.ReadAll(io.LimitReader(r, 1024))
	if err := json.Unmarshal(data, &payload); err == nil && payload.StatusMessage != "" {
		return payload.StatusMessage
	}
	return strings.TrimSpace(string(data))
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
