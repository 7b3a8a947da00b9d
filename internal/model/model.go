// Package model defines the domain types used across the application.
package model

import (
	"strings"
	"time"
)

// Kind identifies the upstream catalogue a source ID belongs to.
type Kind string

// Supported content kinds. KindAuto is only valid as a lookup hint.
const (
	KindMovie  Kind = "movie"
	KindSeries Kind = "series"
	KindAuto   Kind = "auto"
)

// ParseKind maps user input to a Kind. Empty input means KindAuto.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return KindAuto, true
	case "movie", "movies", "film":
		return KindMovie, true
	case "series", "tv", "show":
		return KindSeries, true
	}
	return "", false
}

// KnownPlatforms is the menu of streaming platforms offered to callers.
// Any other non-empty label is accepted as free text.
var KnownPlatforms = []string{
	"Netflix",
	"Prime Video",
	"Disney+",
	"Hulu",
	"Max",
	"Apple TV+",
	"Paramount+",
	"Peacock",
}

// Metadata is the normalized description of a movie or series fetched from the metadata API.
type Metadata struct {
	SourceID    int64
	Kind        Kind
	Title       string
	Synopsis    string
	ReleaseDate string
	Year        int
	Runtime     int
	Genres      []string
	Rating      string
	TrailerKey  string
	PosterURL   string
	BackdropURL string
}

// Style is one combination of writing directives picked for a generation call.
type Style struct {
	Angle         string
	Structure     string
	Tone          string
	TitleTemplate string
}

// Article is a generated article body.
type Article struct {
	Title    string
	Body     string
	Style    Style
	Fallback bool
}

// ItemStatus is the lifecycle state of a content item.
type ItemStatus string

// Supported item statuses.
const (
	ItemPublished ItemStatus = "publish"
	ItemTrashed   ItemStatus = "trash"
)

// ContentItem is a locally materialized article about one movie or series.
type ContentItem struct {
	ID              int64
	SourceID        int64
	Kind            Kind
	Title           string
	Slug            string
	Synopsis        string
	ReleaseDate     string
	Runtime         int
	Genres          []string
	Rating          string
	Platform        string
	Body            string
	TrailerKey      string
	FeaturedAssetID int64
	Status          ItemStatus
	Categories      []string
	Tags            []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AssetRole describes how an asset is attached to an item.
type AssetRole string

// Supported asset roles.
const (
	RoleFeatured AssetRole = "featured"
	RoleGallery  AssetRole = "gallery"
)

// Asset is a downloaded image owned by one or more items.
type Asset struct {
	ID          int64
	SourceURL   string
	FilePath    string
	MimeType    string
	Size        int64
	Description string
	CreatedAt   time.Time
}

// BatchStatus is the state of a batch job.
type BatchStatus string

// Supported batch statuses.
const (
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
)

// IsValid reports whether s is a known batch status.
func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchProcessing, BatchCompleted:
		return true
	}
	return false
}

// FailedItem records why one source ID in a batch failed.
type FailedItem struct {
	SourceID int64  `json:"source_id"`
	Reason   string `json:"reason"`
}

// BatchJob is the pollable progress record of one batch run.
type BatchJob struct {
	Token      string       `json:"token"`
	SourceIDs  []int64      `json:"source_ids"`
	Platform   string       `json:"platform"`
	Kind       Kind         `json:"kind"`
	Status     BatchStatus  `json:"status"`
	Total      int          `json:"total"`
	Completed  []int64      `json:"completed"`
	Failed     []FailedItem `json:"failed"`
	Skipped    []int64      `json:"skipped"`
	ItemIDs    []int64      `json:"item_ids"`
	Current    int64        `json:"current"`
	Progress   int          `json:"progress"`
	StartedAt  time.Time    `json:"started_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

// Processed returns the number of source IDs that reached an outcome.
func (j *BatchJob) Processed() int {
	return len(j.Completed) + len(j.Failed) + len(j.Skipped)
}

// ShareStatus is the outcome of one social cross-post attempt.
type ShareStatus string

// Supported share statuses.
const (
	ShareSent   ShareStatus = "sent"
	ShareFailed ShareStatus = "failed"
)

// Share records one cross-post of an item to a social network.
type Share struct {
	ID         int64
	ItemID     int64
	Network    string
	Status     ShareStatus
	ExternalID string
	Error      string
	CreatedAt  time.Time
}

// FilterKind defines the type of filter rule.
type FilterKind string

// Supported filter kinds.
const (
	FilterInclude   FilterKind = "include"
	FilterExclude   FilterKind = "exclude"
	FilterIncludeRe FilterKind = "include_re"
	FilterExcludeRe FilterKind = "exclude_re"
)

// FilterScope defines which part of a feed entry a filter matches against.
type FilterScope string

// Supported filter scopes.
const (
	ScopeTitle   FilterScope = "title"
	ScopeContent FilterScope = "content"
	ScopeAll     FilterScope = "all"
)

// Filter is a single include/exclude rule applied to discovered feed entries.
type Filter struct {
	Kind  FilterKind  `yaml:"kind"`
	Scope FilterScope `yaml:"scope"`
	Value string      `yaml:"value"`
}

// Candidate is a feed entry resolved against the metadata API.
type Candidate struct {
	FeedTitle string `json:"feed_title"`
	Title     string `json:"title"`
	Year      int    `json:"year,omitempty"`
	Link      string `json:"link,omitempty"`
	SourceID  int64  `json:"source_id"`
	Kind      Kind   `json:"kind"`
	Exists    bool   `json:"exists"`
}
