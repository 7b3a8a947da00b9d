// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"reelpress/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ItemQuery narrows ListItems. Zero fields are not applied.
type ItemQuery struct {
	Kind     model.Kind
	Platform string
	Status   model.ItemStatus
	Limit    uint64
	Offset   uint64
}

// CleanupStats counts the rows removed by DeleteOrphans.
type CleanupStats struct {
	Meta       int64 `json:"meta"`
	Fields     int64 `json:"fields"`
	Categories int64 `json:"categories"`
	Tags       int64 `json:"tags"`
	AssetLinks int64 `json:"asset_links"`
	Shares     int64 `json:"shares"`
}

// Total returns the sum of all counters.
func (c CleanupStats) Total() int64 {
	return c.Meta + c.Fields + c.Categories + c.Tags + c.AssetLinks + c.Shares
}

// Storage is the interface for all persistence operations.
type Storage interface {
	CreateItem(ctx context.Context, item *model.ContentItem) error
	GetItem(ctx context.Context, id int64) (*model.ContentItem, error)
	FindItem(ctx context.Context, sourceID int64, kind model.Kind) (*model.ContentItem, error)
	ListItems(ctx context.Context, q ItemQuery) ([]model.ContentItem, error)
	CountItems(ctx context.Context) (int, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	SetFeaturedAsset(ctx context.Context, itemID, assetID int64) error
	TrashItem(ctx context.Context, id int64) error
	DeleteItem(ctx context.Context, id int64) error
	PurgeTrashed(ctx context.Context, before time.Time) (int64, error)

	SetMeta(ctx context.Context, itemID int64, key, value string) error
	GetMeta(ctx context.Context, itemID int64, key string) (string, error)
	SetField(ctx context.Context, itemID int64, name, value string) error
	GetField(ctx context.Context, itemID int64, name string) (string, error)

	SetOption(ctx context.Context, key, value string) error
	GetOption(ctx context.Context, key string) (string, error)
	DeleteOption(ctx context.Context, key string) error
	DeleteOptionsBefore(ctx context.Context, prefix string, before time.Time) (int64, error)

	CreateAsset(ctx context.Context, a *model.Asset, indexKey string) error
	GetAsset(ctx context.Context, id int64) (*model.Asset, error)
	FindAssetBySource(ctx context.Context, sourceURL string) (*model.Asset, error)
	AttachAsset(ctx context.Context, itemID, assetID int64, role model.AssetRole) error
	ItemAssets(ctx context.Context, itemID int64) ([]model.Asset, error)
	AssetOwners(ctx context.Context, assetID int64) ([]int64, error)

	CreateShare(ctx context.Context, s *model.Share) error
	ListShares(ctx context.Context, itemID int64) ([]model.Share, error)

	DeleteOrphans(ctx context.Context) (CleanupStats, error)

	Ping(ctx context.Context) error
	Close() error
}
