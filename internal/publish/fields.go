package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"reelpress/internal/storage"
)

// FieldStore is one backend for per-item named values.
type FieldStore interface {
	Name() string
	Set(ctx context.Context, itemID int64, key, value string) error
	// Get returns storage.ErrNotFound when the key was never written.
	Get(ctx context.Context, itemID int64, key string) (string, error)
}

// StructuredFields stores values in the custom field table.
type StructuredFields struct {
	Store storage.Storage
}

// Name implements FieldStore.
func (StructuredFields) Name() string { return "custom_fields" }

// Set implements FieldStore.
func (f StructuredFields) Set(ctx context.Context, itemID int64, key, value string) error {
	return f.Store.SetField(ctx, itemID, key, value)
}

// Get implements FieldStore.
func (f StructuredFields) Get(ctx context.Context, itemID int64, key string) (string, error) {
	return f.Store.GetField(ctx, itemID, key)
}

// MetaFields stores values in the plain key/value item metadata table.
type MetaFields struct {
	Store storage.Storage
}

// Name implements FieldStore.
func (MetaFields) Name() string { return "item_meta" }

// Set implements FieldStore.
func (f MetaFields) Set(ctx context.Context, itemID int64, key, value string) error {
	return f.Store.SetMeta(ctx, itemID, key, value)
}

// Get implements FieldStore.
func (f MetaFields) Get(ctx context.Context, itemID int64, key string) (string, error) {
	return f.Store.GetMeta(ctx, itemID, key)
}

// Fields writes through a list of backends in priority order. Every backend is
// written; the last one is the durable fallback and only its failure fails Set.
// Get returns the first value found in priority order.
type Fields struct {
	backends []FieldStore
	log      *slog.Logger
}

// NewFields creates a write-through field store. The last backend is the durable one.
func NewFields(log *slog.Logger, backends ...FieldStore) *Fields {
	return &Fields{backends: backends, log: log}
}

// Set writes value to every backend.
func (f *Fields) Set(ctx context.Context, itemID int64, key, value string) error {
	if len(f.backends) == 0 {
		return errors.New("no field backends configured")
	}
	var err error
	for i, b := range f.backends {
		err = b.Set(ctx, itemID, key, value)
		if err != nil && i < len(f.backends)-1 {
			f.log.Warn("field backend write failed", "backend", b.Name(), "item_id", itemID, "key", key, "error", err)
		}
	}
	if err != nil {
		return fmt.Errorf("write field %q: %w", key, err)
	}
	return nil
}

// Get reads key from the first backend that has it.
func (f *Fields) Get(ctx context.Context, itemID int64, key string) (string, error) {
	for _, b := range f.backends {
		v, err := b.Get(ctx, itemID, key)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			f.log.Warn("field backend read failed", "backend", b.Name(), "item_id", itemID, "key", key, "error", err)
		}
	}
	return "", storage.ErrNotFound
}
