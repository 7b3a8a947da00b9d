package storage

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"reelpress/internal/model"
)

var ignoreItemTS = cmpopts.IgnoreFields(model.ContentItem{}, "CreatedAt", "UpdatedAt")
var ignoreAssetTS = cmpopts.IgnoreFields(model.Asset{}, "CreatedAt")

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createItem(t *testing.T, s *SQLite, item model.ContentItem) model.ContentItem {
	t.Helper()
	if err := s.CreateItem(context.Background(), &item); err != nil {
		t.Fatalf("create item: %v", err)
	}
	return item
}

func TestMigrationsApplied(t *testing.T) {
	s := newTestDB(t)
	if got := s.SchemaVersion(); got != 3 {
		t.Errorf("SchemaVersion() = %d, want 3", got)
	}
}

func TestItemCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	tests := []struct {
		name string
		item model.ContentItem
	}{
		{
			name: "movie with taxonomy",
			item: model.ContentItem{
				SourceID:    603,
				Kind:        model.KindMovie,
				Title:       "The Matrix (1999)",
				Slug:        "the-matrix-1999",
				Synopsis:    "A hacker learns the truth.",
				ReleaseDate: "1999-03-30",
				Runtime:     136,
				Genres:      []string{"Action", "Science Fiction"},
				Rating:      "R",
				Platform:    "Netflix",
				Body:        "<h1>The Matrix</h1><p>Body</p>",
				TrailerKey:  "vKQi3bBA1y8",
				Categories:  []string{"Movies"},
				Tags:        []string{"Action", "Science Fiction", "Netflix"},
			},
		},
		{
			name: "series without genres",
			item: model.ContentItem{
				SourceID:   1396,
				Kind:       model.KindSeries,
				Title:      "Breaking Bad (2008)",
				Slug:       "breaking-bad-2008",
				Platform:   "Max",
				Body:       "<p>x</p>",
				Categories: []string{"Movies", "TV Shows"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			created := createItem(t, s, tt.item)
			if created.ID == 0 {
				t.Fatal("expected non-zero ID")
			}

			got, err := s.GetItem(ctx, created.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			want := tt.item
			want.ID = created.ID
			want.Status = model.ItemPublished
			if diff := cmp.Diff(want, *got, ignoreItemTS); diff != "" {
				t.Errorf("GetItem mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGetItemNotFound(t *testing.T) {
	s := newTestDB(t)
	if _, err := s.GetItem(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetItem() error = %v, want ErrNotFound", err)
	}
}

func TestFindItem(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	movie := createItem(t, s, model.ContentItem{SourceID: 100, Kind: model.KindMovie, Title: "M", Slug: "m"})
	series := createItem(t, s, model.ContentItem{SourceID: 100, Kind: model.KindSeries, Title: "S", Slug: "s"})

	tests := []struct {
		name     string
		sourceID int64
		kind     model.Kind
		wantID   int64
		wantErr  error
	}{
		{name: "movie", sourceID: 100, kind: model.KindMovie, wantID: movie.ID},
		{name: "series", sourceID: 100, kind: model.KindSeries, wantID: series.ID},
		{name: "auto returns first", sourceID: 100, kind: model.KindAuto, wantID: movie.ID},
		{name: "missing", sourceID: 7, kind: model.KindAuto, wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.FindItem(ctx, tt.sourceID, tt.kind)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("FindItem() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("find: %v", err)
			}
			if got.ID != tt.wantID {
				t.Errorf("FindItem() ID = %d, want %d", got.ID, tt.wantID)
			}
		})
	}
}

func TestDuplicateSourceAndKindRejected(t *testing.T) {
	s := newTestDB(t)
	createItem(t, s, model.ContentItem{SourceID: 5, Kind: model.KindMovie, Title: "A", Slug: "a"})

	dup := model.ContentItem{SourceID: 5, Kind: model.KindMovie, Title: "A", Slug: "a-2"}
	if err := s.CreateItem(context.Background(), &dup); err == nil {
		t.Fatal("expected unique constraint error")
	}
	n, err := s.CountItems(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("CountItems() = %d, want 1", n)
	}
}

func TestListItems(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	a := createItem(t, s, model.ContentItem{SourceID: 1, Kind: model.KindMovie, Title: "A", Slug: "a", Platform: "Netflix"})
	b := createItem(t, s, model.ContentItem{SourceID: 2, Kind: model.KindSeries, Title: "B", Slug: "b", Platform: "Netflix"})
	c := createItem(t, s, model.ContentItem{SourceID: 3, Kind: model.KindMovie, Title: "C", Slug: "c", Platform: "Hulu"})

	tests := []struct {
		name  string
		query ItemQuery
		want  []int64
	}{
		{name: "all newest first", query: ItemQuery{}, want: []int64{c.ID, b.ID, a.ID}},
		{name: "by kind", query: ItemQuery{Kind: model.KindMovie}, want: []int64{c.ID, a.ID}},
		{name: "by platform", query: ItemQuery{Platform: "Netflix"}, want: []int64{b.ID, a.ID}},
		{name: "limit and offset", query: ItemQuery{Limit: 1, Offset: 1}, want: []int64{b.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := s.ListItems(ctx, tt.query)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			var got []int64
			for _, it := range items {
				got = append(got, it.ID)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ListItems mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSlugExists(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	createItem(t, s, model.ContentItem{SourceID: 1, Kind: model.KindMovie, Title: "A", Slug: "dune-2021"})

	for slug, want := range map[string]bool{"dune-2021": true, "dune-2021-2": false} {
		got, err := s.SlugExists(ctx, slug)
		if err != nil {
			t.Fatalf("slug exists: %v", err)
		}
		if got != want {
			t.Errorf("SlugExists(%q) = %v, want %v", slug, got, want)
		}
	}
}

func TestMetaAndFields(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	if err := s.SetMeta(ctx, 1, "platform", "Hulu"); err != nil {
		t.Fatalf("set meta: %v", err)
	}
	if err := s.SetMeta(ctx, 1, "platform", "Netflix"); err != nil {
		t.Fatalf("overwrite meta: %v", err)
	}
	got, err := s.GetMeta(ctx, 1, "platform")
	if err != nil {
		t.Fatalf("get meta: %v", err)
	}
	if got != "Netflix" {
		t.Errorf("GetMeta() = %q, want %q", got, "Netflix")
	}

	if _, err := s.GetField(ctx, 1, "platform"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetField() error = %v, want ErrNotFound", err)
	}
	if err := s.SetField(ctx, 1, "platform", "Max"); err != nil {
		t.Fatalf("set field: %v", err)
	}
	got, err = s.GetField(ctx, 1, "platform")
	if err != nil {
		t.Fatalf("get field: %v", err)
	}
	if got != "Max" {
		t.Errorf("GetField() = %q, want %q", got, "Max")
	}
}

func TestOptions(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	if _, err := s.GetOption(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetOption() error = %v, want ErrNotFound", err)
	}
	for _, key := range []string{"batch_progress_a", "batch_progress_b", "asset_src_c"} {
		if err := s.SetOption(ctx, key, "{}"); err != nil {
			t.Fatalf("set option: %v", err)
		}
	}

	n, err := s.DeleteOptionsBefore(ctx, "batch_progress_", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("delete before: %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteOptionsBefore() = %d, want 2", n)
	}
	if _, err := s.GetOption(ctx, "asset_src_c"); err != nil {
		t.Errorf("asset option should survive: %v", err)
	}

	if err := s.DeleteOption(ctx, "asset_src_c"); err != nil {
		t.Fatalf("delete option: %v", err)
	}
	if _, err := s.GetOption(ctx, "asset_src_c"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetOption() after delete error = %v, want ErrNotFound", err)
	}
}

func TestAssets(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	a := model.Asset{SourceURL: "https://img/a.jpg", FilePath: "/m/a.jpg", MimeType: "image/jpeg", Size: 10}
	if err := s.CreateAsset(ctx, &a, "asset_src_a"); err != nil {
		t.Fatalf("create asset: %v", err)
	}
	p := model.Asset{SourceURL: "https://img/p.jpg", FilePath: "/m/p.jpg", MimeType: "image/jpeg", Size: 20}
	if err := s.CreateAsset(ctx, &p, ""); err != nil {
		t.Fatalf("create asset: %v", err)
	}

	if err := s.AttachAsset(ctx, 1, p.ID, model.RoleGallery); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := s.AttachAsset(ctx, 1, a.ID, model.RoleFeatured); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := s.AttachAsset(ctx, 2, a.ID, model.RoleFeatured); err != nil {
		t.Fatalf("attach: %v", err)
	}

	got, err := s.ItemAssets(ctx, 1)
	if err != nil {
		t.Fatalf("item assets: %v", err)
	}
	if diff := cmp.Diff([]model.Asset{a, p}, got, ignoreAssetTS); diff != "" {
		t.Errorf("ItemAssets mismatch (-want +got):\n%s", diff)
	}

	owners, err := s.AssetOwners(ctx, a.ID)
	if err != nil {
		t.Fatalf("owners: %v", err)
	}
	if diff := cmp.Diff([]int64{1, 2}, owners); diff != "" {
		t.Errorf("AssetOwners mismatch (-want +got):\n%s", diff)
	}

	if _, err := s.GetAsset(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetAsset() error = %v, want ErrNotFound", err)
	}

	if v, err := s.GetOption(ctx, "asset_src_a"); err != nil || v != strconv.FormatInt(a.ID, 10) {
		t.Errorf("GetOption(asset_src_a) = %q, %v, want %d", v, err, a.ID)
	}
	byURL, err := s.FindAssetBySource(ctx, p.SourceURL)
	if err != nil {
		t.Fatalf("find by source: %v", err)
	}
	if diff := cmp.Diff(&p, byURL, ignoreAssetTS); diff != "" {
		t.Errorf("FindAssetBySource mismatch (-want +got):\n%s", diff)
	}
	if _, err := s.FindAssetBySource(ctx, "https://img/missing.jpg"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindAssetBySource() error = %v, want ErrNotFound", err)
	}
}

func TestCreateAssetIndexFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	if _, err := s.db.ExecContext(ctx,
		`CREATE TRIGGER reject_options BEFORE INSERT ON options BEGIN SELECT RAISE(ABORT, 'options unavailable'); END`,
	); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	a := model.Asset{SourceURL: "https://img/a.jpg", FilePath: "/m/a.jpg", MimeType: "image/jpeg", Size: 10}
	if err := s.CreateAsset(ctx, &a, "asset_src_a"); err == nil {
		t.Fatal("CreateAsset() error = nil, want index failure")
	}
	if a.ID != 0 {
		t.Errorf("ID = %d after failed create, want 0", a.ID)
	}
	if _, err := s.FindAssetBySource(ctx, a.SourceURL); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindAssetBySource() error = %v, want ErrNotFound after rollback", err)
	}

	if _, err := s.db.ExecContext(ctx, `DROP TRIGGER reject_options`); err != nil {
		t.Fatalf("drop trigger: %v", err)
	}
	if err := s.CreateAsset(ctx, &a, "asset_src_a"); err != nil {
		t.Fatalf("CreateAsset() retry error = %v", err)
	}
}

func TestDeleteItem(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	item := createItem(t, s, model.ContentItem{
		SourceID: 603, Kind: model.KindMovie, Title: "The Matrix", Slug: "the-matrix",
		Categories: []string{"Netflix"}, Tags: []string{"sci-fi"},
	})
	if err := s.SetMeta(ctx, item.ID, "source_id", "603"); err != nil {
		t.Fatalf("set meta: %v", err)
	}
	if err := s.SetField(ctx, item.ID, "platform", "Netflix"); err != nil {
		t.Fatalf("set field: %v", err)
	}

	if err := s.DeleteItem(ctx, item.ID); err != nil {
		t.Fatalf("DeleteItem() error = %v", err)
	}
	if _, err := s.GetItem(ctx, item.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetItem() error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetMeta(ctx, item.ID, "source_id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetMeta() error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetField(ctx, item.ID, "platform"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetField() error = %v, want ErrNotFound", err)
	}
	stats, err := s.DeleteOrphans(ctx)
	if err != nil {
		t.Fatalf("delete orphans: %v", err)
	}
	if stats.Meta != 0 || stats.Fields != 0 {
		t.Errorf("DeleteOrphans() = %+v, want no meta or field orphans", stats)
	}
	if err := s.DeleteItem(ctx, item.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteItem() again error = %v, want ErrNotFound", err)
	}

	// The source can be materialized again.
	createItem(t, s, model.ContentItem{SourceID: 603, Kind: model.KindMovie, Title: "The Matrix", Slug: "the-matrix"})
}

func TestTrashPurgeAndOrphans(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	keep := createItem(t, s, model.ContentItem{SourceID: 1, Kind: model.KindMovie, Title: "K", Slug: "k",
		Categories: []string{"Movies"}, Tags: []string{"Drama"}})
	gone := createItem(t, s, model.ContentItem{SourceID: 2, Kind: model.KindMovie, Title: "G", Slug: "g",
		Categories: []string{"Movies"}, Tags: []string{"Horror"}})

	for _, id := range []int64{keep.ID, gone.ID} {
		if err := s.SetMeta(ctx, id, "platform", "Netflix"); err != nil {
			t.Fatalf("set meta: %v", err)
		}
		if err := s.SetField(ctx, id, "platform", "Netflix"); err != nil {
			t.Fatalf("set field: %v", err)
		}
		if err := s.CreateShare(ctx, &model.Share{ItemID: id, Network: "telegram", Status: model.ShareSent}); err != nil {
			t.Fatalf("create share: %v", err)
		}
	}

	if err := s.TrashItem(ctx, gone.ID); err != nil {
		t.Fatalf("trash: %v", err)
	}
	if err := s.TrashItem(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("TrashItem(missing) error = %v, want ErrNotFound", err)
	}

	// Trashed items still block re-creation.
	if _, err := s.FindItem(ctx, 2, model.KindMovie); err != nil {
		t.Errorf("trashed item should still be found: %v", err)
	}

	n, err := s.PurgeTrashed(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Errorf("PurgeTrashed() = %d, want 1", n)
	}

	stats, err := s.DeleteOrphans(ctx)
	if err != nil {
		t.Fatalf("delete orphans: %v", err)
	}
	want := CleanupStats{Meta: 1, Fields: 1, Categories: 1, Tags: 2, Shares: 1}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("DeleteOrphans mismatch (-want +got):\n%s", diff)
	}

	got, err := s.GetItem(ctx, keep.ID)
	if err != nil {
		t.Fatalf("get kept item: %v", err)
	}
	if diff := cmp.Diff([]string{"Drama"}, got.Tags); diff != "" {
		t.Errorf("kept tags mismatch (-want +got):\n%s", diff)
	}
	shares, err := s.ListShares(ctx, keep.ID)
	if err != nil {
		t.Fatalf("list shares: %v", err)
	}
	if len(shares) != 1 {
		t.Errorf("expected 1 share for kept item, got %d", len(shares))
	}
}
