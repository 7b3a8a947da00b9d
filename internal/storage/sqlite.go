package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite" // SQLite driver registration.

	"reelpress/internal/model"
	"reelpress/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

var itemColumns = []string{
	"id", "source_id", "kind", "title", "slug", "synopsis", "release_date", "runtime", "genres",
	"rating", "platform", "body", "trailer_key", "featured_asset_id", "status", "created_at", "updated_at",
}

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db      *sql.DB
	version int64
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	version, err := migrations.Run(context.Background(), db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db, version: version}, nil
}

// SchemaVersion returns the migration version the database was brought to.
func (s *SQLite) SchemaVersion() int64 {
	return s.version
}

// Ping checks that the database is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// CreateItem inserts a content item with its categories and tags and populates ID and timestamps.
func (s *SQLite) CreateItem(ctx context.Context, item *model.ContentItem) error {
	genres, err := json.Marshal(nonNil(item.Genres))
	if err != nil {
		return fmt.Errorf("encode genres: %w", err)
	}
	if item.Status == "" {
		item.Status = model.ItemPublished
	}
	now := time.Now().UTC().Format(timeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO content_items (source_id, kind, title, slug, synopsis, release_date, runtime, genres,
		   rating, platform, body, trailer_key, featured_asset_id, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.SourceID, string(item.Kind), item.Title, item.Slug, item.Synopsis, item.ReleaseDate,
		item.Runtime, string(genres), item.Rating, item.Platform, item.Body, item.TrailerKey,
		item.FeaturedAssetID, string(item.Status), now, now,
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}

	for _, name := range item.Categories {
		if err := linkTerm(ctx, tx, "categories", "item_categories", "category_id", id, name); err != nil {
			return err
		}
	}
	for _, name := range item.Tags {
		if err := linkTerm(ctx, tx, "tags", "item_tags", "tag_id", id, name); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit item: %w", err)
	}
	item.ID = id
	item.CreatedAt, _ = time.Parse(timeLayout, now)
	item.UpdatedAt = item.CreatedAt
	return nil
}

func linkTerm(ctx context.Context, tx *sql.Tx, table, linkTable, column string, itemID int64, name string) error {
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO `+table+` (name) VALUES (?)`, name); err != nil {
		return fmt.Errorf("insert %s %q: %w", table, name, err)
	}
	var termID int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM `+table+` WHERE name = ?`, name).Scan(&termID); err != nil {
		return fmt.Errorf("lookup %s %q: %w", table, name, err)
	}
	_, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO `+linkTable+` (item_id, `+column+`) VALUES (?, ?)`, itemID, termID)
	if err != nil {
		return fmt.Errorf("link %s %q: %w", table, name, err)
	}
	return nil
}

// GetItem returns a single item with its categories and tags.
func (s *SQLite) GetItem(ctx context.Context, id int64) (*model.ContentItem, error) {
	query, args, err := psql.Select(itemColumns...).From("content_items").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build item query: %w", err)
	}
	item, err := scanItem(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	if err := s.loadTaxonomy(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// FindItem returns the item materialized for a source ID. KindAuto matches any kind.
// Trashed items still count.
func (s *SQLite) FindItem(ctx context.Context, sourceID int64, kind model.Kind) (*model.ContentItem, error) {
	b := psql.Select("id").From("content_items").Where(sq.Eq{"source_id": sourceID}).OrderBy("id").Limit(1)
	if kind != "" && kind != model.KindAuto {
		b = b.Where(sq.Eq{"kind": string(kind)})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find query: %w", err)
	}
	var id int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find item: %w", err)
	}
	return s.GetItem(ctx, id)
}

// ListItems returns items newest first.
func (s *SQLite) ListItems(ctx context.Context, q ItemQuery) ([]model.ContentItem, error) {
	b := psql.Select(itemColumns...).From("content_items").OrderBy("id DESC")
	if q.Kind != "" && q.Kind != model.KindAuto {
		b = b.Where(sq.Eq{"kind": string(q.Kind)})
	}
	if q.Platform != "" {
		b = b.Where(sq.Eq{"platform": q.Platform})
	}
	if q.Status != "" {
		b = b.Where(sq.Eq{"status": string(q.Status)})
	}
	if q.Limit > 0 {
		b = b.Limit(q.Limit)
		if q.Offset > 0 {
			b = b.Offset(q.Offset)
		}
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	var items []model.ContentItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		items = append(items, *item)
	}
	err = rows.Err()
	_ = rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}

	// Rows must be closed before loading taxonomy: the pool holds a single connection.
	for i := range items {
		if err := s.loadTaxonomy(ctx, &items[i]); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// CountItems returns the number of stored items in any status.
func (s *SQLite) CountItems(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM content_items`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return n, nil
}

// SlugExists reports whether any item already uses slug.
func (s *SQLite) SlugExists(ctx context.Context, slug string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM content_items WHERE slug = ?`, slug).Scan(&n); err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return n > 0, nil
}

// SetFeaturedAsset points an item at its featured asset.
func (s *SQLite) SetFeaturedAsset(ctx context.Context, itemID, assetID int64) error {
	return s.touchItem(ctx, `featured_asset_id = ?`, assetID, itemID)
}

// TrashItem soft-deletes an item.
func (s *SQLite) TrashItem(ctx context.Context, id int64) error {
	return s.touchItem(ctx, `status = ?`, string(model.ItemTrashed), id)
}

func (s *SQLite) touchItem(ctx context.Context, set string, value any, id int64) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`UPDATE content_items SET `+set+`, updated_at = ? WHERE id = ?`, value, now, id)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteItem permanently removes an item together with its terms, meta and fields.
func (s *SQLite) DeleteItem(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM content_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	for _, table := range []string{"item_meta", "custom_fields", "item_categories", "item_tags", "item_assets"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE item_id = ?`, id); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

// PurgeTrashed permanently deletes items trashed before the given time.
// Their dependent rows are left for DeleteOrphans.
func (s *SQLite) PurgeTrashed(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM content_items WHERE status = ? AND updated_at < ?`,
		string(model.ItemTrashed), before.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("purge trashed items: %w", err)
	}
	return res.RowsAffected()
}

// SetMeta writes a plain key/value pair for an item.
func (s *SQLite) SetMeta(ctx context.Context, itemID int64, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO item_meta (item_id, meta_key, meta_value) VALUES (?, ?, ?)
		 ON CONFLICT (item_id, meta_key) DO UPDATE SET meta_value = excluded.meta_value`,
		itemID, key, value,
	)
	if err != nil {
		return fmt.Errorf("set meta %q: %w", key, err)
	}
	return nil
}

// GetMeta reads a plain key/value pair for an item.
func (s *SQLite) GetMeta(ctx context.Context, itemID int64, key string) (string, error) {
	return s.getString(ctx, `SELECT meta_value FROM item_meta WHERE item_id = ? AND meta_key = ?`, itemID, key)
}

// SetField writes a structured custom field for an item.
func (s *SQLite) SetField(ctx context.Context, itemID int64, name, value string) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO custom_fields (item_id, field_name, field_value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (item_id, field_name) DO UPDATE SET field_value = excluded.field_value,
		   updated_at = excluded.updated_at`,
		itemID, name, value, now,
	)
	if err != nil {
		return fmt.Errorf("set field %q: %w", name, err)
	}
	return nil
}

// GetField reads a structured custom field for an item.
func (s *SQLite) GetField(ctx context.Context, itemID int64, name string) (string, error) {
	return s.getString(ctx, `SELECT field_value FROM custom_fields WHERE item_id = ? AND field_name = ?`, itemID, name)
}

// SetOption upserts a global key/value option.
func (s *SQLite) SetOption(ctx context.Context, key, value string) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO options (option_key, option_value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (option_key) DO UPDATE SET option_value = excluded.option_value,
		   updated_at = excluded.updated_at`,
		key, value, now,
	)
	if err != nil {
		return fmt.Errorf("set option %q: %w", key, err)
	}
	return nil
}

// GetOption reads a global option.
func (s *SQLite) GetOption(ctx context.Context, key string) (string, error) {
	return s.getString(ctx, `SELECT option_value FROM options WHERE option_key = ?`, key)
}

// DeleteOption removes a global option. Missing keys are not an error.
func (s *SQLite) DeleteOption(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM options WHERE option_key = ?`, key); err != nil {
		return fmt.Errorf("delete option %q: %w", key, err)
	}
	return nil
}

// DeleteOptionsBefore removes options whose key starts with prefix and that were last
// written before the given time.
func (s *SQLite) DeleteOptionsBefore(ctx context.Context, prefix string, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM options WHERE substr(option_key, 1, length(?)) = ? AND updated_at < ?`,
		prefix, prefix, before.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("delete options %q: %w", prefix, err)
	}
	return res.RowsAffected()
}

func (s *SQLite) getString(ctx context.Context, query string, args ...any) (string, error) {
	var v string
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("query value: %w", err)
	}
	return v, nil
}

// CreateAsset registers a downloaded asset and populates its ID and CreatedAt.
// When indexKey is set, an option mapping it to the new ID is written in the same
// transaction, so either both rows exist or neither does.
func (s *SQLite) CreateAsset(ctx context.Context, a *model.Asset, indexKey string) error {
	now := time.Now().UTC().Format(timeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO assets (source_url, file_path, mime_type, size, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.SourceURL, a.FilePath, a.MimeType, a.Size, a.Description, now,
	)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}

	if indexKey != "" {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO options (option_key, option_value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT (option_key) DO UPDATE SET option_value = excluded.option_value,
			   updated_at = excluded.updated_at`,
			indexKey, strconv.FormatInt(id, 10), now,
		)
		if err != nil {
			return fmt.Errorf("index asset: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit asset: %w", err)
	}
	a.ID = id
	a.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// GetAsset returns a single asset by its ID.
func (s *SQLite) GetAsset(ctx context.Context, id int64) (*model.Asset, error) {
	return s.getAsset(ctx, `id = ?`, id)
}

// FindAssetBySource returns the asset downloaded from sourceURL.
func (s *SQLite) FindAssetBySource(ctx context.Context, sourceURL string) (*model.Asset, error) {
	return s.getAsset(ctx, `source_url = ?`, sourceURL)
}

func (s *SQLite) getAsset(ctx context.Context, where string, arg any) (*model.Asset, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source_url, file_path, mime_type, size, description, created_at FROM assets WHERE `+where, arg)
	a, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// AttachAsset links an asset to an item. Re-attaching updates the role.
func (s *SQLite) AttachAsset(ctx context.Context, itemID, assetID int64, role model.AssetRole) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO item_assets (item_id, asset_id, role) VALUES (?, ?, ?)
		 ON CONFLICT (item_id, asset_id) DO UPDATE SET role = excluded.role`,
		itemID, assetID, string(role),
	)
	if err != nil {
		return fmt.Errorf("attach asset: %w", err)
	}
	return nil
}

// ItemAssets returns the assets attached to an item, featured first.
func (s *SQLite) ItemAssets(ctx context.Context, itemID int64) ([]model.Asset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.source_url, a.file_path, a.mime_type, a.size, a.description, a.created_at
		 FROM assets a JOIN item_assets ia ON ia.asset_id = a.id
		 WHERE ia.item_id = ?
		 ORDER BY CASE ia.role WHEN 'featured' THEN 0 ELSE 1 END, a.id`, itemID)
	if err != nil {
		return nil, fmt.Errorf("query item assets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var assets []model.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, *a)
	}
	return assets, rows.Err()
}

// AssetOwners returns the IDs of the items an asset is attached to.
func (s *SQLite) AssetOwners(ctx context.Context, assetID int64) ([]int64, error) {
	return s.queryIDs(ctx, `SELECT item_id FROM item_assets WHERE asset_id = ? ORDER BY item_id`, assetID)
}

// CreateShare records a cross-post attempt and populates its ID and CreatedAt.
func (s *SQLite) CreateShare(ctx context.Context, sh *model.Share) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO social_shares (item_id, network, status, external_id, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sh.ItemID, sh.Network, string(sh.Status), sh.ExternalID, sh.Error, now,
	)
	if err != nil {
		return fmt.Errorf("insert share: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	sh.ID = id
	sh.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// ListShares returns every cross-post attempt recorded for an item.
func (s *SQLite) ListShares(ctx context.Context, itemID int64) ([]model.Share, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item_id, network, status, external_id, error, created_at
		 FROM social_shares WHERE item_id = ? ORDER BY id`, itemID)
	if err != nil {
		return nil, fmt.Errorf("query shares: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var shares []model.Share
	for rows.Next() {
		var sh model.Share
		var status, created string
		if err := rows.Scan(&sh.ID, &sh.ItemID, &sh.Network, &status, &sh.ExternalID, &sh.Error, &created); err != nil {
			return nil, fmt.Errorf("scan share: %w", err)
		}
		sh.Status = model.ShareStatus(status)
		sh.CreatedAt, _ = time.Parse(timeLayout, created)
		shares = append(shares, sh)
	}
	return shares, rows.Err()
}

// DeleteOrphans removes rows that reference items which no longer exist, and
// terms no item uses.
func (s *SQLite) DeleteOrphans(ctx context.Context) (CleanupStats, error) {
	var stats CleanupStats
	orphan := sq.Expr("item_id NOT IN (SELECT id FROM content_items)")

	steps := []struct {
		del     sq.DeleteBuilder
		counter *int64
	}{
		{psql.Delete("item_meta").Where(orphan), &stats.Meta},
		{psql.Delete("custom_fields").Where(orphan), &stats.Fields},
		{psql.Delete("item_categories").Where(orphan), &stats.Categories},
		{psql.Delete("categories").Where("id NOT IN (SELECT category_id FROM item_categories)"), &stats.Categories},
		{psql.Delete("item_tags").Where(orphan), &stats.Tags},
		{psql.Delete("tags").Where("id NOT IN (SELECT tag_id FROM item_tags)"), &stats.Tags},
		{psql.Delete("item_assets").Where(orphan), &stats.AssetLinks},
		{psql.Delete("social_shares").Where(orphan), &stats.Shares},
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, step := range steps {
		query, args, err := step.del.ToSql()
		if err != nil {
			return stats, fmt.Errorf("build cleanup query: %w", err)
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return stats, fmt.Errorf("cleanup: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return stats, fmt.Errorf("rows affected: %w", err)
		}
		*step.counter += n
	}
	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("commit cleanup: %w", err)
	}
	return stats, nil
}

func (s *SQLite) loadTaxonomy(ctx context.Context, item *model.ContentItem) error {
	cats, err := s.queryNames(ctx,
		`SELECT c.name FROM categories c JOIN item_categories ic ON ic.category_id = c.id
		 WHERE ic.item_id = ? ORDER BY c.id`, item.ID)
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}
	tags, err := s.queryNames(ctx,
		`SELECT t.name FROM tags t JOIN item_tags it ON it.tag_id = t.id
		 WHERE it.item_id = ? ORDER BY t.id`, item.ID)
	if err != nil {
		return fmt.Errorf("load tags: %w", err)
	}
	item.Categories = cats
	item.Tags = tags
	return nil
}

func (s *SQLite) queryNames(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLite) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type scannable interface {
	Scan(dest ...any) error
}

func scanItem(row scannable) (*model.ContentItem, error) {
	var it model.ContentItem
	var kind, genres, status, created, updated string
	err := row.Scan(&it.ID, &it.SourceID, &kind, &it.Title, &it.Slug, &it.Synopsis, &it.ReleaseDate,
		&it.Runtime, &genres, &it.Rating, &it.Platform, &it.Body, &it.TrailerKey, &it.FeaturedAssetID,
		&status, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan item: %w", err)
	}
	it.Kind = model.Kind(kind)
	it.Status = model.ItemStatus(status)
	if err := json.Unmarshal([]byte(genres), &it.Genres); err != nil {
		return nil, fmt.Errorf("decode genres: %w", err)
	}
	if len(it.Genres) == 0 {
		it.Genres = nil
	}
	it.CreatedAt, _ = time.Parse(timeLayout, created)
	it.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return &it, nil
}

func scanAsset(row scannable) (*model.Asset, error) {
	var a model.Asset
	var created string
	if err := row.Scan(&a.ID, &a.SourceURL, &a.FilePath, &a.MimeType, &a.Size, &a.Description, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan asset: %w", err)
	}
	a.CreatedAt, _ = time.Parse(timeLayout, created)
	return &a, nil
}
