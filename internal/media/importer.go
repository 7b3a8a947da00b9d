// Package media downloads remote images and registers them as assets owned by items.
// Every source URL is downloaded at most once; later imports of the same URL reuse the
// stored asset and only add a new owner link.
package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"reelpress/internal/model"
	"reelpress/internal/storage"
)

// Errors returned by Import.
var (
	ErrBadStatus = errors.New("media: unexpected response status")
	ErrNotImage  = errors.New("media: response is not an image")
	ErrTooLarge  = errors.New("media: image exceeds size limit")
)

// OptionPrefix namespaces the source-URL dedup index in the options store.
const OptionPrefix = "asset_src_"

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Importer downloads and registers assets.
type Importer struct {
	store    storage.Storage
	http     HTTPClient
	dir      string
	timeout  time.Duration
	maxBytes int64
	log      *slog.Logger
}

// New creates an Importer that stores files under dir.
func New(store storage.Storage, client HTTPClient, dir string, log *slog.Logger) *Importer {
	if client == nil {
		client = http.DefaultClient
	}
	return &Importer{
		store:    store,
		http:     client,
		dir:      dir,
		timeout:  20 * time.Second,
		maxBytes: 10 << 20,
		log:      log.With("component", "media"),
	}
}

// SetLimits overrides the download timeout and size cap.
func (im *Importer) SetLimits(timeout time.Duration, maxBytes int64) {
	im.timeout = timeout
	im.maxBytes = maxBytes
}

// DedupKey returns the options key indexing srcURL.
func DedupKey(srcURL string) string {
	return OptionPrefix + urlHash(srcURL)[:32]
}

func urlHash(srcURL string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(srcURL)))
	return hex.EncodeToString(sum[:])
}

// Import attaches the image at srcURL to ownerID, downloading it only if no asset was
// imported from that URL before.
func (im *Importer) Import(ctx context.Context, srcURL string, ownerID int64, description string, role model.AssetRole) (*model.Asset, error) {
	srcURL = strings.TrimSpace(srcURL)
	if srcURL == "" {
		return nil, errors.New("media: empty source url")
	}

	asset, err := im.lookup(ctx, srcURL)
	if err != nil {
		return nil, err
	}
	if asset != nil {
		im.log.Debug("reusing asset", "asset_id", asset.ID, "url", srcURL, "owner", ownerID)
	} else {
		asset, err = im.download(ctx, srcURL, description)
		if err != nil {
			return nil, err
		}
	}

	if err := im.store.AttachAsset(ctx, ownerID, asset.ID, role); err != nil {
		return nil, fmt.Errorf("attach asset %d to item %d: %w", asset.ID, ownerID, err)
	}
	return asset, nil
}

func (im *Importer) lookup(ctx context.Context, srcURL string) (*model.Asset, error) {
	key := DedupKey(srcURL)
	raw, err := im.store.GetOption(ctx, key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("read dedup index: %w", err)
	default:
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			asset, err := im.store.GetAsset(ctx, id)
			if err == nil {
				return asset, nil
			}
			if !errors.Is(err, storage.ErrNotFound) {
				return nil, fmt.Errorf("load indexed asset: %w", err)
			}
		}
	}

	// The index is missing or stale. The assets table is the source of truth.
	asset, err := im.store.FindAssetBySource(ctx, srcURL)
	if errors.Is(err, storage.ErrNotFound) {
		if raw != "" {
			if err := im.store.DeleteOption(ctx, key); err != nil {
				return nil, fmt.Errorf("drop stale dedup entry: %w", err)
			}
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find asset by source: %w", err)
	}
	if err := im.store.SetOption(ctx, key, strconv.FormatInt(asset.ID, 10)); err != nil {
		im.log.Warn("reindex asset", "asset_id", asset.ID, "url", srcURL, "error", err)
	}
	return asset, nil
}

func (im *Importer) download(ctx context.Context, srcURL, description string) (*model.Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, im.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "reelpress/1.0")

	resp, err := im.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", srcURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w %d for %s", ErrBadStatus, resp.StatusCode, srcURL)
	}
	mimeType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%w: %q", ErrNotImage, resp.Header.Get("Content-Type"))
	}
	if resp.ContentLength > im.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength)
	}

	if err := os.MkdirAll(im.dir, 0o750); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	// Each download gets its own file name, so a failure only ever removes the file
	// this call created.
	out, err := os.CreateTemp(im.dir, urlHash(srcURL)[:16]+"-*"+extension(mimeType, srcURL))
	if err != nil {
		return nil, fmt.Errorf("create media file: %w", err)
	}
	name := out.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(name)
		}
	}()

	n, err := io.Copy(out, io.LimitReader(resp.Body, im.maxBytes+1))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", srcURL, err)
	}
	if n > im.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, im.maxBytes)
	}

	asset := &model.Asset{
		SourceURL:   srcURL,
		FilePath:    name,
		MimeType:    mimeType,
		Size:        n,
		Description: description,
	}
	if err := im.store.CreateAsset(ctx, asset, DedupKey(srcURL)); err != nil {
		// Another import may have registered the URL in the meantime.
		if existing, findErr := im.store.FindAssetBySource(ctx, srcURL); findErr == nil {
			im.log.Debug("asset registered concurrently", "asset_id", existing.ID, "url", srcURL)
			return existing, nil
		}
		return nil, fmt.Errorf("register asset: %w", err)
	}
	committed = true

	im.log.Info("imported asset", "asset_id", asset.ID, "url", srcURL, "bytes", n)
	return asset, nil
}

func extension(mimeType, srcURL string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	if u, err := url.Parse(srcURL); err == nil {
		if ext := path.Ext(u.Path); ext != "" && len(ext) <= 5 {
			return strings.ToLower(ext)
		}
	}
	return ".img"
}
