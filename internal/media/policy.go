package media

import (
	"context"
	"errors"
	"fmt"

	"reelpress/internal/model"
)

// PrimaryImage picks the featured image: the landscape backdrop when there is one,
// otherwise the poster. The other image, if any, is returned as secondary.
func PrimaryImage(backdrop, poster string) (primary, secondary string) {
	if backdrop != "" {
		return backdrop, poster
	}
	return poster, ""
}

// AttachImages imports the item's images and sets its featured asset. When the primary
// image fails the secondary is promoted. The returned error joins every failure; the
// item itself is left intact either way.
func (im *Importer) AttachImages(ctx context.Context, itemID int64, meta model.Metadata) (*model.Asset, error) {
	primary, secondary := PrimaryImage(meta.BackdropURL, meta.PosterURL)
	if primary == "" {
		return nil, nil
	}

	var errs []error
	featured, err := im.Import(ctx, primary, itemID, meta.Title, model.RoleFeatured)
	if err != nil {
		errs = append(errs, fmt.Errorf("primary image: %w", err))
	}

	if secondary != "" {
		role := model.RoleGallery
		if featured == nil {
			role = model.RoleFeatured
		}
		asset, err := im.Import(ctx, secondary, itemID, meta.Title+" poster", role)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("secondary image: %w", err))
		case featured == nil:
			featured = asset
		}
	}

	if featured != nil {
		if err := im.store.SetFeaturedAsset(ctx, itemID, featured.ID); err != nil {
			errs = append(errs, fmt.Errorf("set featured asset: %w", err))
		}
	}
	return featured, errors.Join(errs...)
}
