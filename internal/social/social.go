// Package social cross-posts newly created items to social networks and records every
// attempt.
package social

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"reelpress/internal/model"
	"reelpress/internal/storage"
)

const maxSynopsis = 280

// Post is the network-neutral content of one share.
type Post struct {
	ItemID   int64
	Title    string
	Message  string
	Link     string
	ImageURL string
}

// Network publishes a Post and returns the network's ID for it.
type Network interface {
	Name() string
	Share(ctx context.Context, p Post) (string, error)
}

// HTTPClient is the interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// CrossPoster shares items on every configured network.
type CrossPoster struct {
	store    storage.Storage
	networks []Network
	siteURL  string
	log      *slog.Logger
}

// NewCrossPoster creates a CrossPoster. siteURL, when set, is used to build item links.
func NewCrossPoster(store storage.Storage, siteURL string, log *slog.Logger, networks ...Network) *CrossPoster {
	return &CrossPoster{
		store:    store,
		networks: networks,
		siteURL:  strings.TrimRight(siteURL, "/"),
		log:      log.With("component", "social"),
	}
}

// Networks returns the names of the configured networks.
func (c *CrossPoster) Networks() []string {
	names := make([]string, 0, len(c.networks))
	for _, n := range c.networks {
		names = append(names, n.Name())
	}
	return names
}

// Announce shares item on every network. Each attempt is recorded; the returned error
// joins the failures.
func (c *CrossPoster) Announce(ctx context.Context, item *model.ContentItem, meta model.Metadata) error {
	post := c.BuildPost(item, meta)

	var errs []error
	for _, n := range c.networks {
		share := model.Share{ItemID: item.ID, Network: n.Name(), Status: model.ShareSent}
		id, err := n.Share(ctx, post)
		if err != nil {
			share.Status = model.ShareFailed
			share.Error = err.Error()
			errs = append(errs, fmt.Errorf("share on %s: %w", n.Name(), err))
		} else {
			share.ExternalID = id
			c.log.Info("shared item", "network", n.Name(), "item_id", item.ID, "external_id", id)
		}
		if err := c.store.CreateShare(ctx, &share); err != nil {
			errs = append(errs, fmt.Errorf("record %s share: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// BuildPost renders the share content for item.
func (c *CrossPoster) BuildPost(item *model.ContentItem, meta model.Metadata) Post {
	var b strings.Builder
	b.WriteString(item.Title)
	if s := truncate(strings.TrimSpace(meta.Synopsis), maxSynopsis); s != "" {
		b.WriteString("\n\n")
		b.WriteString(s)
	}
	if item.Platform != "" {
		fmt.Fprintf(&b, "\n\nNow streaming on %s.", item.Platform)
	}

	p := Post{ItemID: item.ID, Title: item.Title, Message: b.String()}
	if c.siteURL != "" && item.Slug != "" {
		p.Link = c.siteURL + "/" + item.Slug
	}
	p.ImageURL = meta.BackdropURL
	if p.ImageURL == "" {
		p.ImageURL = meta.PosterURL
	}
	return p
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	cut := strings.TrimRight(string(r[:n]), " ,.;:")
	return cut + "..."
}
