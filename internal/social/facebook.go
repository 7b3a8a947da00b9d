package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotConfigured is returned when a network lacks credentials.
var ErrNotConfigured = errors.New("social network is not configured")

// GraphError is an error payload returned by the Graph API.
type GraphError struct {
	StatusCode int
	Type       string
	Code       int
	Message    string
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("graph api error: status %d code %d %s: %s", e.StatusCode, e.Code, e.Type, e.Message)
}

// Facebook posts to a page through the Graph API: a photo post when the share has an
// image, a feed post with a link otherwise.
type Facebook struct {
	http     HTTPClient
	graphURL string
	pageID   string
	token    string
	timeout  time.Duration
}

// NewFacebook creates a page poster. A nil client uses http.DefaultClient.
func NewFacebook(client HTTPClient, graphURL, pageID, token string) *Facebook {
	if client == nil {
		client = http.DefaultClient
	}
	if graphURL == "" {
		graphURL = "https://graph.facebook.com/v19.0"
	}
	return &Facebook{
		http:     client,
		graphURL: strings.TrimRight(graphURL, "/"),
		pageID:   pageID,
		token:    token,
		timeout:  20 * time.Second,
	}
}

// Name implements Network.
func (f *Facebook) Name() string { return "facebook" }

// Configured reports whether a page ID and token are set.
func (f *Facebook) Configured() bool {
	return f.pageID != "" && f.token != ""
}

// Share implements Network.
func (f *Facebook) Share(ctx context.Context, p Post) (string, error) {
	if !f.Configured() {
		return "", fmt.Errorf("facebook: %w", ErrNotConfigured)
	}

	form := url.Values{"access_token": {f.token}}
	endpoint := "/feed"
	if p.ImageURL != "" {
		endpoint = "/photos"
		form.Set("url", p.ImageURL)
		caption := p.Message
		if p.Link != "" {
			caption += "\n\n" + p.Link
		}
		form.Set("caption", caption)
	} else {
		form.Set("message", p.Message)
		if p.Link != "" {
			form.Set("link", p.Link)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	target := f.graphURL + "/" + url.PathEscape(f.pageID) + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create graph request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("graph request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read graph response: %w", err)
	}

	var out struct {
		ID     string `json:"id"`
		PostID string `json:"post_id"`
		Error  *struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &out); err != nil && resp.StatusCode < http.StatusBadRequest {
		return "", fmt.Errorf("decode graph response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest || out.Error != nil {
		ge := &GraphError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		if out.Error != nil {
			ge.Type, ge.Code, ge.Message = out.Error.Type, out.Error.Code, out.Error.Message
		}
		return "", ge
	}

	// Photo posts report the feed story as post_id.
	if out.PostID != "" {
		return out.PostID, nil
	}
	return out.ID, nil
}
