package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"reelpress/internal/batch"
	"reelpress/internal/model"
	"reelpress/internal/storage"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

func registerRoutes(r *gin.Engine, api *API) {
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/health", api.handleHealth)
		apiGroup.GET("/platforms", api.handlePlatforms)

		apiGroup.POST("/batches", api.handleSubmitBatch)
		apiGroup.GET("/batches/:token", api.handleBatchStatus)

		apiGroup.GET("/items", api.handleListItems)
		apiGroup.GET("/items/:id", api.handleGetItem)
		apiGroup.DELETE("/items/:id", api.handleTrashItem)

		apiGroup.GET("/discover", api.handleDiscover)
		apiGroup.POST("/maintenance/cleanup", api.handleCleanup)
	}
}

func (a *API) handleHealth(c *gin.Context) {
	if err := a.deps.Store.Ping(c.Request.Context()); err != nil {
		a.log.Error("health check", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *API) handlePlatforms(c *gin.Context) {
	respondData(c, http.StatusOK, model.KnownPlatforms)
}

type submitRequest struct {
	IDs      []int64 `json:"ids" binding:"required"`
	Platform string  `json:"platform"`
	Kind     string  `json:"kind"`
	Wait     bool    `json:"wait"`
}

func (a *API) handleSubmitBatch(c *gin.Context) {
	var payload submitRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	job, err := a.deps.Batches.Submit(c.Request.Context(), batch.Request{
		SourceIDs: payload.IDs,
		Platform:  payload.Platform,
		Kind:      model.Kind(payload.Kind),
	})
	switch {
	case errors.Is(err, batch.ErrInvalidRequest):
		respondError(c, http.StatusBadRequest, err)
		return
	case errors.Is(err, batch.ErrNotConfigured):
		respondError(c, http.StatusServiceUnavailable, err)
		return
	case err != nil:
		a.log.Error("submit batch", "error", err)
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	budget := a.deps.Batches.Budget(job.Total)

	if payload.Wait {
		ctx, cancel := context.WithTimeout(c.Request.Context(), budget)
		defer cancel()
		done, err := a.deps.Batches.Process(ctx, job.Token)
		if err != nil {
			a.log.Error("process batch", "batch", job.Token, "error", err)
			respondError(c, http.StatusInternalServerError, err)
			return
		}
		respondData(c, http.StatusOK, gin.H{
			"token":   done.Token,
			"message": batch.Summary(done),
			"job":     newJobResponse(done),
		})
		return
	}

	a.wg.Add(1)
	go func(token string) {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(a.base, budget)
		defer cancel()
		if _, err := a.deps.Batches.Process(ctx, token); err != nil {
			a.log.Error("process batch", "batch", token, "error", err)
		}
	}(job.Token)

	respondData(c, http.StatusAccepted, gin.H{
		"token":   job.Token,
		"message": "batch queued, poll /api/batches/" + job.Token,
		"budget":  budget.String(),
	})
}

type jobResponse struct {
	*model.BatchJob
	CompletedCount int `json:"completed_count"`
	FailedCount    int `json:"failed_count"`
	SkippedCount   int `json:"skipped_count"`
}

func newJobResponse(j *model.BatchJob) jobResponse {
	return jobResponse{
		BatchJob:       j,
		CompletedCount: len(j.Completed),
		FailedCount:    len(j.Failed),
		SkippedCount:   len(j.Skipped),
	}
}

func (a *API) handleBatchStatus(c *gin.Context) {
	job, err := a.deps.Batches.Status(c.Request.Context(), c.Param("token"))
	if errors.Is(err, batch.ErrJobNotFound) {
		respondMessage(c, http.StatusNotFound, "batch not found")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	respondData(c, http.StatusOK, newJobResponse(job))
}

type itemResponse struct {
	ID              int64            `json:"id"`
	SourceID        int64            `json:"source_id"`
	Kind            model.Kind       `json:"kind"`
	Title           string           `json:"title"`
	Slug            string           `json:"slug"`
	Synopsis        string           `json:"synopsis"`
	ReleaseDate     string           `json:"release_date,omitempty"`
	Runtime         int              `json:"runtime,omitempty"`
	Genres          []string         `json:"genres"`
	Rating          string           `json:"rating,omitempty"`
	Platform        string           `json:"platform"`
	Body            string           `json:"body,omitempty"`
	TrailerKey      string           `json:"trailer_key,omitempty"`
	FeaturedAssetID int64            `json:"featured_asset_id,omitempty"`
	Status          model.ItemStatus `json:"status"`
	Categories      []string         `json:"categories"`
	Tags            []string         `json:"tags"`
	Assets          []assetResponse  `json:"assets,omitempty"`
	Shares          []shareResponse  `json:"shares,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

type assetResponse struct {
	ID        int64  `json:"id"`
	SourceURL string `json:"source_url"`
	FilePath  string `json:"file_path"`
	MimeType  string `json:"mime_type"`
	Size      int64  `json:"size"`
}

type shareResponse struct {
	Network    string            `json:"network"`
	Status     model.ShareStatus `json:"status"`
	ExternalID string            `json:"external_id,omitempty"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

func newItemResponse(it *model.ContentItem, withBody bool) itemResponse {
	r := itemResponse{
		ID:              it.ID,
		SourceID:        it.SourceID,
		Kind:            it.Kind,
		Title:           it.Title,
		Slug:            it.Slug,
		Synopsis:        it.Synopsis,
		ReleaseDate:     it.ReleaseDate,
		Runtime:         it.Runtime,
		Genres:          nonNil(it.Genres),
		Rating:          it.Rating,
		Platform:        it.Platform,
		TrailerKey:      it.TrailerKey,
		FeaturedAssetID: it.FeaturedAssetID,
		Status:          it.Status,
		Categories:      nonNil(it.Categories),
		Tags:            nonNil(it.Tags),
		CreatedAt:       it.CreatedAt,
		UpdatedAt:       it.UpdatedAt,
	}
	if withBody {
		r.Body = it.Body
	}
	return r
}

func (a *API) handleListItems(c *gin.Context) {
	q := storage.ItemQuery{
		Platform: c.Query("platform"),
		Status:   model.ItemStatus(c.Query("status")),
		Limit:    defaultLimit,
	}
	if raw := c.Query("kind"); raw != "" {
		kind, ok := model.ParseKind(raw)
		if !ok {
			respondMessage(c, http.StatusBadRequest, "invalid kind: use movie, series or auto")
			return
		}
		q.Kind = kind
	}
	var err error
	if q.Limit, err = queryUint(c, "limit", defaultLimit); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	if q.Offset, err = queryUint(c, "offset", 0); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	items, err := a.deps.Store.ListItems(c.Request.Context(), q)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	out := make([]itemResponse, 0, len(items))
	for i := range items {
		out = append(out, newItemResponse(&items[i], false))
	}
	respondData(c, http.StatusOK, out)
}

func (a *API) handleGetItem(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	item, err := a.deps.Store.GetItem(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		respondMessage(c, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	resp := newItemResponse(item, true)
	if a.deps.Platforms != nil {
		if platform, err := a.deps.Platforms.Platform(ctx, id); err == nil && platform != "" {
			resp.Platform = platform
		}
	}

	assets, err := a.deps.Store.ItemAssets(ctx, id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	for _, as := range assets {
		resp.Assets = append(resp.Assets, assetResponse{
			ID: as.ID, SourceURL: as.SourceURL, FilePath: as.FilePath, MimeType: as.MimeType, Size: as.Size,
		})
	}

	shares, err := a.deps.Store.ListShares(ctx, id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	for _, s := range shares {
		resp.Shares = append(resp.Shares, shareResponse{
			Network: s.Network, Status: s.Status, ExternalID: s.ExternalID, Error: s.Error, CreatedAt: s.CreatedAt,
		})
	}

	respondData(c, http.StatusOK, resp)
}

func (a *API) handleTrashItem(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	err := a.deps.Store.TrashItem(c.Request.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		respondMessage(c, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) handleDiscover(c *gin.Context) {
	if a.deps.Discovery == nil {
		respondMessage(c, http.StatusServiceUnavailable, "no discovery feeds are configured")
		return
	}
	candidates, err := a.deps.Discovery.Discover(c.Request.Context())
	if err != nil && len(candidates) == 0 {
		respondError(c, http.StatusBadGateway, err)
		return
	}
	if err != nil {
		a.log.Warn("discovery partially failed", "error", err)
	}
	if candidates == nil {
		candidates = []model.Candidate{}
	}
	respondData(c, http.StatusOK, candidates)
}

func (a *API) handleCleanup(c *gin.Context) {
	report, err := a.deps.Maintenance.Sweep(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	respondData(c, http.StatusOK, report)
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondMessage(c, http.StatusBadRequest, "invalid item id")
		return 0, false
	}
	return id, true
}

func queryUint(c *gin.Context, key string, def uint64) (uint64, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.New("invalid " + key + ": must be a non-negative integer")
	}
	return v, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func respondData(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondError(c *gin.Context, status int, err error) {
	respondMessage(c, status, err.Error())
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}
