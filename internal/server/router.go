package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/notemirror/backend/internal/auth"
	"github.com/notemirror/backend/internal/catalog"
	"github.com/notemirror/backend/internal/syncer"
)

const apiPrefix = "/api/v1/evernote"

var (
	errMissingSyncService    = errors.New("sync service dependency required")
	errMissingCatalogService = errors.New("catalog service dependency required")
)

// SyncService is the slice of the sync engine the router needs.
type SyncService interface {
	SyncUser(ctx context.Context, userID int64) (syncer.Summary, error)
	StoreCredentials(ctx context.Context, userID int64, token string) (auth.Credentials, error)
}

// CatalogService is the read-side surface exposed over HTTP.
type CatalogService interface {
	ListNotebooks(ctx context.Context, userID int64) ([]catalog.NotebookView, error)
	ListNotes(ctx context.Context, userID int64, filters catalog.NoteFilters) (catalog.NotesPage, error)
	SyncHistory(ctx context.Context, userID int64, limit int) ([]syncer.SyncLog, error)
	ToggleNotebookSync(ctx context.Context, notebookID int64) (bool, error)
}

// Dependencies wires the HTTP surface.
type Dependencies struct {
	SyncService    SyncService
	CatalogService CatalogService
	Logger         *zap.Logger
}

// NewHTTPHandler builds the gin router exposing the sync and catalog
// operations.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.SyncService == nil {
		return nil, errMissingSyncService
	}
	if deps.CatalogService == nil {
		return nil, errMissingCatalogService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		sync:    deps.SyncService,
		catalog: deps.CatalogService,
		logger:  logger,
	}

	router.GET("/health", handler.handleHealth)

	api := router.Group(apiPrefix)
	api.POST("/auth/callback", handler.handleAuthCallback)
	api.POST("/sync/:user_id", handler.handleTriggerSync)
	api.GET("/sync/:user_id/status", handler.handleSyncStatus)
	api.GET("/users/:user_id/notebooks", handler.handleListNotebooks)
	api.GET("/users/:user_id/notes", handler.handleListNotes)
	api.PATCH("/notebooks/:notebook_id/toggle-sync", handler.handleToggleSync)

	return router, nil
}

type httpHandler struct {
	sync    SyncService
	catalog CatalogService
	logger  *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type authCallbackPayload struct {
	UserID int64  `json:"user_id"`
	Token  string `json:"token"`
}

func (h *httpHandler) handleAuthCallback(c *gin.Context) {
	var request authCallbackPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.UserID == 0 || request.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	creds, err := h.sync.StoreCredentials(c.Request.Context(), request.UserID, request.Token)
	if err != nil {
		if errors.Is(err, syncer.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user_not_found"})
			return
		}
		if errors.Is(err, auth.ErrMalformedToken) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed_token"})
			return
		}
		h.logger.Error("credential store failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "credential_store_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "connected",
		"user_id":        request.UserID,
		"remote_user_id": creds.RemoteUserID,
		"expires_at":     creds.ExpiresAt,
	})
}

func (h *httpHandler) handleTriggerSync(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	summary, err := h.sync.SyncUser(c.Request.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, syncer.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user_not_found"})
		case errors.Is(err, auth.ErrNotConnected), errors.Is(err, auth.ErrTokenExpired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "remote_not_connected"})
		default:
			h.logger.Error("sync failed",
				zap.Int64("user_id", userID),
				zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *httpHandler) handleSyncStatus(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))

	logs, err := h.catalog.SyncHistory(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger.Error("sync history query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history_query_failed"})
		return
	}

	entries := make([]gin.H, 0, len(logs))
	for _, log := range logs {
		entries = append(entries, gin.H{
			"id":               log.ID,
			"pass_id":          log.PassID,
			"type":             log.SyncType,
			"status":           log.Status,
			"notes_synced":     log.NotesSynced,
			"notebooks_synced": log.NotebooksSynced,
			"error":            log.ErrorMessage,
			"started_at":       log.StartedAt,
			"finished_at":      log.FinishedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "syncs": entries})
}

func (h *httpHandler) handleListNotebooks(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	views, err := h.catalog.ListNotebooks(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("notebook listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "notebook_query_failed"})
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *httpHandler) handleListNotes(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	notebookID, _ := strconv.ParseInt(c.Query("notebook_id"), 10, 64)

	filters := catalog.NoteFilters{
		Text:       c.Query("q"),
		Tag:        c.Query("tag"),
		Company:    c.Query("company"),
		NotebookID: notebookID,
		SharedOnly: c.Query("shared_only") == "true",
		Limit:      limit,
		Offset:     offset,
	}

	page, err := h.catalog.ListNotes(c.Request.Context(), userID, filters)
	if err != nil {
		h.logger.Error("note listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "note_query_failed"})
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *httpHandler) handleToggleSync(c *gin.Context) {
	notebookID, ok := pathID(c, "notebook_id")
	if !ok {
		return
	}

	newState, err := h.catalog.ToggleNotebookSync(c.Request.Context(), notebookID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotebookNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notebook_not_found"})
			return
		}
		h.logger.Error("toggle sync failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "toggle_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notebook_id": notebookID, "sync_enabled": newState})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_" + name})
		return 0, false
	}
	return id, true
}
