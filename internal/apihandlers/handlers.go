package apihandlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"memcat/internal/app"
	"memcat/internal/models"
	"memcat/internal/services"
	"memcat/pkg/categorizer"
)

const defaultPageSize = 20

type APIHandler struct {
	App *app.App
}

func NewAPIHandler(app *app.App) *APIHandler {
	return &APIHandler{App: app}
}

type CreateMemoryRequest struct {
	Content  string          `json:"content" binding:"required"`
	UserID   string          `json:"user_id"`
	AppName  string          `json:"app_name"`
	Metadata json.RawMessage `json:"metadata"`
}

type UpdateMemoryRequest struct {
	Content string `json:"content" binding:"required"`
}

type CategorizeRequest struct {
	Text string `json:"text" binding:"required"`
}

type CategorizeResponse struct {
	Categories []string           `json:"categories"`
	Status     categorizer.Status `json:"status"`
}

// CreateMemoryHandler handles POST /memories.
func (h *APIHandler) CreateMemoryHandler(c *gin.Context) {
	var req CreateMemoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	memory, err := h.App.MemoryService.CreateMemory(c.Request.Context(), services.CreateMemoryParams{
		UserID:   req.UserID,
		AppName:  req.AppName,
		Content:  req.Content,
		Metadata: req.Metadata,
	})
	if err != nil {
		ServiceError(c, "CreateMemoryHandler: failed to create memory", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": memory})
}

// ListMemoriesHandler handles GET /memories.
func (h *APIHandler) ListMemoriesHandler(c *gin.Context) {
	limit, offset, err := parsePagination(c)
	if err != nil {
		BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}
	memories, err := h.App.MemoryService.ListMemories(c.Request.Context(), models.MemoryFilter{
		UserID:   c.Query("user_id"),
		Category: c.Query("category"),
		State:    models.MemoryState(c.Query("state")),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		ServiceError(c, "ListMemoriesHandler: failed to list memories", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": memories})
}

// GetMemoryHandler handles GET /memories/:id.
func (h *APIHandler) GetMemoryHandler(c *gin.Context) {
	id, ok := memoryIDParam(c)
	if !ok {
		return
	}
	memory, err := h.App.MemoryService.GetMemory(c.Request.Context(), id)
	if err != nil {
		ServiceError(c, "GetMemoryHandler: failed to retrieve memory", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": memory})
}

// UpdateMemoryHandler handles PUT /memories/:id.
func (h *APIHandler) UpdateMemoryHandler(c *gin.Context) {
	id, ok := memoryIDParam(c)
	if !ok {
		return
	}
	var req UpdateMemoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	memory, err := h.App.MemoryService.UpdateMemory(c.Request.Context(), id, req.Content)
	if err != nil {
		ServiceError(c, "UpdateMemoryHandler: failed to update memory", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": memory})
}

// ArchiveMemoryHandler handles POST /memories/:id/archive.
func (h *APIHandler) ArchiveMemoryHandler(c *gin.Context) {
	id, ok := memoryIDParam(c)
	if !ok {
		return
	}
	memory, err := h.App.MemoryService.ArchiveMemory(c.Request.Context(), id)
	if err != nil {
		ServiceError(c, "ArchiveMemoryHandler: failed to archive memory", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": memory})
}

// DeleteMemoryHandler handles DELETE /memories/:id.
func (h *APIHandler) DeleteMemoryHandler(c *gin.Context) {
	id, ok := memoryIDParam(c)
	if !ok {
		return
	}
	if err := h.App.MemoryService.DeleteMemory(c.Request.Context(), id); err != nil {
		ServiceError(c, "DeleteMemoryHandler: failed to delete memory", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CategorizeMemoryHandler handles POST /memories/:id/categorize.
func (h *APIHandler) CategorizeMemoryHandler(c *gin.Context) {
	id, ok := memoryIDParam(c)
	if !ok {
		return
	}
	memory, err := h.App.MemoryService.RecategorizeMemory(c.Request.Context(), id)
	if err != nil {
		ServiceError(c, "CategorizeMemoryHandler: failed to categorize memory", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": memory})
}

// CategorizeHandler handles POST /categorize. Categorization never fails the
// request: when the model cannot help, the categories are empty.
func (h *APIHandler) CategorizeHandler(c *gin.Context) {
	var req CategorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	res, err := h.App.CategorizationService.Suggest(c.Request.Context(), req.Text)
	if err != nil {
		log.Warnf("CategorizeHandler: categorization failed: %v", err)
	}
	if res.Labels == nil {
		res.Labels = []string{}
	}
	if res.Status == "" {
		res.Status = categorizer.StatusFailed
	}
	c.JSON(http.StatusOK, CategorizeResponse{Categories: res.Labels, Status: res.Status})
}

// ListCategoriesHandler handles GET /categories.
func (h *APIHandler) ListCategoriesHandler(c *gin.Context) {
	limit, offset, err := parsePagination(c)
	if err != nil {
		BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}
	cats, err := h.App.CategorizationService.ListCategories(c.Request.Context(), limit, offset)
	if err != nil {
		ServiceError(c, "ListCategoriesHandler: failed to list categories", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": cats})
}

// ListUsageHandler handles GET /usage.
func (h *APIHandler) ListUsageHandler(c *gin.Context) {
	limit, offset, err := parsePagination(c)
	if err != nil {
		BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}
	logs, err := h.App.UsageService.ListUsage(c.Request.Context(), limit, offset)
	if err != nil {
		ServiceError(c, "ListUsageHandler: failed to list usage", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": logs})
}

// UsageSummaryHandler handles GET /usage/summary.
func (h *APIHandler) UsageSummaryHandler(c *gin.Context) {
	summary, err := h.App.UsageService.GetSummary(c.Request.Context())
	if err != nil {
		ServiceError(c, "UsageSummaryHandler: failed to summarize usage", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summary})
}

// HealthHandler reports whether the database answers.
func (h *APIHandler) HealthHandler(c *gin.Context) {
	if err := h.App.Store.Ping(c.Request.Context()); err != nil {
		JSONError(c, http.StatusServiceUnavailable, "unavailable", "database unreachable: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func memoryIDParam(c *gin.Context) (uuid.UUID, bool) {
	raw := c.Param("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		BadRequest(c, fmt.Sprintf("Invalid memory ID: %s", raw))
		return uuid.Nil, false
	}
	return id, true
}

func parsePagination(c *gin.Context) (limit, offset int, err error) {
	limit = defaultPageSize
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			return 0, 0, fmt.Errorf("invalid limit: %s", l)
		}
		limit = parsed
	}
	if o := c.Query("offset"); o != "" {
		parsed, err := strconv.Atoi(o)
		if err != nil || parsed < 0 {
			return 0, 0, fmt.Errorf("invalid offset: %s", o)
		}
		offset = parsed
	}
	return limit, offset, nil
}
