package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"contracttracker/internal/governance"
	"contracttracker/internal/service/variation"
)

type VariationHandler struct {
	service *variation.Service
	logger  *zap.Logger
}

func NewVariationHandler(service *variation.Service, logger *zap.Logger) *VariationHandler {
	return &VariationHandler{service: service, logger: logger}
}

type draftRequest struct {
	ProjectID uuid.UUID                `json:"project_id" binding:"required"`
	Change    governance.PendingChange `json:"change"`
}

type draftBatchRequest struct {
	ProjectID uuid.UUID                  `json:"project_id" binding:"required"`
	Changes   []governance.PendingChange `json:"changes"`
}

// Draft handles POST /variations/draft
func (h *VariationHandler) Draft(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req draftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	draft, err := h.service.DraftFromChange(c.Request.Context(), actor, req.ProjectID, req.Change)
	if err != nil {
		respondError(c, h.logger, "draft variation", err)
		return
	}
	c.JSON(http.StatusCreated, draft)
}

// DraftBatch handles POST /variations/draft-batch
func (h *VariationHandler) DraftBatch(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req draftBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	// 批次只在本次请求内存在；同一 item/field 的重复修改按后者为准
	batch := &governance.Batch{}
	for _, change := range req.Changes {
		batch.Add(change)
	}

	draft, err := h.service.DraftFromBatch(c.Request.Context(), actor, req.ProjectID, batch)
	if err != nil {
		respondError(c, h.logger, "draft batch variation", err)
		return
	}
	c.JSON(http.StatusCreated, draft)
}
