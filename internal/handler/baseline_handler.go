package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"contracttracker/internal/model"
	"contracttracker/internal/service/baseline"
)

type BaselineHandler struct {
	service *baseline.Service
	logger  *zap.Logger
}

func NewBaselineHandler(service *baseline.Service, logger *zap.Logger) *BaselineHandler {
	return &BaselineHandler{service: service, logger: logger}
}

type signRequest struct {
	Party model.Party `json:"party" binding:"required"`
}

// Get handles GET /milestones/:id/baseline
func (h *BaselineHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	view, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "get baseline", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Sign handles POST /milestones/:id/baseline/sign
func (h *BaselineHandler) Sign(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req signRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	view, err := h.service.Sign(c.Request.Context(), actor, id, req.Party)
	if err != nil {
		respondError(c, h.logger, "sign baseline", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Reset handles POST /milestones/:id/baseline/reset
func (h *BaselineHandler) Reset(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	view, err := h.service.Reset(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, "reset baseline", err)
		return
	}
	c.JSON(http.StatusOK, view)
}
