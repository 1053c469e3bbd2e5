package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"contracttracker/internal/service/edit"
)

type EditHandler struct {
	service *edit.Service
	logger  *zap.Logger
}

func NewEditHandler(service *edit.Service, logger *zap.Logger) *EditHandler {
	return &EditHandler{service: service, logger: logger}
}

// Apply handles POST /edits
// 被基线保护拦截时返回 409，body 中带 pending_change 供前端发起变更单
func (h *EditHandler) Apply(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req edit.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	res, err := h.service.ApplyEdit(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, h.logger, "apply edit", err)
		return
	}
	if !res.Applied {
		c.JSON(http.StatusConflict, res)
		return
	}
	c.JSON(http.StatusOK, res)
}
