package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"contracttracker/internal/service/plancommit"
)

type PlanHandler struct {
	service *plancommit.Service
	logger  *zap.Logger
}

func NewPlanHandler(service *plancommit.Service, logger *zap.Logger) *PlanHandler {
	return &PlanHandler{service: service, logger: logger}
}

// Commit handles POST /projects/:id/plan/commit
// 部分失败仍返回 200，由 skipped/errors 列出未提交的条目
func (h *PlanHandler) Commit(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}

	res, err := h.service.Commit(c.Request.Context(), actor, projectID)
	if err != nil {
		respondError(c, h.logger, "commit plan", err)
		return
	}
	c.JSON(http.StatusOK, res)
}
