package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"contracttracker/internal/service/certificate"
)

type CertificateHandler struct {
	service *certificate.Service
	logger  *zap.Logger
}

func NewCertificateHandler(service *certificate.Service, logger *zap.Logger) *CertificateHandler {
	return &CertificateHandler{service: service, logger: logger}
}

// State handles GET /milestones/:id/certificate
func (h *CertificateHandler) State(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	view, err := h.service.State(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "certificate state", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Generate handles POST /milestones/:id/certificate
func (h *CertificateHandler) Generate(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	cert, err := h.service.Generate(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, "generate certificate", err)
		return
	}
	c.JSON(http.StatusCreated, cert)
}

// Sign handles POST /certificates/:id/sign
func (h *CertificateHandler) Sign(c *gin.Context) {
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

	cert, err := h.service.Sign(c.Request.Context(), actor, id, req.Party)
	if err != nil {
		respondError(c, h.logger, "sign certificate", err)
		return
	}
	c.JSON(http.StatusOK, cert)
}
