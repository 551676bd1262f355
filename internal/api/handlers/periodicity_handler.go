package handlers

import (
	"net/http"

	"github.com/andresuchdata/rxstock/backend-go/internal/service"
	"github.com/gin-gonic/gin"
)

type PeriodicityHandler struct {
	service *service.PeriodicityService
}

func NewPeriodicityHandler(service *service.PeriodicityService) *PeriodicityHandler {
	return &PeriodicityHandler{service: service}
}

func (h *PeriodicityHandler) RecalculateAll(c *gin.Context) {
	summary, err := h.service.RecalculateAll(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to recalculate periodicity")
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *PeriodicityHandler) RecalculateDrug(c *gin.Context) {
	rec, err := h.service.RecalculateDrug(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err, "failed to recalculate periodicity")
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *PeriodicityHandler) Get(c *gin.Context) {
	rec, err := h.service.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err, "failed to fetch periodicity")
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *PeriodicityHandler) ListNew(c *gin.Context) {
	drugs, err := h.service.ListNewDrugs(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to fetch new drugs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"drugs": drugs, "count": len(drugs)})
}
