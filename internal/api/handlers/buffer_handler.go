package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/andresuchdata/rxstock/backend-go/internal/service"
	"github.com/gin-gonic/gin"
)

type BufferHandler struct {
	service *service.BufferService
}

func NewBufferHandler(service *service.BufferService) *BufferHandler {
	return &BufferHandler{service: service}
}

func (h *BufferHandler) RiskLevels(c *gin.Context) {
	levels := h.service.RiskLevels()
	out := make([]gin.H, len(levels))
	for i, l := range levels {
		out[i] = gin.H{
			"key":               l.Key,
			"name":              l.Name,
			"description":       l.Description,
			"threshold":         l.Threshold,
			"threshold_percent": l.ThresholdPercent(),
		}
	}
	c.JSON(http.StatusOK, out)
}

// Calculate accepts ?risk_level=<key> or ?threshold=<probability>.
func (h *BufferHandler) Calculate(c *gin.Context) {
	req := service.BufferRequest{RiskLevel: strings.TrimSpace(c.Query("risk_level"))}
	if raw := strings.TrimSpace(c.Query("threshold")); raw != "" {
		th, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			badRequest(c, "threshold must be a number")
			return
		}
		req.Threshold = th
	}

	result, err := h.service.Calculate(c.Request.Context(), c.Param("code"), req)
	if err != nil {
		respondError(c, err, "failed to calculate buffer")
		return
	}
	c.JSON(http.StatusOK, gin.H{"drug_code": c.Param("code"), "result": result})
}
