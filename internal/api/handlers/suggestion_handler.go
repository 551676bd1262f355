package handlers

import (
	"net/http"

	"github.com/andresuchdata/rxstock/backend-go/internal/service"
	"github.com/gin-gonic/gin"
)

type SuggestionHandler struct {
	service *service.SuggestionService
}

func NewSuggestionHandler(service *service.SuggestionService) *SuggestionHandler {
	return &SuggestionHandler{service: service}
}

func (h *SuggestionHandler) Status(c *gin.Context) {
	status, err := h.service.Status(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to fetch suggestion status")
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *SuggestionHandler) Next(c *gin.Context) {
	next, err := h.service.Next(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to fetch next suggestion")
		return
	}
	c.JSON(http.StatusOK, next)
}

func (h *SuggestionHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to fetch suggestion stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *SuggestionHandler) Skipped(c *gin.Context) {
	drugs, err := h.service.Skipped(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to fetch skipped drugs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"drugs": drugs, "count": len(drugs)})
}

func (h *SuggestionHandler) NewDrugs(c *gin.Context) {
	drugs, err := h.service.NewDrugs(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to fetch new drugs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"drugs": drugs, "count": len(drugs)})
}

func (h *SuggestionHandler) DrugDetail(c *gin.Context) {
	detail, err := h.service.DrugDetail(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err, "failed to fetch drug detail")
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *SuggestionHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	if err := h.service.Register(c.Request.Context(), req); err != nil {
		respondError(c, err, "failed to register drug")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "drug_code": req.DrugCode, "patient_id": req.PatientID})
}

type skipRequest struct {
	DrugCode string `json:"drug_code" binding:"required"`
}

func (h *SuggestionHandler) Skip(c *gin.Context) {
	var req skipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "drug_code is required")
		return
	}

	count, err := h.service.Skip(c.Request.Context(), req.DrugCode)
	if err != nil {
		respondError(c, err, "failed to skip drug")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "drug_code": req.DrugCode, "skip_count": count})
}

func (h *SuggestionHandler) ClearSkipped(c *gin.Context) {
	n, err := h.service.ClearSkipped(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to clear skipped drugs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cleared": n})
}
