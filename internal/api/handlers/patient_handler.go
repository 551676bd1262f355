package handlers

import (
	"net/http"
	"strconv"

	"github.com/andresuchdata/rxstock/backend-go/internal/domain"
	"github.com/andresuchdata/rxstock/backend-go/internal/service"
	"github.com/gin-gonic/gin"
)

type PatientHandler struct {
	service *service.PatientService
}

func NewPatientHandler(service *service.PatientService) *PatientHandler {
	return &PatientHandler{service: service}
}

func patientID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid patient id")
		return 0, false
	}
	return id, true
}

func (h *PatientHandler) List(c *gin.Context) {
	patients, err := h.service.List(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to fetch patients")
		return
	}
	c.JSON(http.StatusOK, patients)
}

func (h *PatientHandler) Get(c *gin.Context) {
	id, ok := patientID(c)
	if !ok {
		return
	}
	p, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "failed to fetch patient")
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *PatientHandler) Save(c *gin.Context) {
	var p domain.Patient
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	saved, err := h.service.Save(c.Request.Context(), p)
	if err != nil {
		respondError(c, err, "failed to save patient")
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *PatientHandler) Delete(c *gin.Context) {
	id, ok := patientID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err, "failed to delete patient")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *PatientHandler) Unlink(c *gin.Context) {
	id, ok := patientID(c)
	if !ok {
		return
	}
	if err := h.service.Unlink(c.Request.Context(), c.Param("code"), id); err != nil {
		respondError(c, err, "failed to unlink drug")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
