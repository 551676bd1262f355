package handlers

import (
	"errors"
	"net/http"

	"github.com/andresuchdata/rxstock/backend-go/internal/buffer"
	"github.com/andresuchdata/rxstock/backend-go/internal/periodicity"
	"github.com/andresuchdata/rxstock/backend-go/internal/repository"
	"github.com/andresuchdata/rxstock/backend-go/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var badRequestErrors = []error{
	service.ErrInvalidInput,
	service.ErrNoUsage,
	periodicity.ErrNegativeUsage,
	buffer.ErrNegativeCycle,
	buffer.ErrNegativeDosage,
	buffer.ErrInvalidThreshold,
}

// respondError maps service errors onto status codes. message is what the
// client sees in "error"; the wrapped error goes into "details".
func respondError(c *gin.Context, err error, message string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	default:
		for _, target := range badRequestErrors {
			if errors.Is(err, target) {
				status = http.StatusBadRequest
				break
			}
		}
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg(message)
	}
	c.JSON(status, gin.H{"error": message, "details": err.Error()})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}
