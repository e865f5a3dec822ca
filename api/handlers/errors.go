package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/media-queue-go/internal/domain"
)

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	var validation *domain.ValidationError
	var state *domain.InvalidStateError
	var capability *domain.CapabilityError

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &state):
		return http.StatusConflict
	case errors.Is(err, domain.ErrJobNotFound), errors.Is(err, domain.ErrHistoryNotFound):
		return http.StatusNotFound
	case errors.As(err, &capability):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage returns the text shown to clients
func errorMessage(err error) string {
	var capability *domain.CapabilityError
	if errors.As(err, &capability) {
		return capability.Message
	}
	return err.Error()
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": errorMessage(err)})
}
