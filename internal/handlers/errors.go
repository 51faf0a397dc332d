package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/logging"
)

func (h *Handlers) handleError(c *gin.Context, err error) {
	var (
		validationErr   *apperrors.ValidationError
		preconditionErr *apperrors.PreconditionError
		submissionErr   *apperrors.SubmissionError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   validationErr.Message,
			"field":   validationErr.Field,
			"details": validationErr.Details,
		})
	case errors.As(err, &preconditionErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":     preconditionErr.Message,
			"condition": preconditionErr.Condition,
		})
	case errors.As(err, &submissionErr):
		status := http.StatusBadGateway
		if submissionErr.Rejected {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{
			"error":    submissionErr.Error(),
			"reason":   submissionErr.Reason,
			"rejected": submissionErr.Rejected,
		})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, apperrors.ErrCheckoutInProgress), errors.Is(err, apperrors.ErrAlreadyCommitted):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrDependencyUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Unhandled error", logging.Fields{
			"path":  c.FullPath(),
			"error": err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func (h *Handlers) badRequest(c *gin.Context, err error) {
	h.logger.Debug("Failed to bind request", logging.Fields{"error": err.Error()})
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
}
