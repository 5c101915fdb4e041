package handler

import (
	"errors"
	"net/http"

	"github.com/haithamlamki/Abraj-Drilling-sub000/internal/model"
	"github.com/haithamlamki/Abraj-Drilling-sub000/pkg/response"

	"github.com/gin-gonic/gin"
)

// statusFor maps the engine's error taxonomy onto HTTP statuses. Every
// rejected action surfaces to the client; nothing degrades to a 200.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, model.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, model.ErrConcurrencyConflict):
		return http.StatusConflict
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	c.JSON(status, response.Error(status, err.Error()))
}

// callerID returns the principal id set by the auth middleware.
func callerID(c *gin.Context) string {
	value, _ := c.Get("userID")
	id, _ := value.(string)
	return id
}
