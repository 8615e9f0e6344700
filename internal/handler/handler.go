package handler

import (
	"net/http"

	"assethub/pkg/apperr"
	"assethub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// writeError maps service errors onto HTTP responses. Typed service errors
// carry their own status code; anything else is an internal failure.
func writeError(c *gin.Context, err error) {
	if ae := apperr.From(err); ae != nil {
		c.JSON(ae.StatusCode(), response.Error(ae.StatusCode(), ae.Message))
		return
	}
	c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
}

// currentUserID extracts the authenticated user id set by the auth middleware.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	raw, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User ID not found in context"))
		return uuid.Nil, false
	}
	idStr, ok := raw.(string)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid user ID format"))
		return uuid.Nil, false
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid user ID format"))
		return uuid.Nil, false
	}
	return id, true
}
