// Package handlers implements the public HTTP handlers.
package handlers

import (
	"net/http"

	"chatbot-api/internal/apperr"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// getUserID returns the authenticated user's ID, or 0 when unauthenticated.
func getUserID(c *gin.Context) uint64 {
	value, ok := c.Get("userID")
	if !ok {
		return 0
	}
	id, ok := value.(uint64)
	if !ok {
		return 0
	}
	return id
}

// getOptionalUserID returns the authenticated user's ID as an owner pointer,
// or nil for anonymous requests.
func getOptionalUserID(c *gin.Context) *uint64 {
	id := getUserID(c)
	if id == 0 {
		return nil
	}
	return &id
}

// respondError writes the error's HTTP mapping. Internal errors are logged
// and surfaced as a generic message.
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	c.JSON(status, gin.H{"error": apperr.Message(err)})
}
