package handlers

import (
	"net/http"

	"chatbot-api/internal/openrouter"

	"github.com/gin-gonic/gin"
)

// ModelHandler exposes the upstream model catalog.
type ModelHandler struct {
	client *openrouter.Client
}

// NewModelHandler constructs a ModelHandler.
func NewModelHandler(client *openrouter.Client) *ModelHandler {
	return &ModelHandler{client: client}
}

// List returns the upstream model catalog.
func (h *ModelHandler) List(c *gin.Context) {
	models, errList := h.client.Models(c.Request.Context())
	if errList != nil {
		respondError(c, errList)
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": models})
}
