package handlers

import (
	"net/http"
	"strconv"

	"chatbot-api/internal/chat"
	"chatbot-api/internal/conversation"
	"chatbot-api/internal/credit"
	"chatbot-api/internal/models"

	"github.com/gin-gonic/gin"
)

// ChatHandler handles chat threads and the send-message pipeline.
type ChatHandler struct {
	service *chat.Service
	store   *conversation.Store
	ledger  *credit.Ledger
}

// NewChatHandler constructs a ChatHandler.
func NewChatHandler(service *chat.Service, store *conversation.Store, ledger *credit.Ledger) *ChatHandler {
	return &ChatHandler{service: service, store: store, ledger: ledger}
}

// sendMessageRequest defines the request body for one chat turn.
type sendMessageRequest struct {
	ChatID  *uint64 `json:"chat_id"`
	Message string  `json:"message"`
	Model   string  `json:"model"`
}

// Send runs one chat turn. Anonymous requests are allowed and unmetered.
func (h *ChatHandler) Send(c *gin.Context) {
	var body sendMessageRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	result, errSend := h.service.SendMessage(c.Request.Context(), chat.SendMessageInput{
		ChatID:  body.ChatID,
		OwnerID: getOptionalUserID(c),
		Message: body.Message,
		Model:   body.Model,
	})
	if errSend != nil {
		respondError(c, errSend)
		return
	}

	response := gin.H{
		"chat":     formatChat(result.Chat),
		"response": formatMessage(result.Assistant),
	}
	if result.RemainingCredits != nil {
		response["credits"] = *result.RemainingCredits
	}
	c.JSON(http.StatusOK, response)
}

// Get returns one chat with its messages. Anonymous chats are reachable by
// id; owned chats only by their owner.
func (h *ChatHandler) Get(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}

	found, errFind := h.store.GetChat(c.Request.Context(), chatID, getOptionalUserID(c))
	if errFind != nil {
		respondError(c, errFind)
		return
	}
	c.JSON(http.StatusOK, formatChat(found))
}

// Sidebar lists the authenticated user's chats ordered by recent activity.
func (h *ChatHandler) Sidebar(c *gin.Context) {
	entries, errList := h.store.ListSidebar(c.Request.Context(), getOptionalUserID(c))
	if errList != nil {
		respondError(c, errList)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": entries})
}

// Usage reports stored conversation volume and remaining credits.
func (h *ChatHandler) Usage(c *gin.Context) {
	userID := getUserID(c)

	summary, errUsage := h.store.Usage(c.Request.Context(), userID)
	if errUsage != nil {
		respondError(c, errUsage)
		return
	}
	credits, errBalance := h.ledger.Balance(c.Request.Context(), userID)
	if errBalance != nil {
		respondError(c, errBalance)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total_chats":    summary.Chats,
		"total_messages": summary.Messages,
		"credits":        credits,
	})
}

// renameChatRequest defines the request body for renaming a chat.
type renameChatRequest struct {
	Title string `json:"title"`
}

// Rename updates a chat title.
func (h *ChatHandler) Rename(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}

	var body renameChatRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if errRename := h.store.Rename(c.Request.Context(), chatID, getUserID(c), body.Title); errRename != nil {
		respondError(c, errRename)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": chatID, "title": body.Title, "saved": true})
}

// Delete removes one chat and its messages.
func (h *ChatHandler) Delete(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}

	if errDelete := h.store.DeleteChat(c.Request.Context(), chatID, getUserID(c)); errDelete != nil {
		respondError(c, errDelete)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true, "id": chatID})
}

// DeleteAll removes every chat owned by the authenticated user.
func (h *ChatHandler) DeleteAll(c *gin.Context) {
	deleted, errDelete := h.store.DeleteAll(c.Request.Context(), getUserID(c))
	if errDelete != nil {
		respondError(c, errDelete)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true, "chats": deleted})
}

func parseChatID(c *gin.Context) (uint64, bool) {
	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return 0, false
	}
	return id, true
}

// formatChat converts a chat model to a response payload.
func formatChat(chat *models.Chat) gin.H {
	messages := make([]gin.H, 0, len(chat.Messages))
	for i := range chat.Messages {
		messages = append(messages, formatMessage(&chat.Messages[i]))
	}
	return gin.H{
		"id":         chat.ID,
		"title":      chat.Title,
		"model":      chat.Model,
		"messages":   messages,
		"created_at": chat.CreatedAt,
		"updated_at": chat.UpdatedAt,
	}
}

// formatMessage converts a message model to a response payload.
func formatMessage(msg *models.Message) gin.H {
	return gin.H{
		"id":        msg.ID,
		"role":      msg.Role,
		"content":   msg.Content,
		"model":     msg.Model,
		"timestamp": msg.CreatedAt,
	}
}
