package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/fanchat-io/fanchat-server/internal/core"
	"github.com/fanchat-io/fanchat-server/internal/service/chat"
)

// MessageHandlers serves the send and delete operations.
type MessageHandlers struct {
	chat *chat.Service
	log  *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(svc *chat.Service, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		chat: svc,
		log:  logger,
	}
}

// SendRequest represents the send message request body.
type SendRequest struct {
	Message string `json:"message"`
}

// Send stores a message and fans it out to the room channel.
// POST /room/:slug/messages
func (h *MessageHandlers) Send(c *gin.Context) {
	slug := c.Param("slug")
	user := currentUser(c)

	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.ErrCodeBadRequest})
		return
	}

	msg, err := h.chat.Send(c.Request.Context(), slug, user, req.Message)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, messageResponse(msg))
	case errors.Is(err, core.ErrValidation):
		c.JSON(http.StatusBadRequest, errorBody(err, "invalid message"))
	case errors.Is(err, core.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, errorBody(err, "not found"))
	case errors.Is(err, core.ErrFanout):
		// The message is durably stored; only delivery failed.
		h.log.Error().Err(err).Str("room", slug).Msg("message stored but fanout failed")
		c.JSON(http.StatusInternalServerError, errorBody(err, "message stored, delivery failed"))
	default:
		h.log.Error().Err(err).Str("room", slug).Msg("failed to send message")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

// Delete removes a single message. Only the original sender may do so.
// DELETE /room/:slug/messages/:id
func (h *MessageHandlers) Delete(c *gin.Context) {
	slug := c.Param("slug")

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid message id", Code: core.ErrCodeBadRequest})
		return
	}

	err = h.chat.Delete(c.Request.Context(), slug, id, currentUser(c))
	switch {
	case err == nil:
		c.Status(http.StatusOK)
	case errors.Is(err, core.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, errorBody(err, "not found"))
	case errors.Is(err, core.ErrUnauthorized):
		c.JSON(http.StatusForbidden, errorBody(err, "unauthorized"))
	case errors.Is(err, core.ErrFanout):
		h.log.Error().Err(err).Str("room", slug).Int64("id", id).Msg("message deleted but fanout failed")
		c.JSON(http.StatusInternalServerError, errorBody(err, "message deleted, delivery failed"))
	default:
		h.log.Error().Err(err).Str("room", slug).Int64("id", id).Msg("failed to delete message")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}
