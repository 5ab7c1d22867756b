package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/fanchat-io/fanchat-server/internal/core"
	"github.com/fanchat-io/fanchat-server/internal/service/chat"
)

// AdminHandlers serves bulk history clears. Authorization is a global admin
// key; per-room admin rights are deliberately not modeled.
type AdminHandlers struct {
	chat *chat.Service
	log  *zerolog.Logger
}

// NewAdminHandlers creates a new admin handlers instance.
func NewAdminHandlers(svc *chat.Service, logger *zerolog.Logger) *AdminHandlers {
	return &AdminHandlers{
		chat: svc,
		log:  logger,
	}
}

// ClearRoom clears a room's history, optionally scoped to one user.
// DELETE /admin/room/:slug
// DELETE /admin/room/:slug/:user
func (h *AdminHandlers) ClearRoom(c *gin.Context) {
	h.clear(c, chat.ClearRequest{
		Slug: c.Param("slug"),
		User: c.Param("user"),
	})
}

// ClearUser clears a user's history across all rooms.
// DELETE /admin/users/:user
func (h *AdminHandlers) ClearUser(c *gin.Context) {
	h.clear(c, chat.ClearRequest{User: c.Param("user")})
}

func (h *AdminHandlers) clear(c *gin.Context, req chat.ClearRequest) {
	err := h.chat.ClearHistory(c.Request.Context(), req)
	switch {
	case err == nil:
		c.Status(http.StatusOK)
	case errors.Is(err, core.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, errorBody(err, "not found"))
	case errors.Is(err, core.ErrNoClearFilter):
		c.JSON(http.StatusBadRequest, errorBody(err, "room or user filter required"))
	case errors.Is(err, core.ErrFanout):
		h.log.Error().Err(err).Msg("history cleared but fanout failed")
		c.JSON(http.StatusInternalServerError, errorBody(err, "history cleared, delivery failed"))
	default:
		h.log.Error().Err(err).Msg("failed to clear history")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}
