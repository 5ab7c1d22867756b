package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"github.com/fanchat-io/fanchat-server/internal/config"
	"github.com/fanchat-io/fanchat-server/internal/core"
	"github.com/fanchat-io/fanchat-server/internal/reltime"
	"github.com/fanchat-io/fanchat-server/internal/store"
)

// RoomHandlers serves the room view and the dual-mode messages endpoint.
type RoomHandlers struct {
	store store.Store
	cfg   *config.Config
	log   *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(st store.Store, cfg *config.Config, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		store: st,
		cfg:   cfg,
		log:   logger,
	}
}

// ErrorResponse represents an error response body. Code carries the domain
// error code when one applies.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// errorBody builds the wire representation of a domain error.
func errorBody(err error, msg string) ErrorResponse {
	return ErrorResponse{Error: msg, Code: core.ErrorCode(err)}
}

// MessageResponse represents a message in API responses.
type MessageResponse struct {
	ID       int64  `json:"id"`
	User     string `json:"user"`
	Message  string `json:"message"`
	DateSent string `json:"date_sent"`
	RelTime  string `json:"relTime,omitempty"`
}

// RoomView is the initial payload a client renders before subscribing.
type RoomView struct {
	Slug            string            `json:"slug"`
	Name            string            `json:"name"`
	CurrentUser     string            `json:"currentUser"`
	Messages        []MessageResponse `json:"messages"`
	FirstMsgShownID int64             `json:"firstMsgShownId"`
	FirstMsgID      int64             `json:"firstMsgId"`
}

// MessagesPage is the pagination response.
type MessagesPage struct {
	Messages []MessageResponse `json:"messages"`
}

// Index redirects to the default room.
// GET /
func (h *RoomHandlers) Index(c *gin.Context) {
	room, err := h.store.DefaultRoom(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("no default room")
		c.JSON(http.StatusNotFound, errorBody(err, "not found"))
		return
	}
	c.Redirect(http.StatusFound, "/room/"+room.Slug)
}

// Room renders the initial room view: the newest page in chronological
// order plus the backfill boundary.
// GET /room/:slug
func (h *RoomHandlers) Room(c *gin.Context) {
	ctx := c.Request.Context()
	slug := c.Param("slug")

	room, err := h.store.RoomBySlug(ctx, slug)
	if err != nil {
		c.JSON(http.StatusNotFound, errorBody(err, "not found"))
		return
	}

	offset, _ := strconv.Atoi(c.Query("offset"))
	msgs, err := h.store.ListMessages(ctx, store.ListParams{
		RoomID: room.ID,
		Limit:  h.cfg.FetchLimit,
		Offset: offset,
	})
	if err != nil {
		h.log.Error().Err(err).Str("room", slug).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	firstMsgID, err := h.store.OldestMessageID(ctx, room.ID)
	if err != nil {
		if !errors.Is(err, core.ErrMessageNotFound) {
			h.log.Error().Err(err).Str("room", slug).Msg("failed to resolve oldest message")
		}
		firstMsgID = -1
	}

	// Reverse into display (chronological) order.
	now := time.Now()
	view := RoomView{
		Slug:        room.Slug,
		Name:        room.Name,
		CurrentUser: currentUser(c),
		Messages:    make([]MessageResponse, 0, len(msgs)),
		FirstMsgID:  firstMsgID,
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		resp := messageResponse(msgs[i])
		resp.RelTime = reltime.Format(msgs[i].DateSent, now, utcOffset(c), language.English)
		view.Messages = append(view.Messages, resp)
	}
	if len(view.Messages) > 0 {
		view.FirstMsgShownID = view.Messages[0].ID
	}

	c.JSON(http.StatusOK, view)
}

// Messages either negotiates a held event stream or returns a JSON page.
// GET /room/:slug/messages
func (h *RoomHandlers) Messages(c *gin.Context) {
	ctx := c.Request.Context()
	slug := c.Param("slug")

	if wantsEventStream(c) {
		status := gripStatus(c)
		if !status.Proxied {
			c.String(http.StatusNotAcceptable, "text/event-stream requires GRIP proxy")
			return
		}
		if status.NeedsSigned && !status.Signed {
			c.String(http.StatusNotImplemented, "text/event-stream requires authenticated GRIP proxy")
			return
		}
		holdStream(c, slug)
		return
	}

	room, err := h.store.RoomBySlug(ctx, slug)
	if err != nil {
		c.JSON(http.StatusNotFound, errorBody(err, "not found"))
		return
	}

	params := store.ListParams{RoomID: room.ID, Limit: h.cfg.FetchLimit}
	if lastID, err := strconv.ParseInt(c.Query("lastId"), 10, 64); err == nil {
		params.BeforeID = &lastID
	} else if offset, err := strconv.Atoi(c.Query("offset")); err == nil {
		params.Offset = offset
	}

	msgs, err := h.store.ListMessages(ctx, params)
	if err != nil {
		h.log.Error().Err(err).Str("room", slug).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	page := MessagesPage{Messages: make([]MessageResponse, 0, len(msgs))}
	for _, msg := range msgs {
		page.Messages = append(page.Messages, messageResponse(msg))
	}
	c.JSON(http.StatusOK, page)
}

func messageResponse(msg *core.Message) MessageResponse {
	return MessageResponse{
		ID:       msg.ID,
		User:     msg.User,
		Message:  msg.Text,
		DateSent: msg.DateSent.UTC().Format(time.RFC3339),
	}
}
