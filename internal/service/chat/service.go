// Package chat orchestrates message mutations: sanitization, durable
// storage, then fan-out. Publish always happens after the store write is
// committed, so a received live event always corresponds to a row
// retrievable by subsequent pagination.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fanchat-io/fanchat-server/internal/core"
	"github.com/fanchat-io/fanchat-server/internal/fanout"
	"github.com/fanchat-io/fanchat-server/internal/sanitize"
	"github.com/fanchat-io/fanchat-server/internal/store"
)

// Service coordinates the send/delete/clear operations of a room.
type Service struct {
	store   store.Store
	cleaner *sanitize.Cleaner
	pub     fanout.Publisher
	log     *zerolog.Logger
}

// New builds a chat service.
func New(st store.Store, cleaner *sanitize.Cleaner, pub fanout.Publisher, logger *zerolog.Logger) *Service {
	return &Service{
		store:   st,
		cleaner: cleaner,
		pub:     pub,
		log:     logger,
	}
}

// ClearRequest selects messages for a bulk clear. Slug, User, or both.
type ClearRequest struct {
	Slug string
	User string
}

// Send sanitizes and stores a message, then publishes an update event on the
// room channel. When publishing fails the message is still persisted; the
// returned message is non-nil alongside the error.
func (s *Service) Send(ctx context.Context, slug, user, raw string) (*core.Message, error) {
	if user == "" || strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: user and message are required", core.ErrValidation)
	}

	room, err := s.store.RoomBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	text := s.cleaner.Clean(raw)
	msg, err := s.store.AppendMessage(ctx, room.ID, user, text)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	s.log.Debug().Str("room", slug).Int64("id", msg.ID).Msg("message received")

	event := core.Event{Kind: core.EventUpdate, Data: updatePayload(msg)}
	if err := s.pub.Publish(ctx, room.Channel(), event); err != nil {
		return msg, err
	}
	return msg, nil
}

// Delete removes a single message. Only the original sender may delete it.
func (s *Service) Delete(ctx context.Context, slug string, id int64, actingUser string) error {
	sender, err := s.store.MessageSender(ctx, id)
	if err != nil {
		return err
	}
	if sender != actingUser {
		return fmt.Errorf("%w: only the sender may delete a message", core.ErrUnauthorized)
	}

	if err := s.store.DeleteMessage(ctx, id); err != nil {
		return err
	}

	s.log.Info().Str("room", slug).Int64("id", id).Msg("message deleted")

	event := core.Event{Kind: core.EventDelete, Data: core.DeletePayload{ID: id}}
	return s.pub.Publish(ctx, core.ChannelForSlug(slug), event)
}

// ClearHistory bulk-deletes messages by room, by user, or both, and
// publishes one refresh event per affected room. A user-only clear may span
// rooms.
func (s *Service) ClearHistory(ctx context.Context, req ClearRequest) error {
	filter := store.ClearFilter{User: req.User}
	if req.Slug != "" {
		room, err := s.store.RoomBySlug(ctx, req.Slug)
		if err != nil {
			return err
		}
		filter.RoomID = &room.ID
	}

	affected, err := s.store.ClearMessages(ctx, filter)
	if err != nil {
		return err
	}

	var publishErrs []error
	for _, room := range affected {
		s.log.Info().Str("room", room.Slug).Msg("refreshing room after clear")
		event := core.Event{Kind: core.EventRefresh, Data: core.RefreshPayload{Slug: room.Slug}}
		if err := s.pub.Publish(ctx, room.Channel(), event); err != nil {
			publishErrs = append(publishErrs, err)
		}
	}
	return errors.Join(publishErrs...)
}

func updatePayload(msg *core.Message) core.UpdatePayload {
	return core.UpdatePayload{
		ID:       msg.ID,
		User:     msg.User,
		Message:  msg.Text,
		DateSent: msg.DateSent.UTC().Format(time.RFC3339),
	}
}
