// Package fanout publishes committed store mutations as events on room
// channels through a GRIP-compatible edge proxy (Fastly Fanout, Pushpin).
//
// Delivery is best-effort and at-most-once per connected subscriber. There
// is no persistence and no replay: a client that is not connected when an
// event is published reconciles via pagination instead.
package fanout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fanout/go-gripcontrol"
	"github.com/rs/zerolog"

	"github.com/fanchat-io/fanchat-server/internal/core"
)

// Publisher delivers one event to all subscribers of a channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, event core.Event) error
}

// Encode renders an event in the SSE wire format delivered to subscribers.
// Payloads hold sanitized HTML, so JSON HTML escaping is disabled.
func Encode(event core.Event) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(event.Data); err != nil {
		return "", fmt.Errorf("marshal event payload: %w", err)
	}
	data := strings.TrimRight(buf.String(), "\n")
	return fmt.Sprintf("event: %s\ndata: %s\n\n", event.Kind, data), nil
}

// GripPublisher publishes over the GRIP control endpoint.
type GripPublisher struct {
	pub *gripcontrol.GripPubControl
	log *zerolog.Logger
}

// NewGripPublisher builds a publisher from a GRIP URL
// (e.g. http://localhost:5561/ or a Fastly Fanout URI with embedded key).
func NewGripPublisher(gripURL string, logger *zerolog.Logger) (*GripPublisher, error) {
	config, err := gripcontrol.ParseGripUri(gripURL)
	if err != nil {
		return nil, fmt.Errorf("parse grip uri: %w", err)
	}

	return &GripPublisher{
		pub: gripcontrol.NewGripPubControl([]map[string]interface{}{config}),
		log: logger,
	}, nil
}

// Publish sends the event as an HTTP stream chunk on the channel. Failures
// are logged and returned to the caller; the store write that triggered the
// event is never rolled back.
func (p *GripPublisher) Publish(_ context.Context, channel string, event core.Event) error {
	content, err := Encode(event)
	if err != nil {
		return err
	}

	if err := p.pub.PublishHttpStream(channel, content, "", ""); err != nil {
		p.log.Error().Err(err).Str("channel", channel).Str("event", string(event.Kind)).Msg("grip publish failed")
		return fmt.Errorf("%w: %v", core.ErrFanout, err)
	}

	p.log.Debug().Str("channel", channel).Str("event", string(event.Kind)).Msg("event published")
	return nil
}

// NopPublisher drops every event. Used when no GRIP endpoint is configured.
type NopPublisher struct {
	log *zerolog.Logger
}

// NewNopPublisher builds a publisher that only logs.
func NewNopPublisher(logger *zerolog.Logger) *NopPublisher {
	return &NopPublisher{log: logger}
}

// Publish logs and discards the event.
func (p *NopPublisher) Publish(_ context.Context, channel string, event core.Event) error {
	p.log.Debug().Str("channel", channel).Str("event", string(event.Kind)).Msg("fanout disabled, event dropped")
	return nil
}
