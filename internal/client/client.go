// Package client is the server's HTTP/SSE counterpart: it fetches room
// views and message pages over the JSON API and turns the event stream
// into timeline events. The timeline engine stays transport-free; this
// package is the transport.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/r3labs/sse/v2"
	"github.com/rs/zerolog"

	"github.com/fanchat-io/fanchat-server/internal/core"
	"github.com/fanchat-io/fanchat-server/internal/log"
	"github.com/fanchat-io/fanchat-server/internal/timeline"
)

// Options configures a Client.
type Options struct {
	BaseURL   string
	User      string
	APIKey    string
	UTCOffset int // minutes east of UTC
	HTTP      *http.Client
	Logger    *zerolog.Logger
}

// Client talks to a chat server on behalf of one user.
type Client struct {
	base      string
	user      string
	apiKey    string
	utcOffset int
	http      *http.Client
	log       *zerolog.Logger
}

// New creates a client. BaseURL must not have a trailing slash.
func New(opts Options) *Client {
	httpClient := opts.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{
		base:      opts.BaseURL,
		user:      opts.User,
		apiKey:    opts.APIKey,
		utcOffset: opts.UTCOffset,
		http:      httpClient,
		log:       logger,
	}
}

// Message is a message as the API returns it.
type Message struct {
	ID       int64  `json:"id"`
	User     string `json:"user"`
	Message  string `json:"message"`
	DateSent string `json:"date_sent"`
	RelTime  string `json:"relTime,omitempty"`
}

// RoomView is the initial room payload.
type RoomView struct {
	Slug            string    `json:"slug"`
	Name            string    `json:"name"`
	CurrentUser     string    `json:"currentUser"`
	Messages        []Message `json:"messages"`
	FirstMsgShownID int64     `json:"firstMsgShownId"`
	FirstMsgID      int64     `json:"firstMsgId"`
}

type messagesPage struct {
	Messages []Message `json:"messages"`
}

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// DefaultRoom fetches the default room's view by following the index
// redirect.
func (c *Client) DefaultRoom(ctx context.Context) (*RoomView, error) {
	var view RoomView
	if err := c.getJSON(ctx, "/", &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// RoomView fetches the initial view of a room.
func (c *Client) RoomView(ctx context.Context, slug string) (*RoomView, error) {
	var view RoomView
	if err := c.getJSON(ctx, "/room/"+slug, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Send posts a message. The raw text is left untouched on failure so the
// caller can keep it in the input buffer and retry.
func (c *Client) Send(ctx context.Context, slug, text string) (*Message, error) {
	body, err := json.Marshal(map[string]string{"message": text})
	if err != nil {
		return nil, fmt.Errorf("encode send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/room/"+slug+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)

	var msg Message
	if err := c.do(req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Delete removes one of the user's own messages.
func (c *Client) Delete(ctx context.Context, slug string, id int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		fmt.Sprintf("%s/room/%s/messages/%d", c.base, slug, id), nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)
	return c.do(req, nil)
}

// Fetcher returns a timeline fetcher bound to one room.
func (c *Client) Fetcher(slug string) timeline.Fetcher {
	return &roomFetcher{client: c, slug: slug}
}

type roomFetcher struct {
	client *Client
	slug   string
}

// Page fetches one newest-first page, strictly older than beforeID when set.
func (f *roomFetcher) Page(ctx context.Context, beforeID *int64) ([]timeline.Entry, error) {
	path := "/room/" + f.slug + "/messages"
	if beforeID != nil {
		path += "?lastId=" + strconv.FormatInt(*beforeID, 10)
	}

	var page messagesPage
	if err := f.client.getJSON(ctx, path, &page); err != nil {
		return nil, err
	}

	entries := make([]timeline.Entry, 0, len(page.Messages))
	for _, m := range page.Messages {
		entry, err := toEntry(m.ID, m.User, m.Message, m.DateSent)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// OldestID resolves the room's backfill boundary from the room view.
func (f *roomFetcher) OldestID(ctx context.Context) (int64, error) {
	view, err := f.client.RoomView(ctx, f.slug)
	if err != nil {
		return 0, err
	}
	if view.FirstMsgID < 0 {
		return 0, core.ErrMessageNotFound
	}
	return view.FirstMsgID, nil
}

// Subscribe opens the room's event stream and translates it into timeline
// events. The returned channel closes when the context is cancelled or the
// stream ends. Callers should treat a subscribe error as "real-time
// unavailable" and fall back to manual refresh.
func (c *Client) Subscribe(ctx context.Context, slug string) (<-chan timeline.Event, error) {
	stream := sse.NewClient(c.base+"/room/"+slug+"/messages",
		sse.ClientMaxBufferSize(1<<16))
	stream.Headers["Accept"] = "text/event-stream"
	if c.user != "" {
		stream.Headers["X-User"] = c.user
	}

	raw := make(chan *sse.Event)
	if err := stream.SubscribeChanRawWithContext(ctx, raw); err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", slug, err)
	}

	out := make(chan timeline.Event)
	go func() {
		defer close(out)
		defer stream.Unsubscribe(raw)
		for {
			select {
			case ev, ok := <-raw:
				if !ok {
					return
				}
				tev, ok := c.translate(ev)
				if !ok {
					continue
				}
				select {
				case out <- tev:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// translate maps one wire event to a timeline event. Unknown kinds and
// malformed payloads are dropped; the stream stays up.
func (c *Client) translate(ev *sse.Event) (timeline.Event, bool) {
	switch core.EventKind(ev.Event) {
	case core.EventUpdate:
		var payload core.UpdatePayload
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			c.log.Warn().Err(err).Msg("malformed update event")
			return timeline.Event{}, false
		}
		entry, err := toEntry(payload.ID, payload.User, payload.Message, payload.DateSent)
		if err != nil {
			c.log.Warn().Err(err).Msg("malformed update timestamp")
			return timeline.Event{}, false
		}
		return timeline.Event{Kind: core.EventUpdate, Update: &entry}, true
	case core.EventDelete:
		var payload core.DeletePayload
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			c.log.Warn().Err(err).Msg("malformed delete event")
			return timeline.Event{}, false
		}
		return timeline.Event{Kind: core.EventDelete, DeleteID: payload.ID}, true
	case core.EventRefresh:
		return timeline.Event{Kind: core.EventRefresh}, true
	default:
		c.log.Warn().Str("kind", string(ev.Event)).Msg("unknown stream event")
		return timeline.Event{}, false
	}
}

func toEntry(id int64, user, text, dateSent string) (timeline.Entry, error) {
	ts, err := time.Parse(time.RFC3339, dateSent)
	if err != nil {
		return timeline.Entry{}, fmt.Errorf("parse date_sent %q: %w", dateSent, err)
	}
	return timeline.Entry{ID: id, User: user, Message: text, DateSent: ts}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	c.setHeaders(req)
	return c.do(req, out)
}

func (c *Client) setHeaders(req *http.Request) {
	if c.user != "" {
		req.Header.Set("X-User", c.user)
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	req.Header.Set("X-Utc-Offset", strconv.Itoa(c.utcOffset))
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			coreErr := &core.CoreError{Code: apiErr.Code, Message: apiErr.Error}
			return fmt.Errorf("%s %s (status %d): %w", req.Method, req.URL.Path, resp.StatusCode, coreErr)
		}
		return fmt.Errorf("%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
