package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fanchat-io/fanchat-server/internal/config"
	"github.com/fanchat-io/fanchat-server/internal/core"
)

func postMessage(router http.Handler, slug, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/room/"+slug+"/messages", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestSendMessage(t *testing.T) {
	router, _, pub := newTestRouter(t, nil)

	resp := postMessage(router, "devops-bcn", `{"message":"Hello **world**"}`, map[string]string{"X-User": "Alice"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var msg MessageResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &msg); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if msg.User != "Alice" {
		t.Errorf("expected user 'Alice', got %q", msg.User)
	}
	if !strings.Contains(msg.Message, "<strong>world</strong>") {
		t.Errorf("expected sanitized emphasis markup, got %q", msg.Message)
	}

	events := pub.events()
	if len(events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(events))
	}
	if events[0].channel != "room-devops-bcn" || events[0].event.Kind != core.EventUpdate {
		t.Errorf("expected update on room-devops-bcn, got %+v", events[0])
	}
}

func TestSendMessageValidation(t *testing.T) {
	router, _, pub := newTestRouter(t, func(cfg *config.Config) {
		cfg.LocalMode = false
		cfg.APIKeys = []string{"key-1"}
	})

	tests := []struct {
		name    string
		body    string
		headers map[string]string
	}{
		{
			name:    "missing message",
			body:    `{"message":""}`,
			headers: map[string]string{"X-Api-Key": "key-1", "X-User": "Alice"},
		},
		{
			name:    "missing user",
			body:    `{"message":"hi"}`,
			headers: map[string]string{"X-Api-Key": "key-1"},
		},
		{
			name:    "malformed body",
			body:    `{`,
			headers: map[string]string{"X-Api-Key": "key-1", "X-User": "Alice"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postMessage(router, "devops-bcn", tt.body, tt.headers)
			if resp.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d: %s", resp.Code, resp.Body.String())
			}
		})
	}
	if len(pub.events()) != 0 {
		t.Errorf("rejected sends must not publish")
	}
}

func TestSendMessageRenderedTooLong(t *testing.T) {
	router, _, pub := newTestRouter(t, nil)

	// 83 bold runs fit the raw 500-char cap but render to well over the
	// 1000-char storage limit.
	raw := strings.TrimSpace(strings.Repeat("**a** ", 83))
	body, err := json.Marshal(SendRequest{Message: raw})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	resp := postMessage(router, "devops-bcn", string(body), map[string]string{"X-User": "Alice"})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for over-expanded message, got %d: %s", resp.Code, resp.Body.String())
	}
	if len(pub.events()) != 0 {
		t.Errorf("rejected sends must not publish")
	}
}

func TestSendMessageUnknownRoom(t *testing.T) {
	router, _, _ := newTestRouter(t, nil)

	resp := postMessage(router, "no-such-room", `{"message":"hi"}`, map[string]string{"X-User": "Alice"})
	if resp.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", resp.Code)
	}
}

func TestSendRequiresAPIKey(t *testing.T) {
	router, _, _ := newTestRouter(t, func(cfg *config.Config) {
		cfg.LocalMode = false
		cfg.APIKeys = []string{"key-1"}
	})

	resp := postMessage(router, "devops-bcn", `{"message":"hi"}`, map[string]string{"X-User": "Alice"})
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 without key, got %d", resp.Code)
	}

	resp = postMessage(router, "devops-bcn", `{"message":"hi"}`, map[string]string{"X-User": "Alice", "X-Api-Key": "wrong"})
	if resp.Code != http.StatusForbidden {
		t.Errorf("expected status 403 with invalid key, got %d", resp.Code)
	}
}

func TestDeleteMessage(t *testing.T) {
	router, st, pub := newTestRouter(t, nil)
	ctx := context.Background()

	room, _ := st.RoomBySlug(ctx, "devops-bcn")
	msg, err := st.AppendMessage(ctx, room.ID, "Alice", "hi")
	if err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	pub.reset()

	del := func(user string, id int64) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/room/devops-bcn/messages/%d", id), nil)
		req.Header.Set("X-User", user)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		return resp
	}

	// Only the original sender may delete.
	if resp := del("Bob", msg.ID); resp.Code != http.StatusForbidden {
		t.Errorf("expected status 403 for non-sender, got %d", resp.Code)
	}
	if len(pub.events()) != 0 {
		t.Errorf("unauthorized delete must not publish")
	}

	if resp := del("Alice", msg.ID); resp.Code != http.StatusOK {
		t.Errorf("expected status 200 for sender, got %d", resp.Code)
	}
	events := pub.events()
	if len(events) != 1 || events[0].event.Kind != core.EventDelete {
		t.Fatalf("expected a delete event, got %+v", events)
	}

	// The message is gone now.
	if resp := del("Alice", msg.ID); resp.Code != http.StatusNotFound {
		t.Errorf("expected status 404 for deleted message, got %d", resp.Code)
	}

	req := httptest.NewRequest(http.MethodDelete, "/room/devops-bcn/messages/not-a-number", nil)
	req.Header.Set("X-User", "Alice")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for bad id, got %d", resp.Code)
	}
}
