package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIndexRedirectsToDefaultRoom(t *testing.T) {
	router, _, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusFound {
		t.Fatalf("expected status 302, got %d", resp.Code)
	}
	if loc := resp.Header().Get("Location"); loc != "/room/devops-bcn" {
		t.Errorf("expected redirect to /room/devops-bcn, got %q", loc)
	}
}

func TestRoomView(t *testing.T) {
	router, st, _ := newTestRouter(t, nil)
	ctx := context.Background()

	room, err := st.RoomBySlug(ctx, "devops-bcn")
	if err != nil {
		t.Fatalf("RoomBySlug failed: %v", err)
	}
	for _, text := range []string{"one", "two", "three"} {
		if _, err := st.AppendMessage(ctx, room.ID, "alice", text); err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/room/devops-bcn", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var view RoomView
	if err := json.Unmarshal(resp.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if view.Slug != "devops-bcn" {
		t.Errorf("expected slug 'devops-bcn', got %q", view.Slug)
	}
	if view.CurrentUser != "Testy McTestface" {
		t.Errorf("expected local identity, got %q", view.CurrentUser)
	}
	// Chronological display order: the seed greeting first, newest last.
	if len(view.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(view.Messages))
	}
	for i := 1; i < len(view.Messages); i++ {
		if view.Messages[i].ID <= view.Messages[i-1].ID {
			t.Errorf("expected ascending ids, got %d before %d", view.Messages[i-1].ID, view.Messages[i].ID)
		}
	}
	if view.FirstMsgShownID != view.Messages[0].ID {
		t.Errorf("expected firstMsgShownId %d, got %d", view.Messages[0].ID, view.FirstMsgShownID)
	}
	if view.FirstMsgID != view.Messages[0].ID {
		t.Errorf("expected firstMsgId to match the oldest message, got %d", view.FirstMsgID)
	}
	for _, m := range view.Messages {
		if m.RelTime == "" {
			t.Errorf("expected relTime for message %d", m.ID)
		}
	}
}

func TestRoomViewNotFound(t *testing.T) {
	router, _, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/room/no-such-room", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", resp.Code)
	}
}

func TestMessagesPagination(t *testing.T) {
	router, st, _ := newTestRouter(t, nil)
	ctx := context.Background()

	room, _ := st.RoomBySlug(ctx, "devops-bcn")
	var ids []int64
	for i := 0; i < 5; i++ {
		msg, err := st.AppendMessage(ctx, room.ID, "alice", "hi")
		if err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
		ids = append(ids, msg.ID)
	}

	// Without a cursor: newest first.
	req := httptest.NewRequest(http.MethodGet, "/room/devops-bcn/messages", nil)
	req.Header.Set("Accept", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var page MessagesPage
	if err := json.Unmarshal(resp.Body.Bytes(), &page); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(page.Messages) == 0 || page.Messages[0].ID != ids[len(ids)-1] {
		t.Fatalf("expected newest message first, got %+v", page.Messages)
	}

	// With the id cursor: strictly older messages only.
	req = httptest.NewRequest(http.MethodGet, "/room/devops-bcn/messages?lastId="+itoa(ids[2]), nil)
	req.Header.Set("Accept", "application/json")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if err := json.Unmarshal(resp.Body.Bytes(), &page); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	for _, m := range page.Messages {
		if m.ID >= ids[2] {
			t.Errorf("expected only ids below cursor %d, got %d", ids[2], m.ID)
		}
	}
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
