package fanout

import (
	"testing"

	"github.com/fanchat-io/fanchat-server/internal/core"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name  string
		event core.Event
		want  string
	}{
		{
			name: "update carries the full message",
			event: core.Event{Kind: core.EventUpdate, Data: core.UpdatePayload{
				ID:       7,
				User:     "Alice",
				Message:  "Hello <strong>world</strong>",
				DateSent: "2024-01-15T12:00:00Z",
			}},
			want: "event: update\n" +
				`data: {"id":7,"user":"Alice","message":"Hello <strong>world</strong>","date_sent":"2024-01-15T12:00:00Z"}` +
				"\n\n",
		},
		{
			name:  "delete carries only the id",
			event: core.Event{Kind: core.EventDelete, Data: core.DeletePayload{ID: 7}},
			want:  "event: delete\ndata: {\"id\":7}\n\n",
		},
		{
			name:  "refresh carries the room identity",
			event: core.Event{Kind: core.EventRefresh, Data: core.RefreshPayload{Slug: "devops-bcn"}},
			want:  "event: refresh\ndata: {\"slug\":\"devops-bcn\"}\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.event)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Encode mismatch:\n got: %q\nwant: %q", got, tt.want)
			}
		})
	}
}
