package http

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fanchat-io/fanchat-server/internal/config"
	"github.com/fanchat-io/fanchat-server/internal/core"
	"github.com/fanchat-io/fanchat-server/internal/log"
	"github.com/fanchat-io/fanchat-server/internal/sanitize"
	"github.com/fanchat-io/fanchat-server/internal/service/chat"
	"github.com/fanchat-io/fanchat-server/internal/store/sqlite"
)

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu        sync.Mutex
	published []publishedEvent
}

type publishedEvent struct {
	channel string
	event   core.Event
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, event core.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, publishedEvent{channel: channel, event: event})
	return nil
}

func (p *recordingPublisher) events() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]publishedEvent, len(p.published))
	copy(out, p.published)
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.ShutdownTimeout = time.Second
	cfg.LocalMode = true
	cfg.LocalUser = "Testy McTestface"
	return &cfg
}

// newTestRouter wires a router over a seeded sqlite store and a recording
// publisher. Callers can tweak cfg before use via the mutate func.
func newTestRouter(t *testing.T, mutate func(*config.Config)) (*gin.Engine, *sqlite.SQLiteStore, *recordingPublisher) {
	t.Helper()

	st, err := sqlite.New(filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}

	pub := &recordingPublisher{}
	svc := chat.New(st, sanitize.NewCleaner(cfg.MessageMaxLength), pub, log.Discard())
	router := NewRouter(st, svc, cfg, log.Discard())
	return router, st, pub
}
