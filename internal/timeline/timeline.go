// Package timeline maintains a single ordered, deduplicated, scroll-stable
// view of a room's messages. It merges three input streams: the initial
// page, on-demand older-page backfill, and live push events. The engine is
// transport-free; a fetcher supplies pages and a subscription feeds events.
package timeline

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"github.com/fanchat-io/fanchat-server/internal/core"
	"github.com/fanchat-io/fanchat-server/internal/reltime"
)

const defaultEntryHeight = 48

// Entry is one rendered message in the view. Height is the rendered pixel
// height used for scroll anchoring; zero falls back to a default.
type Entry struct {
	ID       int64
	User     string
	Message  string
	DateSent time.Time
	Height   int
	RelTime  string
}

// Event is a live delivery applied to the view.
type Event struct {
	Kind     core.EventKind
	Update   *Entry // set for update events
	DeleteID int64  // set for delete events
}

// Fetcher supplies pages from the message store. Pages are newest-first;
// a nil cursor requests the newest page.
type Fetcher interface {
	Page(ctx context.Context, beforeID *int64) ([]Entry, error)
	// OldestID returns the room's global backfill boundary, the id of the
	// earliest surviving message. core.ErrMessageNotFound means the room
	// is empty.
	OldestID(ctx context.Context) (int64, error)
}

// Config tunes a timeline session.
type Config struct {
	Locale           language.Tag
	UTCOffsetMinutes int
	ViewportHeight   int
	Now              func() time.Time
}

// Timeline is one client session's view of a room.
type Timeline struct {
	fetcher Fetcher
	cfg     Config
	log     *zerolog.Logger

	loading atomic.Bool // single-flight backfill guard

	mu        sync.Mutex
	entries   []Entry // ascending id order
	boundary  int64
	exhausted bool
	view      Viewport
}

// New builds a timeline session over the given fetcher.
func New(fetcher Fetcher, cfg Config, logger *zerolog.Logger) *Timeline {
	if cfg.Locale == (language.Tag{}) {
		cfg.Locale = language.English
	}
	if cfg.ViewportHeight <= 0 {
		cfg.ViewportHeight = 600
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Timeline{
		fetcher: fetcher,
		cfg:     cfg,
		log:     logger,
		view:    Viewport{Height: cfg.ViewportHeight},
	}
}

// Init loads the newest page and the backfill boundary, then scrolls to the
// bottom. It is also the rebuild path for refresh events.
func (t *Timeline) Init(ctx context.Context) error {
	page, err := t.fetcher.Page(ctx, nil)
	if err != nil {
		return err
	}

	boundary, err := t.fetcher.OldestID(ctx)
	if err != nil && !errors.Is(err, core.ErrMessageNotFound) {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = nil
	t.view = Viewport{Height: t.cfg.ViewportHeight}
	t.boundary = boundary

	// Pages arrive newest-first; display order is ascending.
	for i := len(page) - 1; i >= 0; i-- {
		t.appendLocked(page[i])
	}
	t.exhausted = len(t.entries) == 0 || t.entries[0].ID <= t.boundary
	t.view.ScrollToBottom()
	return nil
}

// LoadOlder fetches and prepends one older page, using the oldest loaded id
// as the exclusive cursor. Concurrent triggers collapse into the one
// in-flight request. It returns the number of entries added.
func (t *Timeline) LoadOlder(ctx context.Context) (int, error) {
	if !t.loading.CompareAndSwap(false, true) {
		return 0, nil
	}
	defer t.loading.Store(false)

	t.mu.Lock()
	if t.exhausted || len(t.entries) == 0 {
		t.mu.Unlock()
		return 0, nil
	}
	cursor := t.entries[0].ID
	t.mu.Unlock()

	page, err := t.fetcher.Page(ctx, &cursor)
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(page) == 0 {
		t.exhausted = true
		return 0, nil
	}

	added := 0
	for _, e := range page {
		if t.prependLocked(e) {
			added++
		}
	}
	// The page's last element is its oldest; reaching the room boundary
	// permanently disables further backfill for this session.
	if page[len(page)-1].ID <= t.boundary {
		t.exhausted = true
	}
	return added, nil
}

// Apply merges one live event into the view. Update and delete are
// idempotent against repeated delivery of the same id; refresh rebuilds the
// session from a fresh fetch.
func (t *Timeline) Apply(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case core.EventUpdate:
		if ev.Update == nil {
			return nil
		}
		t.mu.Lock()
		atBottom := t.view.AtBottom()
		added := t.appendLocked(*ev.Update)
		if added && atBottom {
			t.view.ScrollToBottom()
		}
		t.mu.Unlock()
		return nil
	case core.EventDelete:
		t.mu.Lock()
		t.removeLocked(ev.DeleteID)
		t.mu.Unlock()
		return nil
	case core.EventRefresh:
		// Session state is invalid; rebuild from storage.
		return t.Init(ctx)
	default:
		t.log.Warn().Str("kind", string(ev.Kind)).Msg("unknown timeline event")
		return nil
	}
}

// Subscribe applies events from the channel until cancellation. The
// returned function tears the subscription down; it is safe to call twice.
func (t *Timeline) Subscribe(events <-chan Event) (cancel func()) {
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := t.Apply(ctx, ev); err != nil {
					t.log.Error().Err(err).Msg("apply live event")
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			stop()
			<-done
		})
	}
}

// RunTimestampRefresh recomputes every entry's relative-time rendering on a
// fixed wall-clock interval until the context is cancelled.
func (t *Timeline) RunTimestampRefresh(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.RefreshTimestamps()
		case <-ctx.Done():
			return
		}
	}
}

// RefreshTimestamps recomputes relative-time strings for all entries.
func (t *Timeline) RefreshTimestamps() {
	now := t.cfg.Now()

	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.entries {
		t.entries[i].RelTime = reltime.Format(t.entries[i].DateSent, now, t.cfg.UTCOffsetMinutes, t.cfg.Locale)
	}
}

// Snapshot returns the entries in display order.
func (t *Timeline) Snapshot() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// IDs returns entry ids in display order.
func (t *Timeline) IDs() []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]int64, len(t.entries))
	for i, e := range t.entries {
		ids[i] = e.ID
	}
	return ids
}

// Exhausted reports whether backfill is permanently disabled.
func (t *Timeline) Exhausted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exhausted
}

// View returns the current viewport state.
func (t *Timeline) View() Viewport {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.view
}

// SetScrollTop moves the viewport, clamped to the content range.
func (t *Timeline) SetScrollTop(top int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.view.SetTop(top)
}

// appendLocked adds an entry at the bottom. Returns false when the id is
// already present.
func (t *Timeline) appendLocked(e Entry) bool {
	if t.containsLocked(e.ID) {
		return false
	}
	normalize(&e, t.cfg)
	t.entries = append(t.entries, e)
	// Live events and pages can interleave; keep ascending id order.
	if n := len(t.entries); n > 1 && t.entries[n-2].ID > e.ID {
		sort.Slice(t.entries, func(i, j int) bool { return t.entries[i].ID < t.entries[j].ID })
	}
	t.view.Append(e.Height)
	return true
}

// prependLocked inserts an older entry at the top, adjusting the scroll
// anchor by its height. Returns false when the id is already present.
func (t *Timeline) prependLocked(e Entry) bool {
	if t.containsLocked(e.ID) {
		return false
	}
	normalize(&e, t.cfg)
	t.entries = append([]Entry{e}, t.entries...)
	t.view.Prepend(e.Height)
	return true
}

func (t *Timeline) removeLocked(id int64) bool {
	for i, e := range t.entries {
		if e.ID == id {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			t.view.Remove(e.Height)
			return true
		}
	}
	return false
}

func (t *Timeline) containsLocked(id int64) bool {
	for _, e := range t.entries {
		if e.ID == id {
			return true
		}
	}
	return false
}

func normalize(e *Entry, cfg Config) {
	if e.Height <= 0 {
		e.Height = defaultEntryHeight
	}
	if e.RelTime == "" {
		e.RelTime = reltime.Format(e.DateSent, cfg.Now(), cfg.UTCOffsetMinutes, cfg.Locale)
	}
}
