// Command chat is a terminal client. It renders a room timeline over the
// JSON API and follows live updates through the event stream.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fanchat-io/fanchat-server/internal/client"
	"github.com/fanchat-io/fanchat-server/internal/core"
	applog "github.com/fanchat-io/fanchat-server/internal/log"
	"github.com/fanchat-io/fanchat-server/internal/timeline"
)

func main() {
	if err := run(); err != nil {
		log.Printf("chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	server := flag.String("server", "http://localhost:8080", "server base URL")
	room := flag.String("room", "", "room slug (default: the server's default room)")
	user := flag.String("user", "cli-user", "username")
	apiKey := flag.String("api-key", "", "API key for sending and deleting")
	utcOffset := flag.Int("utc-offset", 0, "local UTC offset in minutes")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := applog.New("warn")
	c := client.New(client.Options{
		BaseURL:   *server,
		User:      *user,
		APIKey:    *apiKey,
		UTCOffset: *utcOffset,
		Logger:    logger,
	})

	slug := *room
	if slug == "" {
		view, err := c.DefaultRoom(ctx)
		if err != nil {
			return fmt.Errorf("resolve default room: %w", err)
		}
		slug = view.Slug
	}

	tl := timeline.New(c.Fetcher(slug), timeline.Config{
		UTCOffsetMinutes: *utcOffset,
	}, logger)
	if err := tl.Init(ctx); err != nil {
		return fmt.Errorf("load room %s: %w", slug, err)
	}

	fmt.Printf("Connected to %s as %s in room %s\n", *server, *user, slug)
	fmt.Println("Type messages and press Enter to send. /older loads history, /delete <id> removes, Ctrl+C exits.")
	for _, e := range tl.Snapshot() {
		printEntry(e)
	}

	events, err := c.Subscribe(ctx, slug)
	if err != nil {
		fmt.Println("! real-time updates unavailable, use /refresh to refetch")
	} else {
		go func() {
			for ev := range events {
				if err := tl.Apply(ctx, ev); err != nil {
					logger.Error().Err(err).Msg("apply live event")
					continue
				}
				printEvent(ev)
			}
			fmt.Println("! stream closed, real-time updates unavailable")
		}()
	}

	go tl.RunTimestampRefresh(ctx, 5*time.Second)

	inputLoop(ctx, c, tl, slug)

	stop()
	return nil
}

func inputLoop(ctx context.Context, c *client.Client, tl *timeline.Timeline, slug string) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit":
			return
		case line == "/refresh":
			if err := tl.Init(ctx); err != nil {
				fmt.Printf("! refresh failed: %v\n", err)
				continue
			}
			for _, e := range tl.Snapshot() {
				printEntry(e)
			}
		case line == "/older":
			added, err := tl.LoadOlder(ctx)
			if err != nil {
				fmt.Printf("! load older failed: %v\n", err)
				continue
			}
			if added == 0 && tl.Exhausted() {
				fmt.Println("! beginning of history")
				continue
			}
			snapshot := tl.Snapshot()
			for _, e := range snapshot[:min(added, len(snapshot))] {
				printEntry(e)
			}
		case strings.HasPrefix(line, "/delete "):
			id, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(line, "/delete ")), 10, 64)
			if err != nil {
				fmt.Println("! usage: /delete <id>")
				continue
			}
			if err := c.Delete(ctx, slug, id); err != nil {
				fmt.Printf("! delete failed: %v\n", err)
			}
		default:
			// Failed sends keep the text on screen so it can be re-entered.
			if _, err := c.Send(ctx, slug, line); err != nil {
				fmt.Printf("! not sent: %v\n  your message: %s\n", err, line)
			}
		}
	}
}

func printEntry(e timeline.Entry) {
	fmt.Printf("[%d] %s (%s): %s\n", e.ID, e.User, e.RelTime, e.Message)
}

func printEvent(ev timeline.Event) {
	switch ev.Kind {
	case core.EventUpdate:
		if ev.Update != nil {
			printEntry(*ev.Update)
		}
	case core.EventDelete:
		fmt.Printf("! message %d deleted\n", ev.DeleteID)
	case core.EventRefresh:
		fmt.Println("! history changed, view refreshed")
	}
}
