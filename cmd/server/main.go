package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fanchat-io/fanchat-server/internal/app"
	"github.com/fanchat-io/fanchat-server/internal/config"
	"github.com/fanchat-io/fanchat-server/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "fanchat-server",
		Short:         "Room-scoped chat server with GRIP fan-out",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newAdminCmd())
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			bootstrap := log.New("info")
			cfg, resolvedPath, err := config.Load(bootstrap, *configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger := log.New(cfg.LogLevel)
			logger.Info().Str("config", resolvedPath).Str("addr", cfg.Addr).Msg("starting fanchat server")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(&cfg, logger)
			if err != nil {
				return err
			}
			if err := application.Run(ctx); err != nil {
				return fmt.Errorf("server exited: %w", err)
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}
}

// newAdminCmd groups moderation subcommands that drive the admin endpoints
// of a running server.
func newAdminCmd() *cobra.Command {
	var (
		server   string
		adminKey string
		room     string
		user     string
	)

	admin := &cobra.Command{
		Use:   "admin",
		Short: "Moderation commands",
	}
	admin.PersistentFlags().StringVar(&server, "server", "http://localhost:8080", "server base URL")
	admin.PersistentFlags().StringVar(&adminKey, "admin-key", "", "admin API key")

	clear := &cobra.Command{
		Use:   "clear",
		Short: "Clear message history by room, user, or both",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := clearPath(room, user)
			if err != nil {
				return err
			}
			return adminDelete(cmd.Context(), server, path, adminKey)
		},
	}
	clear.Flags().StringVar(&room, "room", "", "room slug to clear")
	clear.Flags().StringVar(&user, "user", "", "user whose messages to clear")

	admin.AddCommand(clear)
	return admin
}

func clearPath(room, user string) (string, error) {
	switch {
	case room != "" && user != "":
		return "/admin/room/" + url.PathEscape(room) + "/" + url.PathEscape(user), nil
	case room != "":
		return "/admin/room/" + url.PathEscape(room), nil
	case user != "":
		return "/admin/users/" + url.PathEscape(user), nil
	default:
		return "", errors.New("at least one of --room or --user is required")
	}
}

func adminDelete(ctx context.Context, server, path, adminKey string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, server+path, nil)
	if err != nil {
		return err
	}
	if adminKey != "" {
		req.Header.Set("X-Api-Key", adminKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("clear failed: status %d: %s", resp.StatusCode, body)
	}
	fmt.Println("cleared")
	return nil
}
