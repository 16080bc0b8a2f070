package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	mcpserver "github.com/InboxGenie/IG-Gmail-MCP/adapter/in/mcp"
	"github.com/InboxGenie/IG-Gmail-MCP/config"
	"github.com/InboxGenie/IG-Gmail-MCP/core/domain"
	"github.com/InboxGenie/IG-Gmail-MCP/internal/bootstrap"
	"github.com/InboxGenie/IG-Gmail-MCP/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 30 * time.Second // Maximum time to wait for graceful shutdown
	serviceName     = "query-planner"
)

var version = "dev"

var cfg *config.Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ig-gmail-mcp",
		Short:         "Natural-language query planner over archived mail",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Load .env file if exists (for local development)
			_ = godotenv.Load()

			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			// stdout carries protocol or result data for everything but serve.
			var out io.Writer = os.Stderr
			if cmd.Name() == "serve" {
				out = os.Stdout
			}
			logger.Init(logger.Config{
				Level:   logger.ParseLevel(cfg.LogLevel),
				Output:  out,
				Service: serviceName,
				Pretty:  cfg.IsDevelopment(),
			})
			return nil
		},
	}
	root.AddCommand(newServeCmd(), newMCPCmd(), newQueryCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is required to serve the API")
			}
			ctx := cmd.Context()

			app, cleanup, err := bootstrap.NewAPI(ctx, cfg)
			if err != nil {
				return fmt.Errorf("initialize API: %w", err)
			}
			defer cleanup()

			errCh := make(chan error, 1)
			go func() {
				addr := ":" + cfg.Port
				logger.Info("Starting API server on %s", addr)
				errCh <- app.Listen(addr)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info("Shutting down API server (timeout: %v)...", shutdownTimeout)
			if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
				logger.Error("Error shutting down: %v", err)
				return err
			}
			logger.Info("API server shut down gracefully")
			return nil
		},
	}
}

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server over stdio",
		Long: `Start an MCP (Model Context Protocol) server over stdio.

Tools are scoped to the mailbox named by MCP_USER_EMAIL:
search_messages, list_messages and get_message.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(cfg.MCPUserEmail) == "" {
				return errors.New("MCP_USER_EMAIL is required for the mcp command")
			}
			ctx := cmd.Context()

			deps, cleanup, err := bootstrap.NewDependencies(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			logger.Info("MCP server listening on stdio")
			return mcpserver.Serve(ctx, deps.SearchService, mcpserver.Options{
				UserKey:  domain.UserKeyFromEmail(cfg.MCPUserEmail),
				Location: cfg.Location(),
				Version:  version,
			})
		},
	}
}

func newQueryCmd() *cobra.Command {
	var (
		email       string
		text        string
		filterJSON  string
		allAccounts bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Answer one question and print the result as JSON",
		Example: `  ig-gmail-mcp query --email jane@x.com --text "emails from last week"
  ig-gmail-mcp query --email jane@x.com --text "invoices" --filter '{"start_date":"2024-01-01"}'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var ui *domain.UIFilter
			if filterJSON != "" {
				ui = &domain.UIFilter{}
				if err := json.Unmarshal([]byte(filterJSON), ui); err != nil {
					return fmt.Errorf("parse --filter: %w", err)
				}
			}
			ctx := cmd.Context()

			deps, cleanup, err := bootstrap.NewDependencies(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			userKey := domain.UserKeyFromEmail(email)
			var result any
			if allAccounts {
				result, err = deps.SearchService.QueryLinkedAccounts(ctx, userKey, text, ui)
			} else {
				result, err = deps.SearchService.Query(ctx, userKey, text, ui)
			}
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "mailbox address to query")
	cmd.Flags().StringVar(&text, "text", "", "natural-language question")
	cmd.Flags().StringVar(&filterJSON, "filter", "", "UI filter as JSON")
	cmd.Flags().BoolVar(&allAccounts, "all-accounts", false, "also search linked accounts")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}
