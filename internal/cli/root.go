// Package cli provides the command-line interface for evo.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/comigor/evo-go/internal/config"
	"github.com/comigor/evo-go/internal/history"
	"github.com/comigor/evo-go/internal/llm"
	"github.com/comigor/evo-go/internal/logger"
	"github.com/comigor/evo-go/internal/retry"
	"github.com/comigor/evo-go/internal/session"
	"github.com/comigor/evo-go/internal/storage"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	configPath string
	logLevel   string

	// Initialized by the root pre-run.
	cfg      *config.Config
	kv       storage.KV
	ctrl     *session.Controller
	closeLog func() error
)

var rootCmd = &cobra.Command{
	Use:   "evo",
	Short: "Chat with the Evo assistant",
	Long: `Evo is a chat assistant backed by a configurable LLM provider.

Conversations are persisted locally and can be saved, reloaded, rated and
shared. The same session is reachable from an interactive terminal chat,
an HTTP/WebSocket API and an MCP stdio server.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}
		return setup(cmd.Context())
	},
}

// setup loads configuration and wires the controller shared by every command.
func setup(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if configPath != "" {
		if err := os.Setenv("CONFIG_PATH", configPath); err != nil {
			return err
		}
	}

	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	logger.SetLevel(level)
	closeLog = logger.Setup(cfg.Log.File)

	kv = storage.OpenOrMemory(cfg.Storage)

	// read-only commands never need provider credentials
	llmCfg := cfg.LLM
	gen := llm.Lazy(func(ctx context.Context) (llm.Generator, error) {
		gen, err := llm.NewGenerator(ctx, llmCfg)
		if err != nil {
			return nil, fmt.Errorf("init llm: %w", err)
		}
		return gen, nil
	})

	ctrl = session.New(ctx, gen, history.NewStore(kv), session.Options{
		Policy: retry.Policy{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			Backoff:        cfg.Retry.Backoff,
			AttemptTimeout: cfg.Retry.AttemptTimeout,
			Retryable:      llm.IsUnavailable,
		},
		AssistantName: cfg.Assistant.Name,
		Clipboard:     newClipboard(),
	})
	logger.L.Debug("session ready", "provider", cfg.LLM.Provider, "storage", cfg.Storage.Driver)
	return nil
}

// teardown releases what setup opened. It is safe to call when setup did
// not run or failed part way.
func teardown() {
	if kv != nil {
		if err := kv.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close storage: %v\n", err)
		}
		kv = nil
	}
	if closeLog != nil {
		_ = closeLog()
		closeLog = nil
	}
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	defer teardown()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(savedCmd)
	rootCmd.AddCommand(askCmd)
}
