package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jdelaire/annoyray/adapters/telegram_notifier"
	"github.com/jdelaire/annoyray/adapters/telegram_receiver"
	"github.com/jdelaire/annoyray/core"
	"github.com/jdelaire/annoyray/core/analysis"
	"github.com/jdelaire/annoyray/core/policy"
	"github.com/jdelaire/annoyray/internal/completion"
	"github.com/jdelaire/annoyray/internal/config"
	"github.com/jdelaire/annoyray/internal/logging"
)

// drainGrace covers sending the last replies after their completions finish.
const drainGrace = 15 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "annoyray",
		Short: "Telegram bot that analyzes text for cognitive biases and logical fallacies",
		Long: `annoyray long-polls Telegram and answers with an LLM analysis of the
text it is given.

  /start             usage greeting
  /analyze <text>    analyze the text, or the replied-to message
  plain messages     analyzed in private chats only

Credentials come from TELEGRAM_TOKEN and OPENAI_API_KEY (a .env file in the
working directory is read too), falling back to the system keychain.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}
	root.AddCommand(newSecretCmd())
	return root
}

func run(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := completion.New(completion.Options{
		APIKey:  cfg.OpenAIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.CompletionTimeout,
	})

	dispatcher := core.NewDispatcher(
		policy.New(cfg.AllowedChats),
		analysis.NewAnalyzer(client),
		telegram_notifier.New(cfg.TelegramToken),
		logger,
	)

	lanes := core.NewLanes(ctx, dispatcher.Handle)
	receiver := telegram_receiver.New(cfg.TelegramToken, lanes.Submit, logger)

	username, err := receiver.Username(ctx)
	if err != nil {
		return fmt.Errorf("telegram getMe: %w", err)
	}
	dispatcher.WithBotUsername(username)

	logger.Info("annoyray starting", "bot", username, "model", client.Model(), "allowed_chats", len(cfg.AllowedChats))
	err = receiver.Start(ctx)

	// Accepted updates are already acknowledged; let them finish.
	drain := cfg.CompletionTimeout + drainGrace
	if !lanes.WaitTimeout(drain) {
		logger.Warn("shutdown drain timed out", "timeout", drain, "pending", lanes.Pending())
	}
	logger.Info("annoyray stopped")
	return err
}
