package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/jholhewres/briefclaw/pkg/briefclaw/assistant"
	"github.com/jholhewres/briefclaw/pkg/briefclaw/llm"
	"github.com/spf13/cobra"
)

// newChatCmd creates the `briefclaw chat` command for local conversations.
func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the assistant from the terminal",
		Long: `Talk to the same LLM assistant the bot exposes, using the same bounded
conversation history. Send one message directly or start an interactive
session (no arguments). Type /clear to reset history and /exit to quit.

Examples:
  briefclaw chat "Summarize what a yield curve inversion means"
  briefclaw chat`,
		Args: cobra.MaximumNArgs(1),
		RunE: runChat,
	}

	cmd.Flags().StringP("model", "m", "", "LLM model to use (e.g. gpt-4o-mini)")
	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if model, _ := cmd.Flags().GetString("model"); model != "" {
		cfg.LLM.Model = model
	}
	logger := newLogger(cmd, cfg)

	client := newLLM(cfg, logger)
	if !client.HasKey() {
		return fmt.Errorf("chat needs llm.api_key or OPENAI_API_KEY: %w", llm.ErrNoAPIKey)
	}
	chatter := assistant.NewChatter(client, cfg.Assistant.SystemPrompt, nil, logger)
	session := assistant.NewSession(cfg.Assistant.MaxHistory)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	if len(args) > 0 {
		reply, err := chatter.Reply(ctx, session, args[0])
		fmt.Fprintln(out, reply)
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "you> ",
		HistoryFile:     historyFile(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("starting prompt: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(out, "%s chat (model %s). /clear resets history, /exit quits.\n", cfg.Name, client.Model())
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/clear":
			session.Clear()
			fmt.Fprintln(out, "History cleared.")
			continue
		}

		reply, _ := chatter.Reply(ctx, session, line)
		fmt.Fprintf(out, "%s> %s\n", strings.ToLower(cfg.Name), reply)
	}
}

// historyFile returns the readline history path under the user config dir.
func historyFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "briefclaw")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return ""
	}
	return filepath.Join(dir, "chat_history")
}
