package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/jholhewres/briefclaw/pkg/briefclaw/config"
	"github.com/spf13/cobra"
)

// newInitCmd creates `briefclaw init`, the interactive config generator.
func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a config file interactively",
		Long: `Walk through the essential settings and write a config file. Credentials
entered here are stored in the OS keyring, never in the file.

Examples:
  briefclaw init
  briefclaw init --output ./configs/config.yaml`,
		Args: cobra.NoArgs,
		RunE: runInit,
	}

	cmd.Flags().StringP("output", "o", "config.yaml", "where to write the config file")
	cmd.Flags().Bool("force", false, "overwrite an existing file")
	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	output, _ := cmd.Flags().GetString("output")
	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(output); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", output)
	}

	cfg := config.DefaultConfig()
	var botToken, llmKey, newsKey, weatherKey string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Messaging platform").
				Options(
					huh.NewOption("Telegram", "telegram"),
					huh.NewOption("Discord", "discord"),
				).
				Value(&cfg.Platform),
			huh.NewInput().
				Title("Bot token").
				EchoMode(huh.EchoModePassword).
				Value(&botToken),
			huh.NewInput().
				Title("Destination").
				Description("Telegram chat ID or Discord channel ID that receives the briefing").
				Value(&cfg.Destination).
				Validate(required("destination")),
			huh.NewInput().
				Title("Authorized user ID").
				Description("Only this sender may use commands. Leave empty to allow everyone.").
				Value(&cfg.AuthorizedUserID),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Daily push time (HH:MM)").
				Value(&cfg.Schedule.PushTime).
				Validate(func(s string) error {
					_, _, err := config.ParseClock(s)
					return err
				}),
			huh.NewInput().
				Title("Timezone").
				Value(&cfg.Timezone).
				Validate(func(s string) error {
					_, err := time.LoadLocation(s)
					return err
				}),
			huh.NewConfirm().
				Title("Send a briefing as soon as the bot starts?").
				Value(&cfg.Schedule.RunOnStart),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("LLM API key").
				Description("OpenAI-compatible key for summaries, /ai and chat. Optional.").
				EchoMode(huh.EchoModePassword).
				Value(&llmKey),
			huh.NewInput().
				Title("News API key").
				Description("newsapi.org key. Optional.").
				EchoMode(huh.EchoModePassword).
				Value(&newsKey),
			huh.NewInput().
				Title("Weather API key").
				Description("OpenWeatherMap key. Optional.").
				EchoMode(huh.EchoModePassword).
				Value(&weatherKey),
			huh.NewInput().
				Title("Weather city").
				Value(&cfg.Sources.Weather.City),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Fprintln(cmd.OutOrStdout(), "Setup cancelled.")
			return nil
		}
		return err
	}

	secrets := map[string]string{
		"llm_api_key":     llmKey,
		"news_api_key":    newsKey,
		"weather_api_key": weatherKey,
	}
	if cfg.Platform == "discord" {
		secrets["discord_bot_token"] = botToken
	} else {
		secrets["telegram_bot_token"] = botToken
	}
	for name, value := range secrets {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if err := config.StoreSecret(name, value); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Could not store %s in the keyring: %v\n", name, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stored %s in the OS keyring.\n", name)
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := config.Save(cfg, output); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s. Start the bot with: briefclaw serve -c %s\n", output, output)
	return nil
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}
