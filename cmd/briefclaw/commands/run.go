package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jholhewres/briefclaw/pkg/briefclaw/briefing"
	"github.com/jholhewres/briefclaw/pkg/briefclaw/metrics"
	"github.com/spf13/cobra"
)

// newRunCmd creates the `briefclaw run` command that sends one briefing.
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build and send one briefing now, then exit",
		Long: `Collect every source once, render the briefing and deliver it to the
configured destination. With --dry-run the document is printed instead
and no bot token is needed.

Examples:
  briefclaw run
  briefclaw run --dry-run`,
		Args: cobra.NoArgs,
		RunE: runOnce,
	}

	cmd.Flags().Bool("dry-run", false, "print the briefing instead of sending it")
	return cmd
}

func runOnce(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if !dryRun {
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	logger := newLogger(cmd, cfg)
	rec := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	completer := newLLM(cfg, logger)

	if dryRun {
		doc, err := newPipeline(cfg, completer, nil, rec, logger).Render(ctx)
		if err != nil && !errors.Is(err, briefing.ErrNoData) {
			return err
		}
		logger.Info("briefing rendered", "bytes", len(doc), "chunks", len(briefing.SplitMessage(doc, cfg.MessageLimit())))
		fmt.Fprintln(cmd.OutOrStdout(), doc)
		return nil
	}

	ch := newChannel(cfg, logger)
	if err := ch.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect %s: %w", ch.Name(), err)
	}
	defer ch.Disconnect()

	pipeline := newPipeline(cfg, completer, newDelivery(cfg, ch, rec, logger), rec, logger)
	err = pipeline.Run(ctx)
	if errors.Is(err, briefing.ErrNoData) {
		fmt.Fprintln(os.Stderr, "No source produced data; the no-data notice was sent.")
		return nil
	}
	return err
}
