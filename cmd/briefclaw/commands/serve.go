package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jholhewres/briefclaw/pkg/briefclaw/assistant"
	"github.com/jholhewres/briefclaw/pkg/briefclaw/channels"
	"github.com/jholhewres/briefclaw/pkg/briefclaw/metrics"
	"github.com/jholhewres/briefclaw/pkg/briefclaw/scheduler"
	"github.com/spf13/cobra"
)

const briefingJobID = "daily-briefing"

// newServeCmd creates the `briefclaw serve` command that starts the daemon.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the bot: daily schedule plus command handling",
		Long: `Connect to the configured platform, schedule the daily briefing and
answer commands until interrupted.

Examples:
  briefclaw serve
  briefclaw serve --no-run-on-start
  briefclaw serve --config ./config.yaml`,
		RunE: runServe,
	}

	cmd.Flags().Bool("no-run-on-start", false, "skip the immediate briefing at startup")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	// ── Load config ──
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)
	rec := metrics.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Channel ──
	ch := newChannel(cfg, logger)
	mgr := channels.NewManager(logger)
	if err := mgr.Register(ch); err != nil {
		return err
	}
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("failed to start channel: %w", err)
	}

	// ── Pipeline and router ──
	completer := newLLM(cfg, logger)
	if !completer.HasKey() {
		logger.Warn("no LLM API key configured, AI summary and chat replies are disabled")
	}
	out := newDelivery(cfg, mgr.Sender(ch.Name()), rec, logger)
	pipeline := newPipeline(cfg, completer, out, rec, logger)

	sched := scheduler.New(cfg.Location(), cfg.Schedule.JobTimeout, logger)
	if err := sched.AddDaily(briefingJobID, cfg.Schedule.PushTime, pipeline.Run); err != nil {
		mgr.Stop()
		return err
	}

	routerCfg := assistant.RouterConfig{
		Name:             cfg.Name,
		AuthorizedUserID: cfg.AuthorizedUserID,
		Briefer:          pipeline,
		Chatter:          assistant.NewChatter(completer, cfg.Assistant.SystemPrompt, rec, logger),
		Session:          assistant.NewSession(cfg.Assistant.MaxHistory),
		Replier:          out,
		NextRun:          func() (time.Time, bool) { return sched.NextRun(briefingJobID) },
		Logger:           logger,
	}
	if pc, ok := ch.(channels.PresenceChannel); ok {
		routerCfg.Typer = pc
	}
	router := assistant.NewRouter(routerCfg)
	go router.Run(ctx, mgr.Messages())

	// ── Metrics ──
	var metricsSrv *metrics.Server
	if cfg.Metrics.Listen != "" {
		metricsSrv = metrics.NewServer(cfg.Metrics.Listen, rec, func() (bool, any) {
			health := mgr.HealthAll()
			ok := true
			for _, h := range health {
				ok = ok && h.Connected
			}
			detail := map[string]any{
				"channels": health,
				"router":   router.State(),
			}
			if last := pipeline.LastRun(); last != nil {
				detail["last_run"] = map[string]any{
					"id":       last.ID,
					"started":  last.Started,
					"duration": last.Duration.String(),
					"outcome":  last.Outcome,
				}
			}
			if job, ok := sched.Get(briefingJobID); ok {
				jobDetail := map[string]any{"run_count": job.RunCount}
				if job.LastError != "" {
					jobDetail["last_error"] = job.LastError
				}
				detail["job"] = jobDetail
			}
			return ok, detail
		}, logger)
		metricsSrv.Start()
	}

	// ── Start ──
	sched.Start()
	runOnStart := cfg.Schedule.RunOnStart
	if skip, _ := cmd.Flags().GetBool("no-run-on-start"); skip {
		runOnStart = false
	}
	if runOnStart {
		if err := sched.Trigger(briefingJobID); err != nil {
			logger.Error("initial briefing failed to start", "error", err)
		}
	}

	next, _ := sched.NextRun(briefingJobID)
	logger.Info("BriefClaw running. Press Ctrl+C to stop.",
		"name", cfg.Name,
		"platform", cfg.Platform,
		"push_time", cfg.Schedule.PushTime,
		"timezone", cfg.Timezone,
		"llm_model", completer.Model(),
		"next_run", next,
	)

	// ── Wait for shutdown ──
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping...")
	cancel()

	done := make(chan struct{})
	go func() {
		sched.Stop()
		mgr.Stop()
		if metricsSrv != nil {
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics shutdown failed", "error", err)
			}
		}
		close(done)
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-time.After(15 * time.Second):
		logger.Warn("shutdown timed out after 15s, forcing exit")
	}
	return nil
}
