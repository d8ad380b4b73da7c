package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"

	"github.com/teemow/inboxforward/internal/config"
	"github.com/teemow/inboxforward/internal/delivery"
	"github.com/teemow/inboxforward/internal/gmail"
	"github.com/teemow/inboxforward/internal/google"
	"github.com/teemow/inboxforward/internal/instrumentation"
	"github.com/teemow/inboxforward/internal/logging"
	"github.com/teemow/inboxforward/internal/scanner"
	"github.com/teemow/inboxforward/internal/server"
	"github.com/teemow/inboxforward/internal/telegram"
)

func newPollCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Forward unread, unprocessed messages to Telegram",
		Long: `Scan the inbox for unread messages without the processed label, forward
each one to the configured Telegram chat and label it.

With --interval 0 (the default) a single cycle runs and the command exits.
Otherwise cycles repeat until SIGINT or SIGTERM, and the metrics server
serves /metrics, /healthz and /readyz on --metrics-addr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runPoll(cmd.Context(), cfg)
		},
	}

	cmd.Flags().Duration("interval", 0, "Time between poll cycles; 0 runs a single cycle")
	cmd.Flags().Bool("dry-run", false, "Extract and log messages without delivering or labeling them")
	cmd.Flags().StringSlice("skip-sender", nil, "From header value that is never forwarded (repeatable)")
	cmd.Flags().String("label", config.DefaultProcessedLabel, "Name of the label marking processed messages")
	cmd.Flags().Bool("mark-on-failure", true, "Label messages whose delivery failed so they are not retried")
	cmd.Flags().Bool("caption-images", false, "Send the email subject as the caption of forwarded images")
	cmd.Flags().String("metrics-addr", config.DefaultMetricsAddr, "Metrics and health server address; empty disables it")
	bindFlags(cmd.Flags(), map[string]string{
		"interval":        "scanner.interval",
		"dry-run":         "scanner.dry_run",
		"skip-sender":     "scanner.skip_senders",
		"label":           "scanner.processed_label",
		"mark-on-failure": "scanner.mark_on_failure",
		"caption-images":  "telegram.caption_images",
		"metrics-addr":    "metrics.addr",
	})

	return cmd
}

func runPoll(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := logging.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	instrConfig := instrumentationConfig(cfg)
	if err := instrConfig.Validate(); err != nil {
		return fmt.Errorf("invalid instrumentation configuration: %w", err)
	}
	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		// ctx is already cancelled here; flushing needs its own deadline.
		flushCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(flushCtx); err != nil {
			logger.Warn("error during instrumentation shutdown", logging.Err(err))
		}
	}()

	sc, err := newScanner(ctx, cfg, logger, provider, instrConfig.Audit)
	if err != nil {
		return err
	}

	health := server.NewHealthChecker(0)
	loop := func(ctx context.Context) error {
		return pollLoop(ctx, sc, health, cfg.Scanner.Interval, logger)
	}

	// A single cycle needs no probes.
	if cfg.Scanner.Interval == 0 || cfg.Metrics.Addr == "" {
		return loop(ctx)
	}

	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    cfg.Metrics.Addr,
		InstrumentationProvider: provider,
		Health:                  health,
		Logger:                  logging.WithComponent(logger, "metrics"),
	})
	if err != nil {
		return fmt.Errorf("failed to create metrics server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(metricsServer.Start)
	g.Go(func() error {
		defer health.SetShuttingDown()
		return loop(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// instrumentationConfig maps the telemetry section onto the provider config.
func instrumentationConfig(cfg *config.Config) instrumentation.Config {
	t := cfg.Telemetry
	return instrumentation.Config{
		ServiceName:       t.ServiceName,
		ServiceVersion:    version,
		ServiceInstanceID: t.InstanceID,
		Enabled:           t.Enabled,
		MetricsExporter:   t.MetricsExporter,
		TracingExporter:   t.TracingExporter,
		OTLPEndpoint:      t.OTLPEndpoint,
		OTLPInsecure:      t.OTLPInsecure,
		TraceSamplingRate: t.TraceSamplingRate,
		DetailedLabels:    t.DetailedLabels,
		Audit: instrumentation.AuditConfig{
			Enabled:    t.Audit,
			IncludePII: cfg.Log.IncludePII,
		},
	}
}

// newScanner builds the Gmail, Telegram and delivery clients behind a
// Scanner.
func newScanner(ctx context.Context, cfg *config.Config, logger *slog.Logger, provider *instrumentation.Provider, audit instrumentation.AuditConfig) (*scanner.Scanner, error) {
	httpClient, err := google.NewHTTPClient(ctx, google.Credentials{
		ClientSecretFile: cfg.Google.CredentialsFile,
		TokenFile:        cfg.Google.TokenFile,
		Logger:           logging.WithComponent(logger, "google"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Google HTTP client: %w", err)
	}

	inbox, err := gmail.NewClient(ctx, gmail.Config{
		Logger:  logging.WithComponent(logger, "gmail"),
		Metrics: provider.Metrics(),
	}, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}

	var chat scanner.Deliverer
	if !cfg.Scanner.DryRun {
		tg, err := telegram.NewClient(telegram.Config{
			Token:   cfg.Telegram.BotToken,
			ChatID:  cfg.Telegram.ChatID,
			BaseURL: cfg.Telegram.BaseURL,
			Timeout: cfg.Telegram.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Telegram client: %w", err)
		}
		chat = delivery.NewClient(tg, logging.WithComponent(logger, "delivery"), provider.Metrics())
	}

	return scanner.New(inbox, chat, scanner.Config{
		SkipSenders:    cfg.Scanner.SkipSenders,
		ProcessedLabel: cfg.Scanner.ProcessedLabel,
		MarkOnFailure:  cfg.Scanner.MarkOnFailure,
		CaptionImages:  cfg.Telegram.CaptionImages,
		DryRun:         cfg.Scanner.DryRun,
		IncludePII:     cfg.Log.IncludePII,
		Logger:         logging.WithComponent(logger, "scanner"),
		Metrics:        provider.Metrics(),
		Audit:          instrumentation.NewAuditLogger(logger, audit),
	})
}

// cycleRunner runs one poll cycle.
type cycleRunner interface {
	ScanAndDeliver(ctx context.Context) (scanner.Summary, error)
}

// pollLoop runs cycles every interval until ctx is done. An interval of
// zero runs one cycle and returns its error. In a repeating loop a failed
// cycle is logged and the next one runs on schedule.
func pollLoop(ctx context.Context, sc cycleRunner, health *server.HealthChecker, interval time.Duration, logger *slog.Logger) error {
	if interval == 0 {
		_, err := sc.ScanAndDeliver(ctx)
		health.RecordCycle(err)
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		_, err := sc.ScanAndDeliver(ctx)
		if ctx.Err() != nil {
			logger.Info("poll loop stopped")
			return nil
		}
		health.RecordCycle(err)
		if err != nil {
			logger.Error("poll cycle failed", logging.Err(err))
		}

		select {
		case <-ctx.Done():
			logger.Info("poll loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}
