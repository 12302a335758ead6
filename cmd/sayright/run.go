package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sayright/sayright/internal/app"
	"github.com/sayright/sayright/internal/config"
	"github.com/sayright/sayright/internal/observe"
	"github.com/sayright/sayright/pkg/audio"
)

const shutdownTimeout = 15 * time.Second

type practiceOptions struct {
	root    *rootOptions
	text    bool
	noSpeak bool
}

func (p *practiceOptions) bindFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&p.text, "text", false, "read utterances from stdin, one per line, instead of the microphone")
	cmd.Flags().BoolVar(&p.noSpeak, "no-speak", false, "print feedback only")
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	p := &practiceOptions{root: opts}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a practice session",
		Example: `  sayright run
  sayright run --config ~/.config/sayright.yaml
  printf 'begin\nhello\n' | sayright run --text --no-speak`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPractice(cmd, p)
		},
	}
	p.bindFlags(cmd)
	return cmd
}

func runPractice(cmd *cobra.Command, p *practiceOptions) error {
	cfg, err := loadConfig(cmd, p.root)
	if err != nil {
		return err
	}
	if p.text {
		cfg.Providers.STT = config.ProviderEntry{Name: "text"}
		cfg.Providers.STTFallbacks = nil
	}
	if p.noSpeak {
		speak := false
		cfg.Feedback.Speak = &speak
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "sayright",
		ServiceVersion: version,
		MetricsFile:    cfg.Observe.MetricsFile,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	app.RegisterBuiltinProviders(reg, app.ProviderDeps{
		Stdin:       cmd.InOrStdin(),
		CaptureRate: cfg.Audio.SampleRate,
		Playback:    audio.Format{SampleRate: cfg.Audio.PlaybackSampleRate, Channels: 1},
	})
	providers, err := app.BuildProviders(cfg, reg, metrics)
	if err != nil {
		return fmt.Errorf("build providers: %w", err)
	}

	out := cmd.OutOrStdout()
	printStartupSummary(out, cfg, providers)

	application, err := app.New(ctx, cfg, providers, app.WithMetrics(metrics), app.WithOutput(out))
	if err != nil {
		_ = providers.Close()
		return err
	}
	fmt.Fprintf(out, "Say %q to start practising. Press Ctrl+C to stop.\n", application.Session().ActivationKeyword())

	runErr := application.Run(ctx)

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	slog.Info("goodbye")
	return nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(w io.Writer, cfg *config.Config, ps *app.Providers) {
	fmt.Fprintln(w, "╔═══════════════════════════════════════╗")
	fmt.Fprintln(w, "║        sayright — startup summary     ║")
	fmt.Fprintln(w, "╠═══════════════════════════════════════╣")
	printRow(w, "STT", providerLabel(ps.STTName, cfg.Providers.STT.Model))
	printRow(w, "TTS", providerLabel(ps.TTSName, cfg.Providers.TTS.Model))
	printRow(w, "Phonemes", string(cfg.Phonemes.Source))
	printRow(w, "Match", fmt.Sprintf("%s @ %.2f", cfg.Match.Metric, cfg.Match.EffectiveCutoff()))
	printRow(w, "Evaluate", string(cfg.Evaluate.Policy))
	words := len(cfg.Vocabulary.Words)
	if words == 0 {
		printRow(w, "Vocabulary", "(built-in)")
	} else {
		printRow(w, "Vocabulary", fmt.Sprintf("%d words", words))
	}
	fmt.Fprintln(w, "╚═══════════════════════════════════════╝")
}

func providerLabel(name, model string) string {
	switch {
	case name == "":
		return "(not configured)"
	case model != "":
		return name + " / " + model
	default:
		return name
	}
}

func printRow(w io.Writer, key, value string) {
	if r := []rune(value); len(r) > 19 {
		value = string(r[:18]) + "…"
	}
	fmt.Fprintf(w, "║  %-12s    : %-19s ║\n", key, value)
}
