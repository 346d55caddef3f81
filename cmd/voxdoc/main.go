// Command voxdoc converts an extracted document text file into a single
// narrated WAV using a local LLM for speech-oriented text cleaning and a
// local Chatterbox TTS server for synthesis, optionally cloned from a short
// reference clip.
//
// Document parsing (PDF/DOCX/HTML extraction) is out of scope: voxdoc reads
// already-extracted plain text. Voice sample management is likewise external;
// a reference clip is passed by path.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/voxdoc/voxdoc/internal/cleaner"
	"github.com/voxdoc/voxdoc/internal/config"
	"github.com/voxdoc/voxdoc/internal/health"
	"github.com/voxdoc/voxdoc/internal/observe"
	"github.com/voxdoc/voxdoc/internal/pipeline"
	"github.com/voxdoc/voxdoc/internal/resilience"
	"github.com/voxdoc/voxdoc/internal/runstore"
	"github.com/voxdoc/voxdoc/internal/synth"
	"github.com/voxdoc/voxdoc/pkg/audio"
	"github.com/voxdoc/voxdoc/pkg/provider/llm/anyllm"
	"github.com/voxdoc/voxdoc/pkg/provider/tts"
	"github.com/voxdoc/voxdoc/pkg/provider/tts/chatterbox"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ─────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	inPath := flag.String("in", "", "path to the extracted document text file (required)")
	outPath := flag.String("out", "narration.wav", "path of the output WAV file")
	voicePath := flag.String("voice", "", "path to a 5-30s reference clip for voice cloning (optional)")
	voiceID := flag.String("voice-id", "", "speaker identifier for the reference clip (optional)")
	historyN := flag.Int("history", 0, "print the N most recent recorded runs and exit")
	flag.Parse()

	if *historyN > 0 {
		return runHistory(*configPath, *historyN)
	}

	if *inPath == "" {
		fmt.Fprintln(os.Stderr, "voxdoc: -in is required")
		flag.Usage()
		return 2
	}

	// ── Load configuration ────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxdoc: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxdoc: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voxdoc starting",
		"config", *configPath,
		"in", *inPath,
		"out", *outPath,
		"llm", cfg.LLM.Backend+"/"+cfg.LLM.Model,
		"tts", cfg.TTS.ServerURL,
	)

	// ── Signal context ────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "voxdoc"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Providers ─────────────────────────────────────────────────────────
	var llmOpts []anyllmlib.Option
	if cfg.LLM.BaseURL != "" {
		llmOpts = append(llmOpts, anyllmlib.WithBaseURL(cfg.LLM.BaseURL))
	}
	llmProvider, err := anyllm.New(cfg.LLM.Backend, cfg.LLM.Model, llmOpts...)
	if err != nil {
		slog.Error("failed to create LLM provider", "err", err)
		return 1
	}

	var ttsOpts []chatterbox.Option
	if cfg.TTS.RequestTimeout > 0 {
		ttsOpts = append(ttsOpts, chatterbox.WithTimeout(cfg.TTS.RequestTimeout.Std()))
	}
	ttsProvider, err := chatterbox.New(cfg.TTS.ServerURL, ttsOpts...)
	if err != nil {
		slog.Error("failed to create TTS provider", "err", err)
		return 1
	}

	// ── Metrics / health listener (optional) ──────────────────────────────
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		health.New(
			health.Checker{Name: "tts", Check: ttsProvider.Ping},
		).Register(mux)

		srv := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Warn("metrics listener error", "err", err)
			}
		}()
		defer srv.Close()
		slog.Info("metrics listener started", "addr", cfg.Server.MetricsAddr)
	}

	// ── Run store (optional) ──────────────────────────────────────────────
	var store *runstore.Store
	if cfg.RunStore.Path != "" {
		store, err = runstore.Open(ctx, cfg.RunStore.Path, logger)
		if err != nil {
			slog.Error("failed to open run store", "err", err)
			return 1
		}
		defer store.Close()
	}

	// ── Read the document text ────────────────────────────────────────────
	text, err := os.ReadFile(*inPath)
	if err != nil {
		slog.Error("failed to read document", "path", *inPath, "err", err)
		return 1
	}

	// ── Build the pipeline ────────────────────────────────────────────────
	voice := tts.VoiceReference{ID: *voiceID, ReferenceAudioPath: *voicePath}
	params := tts.SynthesisParams{
		Exaggeration: cfg.TTS.Exaggeration,
		CFGWeight:    cfg.TTS.CFGWeight,
		Temperature:  cfg.TTS.Temperature,
	}

	synthOpts := []synth.Option{
		synth.WithBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "tts"})),
	}
	if cfg.TTS.SampleRate > 0 || cfg.TTS.Channels > 0 {
		rate, channels := cfg.TTS.SampleRate, cfg.TTS.Channels
		if rate <= 0 {
			rate = synth.DefaultSampleRate
		}
		if channels <= 0 {
			channels = synth.DefaultChannels
		}
		synthOpts = append(synthOpts, synth.WithOutputFormat(rate, channels))
	}

	orch := pipeline.New(
		cleaner.New(llmProvider, logger),
		synth.New(ttsProvider, voice, params, synthOpts...),
		pipeline.Config{
			MaxChunkLen:    cfg.Pipeline.MaxChunkLen,
			Gap:            cfg.Pipeline.Gap(),
			CleanWorkers:   cfg.Pipeline.CleanWorkers,
			SynthWorkers:   cfg.Pipeline.SynthWorkers,
			OnSynthFailure: pipeline.FailurePolicy(cfg.Pipeline.OnSynthFailure),
		},
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(metrics),
	)

	// Stream progress events to the log while the run is in flight.
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		for ev := range orch.Events() {
			if ev.Index < 0 {
				slog.Info("stage", "stage", ev.Stage)
				continue
			}
			slog.Debug("unit progress", "unit", ev.Index, "stage", ev.Stage, "status", ev.Status)
		}
	}()

	// ── Run ───────────────────────────────────────────────────────────────
	start := time.Now()
	result, err := orch.Run(ctx, string(text))
	<-progressDone

	document := filepath.Base(*inPath)
	if err != nil {
		recordRun(store, document, "failed", nil, time.Since(start))
		slog.Error("conversion failed", "err", err)
		return 1
	}

	recordRun(store, document, "done", result.Manifest, time.Since(start))

	if result.Empty() {
		slog.Warn("document contained no speakable text; no output written")
		return 0
	}

	// ── Write the narration ───────────────────────────────────────────────
	out, err := os.Create(*outPath)
	if err != nil {
		slog.Error("failed to create output file", "path", *outPath, "err", err)
		return 1
	}
	if err := audio.EncodeWAV(out, result.Audio); err != nil {
		out.Close()
		slog.Error("failed to write narration", "path", *outPath, "err", err)
		return 1
	}
	if err := out.Close(); err != nil {
		slog.Error("failed to close output file", "path", *outPath, "err", err)
		return 1
	}

	printSummary(result, *outPath, time.Since(start))
	return 0
}

// runHistory lists recent runs from the configured run store on stdout.
func runHistory(configPath string, limit int) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "voxdoc: %v\n", err)
		return 1
	}
	if cfg.RunStore.Path == "" {
		fmt.Fprintln(os.Stderr, "voxdoc: run_store.path is not configured; no history to list")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := runstore.Open(ctx, cfg.RunStore.Path, slog.Default())
	if err != nil {
		fmt.Fprintf(os.Stderr, "voxdoc: open run store: %v\n", err)
		return 1
	}
	defer store.Close()

	if err := writeHistory(ctx, os.Stdout, store, limit); err != nil {
		fmt.Fprintf(os.Stderr, "voxdoc: %v\n", err)
		return 1
	}
	return 0
}

// writeHistory prints the most recent runs, newest first, with any per-unit
// problems of each run listed underneath.
func writeHistory(ctx context.Context, w io.Writer, store *runstore.Store, limit int) error {
	runs, err := store.RecentRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "no recorded runs")
		return nil
	}

	for _, r := range runs {
		fmt.Fprintf(w, "%s  %-6s  %s  (%d units, %s)\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Status, r.Document,
			r.Units, (time.Duration(r.DurationMs) * time.Millisecond).Round(time.Second))

		units, err := store.Units(ctx, r.ID)
		if err != nil {
			return fmt.Errorf("list units of run %s: %w", r.ID, err)
		}
		for _, u := range units {
			if u.CleaningError != "" {
				fmt.Fprintf(w, "    unit %d cleaning: %s\n", u.Index, u.CleaningError)
			}
			if u.SynthesisError != "" {
				fmt.Fprintf(w, "    unit %d synthesis: %s\n", u.Index, u.SynthesisError)
			}
		}
	}
	return nil
}

// recordRun stores the run outcome when a store is configured. Failures are
// logged and swallowed; history never fails a conversion.
func recordRun(store *runstore.Store, document, status string, manifest pipeline.Manifest, elapsed time.Duration) {
	if store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	id, err := store.RecordRun(ctx, document, status, manifest, elapsed)
	if err != nil {
		slog.Warn("failed to record run", "err", err)
		return
	}
	slog.Debug("run recorded", "run_id", id)
}

// printSummary reports the conversion outcome on stdout.
func printSummary(result *pipeline.Result, outPath string, elapsed time.Duration) {
	cleaned, fellBack, substituted := 0, 0, 0
	for _, entry := range result.Manifest {
		if entry.CleaningStatus == cleaner.StatusCleaned {
			cleaned++
		} else {
			fellBack++
		}
		if entry.SynthesisStatus == pipeline.StatusSubstituted {
			substituted++
		}
	}

	fmt.Printf("wrote %s (%s of audio, %d units) in %s\n",
		outPath, result.Audio.Duration().Round(time.Second), len(result.Manifest), elapsed.Round(time.Second))
	fmt.Printf("cleaning: %d cleaned, %d fell back to raw text\n", cleaned, fellBack)
	if substituted > 0 {
		fmt.Printf("synthesis: %d unit(s) replaced with silence:\n", substituted)
		for _, entry := range result.Manifest {
			if entry.SynthesisStatus == pipeline.StatusSubstituted {
				fmt.Printf("  unit %d: %s\n", entry.Index, entry.SynthesisError)
			}
		}
	}
}

// newLogger builds the process-wide slog logger at the configured level.
func newLogger(level config.LogLevel) *slog.Logger {
	var l slog.Level
	switch level {
	case config.LogDebug:
		l = slog.LevelDebug
	case config.LogWarn:
		l = slog.LevelWarn
	case config.LogError:
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
