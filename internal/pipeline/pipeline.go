// Package pipeline drives a document through chunking, cleaning, synthesis
// and assembly, producing one continuous narration plus a per-unit manifest.
//
// # State machine
//
// A run moves strictly forward through
//
//	Chunking → Cleaning → Synthesizing → Assembling → Done
//
// with a terminal Failed state reachable from any stage, entered only when
// the run cannot produce any narration at all (no readable input, every unit
// failing synthesis under the abort-free policy, or cancellation). Per-unit
// soft failures — a cleaning fallback or a silence substitution — never leave
// the forward path; they are recorded in the manifest and the run continues.
//
// # Concurrency
//
// Cleaning and synthesis run with bounded parallelism because both are
// inference-bound and independent across units; the worker limits double as
// the access gate on the shared local models, so unconstrained fan-out can
// never exhaust accelerator memory. Assembly is strictly sequential on
// sequence index and starts only after every unit has a segment. Completion
// order of concurrent inference calls carries no meaning — results land in
// index-addressed slots. Cancellation is cooperative: it is checked before
// each unit starts, an in-flight inference call runs to completion.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/voxdoc/voxdoc/internal/assembler"
	"github.com/voxdoc/voxdoc/internal/chunker"
	"github.com/voxdoc/voxdoc/internal/cleaner"
	"github.com/voxdoc/voxdoc/internal/observe"
	"github.com/voxdoc/voxdoc/internal/synth"
	"github.com/voxdoc/voxdoc/pkg/audio"
)

// Stage identifies a pipeline stage or terminal state.
type Stage string

const (
	StageChunking     Stage = "chunking"
	StageCleaning     Stage = "cleaning"
	StageSynthesizing Stage = "synthesizing"
	StageAssembling   Stage = "assembling"
	StageDone         Stage = "done"
	StageFailed       Stage = "failed"
)

// UnitStatus is the outcome of one stage for one unit, as reported in
// progress events and the manifest.
type UnitStatus string

const (
	// StatusOK means the stage completed normally for the unit.
	StatusOK UnitStatus = "ok"

	// StatusFellBack means cleaning failed and the raw text was used.
	StatusFellBack UnitStatus = "fell_back"

	// StatusSubstituted means synthesis failed and proportional silence was
	// inserted in the unit's place.
	StatusSubstituted UnitStatus = "silence_substituted"
)

// FailurePolicy selects how the orchestrator reacts to a per-unit synthesis
// failure.
type FailurePolicy string

const (
	// PolicySubstitute replaces the failed unit with silence of proportional
	// duration so narration continuity is preserved. This is the default.
	PolicySubstitute FailurePolicy = "substitute"

	// PolicyAbort fails the whole document on the first synthesis failure.
	PolicyAbort FailurePolicy = "abort"
)

// Event is one progress notification: a unit finished a stage, or — with
// Index set to -1 — the run transitioned to a new stage.
type Event struct {
	// Index is the unit's sequence index, or -1 for stage transitions.
	Index int

	// Stage is the stage the event refers to.
	Stage Stage

	// Status is the unit outcome; empty for stage transitions.
	Status UnitStatus
}

// ManifestEntry records the per-unit outcome of a run.
type ManifestEntry struct {
	// Index is the unit's sequence index.
	Index int

	// CleaningStatus reports whether the LLM rewrite was used.
	CleaningStatus cleaner.Status

	// CleaningError describes the cleaning failure behind a fallback, empty
	// otherwise.
	CleaningError string

	// SynthesisStatus is StatusOK or StatusSubstituted.
	SynthesisStatus UnitStatus

	// SynthesisError describes the synthesis failure behind a substitution,
	// empty otherwise.
	SynthesisError string
}

// Manifest is the ordered per-unit status record accompanying the narration.
// Entries are indexed by sequence index, contiguous from 0.
type Manifest []ManifestEntry

// Result is the outcome of one document conversion: the assembled narration
// and its manifest. Immutable once returned; owned by the caller.
type Result struct {
	// Audio is the assembled narration. Zero-valued when the document
	// contained no speakable text.
	Audio audio.Segment

	// Manifest lists the per-unit outcomes in sequence order.
	Manifest Manifest
}

// Empty reports whether the result carries no audio.
func (r *Result) Empty() bool { return len(r.Audio.Data) == 0 }

// Config holds per-run pipeline settings.
type Config struct {
	// MaxChunkLen is the per-unit character budget passed to the chunker.
	// Zero selects chunker.DefaultMaxLen.
	MaxChunkLen int

	// Gap is the silence inserted between consecutive units. Zero selects
	// assembler.DefaultGap; negative disables the gap.
	Gap time.Duration

	// CleanWorkers bounds concurrent cleaning calls against the LLM.
	// Default 1 — the safe choice for a single local model instance.
	CleanWorkers int

	// SynthWorkers bounds concurrent synthesis calls against the TTS model.
	// Default 1.
	SynthWorkers int

	// OnSynthFailure selects the reaction to a per-unit synthesis failure.
	// Default PolicySubstitute.
	OnSynthFailure FailurePolicy
}

// withDefaults returns cfg with zero values replaced.
func (c Config) withDefaults() Config {
	if c.MaxChunkLen <= 0 {
		c.MaxChunkLen = chunker.DefaultMaxLen
	}
	if c.Gap == 0 {
		c.Gap = assembler.DefaultGap
	}
	if c.CleanWorkers <= 0 {
		c.CleanWorkers = 1
	}
	if c.SynthWorkers <= 0 {
		c.SynthWorkers = 1
	}
	if c.OnSynthFailure == "" {
		c.OnSynthFailure = PolicySubstitute
	}
	return c
}

// eventBufCap bounds the progress channel. Events beyond the buffer are
// dropped rather than blocking inference; the manifest remains the
// authoritative record of unit outcomes.
const eventBufCap = 1024

// Orchestrator executes one document conversion. Each instance is single
// use: construct, optionally subscribe to Events, call Run once.
type Orchestrator struct {
	cleaner *cleaner.Cleaner
	synth   *synth.Synthesizer
	cfg     Config
	log     *slog.Logger
	metrics *observe.Metrics

	mu    sync.Mutex
	stage Stage
	ran   bool

	events chan Event
}

// Option configures an Orchestrator during construction.
type Option func(*Orchestrator)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithMetrics enables metric recording. When nil, metrics are skipped.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New constructs an Orchestrator for a single run.
func New(cl *cleaner.Cleaner, sy *synth.Synthesizer, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cleaner: cl,
		synth:   sy,
		cfg:     cfg.withDefaults(),
		log:     slog.Default(),
		stage:   StageChunking,
		events:  make(chan Event, eventBufCap),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Events returns the progress stream for this run. The channel is finite: it
// is closed when Run returns, and a new request needs a fresh Orchestrator.
// Consumers should drain promptly; events that would block the pipeline are
// dropped.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// State returns the current pipeline stage.
func (o *Orchestrator) State() Stage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stage
}

// Run converts text into a narration. It returns either a complete Result
// (possibly annotated with per-unit soft failures) or a *FatalError; nothing
// in between. Run may be called once per Orchestrator.
func (o *Orchestrator) Run(ctx context.Context, text string) (*Result, error) {
	o.mu.Lock()
	if o.ran {
		o.mu.Unlock()
		return nil, &FatalError{Reason: "orchestrator already ran; create a new one per request"}
	}
	o.ran = true
	o.mu.Unlock()

	defer close(o.events)

	start := time.Now()
	if o.metrics != nil {
		o.metrics.ActiveRuns.Add(ctx, 1)
		defer o.metrics.ActiveRuns.Add(ctx, -1)
		defer func() {
			o.metrics.RunDuration.Record(ctx, time.Since(start).Seconds())
		}()
	}

	ctx, span := observe.StartSpan(ctx, "pipeline.run")
	defer span.End()

	res, err := o.run(ctx, text)
	if err != nil {
		o.setStage(StageFailed)
		var fatal *FatalError
		if !errors.As(err, &fatal) {
			// Nothing below this point may leak raw backend errors upward.
			fatal = &FatalError{Reason: "internal pipeline error", Err: err}
		}
		o.log.Error("pipeline failed", "reason", fatal.Reason, "err", fatal.Err)
		return nil, fatal
	}
	o.setStage(StageDone)
	o.log.Info("pipeline done",
		"units", len(res.Manifest),
		"duration", res.Audio.Duration(),
		"elapsed", time.Since(start),
	)
	return res, nil
}

func (o *Orchestrator) run(ctx context.Context, text string) (*Result, error) {
	// ── Chunking ──────────────────────────────────────────────────────────
	o.setStage(StageChunking)
	units := chunker.Chunk(text, o.cfg.MaxChunkLen)
	if len(units) == 0 {
		if strings.TrimSpace(text) == "" {
			// Empty document: an empty result, not a failure.
			return &Result{Manifest: Manifest{}}, nil
		}
		return nil, &FatalError{Reason: "document contains no speakable text"}
	}
	o.log.Info("chunked document", "units", len(units), "max_len", o.cfg.MaxChunkLen)

	manifest := make(Manifest, len(units))
	for i := range manifest {
		manifest[i].Index = i
	}

	// ── Cleaning ──────────────────────────────────────────────────────────
	o.setStage(StageCleaning)
	cleaned, err := o.cleanAll(ctx, units, manifest)
	if err != nil {
		return nil, err
	}

	// ── Synthesizing ──────────────────────────────────────────────────────
	o.setStage(StageSynthesizing)
	segments, err := o.synthesizeAll(ctx, cleaned, manifest)
	if err != nil {
		return nil, err
	}

	// ── Assembling ────────────────────────────────────────────────────────
	o.setStage(StageAssembling)
	asmStart := time.Now()
	combined, err := assembler.Assemble(segments, o.cfg.Gap)
	if err != nil {
		return nil, &FatalError{Reason: "audio assembly failed", Err: err}
	}
	if o.metrics != nil {
		o.metrics.AssembleDuration.Record(ctx, time.Since(asmStart).Seconds())
	}

	return &Result{Audio: combined, Manifest: manifest}, nil
}

// cleanAll runs the cleaning stage with bounded parallelism. Cleaning never
// fails a unit hard — the cleaner degrades to raw text — so the only error
// out of here is cancellation.
func (o *Orchestrator) cleanAll(ctx context.Context, units []chunker.TextUnit, manifest Manifest) ([]cleaner.CleanedUnit, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.clean")
	defer span.End()

	cleaned := make([]cleaner.CleanedUnit, len(units))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.CleanWorkers)
	for _, unit := range units {
		// Cooperative cancellation: no new unit starts once cancelled.
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			start := time.Now()
			cu := o.cleaner.Clean(gctx, unit)
			cleaned[unit.Index] = cu

			manifest[unit.Index].CleaningStatus = cu.Status
			if cu.Err != nil {
				manifest[unit.Index].CleaningError = cu.Err.Error()
			}

			status := StatusOK
			if cu.Status == cleaner.StatusFellBack {
				status = StatusFellBack
			}
			o.emit(Event{Index: unit.Index, Stage: StageCleaning, Status: status})
			o.recordUnit(gctx, StageCleaning, status, time.Since(start))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &FatalError{Reason: "conversion cancelled", Err: err}
	}
	return cleaned, nil
}

// synthesizeAll runs the synthesis stage with bounded parallelism, applying
// the configured failure policy per unit. It guarantees one segment per unit
// in sequence order.
func (o *Orchestrator) synthesizeAll(ctx context.Context, cleaned []cleaner.CleanedUnit, manifest Manifest) ([]audio.Segment, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.synthesize")
	defer span.End()

	segments := make([]audio.Segment, len(cleaned))
	var failed int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.SynthWorkers)
	for _, cu := range cleaned {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			start := time.Now()
			seg, err := o.synth.Synthesize(gctx, cu)
			if err == nil {
				segments[cu.Index] = seg
				manifest[cu.Index].SynthesisStatus = StatusOK
				o.emit(Event{Index: cu.Index, Stage: StageSynthesizing, Status: StatusOK})
				o.recordUnit(gctx, StageSynthesizing, StatusOK, time.Since(start))
				return nil
			}

			uerr := &UnitError{Index: cu.Index, Stage: StageSynthesizing, Err: err}
			if o.cfg.OnSynthFailure == PolicyAbort {
				return uerr
			}

			o.log.Warn("synthesis failed, substituting silence", "unit", cu.Index, "err", err)
			segments[cu.Index] = o.synth.Substitute(cu)
			manifest[cu.Index].SynthesisStatus = StatusSubstituted
			manifest[cu.Index].SynthesisError = uerr.Error()
			o.emit(Event{Index: cu.Index, Stage: StageSynthesizing, Status: StatusSubstituted})
			o.recordUnit(gctx, StageSynthesizing, StatusSubstituted, time.Since(start))
			if o.metrics != nil {
				o.metrics.UnitFailures.Add(gctx, 1,
					metric.WithAttributes(attribute.String("stage", string(StageSynthesizing))))
			}
			o.mu.Lock()
			failed++
			o.mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var uerr *UnitError
		if errors.As(err, &uerr) {
			return nil, &FatalError{
				Reason: fmt.Sprintf("synthesis failed for unit %d and the failure policy is abort", uerr.Index),
				Err:    uerr,
			}
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &FatalError{Reason: "conversion cancelled", Err: err}
	}

	o.mu.Lock()
	allFailed := failed == int64(len(cleaned))
	o.mu.Unlock()
	if allFailed {
		// A result that is nothing but substituted silence is no narration.
		return nil, &FatalError{Reason: "synthesis failed for every unit"}
	}
	return segments, nil
}

// setStage advances the state machine and emits a stage-transition event.
func (o *Orchestrator) setStage(s Stage) {
	o.mu.Lock()
	o.stage = s
	o.mu.Unlock()
	o.emit(Event{Index: -1, Stage: s})
}

// emit delivers ev without ever blocking the pipeline.
func (o *Orchestrator) emit(ev Event) {
	select {
	case o.events <- ev:
	default:
		o.log.Debug("progress event dropped", "index", ev.Index, "stage", ev.Stage)
	}
}

// recordUnit records per-unit stage metrics.
func (o *Orchestrator) recordUnit(ctx context.Context, stage Stage, status UnitStatus, elapsed time.Duration) {
	if o.metrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("stage", string(stage)),
		attribute.String("status", string(status)),
	)
	o.metrics.UnitsProcessed.Add(ctx, 1, attrs)
	switch stage {
	case StageCleaning:
		o.metrics.CleanDuration.Record(ctx, elapsed.Seconds())
	case StageSynthesizing:
		o.metrics.SynthDuration.Record(ctx, elapsed.Seconds())
	}
}
