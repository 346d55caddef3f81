package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/voxdoc/voxdoc/internal/cleaner"
	"github.com/voxdoc/voxdoc/internal/pipeline"
	"github.com/voxdoc/voxdoc/internal/resilience"
	"github.com/voxdoc/voxdoc/internal/synth"
	"github.com/voxdoc/voxdoc/pkg/audio"
	"github.com/voxdoc/voxdoc/pkg/provider/llm"
	llmmock "github.com/voxdoc/voxdoc/pkg/provider/llm/mock"
	"github.com/voxdoc/voxdoc/pkg/provider/tts"
	ttsmock "github.com/voxdoc/voxdoc/pkg/provider/tts/mock"
)

// echoLLM replies with the unit's own text, so cleaning is a pass-through.
func echoLLM() *llmmock.Provider {
	return &llmmock.Provider{
		CountTokensFn: func(messages []llm.Message) (int, error) { return 32, nil },
	}
}

func newOrchestrator(llmP *llmmock.Provider, ttsP *ttsmock.Provider, cfg pipeline.Config) *pipeline.Orchestrator {
	if llmP.Responses == nil {
		// The mock repeats the last scripted response; a single non-empty
		// reply covers every unit.
		llmP.Responses = []*llm.CompletionResponse{{Content: "cleaned text"}}
	}
	retrier := resilience.NewRetrier(resilience.RetryConfig{MaxAttempts: 1, InitialBackoff: time.Millisecond})
	return pipeline.New(
		cleaner.New(llmP, nil),
		synth.New(ttsP, tts.VoiceReference{}, tts.DefaultParams(), synth.WithRetrier(retrier)),
		cfg,
	)
}

func goodSegment() audio.Segment {
	return audio.Segment{Data: make([]int, 2400), SampleRate: 24000, Channels: 1}
}

func TestRun_HappyPath(t *testing.T) {
	t.Parallel()

	ttsP := &ttsmock.Provider{Segment: goodSegment()}
	o := newOrchestrator(echoLLM(), ttsP, pipeline.Config{})

	res, err := o.Run(context.Background(), "First sentence. Second sentence. Third sentence.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.State() != pipeline.StageDone {
		t.Errorf("want StageDone, got %v", o.State())
	}
	if len(res.Manifest) != 3 {
		t.Fatalf("want 3 manifest entries, got %d", len(res.Manifest))
	}
	for i, entry := range res.Manifest {
		if entry.Index != i {
			t.Errorf("entry %d has index %d", i, entry.Index)
		}
		if entry.CleaningStatus != cleaner.StatusCleaned {
			t.Errorf("entry %d cleaning status %q", i, entry.CleaningStatus)
		}
		if entry.SynthesisStatus != pipeline.StatusOK {
			t.Errorf("entry %d synthesis status %q", i, entry.SynthesisStatus)
		}
	}

	// Three 100ms segments plus two 150ms default gaps.
	want := 3*100*time.Millisecond + 2*150*time.Millisecond
	if res.Audio.Duration() != want {
		t.Errorf("want %v of audio, got %v", want, res.Audio.Duration())
	}
}

func TestRun_EmptyDocumentIsNotAFailure(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(echoLLM(), &ttsmock.Provider{Segment: goodSegment()}, pipeline.Config{})

	res, err := o.Run(context.Background(), "   \n\t ")
	if err != nil {
		t.Fatalf("empty document must not fail, got %v", err)
	}
	if !res.Empty() {
		t.Error("want empty result")
	}
	if len(res.Manifest) != 0 {
		t.Errorf("want empty manifest, got %d entries", len(res.Manifest))
	}
	if o.State() != pipeline.StageDone {
		t.Errorf("want StageDone, got %v", o.State())
	}
}

func TestRun_CleaningFallbackKeepsRawText(t *testing.T) {
	t.Parallel()

	llmP := &llmmock.Provider{
		Errs:      []error{errors.New("llm down")},
		Responses: []*llm.CompletionResponse{nil},
	}
	ttsP := &ttsmock.Provider{Segment: goodSegment()}
	o := newOrchestrator(llmP, ttsP, pipeline.Config{})

	res, err := o.Run(context.Background(), "Only sentence here.")
	if err != nil {
		t.Fatalf("cleaning failure must not fail the run, got %v", err)
	}
	if res.Manifest[0].CleaningStatus != cleaner.StatusFellBack {
		t.Errorf("want fell_back, got %q", res.Manifest[0].CleaningStatus)
	}
	if res.Manifest[0].CleaningError == "" {
		t.Error("manifest should record the cleaning error")
	}
	// The raw text still reaches the TTS provider.
	if got := ttsP.Calls()[0].Text; got != "Only sentence here." {
		t.Errorf("synthesised %q, want the raw text", got)
	}
}

func TestRun_SubstitutesSilenceForFailedUnit(t *testing.T) {
	t.Parallel()

	llmP := echoLLM()
	// Unit texts all become "cleaned text"; fail on one call by position.
	var n int
	ttsP := &ttsmock.Provider{}
	ttsP.SynthesizeFn = func(context.Context, string, tts.VoiceReference, tts.SynthesisParams) (audio.Segment, error) {
		n++
		if n == 2 {
			return audio.Segment{}, errors.New("synthesis exploded")
		}
		return goodSegment(), nil
	}
	o := newOrchestrator(llmP, ttsP, pipeline.Config{})

	res, err := o.Run(context.Background(), "One. Two. Three. Four. Five.")
	if err != nil {
		t.Fatalf("substitute policy must not fail the run, got %v", err)
	}
	if len(res.Manifest) != 5 {
		t.Fatalf("want 5 manifest entries, got %d", len(res.Manifest))
	}

	substituted := 0
	for _, entry := range res.Manifest {
		switch entry.SynthesisStatus {
		case pipeline.StatusSubstituted:
			substituted++
			if entry.SynthesisError == "" {
				t.Error("substituted entry should record the failure")
			}
		case pipeline.StatusOK:
			if entry.SynthesisError != "" {
				t.Errorf("ok entry carries error %q", entry.SynthesisError)
			}
		default:
			t.Errorf("unexpected synthesis status %q", entry.SynthesisStatus)
		}
	}
	if substituted != 1 {
		t.Fatalf("want exactly 1 substituted unit, got %d", substituted)
	}
	if res.Empty() {
		t.Error("narration should still contain the surviving units")
	}
}

func TestRun_AbortPolicyFailsRun(t *testing.T) {
	t.Parallel()

	ttsP := &ttsmock.Provider{SynthesizeErr: errors.New("synthesis exploded")}
	o := newOrchestrator(echoLLM(), ttsP, pipeline.Config{
		OnSynthFailure: pipeline.PolicyAbort,
	})

	_, err := o.Run(context.Background(), "One. Two.")
	if err == nil {
		t.Fatal("want error under abort policy")
	}
	var fatal *pipeline.FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("want *FatalError, got %T: %v", err, err)
	}
	if !strings.Contains(fatal.Reason, "abort") {
		t.Errorf("reason should mention the abort policy, got %q", fatal.Reason)
	}
	if o.State() != pipeline.StageFailed {
		t.Errorf("want StageFailed, got %v", o.State())
	}
}

func TestRun_AllUnitsFailedIsFatal(t *testing.T) {
	t.Parallel()

	ttsP := &ttsmock.Provider{SynthesizeErr: errors.New("synthesis exploded")}
	o := newOrchestrator(echoLLM(), ttsP, pipeline.Config{})

	_, err := o.Run(context.Background(), "One. Two. Three.")
	if err == nil {
		t.Fatal("want error when every unit fails")
	}
	var fatal *pipeline.FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("want *FatalError, got %T", err)
	}
	if !strings.Contains(fatal.Reason, "every unit") {
		t.Errorf("unexpected reason %q", fatal.Reason)
	}
}

func TestRun_SecondRunRejected(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(echoLLM(), &ttsmock.Provider{Segment: goodSegment()}, pipeline.Config{})
	if _, err := o.Run(context.Background(), "One."); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := o.Run(context.Background(), "Two."); err == nil {
		t.Fatal("second run on the same orchestrator must fail")
	}
}

func TestRun_Cancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := newOrchestrator(echoLLM(), &ttsmock.Provider{Segment: goodSegment()}, pipeline.Config{})
	_, err := o.Run(ctx, "One. Two. Three.")
	if err == nil {
		t.Fatal("want error for cancelled context")
	}
	var fatal *pipeline.FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("want *FatalError, got %T", err)
	}
	if o.State() != pipeline.StageFailed {
		t.Errorf("want StageFailed, got %v", o.State())
	}
}

func TestRun_EventsStreamAndClose(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(echoLLM(), &ttsmock.Provider{Segment: goodSegment()}, pipeline.Config{})

	if _, err := o.Run(context.Background(), "One. Two."); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The channel is buffered and closed by Run, so it can be drained after.
	stages := map[pipeline.Stage]bool{}
	unitEvents := 0
	for ev := range o.Events() {
		if ev.Index < 0 {
			stages[ev.Stage] = true
			continue
		}
		unitEvents++
	}

	for _, want := range []pipeline.Stage{
		pipeline.StageChunking,
		pipeline.StageCleaning,
		pipeline.StageSynthesizing,
		pipeline.StageAssembling,
		pipeline.StageDone,
	} {
		if !stages[want] {
			t.Errorf("missing stage transition event for %q", want)
		}
	}
	// One cleaning and one synthesis event per unit.
	if unitEvents != 4 {
		t.Errorf("want 4 unit events, got %d", unitEvents)
	}
}

func TestRun_WorkerBoundsRespected(t *testing.T) {
	t.Parallel()

	var mu chan struct{} = make(chan struct{}, 1) // capacity = allowed concurrency
	ttsP := &ttsmock.Provider{}
	ttsP.SynthesizeFn = func(context.Context, string, tts.VoiceReference, tts.SynthesisParams) (audio.Segment, error) {
		select {
		case mu <- struct{}{}:
		default:
			return audio.Segment{}, errors.New("concurrency bound exceeded")
		}
		time.Sleep(5 * time.Millisecond)
		<-mu
		return goodSegment(), nil
	}

	o := newOrchestrator(echoLLM(), ttsP, pipeline.Config{SynthWorkers: 1})
	res, err := o.Run(context.Background(), "One. Two. Three. Four.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, entry := range res.Manifest {
		if entry.SynthesisStatus != pipeline.StatusOK {
			t.Fatalf("unit %d: %q (%s) — the worker bound was violated",
				entry.Index, entry.SynthesisStatus, entry.SynthesisError)
		}
	}
}

func TestUnitError_And_FatalError(t *testing.T) {
	t.Parallel()

	base := errors.New("boom")
	uerr := &pipeline.UnitError{Index: 3, Stage: pipeline.StageSynthesizing, Err: base}
	if !errors.Is(uerr, base) {
		t.Error("UnitError should unwrap to its cause")
	}
	if !strings.Contains(uerr.Error(), "3") {
		t.Errorf("UnitError should name the unit, got %q", uerr.Error())
	}

	ferr := &pipeline.FatalError{Reason: "everything broke", Err: uerr}
	if !errors.Is(ferr, base) {
		t.Error("FatalError should unwrap through the chain")
	}
	if !strings.Contains(ferr.Error(), "everything broke") {
		t.Errorf("FatalError should carry its reason, got %q", ferr.Error())
	}
}
