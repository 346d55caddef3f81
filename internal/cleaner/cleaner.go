// Package cleaner rewrites text units into speech-friendly form using a local
// language model.
//
// Each unit is sent as one chat completion: a fixed system instruction plus
// the unit's raw text as the user turn. The reply is taken from the backend's
// structured assistant message — the chat template's own turn boundaries —
// never recovered by scanning the transcript for a role name, so replies that
// legitimately contain words like "assistant" pass through intact.
//
// Cleaning failures are always soft. An empty reply or a failed invocation
// (after one retry with a reduced output budget) falls back to the unit's raw
// text and records the failure; the pipeline carries on with the next unit.
package cleaner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/voxdoc/voxdoc/internal/chunker"
	"github.com/voxdoc/voxdoc/pkg/provider/llm"
)

// SystemPrompt is the fixed cleaning instruction sent with every unit.
const SystemPrompt = "You rewrite text so it can be read aloud naturally. " +
	"Expand abbreviations into full words, spell out numerals, fractions and symbols, " +
	"and remove layout artifacts such as page headers, footnote markers and broken hyphenation. " +
	"Do not summarise, reorder or omit content. Reply with the rewritten text only."

const (
	// defaultTemperature keeps the rewrite close to deterministic; cleaning
	// is a transcription task, not a creative one.
	defaultTemperature = 0.3

	// outputBudgetFactor sizes the completion budget relative to the input:
	// spelled-out numerals and expanded abbreviations grow text, but never by
	// more than about 3x in practice.
	outputBudgetFactor = 3

	// minOutputTokens floors the completion budget for very short units.
	minOutputTokens = 64

	// retryBudgetDivisor shrinks the output budget on the single retry after
	// an invocation failure, giving a smaller request a chance to succeed on
	// a memory-pressured model.
	retryBudgetDivisor = 2
)

// Status describes how a unit's cleaned text was produced.
type Status string

const (
	// StatusCleaned means the model reply was used.
	StatusCleaned Status = "cleaned"

	// StatusFellBack means the raw text was used because cleaning failed or
	// produced an empty reply.
	StatusFellBack Status = "fell_back"
)

// CleanedUnit is the cleaner's output for one text unit.
type CleanedUnit struct {
	// Index is inherited unchanged from the source TextUnit.
	Index int

	// Text is the speech-ready text: the model reply, or the raw text when
	// Status is StatusFellBack.
	Text string

	// Status records whether cleaning succeeded.
	Status Status

	// Err holds the failure that caused a fallback, nil otherwise. An empty
	// reply falls back with a nil Err.
	Err error
}

// Option configures a Cleaner during construction.
type Option func(*Cleaner)

// WithSystemPrompt overrides the default cleaning instruction.
func WithSystemPrompt(prompt string) Option {
	return func(c *Cleaner) { c.systemPrompt = prompt }
}

// WithTemperature overrides the sampling temperature used for cleaning.
func WithTemperature(t float64) Option {
	return func(c *Cleaner) { c.temperature = t }
}

// Cleaner sends text units through an LLM provider. It is safe for concurrent
// use; the caller bounds how many Clean calls run at once against the shared
// model.
type Cleaner struct {
	provider     llm.Provider
	systemPrompt string
	temperature  float64
	log          *slog.Logger
}

// New constructs a Cleaner backed by the given provider. logger may be nil,
// in which case the default slog logger is used.
func New(provider llm.Provider, logger *slog.Logger, opts ...Option) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cleaner{
		provider:     provider,
		systemPrompt: SystemPrompt,
		temperature:  defaultTemperature,
		log:          logger,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Clean rewrites unit for speech. It never returns an error: all failures
// degrade to the raw text with Status set to StatusFellBack and the cause
// recorded in Err. Context cancellation also falls back, so an aborted run
// still yields a complete, well-ordered unit sequence.
func (c *Cleaner) Clean(ctx context.Context, unit chunker.TextUnit) CleanedUnit {
	req := llm.CompletionRequest{
		SystemPrompt: c.systemPrompt,
		Messages: []llm.Message{
			{Role: "user", Content: unit.Text},
		},
		Temperature: c.temperature,
		MaxTokens:   c.outputBudget(unit.Text),
	}

	resp, err := c.provider.Complete(ctx, req)
	if err != nil {
		// One retry with a reduced output budget before giving up on the unit.
		c.log.Warn("cleaning failed, retrying with reduced budget",
			"unit", unit.Index, "err", err)
		req.MaxTokens = max(req.MaxTokens/retryBudgetDivisor, minOutputTokens)
		resp, err = c.provider.Complete(ctx, req)
	}
	if err != nil {
		c.log.Warn("cleaning failed, falling back to raw text",
			"unit", unit.Index, "err", err)
		return CleanedUnit{
			Index:  unit.Index,
			Text:   unit.Text,
			Status: StatusFellBack,
			Err:    fmt.Errorf("clean unit %d: %w", unit.Index, err),
		}
	}

	cleaned := strings.TrimSpace(resp.Content)
	if cleaned == "" {
		c.log.Warn("model returned empty reply, falling back to raw text",
			"unit", unit.Index)
		return CleanedUnit{
			Index:  unit.Index,
			Text:   unit.Text,
			Status: StatusFellBack,
		}
	}

	return CleanedUnit{
		Index:  unit.Index,
		Text:   cleaned,
		Status: StatusCleaned,
	}
}

// outputBudget estimates the completion token budget for the given input.
func (c *Cleaner) outputBudget(text string) int {
	n, err := c.provider.CountTokens([]llm.Message{{Role: "user", Content: text}})
	if err != nil || n <= 0 {
		n = len(text) / 4
	}
	return max(n*outputBudgetFactor, minOutputTokens)
}
