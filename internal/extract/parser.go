package extract

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nolasoft/hoftrack/internal/model"
)

// PatternStrategy wraps the deterministic pattern extractor as a Strategy.
// It never fails and terminates every strategy chain.
type PatternStrategy struct{}

func (PatternStrategy) Name() string { return "pattern" }

func (PatternStrategy) ExtractBatch(_ context.Context, texts []string) ([]Result, error) {
	out := make([]Result, len(texts))
	for i, t := range texts {
		out[i] = Result{Fields: Pattern(t)}
	}
	return out, nil
}

// Parser resolves each raw entry through an ordered list of strategies.
// The list is fixed per Parser; there is no shared per-call state, so every
// Parse call resolves independently. The last strategy must be total.
type Parser struct {
	strategies []Strategy
	timeout    time.Duration
}

// NewParser creates a Parser over the given strategies, tried in order.
// timeout bounds each non-final strategy attempt; the final strategy runs
// without one since it must not block.
func NewParser(timeout time.Duration, strategies ...Strategy) *Parser {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Parser{strategies: strategies, timeout: timeout}
}

// NewDefaultParser builds the standard chain: LLM first when a client is
// configured, pattern fallback always.
func NewDefaultParser(llm *LLMExtractor, timeout time.Duration) *Parser {
	if llm == nil {
		return NewParser(timeout, PatternStrategy{})
	}
	return NewParser(timeout, llm, PatternStrategy{})
}

// Parse produces exactly one ParsedEntry per RawEntry. An entry whose item
// failed under one strategy falls through to the next; the pattern strategy
// at the end of the chain guarantees a result for everything.
func (p *Parser) Parse(ctx context.Context, raws []model.RawEntry) []model.ParsedEntry {
	if len(raws) == 0 {
		return nil
	}

	texts := make([]string, len(raws))
	for i, r := range raws {
		texts[i] = r.Name
	}

	resolved := make([]Result, len(raws))
	source := make([]string, len(raws))
	pending := make([]int, len(raws))
	for i := range pending {
		pending[i] = i
	}

	for si, s := range p.strategies {
		if len(pending) == 0 {
			break
		}

		attempt := make([]string, len(pending))
		for i, idx := range pending {
			attempt[i] = texts[idx]
		}

		sctx := ctx
		var cancel context.CancelFunc
		if si < len(p.strategies)-1 {
			sctx, cancel = context.WithTimeout(ctx, p.timeout)
		}
		results, err := s.ExtractBatch(sctx, attempt)
		if cancel != nil {
			cancel()
		}

		if err != nil || len(results) != len(attempt) {
			zap.L().Debug("parse: strategy failed, falling back",
				zap.String("strategy", s.Name()),
				zap.Int("entries", len(attempt)),
				zap.Error(err),
			)
			continue
		}

		var remaining []int
		for i, idx := range pending {
			r := results[i]
			if r.Err != nil || r.Fields.NumericCount() > 1 {
				remaining = append(remaining, idx)
				continue
			}
			resolved[idx] = r
			source[idx] = s.Name()
		}
		if fell := len(remaining); fell > 0 && si < len(p.strategies)-1 {
			zap.L().Debug("parse: items falling back to next strategy",
				zap.String("strategy", s.Name()),
				zap.Int("items", fell),
			)
		}
		pending = remaining
	}

	// The final strategy is total, so pending is empty here for any chain
	// ending in PatternStrategy.

	out := make([]model.ParsedEntry, len(raws))
	for i, r := range raws {
		f := resolved[i].Fields
		out[i] = model.ParsedEntry{
			ParticipantNumber: r.ParticipantNumber,
			Name:              f.CleanName,
			DateStr:           r.Date,
			ParsedDate:        model.ParseLeaderboardDate(r.Date),
			Structured:        f.Structured,
			Source:            source[i],
		}
	}
	return out
}
