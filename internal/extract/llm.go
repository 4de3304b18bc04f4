package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nolasoft/hoftrack/internal/model"
	"github.com/nolasoft/hoftrack/pkg/anthropic"
)

// Result is the outcome of one item in a strategy batch. Err non-nil means
// the strategy could not produce fields for that item.
type Result struct {
	Fields Fields
	Err    error
}

// Strategy extracts structured fields from a batch of raw name strings.
// Implementations return one Result per input, in input order.
type Strategy interface {
	Name() string
	ExtractBatch(ctx context.Context, texts []string) ([]Result, error)
}

const llmSystemPrompt = "You are a precise data extraction assistant. Return only valid JSON."

const llmPrompt = `Each line below is a raw name field from an eating-contest leaderboard. Some
names carry a trailing qualifier: a completion ordinal ("PHILLIP YERO, 2ND
TIME"), an age ("JILL SMITH 11 YEARS 5 MONTHS 21 DAYS"), or an elapsed time
("JOHN VALDESPINO 6 MINUTES 40 SECONDS").

For every input line, extract:
- clean_name: the name with the qualifier removed, uppercased
- notes: the exact qualifier fragment, or null if there is none
- age_days: total age in days computed as years*365 + months*30 + days, or null
- elapsed_time_seconds: total seconds computed as minutes*60 + seconds, or null
- completion_count: the ordinal number from "<N>TH TIME" qualifiers, or null

Return ONLY a JSON array with exactly one object per input line, in input
order:
[{"clean_name": "...", "notes": null, "age_days": null, "elapsed_time_seconds": null, "completion_count": null}]

Rules:
1. At most one of age_days, elapsed_time_seconds, completion_count may be non-null.
2. Use null for fields not found. Never guess.
3. Return ONLY the JSON array, no other text.

Input lines:
%s`

// LLMConfig tunes the LLM extraction strategy.
type LLMConfig struct {
	Model             string
	MaxTokens         int64
	BatchSize         int
	MaxConcurrent     int
	RequestsPerSecond float64
}

// LLMExtractor sends raw name batches to the Anthropic API under a fixed
// output schema. Items whose responses fail schema validation are reported
// failed; the caller owns fallback. No retries here.
type LLMExtractor struct {
	client  anthropic.Client
	cfg     LLMConfig
	limiter *rate.Limiter
}

// NewLLMExtractor creates an LLMExtractor. Zero config values get defaults.
func NewLLMExtractor(client anthropic.Client, cfg LLMConfig) *LLMExtractor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 40
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4000
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	return &LLMExtractor{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
}

func (l *LLMExtractor) Name() string { return "llm" }

// ExtractBatch splits texts into chunks, sends them concurrently, and maps
// per-item results back into input order. Chunk-level failures mark every
// item in the chunk as failed; they never fail the whole call.
func (l *LLMExtractor) ExtractBatch(ctx context.Context, texts []string) ([]Result, error) {
	results := make([]Result, len(texts))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.MaxConcurrent)

	for start := 0; start < len(texts); start += l.cfg.BatchSize {
		end := min(start+l.cfg.BatchSize, len(texts))
		chunk := texts[start:end]
		offset := start

		g.Go(func() error {
			fields, err := l.extractChunk(gCtx, chunk)
			if err != nil {
				zap.L().Debug("llm: chunk extraction failed",
					zap.Int("offset", offset),
					zap.Int("size", len(chunk)),
					zap.Error(err),
				)
				for i := range chunk {
					results[offset+i] = Result{Err: err}
				}
				return nil
			}
			for i := range chunk {
				results[offset+i] = fields[i]
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "llm: extract batch")
	}
	return results, nil
}

// llmItem is the fixed output schema for one extracted name. Typed fields
// reject responses that put a string where an integer belongs.
type llmItem struct {
	CleanName       string  `json:"clean_name"`
	Notes           *string `json:"notes"`
	AgeDays         *int    `json:"age_days"`
	ElapsedTimeSecs *int    `json:"elapsed_time_seconds"`
	CompletionCount *int    `json:"completion_count"`
}

func (l *LLMExtractor) extractChunk(ctx context.Context, chunk []string) ([]Result, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "llm: rate limit wait")
	}

	var lines strings.Builder
	for i, t := range chunk {
		fmt.Fprintf(&lines, "%d. %s\n", i+1, t)
	}

	resp, err := l.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     l.cfg.Model,
		MaxTokens: l.cfg.MaxTokens,
		System:    llmSystemPrompt,
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(llmPrompt, lines.String())},
		},
	})
	if err != nil {
		return nil, err
	}
	resp.Usage.LogCost(l.cfg.Model, "extract")

	var rawItems []json.RawMessage
	if err := json.Unmarshal([]byte(cleanJSONArray(resp.Text())), &rawItems); err != nil {
		return nil, eris.Wrap(err, "llm: parse response array")
	}
	if len(rawItems) != len(chunk) {
		return nil, eris.Errorf("llm: response has %d items, want %d", len(rawItems), len(chunk))
	}

	out := make([]Result, len(chunk))
	for i, raw := range rawItems {
		out[i] = decodeItem(raw)
	}
	return out, nil
}

// decodeItem validates one response object against the schema and the
// at-most-one-numeric-field invariant. Violations fail the item, never get
// coerced.
func decodeItem(raw json.RawMessage) Result {
	var item llmItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return Result{Err: eris.Wrap(err, "llm: item schema violation")}
	}
	if strings.TrimSpace(item.CleanName) == "" {
		return Result{Err: eris.New("llm: item missing clean_name")}
	}

	f := Fields{
		CleanName: strings.ToUpper(strings.TrimSpace(item.CleanName)),
		Structured: model.Structured{
			Notes:           item.Notes,
			AgeDays:         item.AgeDays,
			ElapsedTimeSecs: item.ElapsedTimeSecs,
			CompletionCount: item.CompletionCount,
		},
	}
	if f.NumericCount() > 1 {
		return Result{Err: eris.New("llm: more than one numeric field set")}
	}
	if item.CompletionCount != nil && *item.CompletionCount < 1 {
		return Result{Err: eris.New("llm: completion_count below 1")}
	}
	return Result{Fields: f}
}

// cleanJSONArray strips markdown code fences and any prose around the JSON
// array in an LLM response.
func cleanJSONArray(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
