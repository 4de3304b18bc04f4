package extract

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nolasoft/hoftrack/pkg/anthropic"
)

// mockClient returns canned responses, or an error, per CreateMessage call.
type mockClient struct {
	responses []string
	err       error
	calls     int
}

func (m *mockClient) CreateMessage(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	text := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}, nil
}

func itemsJSON(t *testing.T, items []llmItem) string {
	t.Helper()
	b, err := json.Marshal(items)
	require.NoError(t, err)
	return string(b)
}

func TestLLMExtractor_Success(t *testing.T) {
	two := 2
	note := "2ND TIME"
	client := &mockClient{responses: []string{itemsJSON(t, []llmItem{
		{CleanName: "PHILLIP YERO", Notes: &note, CompletionCount: &two},
		{CleanName: "JANE SMITH"},
	})}}

	ex := NewLLMExtractor(client, LLMConfig{Model: "claude-haiku-4-5-20251001"})
	results, err := ex.ExtractBatch(context.Background(), []string{"PHILLIP YERO, 2ND TIME", "JANE SMITH"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	require.NoError(t, results[0].Err)
	assert.Equal(t, "PHILLIP YERO", results[0].Fields.CleanName)
	require.NotNil(t, results[0].Fields.CompletionCount)
	assert.Equal(t, 2, *results[0].Fields.CompletionCount)

	require.NoError(t, results[1].Err)
	assert.Equal(t, "JANE SMITH", results[1].Fields.CleanName)
	assert.Equal(t, 0, results[1].Fields.NumericCount())
}

func TestLLMExtractor_FencedResponse(t *testing.T) {
	client := &mockClient{responses: []string{
		"```json\n[{\"clean_name\": \"JANE SMITH\", \"notes\": null, \"age_days\": null, \"elapsed_time_seconds\": null, \"completion_count\": null}]\n```",
	}}

	ex := NewLLMExtractor(client, LLMConfig{Model: "claude-haiku-4-5-20251001"})
	results, err := ex.ExtractBatch(context.Background(), []string{"JANE SMITH"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, "JANE SMITH", results[0].Fields.CleanName)
}

func TestLLMExtractor_TransportErrorFailsAllItems(t *testing.T) {
	client := &mockClient{err: eris.New("connection refused")}

	ex := NewLLMExtractor(client, LLMConfig{})
	results, err := ex.ExtractBatch(context.Background(), []string{"A", "B", "C"})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Error(t, r.Err)
	}
}

func TestLLMExtractor_WrongItemCountFailsChunk(t *testing.T) {
	client := &mockClient{responses: []string{itemsJSON(t, []llmItem{
		{CleanName: "ONLY ONE"},
	})}}

	ex := NewLLMExtractor(client, LLMConfig{})
	results, err := ex.ExtractBatch(context.Background(), []string{"A", "B"})
	require.NoError(t, err)
	for _, r := range results {
		assert.Error(t, r.Err)
	}
}

func TestLLMExtractor_NonJSONResponseFailsChunk(t *testing.T) {
	client := &mockClient{responses: []string{"I could not extract anything, sorry."}}

	ex := NewLLMExtractor(client, LLMConfig{})
	results, err := ex.ExtractBatch(context.Background(), []string{"A"})
	require.NoError(t, err)
	assert.Error(t, results[0].Err)
}

func TestLLMExtractor_SchemaViolationFailsItemOnly(t *testing.T) {
	// Second item has a string where an integer belongs; only it fails.
	resp := `[
		{"clean_name": "GOOD ONE", "notes": null, "age_days": null, "elapsed_time_seconds": null, "completion_count": null},
		{"clean_name": "BAD ONE", "notes": null, "age_days": "eleven", "elapsed_time_seconds": null, "completion_count": null}
	]`
	client := &mockClient{responses: []string{resp}}

	ex := NewLLMExtractor(client, LLMConfig{})
	results, err := ex.ExtractBatch(context.Background(), []string{"A", "B"})
	require.NoError(t, err)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
}

func TestLLMExtractor_InvariantViolationFailsItem(t *testing.T) {
	age := 4186
	secs := 400
	client := &mockClient{responses: []string{itemsJSON(t, []llmItem{
		{CleanName: "TWO FIELDS", AgeDays: &age, ElapsedTimeSecs: &secs},
	})}}

	ex := NewLLMExtractor(client, LLMConfig{})
	results, err := ex.ExtractBatch(context.Background(), []string{"TWO FIELDS 11 YEARS 6 MINUTES"})
	require.NoError(t, err)
	assert.Error(t, results[0].Err)
}

func TestLLMExtractor_ZeroCompletionCountFailsItem(t *testing.T) {
	zero := 0
	client := &mockClient{responses: []string{itemsJSON(t, []llmItem{
		{CleanName: "GHOST", CompletionCount: &zero},
	})}}

	ex := NewLLMExtractor(client, LLMConfig{})
	results, err := ex.ExtractBatch(context.Background(), []string{"GHOST, 0TH TIME"})
	require.NoError(t, err)
	assert.Error(t, results[0].Err)
}

func TestLLMExtractor_MissingCleanNameFailsItem(t *testing.T) {
	client := &mockClient{responses: []string{`[{"notes": null}]`}}

	ex := NewLLMExtractor(client, LLMConfig{})
	results, err := ex.ExtractBatch(context.Background(), []string{"A"})
	require.NoError(t, err)
	assert.Error(t, results[0].Err)
}

func TestCleanJSONArray(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare array", `[1,2]`, `[1,2]`},
		{"json fence", "```json\n[1,2]\n```", `[1,2]`},
		{"plain fence", "```\n[1,2]\n```", `[1,2]`},
		{"surrounding prose", "Here you go:\n[1,2]\nHope that helps!", `[1,2]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSONArray(tt.input))
		})
	}
}
