package analysis_test

import (
	"context"
	"testing"

	"github.com/kmatsuda/textlens/internal/analysis"
	"github.com/kmatsuda/textlens/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegment(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"latin words", "hello world", []string{"hello", "world"}},
		{"punctuation splits", "one,two.three!", []string{"one", "two", "three"}},
		{"han runes are single tokens", "今天天气", []string{"今", "天", "天", "气"}},
		{"mixed scripts", "go语言rocks", []string{"go", "语", "言", "rocks"}},
		{"digits and underscores stay whole", "top_10 items", []string{"top_10", "items"}},
		{"apostrophes stay whole", "don't stop", []string{"don't", "stop"}},
		{"empty", "", nil},
		{"only separators", " .,! ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, analysis.Segment(tt.text))
		})
	}
}

func TestProcess_DefaultTaskIsTokenize(t *testing.T) {
	e := analysis.NewEngine()

	result, err := e.Process(context.Background(), models.AnalysisRequest{
		Text:           "hello hello world",
		KeepDuplicates: true,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "hello", "world"}, result[models.TaskTokenize])
}

func TestProcess_DedupeKeepsFirstOccurrence(t *testing.T) {
	e := analysis.NewEngine()

	result, err := e.Process(context.Background(), models.AnalysisRequest{
		Text: "b a b c a",
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, result[models.TaskTokenize])
}

func TestProcess_StopwordsExtendDefaults(t *testing.T) {
	e := analysis.NewEngine()

	// "的" is filtered by default, "cat" only via the request.
	result, err := e.Process(context.Background(), models.AnalysisRequest{
		Text:           "的 cat dog",
		Stopwords:      []string{"cat"},
		KeepDuplicates: true,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"dog"}, result[models.TaskTokenize])
}

func TestProcess_SkipTasksOmitsOutput(t *testing.T) {
	e := analysis.NewEngine()

	result, err := e.Process(context.Background(), models.AnalysisRequest{
		Text:      "hello world",
		Tasks:     []string{models.TaskTokenize, models.TaskPartOfSpeech},
		SkipTasks: []string{models.TaskPartOfSpeech},
	})

	require.NoError(t, err)
	assert.Contains(t, result, models.TaskTokenize)
	assert.NotContains(t, result, models.TaskPartOfSpeech)
}

func TestProcess_PartOfSpeechTags(t *testing.T) {
	e := analysis.NewEngine()

	result, err := e.Process(context.Background(), models.AnalysisRequest{
		Text:           "Tokyo 42 quickly running home",
		Tasks:          []string{models.TaskPartOfSpeech},
		KeepDuplicates: true,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"NR", "CD", "AD", "VV", "NN"}, result[models.TaskPartOfSpeech])
}

func TestProcess_EntitySpans(t *testing.T) {
	e := analysis.NewEngine()

	result, err := e.Process(context.Background(), models.AnalysisRequest{
		Text:           "visit New York then sleep",
		Tasks:          []string{models.TaskEntities},
		KeepDuplicates: true,
	})

	require.NoError(t, err)
	assert.Equal(t, []models.Entity{
		{Text: "New York", Label: "NP", Start: 1, End: 3},
	}, result[models.TaskEntities])
}

func TestProcess_EmptyText(t *testing.T) {
	e := analysis.NewEngine()

	_, err := e.Process(context.Background(), models.AnalysisRequest{Text: "   "})

	assert.ErrorIs(t, err, analysis.ErrEmptyText)
}

func TestProcess_CancelledContext(t *testing.T) {
	e := analysis.NewEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Process(ctx, models.AnalysisRequest{Text: "hello"})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestWordFrequency_CountsAndOrder(t *testing.T) {
	e := analysis.NewEngine()

	words, err := e.WordFrequency(context.Background(), models.FrequencyRequest{
		Text: "a a b",
	})

	require.NoError(t, err)
	assert.Equal(t, []models.WordCount{
		{Word: "a", Count: 2},
		{Word: "b", Count: 1},
	}, words)
}

func TestWordFrequency_TiesBreakByFirstSeen(t *testing.T) {
	e := analysis.NewEngine()

	words, err := e.WordFrequency(context.Background(), models.FrequencyRequest{
		Text: "pear kiwi pear kiwi plum",
	})

	require.NoError(t, err)
	assert.Equal(t, []models.WordCount{
		{Word: "pear", Count: 2},
		{Word: "kiwi", Count: 2},
		{Word: "plum", Count: 1},
	}, words)
}

func TestWordFrequency_MaxWordsCap(t *testing.T) {
	e := analysis.NewEngine()

	words, err := e.WordFrequency(context.Background(), models.FrequencyRequest{
		Text:     "x x y y z",
		MaxWords: 2,
	})

	require.NoError(t, err)
	require.Len(t, words, 2)
	assert.Equal(t, "x", words[0].Word)
	assert.Equal(t, "y", words[1].Word)
}

func TestValidateTasks(t *testing.T) {
	assert.NoError(t, analysis.ValidateTasks(nil, nil))
	assert.NoError(t, analysis.ValidateTasks([]string{"tok", "pos", "ner"}, []string{"pos"}))
	assert.ErrorIs(t, analysis.ValidateTasks([]string{"dep"}, nil), analysis.ErrUnknownTask)
	assert.ErrorIs(t, analysis.ValidateTasks(nil, []string{"con"}), analysis.ErrUnknownTask)
}
