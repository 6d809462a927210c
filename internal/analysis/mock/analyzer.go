package mock

import (
	"context"

	"github.com/kmatsuda/textlens/pkg/models"
)

// Analyzer satisfies models.Analyzer for testing.
type Analyzer struct {
	Name_             string
	ProcessFunc       func(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error)
	WordFrequencyFunc func(ctx context.Context, req models.FrequencyRequest) ([]models.WordCount, error)
}

func (m *Analyzer) Name() string { return m.Name_ }

func (m *Analyzer) Process(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error) {
	if m.ProcessFunc != nil {
		return m.ProcessFunc(ctx, req)
	}
	return models.AnalysisResult{}, nil
}

func (m *Analyzer) WordFrequency(ctx context.Context, req models.FrequencyRequest) ([]models.WordCount, error) {
	if m.WordFrequencyFunc != nil {
		return m.WordFrequencyFunc(ctx, req)
	}
	return nil, nil
}

// New returns an Analyzer with canned default responses.
func New() *Analyzer {
	return &Analyzer{
		Name_: "mock",
		ProcessFunc: func(_ context.Context, req models.AnalysisRequest) (models.AnalysisResult, error) {
			return models.AnalysisResult{models.TaskTokenize: []string{req.Text}}, nil
		},
		WordFrequencyFunc: func(_ context.Context, req models.FrequencyRequest) ([]models.WordCount, error) {
			return []models.WordCount{{Word: req.Text, Count: 1}}, nil
		},
	}
}

// NewFailing returns an Analyzer that always returns the given error.
func NewFailing(err error) *Analyzer {
	return &Analyzer{
		Name_: "mock-failing",
		ProcessFunc: func(_ context.Context, _ models.AnalysisRequest) (models.AnalysisResult, error) {
			return nil, err
		},
		WordFrequencyFunc: func(_ context.Context, _ models.FrequencyRequest) ([]models.WordCount, error) {
			return nil, err
		},
	}
}

// NewBlocking returns an Analyzer that blocks until its context is cancelled,
// simulating a backend call that overruns the execution deadline.
func NewBlocking() *Analyzer {
	return &Analyzer{
		Name_: "mock-blocking",
		ProcessFunc: func(ctx context.Context, _ models.AnalysisRequest) (models.AnalysisResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
		WordFrequencyFunc: func(ctx context.Context, _ models.FrequencyRequest) ([]models.WordCount, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
}

// Compile-time check that Analyzer implements models.Analyzer.
var _ models.Analyzer = (*Analyzer)(nil)
