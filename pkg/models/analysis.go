// Package models contains shared data models used across the textlens codebase.
package models

import "context"

// Task names understood by the analysis engine. Requests naming any other
// task are rejected before a worker slot is consumed.
const (
	TaskTokenize     = "tok"
	TaskPartOfSpeech = "pos"
	TaskEntities     = "ner"
)

var knownTasks = map[string]bool{
	TaskTokenize:     true,
	TaskPartOfSpeech: true,
	TaskEntities:     true,
}

// KnownTask reports whether name belongs to the fixed task vocabulary.
func KnownTask(name string) bool {
	return knownTasks[name]
}

// Analyzer is the interface to the text-analysis engine. The admission
// controller invokes it synchronously per job; implementations should honor
// context cancellation but are not required to — abandoned calls are
// discarded by the caller.
type Analyzer interface {
	// Process runs the requested tasks over the input text and returns a
	// task-name -> result map.
	Process(ctx context.Context, req AnalysisRequest) (AnalysisResult, error)
	// WordFrequency counts word occurrences in the input text, most
	// frequent first, ties broken by first appearance.
	WordFrequency(ctx context.Context, req FrequencyRequest) ([]WordCount, error)
	// Name returns the engine identifier (e.g., "builtin").
	Name() string
}

// AnalysisRequest is the payload of a text-processing job.
type AnalysisRequest struct {
	Text           string
	Tasks          []string // empty means default tokenization
	SkipTasks      []string
	Language       string
	Stopwords      []string // extends the default stopword list
	KeepDuplicates bool     // false drops repeated tokens, keeping first occurrence
}

// AnalysisResult maps a task name to its output.
type AnalysisResult map[string]any

// FrequencyRequest is the payload of a word-frequency job.
type FrequencyRequest struct {
	Text      string
	MaxWords  int // cap on returned words; non-positive means the default of 100
	Stopwords []string
}

// WordCount is one entry of a word-frequency result.
type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// Entity is a span produced by the "ner" task.
type Entity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}
