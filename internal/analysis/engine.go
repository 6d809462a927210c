// Package analysis implements the built-in text-analysis engine behind the
// models.Analyzer interface: Unicode-aware segmentation, stopword filtering,
// heuristic part-of-speech tags, and word-frequency counting.
package analysis

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/kmatsuda/textlens/pkg/models"
)

const defaultMaxWords = 100

// Engine is the built-in analyzer. It is stateless and safe for concurrent
// use by any number of pool workers.
type Engine struct{}

// NewEngine returns the built-in analysis engine.
func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) Name() string { return "builtin" }

// Process runs the requested tasks over the input text. An empty task list
// means default tokenization. Task names must be validated with
// ValidateTasks before calling.
func (e *Engine) Process(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}

	stop := stopwordSet(req.Stopwords)
	tokens := filterTokens(Segment(req.Text), stop)
	if !req.KeepDuplicates {
		tokens = dedupe(tokens)
	}

	tasks := req.Tasks
	if len(tasks) == 0 {
		tasks = []string{models.TaskTokenize}
	}
	skip := make(map[string]bool, len(req.SkipTasks))
	for _, name := range req.SkipTasks {
		skip[name] = true
	}

	result := make(models.AnalysisResult, len(tasks))
	for _, task := range tasks {
		if skip[task] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch task {
		case models.TaskTokenize:
			result[models.TaskTokenize] = tokens
		case models.TaskPartOfSpeech:
			result[models.TaskPartOfSpeech] = tagTokens(tokens)
		case models.TaskEntities:
			result[models.TaskEntities] = findEntities(tokens)
		}
	}
	return result, nil
}

// WordFrequency counts token occurrences after stopword filtering. Output is
// ordered by descending count; ties keep first-seen order.
func (e *Engine) WordFrequency(ctx context.Context, req models.FrequencyRequest) ([]models.WordCount, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stop := stopwordSet(req.Stopwords)
	tokens := filterTokens(Segment(req.Text), stop)

	counts := make(map[string]int, len(tokens))
	firstSeen := make(map[string]int, len(tokens))
	for i, tok := range tokens {
		if _, ok := counts[tok]; !ok {
			firstSeen[tok] = i
		}
		counts[tok]++
	}

	words := make([]models.WordCount, 0, len(counts))
	for word, count := range counts {
		words = append(words, models.WordCount{Word: word, Count: count})
	}
	sort.SliceStable(words, func(i, j int) bool {
		if words[i].Count != words[j].Count {
			return words[i].Count > words[j].Count
		}
		return firstSeen[words[i].Word] < firstSeen[words[j].Word]
	})

	max := req.MaxWords
	if max <= 0 {
		max = defaultMaxWords
	}
	if len(words) > max {
		words = words[:max]
	}
	return words, nil
}

// Segment splits text into tokens. Han characters become single-rune tokens;
// runs of other letters, digits, and connecting marks stay whole words.
// Everything else is a boundary. Segmentation is script-driven, so the
// request's language hint does not change the output here.
func Segment(text string) []string {
	var tokens []string
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '\'':
			word.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

func filterTokens(tokens []string, stop map[string]struct{}) []string {
	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, drop := stop[tok]; drop {
			continue
		}
		kept = append(kept, tok)
	}
	return kept
}

func dedupe(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

// tagTokens assigns a coarse part-of-speech tag per token. The tags follow
// CTB conventions: CD numbers, NR proper nouns, VV verbs, AD adverbs, NN
// everything else.
func tagTokens(tokens []string) []string {
	tags := make([]string, len(tokens))
	for i, tok := range tokens {
		tags[i] = tagToken(tok)
	}
	return tags
}

func tagToken(tok string) string {
	runes := []rune(tok)
	allDigits := true
	for _, r := range runes {
		if !unicode.IsDigit(r) {
			allDigits = false
			break
		}
	}
	switch {
	case allDigits:
		return "CD"
	case unicode.IsUpper(runes[0]):
		return "NR"
	case strings.HasSuffix(tok, "ly"):
		return "AD"
	case strings.HasSuffix(tok, "ing") || strings.HasSuffix(tok, "ed"):
		return "VV"
	default:
		return "NN"
	}
}

// findEntities merges runs of capitalized Latin tokens into entity spans.
// Offsets are token indices over the filtered token slice.
func findEntities(tokens []string) []models.Entity {
	entities := []models.Entity{}
	start := -1
	for i, tok := range tokens {
		if isCapitalized(tok) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			entities = append(entities, spanEntity(tokens, start, i))
			start = -1
		}
	}
	if start >= 0 {
		entities = append(entities, spanEntity(tokens, start, len(tokens)))
	}
	return entities
}

func spanEntity(tokens []string, start, end int) models.Entity {
	return models.Entity{
		Text:  strings.Join(tokens[start:end], " "),
		Label: "NP",
		Start: start,
		End:   end,
	}
}

func isCapitalized(tok string) bool {
	runes := []rune(tok)
	return len(runes) > 0 && unicode.IsUpper(runes[0]) && unicode.IsLetter(runes[0])
}

var _ models.Analyzer = (*Engine)(nil)
