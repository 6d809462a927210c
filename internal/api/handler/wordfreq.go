package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/kmatsuda/textlens/internal/api/response"
	"github.com/kmatsuda/textlens/internal/cache"
	"github.com/kmatsuda/textlens/internal/pool"
	"github.com/kmatsuda/textlens/internal/store"
	"github.com/kmatsuda/textlens/pkg/models"
)

// frequencyCacheTTL bounds how long a cached word-frequency result is served
// before the engine recomputes it.
const frequencyCacheTTL = 5 * time.Minute

type wordFrequencyRequest struct {
	Text     string          `json:"text"`
	MaxWords *int            `json:"max_words"`
	Stopword json.RawMessage `json:"stopword"`
}

type wordFrequencyResponse struct {
	WordFrequency []models.WordCount `json:"word_frequency"`
}

// NewWordFrequencyHandler returns the handler for POST /word-frequency.
// Results are cached by request content; a cache hit answers without
// consuming a worker slot but still counts against the token's usage.
func NewWordFrequencyHandler(jobs Submitter, st store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req wordFrequencyRequest
		if msg := decodeBody(r, &req); msg != "" {
			response.Error(w, http.StatusBadRequest, msg)
			return
		}
		if req.Text == "" {
			response.Error(w, http.StatusBadRequest, `Missing "text" parameter`)
			return
		}
		maxWords := 100
		if req.MaxWords != nil {
			if *req.MaxWords < 1 {
				response.Error(w, http.StatusBadRequest, "max_words must be a positive integer")
				return
			}
			maxWords = *req.MaxWords
		}
		stopwords, err := parseStopword(req.Stopword)
		if err != nil {
			response.Error(w, http.StatusBadRequest, err.Error())
			return
		}

		key := cache.FrequencyKey(cache.FrequencyRequestHash(req.Text, maxWords, stopwords))
		if words, ok := cachedFrequency(r, c, key); ok {
			if !recordUsage(w, r, st, req.Text) {
				return
			}
			response.OK(w, wordFrequencyResponse{WordFrequency: words})
			return
		}

		handle := jobs.Submit(pool.Job{
			ID:   uuid.New(),
			Kind: pool.KindWordFrequency,
			Frequency: models.FrequencyRequest{
				Text:      req.Text,
				MaxWords:  maxWords,
				Stopwords: stopwords,
			},
		})
		out, ok := resolve(w, r, handle)
		if !ok {
			return
		}

		words := out.Words
		if words == nil {
			words = []models.WordCount{}
		}
		storeFrequency(r, c, key, words)

		if !recordUsage(w, r, st, req.Text) {
			return
		}
		response.OK(w, wordFrequencyResponse{WordFrequency: words})
	}
}

// cachedFrequency is a best-effort lookup; any cache failure means a miss.
func cachedFrequency(r *http.Request, c cache.Cache, key string) ([]models.WordCount, bool) {
	data, found, err := c.Get(r.Context(), key)
	if err != nil {
		slog.Warn("word-frequency cache lookup failed", "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	var words []models.WordCount
	if err := json.Unmarshal(data, &words); err != nil {
		slog.Warn("discarding undecodable word-frequency cache entry", "key", key)
		return nil, false
	}
	if words == nil {
		words = []models.WordCount{}
	}
	return words, true
}

func storeFrequency(r *http.Request, c cache.Cache, key string, words []models.WordCount) {
	data, err := json.Marshal(words)
	if err != nil {
		return
	}
	if err := c.Set(r.Context(), key, data, frequencyCacheTTL); err != nil {
		slog.Warn("word-frequency cache store failed", "error", err)
	}
}
