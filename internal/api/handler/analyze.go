// Package handler implements the HTTP endpoints: text analysis routes that go
// through the worker pool, and admin token-management routes that hit the
// store directly.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/kmatsuda/textlens/internal/analysis"
	mw "github.com/kmatsuda/textlens/internal/api/middleware"
	"github.com/kmatsuda/textlens/internal/api/response"
	"github.com/kmatsuda/textlens/internal/pool"
	"github.com/kmatsuda/textlens/internal/store"
	"github.com/kmatsuda/textlens/pkg/models"
)

// Submitter admits analysis jobs for bounded execution. Satisfied by
// *pool.Pool; tests substitute an inline implementation.
type Submitter interface {
	Submit(job pool.Job) *pool.Handle
}

type tokenizeRequest struct {
	Text         string          `json:"text"`
	Tasks        []string        `json:"tasks"`
	SkipTasks    []string        `json:"skip_tasks"`
	Language     string          `json:"language"`
	CanDuplicate bool            `json:"can_duplicate"`
	Stopword     json.RawMessage `json:"stopword"`
}

// NewTokenizeHandler returns the handler for POST /tokenize. Validation
// happens before submission so malformed requests never consume a worker slot.
func NewTokenizeHandler(jobs Submitter, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tokenizeRequest
		if msg := decodeBody(r, &req); msg != "" {
			response.Error(w, http.StatusBadRequest, msg)
			return
		}
		if req.Text == "" {
			response.Error(w, http.StatusBadRequest, `Missing "text" parameter`)
			return
		}
		stopwords, err := parseStopword(req.Stopword)
		if err != nil {
			response.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := analysis.ValidateTasks(req.Tasks, req.SkipTasks); err != nil {
			response.Error(w, http.StatusBadRequest, err.Error())
			return
		}

		handle := jobs.Submit(pool.Job{
			ID:   uuid.New(),
			Kind: pool.KindProcess,
			Analysis: models.AnalysisRequest{
				Text:           req.Text,
				Tasks:          req.Tasks,
				SkipTasks:      req.SkipTasks,
				Language:       req.Language,
				Stopwords:      stopwords,
				KeepDuplicates: req.CanDuplicate,
			},
		})
		out, ok := resolve(w, r, handle)
		if !ok {
			return
		}
		if !recordUsage(w, r, st, req.Text) {
			return
		}
		response.OK(w, out.Result)
	}
}

// NewRootHandler returns the handler for GET /. Without a text query
// parameter it serves the API documentation to anyone; with one it behaves
// like /tokenize driven by query parameters, and requires authentication.
func NewRootHandler(jobs Submitter, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		text := strings.TrimSpace(r.URL.Query().Get("text"))
		if text == "" {
			response.OK(w, apiDocs)
			return
		}

		if !mw.GetIdentity(r).Authenticated() {
			response.Error(w, http.StatusUnauthorized, "Unauthorized: Invalid or missing Bearer token")
			return
		}

		tasks := splitCSV(r.URL.Query().Get("tasks"))
		skipTasks := splitCSV(r.URL.Query().Get("skip_tasks"))
		if err := analysis.ValidateTasks(tasks, skipTasks); err != nil {
			response.Error(w, http.StatusBadRequest, err.Error())
			return
		}

		handle := jobs.Submit(pool.Job{
			ID:   uuid.New(),
			Kind: pool.KindProcess,
			Analysis: models.AnalysisRequest{
				Text:           text,
				Tasks:          tasks,
				SkipTasks:      skipTasks,
				Language:       r.URL.Query().Get("language"),
				KeepDuplicates: true,
			},
		})
		out, ok := resolve(w, r, handle)
		if !ok {
			return
		}
		if !recordUsage(w, r, st, text) {
			return
		}
		response.OK(w, out.Result)
	}
}

var apiDocs = map[string]any{
	"message": "textlens RESTful API server",
	"endpoints": map[string]string{
		"GET /":                "API documentation, or text processing via query parameters",
		"POST /tokenize":       "Process text (supports stopword filtering)",
		"POST /word-frequency": "Count word frequencies (supports stopword filtering)",
		"POST /token/request":  "Issue a token for a user (admin only)",
		"POST /token/delete":   "Delete a token (admin only)",
		"GET|POST /stats":      "Usage statistics for all tokens (admin only)",
	},
	"parameters": map[string]string{
		"text":       "Text to process (required)",
		"tasks":      "Tasks to run: tok, pos, ner (optional)",
		"skip_tasks": "Tasks to skip (optional)",
		"language":   "Language of the text (optional)",
		"stopword":   "Custom stopwords extending the default list (optional)",
	},
	"authentication": "Bearer token required in Authorization header",
}

// decodeBody parses the JSON request body into v. It returns an error message
// for the client, or "" on success.
func decodeBody(r *http.Request, v any) string {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return "Missing request body"
		}
		return "Invalid JSON in request body"
	}
	return ""
}

// parseStopword accepts a JSON string or array of strings, matching the wire
// format's tolerance for both shapes. Absent or null means no extra words.
func parseStopword(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	return nil, errors.New("stopword must be a string or array of strings")
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var parts []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// resolve waits on the job handle and maps non-success outcomes to responses.
// It reports whether the caller should proceed with the completed result.
func resolve(w http.ResponseWriter, r *http.Request, h *pool.Handle) (pool.Outcome, bool) {
	out, err := h.Wait(r.Context())
	if err != nil {
		// Client went away. The job still runs to an outcome; there is
		// nobody left to write a response to.
		return pool.Outcome{}, false
	}
	switch out.Status {
	case pool.StatusCompleted:
		return out, true
	case pool.StatusTimedOut:
		response.Error(w, http.StatusBadRequest, "Request timeout: Processing took too long")
	default:
		response.Error(w, http.StatusInternalServerError, "Processing error: "+out.Err.Error())
	}
	return pool.Outcome{}, false
}

// recordUsage bumps the calling token's counters after a completed analysis.
// Identities without a stored token (admin secret) are exempt. A token revoked
// mid-flight is logged and the response still succeeds; any other store
// failure becomes a 500. Reports whether the caller may write a success body.
func recordUsage(w http.ResponseWriter, r *http.Request, st store.Store, text string) bool {
	id := mw.GetIdentity(r)
	if id.Token == nil {
		return true
	}
	err := st.RecordUsage(r.Context(), id.Token.Value, utf8.RuneCountInString(text))
	if err == nil {
		return true
	}
	if errors.Is(err, store.ErrNotFound) {
		slog.Warn("usage not recorded, token no longer valid", "user_id", id.Token.UserID)
		return true
	}
	slog.Error("failed to record usage", "error", err)
	response.Error(w, http.StatusInternalServerError, "Failed to record usage")
	return false
}
