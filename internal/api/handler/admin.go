package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/kmatsuda/textlens/internal/api/response"
	"github.com/kmatsuda/textlens/internal/store"
	"github.com/kmatsuda/textlens/pkg/models"
)

// issueRetries bounds regeneration attempts when a generated token value
// collides with an existing row.
const issueRetries = 5

type tokenRequestBody struct {
	UserID int64 `json:"user_id"`
}

type tokenIssuedResponse struct {
	Token    string `json:"token"`
	Reissued bool   `json:"reissued"`
	Message  string `json:"message"`
}

// NewTokenRequestHandler returns the handler for POST /token/request. Issuing
// a token invalidates any valid tokens the user already holds.
func NewTokenRequestHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tokenRequestBody
		if msg := decodeBody(r, &req); msg != "" {
			response.Error(w, http.StatusBadRequest, msg)
			return
		}
		if req.UserID == 0 {
			response.Error(w, http.StatusBadRequest, `Missing "user_id" parameter`)
			return
		}

		var (
			value    string
			reissued bool
			err      error
		)
		for attempt := 0; attempt < issueRetries; attempt++ {
			value = uuid.NewString()
			reissued, err = st.IssueToken(r.Context(), req.UserID, value)
			if !errors.Is(err, store.ErrDuplicateToken) {
				break
			}
		}
		if err != nil {
			slog.Error("token issuance failed", "user_id", req.UserID, "error", err)
			response.Error(w, http.StatusInternalServerError, "Failed to issue token")
			return
		}

		slog.Info("token issued", "user_id", req.UserID, "reissued", reissued)
		response.OK(w, tokenIssuedResponse{
			Token:    value,
			Reissued: reissued,
			Message:  "Token issued successfully",
		})
	}
}

type tokenDeleteBody struct {
	Token string `json:"token"`
}

// NewTokenDeleteHandler returns the handler for POST /token/delete. Deletion
// removes the row outright, unlike reissuance which only invalidates.
func NewTokenDeleteHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tokenDeleteBody
		if msg := decodeBody(r, &req); msg != "" {
			response.Error(w, http.StatusBadRequest, msg)
			return
		}
		if req.Token == "" {
			response.Error(w, http.StatusBadRequest, `Missing "token" parameter`)
			return
		}

		switch err := st.DeleteToken(r.Context(), req.Token); {
		case errors.Is(err, store.ErrNotFound):
			response.Error(w, http.StatusNotFound, "Token not found")
		case err != nil:
			slog.Error("token deletion failed", "error", err)
			response.Error(w, http.StatusInternalServerError, "Failed to delete token")
		default:
			response.OK(w, map[string]string{"message": "Token deleted successfully"})
		}
	}
}

type statsResponse struct {
	Stats []*models.Token `json:"stats"`
}

// NewStatsHandler returns the handler for GET and POST /stats. The snapshot
// includes invalidated tokens, oldest first.
func NewStatsHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := st.ListTokenStats(r.Context())
		if err != nil {
			slog.Error("stats query failed", "error", err)
			response.Error(w, http.StatusInternalServerError, "Failed to fetch statistics")
			return
		}
		if stats == nil {
			stats = []*models.Token{}
		}
		response.OK(w, statsResponse{Stats: stats})
	}
}
