// Package api assembles the HTTP surface: the Chi router, middleware stack,
// and the handlers behind each route.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kmatsuda/textlens/internal/api/middleware"
	"github.com/kmatsuda/textlens/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	RootHandler          http.HandlerFunc
	TokenizeHandler      http.HandlerFunc
	WordFrequencyHandler http.HandlerFunc
	TokenRequestHandler  http.HandlerFunc
	TokenDeleteHandler   http.HandlerFunc
	StatsHandler         http.HandlerFunc
}

// NewRouter builds the Chi router with the middleware stack and all routes.
// Anything outside the route table, wrong methods included, gets the same
// 404 body.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.NotFound(invalidEndpoint)
	r.MethodNotAllowed(invalidEndpoint)

	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)

		// Serves documentation anonymously; text processing via query
		// parameters enforces authentication inside the handler.
		r.Get("/", deps.RootHandler)

		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireUser)
			r.Use(deps.RateLimit.Limit)

			r.Post("/tokenize", deps.TokenizeHandler)
			r.Post("/word-frequency", deps.WordFrequencyHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireAdmin)

			r.Post("/token/request", deps.TokenRequestHandler)
			r.Post("/token/delete", deps.TokenDeleteHandler)
			r.Get("/stats", deps.StatsHandler)
			r.Post("/stats", deps.StatsHandler)
		})
	})

	return r
}

func invalidEndpoint(w http.ResponseWriter, _ *http.Request) {
	response.Error(w, http.StatusNotFound, "Invalid endpoint")
}
