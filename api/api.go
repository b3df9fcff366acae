// Package api exposes the marrow pipeline over HTTP: map retrieval,
// manifest listing, live extraction, selector validation, and stats.
// Handlers are thin: decode, guard the URL, delegate to the client.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/marrow"
	"github.com/hazyhaar/marrow/guard"
	"github.com/hazyhaar/marrow/shield"
)

// ServiceName and Version identify the API in the root info response.
const (
	ServiceName = "marrow"
	Version     = "1.0.0"
)

// maxRequestBody bounds POST payloads. Selector lists are small; anything
// larger is a mistake or an attack.
const maxRequestBody = 1 << 20

// Server is the HTTP front-end over a marrow client.
type Server struct {
	client *marrow.Client
	logger *slog.Logger
}

// NewServer wraps a client.
func NewServer(client *marrow.Client, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{client: client, logger: logger}
}

// Router builds the chi router with the shield middleware stack applied.
func (s *Server) Router(cfg marrow.HTTPConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(shield.TraceID)
	r.Use(shield.SecurityHeaders(shield.DefaultHeaders()))
	r.Use(shield.MaxBody(maxRequestBody))
	if cfg.RateLimit > 0 {
		rl := shield.NewRateLimiter(shield.RateLimitConfig{
			MaxRequests: cfg.RateLimit,
			Window:      time.Minute,
			Exclude:     []string{"/health"},
		})
		r.Use(rl.Middleware)
	}
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(shield.CORS(cfg.AllowedOrigins))
	}

	r.Get("/", s.handleInfo)
	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/map", s.handleGetMap)
		r.Get("/manifest", s.handleGetManifest)
		r.Get("/stats", s.handleStats)
		r.Get("/auth-check", s.handleAuthCheck)
		r.Post("/extract", s.handleExtract)
		r.Post("/validate", s.handleValidate)
	})
	return r
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, 200, map[string]string{
		"service": ServiceName,
		"version": Version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

// GET /v1/map?url=...&debug=true
func (s *Server) handleGetMap(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if err := validateInputURL(rawURL); err != nil {
		writeError(w, 400, err)
		return
	}

	if r.URL.Query().Get("debug") == "true" {
		m, dbg, err := s.client.GetMapDebug(r.Context(), rawURL)
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, map[string]any{"map": m, "debug": dbg})
		return
	}

	m, err := s.client.GetMap(r.Context(), rawURL)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, map[string]any{"map": m})
}

// GET /v1/manifest?domain=...
func (s *Server) handleGetManifest(w http.ResponseWriter, r *http.Request) {
	domain := r.URL.Query().Get("domain")
	if domain == "" {
		writeError(w, 400, errors.New("domain query parameter is required"))
		return
	}
	manifest, err := s.client.GetManifest(r.Context(), domain)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, manifest)
}

// GET /v1/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.client.GetStats(r.Context())
	if err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, stats)
}

// GET /v1/auth-check?url=...
func (s *Server) handleAuthCheck(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if err := validateInputURL(rawURL); err != nil {
		writeError(w, 400, err)
		return
	}
	det, err := s.client.CheckAuth(r.Context(), rawURL)
	if err != nil {
		if errors.Is(err, marrow.ErrAuthCheckUnsupported) {
			writeError(w, 501, err)
			return
		}
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, det)
}

type extractRequest struct {
	URL          string   `json:"url"`
	Selectors    []string `json:"selectors,omitempty"`
	ElementNames []string `json:"elementNames,omitempty"`
	MaxAttempts  int      `json:"maxAttempts,omitempty"`
	Debug        bool     `json:"debug,omitempty"`
}

// POST /v1/extract
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, err)
		return
	}
	if err := validateInputURL(req.URL); err != nil {
		writeError(w, 400, err)
		return
	}
	if len(req.Selectors) == 0 && len(req.ElementNames) == 0 {
		writeError(w, 400, errors.New("selectors or elementNames is required"))
		return
	}

	var (
		content map[string]*string
		dbg     *marrow.ExtractDebug
		err     error
	)
	switch {
	case len(req.ElementNames) > 0:
		if req.Debug {
			content, dbg, err = s.client.ExtractByNamesDebug(r.Context(), req.URL, req.ElementNames, req.MaxAttempts)
		} else {
			content, err = s.client.ExtractByNames(r.Context(), req.URL, req.ElementNames, req.MaxAttempts)
		}
	default:
		if req.Debug {
			content, dbg, err = s.client.ExtractContentDebug(r.Context(), req.URL, req.Selectors)
		} else {
			content, err = s.client.ExtractContent(r.Context(), req.URL, req.Selectors)
		}
	}
	if err != nil {
		switch {
		case errors.Is(err, marrow.ErrMapNotFound), errors.Is(err, marrow.ErrElementNotFound):
			writeError(w, 404, err)
		case errors.Is(err, marrow.ErrNoSelectors):
			writeError(w, 400, err)
		default:
			writeError(w, 500, err)
		}
		return
	}

	resp := map[string]any{"content": content}
	if dbg != nil {
		resp["debug"] = dbg
	}
	writeJSON(w, 200, resp)
}

type validateRequest struct {
	URL       string   `json:"url"`
	Selectors []string `json:"selectors"`
}

type validateResponse struct {
	Found   int             `json:"found"`
	Missing int             `json:"missing"`
	Results map[string]bool `json:"results"`
}

// POST /v1/validate checks that selectors resolve on the live page,
// reporting hit/miss per selector without returning content.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, err)
		return
	}
	if err := validateInputURL(req.URL); err != nil {
		writeError(w, 400, err)
		return
	}
	if len(req.Selectors) == 0 {
		writeError(w, 400, errors.New("selectors is required"))
		return
	}

	content, err := s.client.ExtractContent(r.Context(), req.URL, req.Selectors)
	if err != nil {
		writeError(w, 500, err)
		return
	}

	resp := validateResponse{Results: make(map[string]bool, len(content))}
	for sel, text := range content {
		ok := text != nil
		resp.Results[sel] = ok
		if ok {
			resp.Found++
		} else {
			resp.Missing++
		}
	}
	writeJSON(w, 200, resp)
}

func validateInputURL(raw string) error {
	if raw == "" {
		return errors.New("url is required")
	}
	return guard.ValidateURL(marrow.CompleteURL(raw))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
