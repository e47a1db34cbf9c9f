// Package api is the HTTP surface of the call server: the provider webhook
// callbacks, public recording links, and operational endpoints. Handlers
// translate callbacks into routing events, hand them to the call router, and
// render the resulting directive back as provider markup.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/forrestsmith-sys/Twilio-call-server-completed/internal/api/middleware"
	"github.com/forrestsmith-sys/Twilio-call-server-completed/internal/config"
	"github.com/forrestsmith-sys/Twilio-call-server-completed/internal/metrics"
	"github.com/forrestsmith-sys/Twilio-call-server-completed/internal/router"
	"github.com/forrestsmith-sys/Twilio-call-server-completed/internal/voicemail"
)

// Deps are the collaborators the HTTP layer dispatches into.
type Deps struct {
	Config   *config.Config
	Calls    *router.Router
	Pipeline *voicemail.Pipeline
	Store    *voicemail.Store
	Counters *metrics.Counters
	Verifier middleware.Verifier
	// Metrics is the scrape handler mounted at /metrics; nil disables it.
	Metrics http.Handler
	Logger  *slog.Logger
}

// Server holds HTTP handler dependencies and the chi router.
type Server struct {
	router  *chi.Mux
	deps    Deps
	limiter *middleware.IPRateLimiter
	logger  *slog.Logger
}

// NewServer creates the HTTP handler with all routes mounted.
func NewServer(deps Deps) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		deps:    deps,
		limiter: middleware.NewIPRateLimiter(middleware.DefaultRateLimitConfig()),
		logger:  deps.Logger.With("subsystem", "api"),
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops background goroutines owned by the server.
func (s *Server) Close() {
	s.limiter.Stop()
}

// routes configures all middleware and mounts all route groups.
func (s *Server) routes() {
	r := s.router

	// Global middleware stack.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RateLimit(s.limiter))

	// Provider webhook surface. Every route here is signature-guarded;
	// the verifier is a no-op when signature checking is disabled.
	r.Route("/twilio", func(r chi.Router) {
		r.Use(middleware.RequireSignature(s.deps.Verifier, s.deps.Config.PublicBaseURL))

		r.Post("/voice", s.voice(router.StateEntry))
		r.Post("/voice/menu", s.voice(router.StateMenu))
		r.Post("/voice/menu-select", s.voice(router.StateMenuSelect))
		r.Post("/voice/dial-complete", s.voice(router.StateDialComplete))
		r.Post("/voice/pin", s.voice(router.StatePINVerify))
		r.Post("/voice/agent", s.voice(router.StateAgentMenu))
		r.Post("/voice/confirm", s.voice(router.StateConfirmNumber))
		r.Post("/voice/dial-patient", s.voice(router.StateDialPatient))
		r.Post("/voice/voicemail", s.voice(router.StateVoicemail))
		r.Post("/voice/goodbye", s.voice(router.StateGoodbye))

		r.Post("/voice/recording", s.handleRecordingReady)
		r.Post("/voice/transcription", s.handleTranscription)

		r.Post("/sms", s.handleSMS)
	})

	// Public recording links posted to the team chat.
	r.Get("/recordings/{filename}", s.handleRecordingAudio)

	r.Get("/healthz", s.handleHealth)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics)
	}

	s.logger.Info("routes mounted")
}

// handleHealth returns basic health status. Unauthenticated.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRecordingAudio streams a stored voicemail file. Unsafe or unknown
// names 404; the store refuses anything resembling a path traversal.
func (s *Server) handleRecordingAudio(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")

	f, err := s.deps.Store.Open(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		s.logger.Error("stat recording file", "error", err, "name", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	http.ServeContent(w, r, name, stat.ModTime(), f)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
