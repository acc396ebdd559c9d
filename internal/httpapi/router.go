// Package httpapi is the HTTP and WebSocket front door: thin handlers over
// the game engine and ETL processor.
package httpapi

import (
	"bufio"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/chartpulse/backend/internal/etl"
	"github.com/chartpulse/backend/internal/game"
)

type Server struct {
	engine    *game.Engine
	scheduler *etl.Scheduler
	log       *zap.Logger
	validate  *validator.Validate
	upgrader  websocket.Upgrader
}

func NewServer(engine *game.Engine, scheduler *etl.Scheduler, log *zap.Logger) *Server {
	return &Server{
		engine:    engine,
		scheduler: scheduler,
		log:       log,
		validate:  validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The game is public; origin policy is enforced by the CORS layer
			// for HTTP and left open for WS.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Router assembles the chi mux with middleware and all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)

	r.Route("/game", func(r chi.Router) {
		r.Post("/seed", s.handleSeed)
		r.Get("/{sessionID}", s.handleState)
		r.Post("/{sessionID}/guess", s.handleGuess)
	})

	r.Post("/etl/run", s.handleETLRun)

	r.Get("/ws/{clientID}", s.handleWebSocket)

	return r
}

// requestLogger logs each request with method, path, status, and duration.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("duration", time.Since(start)))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack passes through to the underlying writer so the WebSocket upgrade
// works behind the logging middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := w.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}
