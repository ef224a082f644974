package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/mindcanvas/pkg/collab"
	apperr "github.com/matzehuels/mindcanvas/pkg/errors"
	"github.com/matzehuels/mindcanvas/pkg/storage"
)

const (
	shutdownTimeout = 10 * time.Second
	maxDocumentSize = 8 << 20
)

// Options configures a Server.
type Options struct {
	// Persister serves the document routes. Without one they answer 501.
	Persister storage.Persister
	// Bridge connects rooms across relay instances. Optional.
	Bridge collab.Channel
	Logger *log.Logger
	// AllowedOrigins restricts websocket upgrades by Origin header. Empty
	// or "*" allows every origin.
	AllowedOrigins []string
	// Metrics is mounted at /metrics when set.
	Metrics    http.Handler
	SendBuffer int
}

// Server is the relay's HTTP surface.
type Server struct {
	opts     Options
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *log.Logger
	cancel   context.CancelFunc
}

// New creates a relay server. Call Close (or let ListenAndServe return) to
// disconnect clients.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultSendBuffer
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		opts:   opts,
		hub:    NewHub(ctx, opts.Bridge, opts.Logger),
		logger: opts.Logger,
		cancel: cancel,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Hub returns the server's room registry.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the router with every relay route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))

	r.Get("/healthz", s.healthz)
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics)
	}
	r.Route("/documents", func(r chi.Router) {
		r.Get("/", s.listDocuments)
		r.Get("/{id}", s.getDocument)
		r.Put("/{id}", s.putDocument)
		r.Get("/{id}/ws", s.serveWS)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully and disconnects every websocket client.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("relay: listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return apperr.Wrap(apperr.ErrCodeTransport, err, "listen on %s", addr)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.Close()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Close disconnects every client.
func (s *Server) Close() {
	s.hub.Close()
	s.cancel()
}

func (s *Server) checkOrigin(r *http.Request) bool {
	allowed := s.opts.AllowedOrigins
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return true
	}
	return slices.Contains(allowed, r.Header.Get("Origin"))
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"rooms":  s.hub.Rooms(),
	})
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	lister, ok := s.opts.Persister.(storage.Lister)
	if !ok {
		respondError(w, apperr.New(apperr.ErrCodeUnsupported, "listing is not supported"))
		return
	}
	sums, err := lister.List(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	if sums == nil {
		sums = []storage.Summary{}
	}
	respondJSON(w, http.StatusOK, sums)
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	if s.opts.Persister == nil {
		respondError(w, apperr.New(apperr.ErrCodeUnsupported, "no storage configured"))
		return
	}
	id := chi.URLParam(r, "id")
	if err := apperr.ValidateDocumentID(id); err != nil {
		respondError(w, err)
		return
	}
	rec, err := s.opts.Persister.Load(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) putDocument(w http.ResponseWriter, r *http.Request) {
	if s.opts.Persister == nil {
		respondError(w, apperr.New(apperr.ErrCodeUnsupported, "no storage configured"))
		return
	}
	id := chi.URLParam(r, "id")
	if err := apperr.ValidateDocumentID(id); err != nil {
		respondError(w, err)
		return
	}

	var rec storage.Record
	body := io.LimitReader(r.Body, maxDocumentSize)
	if err := json.NewDecoder(body).Decode(&rec); err != nil {
		respondError(w, apperr.Wrap(apperr.ErrCodeInvalidInput, err, "decode document"))
		return
	}
	rec.DocumentID = id
	if _, err := rec.Document(); err != nil {
		respondError(w, apperr.Wrap(apperr.ErrCodeInvalidInput, err, "invalid document"))
		return
	}
	if err := s.opts.Persister.Save(r.Context(), rec); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := apperr.ValidateDocumentID(id); err != nil {
		respondError(w, err)
		return
	}
	user := r.URL.Query().Get("user")
	if user == "" {
		respondError(w, apperr.New(apperr.ErrCodeInvalidInput, "missing user query parameter"))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the response.
		s.logger.Debug("relay: upgrade failed", "doc", id, "err", err)
		return
	}

	c := newClient(s.hub, conn, id, user, s.opts.SendBuffer)
	if err := s.hub.join(c); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	go c.writePump()
	c.readPump(r.Context())
}

// requestLogger logs one line per request.
func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("relay: request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, err error) {
	code := apperr.GetCode(err)
	if code == "" {
		code = apperr.ErrCodeInternal
	}
	respondJSON(w, statusOf(code), map[string]string{
		"code":  string(code),
		"error": apperr.UserMessage(err),
	})
}

func statusOf(code apperr.Code) int {
	switch code {
	case apperr.ErrCodeNotFound:
		return http.StatusNotFound
	case apperr.ErrCodeInvalidInput, apperr.ErrCodeInvalidPath, apperr.ErrCodeInvalidEvent:
		return http.StatusBadRequest
	case apperr.ErrCodeUnsupported:
		return http.StatusNotImplemented
	case apperr.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
