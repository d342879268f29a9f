// Package web serves the employee interface: the page routes, the login
// flow, the event endpoint the browser script posts to and the static
// assets.
package web

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/zombor/billed/internal/app"
	"github.com/zombor/billed/internal/session"
	"github.com/zombor/billed/internal/store"
	"github.com/zombor/billed/internal/view"
)

//go:embed static/*
var staticFS embed.FS

// PathHeader carries the router path of the markup returned by an event
const PathHeader = "X-Billed-Path"

// settleTimeout bounds how long an event response waits for an upload
const settleTimeout = 2 * time.Minute

// attachmentPath is the route serving the attachment of a bill
const attachmentPath = "GET /api/bills/{id}/file"

// shell is the page state of one signed-in employee. mu serializes the
// requests of that employee so each response carries its own markup.
// lastUsed is guarded by Server.mu.
type shell struct {
	mu         sync.Mutex
	page       *app.Page
	dispatcher *app.Dispatcher
	router     *app.Router
	lastUsed   time.Time
}

// Server is the employee web interface
type Server struct {
	store       store.Store
	tokens      *session.Tokens
	attachments store.Attachments
	idle        time.Duration
	now         func() time.Time
	mux         *http.ServeMux

	mu     sync.Mutex
	shells map[string]*shell
}

// Option configures a Server
type Option func(*Server)

// WithAttachments serves the attachments of signed-in employees from a.
// Listed bills then link to the web server instead of the store.
func WithAttachments(a store.Attachments) Option {
	return func(s *Server) {
		s.attachments = a
	}
}

// WithIdleTimeout evicts shells unused for d. It defaults to the session
// lifetime.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.idle = d
	}
}

// WithClock replaces the clock used for shell eviction
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// NewServer creates a Server backed by st
func NewServer(st store.Store, tokens *session.Tokens, opts ...Option) *Server {
	s := &Server{
		store:  st,
		tokens: tokens,
		idle:   tokens.TTL(),
		now:    time.Now,
		mux:    http.NewServeMux(),
		shells: make(map[string]*shell),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.attachments != nil {
		s.store = linkedStore{s.store}
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	s.mux.HandleFunc("GET /{$}", s.handleLoginPage)
	s.mux.HandleFunc("POST /login", s.handleLogin)
	s.mux.HandleFunc("POST /logout", s.handleLogout)
	s.mux.HandleFunc("GET /bills", s.requireSession(s.handlePage(app.PathBills)))
	s.mux.HandleFunc("GET /bills/new", s.requireSession(s.handlePage(app.PathNewBill)))
	s.mux.HandleFunc("POST /events/{name}", s.requireSession(s.handleEvent))

	if s.attachments != nil {
		s.mux.HandleFunc(attachmentPath, s.requireSession(s.handleAttachment))
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start serves the interface on addr until ctx is done
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("Starting web server", "address", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type sessionKey struct{}

func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.tokens.FromRequest(r)
		if err != nil {
			if !errors.Is(err, session.ErrNoSession) {
				slog.Warn("Rejected session", "error", err)
			}
			if r.Method == http.MethodGet {
				http.Redirect(w, r, app.PathLogin, http.StatusSeeOther)
				return
			}
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	}
}

func sessionFrom(r *http.Request) session.Session {
	sess, _ := r.Context().Value(sessionKey{}).(session.Session)
	return sess
}

// shellFor returns the shell of sess, creating it on first use. Shells idle
// for longer than the idle timeout are evicted on the way.
func (s *Server) shellFor(sess session.Session) *shell {
	now := s.now()

	s.mu.Lock()
	expired := s.evictLocked(now, sess.Email)
	sh, ok := s.shells[sess.Email]
	if !ok {
		page := app.NewPage()
		dispatcher := app.NewDispatcher()
		sh = &shell{
			page:       page,
			dispatcher: dispatcher,
			router:     app.NewRouter(s.store, sess, page, dispatcher),
		}
		s.shells[sess.Email] = sh
	}
	sh.lastUsed = now
	s.mu.Unlock()

	for _, old := range expired {
		old.close()
	}
	return sh
}

// evictLocked removes the shells idle since before now-idle, except the
// one of keep. s.mu must be held.
func (s *Server) evictLocked(now time.Time, keep string) []*shell {
	var expired []*shell
	for email, sh := range s.shells {
		if email != keep && now.Sub(sh.lastUsed) > s.idle {
			delete(s.shells, email)
			expired = append(expired, sh)
			slog.Debug("Evicted idle shell", "email", email)
		}
	}
	return expired
}

func (s *Server) dropShell(email string) {
	s.mu.Lock()
	sh, ok := s.shells[email]
	delete(s.shells, email)
	s.mu.Unlock()

	if ok {
		sh.close()
	}
}

func (sh *shell) close() {
	if nb := sh.router.NewBill(); nb != nil {
		nb.Close()
	}
}

func writeMarkup(w http.ResponseWriter, code int, markup string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if _, err := w.Write([]byte(markup)); err != nil {
		slog.Error("Error writing response", "error", err)
	}
}

func (s *Server) renderLogin(w http.ResponseWriter, code int, page view.LoginPage) {
	markup, err := view.Render(page)
	if err != nil {
		slog.Error("Error rendering login page", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeMarkup(w, code, markup)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, err := s.tokens.FromRequest(r); err == nil {
		http.Redirect(w, r, app.PathBills, http.StatusSeeOther)
		return
	}
	s.renderLogin(w, http.StatusOK, view.LoginPage{})
}
