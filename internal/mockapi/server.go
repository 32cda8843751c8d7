// Package mockapi is an in-memory users API shaped like JSONPlaceholder, with
// a small bearer-token auth surface. The CLI serves it with "apikit mock" and
// tests run it behind httptest.
package mockapi

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/samhoque/apikit/internal/users"
)

const DefaultTokenTTL = time.Hour

type Server struct {
	Router *chi.Mux

	mu     sync.RWMutex
	users  map[int]users.User
	nextID int

	secret   []byte
	tokenTTL time.Duration
	logger   zerolog.Logger
}

type Option func(*Server)

// WithSecret sets the HMAC key used to sign tokens.
func WithSecret(secret []byte) Option {
	return func(s *Server) {
		if len(secret) > 0 {
			s.secret = secret
		}
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithUsers replaces the seed data.
func WithUsers(seed []users.User) Option {
	return func(s *Server) {
		s.users = make(map[int]users.User, len(seed))
		s.nextID = 1
		for _, u := range seed {
			s.users[u.ID] = u
			if u.ID >= s.nextID {
				s.nextID = u.ID + 1
			}
		}
	}
}

func New(opts ...Option) *Server {
	s := &Server{
		Router:   chi.NewRouter(),
		secret:   []byte(uuid.NewString()),
		tokenTTL: DefaultTokenTTL,
		logger:   log.Logger,
	}
	WithUsers(SeedUsers())(s)
	for _, opt := range opts {
		opt(s)
	}
	s.mountHandlers()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) mountHandlers() {
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(s.requestLogger)

	s.Router.Route("/users", func(r chi.Router) {
		r.Get("/", s.listUsers)
		r.Post("/", s.createUser)
		r.Get("/{id}", s.getUser)
		r.Put("/{id}", s.updateUser)
		r.Patch("/{id}", s.updateUser)
		r.Delete("/{id}", s.deleteUser)
	})
	s.Router.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.login)
		r.Post("/logout", s.logout)
		r.With(s.requireAuth).Get("/me", s.me)
	})
}

// requestLogger tags every request with an id and logs it once served.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("request_id", reqID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request served")
	})
}

func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func sendError(w http.ResponseWriter, status int, msg string) {
	sendJSON(w, status, map[string]string{"error": msg})
}

func pathID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	return id, err == nil && id > 0
}

func intQuery(r *http.Request, name string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n < 1 {
		return def
	}
	return n
}

func matches(u users.User, q string) bool {
	q = strings.ToLower(q)
	return strings.Contains(strings.ToLower(u.Name), q) ||
		strings.Contains(strings.ToLower(u.Username), q) ||
		strings.Contains(strings.ToLower(u.Email), q)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	page := intQuery(r, "_page", users.DefaultPage)
	limit := intQuery(r, "_limit", users.DefaultPerPage)
	q := r.URL.Query().Get("q")

	s.mu.RLock()
	list := make([]users.User, 0, len(s.users))
	for _, u := range s.users {
		if q == "" || matches(u, q) {
			list = append(list, u)
		}
	}
	s.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	w.Header().Set("X-Total-Count", strconv.Itoa(len(list)))
	start := (page - 1) * limit
	if start > len(list) {
		start = len(list)
	}
	end := min(start+limit, len(list))
	sendJSON(w, http.StatusOK, list[start:end])
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		sendError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	s.mu.RLock()
	u, ok := s.users[id]
	s.mu.RUnlock()
	if !ok {
		sendError(w, http.StatusNotFound, "not found")
		return
	}
	sendJSON(w, http.StatusOK, u)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var payload users.CreateUserPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		sendError(w, http.StatusBadRequest, "unable to parse request body")
		return
	}
	if err := users.Validate(payload); err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	u := payload.User(s.nextID)
	s.users[u.ID] = u
	s.nextID++
	s.mu.Unlock()

	w.Header().Set("Location", "/users/"+strconv.Itoa(u.ID))
	sendJSON(w, http.StatusCreated, u)
}

// updateUser serves both PUT and PATCH. Like JSONPlaceholder it merges the
// fields it is given.
func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		sendError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var payload users.UpdateUserPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		sendError(w, http.StatusBadRequest, "unable to parse request body")
		return
	}
	payload.ID = id
	if err := users.Validate(payload); err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	u, ok := s.users[id]
	if ok {
		payload.Apply(&u)
		s.users[id] = u
	}
	s.mu.Unlock()
	if !ok {
		sendError(w, http.StatusNotFound, "not found")
		return
	}
	sendJSON(w, http.StatusOK, u)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		sendError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	s.mu.Lock()
	_, ok = s.users[id]
	delete(s.users, id)
	s.mu.Unlock()
	if !ok {
		sendError(w, http.StatusNotFound, "not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
