package mockapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/samhoque/apikit/internal/users"
)

const issuer = "apikit-mock"

type ctxKey struct{}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      users.User `json:"user"`
}

// IssueToken signs a token for user id.
func (s *Server) IssueToken(id int) (string, time.Time, error) {
	now := time.Now()
	expiry := now.Add(s.tokenTTL)
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   strconv.Itoa(id),
		ExpiresAt: jwt.NewNumericDate(expiry),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now.Add(-2 * time.Minute)),
		ID:        uuid.NewString(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("unable to sign token: %w", err)
	}
	return token, expiry, nil
}

// parseToken verifies a token and returns the user id it was issued for.
func (s *Server) parseToken(tokenString string) (int, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return 0, err
	}
	id, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return 0, errors.New("invalid subject")
	}
	return id, nil
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "unable to parse request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		sendError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	var (
		u     users.User
		found bool
	)
	s.mu.RLock()
	for _, candidate := range s.users {
		if strings.EqualFold(candidate.Username, req.Username) {
			u, found = candidate, true
			break
		}
	}
	s.mu.RUnlock()
	if !found {
		sendError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, expiry, err := s.IssueToken(u.ID)
	if err != nil {
		s.logger.Error().Err(err).Msg("login failed")
		sendError(w, http.StatusInternalServerError, "unable to issue token")
		return
	}
	sendJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiry, User: u})
}

// logout always succeeds; tokens are stateless.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			sendError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		id, err := s.parseToken(tokenString)
		if err != nil {
			s.logger.Debug().Err(err).Msg("rejected token")
			sendError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	id, _ := r.Context().Value(ctxKey{}).(int)
	s.mu.RLock()
	u, ok := s.users[id]
	s.mu.RUnlock()
	if !ok {
		sendError(w, http.StatusNotFound, "not found")
		return
	}
	sendJSON(w, http.StatusOK, u)
}
