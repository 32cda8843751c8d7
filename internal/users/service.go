// Package users is the users API service: cached reads and mutations that
// invalidate the users key tree.
package users

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/samhoque/apikit/internal/querykeys"
	"github.com/samhoque/apikit/pkg/httpclient"
	"github.com/samhoque/apikit/pkg/querycache"
)

// ErrInvalidID is returned for user ids below 1.
var ErrInvalidID = errors.New("invalid user id")

// Client is the part of httpclient.Client the service needs.
type Client interface {
	httpclient.Requester
	SetAuthToken(ctx context.Context, token string)
	ClearAuthToken(ctx context.Context)
}

type Service struct {
	client Client
	cache  *querycache.Cache
}

func NewService(client Client, cache *querycache.Cache) *Service {
	return &Service{client: client, cache: cache}
}

func userPath(id int) string {
	return "/users/" + strconv.Itoa(id)
}

// List returns one page of users, cached under users.list(params).
func (s *Service) List(ctx context.Context, params ListParams) ([]User, error) {
	params = params.Normalize()
	return querycache.Fetch(ctx, s.cache, querykeys.Users.List(params), func(ctx context.Context) ([]User, error) {
		resp, err := s.client.Get(ctx, "/users", &httpclient.RequestConfig{Params: params.Params()})
		if err != nil {
			return nil, err
		}
		return httpclient.DecodeData[[]User](resp)
	})
}

// Get returns one user, cached under users.detail(id).
func (s *Service) Get(ctx context.Context, id int) (User, error) {
	if id < 1 {
		return User{}, ErrInvalidID
	}
	return querycache.Fetch(ctx, s.cache, querykeys.Users.Detail(id), func(ctx context.Context) (User, error) {
		resp, err := s.client.Get(ctx, userPath(id), nil)
		if err != nil {
			return User{}, err
		}
		return httpclient.DecodeData[User](resp)
	})
}

func (s *Service) createMutation() querycache.Mutation[CreateUserPayload, User] {
	return querycache.Mutation[CreateUserPayload, User]{
		Name: "users.create",
		Fn: func(ctx context.Context, payload CreateUserPayload) (User, error) {
			resp, err := s.client.Post(ctx, "/users", payload, nil)
			if err != nil {
				return User{}, err
			}
			return httpclient.DecodeData[User](resp)
		},
		Intent: querycache.InvalidatePrefix(querykeys.Users.All()),
	}
}

func (s *Service) updateMutation() querycache.Mutation[UpdateUserPayload, User] {
	return querycache.Mutation[UpdateUserPayload, User]{
		Name: "users.update",
		Fn: func(ctx context.Context, payload UpdateUserPayload) (User, error) {
			resp, err := s.client.Put(ctx, userPath(payload.ID), payload, nil)
			if err != nil {
				return User{}, err
			}
			return httpclient.DecodeData[User](resp)
		},
		Intent: querycache.InvalidatePrefix(querykeys.Users.All()),
	}
}

func (s *Service) deleteMutation() querycache.Mutation[int, struct{}] {
	return querycache.Mutation[int, struct{}]{
		Name: "users.delete",
		Fn: func(ctx context.Context, id int) (struct{}, error) {
			_, err := s.client.Delete(ctx, userPath(id), nil)
			return struct{}{}, err
		},
		Intent: querycache.InvalidatePrefix(querykeys.Users.All()),
	}
}

// Create validates payload and creates a user. On success every users query
// is invalidated.
func (s *Service) Create(ctx context.Context, payload CreateUserPayload) (User, error) {
	if err := Validate(payload); err != nil {
		return User{}, err
	}
	return querycache.Mutate(ctx, s.cache, s.createMutation(), payload)
}

// Update sends the non-empty fields of payload with PUT.
func (s *Service) Update(ctx context.Context, payload UpdateUserPayload) (User, error) {
	if err := Validate(payload); err != nil {
		return User{}, err
	}
	return querycache.Mutate(ctx, s.cache, s.updateMutation(), payload)
}

func (s *Service) Delete(ctx context.Context, id int) error {
	if id < 1 {
		return ErrInvalidID
	}
	_, err := querycache.Mutate(ctx, s.cache, s.deleteMutation(), id)
	return err
}

// LoginResult is the body returned by POST /auth/login.
type LoginResult struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	User      User   `json:"user"`
}

// Login exchanges credentials for a token and stores it for later requests.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	resp, err := s.client.Post(ctx, "/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, &httpclient.RequestConfig{SkipAuth: true})
	if err != nil {
		return LoginResult{}, err
	}
	result, err := httpclient.DecodeData[LoginResult](resp)
	if err != nil {
		return LoginResult{}, err
	}
	if result.Token == "" {
		return LoginResult{}, fmt.Errorf("login response has no token")
	}
	s.client.SetAuthToken(ctx, result.Token)
	s.cache.Invalidate(querykeys.Auth.All())
	return result, nil
}

// Logout tells the server and clears the stored token even when the server
// call fails. Cached auth queries are dropped.
func (s *Service) Logout(ctx context.Context) error {
	_, err := s.client.Post(ctx, "/auth/logout", nil, nil)
	s.client.ClearAuthToken(ctx)
	s.cache.Remove(querykeys.Auth.All())
	return err
}

// CurrentUser returns the authenticated user, cached under auth.current-user.
func (s *Service) CurrentUser(ctx context.Context) (User, error) {
	return querycache.Fetch(ctx, s.cache, querykeys.Auth.CurrentUser(), func(ctx context.Context) (User, error) {
		resp, err := s.client.Get(ctx, "/auth/me", nil)
		if err != nil {
			return User{}, err
		}
		return httpclient.DecodeData[User](resp)
	})
}
