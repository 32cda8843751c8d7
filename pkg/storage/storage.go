// Package storage provides the key-value store used to persist small client
// state such as the auth token. Two backends exist: an in-process map for the
// web platform and a SQLite file for native installs. The backend is picked once
// at startup from a Platform value.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrClosed is returned by a store used after Close.
var ErrClosed = errors.New("storage: store is closed")

// Store is the key-value capability the HTTP client depends on.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Platform selects a storage backend.
type Platform string

const (
	PlatformWeb    Platform = "web"
	PlatformNative Platform = "native"
)

// ParsePlatform validates a platform name. Matching is case-insensitive.
func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(strings.ToLower(strings.TrimSpace(s))); p {
	case PlatformWeb, PlatformNative:
		return p, nil
	default:
		return "", fmt.Errorf("unknown platform %q", s)
	}
}

// Open returns the backend for platform. path is only used by the native
// backend and names the SQLite database file.
func Open(platform Platform, path string) (Store, error) {
	switch platform {
	case PlatformWeb:
		return NewMemoryStore(), nil
	case PlatformNative:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown platform %q", platform)
	}
}
