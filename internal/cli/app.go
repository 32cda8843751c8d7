package cli

import (
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/samhoque/apikit/internal/config"
	"github.com/samhoque/apikit/internal/logtrace"
	"github.com/samhoque/apikit/internal/users"
	"github.com/samhoque/apikit/pkg/httpclient"
	"github.com/samhoque/apikit/pkg/querycache"
	"github.com/samhoque/apikit/pkg/storage"
)

// skipSetup marks commands that run without the API client.
const skipSetup = "apikit/skip-setup"

type app struct {
	cfg    config.Config
	store  storage.Store
	client *httpclient.Client
	cache  *querycache.Cache
	users  *users.Service
}

var current *app

func needsSetup(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipSetup] == "true" {
			return false
		}
	}
	return true
}

// preRunSetup loads configuration and wires storage, client and cache for the
// command about to run.
func preRunSetup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logtrace.InitLogger(cfg.LogLevel)
	if !needsSetup(cmd) {
		return nil
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if timeout > 0 {
		cfg.Timeout = timeout
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	current = a
	return nil
}

func closeApp() error {
	if current == nil {
		return nil
	}
	err := current.close()
	current = nil
	return err
}

func newApp(cfg config.Config) (*app, error) {
	platform, err := storage.ParsePlatform(cfg.Platform)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(platform, cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	opts := []httpclient.Option{
		httpclient.WithTimeout(cfg.Timeout),
		httpclient.WithStorage(store),
		httpclient.WithLogger(log.Logger),
	}
	if cfg.Language != "" {
		tag, err := language.Parse(cfg.Language)
		if err != nil {
			return nil, fmt.Errorf("invalid language %q: %w", cfg.Language, err)
		}
		opts = append(opts, httpclient.WithLanguage(tag))
	}
	client := httpclient.NewClient(cfg.BaseURL, opts...)

	cache := querycache.New(
		querycache.WithStaleTime(cfg.StaleTime),
		querycache.WithRetry(cfg.QueryRetry, querycache.DefaultRetryDelay),
		querycache.WithRetryIf(httpclient.IsRetryable),
		querycache.WithLogger(log.Logger),
	)
	if cfg.RefreshSpec != "" {
		if err := cache.ScheduleStaleRefetch(cfg.RefreshSpec); err != nil {
			cache.Stop()
			return nil, err
		}
	}

	return &app{
		cfg:    cfg,
		store:  store,
		client: client,
		cache:  cache,
		users:  users.NewService(client, cache),
	}, nil
}

func (a *app) close() error {
	a.cache.Stop()
	if c, ok := a.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
