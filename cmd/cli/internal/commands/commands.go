package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/recipes/internal/client"
	"github.com/wolfeidau/recipes/internal/gateway"
	"github.com/wolfeidau/recipes/internal/session"
	"github.com/wolfeidau/recipes/internal/tokenstore"
)

// ErrLoginRequired is returned by commands that need an account when none is active.
var ErrLoginRequired = errors.New("login required")

type Globals struct {
	Debug   bool
	Version string

	Server        string
	Store         string
	StoreDir      string
	RedisAddr     string
	RedisPassword string
	RedisPrefix   string
	CacheDir      string
	NoCache       bool

	// Stdout and Stderr default to the process streams.
	Stdout io.Writer
	Stderr io.Writer
}

func (g *Globals) stdout() io.Writer {
	if g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

func (g *Globals) stderr() io.Writer {
	if g.Stderr == nil {
		return os.Stderr
	}
	return g.Stderr
}

// runtime is the session wiring shared by every command.
type runtime struct {
	state   *session.State
	guard   *session.Guard
	gateway *gateway.Gateway
	close   func() error
}

// open builds the token store, session, guard and gateway from the globals.
// Expiry and login prompts are printed to stderr, once per session epoch.
func (g *Globals) open(ctx context.Context) (*runtime, error) {
	store, closeStore, err := g.openStore(ctx)
	if err != nil {
		return nil, err
	}

	stderr := g.stderr()
	state := session.New(ctx, store, session.WithExpiryHandler(func(message string) {
		fmt.Fprintln(stderr, message)
	}))

	cfg := client.DefaultConfig()
	if g.Server != "" {
		cfg.ServerURL = g.Server
	}
	cfg.CacheDir = g.CacheDir
	cfg.DisableCache = g.NoCache
	cfg.Logger = log.Logger.With().Str("component", "http").Logger()

	gw, err := gateway.New(cfg.ServerURL, state, gateway.WithHTTPClient(client.NewHTTPClient(cfg)))
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	return &runtime{
		state:   state,
		guard:   session.NewGuard(state),
		gateway: gw,
		close:   closeStore,
	}, nil
}

func (g *Globals) openStore(ctx context.Context) (tokenstore.Store, func() error, error) {
	noop := func() error { return nil }

	switch g.Store {
	case "", "file":
		store, err := tokenstore.NewFileStore(g.StoreDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize session store: %w", err)
		}
		return store, noop, nil
	case "memory":
		return tokenstore.NewMemoryStore(), noop, nil
	case "redis":
		store, err := tokenstore.DialRedis(ctx, tokenstore.RedisConfig{
			Addr:     g.RedisAddr,
			Password: g.RedisPassword,
			Prefix:   g.RedisPrefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store %q", g.Store)
	}
}

// withRuntime opens the runtime, runs fn and closes it.
func (g *Globals) withRuntime(ctx context.Context, fn func(rt *runtime) error) error {
	rt, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.close(); err != nil {
			log.Warn().Err(err).Msg("failed to close session store")
		}
	}()

	return fn(rt)
}

// requireLogin gates a command on an active session.
func (rt *runtime) requireLogin(ctx context.Context) error {
	if rt.guard.RequiresAuth(ctx, true) {
		return nil
	}
	return ErrLoginRequired
}
