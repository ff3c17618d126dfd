package main

import (
	"context"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/recipes/cmd/cli/internal/commands"
	"github.com/wolfeidau/recipes/internal/logger"
	"github.com/wolfeidau/recipes/internal/telemetry"
)

var (
	version = "dev"
	cli     struct {
		Login     commands.LoginCmd     `cmd:"" help:"Log in to the recipes API"`
		Logout    commands.LogoutCmd    `cmd:"" help:"End the current session"`
		Whoami    commands.WhoamiCmd    `cmd:"" help:"Show the logged in user"`
		Get       commands.GetCmd       `cmd:"" help:"Send an authenticated GET and print the response"`
		Favorites commands.FavoritesCmd `cmd:"" help:"List favorite recipes"`
		Import    commands.ImportCmd    `cmd:"" help:"Upload a recipe file"`

		Server        string `help:"Recipes API base URL." env:"RECIPES_SERVER" default:"https://localhost:8993"`
		Store         string `help:"Session store." enum:"file,memory,redis" default:"file" env:"RECIPES_STORE"`
		StoreDir      string `help:"Directory for the file session store." env:"RECIPES_STORE_DIR"`
		RedisAddr     string `help:"Redis address for the redis session store." env:"RECIPES_REDIS_ADDR" default:"localhost:6379"`
		RedisPassword string `help:"Redis password." env:"RECIPES_REDIS_PASSWORD"`
		RedisPrefix   string `help:"Key prefix for the redis session store." env:"RECIPES_REDIS_PREFIX"`
		CacheDir      string `help:"Directory for the HTTP response cache, in memory when empty." env:"RECIPES_CACHE_DIR"`
		NoCache       bool   `help:"Disable the HTTP response cache." env:"RECIPES_NO_CACHE"`
		Debug         bool   `help:"Enable debug mode."`
		Version       kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.Configuration(commands.YAMLConfig, "~/.recipes/config.yaml"),
		kong.BindTo(ctx, (*context.Context)(nil)))

	log.Logger = logger.Setup(cli.Debug)

	shutdown, err := telemetry.Init(ctx, "recipes-cli", version)
	cmd.FatalIfErrorf(err)

	err = cmd.Run(&commands.Globals{
		Debug:         cli.Debug,
		Version:       version,
		Server:        cli.Server,
		Store:         cli.Store,
		StoreDir:      cli.StoreDir,
		RedisAddr:     cli.RedisAddr,
		RedisPassword: cli.RedisPassword,
		RedisPrefix:   cli.RedisPrefix,
		CacheDir:      cli.CacheDir,
		NoCache:       cli.NoCache,
	})

	// FatalIfErrorf exits, flush telemetry first.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if serr := shutdown(shutdownCtx); serr != nil {
		log.Warn().Err(serr).Msg("failed to shutdown telemetry")
	}
	cancel()

	cmd.FatalIfErrorf(err)
}
