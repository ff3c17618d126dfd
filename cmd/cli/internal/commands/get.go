package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/wolfeidau/recipes/internal/gateway"
)

type GetCmd struct {
	Path string `arg:"" help:"API path, e.g. /api/recipes/42"`
}

func (g *GetCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withRuntime(ctx, func(rt *runtime) error {
		resp, err := rt.gateway.Do(ctx, &gateway.Request{Method: http.MethodGet, Path: g.Path})
		if err != nil {
			return fmt.Errorf("failed to get %s: %w", g.Path, err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			// DecodeJSON turns the error body into a StatusError.
			return fmt.Errorf("failed to get %s: %w", g.Path, gateway.DecodeJSON(resp, nil))
		}
		defer resp.Body.Close()

		if _, err := io.Copy(globals.stdout(), resp.Body); err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		fmt.Fprintln(globals.stdout())

		return nil
	})
}
