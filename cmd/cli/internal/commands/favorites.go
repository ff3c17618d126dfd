package commands

import (
	"context"
	"fmt"
	"net/http"
	"text/tabwriter"

	"github.com/wolfeidau/recipes/internal/gateway"
)

type FavoritesCmd struct{}

type recipeSummary struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Calories float64 `json:"calories"`
	Servings int     `json:"servings"`
}

func (f *FavoritesCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withRuntime(ctx, func(rt *runtime) error {
		if err := rt.requireLogin(ctx); err != nil {
			return err
		}

		resp, err := rt.gateway.Do(ctx, &gateway.Request{Method: http.MethodGet, Path: "/api/favorites"})
		if err != nil {
			return fmt.Errorf("failed to list favorites: %w", err)
		}

		var recipes []recipeSummary
		if err := gateway.DecodeJSON(resp, &recipes); err != nil {
			return fmt.Errorf("failed to list favorites: %w", err)
		}

		out := globals.stdout()
		if len(recipes) == 0 {
			fmt.Fprintln(out, "No favorites yet.")
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTITLE\tKCAL/SERVING\tSERVINGS")
		for _, r := range recipes {
			fmt.Fprintf(tw, "%s\t%s\t%.0f\t%d\n", r.ID, r.Title, r.Calories, r.Servings)
		}

		return tw.Flush()
	})
}
