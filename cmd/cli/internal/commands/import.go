package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/wolfeidau/recipes/internal/gateway"
)

type ImportCmd struct {
	File   string `arg:"" help:"Recipe file to upload" type:"existingfile"`
	Path   string `help:"Import endpoint" default:"/api/recipes/import"`
	Field  string `help:"Form field holding the file" default:"file"`
	Source string `help:"Source label stored with the recipe" default:"cli"`
}

func (i *ImportCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withRuntime(ctx, func(rt *runtime) error {
		if err := rt.requireLogin(ctx); err != nil {
			return err
		}

		f, err := os.Open(i.File)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", i.File, err)
		}
		defer f.Close()

		resp, err := rt.gateway.Do(ctx, &gateway.Request{
			Method: http.MethodPost,
			Path:   i.Path,
			Body: &gateway.Multipart{
				Fields: map[string]string{"source": i.Source},
				Files:  []gateway.FilePart{{Field: i.Field, FileName: filepath.Base(i.File), Content: f}},
			},
		})
		if err != nil {
			return fmt.Errorf("failed to import %s: %w", i.File, err)
		}

		var created recipeSummary
		if err := gateway.DecodeJSON(resp, &created); err != nil {
			return fmt.Errorf("failed to import %s: %w", i.File, err)
		}

		fmt.Fprintf(globals.stdout(), "Imported %q as %s\n", created.Title, created.ID)
		return nil
	})
}
