package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"gopkg.in/yaml.v3"
)

// YAMLConfig is a kong.ConfigurationLoader for files such as:
//
//	server: https://recipes.example.com
//	store: redis
//	redis:
//	  addr: localhost:6379
//
// Flags are looked up by name, with dashes or underscores, then through
// nested maps one dash-separated word at a time.
func YAMLConfig(r io.Reader) (kong.Resolver, error) {
	values := map[string]any{}
	if err := yaml.NewDecoder(r).Decode(&values); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	var f kong.ResolverFunc = func(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (any, error) {
		for _, name := range []string{flag.Name, strings.ReplaceAll(flag.Name, "-", "_")} {
			if raw, ok := values[name]; ok {
				return raw, nil
			}
		}

		var raw any = values
		for _, part := range strings.Split(flag.Name, "-") {
			m, ok := raw.(map[string]any)
			if !ok {
				return nil, nil
			}
			if raw, ok = m[part]; !ok {
				return nil, nil
			}
		}
		return raw, nil
	}

	return f, nil
}
