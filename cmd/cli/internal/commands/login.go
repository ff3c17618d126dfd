package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/wolfeidau/recipes/internal/gateway"
	"github.com/wolfeidau/recipes/internal/session"
)

type LoginCmd struct {
	Email    string `help:"Account email" required:""`
	Password string `help:"Account password" required:"" env:"RECIPES_PASSWORD"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string        `json:"token"`
	User  *session.User `json:"user"`
}

func (l *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withRuntime(ctx, func(rt *runtime) error {
		resp, err := rt.gateway.Do(ctx, &gateway.Request{
			Method: http.MethodPost,
			Path:   "/api/auth/login",
			Body:   loginRequest{Email: l.Email, Password: l.Password},
			Public: true,
		})
		if err != nil {
			return fmt.Errorf("failed to log in: %w", err)
		}

		var out loginResponse
		if err := gateway.DecodeJSON(resp, &out); err != nil {
			var statusErr *gateway.StatusError
			if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnauthorized {
				return fmt.Errorf("invalid email or password")
			}
			return fmt.Errorf("failed to log in: %w", err)
		}

		if out.Token == "" {
			return fmt.Errorf("failed to log in: server returned no token")
		}

		if err := rt.state.Login(ctx, out.Token, out.User); err != nil {
			return err
		}

		name := l.Email
		if out.User != nil && out.User.Name != "" {
			name = out.User.Name
		}
		fmt.Fprintf(globals.stdout(), "Logged in as %s\n", name)

		return nil
	})
}
