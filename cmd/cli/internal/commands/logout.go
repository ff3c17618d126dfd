package commands

import (
	"context"
	"fmt"
)

type LogoutCmd struct{}

func (l *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withRuntime(ctx, func(rt *runtime) error {
		if !rt.state.IsAuthenticated() {
			fmt.Fprintln(globals.stdout(), "Not logged in.")
			return nil
		}

		if err := rt.state.Logout(ctx); err != nil {
			return fmt.Errorf("failed to log out: %w", err)
		}
		rt.state.ClearExpiry()

		fmt.Fprintln(globals.stdout(), "Logged out.")
		return nil
	})
}
