package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type WhoamiCmd struct{}

func (w *WhoamiCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withRuntime(ctx, func(rt *runtime) error {
		out := globals.stdout()

		if !rt.state.IsAuthenticated() {
			fmt.Fprintln(out, "Not logged in.")
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

		if user := rt.state.User(); user != nil {
			fmt.Fprintf(tw, "Name:\t%s\n", user.Name)
			fmt.Fprintf(tw, "Email:\t%s\n", user.Email)
			fmt.Fprintf(tw, "Role:\t%s\n", user.Role)
		} else {
			fmt.Fprintln(tw, "User:\tunknown (profile not stored)")
		}
		fmt.Fprintf(tw, "Admin:\t%t\n", rt.state.IsAdmin())

		if expiresAt, ok := tokenExpiry(rt.state.Token()); ok {
			status := "valid"
			if time.Now().After(expiresAt) {
				status = "expired, run login again"
			}
			fmt.Fprintf(tw, "Token expires:\t%s (%s)\n", expiresAt.Local().Format(time.RFC1123), status)
		}

		return tw.Flush()
	})
}

// tokenExpiry reads the exp claim when the bearer token happens to be a JWT.
// The signature is not verified, this is informational only: the API remains
// the judge of validity.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
