package session

import "context"

// LoginPromptMessage is shown when an anonymous user reaches a feature that
// needs an account.
const LoginPromptMessage = "Please log in to continue."

// Guard gates features that require an authenticated user.
//
// It never competes with an expiry that already fired: once the session has
// a pending expiry, or has prompted once in this epoch, it only blocks.
type Guard struct {
	state *State
}

// NewGuard creates a guard over the session.
func NewGuard(state *State) *Guard {
	return &Guard{state: state}
}

// RequiresAuth returns true if the feature may proceed.
//
// When the session is anonymous, nothing is pending and this is the first check
// since the last login, a showPrompt call signals a login prompt through the
// session. Every other blocked call returns false without side effects.
func (g *Guard) RequiresAuth(ctx context.Context, showPrompt bool) bool {
	snap := g.state.Snapshot()
	if snap.Token != "" && !snap.Expired {
		return true
	}

	if snap.Expired || !showPrompt {
		return false
	}

	g.state.signal(ctx, LoginPromptMessage, true)

	return false
}

// IsSessionExpired returns true while an expiry notification is pending.
func (g *Guard) IsSessionExpired() bool {
	return g.state.IsExpired()
}
