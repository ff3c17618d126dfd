package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/recipes/internal/telemetry"
	"github.com/wolfeidau/recipes/internal/tokenstore"
)

const (
	// DefaultExpiredMessage is used when SignalExpiry is given no message.
	DefaultExpiredMessage = "Your session has expired. Please log in again."
)

// Snapshot is a point in time copy of the session.
type Snapshot struct {
	Token           string
	User            *User
	ExpiredMessage  string
	Expired         bool
	ExpiryTriggered bool
}

// Option configures a State.
type Option func(*State)

// WithExpiryHandler registers a function called once each time an expiry fires.
// Handlers run after the state change, outside the session lock.
func WithExpiryHandler(fn func(message string)) Option {
	return func(s *State) {
		s.handlers = append(s.handlers, fn)
	}
}

// WithMetrics overrides the global metrics instruments.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *State) {
		s.metrics = m
	}
}

// State is the process wide authentication state.
//
// All reads and writes go through its methods. The token store is only
// written by Login and Logout.
type State struct {
	store    tokenstore.Store
	metrics  *telemetry.Metrics
	handlers []func(message string)

	mu             sync.RWMutex
	token          string
	user           *User
	expiredMessage string
	expired        bool

	// expiryTriggered is the one-shot flag for the current session epoch.
	// Set by the first expiry, cleared only by Login.
	expiryTriggered bool
}

// New hydrates the session from the token store.
//
// A stored user that cannot be parsed is discarded while the token is kept.
// Store read failures are logged and treated as an anonymous session.
func New(ctx context.Context, store tokenstore.Store, opts ...Option) *State {
	s := &State{store: store}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = telemetry.GetMetrics()
	}

	token, err := store.Get(ctx, tokenstore.KeyAuthToken)
	if err != nil {
		if !errors.Is(err, tokenstore.ErrNotFound) {
			log.Warn().Err(err).Msg("failed to read stored token, starting anonymous")
			s.metrics.SessionStoreErrorsTotal.Add(ctx, 1)
		}
		return s
	}
	s.token = token

	raw, err := store.Get(ctx, tokenstore.KeyCurrentUser)
	switch {
	case errors.Is(err, tokenstore.ErrNotFound):
	case err != nil:
		log.Warn().Err(err).Msg("failed to read stored user")
		s.metrics.SessionStoreErrorsTotal.Add(ctx, 1)
	default:
		var user User
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			log.Warn().Err(err).Msg("discarding unparseable stored user")
			s.metrics.SessionCorruptUserRecordTotal.Add(ctx, 1)
		} else {
			s.user = &user
		}
	}

	log.Debug().Bool("hasUser", s.user != nil).Msg("session restored from token store")

	return s
}

// Login persists the credentials and starts a new session epoch.
// It clears any pending expiry and re-arms the one-shot guard.
func (s *State) Login(ctx context.Context, token string, user *User) error {
	if token == "" {
		return fmt.Errorf("login requires a token")
	}

	var profile []byte
	if user != nil {
		data, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("failed to marshal user: %w", err)
		}
		profile = data
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The previous profile goes first so the new token is never stored next to it.
	if err := s.store.Remove(ctx, tokenstore.KeyCurrentUser); err != nil {
		s.metrics.SessionStoreErrorsTotal.Add(ctx, 1)
		return fmt.Errorf("failed to clear stale user: %w", err)
	}

	if err := s.store.Set(ctx, tokenstore.KeyAuthToken, token); err != nil {
		s.metrics.SessionStoreErrorsTotal.Add(ctx, 1)
		return fmt.Errorf("failed to persist token: %w", err)
	}

	if profile != nil {
		if err := s.store.Set(ctx, tokenstore.KeyCurrentUser, string(profile)); err != nil {
			s.metrics.SessionStoreErrorsTotal.Add(ctx, 1)
			s.discardStoredLocked(ctx)
			return fmt.Errorf("failed to persist user: %w", err)
		}
	}

	s.token = token
	s.user = cloneUser(user)
	s.expiredMessage = ""
	s.expired = false
	s.expiryTriggered = false

	s.metrics.SessionLoginsTotal.Add(ctx, 1)

	evt := log.Info()
	if user != nil {
		evt = evt.Str("user", user.ID).Str("role", user.Role)
	}
	evt.Msg("session started")

	return nil
}

// discardStoredLocked removes a partially written login so a reload starts
// anonymous.
func (s *State) discardStoredLocked(ctx context.Context) {
	for _, key := range []string{tokenstore.KeyAuthToken, tokenstore.KeyCurrentUser} {
		if err := s.store.Remove(ctx, key); err != nil {
			log.Error().Err(err).Str("key", key).Msg("failed to discard partial login")
		}
	}
}

// Logout clears the credentials from memory and the token store.
// A pending expiry message is left in place.
func (s *State) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.logoutLocked(ctx)
}

func (s *State) logoutLocked(ctx context.Context) error {
	s.token = ""
	s.user = nil

	var errs []error
	for _, key := range []string{tokenstore.KeyAuthToken, tokenstore.KeyCurrentUser} {
		if err := s.store.Remove(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", key, err))
		}
	}

	s.metrics.SessionLogoutsTotal.Add(ctx, 1)

	if err := errors.Join(errs...); err != nil {
		s.metrics.SessionStoreErrorsTotal.Add(ctx, 1)
		return err
	}

	log.Info().Msg("session ended")

	return nil
}

// SignalExpiry moves the session to Expired.
//
// It is one-shot: while an expiry message is pending further calls do nothing
// and return false. Otherwise it records the message, logs out, notifies the
// expiry handlers and returns true.
func (s *State) SignalExpiry(ctx context.Context, message string) bool {
	return s.signal(ctx, message, false)
}

// signal performs the expiry transition. With anonymousOnly set it also
// refuses when a token is present or the epoch's one-shot is spent, checked
// under the same lock as the transition so a concurrent Login is never undone.
func (s *State) signal(ctx context.Context, message string, anonymousOnly bool) bool {
	if message == "" {
		message = DefaultExpiredMessage
	}

	s.mu.Lock()
	if s.expired {
		s.mu.Unlock()
		s.metrics.SessionExpirySuppressedTotal.Add(ctx, 1)
		log.Debug().Str("message", message).Msg("expiry already pending, ignoring signal")
		return false
	}
	if anonymousOnly && (s.token != "" || s.expiryTriggered) {
		s.mu.Unlock()
		return false
	}

	s.expiredMessage = message
	s.expired = true
	s.expiryTriggered = true

	if err := s.logoutLocked(ctx); err != nil {
		// The in-memory session is already anonymous, a stale token on disk is
		// rejected again on next use.
		log.Error().Err(err).Msg("failed to clear token store on expiry")
	}

	handlers := s.handlers
	s.mu.Unlock()

	s.metrics.SessionExpiriesTotal.Add(ctx, 1)
	log.Warn().Str("message", message).Msg("session expired")

	for _, fn := range handlers {
		fn(message)
	}

	return true
}

// ClearExpiry dismisses a pending expiry message.
// The epoch's one-shot stays spent until the next Login.
func (s *State) ClearExpiry() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expiredMessage = ""
	s.expired = false
}

// IsAuthenticated returns true if a token is present.
func (s *State) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token != ""
}

// IsAdmin returns true if the current user has the admin role.
func (s *State) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.user.IsAdmin()
}

// Token returns the bearer token, or "" when anonymous.
func (s *State) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token
}

// User returns a copy of the current user, or nil.
func (s *State) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return cloneUser(s.user)
}

// ExpiredMessage returns the pending expiry message and whether one is set.
func (s *State) ExpiredMessage() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.expiredMessage, s.expired
}

// IsExpired returns true while an expiry notification is pending.
func (s *State) IsExpired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.expired
}

// ExpiryTriggered returns true once an expiry has fired in the current epoch.
func (s *State) ExpiryTriggered() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.expiryTriggered
}

// Snapshot returns a consistent copy of the whole session.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		Token:           s.token,
		User:            cloneUser(s.user),
		ExpiredMessage:  s.expiredMessage,
		Expired:         s.expired,
		ExpiryTriggered: s.expiryTriggered,
	}
}

func cloneUser(u *User) *User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}
