// Package session holds the single current AuthToken and keeps the durable
// copy in lockstep with the in-memory one. The store is constructed once at
// startup and handed by reference to everything that needs it.
package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cmswift/authbroker/internal/authtoken"
	"github.com/cmswift/authbroker/internal/backend"
	"github.com/cmswift/authbroker/internal/state"
)

// slotKey is the well-known single-slot key for the persisted session.
const slotKey = "session:current"

// unregisterTimeout bounds the best-effort server-side teardown so logout is
// never blocked by a slow or dead backend.
const unregisterTimeout = 5 * time.Second

// PasswordAuthenticator exchanges a username and password for a token.
type PasswordAuthenticator interface {
	Login(ctx context.Context, username, password, repositoryID string) (*authtoken.AuthToken, error)
}

// errRenewalSuperseded rejects a publish from a renewal loop that is no
// longer the session's active one.
var errRenewalSuperseded = errors.New("session renewal superseded")

type Store struct {
	mu          sync.RWMutex
	current     *authtoken.AuthToken
	renewCancel context.CancelFunc
	renewGen    uint64

	persist     state.Store
	credentials PasswordAuthenticator
	backend     *backend.Client
	tokenHeader string
	ttl         time.Duration
	logger      *slog.Logger
}

// NewStore hydrates the session from the durable slot. A record that fails
// to parse is discarded and its slot cleared; hydration never fails the
// constructor.
func NewStore(persist state.Store, credentials PasswordAuthenticator, be *backend.Client, tokenHeader string, ttl time.Duration, logger *slog.Logger) *Store {
	s := &Store{
		persist:     persist,
		credentials: credentials,
		backend:     be,
		tokenHeader: tokenHeader,
		ttl:         ttl,
		logger:      logger,
	}
	s.hydrate()
	return s
}

func (s *Store) hydrate() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := s.persist.Get(ctx, slotKey)
	if err != nil {
		return
	}

	var tok authtoken.AuthToken
	if err := json.Unmarshal(data, &tok); err != nil || !tok.Valid() {
		s.logger.Warn("discarding unreadable persisted session")
		s.persist.Delete(ctx, slotKey)
		return
	}

	s.current = &tok
}

// Login exchanges credentials for a token, then publishes and persists it.
func (s *Store) Login(ctx context.Context, username, password, repositoryID string) (*authtoken.AuthToken, error) {
	tok, err := s.credentials.Login(ctx, username, password, repositoryID)
	if err != nil {
		return nil, err
	}

	if err := s.Set(ctx, tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// Set publishes a token produced by an interactive sign-in flow. Replacement
// is always wholesale, and any renewal loop bound to the previous session is
// cancelled so it cannot overwrite the new one later.
func (s *Store) Set(ctx context.Context, tok *authtoken.AuthToken) error {
	s.cancelRenewal()
	return s.publish(ctx, tok)
}

// publish writes the durable copy first and only then the in-memory one, so
// a persist failure leaves both views on the previous session.
func (s *Store) publish(ctx context.Context, tok *authtoken.AuthToken) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return authtoken.EncodingFailure(err)
	}

	if err := s.persist.Set(ctx, slotKey, data, s.ttl); err != nil {
		s.logger.Error("failed to persist session", "error", err)
		return &authtoken.Error{Kind: authtoken.KindNetwork, Message: "failed to persist session", Err: err}
	}

	s.mu.Lock()
	s.current = tok
	s.mu.Unlock()
	return nil
}

// BindRenewal registers cancel as the session's active renewal loop,
// cancelling any previous one, and returns the publish function for that
// loop. A published token replaces the session only while the loop is still
// the active one and a session is still current; once the loop has been
// superseded by a logout or a new sign-in its publishes fail, which shuts
// the loop down.
func (s *Store) BindRenewal(cancel context.CancelFunc) func(context.Context, *authtoken.AuthToken) error {
	s.mu.Lock()
	if s.renewCancel != nil {
		s.renewCancel()
	}
	s.renewCancel = cancel
	s.renewGen++
	gen := s.renewGen
	s.mu.Unlock()

	return func(ctx context.Context, tok *authtoken.AuthToken) error {
		s.mu.Lock()
		stale := s.renewGen != gen || s.current == nil
		s.mu.Unlock()
		if stale {
			return errRenewalSuperseded
		}
		return s.publish(ctx, tok)
	}
}

// cancelRenewal stops the active renewal loop, if any, and bumps the
// generation so an in-flight publish from it is rejected.
func (s *Store) cancelRenewal() {
	s.mu.Lock()
	if s.renewCancel != nil {
		s.renewCancel()
		s.renewCancel = nil
	}
	s.renewGen++
	s.mu.Unlock()
}

// Current returns the active token, or nil when signed out.
func (s *Store) Current() *authtoken.AuthToken {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	tok := *s.current
	return &tok
}

// Logout stops any active renewal loop, fires a best-effort server-side
// unregister, and then clears both the in-memory and persisted session
// regardless of the server outcome.
func (s *Store) Logout(ctx context.Context) {
	s.cancelRenewal()

	tok := s.Current()

	if tok != nil {
		unregCtx, cancel := context.WithTimeout(ctx, unregisterTimeout)
		defer cancel()
		if err := s.backend.Unregister(unregCtx, tok); err != nil {
			s.logger.Warn("server-side session teardown failed", "error", err)
		}
	}

	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	if err := s.persist.Delete(ctx, slotKey); err != nil {
		s.logger.Warn("failed to clear persisted session", "error", err)
	}
}

// AuthHeaders returns the headers that attach the session to outgoing
// repository requests: the custom token header plus a basic-auth pair of
// username and token, so either server-side extraction strategy succeeds.
// An empty map is returned when no session exists.
func (s *Store) AuthHeaders() map[string]string {
	tok := s.Current()
	if tok == nil {
		return map[string]string{}
	}

	basic := base64.StdEncoding.EncodeToString([]byte(tok.Username + ":" + tok.Token))
	return map[string]string{
		s.tokenHeader:   tok.Token,
		"Authorization": "Basic " + basic,
	}
}
