package client

import (
	"context"
	"errors"
	"sync"
)

// State is the session lifecycle state. The machine is Loading until the
// first Restore completes, then moves between Anonymous and Authenticated.
type State int

const (
	StateLoading State = iota
	StateAnonymous
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	}
	return "unknown"
}

// Decision is the outcome of an access check.
type Decision int

const (
	// Allow grants access to the requested view.
	Allow Decision = iota
	// DenyLogin denies access; the caller should go to the login screen.
	DenyLogin
	// DenyHome denies access for lack of the admin role; the caller should
	// fall back to the home view.
	DenyHome
)

// AuthAPI is the credential-store contract the session manager depends on.
// *Client satisfies it.
type AuthAPI interface {
	IssueToken(ctx context.Context, username, password string) (string, error)
	ResolveToken(ctx context.Context, token string) (*User, error)
}

// SessionManager holds the one authoritative answer to "who is the current
// user". It is an explicit instance handed to consumers, never a global.
//
// Responses from credential-store calls that finish after a newer Login or
// Logout has already superseded them are discarded: every call snapshots the
// generation counter up front and only applies its result if the counter is
// unchanged.
type SessionManager struct {
	mu    sync.Mutex
	api   AuthAPI
	store TokenStore

	state State
	user  *User
	token string
	gen   uint64
}

func NewSessionManager(api AuthAPI, store TokenStore) *SessionManager {
	return &SessionManager{
		api:   api,
		store: store,
		state: StateLoading,
	}
}

// State returns the current session state.
func (m *SessionManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// User returns the authenticated user, or nil.
func (m *SessionManager) User() *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// Token returns the current bearer token, or "".
func (m *SessionManager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// Restore resolves a previously persisted token, if any. It always leaves the
// session out of the Loading state: Authenticated on success, Anonymous on
// any failure (missing token, expired token, deactivated user, network
// error). Failures also discard the persisted token.
func (m *SessionManager) Restore(ctx context.Context) {
	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()

	token, err := m.store.Load()
	if err != nil || token == "" {
		m.apply(gen, StateAnonymous, nil, "")
		return
	}

	user, err := m.api.ResolveToken(ctx, token)
	if err != nil {
		if m.apply(gen, StateAnonymous, nil, "") {
			m.store.Clear()
		}
		return
	}

	m.apply(gen, StateAuthenticated, user, token)
}

// Login exchanges credentials for a token, persists it and resolves the user
// profile. All failure causes (wrong credentials, deactivated account,
// transport error) collapse to false and the session stays Anonymous.
func (m *SessionManager) Login(ctx context.Context, username, password string) bool {
	m.mu.Lock()
	m.gen++ // supersede any in-flight restore or login
	gen := m.gen
	m.mu.Unlock()

	token, err := m.api.IssueToken(ctx, username, password)
	if err != nil {
		m.apply(gen, StateAnonymous, nil, "")
		return false
	}

	if err := m.store.Save(token); err != nil {
		m.apply(gen, StateAnonymous, nil, "")
		return false
	}

	user, err := m.api.ResolveToken(ctx, token)
	if err != nil {
		if m.apply(gen, StateAnonymous, nil, "") {
			m.store.Clear()
		}
		return false
	}

	return m.apply(gen, StateAuthenticated, user, token)
}

// Logout discards the persisted token and moves to Anonymous immediately. No
// server round trip is required for it to succeed.
func (m *SessionManager) Logout() {
	m.mu.Lock()
	m.gen++
	m.state = StateAnonymous
	m.user = nil
	m.token = ""
	m.mu.Unlock()

	m.store.Clear()
}

// Authorize is the single access decision for protected views. Loading
// denies: callers are expected to wait for Restore before routing.
func (m *SessionManager) Authorize(requireAdmin bool) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateAuthenticated {
		return DenyLogin
	}
	if requireAdmin && !m.user.IsAdmin {
		return DenyHome
	}
	return Allow
}

// HandleAuthError inspects an error from any authenticated call. An
// authorization failure forces the session to Anonymous, discards the token
// and returns true; other errors leave the session untouched.
func (m *SessionManager) HandleAuthError(err error) bool {
	if !errors.Is(err, ErrUnauthorized) {
		return false
	}
	m.Logout()
	return true
}

// apply commits a state transition if gen is still current. Returns false
// when a newer Login or Logout has superseded the caller.
func (m *SessionManager) apply(gen uint64, state State, user *User, token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		return false
	}
	m.state = state
	m.user = user
	m.token = token
	return true
}
