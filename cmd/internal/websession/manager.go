package websession

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
)

// Navigator performs a full navigation to location.
type Navigator interface {
	Navigate(location string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(location string)

func (f NavigatorFunc) Navigate(location string) { f(location) }

// Manager is the session state manager of one tab.
//
// All operations run under one mutex so a read-then-write never interleaves
// with another operation of the same tab. Other tabs may write the store at
// any time; their writes reach this tab through HandleExternalChange.
type Manager struct {
	mu     sync.Mutex
	log    *slog.Logger
	store  Storage
	nav    Navigation
	router Navigator
	origin string
	home   string
	frame  sync.Locker

	menuOpen bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithOrigin sets the tab identity used to ignore this tab's own changes.
func WithOrigin(origin string) Option {
	return func(m *Manager) {
		if o := strings.TrimSpace(origin); o != "" {
			m.origin = o
		}
	}
}

// WithHome sets the location Logout navigates to. Default "/".
func WithHome(home string) Option {
	return func(m *Manager) {
		if h := strings.TrimSpace(home); h != "" {
			m.home = h
		}
	}
}

// WithFrameLock makes every render hold l while it writes the elements, so a
// host that reads its elements under the same lock never sees half a frame.
func WithFrameLock(l sync.Locker) Option {
	return func(m *Manager) {
		if l != nil {
			m.frame = l
		}
	}
}

// NewManager constructs a manager over store. nav must come from NewNavigation.
func NewManager(store Storage, nav Navigation, router Navigator, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("websession: nil storage")
	}
	if router == nil {
		return nil, errors.New("websession: nil navigator")
	}
	if nav.Primary.Anonymous == nil || nav.Compact.Anonymous == nil {
		return nil, ErrMissingSlot
	}
	m := &Manager{
		log:    slog.Default(),
		store:  store,
		nav:    nav,
		router: router,
		origin: ulid.Make().String(),
		home:   "/",
		frame:  noLock{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Origin returns this tab's identity.
func (m *Manager) Origin() string { return m.origin }

// SaveSession persists token and user back-to-back. Storage errors are
// logged and not returned.
func (m *Manager) SaveSession(ctx context.Context, token string, user User) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, err := encodeUser(user)
	if err != nil {
		m.log.Error("websession.save.encode_fail", "err", err)
		return
	}
	if err := m.store.Set(ctx, map[string]string{TokenKey: token, UserKey: raw}); err != nil {
		m.log.Error("websession.storage.fail", "op", "save", "err", err)
	}
}

// GetSession returns the stored session. Partial or unparsable state is
// cleared and reported as absent.
func (m *Manager) GetSession(ctx context.Context) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(ctx)
}

func (m *Manager) getLocked(ctx context.Context) (Session, bool) {
	token, hasToken, err := m.store.Get(ctx, TokenKey)
	if err != nil {
		m.log.Error("websession.storage.fail", "op", "get", "key", TokenKey, "err", err)
		return Session{}, false
	}
	raw, hasUser, err := m.store.Get(ctx, UserKey)
	if err != nil {
		m.log.Error("websession.storage.fail", "op", "get", "key", UserKey, "err", err)
		return Session{}, false
	}

	if !hasToken && !hasUser {
		return Session{}, false
	}
	if token == "" || !hasUser {
		m.log.Warn("websession.session.partial", "has_token", hasToken, "has_user", hasUser)
		m.clearLocked(ctx)
		return Session{}, false
	}

	user, err := decodeUser(raw)
	if err != nil {
		m.log.Warn("websession.session.corrupt", "err", err)
		m.clearLocked(ctx)
		return Session{}, false
	}
	return Session{Token: token, User: user}, true
}

// ClearSession removes both keys. Idempotent.
func (m *Manager) ClearSession(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked(ctx)
}

func (m *Manager) clearLocked(ctx context.Context) {
	if err := m.store.Remove(ctx, TokenKey, UserKey); err != nil {
		m.log.Error("websession.storage.fail", "op", "clear", "err", err)
	}
}

// IsAuthenticated reports whether a non-empty token is stored. The token is
// not validated and the user profile is not read.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	token, ok, err := m.store.Get(ctx, TokenKey)
	if err != nil {
		m.log.Error("websession.storage.fail", "op", "get", "key", TokenKey, "err", err)
		return false
	}
	return ok && token != ""
}

// RenderNavigation projects the current session onto both surfaces.
func (m *Manager) RenderNavigation(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renderLocked(ctx)
}

func (m *Manager) renderLocked(ctx context.Context) {
	s, ok := m.getLocked(ctx)
	m.frame.Lock()
	m.nav.render(s, ok)
	m.frame.Unlock()
}

// Logout clears the session, renders the anonymous state and navigates home.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	m.clearLocked(ctx)
	m.renderLocked(ctx)
	m.setMenuLocked(false)
	home := m.home
	m.mu.Unlock()

	m.log.Info("websession.logout", "origin", m.origin)
	m.router.Navigate(home)
}

// ToggleMenu flips the menu container and returns the new state. It is a
// no-op returning false when no menu is bound.
func (m *Manager) ToggleMenu() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.nav.Menu == nil {
		return false
	}
	m.setMenuLocked(!m.menuOpen)
	return m.menuOpen
}

func (m *Manager) setMenuLocked(open bool) {
	m.menuOpen = open
	if m.nav.Menu != nil {
		m.frame.Lock()
		m.nav.Menu.SetVisible(open)
		m.frame.Unlock()
	}
}

type noLock struct{}

func (noLock) Lock()   {}
func (noLock) Unlock() {}

// HandleExternalChange re-renders navigation after another tab wrote a
// session key. An empty key means the other tab cleared the whole store.
func (m *Manager) HandleExternalChange(ctx context.Context, c Change) {
	if c.Origin == m.origin {
		return
	}
	if c.Key != "" && !IsSessionKey(c.Key) {
		return
	}
	m.log.Debug("websession.external_change", "key", c.Key, "origin", c.Origin)
	m.RenderNavigation(ctx)
}

// Watch routes feed notifications to HandleExternalChange until ctx ends or
// the returned func is called.
func (m *Manager) Watch(ctx context.Context, feed ChangeFeed) (func(), error) {
	if feed == nil {
		return nil, errors.New("websession: nil change feed")
	}
	return feed.Subscribe(ctx, m.origin, func(c Change) {
		m.HandleExternalChange(ctx, c)
	})
}
