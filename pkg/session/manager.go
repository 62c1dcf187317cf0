// Package session identifies browsers with a signed and encrypted cookie.
// The cookie only carries who signed in and when; the dashboard working
// state of each session lives in a bounded in-memory table keyed by the
// session id and is gone on expiry or restart.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"labmap/pkg/filter"
	"labmap/pkg/navigation"
)

const (
	defaultCookieName  = "labmap_session"
	defaultCookiePath  = "/"
	defaultLifetime    = 12 * time.Hour
	defaultIdleTimeout = 2 * time.Hour
	defaultMaxSessions = 10000

	lockStripes = 64
)

// ErrExpired indicates the stored session is past its idle or absolute limit.
var ErrExpired = errors.New("session expired")

// ErrInvalidConfig indicates the manager was initialised with missing or invalid options.
var ErrInvalidConfig = errors.New("session: invalid config")

// Data is the full cookie payload. Its size does not depend on what the
// user searched or selected.
type Data struct {
	ID         string    `json:"id"`
	User       string    `json:"user,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	LastActive time.Time `json:"lastActive"`
	ExpiresAt  time.Time `json:"expiresAt,omitempty"`
}

// working is the dashboard state of one session. A nil Filter means the
// map-ready defaults.
type working struct {
	Filter *filter.State
	Card   navigation.Card
}

// Session holds mutable state for the current request lifecycle.
type Session struct {
	data    Data
	states  *expirable.LRU[string, working]
	pending *working
}

// Config controls cookie encoding and lifecycle limits.
type Config struct {
	CookieName   string
	HashKey      []byte
	BlockKey     []byte
	CookiePath   string
	CookieSecure bool

	IdleTimeout time.Duration
	Lifetime    time.Duration
	// MaxSessions bounds the working-state table; the least recently
	// used session falls back to defaults when it overflows.
	MaxSessions int
	Now         func() time.Time
}

// Manager decodes sessions from cookies and owns their working state.
type Manager struct {
	cfg    Config
	codec  *securecookie.SecureCookie
	now    func() time.Time
	states *expirable.LRU[string, working]
	locks  [lockStripes]sync.Mutex
}

// NewManager constructs a Manager using the provided configuration.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.HashKey) < 32 {
		return nil, fmt.Errorf("%w: hash key must be at least 32 bytes", ErrInvalidConfig)
	}
	switch len(cfg.BlockKey) {
	case 0, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: block key must be 16, 24 or 32 bytes", ErrInvalidConfig)
	}
	if cfg.CookieName == "" {
		cfg.CookieName = defaultCookieName
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = defaultCookiePath
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = defaultLifetime
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = defaultMaxSessions
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}

	codec := securecookie.New(cfg.HashKey, cfg.BlockKey)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(int(cfg.Lifetime.Seconds()))

	return &Manager{
		cfg:    cfg,
		codec:  codec,
		now:    nowFn,
		states: expirable.NewLRU[string, working](cfg.MaxSessions, nil, cfg.IdleTimeout),
	}, nil
}

// Load retrieves the session from the request. A missing or undecodable
// cookie yields a fresh anonymous session; an expired one yields
// ErrExpired.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil {
		return m.New(), nil
	}

	var stored Data
	if err := m.codec.Decode(m.cfg.CookieName, cookie.Value, &stored); err != nil {
		return m.New(), nil
	}
	if stored.ID == "" {
		return m.New(), nil
	}

	sess := &Session{data: stored, states: m.states}
	if m.isExpired(sess, m.now()) {
		return nil, ErrExpired
	}
	return sess, nil
}

// Save stores the working state set during the request and refreshes
// the cookie.
func (m *Manager) Save(w http.ResponseWriter, sess *Session) error {
	if sess == nil {
		return errors.New("session: nil session")
	}
	if sess.pending != nil {
		m.states.Add(sess.data.ID, *sess.pending)
		sess.pending = nil
	}

	sess.Touch(m.now())
	encoded, err := m.codec.Encode(m.cfg.CookieName, sess.data)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	cookie := &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    encoded,
		Path:     m.cfg.CookiePath,
		Secure:   m.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if !sess.data.ExpiresAt.IsZero() {
		expiry := sess.data.ExpiresAt.UTC()
		cookie.Expires = expiry
		if remaining := expiry.Sub(m.now()); remaining <= 0 {
			cookie.MaxAge = -1
		} else {
			cookie.MaxAge = int(remaining.Round(time.Second).Seconds())
		}
	}
	http.SetCookie(w, cookie)
	return nil
}

// Destroy drops the working state of the request's session, if the
// cookie still decodes, and clears the cookie.
func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(m.cfg.CookieName); err == nil {
		var stored Data
		if m.codec.Decode(m.cfg.CookieName, cookie.Value, &stored) == nil && stored.ID != "" {
			m.states.Remove(stored.ID)
		}
	}
	http.SetCookie(w, m.expiredCookie())
}

// Lock serializes requests of one session so that a state change is
// read, applied and stored before the next one starts. Call the returned
// func to release.
func (m *Manager) Lock(id string) func() {
	mu := &m.locks[xxhash.Sum64String(id)%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// Active is the number of sessions holding working state.
func (m *Manager) Active() int { return m.states.Len() }

// New returns a pristine anonymous session.
func (m *Manager) New() *Session {
	now := m.now().UTC()
	return &Session{
		data: Data{
			ID:         uuid.NewString(),
			CreatedAt:  now,
			LastActive: now,
			ExpiresAt:  now.Add(m.cfg.Lifetime),
		},
		states: m.states,
	}
}

func (m *Manager) isExpired(sess *Session, now time.Time) bool {
	now = now.UTC()
	if !sess.data.ExpiresAt.IsZero() && now.After(sess.data.ExpiresAt.UTC()) {
		return true
	}
	last := sess.data.LastActive
	if last.IsZero() {
		last = sess.data.CreatedAt
	}
	return !last.IsZero() && now.Sub(last) > m.cfg.IdleTimeout
}

func (m *Manager) expiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     m.cfg.CookiePath,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   m.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// ID returns the stable session identifier.
func (s *Session) ID() string { return s.data.ID }

// User is the signed-in identity, empty for anonymous sessions.
func (s *Session) User() string { return s.data.User }

// Authenticated reports whether the credential gate was passed.
func (s *Session) Authenticated() bool { return s.data.User != "" }

// SignIn records the identity and resets the dashboard state: a new login
// starts from the map-ready defaults.
func (s *Session) SignIn(user string) {
	s.data.User = user
	s.pending = &working{}
}

func (s *Session) current() working {
	if s.pending != nil {
		return *s.pending
	}
	if s.states == nil {
		return working{}
	}
	w, _ := s.states.Get(s.data.ID)
	return w
}

// Filter returns the stored filter state, if any.
func (s *Session) Filter() (filter.State, bool) {
	w := s.current()
	if w.Filter == nil {
		return filter.State{}, false
	}
	return *w.Filter, true
}

// Card returns the stored detail card state.
func (s *Session) Card() navigation.Card { return s.current().Card }

// SetDashboard records the dashboard working state; Save stores it.
func (s *Session) SetDashboard(st filter.State, card navigation.Card) {
	s.pending = &working{Filter: &st, Card: card}
}

// Touch updates the last active timestamp.
func (s *Session) Touch(now time.Time) {
	now = now.UTC()
	if now.After(s.data.LastActive) {
		s.data.LastActive = now
	}
}
