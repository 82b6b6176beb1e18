package user

import (
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultSessionTTL is how long a verified admin session lasts
const DefaultSessionTTL = 12 * time.Hour

// Manager tracks admin sessions keyed by hostmask.
// Sessions live in memory only and are lost on restart.
type Manager struct {
	mu           sync.RWMutex
	passwordHash string
	sessions     map[string]time.Time // hostmask -> expiry
	sessionTTL   time.Duration
	clock        clockwork.Clock
}

// NewManager creates a manager verifying against passwordHash
func NewManager(passwordHash string, sessionTTL time.Duration, clock clockwork.Clock) *Manager {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{
		passwordHash: passwordHash,
		sessions:     make(map[string]time.Time),
		sessionTTL:   sessionTTL,
		clock:        clock,
	}
}

// HasAdminPassword reports whether admin verification is possible at all
func (m *Manager) HasAdminPassword() bool {
	return m.passwordHash != ""
}

// Verify checks password and, on success, opens an admin session for hostmask
func (m *Manager) Verify(hostmask, password string) (bool, error) {
	ok, err := VerifyPassword(m.passwordHash, password)
	if err != nil || !ok {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[normalizeHostmask(hostmask)] = m.clock.Now().Add(m.sessionTTL)

	return true, nil
}

// GetPermissionLevel returns LevelAdmin for hostmasks with a live session
func (m *Manager) GetPermissionLevel(hostmask string) PermissionLevel {
	if m.IsAdmin(hostmask) {
		return LevelAdmin
	}
	return LevelNormal
}

// IsAdmin reports whether hostmask has a live admin session
func (m *Manager) IsAdmin(hostmask string) bool {
	m.mu.RLock()
	expiry, ok := m.sessions[normalizeHostmask(hostmask)]
	m.mu.RUnlock()

	return ok && m.clock.Now().Before(expiry)
}

// Revoke ends the session for hostmask
func (m *Manager) Revoke(hostmask string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := normalizeHostmask(hostmask)
	if _, ok := m.sessions[key]; !ok {
		return false
	}
	delete(m.sessions, key)
	return true
}

// PruneExpired removes expired sessions and returns how many were dropped
func (m *Manager) PruneExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	removed := 0
	for hostmask, expiry := range m.sessions {
		if !now.Before(expiry) {
			delete(m.sessions, hostmask)
			removed++
		}
	}
	return removed
}

// SessionCount returns the number of live sessions
func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.clock.Now()
	count := 0
	for _, expiry := range m.sessions {
		if now.Before(expiry) {
			count++
		}
	}
	return count
}

func normalizeHostmask(hostmask string) string {
	return strings.ToLower(strings.TrimSpace(hostmask))
}
