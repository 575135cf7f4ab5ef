package attendance

import (
	"sync"

	"github.com/tidycrew/fieldops-backend-go/internal/domain/attendance"
	"github.com/tidycrew/fieldops-backend-go/internal/domain/shift"
	"github.com/tidycrew/fieldops-backend-go/internal/domain/site"
	"github.com/tidycrew/fieldops-backend-go/internal/pkg/geocode"
	"github.com/tidycrew/fieldops-backend-go/internal/service/location"
	"github.com/tidycrew/fieldops-backend-go/internal/service/resolver"
)

// Manager scopes one Session per cleaner. Supplying a different shift
// context replaces the cleaner's session: the old one is closed (stopping
// its monitoring and dropping its coordinate cache) so nothing stale leaks
// into the new assignment.
type Manager struct {
	records   attendance.Repository
	shifts    shift.Repository
	sites     site.Repository
	geocoder  geocode.Geocoder
	locations location.Provider
	notifier  Notifier
	cfg       SessionConfig

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(
	records attendance.Repository,
	shifts shift.Repository,
	sites site.Repository,
	geocoder geocode.Geocoder,
	locations location.Provider,
	notifier Notifier,
	cfg SessionConfig,
) *Manager {
	return &Manager{
		records:   records,
		shifts:    shifts,
		sites:     sites,
		geocoder:  geocoder,
		locations: locations,
		notifier:  notifier,
		cfg:       cfg,
		sessions:  make(map[string]*Session),
	}
}

// Open returns the cleaner's session for the given shift context, creating
// it or replacing a session bound to a different shift.
func (m *Manager) Open(cleaner Cleaner, sc shift.Context) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[cleaner.ID]; ok {
		if existing.Shift().ShiftID == sc.ShiftID {
			return existing
		}
		existing.Close()
	}

	// Each session gets its own resolver so the coordinate cache is scoped
	// to the active shift.
	session := NewSession(
		cleaner,
		sc,
		m.records,
		m.shifts,
		resolver.NewResolver(m.sites, m.geocoder),
		m.locations,
		m.notifier,
		m.cfg,
	)
	m.sessions[cleaner.ID] = session
	return session
}

// Get returns the cleaner's active session, if any.
func (m *Manager) Get(cleanerID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[cleanerID]
	return s, ok
}

// Close tears down and forgets the cleaner's session.
func (m *Manager) Close(cleanerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[cleanerID]; ok {
		s.Close()
		delete(m.sessions, cleanerID)
	}
}
