package session

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/testnav/internal/itemstore"
	"github.com/mind-engage/testnav/internal/jump"
	"github.com/mind-engage/testnav/internal/navigator"
	syncx "github.com/mind-engage/testnav/internal/sync"
	"github.com/mind-engage/testnav/internal/testctx"
	"github.com/mind-engage/testnav/internal/testmap"
)

var (
	ErrNotFound    = errors.New("session: not found")
	ErrBadPin      = errors.New("session: proctor pin rejected")
	ErrNoFirstItem = errors.New("session: test map has no items")
)

// Session owns everything scoped to one running test: the authoritative
// map, the jump service, the navigator and the item cache. One instance per
// test-taker per test.
type Session struct {
	ID     string
	TestID string
	UserID string

	mu    sync.Mutex
	m     *testmap.TestMap
	jumps *jump.Service
	nav   *navigator.Navigator
}

// Navigate forwards to the navigator. The session mutex serializes
// navigation against map patches arriving from the sync watcher; the map is
// mutated in place on both paths.
func (s *Session) Navigate(ctx context.Context, req navigator.Request) (testctx.TestContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav.Navigate(ctx, req)
}

// Context returns the current test context snapshot.
func (s *Session) Context() testctx.TestContext { return s.nav.Context() }

// Jumps returns the navigation history so far.
func (s *Session) Jumps() []jump.Entry { return s.jumps.Entries() }

// ApplyMap merges a map payload and installs the authoritative reference.
func (s *Session) ApplyMap(incoming *testmap.TestMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = testmap.Apply(s.m, incoming)
	s.nav.UpdateTestMap(s.m)
}

// Map returns the authoritative test map.
func (s *Session) Map() *testmap.TestMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m
}

// Manager creates, resumes and tears down sessions.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	stores     StoreFactory
	events     *syncx.EventRepo // nil when no DB is attached
	tokens     *TokenIssuer
	proctorPin string // bcrypt hash
}

// StoreFactory builds the per-session item store.
type StoreFactory func(sessionID string) itemstore.Store

func NewManager(stores StoreFactory, events *syncx.EventRepo, tokens *TokenIssuer, proctorPinHash string) *Manager {
	return &Manager{
		sessions:   map[string]*Session{},
		stores:     stores,
		events:     events,
		tokens:     tokens,
		proctorPin: proctorPinHash,
	}
}

// Start builds a session around a full-scope map payload, lands on the
// first item and returns the session plus its resume token.
func (m *Manager) Start(ctx context.Context, testID, userID string, tm *testmap.TestMap) (*Session, string, error) {
	first, ok := tm.ItemAt(0)
	if !ok {
		return nil, "", ErrNoFirstItem
	}

	s := &Session{
		ID:     uuid.NewString(),
		TestID: testID,
		UserID: userID,
		m:      tm,
		jumps:  jump.NewService(),
	}
	s.nav = navigator.New(s.jumps, m.stores(s.ID), tm)
	if m.events != nil {
		events, sid := m.events, s.ID
		s.nav.SetObserver(func(ctx context.Context, e jump.Entry, _ testctx.TestContext) {
			if err := events.AppendJump(ctx, sid, e); err != nil {
				// The in-memory table stays authoritative; a log gap only
				// degrades replay fidelity.
				log.Printf("session %s: event log append failed: %v", sid, err)
			}
		})
	}

	if _, err := s.nav.Init(ctx, first.Item); err != nil {
		return nil, "", err
	}

	token, err := m.tokens.Issue(s.ID, testID, userID)
	if err != nil {
		return nil, "", err
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s, token, nil
}

// Resume rebuilds a session from the event log using a resume token and the
// cached map payload.
func (m *Manager) Resume(ctx context.Context, token string, tm *testmap.TestMap) (*Session, error) {
	claims, err := m.tokens.Parse(token)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if s, ok := m.sessions[claims.SessionID]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	s := &Session{
		ID:     claims.SessionID,
		TestID: claims.TestID,
		UserID: claims.Subject,
		m:      tm,
		jumps:  jump.NewService(),
	}
	s.nav = navigator.New(s.jumps, m.stores(s.ID), tm)

	if m.events != nil {
		if err := m.events.Replay(ctx, s.ID, s.jumps); err != nil {
			return nil, err
		}
	}
	target, ok := s.jumps.LastJump()
	if !ok {
		first, found := tm.ItemAt(0)
		if !found {
			return nil, ErrNoFirstItem
		}
		target = jump.Entry{Part: first.Part, Section: first.Section, Item: first.Item, Position: first.Position}
	}
	if m.events != nil {
		events, sid := m.events, s.ID
		s.nav.SetObserver(func(ctx context.Context, e jump.Entry, _ testctx.TestContext) {
			if err := events.AppendJump(ctx, sid, e); err != nil {
				log.Printf("session %s: event log append failed: %v", sid, err)
			}
		})
	}
	if _, err := s.nav.Init(ctx, target.Item); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s, nil
}

// Get looks up a live session.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Reset clears a session's jump table and lands back on the first item.
// Gated by the proctor PIN.
func (m *Manager) Reset(ctx context.Context, sessionID, pin string) (*Session, error) {
	if err := bcrypt.CompareHashAndPassword([]byte(m.proctorPin), []byte(pin)); err != nil {
		return nil, ErrBadPin
	}
	s, err := m.Get(sessionID)
	if err != nil {
		return nil, err
	}
	s.jumps.Clear()
	first, ok := s.Map().ItemAt(0)
	if !ok {
		return nil, ErrNoFirstItem
	}
	if _, err := s.nav.Init(ctx, first.Item); err != nil {
		return nil, err
	}
	return s, nil
}

// ApplyMapAll hands a freshly synced map payload to every live session,
// e.g. when the watcher sees the cached payload change.
func (m *Manager) ApplyMapAll(incoming *testmap.TestMap) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		// Each session gets its own copy: maps are mutated in place by
		// stats updates and must not be shared across sessions.
		s.ApplyMap(incoming.Clone())
	}
}

// Close tears a session down. Its item store rows and event log survive for
// later resume or reconciliation.
func (m *Manager) Close(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}
