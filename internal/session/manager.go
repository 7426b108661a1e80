package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-pos/internal/cart"
	"github.com/noah-isme/backend-pos/internal/scan"
)

// ErrNotFound indicates the requested session does not exist.
var ErrNotFound = errors.New("session: not found")

// Manager creates and resolves checkout sessions by identifier. Each session
// is isolated; the manager only guards its own registry.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	resolver *scan.Resolver
	recovery *Recovery
	now      func() time.Time
}

// ManagerConfig groups Manager dependencies. Resolver is the shared scan
// resolver; Recovery is optional.
type ManagerConfig struct {
	Resolver *scan.Resolver
	Recovery *Recovery
	Now      func() time.Time
}

// NewManager constructs an empty session registry.
func NewManager(cfg ManagerConfig) *Manager {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		sessions: make(map[string]*Session),
		resolver: cfg.Resolver,
		recovery: cfg.Recovery,
		now:      now,
	}
}

// Create opens a new session with a fresh identifier.
func (m *Manager) Create() *Session {
	return m.register(uuid.NewString(), nil)
}

// Get resolves a session by id. Unknown ids are looked up in the recovery
// store so a cart survives a process restart; a recovery miss surfaces
// ErrNotFound.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return s, nil
	}
	if m.recovery == nil {
		return nil, ErrNotFound
	}
	lines, found, err := m.recovery.Load(ctx, id)
	if err != nil || !found {
		return nil, ErrNotFound
	}
	return m.register(id, lines), nil
}

// Drop closes and forgets a session, removing its recovery snapshot.
func (m *Manager) Drop(ctx context.Context, id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
	if m.recovery != nil {
		_ = m.recovery.Drop(ctx, id)
	}
}

func (m *Manager) register(id string, restored []cart.Line) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[id]; ok {
		return existing
	}
	s := &Session{
		ID:        id,
		CreatedAt: m.now(),
		store:     cart.NewStore(),
		recovery:  m.recovery,
	}
	if len(restored) > 0 {
		s.store.Restore(restored)
	}
	if m.resolver != nil {
		src := make(chan string, scanSourceBuffer)
		s.scanSrc = src
		resolver := *m.resolver
		resolver.Sink = lockedSink{s: s}
		s.resolver = &resolver
		// the scan stream outlives the creating request, so it is not bound
		// to the request context; Close stops it
		s.scanSess = resolver.Open(context.Background(), src)
	}
	m.sessions[id] = s
	return s
}
