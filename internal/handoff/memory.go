package handoff

import (
	"context"
	"sync"

	"github.com/DoyleJ11/lobby-backend/internal/appearance"
)

type memorySession struct {
	id           string
	participants map[string]Participant
	loaded       []string
}

// Memory keeps handoff data in process. Used when no database is configured.
// Only the newest session per code is kept.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
	catalog  *appearance.Catalog
}

func NewMemory(catalog *appearance.Catalog) *Memory {
	if catalog == nil {
		catalog = appearance.DefaultCatalog()
	}
	return &Memory{sessions: make(map[string]*memorySession), catalog: catalog}
}

func (m *Memory) session(key SessionKey) *memorySession {
	s := m.sessions[key.Code]
	if s == nil || s.id != key.Session {
		s = &memorySession{id: key.Session, participants: make(map[string]Participant)}
		m.sessions[key.Code] = s
	}
	return s
}

func (m *Memory) CommitParticipant(_ context.Context, key SessionKey, p Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.Appearance = p.Appearance.Clone()
	p.Known = true
	m.session(key).participants[p.ID] = p
	return nil
}

func (m *Memory) MarkLoaded(_ context.Context, key SessionKey, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session(key).loaded = append([]string(nil), ids...)
	return nil
}

// Loaded returns the participant ids of a loaded session, or nil.
func (m *Memory) Loaded(code string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.sessions[code]
	if s == nil {
		return nil
	}
	return append([]string(nil), s.loaded...)
}

func (m *Memory) Lookup(_ context.Context, code, id string) (Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s := m.sessions[code]; s != nil {
		if p, ok := s.participants[id]; ok {
			p.Appearance = p.Appearance.Clone()
			if p.Appearance.IsZero() {
				p.Appearance = m.catalog.Default()
			}
			return p, nil
		}
	}
	return defaultParticipant(id, m.catalog), nil
}
