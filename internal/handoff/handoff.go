// Package handoff carries each participant's lobby choices into the active
// session. The next phase reads them back with Lookup, which falls back to
// defaults for anyone it never received.
package handoff

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/DoyleJ11/lobby-backend/internal/appearance"
	"github.com/DoyleJ11/lobby-backend/internal/roster"
)

// DefaultName is what the next phase shows for a participant it never received.
const DefaultName = "Player"

type Participant struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Appearance appearance.Encoding `json:"appearance"`
	Position   int                 `json:"position"`

	// Known is false when the values are defaults.
	Known bool `json:"known"`
}

// SessionKey names one lobby's handoff. Join codes are recycled once a lobby
// closes, so Session tells two lobbies with the same Code apart.
type SessionKey struct {
	Code    string
	Session string
}

// Store records handoffs per session. Lookup reads the newest session
// committed under code.
type Store interface {
	CommitParticipant(ctx context.Context, key SessionKey, p Participant) error
	MarkLoaded(ctx context.Context, key SessionKey, ids []string) error
	Lookup(ctx context.Context, code, id string) (Participant, error)
}

func defaultParticipant(id string, catalog *appearance.Catalog) Participant {
	return Participant{ID: id, Name: DefaultName, Appearance: catalog.Default(), Position: -1}
}

// Session binds a Store to one lobby so it can serve as the transition's
// committer and loader.
type Session struct {
	store Store
	key   SessionKey
	next  atomic.Int32
}

// Bind starts a fresh session for code.
func Bind(store Store, code string) *Session {
	return &Session{store: store, key: SessionKey{Code: code, Session: uuid.NewString()}}
}

func (s *Session) Key() SessionKey { return s.key }

func (s *Session) CommitParticipant(ctx context.Context, rec roster.Record) error {
	pos := int(s.next.Add(1)) - 1
	return s.store.CommitParticipant(ctx, s.key, Participant{
		ID:         rec.ID,
		Name:       rec.Name,
		Appearance: rec.Appearance.Clone(),
		Position:   pos,
		Known:      true,
	})
}

func (s *Session) LoadSession(ctx context.Context, participants []roster.Record) error {
	ids := make([]string, len(participants))
	for i, p := range participants {
		ids[i] = p.ID
	}
	return s.store.MarkLoaded(ctx, s.key, ids)
}
