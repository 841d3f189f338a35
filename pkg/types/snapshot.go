package types

import (
	"github.com/DoyleJ11/lobby-backend/internal/roster"
)

// Participant is one roster record as clients see it.
type Participant struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Ready            bool   `json:"ready"`
	Appearance       string `json:"appearance"`
	DetailsConfirmed bool   `json:"details_confirmed"`
}

type RosterChange struct {
	Kind        string      `json:"kind"`
	Index       int         `json:"index"`
	Participant Participant `json:"participant"`
}

// LobbyView is the body of GET /lobbies/{code}.
type LobbyView struct {
	Code       string        `json:"code"`
	Version    int           `json:"version"`
	Phase      string        `json:"phase"`
	Host       string        `json:"host,omitempty"`
	AllReady   bool          `json:"all_ready"`
	NumClients int           `json:"num_clients"`
	Roster     []Participant `json:"roster"`
}

func FromRecord(r roster.Record) Participant {
	return Participant{
		ID:               r.ID,
		Name:             r.Name,
		Ready:            r.Ready,
		Appearance:       r.Appearance.String(),
		DetailsConfirmed: r.DetailsConfirmed,
	}
}

func FromRecords(rs []roster.Record) []Participant {
	out := make([]Participant, len(rs))
	for i, r := range rs {
		out[i] = FromRecord(r)
	}
	return out
}

func FromChange(c roster.Change) *RosterChange {
	return &RosterChange{
		Kind:        string(c.Kind),
		Index:       c.Index,
		Participant: FromRecord(c.Record),
	}
}
