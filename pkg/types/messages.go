package types

// Client -> Server
// The connection is opened with GET /ws?code=XXXXXX. The server assigns the
// participant id (see Welcome) for the life of the connection; messages
// never carry one.
//
// ToggleReady: {}
//
// SubmitDetails:
//   name: string        // 1..32 bytes after trimming
//   appearance: string  // comma-separated part indices, e.g. "1,2,3,0"
//
// StartSession: {}     // host only unless HOST_ONLY_START=false

// Server -> Client
// Welcome:
//   lobby_code: string
//   participant_id: string
//
// RosterSync:
//   version: number
//   roster: Participant[]
//   phase: "lobby" | "transitioning" | "transitioned"
//
// RosterChange:
//   version: number     // previous version + 1
//   change: { kind: "add" | "remove" | "replace", index: number, participant: Participant }
//
// DetailsRejected / StartRejected / Error:
//   error: string
//   outcome: string     // StartRejected only
//
// PrepareTransition: {}
// SessionStarted: {}

const (
	ClientToggleReady   = "ToggleReady"
	ClientSubmitDetails = "SubmitDetails"
	ClientStartSession  = "StartSession"
)

const (
	ServerWelcome           = "Welcome"
	ServerRosterSync        = "RosterSync"
	ServerRosterChange      = "RosterChange"
	ServerDetailsRejected   = "DetailsRejected"
	ServerStartRejected     = "StartRejected"
	ServerPrepareTransition = "PrepareTransition"
	ServerSessionStarted    = "SessionStarted"
	ServerError             = "Error"
)

type ClientMessage struct {
	Type       string `json:"type"`
	Name       string `json:"name,omitempty"`
	Appearance string `json:"appearance,omitempty"`
}

type ServerMessage struct {
	Type          string        `json:"type"`
	Version       int           `json:"version,omitempty"`
	LobbyCode     string        `json:"lobby_code,omitempty"`
	ParticipantID string        `json:"participant_id,omitempty"`
	Phase         string        `json:"phase,omitempty"`
	Roster        []Participant `json:"roster,omitempty"`
	Change        *RosterChange `json:"change,omitempty"`
	Outcome       string        `json:"outcome,omitempty"`
	Error         string        `json:"error,omitempty"`
}
