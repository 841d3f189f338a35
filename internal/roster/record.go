package roster

import "github.com/DoyleJ11/lobby-backend/internal/appearance"

const (
	// MaxNameBytes mirrors the fixed-size name slot replicated to clients.
	MaxNameBytes = 32
	DefaultName  = "Connecting..."
)

// Record is one participant's replicated lobby state.
type Record struct {
	ID               string
	Name             string
	Ready            bool
	Appearance       appearance.Encoding
	DetailsConfirmed bool
}

func NewRecord(id string) Record {
	return Record{ID: id, Name: DefaultName}
}

func (r Record) Equal(o Record) bool {
	return r.ID == o.ID &&
		r.Name == o.Name &&
		r.Ready == o.Ready &&
		r.Appearance.Equal(o.Appearance) &&
		r.DetailsConfirmed == o.DetailsConfirmed
}

func (r Record) Clone() Record {
	r.Appearance = r.Appearance.Clone()
	return r
}
