package roster

import (
	"testing"

	"github.com/DoyleJ11/lobby-backend/internal/appearance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(s *Store) *[]Change {
	var got []Change
	s.Subscribe(func(c Change) { got = append(got, c) })
	return &got
}

func TestStore_AddRejectsDuplicateID(t *testing.T) {
	s := NewStore(5)
	require.NoError(t, s.Add(NewRecord("a")))
	err := s.Add(NewRecord("a"))
	require.ErrorIs(t, err, ErrDuplicateParticipant)
	assert.Equal(t, 1, s.Len())
}

func TestStore_AddRespectsCapacity(t *testing.T) {
	s := NewStore(2)
	require.NoError(t, s.Add(NewRecord("a")))
	require.NoError(t, s.Add(NewRecord("b")))
	require.ErrorIs(t, s.Add(NewRecord("c")), ErrCapacityExceeded)
	assert.Equal(t, 2, s.Len())

	unbounded := NewStore(0)
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		require.NoError(t, unbounded.Add(NewRecord(id)))
	}
}

func TestStore_RemoveByIDUnknownIsNoop(t *testing.T) {
	s := NewStore(5)
	require.NoError(t, s.Add(NewRecord("a")))
	got := collect(s)

	assert.False(t, s.RemoveByID("zzz"))
	assert.Equal(t, 1, s.Len())
	assert.Empty(t, *got)
}

func TestStore_ReplaceAt(t *testing.T) {
	s := NewStore(5)
	require.NoError(t, s.Add(NewRecord("a")))

	rec, ok := s.At(0)
	require.True(t, ok)
	rec.Ready = true
	require.NoError(t, s.ReplaceAt(0, rec))

	after, _ := s.At(0)
	assert.True(t, after.Ready)

	require.ErrorIs(t, s.ReplaceAt(3, rec), ErrIndexOutOfRange)
	require.ErrorIs(t, s.ReplaceAt(-1, rec), ErrIndexOutOfRange)
}

func TestStore_ReplaceAtIDMismatchPanics(t *testing.T) {
	s := NewStore(5)
	require.NoError(t, s.Add(NewRecord("a")))
	require.NoError(t, s.Add(NewRecord("b")))

	assert.Panics(t, func() { _ = s.ReplaceAt(0, NewRecord("b")) })
}

func TestStore_ChangesDeliveredInMutationOrder(t *testing.T) {
	s := NewStore(5)
	got := collect(s)

	require.NoError(t, s.Add(NewRecord("a")))
	require.NoError(t, s.Add(NewRecord("b")))
	b, _ := s.At(1)
	b.Ready = true
	require.NoError(t, s.ReplaceAt(1, b))
	s.RemoveByID("a")

	require.Len(t, *got, 4)
	assert.Equal(t, Change{Kind: ChangeAdd, Index: 0, Record: NewRecord("a")}, (*got)[0])
	assert.Equal(t, Change{Kind: ChangeAdd, Index: 1, Record: NewRecord("b")}, (*got)[1])
	assert.Equal(t, ChangeReplace, (*got)[2].Kind)
	assert.Equal(t, 1, (*got)[2].Index)
	assert.True(t, (*got)[2].Record.Ready)
	assert.Equal(t, Change{Kind: ChangeRemove, Index: 0, Record: NewRecord("a")}, (*got)[3])
}

func TestStore_ReplayedChangesRebuildRoster(t *testing.T) {
	s := NewStore(5)
	var replica []Record
	s.Subscribe(func(c Change) {
		switch c.Kind {
		case ChangeAdd:
			replica = append(replica, c.Record)
		case ChangeRemove:
			replica = append(replica[:c.Index], replica[c.Index+1:]...)
		case ChangeReplace:
			replica[c.Index] = c.Record
		}
	})

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Add(NewRecord(id)))
	}
	s.RemoveByID("b")
	c, _ := s.At(1)
	c.Name = "Cleo"
	c.Appearance = appearance.Encoding{1, 0, 2, 0}
	require.NoError(t, s.ReplaceAt(1, c))

	assert.Equal(t, s.Records(), replica)
}

func TestStore_SubscribeCancel(t *testing.T) {
	s := NewStore(5)
	calls := 0
	cancel := s.Subscribe(func(Change) { calls++ })
	require.NoError(t, s.Add(NewRecord("a")))
	cancel()
	require.NoError(t, s.Add(NewRecord("b")))
	assert.Equal(t, 1, calls)
}

func TestStore_RecordsIsDeepCopy(t *testing.T) {
	s := NewStore(5)
	rec := NewRecord("a")
	rec.Appearance = appearance.Encoding{1, 2}
	require.NoError(t, s.Add(rec))

	snap := s.Records()
	snap[0].Appearance[0] = 9
	snap[0].Name = "changed"

	cur, _ := s.At(0)
	assert.Equal(t, appearance.Encoding{1, 2}, cur.Appearance)
	assert.Equal(t, DefaultName, cur.Name)
}

func TestRecord_Equal(t *testing.T) {
	a := Record{ID: "a", Name: "Ada", Appearance: appearance.Encoding{1}}
	b := a.Clone()
	assert.True(t, a.Equal(b))
	b.DetailsConfirmed = true
	assert.False(t, a.Equal(b))
}
