package roster

import (
	"errors"
	"fmt"
	"slices"
)

var ErrDuplicateParticipant = errors.New("participant already in roster")
var ErrCapacityExceeded = errors.New("roster is full")
var ErrIndexOutOfRange = errors.New("roster index out of range")

type ChangeKind string

const (
	ChangeAdd     ChangeKind = "add"
	ChangeRemove  ChangeKind = "remove"
	ChangeReplace ChangeKind = "replace"
)

// Change describes one applied mutation. For removals Record is the removed value.
type Change struct {
	Kind   ChangeKind
	Index  int
	Record Record
}

// Store is the authoritative ordered roster. It is not safe for concurrent
// use; the owning lobby goroutine serializes access.
type Store struct {
	capacity    int
	records     []Record
	subscribers map[int]func(Change)
	order       []int
	nextSub     int
}

// NewStore returns an empty roster. capacity <= 0 means unbounded.
func NewStore(capacity int) *Store {
	return &Store{
		capacity:    capacity,
		subscribers: make(map[int]func(Change)),
	}
}

func (s *Store) Capacity() int { return s.capacity }

func (s *Store) Len() int { return len(s.records) }

func (s *Store) At(i int) (Record, bool) {
	if i < 0 || i >= len(s.records) {
		return Record{}, false
	}
	return s.records[i].Clone(), true
}

// IndexOf returns the position of id, or -1.
func (s *Store) IndexOf(id string) int {
	for i, r := range s.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// Records returns a deep copy safe to hold across later mutations.
func (s *Store) Records() []Record {
	out := make([]Record, len(s.records))
	for i, r := range s.records {
		out[i] = r.Clone()
	}
	return out
}

func (s *Store) Add(rec Record) error {
	if s.IndexOf(rec.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateParticipant, rec.ID)
	}
	if s.capacity > 0 && len(s.records) >= s.capacity {
		return fmt.Errorf("%w: capacity %d", ErrCapacityExceeded, s.capacity)
	}
	rec = rec.Clone()
	s.records = append(s.records, rec)
	s.emit(Change{Kind: ChangeAdd, Index: len(s.records) - 1, Record: rec})
	return nil
}

// RemoveByID reports whether a record was removed. Unknown ids are a no-op.
func (s *Store) RemoveByID(id string) bool {
	i := s.IndexOf(id)
	if i < 0 {
		return false
	}
	removed := s.records[i]
	s.records = append(s.records[:i], s.records[i+1:]...)
	s.emit(Change{Kind: ChangeRemove, Index: i, Record: removed})
	return true
}

// ReplaceAt overwrites the record at i. The replacement must carry the same
// id; a mismatch means the caller resolved the index against a stale roster
// and the store panics rather than corrupt the ordering.
func (s *Store) ReplaceAt(i int, rec Record) error {
	if i < 0 || i >= len(s.records) {
		return fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, len(s.records))
	}
	if cur := s.records[i].ID; cur != rec.ID {
		panic(fmt.Sprintf("roster: replace at %d with id %q, slot holds %q", i, rec.ID, cur))
	}
	rec = rec.Clone()
	s.records[i] = rec
	s.emit(Change{Kind: ChangeReplace, Index: i, Record: rec})
	return nil
}

// Subscribe registers fn for every subsequent change. Subscribers are called
// synchronously, in registration order, in the order mutations were applied.
func (s *Store) Subscribe(fn func(Change)) (cancel func()) {
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	s.order = append(s.order, id)
	return func() {
		delete(s.subscribers, id)
		for i, v := range s.order {
			if v == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
}

func (s *Store) emit(c Change) {
	for _, id := range slices.Clone(s.order) {
		fn, ok := s.subscribers[id]
		if !ok {
			continue
		}
		// Each subscriber gets its own copy of the appearance slice.
		cc := c
		cc.Record = c.Record.Clone()
		fn(cc)
	}
}
