package transition

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DoyleJ11/lobby-backend/internal/appearance"
	"github.com/DoyleJ11/lobby-backend/internal/roster"
	"github.com/DoyleJ11/lobby-backend/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCommitter struct {
	mu      sync.Mutex
	commits []roster.Record
	failFor string
}

func (r *recordingCommitter) CommitParticipant(_ context.Context, rec roster.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits = append(r.commits, rec)
	if rec.ID == r.failFor {
		return errors.New("disk full")
	}
	return nil
}

func (r *recordingCommitter) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.commits))
	for i, c := range r.commits {
		out[i] = c.ID
	}
	return out
}

type countingNotifier struct{ n atomic.Int32 }

func (c *countingNotifier) PrepareTransition() { c.n.Add(1) }

type recordingLoader struct {
	mu    sync.Mutex
	loads [][]roster.Record
	err   error
}

func (l *recordingLoader) LoadSession(_ context.Context, ps []roster.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads = append(l.loads, ps)
	return l.err
}

func (l *recordingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.loads)
}

func newGate(t *testing.T, ready map[string]bool, order ...string) *session.Controller {
	t.Helper()
	c := session.NewController(roster.NewStore(5), appearance.DefaultCatalog(), session.Config{}, nil)
	for _, id := range order {
		require.NoError(t, c.Connect(id))
		if ready[id] {
			require.NoError(t, c.ToggleReady(id))
		}
	}
	return c
}

func waitDone(t *testing.T, c *Coordinator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	select {
	case <-c.Done():
	case <-ctx.Done():
		t.Fatalf("timed out waiting for transition to finish")
	}
}

func TestTrigger_SingleReadyParticipantCommitsOnce(t *testing.T) {
	gate := newGate(t, map[string]bool{"A": true}, "A")
	committer := &recordingCommitter{}
	notifier := &countingNotifier{}
	loader := &recordingLoader{}
	c := NewCoordinator(committer, notifier, loader, Config{}, nil)

	out, err := c.Trigger(context.Background(), gate)
	require.NoError(t, err)
	assert.Equal(t, OutcomeStarted, out)

	waitDone(t, c)
	assert.Equal(t, PhaseTransitioned, c.Phase())
	assert.Equal(t, []string{"A"}, committer.ids())
	assert.Equal(t, int32(1), notifier.n.Load())
	assert.Equal(t, 1, loader.count())
	assert.NoError(t, c.Err())
}

func TestTrigger_NotAllReadyIsNoop(t *testing.T) {
	gate := newGate(t, map[string]bool{"A": true}, "A", "B")
	committer := &recordingCommitter{}
	c := NewCoordinator(committer, nil, nil, Config{}, nil)

	out, err := c.Trigger(context.Background(), gate)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotReady, out)
	assert.Equal(t, PhaseLobby, c.Phase())
	assert.Empty(t, committer.ids())

	// Re-triggerable once conditions change.
	require.NoError(t, gate.ToggleReady("B"))
	out, _ = c.Trigger(context.Background(), gate)
	assert.Equal(t, OutcomeStarted, out)
	waitDone(t, c)
	assert.Equal(t, []string{"A", "B"}, committer.ids())
}

func TestTrigger_EmptyRosterIsNotReady(t *testing.T) {
	c := NewCoordinator(nil, nil, nil, Config{}, nil)
	out, err := c.Trigger(context.Background(), newGate(t, nil))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotReady, out)
	assert.Equal(t, PhaseLobby, c.Phase())
}

func TestTrigger_TwiceExecutesOnce(t *testing.T) {
	gate := newGate(t, map[string]bool{"A": true, "B": true}, "A", "B")
	committer := &recordingCommitter{}
	loader := &recordingLoader{}
	c := NewCoordinator(committer, nil, loader, Config{}, nil)

	first, _ := c.Trigger(context.Background(), gate)
	second, _ := c.Trigger(context.Background(), gate)
	assert.Equal(t, OutcomeStarted, first)
	assert.Equal(t, OutcomeAlreadyStarted, second)

	waitDone(t, c)
	third, _ := c.Trigger(context.Background(), gate)
	assert.Equal(t, OutcomeAlreadyStarted, third)
	assert.Equal(t, PhaseTransitioned, c.Phase())
	assert.Equal(t, []string{"A", "B"}, committer.ids())
	assert.Equal(t, 1, loader.count())
}

type staticGate struct{ recs []roster.Record }

func (g staticGate) AllReady() bool            { return true }
func (g staticGate) Snapshot() []roster.Record { return g.recs }

func TestTrigger_ConcurrentCallsExecuteOnce(t *testing.T) {
	gate := staticGate{recs: []roster.Record{{ID: "A", Ready: true}, {ID: "B", Ready: true}}}
	committer := &recordingCommitter{}
	notifier := &countingNotifier{}
	loader := &recordingLoader{}
	c := NewCoordinator(committer, notifier, loader, Config{}, nil)

	var started atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if out, _ := c.Trigger(context.Background(), gate); out == OutcomeStarted {
				started.Add(1)
			}
		}()
	}
	wg.Wait()
	waitDone(t, c)

	assert.Equal(t, int32(1), started.Load())
	assert.Equal(t, []string{"A", "B"}, committer.ids())
	assert.Equal(t, int32(1), notifier.n.Load())
	assert.Equal(t, 1, loader.count())
}

func TestTrigger_SnapshotIgnoresLaterRosterChanges(t *testing.T) {
	gate := newGate(t, map[string]bool{"A": true}, "A")
	loader := &recordingLoader{}
	c := NewCoordinator(nil, nil, loader, Config{SettleDelay: 20 * time.Millisecond}, nil)

	out, _ := c.Trigger(context.Background(), gate)
	require.Equal(t, OutcomeStarted, out)
	assert.Equal(t, PhaseTransitioning, c.Phase())

	// A participant leaving mid-transition does not change the handoff set.
	gate.Disconnect("A")
	gate.Flush()
	require.NoError(t, gate.Connect("late"))

	waitDone(t, c)
	require.Equal(t, 1, loader.count())
	require.Len(t, loader.loads[0], 1)
	assert.Equal(t, "A", loader.loads[0][0].ID)
	assert.Equal(t, "A", c.Participants()[0].ID)
}

func TestTrigger_CommitErrorsDoNotBlockTransition(t *testing.T) {
	gate := newGate(t, map[string]bool{"A": true, "B": true}, "A", "B")
	committer := &recordingCommitter{failFor: "A"}
	notifier := &countingNotifier{}
	c := NewCoordinator(committer, notifier, nil, Config{}, nil)

	out, err := c.Trigger(context.Background(), gate)
	assert.Equal(t, OutcomeStarted, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit A")

	waitDone(t, c)
	assert.Equal(t, []string{"A", "B"}, committer.ids())
	assert.Equal(t, int32(1), notifier.n.Load())
	assert.Equal(t, PhaseTransitioned, c.Phase())
}

func TestTrigger_LoadErrorIsReported(t *testing.T) {
	gate := newGate(t, map[string]bool{"A": true}, "A")
	loader := &recordingLoader{err: errors.New("scene missing")}
	c := NewCoordinator(nil, nil, loader, Config{}, nil)

	_, _ = c.Trigger(context.Background(), gate)
	err := c.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scene missing")
}

func TestTrigger_CancelDuringSettleSkipsLoad(t *testing.T) {
	gate := newGate(t, map[string]bool{"A": true}, "A")
	loader := &recordingLoader{}
	c := NewCoordinator(nil, nil, loader, Config{SettleDelay: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	_, _ = c.Trigger(ctx, gate)
	cancel()

	waitDone(t, c)
	assert.ErrorIs(t, c.Err(), context.Canceled)
	assert.Equal(t, 0, loader.count())
	assert.Equal(t, PhaseTransitioning, c.Phase())
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "lobby", PhaseLobby.String())
	assert.Equal(t, "transitioning", PhaseTransitioning.String())
	assert.Equal(t, "transitioned", PhaseTransitioned.String())
}
