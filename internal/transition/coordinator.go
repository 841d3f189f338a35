package transition

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/lobby-backend/internal/roster"
)

type Phase int32

const (
	PhaseLobby Phase = iota
	PhaseTransitioning
	PhaseTransitioned
)

func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "lobby"
	case PhaseTransitioning:
		return "transitioning"
	case PhaseTransitioned:
		return "transitioned"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

type Outcome string

const (
	OutcomeStarted        Outcome = "started"
	OutcomeNotReady       Outcome = "not_ready"
	OutcomeAlreadyStarted Outcome = "already_started"
)

// Gate is the readiness view the coordinator checks before starting.
type Gate interface {
	AllReady() bool
	Snapshot() []roster.Record
}

// Committer receives each participant's final details, in roster order.
type Committer interface {
	CommitParticipant(ctx context.Context, rec roster.Record) error
}

// Notifier tells clients to release lobby-only state before the load.
type Notifier interface {
	PrepareTransition()
}

type NotifierFunc func()

func (f NotifierFunc) PrepareTransition() { f() }

// Loader performs the actual move into the active session.
type Loader interface {
	LoadSession(ctx context.Context, participants []roster.Record) error
}

type Config struct {
	SettleDelay time.Duration
}

type Coordinator struct {
	phase atomic.Int32

	committer Committer
	notifier  Notifier
	loader    Loader
	cfg       Config
	log       *zap.Logger

	done     chan struct{}
	mu       sync.Mutex
	err      error
	snapshot []roster.Record
}

func NewCoordinator(committer Committer, notifier Notifier, loader Loader, cfg Config, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		committer: committer,
		notifier:  notifier,
		loader:    loader,
		cfg:       cfg,
		log:       log,
		done:      make(chan struct{}),
	}
}

func (c *Coordinator) Phase() Phase { return Phase(c.phase.Load()) }

// Done is closed once the load step has finished, successfully or not.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Err reports why the load step failed, if it did.
func (c *Coordinator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Participants returns the roster captured when the transition started.
func (c *Coordinator) Participants() []roster.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]roster.Record, len(c.snapshot))
	for i, r := range c.snapshot {
		out[i] = r.Clone()
	}
	return out
}

func (c *Coordinator) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Trigger starts the transition if the lobby is still open and gate reports
// everyone ready. It runs at most once per Coordinator; later calls return
// OutcomeAlreadyStarted. Handoff errors are returned with OutcomeStarted
// because the phase has already moved on.
func (c *Coordinator) Trigger(ctx context.Context, gate Gate) (Outcome, error) {
	if c.Phase() != PhaseLobby {
		return OutcomeAlreadyStarted, nil
	}
	if !gate.AllReady() {
		return OutcomeNotReady, nil
	}
	if !c.phase.CompareAndSwap(int32(PhaseLobby), int32(PhaseTransitioning)) {
		return OutcomeAlreadyStarted, nil
	}

	snapshot := gate.Snapshot()
	c.mu.Lock()
	c.snapshot = snapshot
	c.mu.Unlock()
	c.log.Info("transition started", zap.Int("participants", len(snapshot)))

	var errs error
	if c.committer != nil {
		for _, rec := range snapshot {
			if err := c.committer.CommitParticipant(ctx, rec.Clone()); err != nil {
				c.log.Error("handoff failed", zap.String("participant", rec.ID), zap.Error(err))
				errs = multierr.Append(errs, fmt.Errorf("commit %s: %w", rec.ID, err))
			}
		}
	}

	if c.notifier != nil {
		c.notifier.PrepareTransition()
	}

	go c.finish(ctx, snapshot)
	return OutcomeStarted, errs
}

func (c *Coordinator) finish(ctx context.Context, snapshot []roster.Record) {
	defer close(c.done)

	if c.cfg.SettleDelay > 0 {
		t := time.NewTimer(c.cfg.SettleDelay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			c.setErr(ctx.Err())
			c.log.Warn("transition cancelled before load", zap.Error(ctx.Err()))
			return
		}
	}

	if c.loader != nil {
		if err := c.loader.LoadSession(ctx, snapshot); err != nil {
			c.setErr(fmt.Errorf("load session: %w", err))
			c.log.Error("session load failed", zap.Error(err))
		}
	}

	c.phase.Store(int32(PhaseTransitioned))
	c.log.Info("transition complete")
}

func (c *Coordinator) setErr(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}
