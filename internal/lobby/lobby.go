package lobby

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/lobby-backend/internal/appearance"
	"github.com/DoyleJ11/lobby-backend/internal/handoff"
	"github.com/DoyleJ11/lobby-backend/internal/metrics"
	"github.com/DoyleJ11/lobby-backend/internal/roster"
	"github.com/DoyleJ11/lobby-backend/internal/session"
	"github.com/DoyleJ11/lobby-backend/internal/transition"
)

var ErrSessionClosed = errors.New("lobby is no longer accepting changes")
var ErrNotHost = errors.New("only the host can start the session")
var ErrUnknownClient = errors.New("client is not in this lobby")

// Msg is anything the lobby goroutine accepts. Reply channels are optional;
// when set they must be buffered, since the lobby never waits on a reader.
type Msg interface{ isLobbyMsg() }

type Join struct {
	ClientID string
	Outbox   chan Update // where this client wants to receive roster updates
	Reply    chan error
}

func (Join) isLobbyMsg() {}

// Leave only counts when Outbox is the one registered by the matching Join,
// so a rejected duplicate connection cannot remove the live participant.
type Leave struct {
	ClientID string
	Outbox   chan Update
}

func (Leave) isLobbyMsg() {}

type ToggleReady struct{ ClientID string }

func (ToggleReady) isLobbyMsg() {}

type SubmitDetails struct {
	ClientID   string
	Name       string
	Appearance string
	Reply      chan error
}

func (SubmitDetails) isLobbyMsg() {}

type StartSession struct {
	ClientID string
	Reply    chan StartResult
}

func (StartSession) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type UpdateKind string

const (
	UpdateSync    UpdateKind = "sync"
	UpdateChange  UpdateKind = "change"
	UpdatePrepare UpdateKind = "prepare"
	UpdateStarted UpdateKind = "started"
)

// Update is what a client outbox receives. A client applies changes in
// Version order on top of the last sync.
type Update struct {
	Kind    UpdateKind
	Version int
	Roster  []roster.Record // UpdateSync
	Change  roster.Change   // UpdateChange
	Phase   transition.Phase
}

type View struct {
	Code       string
	Version    int
	NumClients int
	Phase      transition.Phase
	Roster     []roster.Record
	AllReady   bool
	Host       string
}

type StartResult struct {
	Outcome transition.Outcome
	Err     error
}

type Config struct {
	MaxParticipants int
	Catalog         *appearance.Catalog
	RequireDetails  bool

	// AutoStart triggers the transition as soon as everyone is ready.
	AutoStart     bool
	HostOnlyStart bool
	SettleDelay   time.Duration
}

type Deps struct {
	Log     *zap.Logger
	Metrics *metrics.Metrics
	Handoff handoff.Store

	// OnClosed runs on the lobby goroutine after the lobby stops.
	OnClosed func(*Lobby)
}

type Lobby struct {
	code    string
	inbox   chan Msg
	ctrl    *session.Controller
	coord   *transition.Coordinator
	version int
	clients map[string]chan Update
	cfg     Config
	log     *zap.Logger
	metrics *metrics.Metrics
	closed  func(*Lobby)
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewLobby(parent context.Context, code string, cfg Config, deps Deps) *Lobby {
	ctx, cancel := context.WithCancel(parent)
	if cfg.Catalog == nil {
		cfg.Catalog = appearance.DefaultCatalog()
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("lobby", code))
	store := deps.Handoff
	if store == nil {
		store = handoff.NewMemory(cfg.Catalog)
	}

	l := &Lobby{
		code:    code,
		inbox:   make(chan Msg, 64), // Small buffer
		clients: make(map[string]chan Update),
		cfg:     cfg,
		log:     log,
		metrics: deps.Metrics,
		closed:  deps.OnClosed,
		ctx:     ctx,
		cancel:  cancel,
	}

	rs := roster.NewStore(cfg.MaxParticipants)
	rs.Subscribe(l.onChange)
	l.ctrl = session.NewController(rs, cfg.Catalog, session.Config{RequireDetails: cfg.RequireDetails}, log)

	bound := handoff.Bind(store, code)
	l.coord = transition.NewCoordinator(bound, transition.NotifierFunc(l.prepareTransition), bound,
		transition.Config{SettleDelay: cfg.SettleDelay}, log)

	go l.loop()
	return l
}

func (l *Lobby) Code() string { return l.code }

// Expose the inbox so tests or WS layer can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Send delivers m unless the lobby has already stopped.
func (l *Lobby) Send(m Msg) bool {
	if l.ctx.Err() != nil {
		return false
	}
	select {
	case l.inbox <- m:
		return true
	case <-l.ctx.Done():
		return false
	}
}

// Done is closed when the lobby stops processing messages.
func (l *Lobby) Done() <-chan struct{} { return l.ctx.Done() }

func (l *Lobby) loop() {
	transitioned := l.coord.Done()
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case <-transitioned:
			l.finishTransition()
			return

		case m := <-l.inbox:
			if stop := l.handle(m); stop {
				return
			}
			// Safe point: nothing is iterating the roster now.
			l.metrics.Left(l.ctrl.Flush())
			if l.cfg.AutoStart {
				l.start("")
			}
		}
	}
}

func (l *Lobby) handle(m Msg) bool {
	switch msg := m.(type) {
	case Join:
		reply(msg.Reply, l.join(msg))

	case Leave:
		ch, ok := l.clients[msg.ClientID]
		if !ok || ch != msg.Outbox {
			l.log.Debug("stale leave ignored", zap.String("participant", msg.ClientID))
			break
		}
		delete(l.clients, msg.ClientID)
		close(ch)
		_ = l.ctrl.Apply(session.Command{Type: session.CmdDisconnect, ParticipantID: msg.ClientID})

	case ToggleReady:
		if l.coord.Phase() != transition.PhaseLobby {
			break
		}
		_ = l.ctrl.Apply(session.Command{Type: session.CmdToggleReady, ParticipantID: msg.ClientID})

	case SubmitDetails:
		if l.coord.Phase() != transition.PhaseLobby {
			reply(msg.Reply, ErrSessionClosed)
			break
		}
		err := l.ctrl.Apply(session.Command{
			Type:          session.CmdSubmitDetails,
			ParticipantID: msg.ClientID,
			Name:          msg.Name,
			Appearance:    msg.Appearance,
		})
		if err != nil && !errors.Is(err, session.ErrNotFound) {
			l.metrics.DetailsRejected()
		}
		reply(msg.Reply, err)

	case StartSession:
		reply(msg.Reply, l.start(msg.ClientID))

	case GetState:
		// reflect internal state without data races (tests, HTTP view)
		host, _ := l.ctrl.Host()
		reply(msg.Reply, View{
			Code:       l.code,
			Version:    l.version,
			NumClients: len(l.clients),
			Phase:      l.coord.Phase(),
			Roster:     l.ctrl.Snapshot(),
			AllReady:   l.ctrl.AllReady(),
			Host:       host,
		})

	case Shutdown:
		l.shutdown()
		return true
	}
	return false
}

func (l *Lobby) join(msg Join) error {
	if l.coord.Phase() != transition.PhaseLobby {
		l.metrics.JoinRejected("closed")
		return ErrSessionClosed
	}
	if _, ok := l.clients[msg.ClientID]; ok {
		l.metrics.JoinRejected("duplicate")
		l.log.Info("duplicate join ignored", zap.String("participant", msg.ClientID))
		return session.ErrDuplicateParticipant
	}
	if err := l.ctrl.Apply(session.Command{Type: session.CmdConnect, ParticipantID: msg.ClientID}); err != nil {
		switch {
		case errors.Is(err, session.ErrCapacityExceeded):
			l.metrics.JoinRejected("full")
		default:
			l.metrics.JoinRejected("duplicate")
		}
		return err
	}
	l.metrics.Joined()

	// Register after Connect so the new client's first message is a sync
	// that already contains its own record.
	l.clients[msg.ClientID] = msg.Outbox
	l.send(msg.ClientID, msg.Outbox, Update{
		Kind:    UpdateSync,
		Version: l.version,
		Roster:  l.ctrl.Snapshot(),
		Phase:   l.coord.Phase(),
	})
	return nil
}

// start asks the coordinator to begin. clientID "" is the server itself.
func (l *Lobby) start(clientID string) StartResult {
	if clientID != "" {
		if !l.ctrl.Tracked(clientID) {
			return StartResult{Outcome: transition.OutcomeNotReady, Err: ErrUnknownClient}
		}
		if host, _ := l.ctrl.Host(); l.cfg.HostOnlyStart && host != clientID {
			return StartResult{Outcome: transition.OutcomeNotReady, Err: ErrNotHost}
		}
	}
	if l.coord.Phase() != transition.PhaseLobby {
		return StartResult{Outcome: transition.OutcomeAlreadyStarted}
	}
	if !l.ctrl.AllReady() {
		if clientID != "" {
			l.metrics.Transition(string(transition.OutcomeNotReady))
		}
		return StartResult{Outcome: transition.OutcomeNotReady}
	}

	outcome, err := l.coord.Trigger(l.ctx, l.ctrl)
	l.metrics.Transition(string(outcome))
	if err != nil {
		l.log.Warn("transition started with handoff errors", zap.Error(err))
	}
	return StartResult{Outcome: outcome, Err: err}
}

func (l *Lobby) onChange(c roster.Change) {
	l.version++
	l.broadcast(Update{Kind: UpdateChange, Version: l.version, Change: c, Phase: l.coord.Phase()})
}

func (l *Lobby) prepareTransition() {
	l.broadcast(Update{Kind: UpdatePrepare, Version: l.version, Phase: l.coord.Phase()})
}

func (l *Lobby) finishTransition() {
	if err := l.coord.Err(); err != nil {
		l.log.Error("transition finished with error", zap.Error(err))
	}
	l.broadcast(Update{Kind: UpdateStarted, Version: l.version, Phase: l.coord.Phase()})
	l.shutdown()
}

func (l *Lobby) shutdown() {
	for id, ch := range l.clients {
		close(ch) // Tell client no more updates
		delete(l.clients, id)
	}
	l.cancel()
	if l.closed != nil {
		l.closed(l)
		l.closed = nil
	}
}

func (l *Lobby) broadcast(u Update) {
	for id, ch := range l.clients {
		l.send(id, ch, u)
	}
}

func (l *Lobby) send(id string, ch chan Update, u Update) {
	if u.Roster != nil {
		u.Roster = cloneRecords(u.Roster)
	}
	select {
	case ch <- u:
		//ok
	default:
		// Client is slow/full - drop them. The roster removal waits for the
		// next safe point because we may be inside a roster notification.
		close(ch)
		delete(l.clients, id)
		_ = l.ctrl.Apply(session.Command{Type: session.CmdDisconnect, ParticipantID: id})
		l.metrics.ClientDropped()
		l.log.Info("slow client dropped", zap.String("participant", id))
	}
}

func reply[T any](ch chan T, v T) {
	if ch != nil {
		ch <- v
	}
}

func cloneRecords(in []roster.Record) []roster.Record {
	out := make([]roster.Record, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
