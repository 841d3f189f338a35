package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/DoyleJ11/lobby-backend/internal/lobby"
)

type HubMsg interface{ isHubMsg() }

type CreateLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

type EnsureLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

// RemoveLobby drops Code from the registry. When Lobby is set, the entry is
// only removed if it still points at that lobby.
type RemoveLobby struct {
	Code  string
	Lobby *lobby.Lobby
}

type ListLobbies struct {
	Reply chan []string
}

type ShutdownHub struct{}

func (CreateLobby) isHubMsg() {}
func (GetLobby) isHubMsg()    {}
func (EnsureLobby) isHubMsg() {}
func (RemoveLobby) isHubMsg() {}
func (ListLobbies) isHubMsg() {}
func (ShutdownHub) isHubMsg() {}

type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	cfg     lobby.Config
	deps    lobby.Deps
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewHub starts the registry. Every lobby it creates shares cfg and deps;
// deps.OnClosed is replaced so closed lobbies leave the registry.
func NewHub(parent context.Context, cfg lobby.Config, deps lobby.Deps) *Hub {
	ctx, cancel := context.WithCancel(parent)
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		cfg:     cfg,
		deps:    deps,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
	h.deps.OnClosed = h.lobbyClosed
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Send delivers m unless the hub has stopped.
func (h *Hub) Send(m HubMsg) bool {
	if h.ctx.Err() != nil {
		return false
	}
	select {
	case h.inbox <- m:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Lookup asks the hub for the lobby registered under code. It returns nil if
// there is none or the hub has stopped.
func (h *Hub) Lookup(ctx context.Context, code string) *lobby.Lobby {
	reply := make(chan *lobby.Lobby, 1)
	if !h.Send(GetLobby{Code: code, Reply: reply}) {
		return nil
	}
	select {
	case lb := <-reply:
		return lb
	case <-ctx.Done():
		return nil
	case <-h.ctx.Done():
		return nil
	}
}

// Create registers a new lobby under code, or returns the existing one.
func (h *Hub) Create(ctx context.Context, code string) *lobby.Lobby {
	reply := make(chan *lobby.Lobby, 1)
	if !h.Send(CreateLobby{Code: code, Reply: reply}) {
		return nil
	}
	select {
	case lb := <-reply:
		return lb
	case <-ctx.Done():
		return nil
	case <-h.ctx.Done():
		return nil
	}
}

func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

func (h *Hub) lobbyClosed(lb *lobby.Lobby) {
	// Runs on the lobby goroutine; never block on a stopped hub.
	h.Send(RemoveLobby{Code: lb.Code(), Lobby: lb})
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateLobby:
				msg.Reply <- h.ensure(msg.Code)

			case GetLobby:
				msg.Reply <- h.lobbies[msg.Code] // May be nil

			case EnsureLobby:
				msg.Reply <- h.ensure(msg.Code)

			case RemoveLobby:
				lb, ok := h.lobbies[msg.Code]
				if !ok || (msg.Lobby != nil && lb != msg.Lobby) {
					break
				}
				delete(h.lobbies, msg.Code)
				h.deps.Metrics.LobbyClosed()
				h.log.Info("lobby removed", zap.String("lobby", msg.Code))

			case ListLobbies:
				codes := make([]string, 0, len(h.lobbies))
				for code := range h.lobbies {
					codes = append(codes, code)
				}
				msg.Reply <- codes

			case ShutdownHub:
				h.shutdown()
				h.cancel()
				return
			}
		}
	}
}

func (h *Hub) ensure(code string) *lobby.Lobby {
	if lb := h.lobbies[code]; lb != nil {
		return lb
	}
	lb := lobby.NewLobby(h.ctx, code, h.cfg, h.deps)
	h.lobbies[code] = lb
	h.deps.Metrics.LobbyOpened()
	h.log.Info("lobby created", zap.String("lobby", code))
	return lb
}

func (h *Hub) shutdown() {
	for code, lb := range h.lobbies {
		lb.Send(lobby.Shutdown{})
		h.deps.Metrics.LobbyClosed()
		delete(h.lobbies, code)
	}
}
