package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/DoyleJ11/lobby-backend/internal/hub"
	"github.com/DoyleJ11/lobby-backend/internal/lobby"
	"github.com/DoyleJ11/lobby-backend/internal/metrics"
	"github.com/DoyleJ11/lobby-backend/internal/transition"
	"github.com/DoyleJ11/lobby-backend/pkg/types"
)

// Options tunes each connection. IdleTimeout bounds how long a ping may go
// unanswered; pings go out every IdleTimeout/2, so a client that stays quiet
// but answers them keeps its seat.
type Options struct {
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	RateLimit    rate.Limit
	RateBurst    int
	Log          *zap.Logger
	Metrics      *metrics.Metrics
}

func (o Options) withDefaults() Options {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 3 * time.Second
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 30 * time.Second
	}
	if o.RateLimit <= 0 {
		o.RateLimit = rate.Inf
	}
	if o.RateBurst <= 0 {
		o.RateBurst = 1
	}
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	return o
}

func Handler(h *hub.Hub, opts Options) http.HandlerFunc {
	opts = opts.withDefaults()
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}
		lb := h.Lookup(r.Context(), code)
		if lb == nil {
			http.Error(w, "lobby not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		// Identity is assigned here and never read from the client.
		clientID := uuid.NewString()
		c := &client{
			id:   clientID,
			lb:   lb,
			conn: conn,
			opts: opts,
			log:  opts.Log.With(zap.String("lobby", code), zap.String("participant", clientID)),
		}
		c.serve(r.Context())
	}
}

type client struct {
	id   string
	lb   *lobby.Lobby
	conn *websocket.Conn
	opts Options
	log  *zap.Logger
}

func (c *client) serve(ctx context.Context) {
	out := make(chan lobby.Update, 32)
	reply := make(chan error, 1)
	if !c.lb.Send(lobby.Join{ClientID: c.id, Outbox: out, Reply: reply}) {
		c.conn.Close(websocket.StatusGoingAway, "lobby closed")
		return
	}
	var err error
	select {
	case err = <-reply:
	case <-c.lb.Done():
		err = lobby.ErrSessionClosed
	}
	if err != nil {
		c.log.Info("join rejected", zap.Error(err))
		_ = c.write(ctx, types.ServerMessage{Type: types.ServerError, Error: err.Error()})
		c.conn.Close(websocket.StatusPolicyViolation, "join rejected")
		return
	}
	defer c.lb.Send(lobby.Leave{ClientID: c.id, Outbox: out})

	// Welcome goes out before the writer starts so it precedes the sync.
	if err := c.write(ctx, types.ServerMessage{
		Type:          types.ServerWelcome,
		LobbyCode:     c.lb.Code(),
		ParticipantID: c.id,
	}); err != nil {
		return
	}

	// Writer goroutine
	writeCtx, writeCancel := context.WithCancel(ctx)
	defer writeCancel()
	go c.writeLoop(writeCtx, out)
	go c.keepAlive(writeCtx)

	c.readLoop(ctx)
}

func (c *client) writeLoop(ctx context.Context, out <-chan lobby.Update) {
	for u := range out {
		if err := c.write(ctx, toServerMessage(u)); err != nil {
			c.log.Debug("write failed", zap.Error(err))
			c.conn.CloseNow()
			return
		}
	}
	// The lobby closed our outbox: it either stopped or dropped us.
	c.conn.Close(websocket.StatusNormalClosure, "lobby closed")
}

// keepAlive pings the peer. Pongs are consumed by the read loop, so a peer
// counts as gone only when it stops answering, not when it stops talking.
func (c *client) keepAlive(ctx context.Context) {
	t := time.NewTicker(c.opts.IdleTimeout / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pingCtx, cancel := context.WithTimeout(ctx, c.opts.IdleTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					c.log.Info("ping unanswered, closing", zap.Error(err))
				}
				c.conn.CloseNow()
				return
			}
		}
	}
}

func (c *client) readLoop(ctx context.Context) {
	limiter := rate.NewLimiter(c.opts.RateLimit, c.opts.RateBurst)
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				c.log.Debug("read ended", zap.Error(err))
			}
			return
		}

		if !limiter.Allow() {
			c.opts.Metrics.RateLimited()
			_ = c.write(ctx, types.ServerMessage{Type: types.ServerError, Error: "rate limited"})
			continue
		}

		var cm types.ClientMessage
		if err := json.Unmarshal(data, &cm); err != nil {
			_ = c.write(ctx, types.ServerMessage{Type: types.ServerError, Error: "bad json"})
			continue
		}
		if !c.dispatch(ctx, cm) {
			return
		}
	}
}

// dispatch forwards one client message to the lobby. It returns false once
// the lobby has stopped.
func (c *client) dispatch(ctx context.Context, cm types.ClientMessage) bool {
	switch cm.Type {
	case types.ClientToggleReady:
		return c.lb.Send(lobby.ToggleReady{ClientID: c.id})

	case types.ClientSubmitDetails:
		reply := make(chan error, 1)
		if !c.lb.Send(lobby.SubmitDetails{ClientID: c.id, Name: cm.Name, Appearance: cm.Appearance, Reply: reply}) {
			return false
		}
		select {
		case err := <-reply:
			if err != nil {
				_ = c.write(ctx, types.ServerMessage{Type: types.ServerDetailsRejected, Error: err.Error()})
			}
			return true
		case <-c.lb.Done():
			return false
		}

	case types.ClientStartSession:
		reply := make(chan lobby.StartResult, 1)
		if !c.lb.Send(lobby.StartSession{ClientID: c.id, Reply: reply}) {
			return false
		}
		select {
		case res := <-reply:
			if res.Outcome != transition.OutcomeStarted {
				msg := types.ServerMessage{Type: types.ServerStartRejected, Outcome: string(res.Outcome)}
				if res.Err != nil {
					msg.Error = res.Err.Error()
				}
				_ = c.write(ctx, msg)
			} else if res.Err != nil {
				c.log.Warn("session started with handoff errors", zap.Error(res.Err))
			}
			return true
		case <-c.lb.Done():
			return false
		}

	default:
		_ = c.write(ctx, types.ServerMessage{Type: types.ServerError, Error: "unknown type"})
		return true
	}
}

func (c *client) write(ctx context.Context, msg types.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.opts.WriteTimeout)
	defer cancel()
	if err := c.conn.Write(ctx, websocket.MessageText, payload); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.log.Info("client write timed out")
		}
		return err
	}
	return nil
}

func toServerMessage(u lobby.Update) types.ServerMessage {
	switch u.Kind {
	case lobby.UpdateSync:
		return types.ServerMessage{
			Type:    types.ServerRosterSync,
			Version: u.Version,
			Roster:  types.FromRecords(u.Roster),
			Phase:   u.Phase.String(),
		}
	case lobby.UpdateChange:
		return types.ServerMessage{
			Type:    types.ServerRosterChange,
			Version: u.Version,
			Change:  types.FromChange(u.Change),
		}
	case lobby.UpdatePrepare:
		return types.ServerMessage{Type: types.ServerPrepareTransition, Version: u.Version, Phase: u.Phase.String()}
	case lobby.UpdateStarted:
		return types.ServerMessage{Type: types.ServerSessionStarted, Version: u.Version, Phase: u.Phase.String()}
	default:
		return types.ServerMessage{Type: types.ServerError, Error: "unknown update"}
	}
}
