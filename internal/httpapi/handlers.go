package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/lobby-backend/internal/appearance"
	"github.com/DoyleJ11/lobby-backend/internal/handoff"
	"github.com/DoyleJ11/lobby-backend/internal/hub"
	"github.com/DoyleJ11/lobby-backend/internal/lobby"
	"github.com/DoyleJ11/lobby-backend/pkg/types"
)

const maxCodeAttempts = 16

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

func CreateLobby(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var code string
		for attempt := 0; attempt < maxCodeAttempts; attempt++ {
			c, err := GenerateCode()
			if err != nil {
				http.Error(w, "failed to generate code", http.StatusInternalServerError)
				return
			}
			if h.Lookup(r.Context(), c) == nil {
				code = c
				break
			}
			log.Debug("collision on code, regenerating", zap.String("lobby", c))
		}
		if code == "" {
			http.Error(w, "failed to generate code", http.StatusServiceUnavailable)
			return
		}

		reply := make(chan *lobby.Lobby, 1)
		if !h.Send(hub.EnsureLobby{Code: code, Reply: reply}) {
			http.Error(w, "server shutting down", http.StatusServiceUnavailable)
			return
		}
		select {
		case lb := <-reply:
			if lb == nil {
				http.Error(w, "failed to create lobby", http.StatusInternalServerError)
				return
			}
		case <-r.Context().Done():
			return
		}

		writeJSON(w, http.StatusCreated, struct {
			Code string `json:"code"`
		}{Code: code})
	}
}

func GetLobby(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		lb := h.Lookup(r.Context(), code)
		if lb == nil {
			http.Error(w, "lobby not found", http.StatusNotFound)
			return
		}
		reply := make(chan lobby.View, 1)
		if !lb.Send(lobby.GetState{Reply: reply}) {
			http.Error(w, "lobby not found", http.StatusNotFound)
			return
		}
		var v lobby.View
		select {
		case v = <-reply:
		case <-lb.Done():
			http.Error(w, "lobby not found", http.StatusNotFound)
			return
		case <-r.Context().Done():
			return
		}

		writeJSON(w, http.StatusOK, types.LobbyView{
			Code:       v.Code,
			Version:    v.Version,
			Phase:      v.Phase.String(),
			Host:       v.Host,
			AllReady:   v.AllReady,
			NumClients: v.NumClients,
			Roster:     types.FromRecords(v.Roster),
		})
	}
}

func Catalog(c *appearance.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, c)
	}
}

// SessionParticipant serves what the next phase reads for one participant.
// Unknown participants get the defaults, not a 404.
func SessionParticipant(store handoff.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		id := chi.URLParam(r, "id")
		p, err := store.Lookup(r.Context(), code, id)
		if err != nil {
			log.Error("handoff lookup failed", zap.String("lobby", code), zap.String("participant", id), zap.Error(err))
			http.Error(w, "lookup failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
