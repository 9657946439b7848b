package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/sole-vault/shoe-studio/internal/models"
	"github.com/sole-vault/shoe-studio/internal/services"
	"github.com/sole-vault/shoe-studio/internal/session"
)

const (
	wsReadLimit   = 16 << 10
	wsIdleTimeout = 10 * time.Minute
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// wsInMessage is the JSON shape sent from the page.
type wsInMessage struct {
	Type   string         `json:"type"` // generate or watch
	Prompt string         `json:"prompt"`
	Style  models.StyleID `json:"style"`
}

// wsOutMessage is the JSON shape sent to the page.
type wsOutMessage struct {
	Type  string        `json:"type"`
	State *models.State `json:"state,omitempty"`
	Error string        `json:"error,omitempty"`
}

// WS handles GET /ws. Each "generate" or "watch" message streams state
// updates for the caller's session until the current cycle settles.
func (h *Handler) WS(w http.ResponseWriter, r *http.Request) {
	sessionID, err := session.GetID(r.Context())
	if err != nil {
		http.Error(w, "session required", http.StatusUnauthorized)
		return
	}
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("ws read")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))

		var in wsInMessage
		if err := json.Unmarshal(raw, &in); err != nil {
			_ = writeWSJSON(conn, wsOutMessage{Type: "error", Error: "invalid JSON: " + err.Error()})
			continue
		}

		switch in.Type {
		case "generate":
			st, err := h.studio.Generate(r.Context(), sessionID, in.Prompt, in.Style)
			if err != nil {
				msg := err.Error()
				if errors.Is(err, services.ErrInFlight) {
					msg = "A generation is already in progress."
				}
				if werr := writeWSJSON(conn, wsOutMessage{Type: "error", State: &st, Error: msg}); werr != nil {
					return
				}
				if !st.Busy() {
					continue
				}
			}
		case "watch":
		default:
			_ = writeWSJSON(conn, wsOutMessage{Type: "error", Error: "expected type: generate or watch"})
			continue
		}

		if err := h.streamState(conn, sessionID); err != nil {
			log.Debug().Err(err).Msg("ws write")
			return
		}
	}
}

// streamState writes every state change until the session leaves the loading phase.
func (h *Handler) streamState(conn *websocket.Conn, sessionID string) error {
	updates, unsubscribe := h.studio.Subscribe(sessionID)
	defer unsubscribe()

	for st := range updates {
		st := st
		if err := writeWSJSON(conn, wsOutMessage{Type: "state", State: &st}); err != nil {
			return err
		}
		if !st.Busy() {
			return nil
		}
	}
	return nil
}

func writeWSJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
	return conn.WriteJSON(v)
}
