package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/chartpulse/backend/internal/game"
)

// wsMessage is the envelope for every frame in either direction.
type wsMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Answer    *int   `json:"answer,omitempty"`
	Text      string `json:"text,omitempty"`
}

// handleWebSocket serves the realtime channel: ping/pong, guesses against an
// existing session, and an echo default for everything else.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.String("client_id", clientID), zap.Error(err))
		return
	}
	defer conn.Close()

	s.log.Info("websocket client connected", zap.String("client_id", clientID))

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("websocket read failed", zap.String("client_id", clientID), zap.Error(err))
			} else {
				s.log.Info("websocket client disconnected", zap.String("client_id", clientID))
			}
			return
		}

		var reply any
		switch msg.Type {
		case "ping":
			reply = wsMessage{Type: "pong"}
		case "guess":
			reply = s.wsGuess(msg)
		default:
			reply = wsMessage{Type: "echo", Text: msg.Text}
		}

		if err := conn.WriteJSON(reply); err != nil {
			s.log.Warn("websocket write failed", zap.String("client_id", clientID), zap.Error(err))
			return
		}
	}
}

func (s *Server) wsGuess(msg wsMessage) any {
	if msg.SessionID == "" || msg.Answer == nil {
		return map[string]string{"error": "guess requires session_id and answer"}
	}
	result, err := s.engine.SubmitGuess(msg.SessionID, *msg.Answer)
	if err != nil {
		if errors.Is(err, game.ErrSessionNotFound) || errors.Is(err, game.ErrSessionCompleted) {
			return map[string]string{"error": err.Error()}
		}
		return map[string]string{"error": "internal error"}
	}
	return result
}
