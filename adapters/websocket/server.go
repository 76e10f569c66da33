package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/reveriechat/reverie/domain"
	"github.com/reveriechat/reverie/usecase"
	"github.com/reveriechat/reverie/utils/log"
)

type Server struct {
	upgrader      websocket.Upgrader
	messageBroker domain.MessageBroker
	hub           *Hub
}

func NewServer(messageBroker domain.MessageBroker) *Server {
	server := &Server{
		upgrader:      websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		messageBroker: messageBroker,
		hub:           NewHub(),
	}

	// Start listening to chat events from the broker
	go server.startChatEventListener()

	return server
}

func (s *Server) RunWebsocketHub() {
	s.hub.Run()
}

func (s *Server) GetHub() *Hub {
	return s.hub
}

// startChatEventListener forwards session events to the clients watching
// that session. Events for sessions with no open browser tab are dropped.
func (s *Server) startChatEventListener() {
	ctx := context.Background()

	messageChan, err := s.messageBroker.Subscribe(ctx, usecase.ChatEventsTopic, "")
	if err != nil {
		log.WithCtx(ctx).Error("❌ Failed to subscribe to chat events topic", zap.Error(err))
		return
	}

	log.WithCtx(ctx).Info("🎧 WebSocket server listening to chat events")

	for {
		select {
		case msg, ok := <-messageChan:
			if !ok {
				log.WithCtx(ctx).Info("🔒 Chat event listener stopped: broker closed")
				return
			}

			var event domain.ChatEvent
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				log.WithCtx(ctx).Error("❌ Failed to unmarshal chat event", zap.Error(err))
				continue
			}

			if !s.hub.IsSessionConnected(event.SessionID) {
				continue
			}

			if err := s.hub.SendToSession(event.SessionID, msg.Payload); err != nil {
				log.WithCtx(ctx).Warn("Failed to push chat event",
					zap.String("session_id", event.SessionID),
					zap.Error(err))
				continue
			}

			log.WithCtx(ctx).Debug("📤 Pushed chat event",
				zap.String("session_id", event.SessionID),
				zap.String("kind", string(event.Kind)))

		case <-ctx.Done():
			log.WithCtx(ctx).Info("🔒 Chat event listener stopped")
			return
		}
	}
}
