package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The session token already gates access; the app is not browser-hosted.
		return true
	},
}

func (h *ChatHandler) handleMessagesSocket(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.authorizeConversation(w, r)
	if !ok {
		return
	}
	h.serveChannel(w, r, messageChannel(conv.ID))
}

func (h *ChatHandler) handleTypingSocket(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.authorizeConversation(w, r)
	if !ok {
		return
	}
	h.serveChannel(w, r, typingChannel(conv.ID))
}

// serveChannel upgrades the request and streams hub events for one channel
// until the peer disconnects.
func (h *ChatHandler) serveChannel(w http.ResponseWriter, r *http.Request, channel string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade %s: %v", channel, err)
		return
	}

	sub := h.events.Subscribe(channel)
	defer h.events.Unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	defer conn.Close()

	for {
		select {
		case payload, ok := <-sub.C:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(wsWriteWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("write to %s subscriber: %v", channel, err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
