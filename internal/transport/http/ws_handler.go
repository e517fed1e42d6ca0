package http

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"tequest-attempts/internal/app"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// WSHandler streams live leaderboard snapshots of one quiz.
type WSHandler struct {
	feed     *app.LeaderboardFeed
	upgrader websocket.Upgrader
}

func NewWSHandler(feed *app.LeaderboardFeed) *WSHandler {
	return &WSHandler{
		feed: feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS subscribes before upgrading so that unknown quizzes get a plain 404.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.PathValue("id")
	updates, cancel, err := h.feed.Subscribe(r.Context(), quizID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// The read loop only detects disconnects and keeps pong deadlines fresh;
	// clients never send commands on this socket.
	readerDone := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case lb, ok := <-updates:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(outboundMessage[any]{Type: "leaderboard", Payload: lb}); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case <-readerDone:
			return
		}
	}
}
