package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const priceInterval = 1500 * time.Millisecond

// websocket pushes price snapshots on a fixed interval and trade updates as
// they happen. A write error ends the session; the client reconnects.
func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.Warnf("ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	trades, unsub := s.Bus.Subscribe(100)
	defer unsub()

	ticker := time.NewTicker(priceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			msg := gin.H{"type": "prices", "data": s.Manager.Prices()}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case payload, ok := <-trades:
			if !ok {
				return
			}
			msg := gin.H{"type": "trade", "data": payload}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}
