package common

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// ErrNotConnected is returned by Session.Send while the socket is down.
var ErrNotConnected = errors.New("websocket not connected")

// SessionHooks are the venue callbacks invoked from the session goroutine.
type SessionHooks struct {
	// OnOpen runs after every successful dial, before any message is read.
	// Venues resubscribe their tracked channels here.
	OnOpen func()
	// OnMessage receives every raw inbound frame.
	OnMessage func(msg []byte)
}

// Session is a long-lived reconnecting websocket session. Run is the single
// goroutine that owns the connection for the connector's lifetime; it is the
// sole writer of the connected flag. After a close it sleeps a fixed delay
// and dials again until Close is called.
type Session struct {
	url   string
	delay time.Duration
	hooks SessionHooks
	log   *logrus.Entry

	connMu    sync.RWMutex
	conn      *websocket.Conn
	writeMu   sync.Mutex
	connected atomic.Bool
	reconnect atomic.Bool
}

// NewSession prepares a session; call Run in a dedicated goroutine.
func NewSession(url string, reconnectDelay time.Duration, hooks SessionHooks, log *logrus.Entry) *Session {
	s := &Session{
		url:   url,
		delay: reconnectDelay,
		hooks: hooks,
		log:   log,
	}
	s.reconnect.Store(true)
	return s
}

// Run drives the connect/read/reconnect loop until Close is called.
func (s *Session) Run() {
	for {
		if !s.reconnect.Load() {
			return
		}

		conn, _, err := websocket.DefaultDialer.Dial(s.url, nil)
		if err != nil {
			s.log.Errorf("websocket dial failed: %v", err)
		} else {
			s.setConn(conn)
			s.connected.Store(true)
			s.log.Info("websocket connection opened")

			if s.hooks.OnOpen != nil {
				s.hooks.OnOpen()
			}

			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					s.log.Warnf("websocket connection closed: %v", err)
					break
				}
				if s.hooks.OnMessage != nil {
					s.hooks.OnMessage(msg)
				}
			}

			s.connected.Store(false)
			s.setConn(nil)
			_ = conn.Close()
		}

		if !s.reconnect.Load() {
			return
		}
		time.Sleep(s.delay)
	}
}

// Send marshals v as JSON onto the socket. Writes are serialized because
// subscribe calls originate outside the session goroutine.
func (s *Session) Send(v any) error {
	s.connMu.RLock()
	conn := s.conn
	s.connMu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteJSON(v)
}

// Connected reports whether the socket is currently open.
func (s *Session) Connected() bool {
	return s.connected.Load()
}

// Close stops the reconnect loop permanently and closes any live socket.
func (s *Session) Close() {
	s.reconnect.Store(false)
	s.connMu.RLock()
	conn := s.conn
	s.connMu.RUnlock()
	if conn != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}
}

func (s *Session) setConn(conn *websocket.Conn) {
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
}
