package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 45 * time.Second
	sendBufferSize = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Token auth happens before upgrade; cross-origin pages may connect.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub tracks websocket sessions per user so relayed events reach every
// open tab.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*session]struct{}
}

func NewHub() *Hub {
	return &Hub{sessions: make(map[string]map[*session]struct{})}
}

type session struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
	once   sync.Once
}

func (h *Hub) add(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[s.userID] == nil {
		h.sessions[s.userID] = make(map[*session]struct{})
	}
	h.sessions[s.userID][s] = struct{}{}
}

func (h *Hub) remove(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set := h.sessions[s.userID]; set != nil {
		delete(set, s)
		if len(set) == 0 {
			delete(h.sessions, s.userID)
		}
	}
}

// Send queues a payload for every session of one user. Slow sessions
// are dropped rather than blocking the relay.
func (h *Hub) Send(userID string, payload []byte) {
	h.mu.RLock()
	var dead []*session
	for s := range h.sessions[userID] {
		select {
		case s.send <- payload:
		default:
			dead = append(dead, s)
		}
	}
	h.mu.RUnlock()
	for _, s := range dead {
		h.remove(s)
		s.close()
	}
}

// Connected reports how many sessions a user currently has open.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[userID])
}

func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.sessions {
		for s := range set {
			s.close()
		}
	}
	h.sessions = make(map[string]map[*session]struct{})
}

func (s *session) close() {
	s.once.Do(func() { close(s.send) })
}

// handleWebsocket upgrades the connection after token auth. The token
// rides a query parameter because browsers cannot set headers on
// websocket dials.
func (s *Server) handleWebsocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	claims, err := s.tokens.VerifyToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	sess := &session{
		userID: claims.UserID,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
	}
	s.hub.add(sess)
	s.logger.Debug("websocket connected", "user_id", sess.userID)

	go sess.writePump()
	go func() {
		sess.readPump()
		s.hub.remove(sess)
		sess.close()
		s.logger.Debug("websocket disconnected", "user_id", sess.userID)
	}()
}

// readPump drains client frames so pings are answered; the protocol is
// server-push only.
func (s *session) readPump() {
	defer s.conn.Close()
	s.conn.SetReadLimit(1024)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
