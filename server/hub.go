package server

import (
	"encoding/base64"
	"errors"
	"net/http"
	"sync"

	"github.com/QRLogin-sec/QRLChecker/core"
	"github.com/QRLogin-sec/QRLChecker/libs"
	"github.com/QRLogin-sec/QRLChecker/utils"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// ErrNoClient no intercepting proxy connected to the hub
var ErrNoClient = errors.New("no proxy connected")

// ReplayMessage what the proxy addon receives for each replay
type ReplayMessage struct {
	Type    string              `json:"type"`
	ID      string              `json:"id"`
	Method  string              `json:"method"`
	URL     string              `json:"url"`
	Headers []map[string]string `json:"headers"`
	// base64 encoded
	Body string `json:"body"`
}

// Hub websocket replay channel to the intercepting proxy
type Hub struct {
	mu       sync.Mutex
	conns    map[*websocket.Conn]bool
	upgrader websocket.Upgrader
	session  *core.Session
}

// NewHub create a hub, messages coming back from the proxy go to the session
func NewHub(session *core.Session) *Hub {
	return &Hub{
		conns: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		session: session,
	}
}

// Clients number of connected proxies
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Handle upgrade a proxy connection
func (h *Hub) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.ErrorF("Error upgrading websocket: %v", err)
		return
	}
	h.mu.Lock()
	h.conns[conn] = true
	h.mu.Unlock()
	utils.InforF("[hub] proxy connected from %v", conn.RemoteAddr())

	go h.readLoop(conn)
}

func (h *Hub) readLoop(conn *websocket.Conn) {
	defer func() {
		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
		conn.Close()
		utils.InforF("[hub] proxy disconnected")
	}()
	for {
		var msg CaptureMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		ex, phase, err := msg.Exchange()
		if err != nil {
			utils.ErrorF("[hub] bad message: %v", err)
			continue
		}
		if phase == libs.PhaseRequest {
			h.session.OnRequest(ex)
		} else {
			h.session.OnResponse(ex)
		}
	}
}

// SubmitReplay push the exchange to every connected proxy
func (h *Hub) SubmitReplay(ex *libs.Exchange) error {
	msg := ReplayMessage{
		Type:    "replay",
		ID:      ex.ID,
		Method:  ex.Request.Method,
		URL:     ex.Request.URL,
		Headers: ex.Request.Headers,
		Body:    base64.StdEncoding.EncodeToString(ex.Request.Body),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.conns) == 0 {
		return ErrNoClient
	}
	var lastErr error
	sent := 0
	for conn := range h.conns {
		if err := conn.WriteJSON(msg); err != nil {
			lastErr = err
			continue
		}
		sent++
	}
	if sent == 0 {
		return lastErr
	}
	return nil
}
