package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/CageChen/cfbtool/internal/watcher"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// wsClient serialises writes to one connection; gorilla/websocket allows a
// single concurrent writer.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WSHandler pushes container change notifications to connected clients
type WSHandler struct {
	locator string
	clients map[*wsClient]struct{}
	mu      sync.RWMutex
}

// NewWSHandler creates a handler announcing changes to locator
func NewWSHandler(locator string) *WSHandler {
	return &WSHandler{
		locator: locator,
		clients: make(map[*wsClient]struct{}),
	}
}

// HandleWS upgrades the request and keeps the client registered until it
// disconnects. New clients are greeted with the container they follow.
func (h *WSHandler) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Debug("websocket upgrade failed")
		return
	}
	client := &wsClient{conn: conn}
	defer func() {
		h.removeClient(client)
		_ = conn.Close()
	}()

	h.addClient(client)
	if data, err := json.Marshal(WSMessage{Type: "hello", Payload: map[string]string{"container": h.locator}}); err == nil {
		if err := client.send(data); err != nil {
			return
		}
	}

	// Clients never send anything meaningful; reading detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// OnContainerChange is called when the watched container changes
func (h *WSHandler) OnContainerChange(event watcher.Event) {
	h.broadcast(WSMessage{
		Type: "containerChange",
		Payload: map[string]string{
			"container": h.locator,
			"event":     event.Type.String(),
			"path":      event.Path,
		},
	})
}

func (h *WSHandler) addClient(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *WSHandler) removeClient(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

func (h *WSHandler) broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.send(data); err != nil {
			logrus.WithError(err).Debug("dropping websocket client")
			h.removeClient(c)
		}
	}
}
