// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

package api

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/ZSC714725/convertqueue/internal/logger"
	"github.com/ZSC714725/convertqueue/internal/scheduler"
)

// envelope wraps every pushed event with its name
type envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type client struct {
	conn *websocket.Conn
	send chan envelope
}

// Hub fans scheduler events out to websocket clients. Broadcasts never
// block: a client whose buffer is full loses the event, the completion
// state is always recoverable from the jobs API.
type Hub struct {
	upgrader websocket.Upgrader
	log      logger.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates a Hub
func NewHub(log logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log:     log,
		clients: map[*client]struct{}{},
	}
}

// Handle GET /api/v1/events upgrades the connection and pumps events until
// the client goes away.
func (h *Hub) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		errResp(c, http.StatusBadRequest, "Upgrade failed", err.Error())
		return
	}

	cl := &client{conn: conn, send: make(chan envelope, 64)}

	h.mu.Lock()
	h.clients[cl] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	h.log.Info("event client connected (%d total)", count)

	go cl.writePump()

	// inbound messages are ignored, the read loop only detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.drop(cl)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for cl := range h.clients {
		clients = append(clients, cl)
	}
	h.mu.Unlock()

	for _, cl := range clients {
		cl.conn.Close()
	}
}

// EmitProgress implements scheduler.Emitter
func (h *Hub) EmitProgress(p scheduler.ProgressPayload) {
	h.broadcast(scheduler.EventProgress, p)
}

// EmitStderr implements scheduler.Emitter
func (h *Hub) EmitStderr(p scheduler.StderrPayload) {
	h.broadcast(scheduler.EventStderr, p)
}

// EmitCompletion implements scheduler.Emitter
func (h *Hub) EmitCompletion(p scheduler.CompletionPayload) {
	h.broadcast(scheduler.EventCompletion, p)
}

// EmitStatus implements scheduler.Emitter
func (h *Hub) EmitStatus(p scheduler.StatusPayload) {
	h.broadcast(scheduler.EventStatus, p)
}

func (h *Hub) broadcast(event string, data interface{}) {
	e := envelope{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for cl := range h.clients {
		select {
		case cl.send <- e:
		default:
			// slow client, skip this event
		}
	}
}

func (h *Hub) drop(cl *client) {
	h.mu.Lock()
	_, ok := h.clients[cl]
	if ok {
		delete(h.clients, cl)
		close(cl.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	cl.conn.Close()
	if ok {
		h.log.Info("event client disconnected (%d total)", count)
	}
}

func (cl *client) writePump() {
	for e := range cl.send {
		if err := cl.conn.WriteJSON(e); err != nil {
			break
		}
	}
	cl.conn.Close()
}
