// Package preview serves what the controller was sent: a websocket stream
// of physical frames, a diagnostics stream and a health endpoint.
package preview

import (
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/wledmatrix/internal/output"
)

const writeWait = 200 * time.Millisecond

// Hub is an output.Mirror. Register it on the Display and every frame that
// reached the controller is pushed to the /ws clients.
type Hub struct {
	mu     sync.Mutex
	width  int
	height int

	// Stats, when set, is reported under "last" in /health.
	Stats func() output.Stats
	// Mode is reported in /health and in the hello message.
	Mode string

	rgb         []byte
	frameID     uint64
	startTime   time.Time
	clients     map[*websocket.Conn]bool
	diagClients map[*websocket.Conn]bool
	upgrader    websocket.Upgrader
}

var _ output.Mirror = (*Hub)(nil)

func NewHub(width, height int) *Hub {
	return &Hub{
		width:       width,
		height:      height,
		rgb:         make([]byte, width*height*3),
		startTime:   time.Now(),
		clients:     map[*websocket.Conn]bool{},
		diagClients: map[*websocket.Conn]bool{},
		upgrader:    websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

type hello struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Mode   string `json:"mode,omitempty"`
}

type frameMsg struct {
	T       int64  `json:"t"`
	FrameID uint64 `json:"frame_id"`
	RGB     []byte `json:"rgb"`
}

// Write records the frame and broadcasts it. Slow or dead clients are
// dropped on their next failed write, never reported to the caller.
func (h *Hub) Write(rgb []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rgb = append(h.rgb[:0], rgb...)
	h.frameID++
	b, err := json.Marshal(frameMsg{T: time.Now().UnixNano(), FrameID: h.frameID, RGB: h.rgb})
	if err != nil {
		return err
	}
	h.broadcast(h.clients, b)
	return nil
}

// Diagnose stamps d with the current frame and pushes it to the /diag
// clients.
func (h *Hub) Diagnose(d Diagnostic) {
	h.mu.Lock()
	defer h.mu.Unlock()
	d.FrameID = h.frameID
	d.T = time.Now().UnixNano()
	b, err := json.Marshal(d)
	if err != nil {
		log.Debug().Err(err).Str("code", string(d.Code)).Msg("marshal diagnostic")
		return
	}
	h.broadcast(h.diagClients, b)
}

// FrameID is the number of frames written so far.
func (h *Hub) FrameID() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frameID
}

// caller holds h.mu
func (h *Hub) broadcast(set map[*websocket.Conn]bool, b []byte) {
	for c := range set {
		_ = c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			log.Debug().Err(err).Str("remote", c.RemoteAddr().String()).Msg("preview client dropped")
			delete(set, c)
			_ = c.Close()
		}
	}
}

func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.HandleFramesWS)
	mux.HandleFunc("/diag", h.HandleDiagWS)
	mux.HandleFunc("/health", h.HandleHealth)
	return mux
}

func (h *Hub) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	b, _ := json.Marshal(hello{Width: h.width, Height: h.height, Mode: h.Mode})

	h.mu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = conn.WriteMessage(websocket.TextMessage, b)
	if err == nil {
		h.clients[conn] = true
	}
	h.mu.Unlock()
	if err != nil {
		conn.Close()
		return
	}
	go h.drain(conn, h.clients)
}

func (h *Hub) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.mu.Lock()
	h.diagClients[conn] = true
	h.mu.Unlock()
	go h.drain(conn, h.diagClients)
}

// drain reads until the peer goes away, then unregisters it.
func (h *Hub) drain(conn *websocket.Conn, set map[*websocket.Conn]bool) {
	defer func() {
		h.mu.Lock()
		delete(set, conn)
		h.mu.Unlock()
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	resp := map[string]any{
		"frame_id": h.frameID,
		"uptime_s": time.Since(h.startTime).Seconds(),
		"width":    h.width,
		"height":   h.height,
		"mode":     h.Mode,
		"clients":  len(h.clients),
	}
	h.mu.Unlock()
	if h.Stats != nil {
		s := h.Stats()
		resp["last"] = map[string]any{
			"strategy":    s.Strategy,
			"skipped":     s.Skipped,
			"pixels":      s.Pixels,
			"packets":     s.Packets,
			"requests":    s.Requests,
			"payload":     s.Payload,
			"bytes":       s.Bytes,
			"duration_ms": float64(s.Duration) / float64(time.Millisecond),
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
