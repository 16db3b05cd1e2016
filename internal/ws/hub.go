package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	diag "github.com/coreman2200/funtimes-dmxnode/internal/diagnostics"
	"github.com/coreman2200/funtimes-dmxnode/internal/dmx"
	"github.com/coreman2200/funtimes-dmxnode/internal/fixture"
	"github.com/coreman2200/funtimes-dmxnode/internal/mixer"
)

const (
	writeWait       = 200 * time.Millisecond
	DefaultThrottle = 50 * time.Millisecond // ~20 fps to monitors
	peerQueue       = 4
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

type Option func(*Hub)

func WithLogger(l zerolog.Logger) Option { return func(h *Hub) { h.log = l } }

// WithPatch lets /control report the patch.
func WithPatch(p *fixture.Patch) Option { return func(h *Hub) { h.patch = p } }

func WithThrottle(d time.Duration) Option { return func(h *Hub) { h.throttle = d } }

// Hub is the websocket control surface. It is an output sink (monitor
// frames) and a diagnostics sink (diag stream).
type Hub struct {
	eng      *mixer.Engine
	patch    *fixture.Patch
	log      zerolog.Logger
	throttle time.Duration
	start    time.Time

	mu          sync.Mutex
	frameID     uint64
	lastEmit    time.Time
	dropped     uint64
	clients     map[*peer]bool
	diagClients map[*peer]bool
}

// peer is a push-only subscriber. Its own goroutine drains send; Write and
// Notify never touch the socket.
type peer struct {
	conn *websocket.Conn
	send chan []byte
}

func (p *peer) pump(log zerolog.Logger) {
	broken := false
	for b := range p.send {
		if broken {
			continue
		}
		p.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := p.conn.WriteMessage(websocket.TextMessage, b); err != nil {
			log.Debug().Err(err).Msg("push failed")
			broken = true
			p.conn.Close()
		}
	}
}

func NewHub(eng *mixer.Engine, opts ...Option) *Hub {
	h := &Hub{
		eng:         eng,
		log:         zerolog.Nop(),
		throttle:    DefaultThrottle,
		start:       time.Now(),
		clients:     map[*peer]bool{},
		diagClients: map[*peer]bool{},
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Routes registers every endpoint on mux.
func (h *Hub) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/control", h.HandleControlWS)
	mux.HandleFunc("/monitor", h.HandleMonitorWS)
	mux.HandleFunc("/diag", h.HandleDiagWS)
	mux.HandleFunc("/health", h.HandleHealth)
}

type monitorFrame struct {
	T       int64      `json:"t"`
	FrameID uint64     `json:"frame_id"`
	Mode    mixer.Mode `json:"mode"`
	DMX     []byte     `json:"dmx"` // base64
}

// Write queues f for monitor clients, at most once per throttle window.
// It never waits on a socket; a client whose queue is full misses the frame.
func (h *Hub) Write(f dmx.Frame) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frameID++
	now := time.Now()
	if len(h.clients) == 0 || now.Sub(h.lastEmit) < h.throttle {
		return nil
	}
	h.lastEmit = now
	b, err := json.Marshal(monitorFrame{T: now.UnixNano(), FrameID: h.frameID, Mode: h.eng.Mode(), DMX: f[:]})
	if err != nil {
		return err
	}
	h.broadcast(h.clients, b)
	return nil
}

// Notify pushes d to diag clients.
func (h *Hub) Notify(d diag.Diagnostic) {
	b, err := json.Marshal(d)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcast(h.diagClients, b)
}

// broadcast needs h.mu.
func (h *Hub) broadcast(set map[*peer]bool, b []byte) {
	for p := range set {
		select {
		case p.send <- b:
		default:
			h.dropped++
		}
	}
}

// Dropped counts messages skipped because a client fell behind.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

func (h *Hub) HandleMonitorWS(w http.ResponseWriter, r *http.Request) {
	h.subscribe(w, r, h.clients)
}

func (h *Hub) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	h.subscribe(w, r, h.diagClients)
}

// subscribe registers a push-only client and drains its reads until it
// goes away.
func (h *Hub) subscribe(w http.ResponseWriter, r *http.Request, set map[*peer]bool) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	p := &peer{conn: conn, send: make(chan []byte, peerQueue)}
	h.mu.Lock()
	set[p] = true
	h.mu.Unlock()
	go p.pump(h.log)
	go func() {
		defer func() {
			h.mu.Lock()
			delete(set, p)
			close(p.send)
			h.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// HandleControlWS answers every JSON command with one Reply.
func (h *Hub) HandleControlWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var rep Reply
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			rep = Reply{Error: "bad json: " + err.Error()}
		} else {
			rep = h.Apply(cmd)
		}
		b, _ := json.Marshal(rep)
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			return
		}
	}
}

func (h *Hub) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	id, dropped := h.frameID, h.dropped
	h.mu.Unlock()
	resp := map[string]any{
		"frame_id": id,
		"dropped":  dropped,
		"uptime_s": time.Since(h.start).Seconds(),
		"status":   h.eng.State(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
