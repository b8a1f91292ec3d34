package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/crystal-mush/hubportal/pkg/color"
	"github.com/crystal-mush/hubportal/pkg/events"
	"github.com/crystal-mush/hubportal/pkg/gamedb"
	"github.com/crystal-mush/hubportal/pkg/world"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebServer is the websocket host adapter plus a small read-only HTTP API.
// Clients join a world as players, stream their positions, send commands
// and receive bus events.
type WebServer struct {
	hub       *Hub
	httpSrv   *http.Server
	mux       *http.ServeMux
	rl        *rateLimiter
	origins   originPolicy
	done      chan struct{}
	stopOnce  sync.Once
	upgrader  websocket.Upgrader
	startTime time.Time
}

// NewWebServer creates a web server bound to the hub.
func NewWebServer(hub *Hub) *WebServer {
	conf := hub.Config()
	ws := &WebServer{
		hub:       hub,
		mux:       http.NewServeMux(),
		rl:        newRateLimiter(conf.WebRateLimit),
		startTime: time.Now(),
		origins:   newOriginPolicy(conf.WebCORSOrigins),
		done:      make(chan struct{}),
	}
	ws.upgrader = websocket.Upgrader{CheckOrigin: ws.origins.checkOrigin}
	ws.registerRoutes(conf)
	return ws
}

// Handler returns the root handler with middleware applied.
func (ws *WebServer) Handler() http.Handler {
	return ws.httpSrv.Handler
}

// registerRoutes sets up all HTTP routes.
func (ws *WebServer) registerRoutes(conf *GameConf) {
	// Apply global middleware: CORS -> rate limit
	handler := http.Handler(ws.mux)
	handler = rateLimitMiddleware(ws.rl, handler)
	handler = corsMiddleware(ws.origins, handler)

	ws.httpSrv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", conf.WebHost, conf.WebPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ws.mux.HandleFunc("GET /ws", ws.handleWebSocket)
	ws.mux.HandleFunc("GET /health", ws.handleHealth)

	ws.mux.HandleFunc("GET /api/v1/portals", ws.handlePortals)
	ws.mux.HandleFunc("GET /api/v1/portals/{id}", ws.handlePortal)
	ws.mux.HandleFunc("GET /api/v1/links", ws.handleLinks)
	ws.mux.HandleFunc("GET /api/v1/colors", ws.handleColors)
	ws.mux.HandleFunc("GET /api/v1/history", ws.handleHistory)

	if ws.hub.Metrics != nil {
		ws.mux.Handle("GET /metrics", ws.hub.Metrics.Handler())
	}
}

// Start begins listening. It returns nil after Stop.
func (ws *WebServer) Start() error {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ws.done:
				return
			case <-ticker.C:
				ws.rl.cleanup()
			}
		}
	}()

	conf := ws.hub.Config()
	var err error
	if conf.WebTLS {
		res, tlsErr := SetupTLS(conf)
		if tlsErr != nil {
			return fmt.Errorf("web tls: %w", tlsErr)
		}
		ws.httpSrv.TLSConfig = res.Config
		if res.AutocertMgr != nil {
			// ACME HTTP-01 challenges need port 80.
			go func() {
				if err := http.ListenAndServe(":80", res.AutocertMgr.HTTPHandler(nil)); err != nil {
					log.Printf("WARNING: ACME challenge listener: %v", err)
				}
			}()
		}
		log.Printf("Web server listening on %s (HTTPS)", ws.httpSrv.Addr)
		err = ws.httpSrv.ListenAndServeTLS("", "")
	} else {
		log.Printf("Web server listening on %s (HTTP)", ws.httpSrv.Addr)
		err = ws.httpSrv.ListenAndServe()
	}
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts down the web server.
func (ws *WebServer) Stop(ctx context.Context) error {
	ws.stopOnce.Do(func() { close(ws.done) })
	return ws.httpSrv.Shutdown(ctx)
}

// --- WebSocket Handler ---

// WSMessage is the JSON message format for WebSocket communication.
type WSMessage struct {
	Type    string         `json:"type"`
	Text    string         `json:"text,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	Command string         `json:"command,omitempty"`
	Name    string         `json:"name,omitempty"`
	World   string         `json:"world,omitempty"`
	Pos     *WSPos         `json:"pos,omitempty"`
}

// WSPos is a continuous position on the wire.
type WSPos struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (p *WSPos) vec() gamedb.Vec3 {
	if p == nil {
		return gamedb.Vec3{}
	}
	return gamedb.Vec3{X: p.X, Y: p.Y, Z: p.Z}
}

func wsPos(v gamedb.Vec3) *WSPos {
	return &WSPos{X: v.X, Y: v.Y, Z: v.Z}
}

// wsOutbound bounds each client's queue of unsent messages.
const wsOutbound = 256

// wsConn is the part of *websocket.Conn a client uses.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v any) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// wsClient is one websocket connection. Once joined it is the bus
// subscriber for its player. All writes go through out, drained by
// writeLoop, so a slow peer never stalls the sender.
type wsClient struct {
	conn   wsConn
	addr   string
	out    chan WSMessage
	state  sync.Mutex // guards the fields below
	closed bool
	player uuid.UUID
	name   string
	world  string
}

func newWSClient(conn wsConn, addr string, queue int) *wsClient {
	wc := &wsClient{conn: conn, addr: addr, out: make(chan WSMessage, queue)}
	go wc.writeLoop()
	return wc
}

func (wc *wsClient) writeLoop() {
	failed := false
	for msg := range wc.out {
		if failed {
			continue
		}
		wc.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := wc.conn.WriteJSON(msg); err != nil {
			log.Printf("[ws:%s] write error: %v", wc.addr, err)
			failed = true
			wc.close()
			wc.conn.Close()
		}
	}
	wc.conn.Close()
}

// sendJSON queues msg without blocking. A client whose queue is full is
// too far behind to catch up and is disconnected.
func (wc *wsClient) sendJSON(msg WSMessage) {
	wc.state.Lock()
	if wc.closed {
		wc.state.Unlock()
		return
	}
	select {
	case wc.out <- msg:
		wc.state.Unlock()
		return
	default:
	}
	wc.closed = true
	close(wc.out)
	wc.state.Unlock()

	log.Printf("WARNING: [ws:%s] outbound queue full, disconnecting", wc.addr)
	wc.conn.Close()
}

// close stops accepting messages; writeLoop flushes what is queued and
// then closes the connection.
func (wc *wsClient) close() {
	wc.state.Lock()
	defer wc.state.Unlock()
	if !wc.closed {
		wc.closed = true
		close(wc.out)
	}
}

// Receive implements events.Subscriber. It only queues.
func (wc *wsClient) Receive(ev events.Event) {
	wc.sendJSON(WSMessage{
		Type:  ev.Type.String(),
		Text:  ev.Text,
		Data:  ev.Data,
		World: ev.World,
		Pos:   wsPos(ev.Pos),
	})
}

// Closed implements events.Subscriber.
func (wc *wsClient) Closed() bool {
	wc.state.Lock()
	defer wc.state.Unlock()
	return wc.closed
}

func (wc *wsClient) identity() (uuid.UUID, string, string) {
	wc.state.Lock()
	defer wc.state.Unlock()
	return wc.player, wc.name, wc.world
}

// handleWebSocket upgrades an HTTP connection to a WebSocket.
func (ws *WebServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}

	// Use X-Forwarded-For if behind a reverse proxy
	remoteAddr := r.RemoteAddr
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx >= 0 {
			remoteAddr = strings.TrimSpace(xff[:idx])
		} else {
			remoteAddr = strings.TrimSpace(xff)
		}
	}

	wc := newWSClient(conn, remoteAddr, wsOutbound)
	wc.sendJSON(WSMessage{Type: "welcome", Text: fmt.Sprintf("%s. Send {\"type\":\"join\",\"name\":\"<player>\"} to enter a world.", VersionString())})
	go ws.readLoop(wc)
}

func (ws *WebServer) readLoop(wc *wsClient) {
	defer func() {
		wc.close()
		id, _, worldID := wc.identity()
		if id != uuid.Nil {
			ws.hub.Bus.Unsubscribe(id, wc)
			ws.hub.Leave(worldID, id)
		}
		log.Printf("[ws:%s] WebSocket closed", wc.addr)
	}()

	for {
		_, msgBytes, err := wc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws:%s] read error: %v", wc.addr, err)
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(msgBytes, &msg); err != nil {
			wc.sendJSON(WSMessage{Type: "error", Text: "Invalid JSON message"})
			continue
		}
		DebugLog("ws %s: %s", wc.addr, msg.Type)

		switch msg.Type {
		case "join":
			ws.handleJoin(wc, msg)
		case "move":
			ws.handleMove(wc, msg)
		case "command":
			ws.handleCommand(wc, msg)
		case "suggest":
			wc.sendJSON(WSMessage{Type: "suggestions", Data: map[string]any{"items": ws.hub.Suggest(msg.Command)}})
		case "leave":
			return
		default:
			wc.sendJSON(WSMessage{Type: "error", Text: fmt.Sprintf("Unknown message type: %s", msg.Type)})
		}
	}
}

func (ws *WebServer) handleJoin(wc *wsClient, msg WSMessage) {
	if id, _, _ := wc.identity(); id != uuid.Nil {
		wc.sendJSON(WSMessage{Type: "error", Text: "Already joined."})
		return
	}
	name := strings.TrimSpace(msg.Name)
	if name == "" {
		wc.sendJSON(WSMessage{Type: "error", Text: "Use: {\"type\":\"join\",\"name\":\"<player>\"}"})
		return
	}
	worldID := msg.World
	if worldID == "" {
		worldID = ws.hub.Config().DefaultWorld
	}

	p := world.Player{ID: uuid.New(), Name: name, Pos: msg.Pos.vec()}
	wc.state.Lock()
	wc.player, wc.name, wc.world = p.ID, name, worldID
	wc.state.Unlock()

	ws.hub.Bus.Subscribe(p.ID, wc)
	ws.hub.Join(worldID, p)
	log.Printf("[ws:%s] %s joined %s as %s", wc.addr, name, worldID, p.ID)
	wc.sendJSON(WSMessage{
		Type:  "joined",
		World: worldID,
		Pos:   wsPos(p.Pos),
		Data: map[string]any{
			"player":     p.ID.String(),
			"name":       name,
			"privileged": ws.hub.IsOperator(name),
		},
	})
}

func (ws *WebServer) handleMove(wc *wsClient, msg WSMessage) {
	id, name, current := wc.identity()
	if id == uuid.Nil {
		wc.sendJSON(WSMessage{Type: "error", Text: "Join a world first."})
		return
	}
	pos := msg.Pos.vec()
	if msg.World != "" && msg.World != current {
		ws.hub.Leave(current, id)
		wc.state.Lock()
		wc.world = msg.World
		wc.state.Unlock()
		ws.hub.Join(msg.World, world.Player{ID: id, Name: name, Pos: pos})
		return
	}
	ws.hub.Worlds.Get(current).Move(id, pos)
}

func (ws *WebServer) handleCommand(wc *wsClient, msg WSMessage) {
	id, name, worldID := wc.identity()
	if id == uuid.Nil {
		wc.sendJSON(WSMessage{Type: "error", Text: "Join a world first."})
		return
	}
	p, ok := ws.hub.Worlds.Get(worldID).Player(id)
	if !ok {
		wc.sendJSON(WSMessage{Type: "error", Text: "You are not in a world."})
		return
	}
	c := &Caller{
		Player:     id,
		Name:       name,
		World:      worldID,
		Pos:        p.Block(),
		InWorld:    true,
		Privileged: ws.hub.IsOperator(name),
		SendFunc:   ws.hub.Bus.Emit,
	}
	ws.hub.Dispatch(c, msg.Command)
}

// --- HTTP API ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (ws *WebServer) handlePortals(w http.ResponseWriter, r *http.Request) {
	worldID := r.URL.Query().Get("world")
	var portals []gamedb.Portal
	if worldID != "" {
		portals = ws.hub.Registry.PortalsIn(worldID)
	} else {
		portals = ws.hub.Registry.Portals()
	}
	recs := make([]gamedb.PortalRecord, 0, len(portals))
	for _, p := range portals {
		recs = append(recs, p.ToRecord())
	}
	writeJSON(w, http.StatusOK, recs)
}

func (ws *WebServer) handlePortal(w http.ResponseWriter, r *http.Request) {
	p, ok := ws.hub.Registry.Get(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "portal not found"})
		return
	}
	writeJSON(w, http.StatusOK, p.ToRecord())
}

func (ws *WebServer) handleLinks(w http.ResponseWriter, r *http.Request) {
	links := ws.hub.Registry.Links()
	out := make([][2]string, 0, len(links))
	for _, l := range links {
		out = append(out, [2]string{l.A, l.B})
	}
	writeJSON(w, http.StatusOK, out)
}

func (ws *WebServer) handleColors(w http.ResponseWriter, r *http.Request) {
	custom := ws.hub.Registry.CustomColors()
	recs := make([]gamedb.CustomColorRecord, 0, len(custom))
	for _, c := range custom {
		recs = append(recs, c.ToRecord())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"builtin": color.BuiltinNames(),
		"custom":  recs,
	})
}

func (ws *WebServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if ws.hub.Journal == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "teleport history is not enabled"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := ws.hub.Journal.Recent(limit, r.URL.Query().Get("player"))
	if err != nil {
		log.Printf("web: history: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history unavailable"})
		return
	}
	type row struct {
		At     time.Time `json:"at"`
		Player string    `json:"player"`
		Name   string    `json:"name"`
		World  string    `json:"world"`
		From   string    `json:"from"`
		To     string    `json:"to"`
		Pos    WSPos     `json:"pos"`
	}
	out := make([]row, 0, len(entries))
	for _, e := range entries {
		out = append(out, row{
			At: e.At, Player: e.Player.String(), Name: e.Name, World: e.World,
			From: e.From, To: e.To, Pos: WSPos{X: e.X, Y: e.Y, Z: e.Z},
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// --- Health Handler ---

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        Version,
		"uptime_seconds": time.Since(ws.startTime).Seconds(),
		"portals":        ws.hub.Registry.Len(),
		"tick":           ws.hub.Tick(),
	})
}
