package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"dotsnatch-go/internal/config"
	"dotsnatch-go/internal/detect"
	"dotsnatch-go/internal/zone"
)

//go:embed web/*
var webFS embed.FS

type PreviewSource interface {
	Latest() (data []byte, seq uint64, ok bool)
}

// Options wires the live pipeline state into the HTTP surface. Every field is
// optional.
type Options struct {
	Params   *config.ParamStore
	Zones    []zone.Zone
	Preview  PreviewSource
	Status   func() map[string]any
	Snapshot func() any
}

type Server struct {
	upgrader websocket.Upgrader
	clients  map[*websocket.Conn]*sync.Mutex
	mu       sync.Mutex
	cfg      config.AppConfig
	opts     Options
}

// AdjustRequest is the body of PATCH /params and of "adjust" websocket messages.
type AdjustRequest struct {
	Name string          `json:"name"`
	Op   detect.AdjustOp `json:"op"`
	Step float64         `json:"step"`
}

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10
)

func New(cfg config.AppConfig, opts Options) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]*sync.Mutex),
		cfg:     cfg,
		opts:    opts,
	}
}

func (s *Server) Handler() (http.Handler, error) {
	sub, err := fs.Sub(webFS, "web")
	if err != nil {
		return nil, err
	}
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWS)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/config", s.handleConfig).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/params", s.handleGetParams).Methods(http.MethodGet)
	r.HandleFunc("/params", s.handlePutParams).Methods(http.MethodPut)
	r.HandleFunc("/params", s.handlePatchParams).Methods(http.MethodPatch)
	r.HandleFunc("/zones", s.handleZones).Methods(http.MethodGet)
	r.HandleFunc("/preview.jpg", s.handlePreview).Methods(http.MethodGet)
	r.Handle("/", http.FileServer(http.FS(sub))).Methods(http.MethodGet)
	return r, nil
}

// Run serves until ctx is cancelled, forwarding every value from messages to
// all websocket clients as JSON.
func Run(ctx context.Context, cfg config.AppConfig, messages <-chan any, opts Options) error {
	srv := New(cfg, opts)
	handler, err := srv.Handler()
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	go srv.broadcast(ctx, messages)

	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) configPayload() map[string]any {
	payload := map[string]any{
		"type":     "config",
		"width":    s.cfg.Width,
		"height":   s.cfg.Height,
		"encoding": s.cfg.Encoding,
		"source":   s.cfg.Source,
		"port":     s.cfg.Port,
		"zones":    s.zones(),
		"knobs":    detect.KnobNames(),
	}
	if s.opts.Params != nil {
		payload["params"] = s.opts.Params.Snapshot()
	}
	return payload
}

func (s *Server) zones() []zone.Zone {
	if s.opts.Zones == nil {
		return []zone.Zone{}
	}
	return s.opts.Zones
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	s.mu.Lock()
	writeMu := &sync.Mutex{}
	s.clients[conn] = writeMu
	s.mu.Unlock()

	_ = s.writeJSON(conn, writeMu, s.configPayload())

	go func() {
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(pingEvery)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					if err := s.writeMessage(conn, writeMu, websocket.PingMessage, nil); err != nil {
						_ = conn.Close()
						return
					}
				}
			}
		}()
		defer close(done)
		defer s.removeClient(conn)
		for {
			messageType, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}
			if reply := s.handleRequest(payload); reply != nil {
				_ = s.writeJSON(conn, writeMu, reply)
			}
		}
	}()
}

func (s *Server) handleRequest(payload []byte) any {
	var request struct {
		Type string `json:"type"`
		AdjustRequest
	}
	if err := json.Unmarshal(payload, &request); err != nil {
		return nil
	}
	switch request.Type {
	case "snapshot_request":
		if s.opts.Snapshot == nil {
			return nil
		}
		return s.opts.Snapshot()
	case "adjust":
		if s.opts.Params == nil {
			return nil
		}
		params, err := s.opts.Params.Adjust(request.Name, request.Op, request.Step)
		if err != nil {
			return map[string]any{"type": "error", "error": err.Error()}
		}
		return map[string]any{"type": "params", "params": params}
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, http.StatusOK, s.configPayload())
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{}
	if s.opts.Status != nil {
		payload = s.opts.Status()
	}
	payload["ws_clients"] = s.clientCount()
	writeJSONResponse(w, http.StatusOK, payload)
}

func (s *Server) handleGetParams(w http.ResponseWriter, _ *http.Request) {
	if s.opts.Params == nil {
		http.Error(w, "parameters unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSONResponse(w, http.StatusOK, s.opts.Params.Snapshot())
}

// handlePutParams replaces the whole parameter set. Fields missing from the
// body keep their current value.
func (s *Server) handlePutParams(w http.ResponseWriter, r *http.Request) {
	if s.opts.Params == nil {
		http.Error(w, "parameters unavailable", http.StatusServiceUnavailable)
		return
	}
	next := s.opts.Params.Snapshot()
	if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
		http.Error(w, "invalid parameters: "+err.Error(), http.StatusBadRequest)
		return
	}
	writeJSONResponse(w, http.StatusOK, s.opts.Params.Replace(next))
}

func (s *Server) handlePatchParams(w http.ResponseWriter, r *http.Request) {
	if s.opts.Params == nil {
		http.Error(w, "parameters unavailable", http.StatusServiceUnavailable)
		return
	}
	var req AdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid adjustment: "+err.Error(), http.StatusBadRequest)
		return
	}
	params, err := s.opts.Params.Adjust(req.Name, req.Op, req.Step)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSONResponse(w, http.StatusOK, params)
}

func (s *Server) handleZones(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, http.StatusOK, s.zones())
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.opts.Preview == nil {
		http.NotFound(w, r)
		return
	}
	data, seq, ok := s.opts.Preview.Latest()
	if !ok {
		http.Error(w, "no frame yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Frame-Seq", strconv.FormatUint(seq, 10))
	_, _ = w.Write(data)
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) broadcast(ctx context.Context, messages <-chan any) {
	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-messages:
			if !ok {
				return
			}
			payload, err := json.Marshal(message)
			if err != nil {
				continue
			}
			var stale []*websocket.Conn
			s.mu.Lock()
			for conn, writeMu := range s.clients {
				if err := s.writeMessage(conn, writeMu, websocket.TextMessage, payload); err != nil {
					stale = append(stale, conn)
				}
			}
			s.mu.Unlock()
			for _, conn := range stale {
				s.removeClient(conn)
			}
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

func (s *Server) clientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) writeJSON(conn *websocket.Conn, writeMu *sync.Mutex, payload any) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(payload)
}

func (s *Server) writeMessage(conn *websocket.Conn, writeMu *sync.Mutex, messageType int, payload []byte) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(messageType, payload)
}
