// Package dashboard provides a real-time WebSocket view of sync activity.
//
// The server broadcasts sync status transitions and library/outbox statistics
// to connected WebSocket clients, and exposes Prometheus metrics for the same
// signals.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chartkit/internal/library"
	"chartkit/internal/outbox"
	"chartkit/internal/syncer"
)

// MessageType defines the type of dashboard message.
type MessageType string

const (
	// MessageTypeSyncStatus indicates a sync status transition.
	MessageTypeSyncStatus MessageType = "sync_status"

	// MessageTypeStats indicates updated library and outbox statistics.
	MessageTypeStats MessageType = "stats"
)

// Message represents a dashboard broadcast message.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// SyncStatusData carries one status transition.
type SyncStatusData struct {
	Status syncer.Status `json:"status"`
}

// StatsData carries library and outbox statistics.
type StatsData struct {
	Charts   int `json:"charts"`
	Trashed  int `json:"trashed"`
	Backups  int `json:"backups"`
	Pending  int `json:"pending_mutations"`
}

// Config holds server configuration.
type Config struct {
	// Port to listen on (default: 8080).
	Port int

	// StatsInterval is how often stats are recomputed and broadcast.
	StatsInterval time.Duration

	// Logger for server activity (default: stderr logger).
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:          8080,
		StatsInterval: 5 * time.Second,
		Logger:        log.Default(),
	}
}

// Server manages WebSocket connections and broadcasts dashboard messages.
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server

	lib   *library.Store
	queue *outbox.Queue
	orch  *syncer.Orchestrator

	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	broadcast chan Message

	unsubscribe func()
	statsEvery  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// NewServer creates a dashboard server over the given stores and
// orchestrator.
func NewServer(lib *library.Store, queue *outbox.Queue, orch *syncer.Orchestrator, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}
	if config.StatsInterval <= 0 {
		config.StatsInterval = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:       fmt.Sprintf(":%d", config.Port),
		lib:        lib,
		queue:      queue,
		orch:       orch,
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan Message, 100),
		statsEvery: config.StatsInterval,
		ctx:        ctx,
		cancel:     cancel,
		logger:     config.Logger,
	}
}

// Start begins the HTTP server, the broadcast loop and the stats loop, and
// subscribes to sync status transitions.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/", s.handleRoot)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.unsubscribe = s.orch.OnStatus(func(status syncer.Status) {
		observeStatus(status)
		data, _ := json.Marshal(SyncStatusData{Status: status})
		s.Broadcast(Message{Type: MessageTypeSyncStatus, Data: data})
	})

	s.wg.Add(2)
	go s.broadcastLoop()
	go s.statsLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Dashboard server listening on %s", s.addr)
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	s.logger.Println("Stopping dashboard server")

	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.wg.Wait()
	return nil
}

// Broadcast sends a message to all connected clients.
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
	default:
		s.logger.Println("Warning: broadcast channel full, dropping message")
	}
}

func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("Failed to marshal message: %v", err)
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()
				if err != nil {
					s.logger.Printf("Failed to send to client: %v", err)
					s.removeClient(conn)
				}
			}
		}
	}
}

// statsLoop recomputes and broadcasts statistics periodically.
func (s *Server) statsLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.statsEvery)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			stats, err := s.collectStats()
			if err != nil {
				s.logger.Printf("Failed to collect stats: %v", err)
				continue
			}
			observeStats(stats)
			data, _ := json.Marshal(stats)
			s.Broadcast(Message{Type: MessageTypeStats, Data: data})
		}
	}
}

func (s *Server) collectStats() (*StatsData, error) {
	stats := &StatsData{}

	active, err := s.lib.ListCharts(library.Filter{})
	if err != nil {
		return nil, err
	}
	stats.Charts = len(active)

	trashed, err := s.lib.ListCharts(library.Filter{Status: library.StatusTrashed})
	if err != nil {
		return nil, err
	}
	stats.Trashed = len(trashed)

	backups, err := s.lib.ListBackups()
	if err != nil {
		return nil, err
	}
	stats.Backups = len(backups)

	pending, err := s.queue.Len()
	if err != nil {
		return nil, err
	}
	stats.Pending = pending

	return stats, nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Printf("Client connected (total: %d)", clientCount)

	// New clients immediately learn the current status.
	data, _ := json.Marshal(SyncStatusData{Status: s.orch.Status()})
	welcome := Message{Type: MessageTypeSyncStatus, Timestamp: time.Now(), Data: data}
	welcomeData, _ := json.Marshal(welcome)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = conn.Write(ctx, websocket.MessageText, welcomeData)
	cancel()

	go s.readLoop(conn)
}

func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		// Clients are listen-only; reads just detect disconnects.
		_, _, err := conn.Read(s.ctx)
		if err != nil {
			return
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; exists {
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("Client disconnected (total: %d)", clientCount)
	} else {
		s.clientsMu.Unlock()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.clientsMu.RLock()
	clientCount := len(s.clients)
	s.clientsMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"sync":    s.orch.Status(),
		"clients": clientCount,
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>Chartkit Dashboard</title>
</head>
<body>
    <h1>Chartkit Sync Dashboard</h1>
    <p>WebSocket endpoint: <code>ws://%s/ws</code></p>
    <p>Health check: <a href="/health">/health</a></p>
    <p>Metrics: <a href="/metrics">/metrics</a></p>
    <p>Connect a WebSocket client to receive sync status and library stats.</p>
</body>
</html>`, r.Host)
}

// GetAddr returns the server's listening address.
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
