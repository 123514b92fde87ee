package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/message"
)

// WebSocketConfig configures the WebSocket broadcast transport.
type WebSocketConfig struct {
	Addr         string        // listen address, e.g. ":8080"
	Path         string        // upgrade path (default /<topic>)
	Topic        string        // resolved topic name
	WriteTimeout time.Duration // per client write deadline
}

// WebSocketPublisher serves a WebSocket endpoint and broadcasts every frame
// as a binary msgpack message to all connected clients.
//
// Slow or broken clients are dropped; they never hold up the pipeline.
type WebSocketPublisher struct {
	cfg      WebSocketConfig
	upgrader websocket.Upgrader

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener

	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]*wsClient
	wg        sync.WaitGroup

	published atomic.Uint64
	errors    atomic.Uint64
}

type wsClient struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
}

// NewWebSocketPublisher creates a publisher; call Start to listen.
func NewWebSocketPublisher(cfg WebSocketConfig) *WebSocketPublisher {
	if cfg.Topic == "" {
		cfg.Topic = TopicCameraRGB
	}
	if cfg.Path == "" {
		cfg.Path = "/" + cfg.Topic
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 2 * time.Second
	}

	return &WebSocketPublisher{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
		},
		clients: make(map[*websocket.Conn]*wsClient),
	}
}

// Handler returns the HTTP handler serving the upgrade path.
func (p *WebSocketPublisher) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(p.cfg.Path, p.handleWebSocket)
	return mux
}

// Start binds the listener and serves in the background.
func (p *WebSocketPublisher) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.server != nil {
		return fmt.Errorf("websocket server already running")
	}

	ln, err := net.Listen("tcp", p.cfg.Addr)
	if err != nil {
		return fmt.Errorf("websocket listen on %s: %w", p.cfg.Addr, err)
	}
	p.listener = ln
	p.server = &http.Server{
		Handler:           p.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("publish: websocket server stopped", "error", err)
		}
	}(p.server)

	slog.Info("publish: websocket server listening",
		"addr", ln.Addr().String(),
		"path", p.cfg.Path,
	)
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (p *WebSocketPublisher) Addr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener != nil {
		return p.listener.Addr().String()
	}
	return p.cfg.Addr
}

// Publish broadcasts msg to every connected client.
//
// Having no clients is not an error: the frame is simply not delivered.
func (p *WebSocketPublisher) Publish(ctx context.Context, msg *message.ImageRGB888) error {
	payload, err := message.Encode(msg)
	if err != nil {
		p.errors.Add(1)
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	for _, c := range p.snapshot() {
		c.writeMu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(p.cfg.WriteTimeout))
		err := c.conn.WriteMessage(websocket.BinaryMessage, payload)
		c.writeMu.Unlock()

		if err != nil {
			slog.Debug("publish: dropping websocket client", "remote", c.conn.RemoteAddr().String(), "error", err)
			p.removeClient(c)
		}
	}

	p.published.Add(1)
	return nil
}

// Close disconnects every client and stops the server.
func (p *WebSocketPublisher) Close(ctx context.Context) error {
	for _, c := range p.snapshot() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		p.removeClient(c)
	}

	p.mu.Lock()
	srv := p.server
	p.server = nil
	p.listener = nil
	p.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	p.wg.Wait()
	return err
}

// ClientCount returns the number of connected clients.
func (p *WebSocketPublisher) ClientCount() int {
	p.clientsMu.RLock()
	defer p.clientsMu.RUnlock()
	return len(p.clients)
}

// Stats returns publisher statistics
func (p *WebSocketPublisher) Stats() Stats {
	return Stats{
		Connected: p.ClientCount() > 0,
		Published: p.published.Load(),
		Errors:    p.errors.Load(),
	}
}

func (p *WebSocketPublisher) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.errors.Add(1)
		slog.Warn("publish: websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{conn: conn}

	p.clientsMu.Lock()
	p.clients[conn] = c
	count := len(p.clients)
	p.clientsMu.Unlock()

	slog.Info("publish: websocket client connected", "remote", conn.RemoteAddr().String(), "clients", count)

	p.wg.Add(1)
	go p.readLoop(c)
}

// readLoop discards client messages; it exists to notice disconnects and
// to process control frames.
func (p *WebSocketPublisher) readLoop(c *wsClient) {
	defer p.wg.Done()
	defer p.removeClient(c)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (p *WebSocketPublisher) removeClient(c *wsClient) {
	c.closeOnce.Do(func() {
		p.clientsMu.Lock()
		delete(p.clients, c.conn)
		p.clientsMu.Unlock()

		_ = c.conn.Close()
	})
}

func (p *WebSocketPublisher) snapshot() []*wsClient {
	p.clientsMu.RLock()
	defer p.clientsMu.RUnlock()

	list := make([]*wsClient, 0, len(p.clients))
	for _, c := range p.clients {
		list = append(list, c)
	}
	return list
}
