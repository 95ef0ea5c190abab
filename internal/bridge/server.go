package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dcontrol/midiboot/internal/logging"
	"github.com/dcontrol/midiboot/internal/midi"
	"github.com/dcontrol/midiboot/internal/sysex"
	"github.com/dcontrol/midiboot/internal/trigger"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = sysex.MaxFrameSize

	// Frames queued per client before it is considered stalled
	sendQueueLen = 256
)

// Config holds the bridge configuration
type Config struct {
	Host string
	Port int
	Path string // Websocket path, midi.BridgePath when empty
}

// Server relays one MIDI port to websocket clients
type Server struct {
	config   *Config
	port     midi.Port
	upgrader websocket.Upgrader
	log      *zap.Logger

	mu       sync.Mutex
	clients  map[*client]struct{}
	listener net.Listener
	http     *http.Server

	pumpOnce sync.Once
	pump     *trigger.Trigger
	wg       sync.WaitGroup
}

// New creates a bridge for port. The bridge does not own the port; the
// caller closes it after Shutdown.
func New(config *Config, port midi.Port) *Server {
	if config.Path == "" {
		config.Path = midi.BridgePath
	}
	return &Server{
		config: config,
		port:   port,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log:     logging.GetLogger().With(zap.String("midi_port", port.Name())),
		clients: make(map[*client]struct{}),
	}
}

// Handler returns the HTTP handler serving the websocket path. It starts
// forwarding inbound MIDI on first use.
func (s *Server) Handler() http.Handler {
	s.startPump()
	mux := http.NewServeMux()
	mux.HandleFunc(s.config.Path, s.serveWebSocket)
	return mux
}

// Start listens and serves until ctx is cancelled, then shuts down.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.http
	s.mu.Unlock()

	s.log.Info("MIDI bridge listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("path", s.config.Path),
	)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Addr returns the listening address once Start is running.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// startPump forwards every inbound SysEx frame on the port to all clients.
func (s *Server) startPump() {
	s.pumpOnce.Do(func() {
		t := s.port.Triggers().Arm(sysex.MustCompile("F0"))
		s.mu.Lock()
		s.pump = t
		s.mu.Unlock()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer t.Close()
			for {
				select {
				case <-t.Done():
					return
				default:
				}
				if !t.Wait(pongWait) {
					continue
				}
				for msg, ok := t.Dequeue(); ok; msg, ok = t.Dequeue() {
					s.broadcast(msg)
				}
			}
		}()
	})
}

func (s *Server) broadcast(msg sysex.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
			s.log.Warn("Client too slow, dropping frame", zap.String("remote_addr", c.remoteAddr))
		}
	}
}

func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Websocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}

	c := &client{
		conn:       conn,
		remoteAddr: r.RemoteAddr,
		send:       make(chan sysex.Message, sendQueueLen),
		done:       make(chan struct{}),
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	logging.LogConnection(c.remoteAddr, "bridge_client_connected")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		c.writeLoop()
	}()

	s.readLoop(c)

	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	c.close()
	logging.LogConnection(c.remoteAddr, "bridge_client_closed")
}

// readLoop sends each complete frame from the client to the MIDI port.
func (s *Server) readLoop(c *client) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	var framer sysex.Framer
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Info("Client connection error", zap.String("remote_addr", c.remoteAddr), zap.Error(err))
			}
			return
		}
		if messageType != websocket.BinaryMessage {
			s.log.Debug("Ignoring non-binary message", zap.String("remote_addr", c.remoteAddr))
			continue
		}
		for _, msg := range framer.Feed(data) {
			if err := s.port.Send(msg); err != nil {
				s.log.Error("Failed to forward frame to MIDI port", zap.Error(err))
				return
			}
		}
	}
}

// Shutdown closes every client and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MIDI bridge...")

	s.mu.Lock()
	srv := s.http
	if s.pump != nil {
		s.pump.Close()
	}
	for c := range s.clients {
		c.close()
	}
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("All bridge clients closed")
	case <-ctx.Done():
		s.log.Warn("Shutdown timeout, forcing close")
	}

	logging.Sync()
	return err
}

// GetActiveConnections returns the number of connected clients
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

type client struct {
	conn       *websocket.Conn
	remoteAddr string
	send       chan sysex.Message
	done       chan struct{}
	closeOnce  sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}
