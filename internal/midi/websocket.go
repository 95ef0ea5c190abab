package midi

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dcontrol/midiboot/internal/logging"
	"github.com/dcontrol/midiboot/internal/sysex"
)

// BridgePath is the HTTP path a bridge serves its websocket on.
const BridgePath = "/sysex"

const wsWriteTimeout = 5 * time.Second

// WebSocketPort reaches a MIDI port served by midiboot-bridge. Each binary
// websocket message carries one or more whole SysEx frames.
type WebSocketPort struct {
	stream

	conn *websocket.Conn

	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// DialBridge connects to a bridge. url is a ws:// or wss:// URL; a bare
// host:port is accepted and gets the default path.
func DialBridge(ctx context.Context, url string, opts ...Option) (*WebSocketPort, error) {
	url = NormalizeBridgeURL(url)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bridge %s: %w", url, err)
	}

	p := &WebSocketPort{
		stream: newStream(url, buildOptions(opts)),
		conn:   conn,
		done:   make(chan struct{}),
	}

	p.wg.Add(1)
	go p.readLoop()

	logging.Info("Connected to MIDI bridge", zap.String("url", url))
	return p, nil
}

// NormalizeBridgeURL adds the scheme and path when they are missing.
func NormalizeBridgeURL(url string) string {
	if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
		url = "ws://" + url
	}
	_, rest, _ := strings.Cut(url, "://")
	if !strings.Contains(rest, "/") {
		url += BridgePath
	}
	return url
}

func (p *WebSocketPort) readLoop() {
	defer p.wg.Done()
	defer p.reg.Close()

	var framer sysex.Framer
	for {
		messageType, data, err := p.conn.ReadMessage()
		if err != nil {
			select {
			case <-p.done:
			default:
				logging.Warn("Bridge connection lost", zap.String("url", p.name), zap.Error(err))
			}
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		for _, msg := range framer.Feed(data) {
			p.deliver(msg)
		}
	}
}

// Send writes msg as one binary websocket message.
func (p *WebSocketPort) Send(msg sysex.Message) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.observe(logging.DirectionOut, msg)
	_ = p.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := p.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
		return fmt.Errorf("bridge write failed: %w", err)
	}
	return nil
}

// SendThrottled waits for the throttle then sends.
func (p *WebSocketPort) SendThrottled(ctx context.Context, msg sysex.Message) error {
	if err := p.throttle.Wait(ctx); err != nil {
		return err
	}
	return p.Send(msg)
}

// Close says goodbye to the bridge and releases every trigger.
func (p *WebSocketPort) Close() error {
	var err error
	p.once.Do(func() {
		close(p.done)
		p.writeMu.Lock()
		_ = p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		p.writeMu.Unlock()
		err = p.conn.Close()
		p.wg.Wait()
	})
	return err
}
