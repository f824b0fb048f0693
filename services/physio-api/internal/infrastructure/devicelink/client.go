package devicelink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"physio-server/services/physio-api/internal/domain/device"
	"physio-server/services/physio-api/internal/infrastructure/metrics"
	"physio-server/services/physio-api/internal/utils/idgen"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	pongWait   = 2 * pingPeriod
)

// Resolver returns the controller's WebSocket URL.
type Resolver func(ctx context.Context) (string, error)

// StaticResolver always returns url.
func StaticResolver(url string) Resolver {
	return func(context.Context) (string, error) {
		if url == "" {
			return "", errors.New("controller url is not configured")
		}
		return url, nil
	}
}

// Client keeps a WebSocket link to the device controller. One goroutine
// reads, writes are serialised, and a dropped link is redialled after a
// fixed delay until Run's context ends.
type Client struct {
	resolve        Resolver
	reconnectDelay time.Duration
	dialer         *websocket.Dialer
	log            zerolog.Logger

	writeMu sync.Mutex
	conn    *websocket.Conn

	handlerMu sync.RWMutex
	handler   StatusHandler

	connected atomic.Bool
}

var _ device.Controller = (*Client)(nil)

func NewClient(resolve Resolver, reconnectDelay time.Duration, log zerolog.Logger) *Client {
	if reconnectDelay <= 0 {
		reconnectDelay = 3 * time.Second
	}
	return &Client{
		resolve:        resolve,
		reconnectDelay: reconnectDelay,
		dialer:         &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:            log.With().Str("component", "device-link").Logger(),
	}
}

// OnStatus registers the receiver of status frames.
func (c *Client) OnStatus(handler StatusHandler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.handler = handler
}

func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Send writes a command frame. It fails fast while the link is down.
func (c *Client) Send(ctx context.Context, cmd device.ControllerCommand) error {
	if !c.Connected() {
		return device.ErrControllerUnavailable
	}
	frame := CommandFrame(idgen.NewTimeOrderedID("cmd", time.Now()), cmd)
	return c.write(ctx, frame)
}

func (c *Client) write(ctx context.Context, frame Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.conn == nil {
		return device.ErrControllerUnavailable
	}
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := c.conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("write %s frame: %w", frame.Type, err)
	}
	return nil
}

// Run dials and serves the link until ctx ends.
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.session(ctx)
		c.setConn(nil)
		if ctx.Err() != nil {
			return nil
		}
		c.log.Warn().Err(err).Dur("retry_in", c.reconnectDelay).Msg("device controller link down")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.reconnectDelay):
			metrics.ControllerReconnects.Inc()
		}
	}
}

func (c *Client) session(ctx context.Context) error {
	url, err := c.resolve(ctx)
	if err != nil {
		return fmt.Errorf("resolve controller: %w", err)
	}
	conn, _, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	c.setConn(conn)
	c.log.Info().Str("url", url).Msg("device controller connected")

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.keepAlive(sessionCtx, conn)

	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		c.dispatch(sessionCtx, frame)
	}
}

func (c *Client) dispatch(ctx context.Context, frame Frame) {
	switch frame.Type {
	case FrameStatus:
		c.handlerMu.RLock()
		handler := c.handler
		c.handlerMu.RUnlock()
		if handler != nil {
			handler(ctx, frame.Report())
		}
	case FrameAck:
		c.log.Debug().Str("request_id", frame.RequestID).Msg("command acknowledged")
	case FrameError:
		c.log.Warn().Str("request_id", frame.RequestID).Str("message", frame.Message).Msg("controller rejected command")
	default:
		c.log.Debug().Str("type", string(frame.Type)).Msg("ignoring unknown frame")
	}
}

// keepAlive pings the controller and closes the socket when ctx ends so
// the blocked reader returns.
func (c *Client) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.writeMu.Lock()
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			c.writeMu.Unlock()
			_ = conn.Close()
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.writeMu.Lock()
	c.conn = conn
	c.writeMu.Unlock()
	c.connected.Store(conn != nil)
	metrics.SetControllerConnected(conn != nil)
}
