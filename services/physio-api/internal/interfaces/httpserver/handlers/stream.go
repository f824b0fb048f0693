package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"physio-server/services/physio-api/internal/config"
	"physio-server/services/physio-api/internal/infrastructure/metrics"
	"physio-server/services/physio-api/internal/interfaces/httpserver/middlewares"
	"physio-server/services/physio-api/internal/interfaces/httpserver/responses"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPingPeriod = 30 * time.Second
	streamPongWait   = 2 * streamPingPeriod
	streamReadLimit  = 512
)

// StreamFrame wraps every snapshot written to a stream.
type StreamFrame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Streamer upgrades requests to WebSockets and pushes snapshots down them.
type Streamer struct {
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewStreamer(cfg *config.Config, log zerolog.Logger) *Streamer {
	cors := middlewares.DefaultCORSConfig(cfg.CORSOrigins)
	return &Streamer{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || cors.OriginAllowed(origin)
			},
		},
		log: log.With().Str("component", "stream").Logger(),
	}
}

// Stream subscribes, upgrades the connection and writes each snapshot as a
// StreamFrame of type name until the client leaves or the subscription ends.
// Subscription errors are answered as plain HTTP errors. afterWrite, when
// set, runs after every delivered frame; its errors are logged.
func Stream[T any](
	s *Streamer,
	c *gin.Context,
	name string,
	subscribe func(ctx context.Context) (<-chan T, error),
	encode func(T) any,
	afterWrite func(ctx context.Context) error,
) {
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	snapshots, err := subscribe(ctx)
	if err != nil {
		responses.HandleError(c, err, "failed to open stream")
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Debug().Err(err).Str("stream", name).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	defer metrics.StreamOpened(name)()

	// The reader only handles control frames; its exit means the client left.
	conn.SetReadLimit(streamReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(streamWriteWait))
			return
		case snapshot, ok := <-snapshots:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "subscription ended"),
					time.Now().Add(streamWriteWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(StreamFrame{Type: name, Data: encode(snapshot)}); err != nil {
				s.log.Debug().Err(err).Str("stream", name).Msg("stream write failed")
				return
			}
			if afterWrite != nil {
				if err := afterWrite(ctx); err != nil {
					s.log.Warn().Err(err).Str("stream", name).Msg("stream post-delivery hook failed")
				}
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}
