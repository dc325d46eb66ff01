package stream

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JaymarM28/kari-transcriptor/domain"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// The peer only sends control frames.
	maxMessageSize = 512

	// Time the peer has to answer our close frame.
	closeGracePeriod = 2 * time.Second
)

// ErrConsumerGone is returned when the peer closes before the last event.
var ErrConsumerGone = errors.New("websocket consumer disconnected")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Source starts a job bound to ctx and returns its event channel.
type Source func(ctx context.Context) <-chan domain.ProgressEvent

// ServeWebSocket upgrades the request and streams the events produced by
// source as JSON text frames, followed by a normal close frame. The job
// context is cancelled as soon as the peer goes away. ServeWebSocket returns
// once the job has released its channel.
func ServeWebSocket(w http.ResponseWriter, r *http.Request, source Source, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}
	defer conn.Close()

	g, ctx := errgroup.WithContext(r.Context())
	events := source(ctx)

	p := &pump{conn: conn, logger: logger}
	g.Go(func() error { return p.read() })
	g.Go(func() error { return p.write(ctx, events) })

	err = g.Wait()
	Drain(events)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Info("WebSocket stream ended early", zap.Error(err))
	}
	return err
}

type pump struct {
	conn     *websocket.Conn
	logger   *zap.Logger
	finished atomic.Bool
}

// read consumes control frames until the peer closes the connection.
func (p *pump) read() error {
	p.conn.SetReadLimit(maxMessageSize)
	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		p.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := p.conn.ReadMessage(); err != nil {
			if p.finished.Load() {
				return nil
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				p.logger.Warn("WebSocket error", zap.Error(err))
			}
			return ErrConsumerGone
		}
	}
}

// write sends events until the channel closes, pinging the peer meanwhile.
func (p *pump) write(ctx context.Context, events <-chan domain.ProgressEvent) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-events:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				p.finished.Store(true)
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				if err := p.conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
					return err
				}
				p.conn.SetReadDeadline(time.Now().Add(closeGracePeriod))
				return nil
			}
			if err := p.conn.WriteJSON(event); err != nil {
				p.logger.Error("Failed to write message", zap.Error(err))
				return err
			}

		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}
