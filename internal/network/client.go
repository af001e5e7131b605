package network

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/MRamiBalles/WaterBucketGame/server/internal/engine"
	"github.com/MRamiBalles/WaterBucketGame/server/internal/events"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// Frame kinds sent to the peer.
const (
	FrameEvent  = "EVENT"
	FrameResult = "RESULT"
	FrameError  = "ERROR"
)

// Frame is one server-to-client message.
type Frame struct {
	Kind   string            `json:"kind"`
	Event  *events.GameEvent `json:"event,omitempty"`
	Result *engine.Result    `json:"result,omitempty"`
	Error  *ErrorResponse    `json:"error,omitempty"`
}

// Client is a websocket connection bound to one session.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	session *engine.GameSession
	send    chan Frame
	events  <-chan events.GameEvent
	unsub   func()
	limiter *rate.Limiter
}

// NewClient creates a client and subscribes it to its session's events.
func NewClient(hub *Hub, conn *websocket.Conn, session *engine.GameSession) *Client {
	ch, unsub := hub.engine.EventLog().Subscribe(hub.opts.EventBuffer, session.ID())
	mps := hub.opts.MessagesPerSecond
	return &Client{
		hub:     hub,
		conn:    conn,
		session: session,
		send:    make(chan Frame, hub.opts.SendBuffer),
		events:  ch,
		unsub:   unsub,
		limiter: rate.NewLimiter(rate.Limit(mps), mps),
	}
}

// ReadPump pumps commands from the websocket connection into the session.
// It owns c.send and closes it on exit.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.unsub()
		close(c.send)
		c.hub.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read failed", "session", c.session.ID(), "error", err)
			}
			return
		}
		c.hub.metrics.RecordWSMessage(true)

		if !c.limiter.Allow() {
			c.reply(Frame{Kind: FrameError, Error: &ErrorResponse{Error: "too many messages", Code: CodeRateLimited}})
			continue
		}

		var cmd engine.Command
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.reply(Frame{Kind: FrameError, Error: &ErrorResponse{Error: "invalid command: " + err.Error(), Code: string(engine.KindInvalidCommand)}})
			continue
		}

		res, err := c.session.Execute(ctx, cmd)
		frame := Frame{Kind: FrameResult, Result: &res}
		if err != nil {
			frame.Error = errorResponse(err)
		}
		c.reply(frame)
	}
}

// reply queues a frame, dropping it when the peer is not keeping up.
func (c *Client) reply(f Frame) {
	select {
	case c.send <- f:
	default:
		c.hub.logger.Warn("websocket send buffer full, reply dropped", "session", c.session.ID())
	}
}

// WritePump pumps replies and session events to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	feed := c.events
	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(frame); err != nil {
				return
			}
		case e, ok := <-feed:
			if !ok {
				// Unsubscribed; wait for ReadPump to close c.send.
				feed = nil
				continue
			}
			if err := c.write(Frame{Kind: FrameEvent, Event: &e}); err != nil {
				return
			}
			if e.Type == events.EventTypeSessionClosed {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(f Frame) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(f); err != nil {
		return err
	}
	c.hub.metrics.RecordWSMessage(false)
	return nil
}
