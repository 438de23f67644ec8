package web

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/thelolagemann/gomeboy-web/internal/loader"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Client is a websocket connection attached to the hub.
type Client struct {
	mu       sync.RWMutex
	hub      *hub
	conn     *websocket.Conn
	Send     chan []byte
	ID       uint8
	Metadata struct {
		RemoteAddr string
		UserAgent  string
	}
	avgLatency  uint16
	connectedAt time.Time
}

func (c *Client) latency() uint16 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.avgLatency
}

// ReadPump reads messages from the client until the connection
// closes or the client sends Closing.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.maxMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Errorf("web: client %d: %v", c.ID, err)
			}
			return
		}
		if len(message) == 0 {
			continue
		}

		switch message[0] {
		case Closing:
			c.hub.sendAllButClient(c, []byte{ClientClosing, c.ID})
			return
		case KeepAlive:
			continue
		default:
			if err := c.handle(ctx, message); err != nil {
				c.hub.log.Errorf("web: client %d: %v", c.ID, err)
				c.trySend(append([]byte{ClientError}, err.Error()...))
			}
		}
	}
}

// handle performs a client request.
func (c *Client) handle(ctx context.Context, message []byte) error {
	switch message[0] {
	case Upload:
		name, data, ok := bytes.Cut(message[1:], []byte{0})
		if !ok {
			return errors.New("malformed upload")
		}
		if err := c.hub.fe.Select(ctx, loader.FromBytes(string(name), data)); err != nil {
			return err
		}
		c.hub.cache.add(string(name), data)
		c.hub.syncCache()
	case Refresh:
		c.hub.fe.Tick()
	case Reload:
		if len(message) != 9 {
			return errors.New("malformed reload")
		}
		hash := binary.LittleEndian.Uint64(message[1:])
		name, data, ok := c.hub.cache.get(hash)
		if !ok {
			return fmt.Errorf("no cached image %016x", hash)
		}
		return c.hub.fe.Select(ctx, loader.FromBytes(name, data))
	case Select:
		return c.hub.fe.Select(ctx)
	default:
		return fmt.Errorf("unknown event %d", message[0])
	}
	return nil
}

// trySend queues message unless the client is not keeping up.
func (c *Client) trySend(message []byte) {
	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	select {
	case c.Send <- message:
	default:
	}
}

// WritePump writes queued messages to the client, measuring the
// connection latency after each write.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.hub.leave(c)
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			// hub closed the connection
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				return
			}

			// update average latency
			if d, err := rtt(c.conn.UnderlyingConn()); err == nil {
				c.mu.Lock()
				c.avgLatency = uint16((uint32(c.avgLatency)*9 + uint32(d.Milliseconds())) / 10)
				c.mu.Unlock()
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024 * 16,
	WriteBufferSize: 1024 * 16,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}
