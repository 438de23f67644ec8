package web

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/thelolagemann/gomeboy-web/pkg/display"
	"github.com/thelolagemann/gomeboy-web/pkg/log"
)

type hub struct {
	ctx   context.Context
	fe    display.Frontend
	log   log.Logger
	cache *cache

	clients              map[*Client]bool
	broadcast            chan []byte
	register, unregister chan *Client
	changed              chan struct{}
	done                 chan struct{}

	maxMessage int64
	currentID  uint8

	mu sync.Mutex
}

// newHub returns a hub that lives until ctx is done.
func newHub(ctx context.Context, fe display.Frontend, logger log.Logger, cacheSize int, maxMessage int64) *hub {
	return &hub{
		ctx:        ctx,
		fe:         fe,
		log:        logger,
		cache:      newCache(cacheSize),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		changed:    make(chan struct{}, 1),
		done:       make(chan struct{}),
		maxMessage: maxMessage,
	}
}

// run owns the set of clients until the hub context is done, at
// which point every client connection is closed.
func (h *hub) run() {
	defer close(h.done)

	// periodic info updates
	t := time.NewTicker(time.Second)
	defer t.Stop()

	for {
		select {
		case <-h.ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.Send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.log.Debugf("web: client %d connected from %s", c.ID, c.Metadata.RemoteAddr)
		case c := <-h.unregister:
			h.mu.Lock()
			// is this client still registered
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.Send)
				h.log.Debugf("web: client %d disconnected", c.ID)
			}
			h.mu.Unlock()
		case <-h.changed:
			h.send(h.viewMessage())
		case msg := <-h.broadcast:
			h.send(msg)
		case <-t.C:
			h.send(h.info())
			h.send(h.viewMessage())
		}
	}
}

// send queues msg for every client, dropping clients that are not
// keeping up.
func (h *hub) send(msg []byte) {
	if msg == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.Send <- msg:
		default:
			close(c.Send)
			delete(h.clients, c)
		}
	}
}

// notify marks the view as changed. Changes arriving faster than
// the hub sends them are coalesced.
func (h *hub) notify() {
	select {
	case h.changed <- struct{}{}:
	default:
	}
}

// leave unregisters c, unless the hub has already stopped.
func (h *hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *hub) viewMessage() []byte {
	b, err := json.Marshal(h.fe.View())
	if err != nil {
		h.log.Errorf("web: encoding view: %v", err)
		return nil
	}
	return append([]byte{ViewUpdate}, b...)
}

func (h *hub) cacheMessage() []byte {
	b, err := json.Marshal(h.cache.list())
	if err != nil {
		h.log.Errorf("web: encoding cache: %v", err)
		return nil
	}
	return append([]byte{CacheSync}, b...)
}

// syncCache sends the cached image list to every client.
func (h *hub) syncCache() {
	if msg := h.cacheMessage(); msg != nil {
		select {
		case h.broadcast <- msg:
		case <-h.done:
		}
	}
}

// info builds a ServerInfo message with the id and latency of
// every client.
func (h *hub) info() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()

	data := []byte{ServerInfo}
	for c := range h.clients {
		data = append(data, c.ID)
		data = binary.LittleEndian.AppendUint16(data, c.latency())
	}
	return data
}

// newClient creates a new client, queues the initial messages for
// it and registers it to the hub. It returns false if the hub has
// stopped.
func (h *hub) newClient(conn *websocket.Conn, r *http.Request) (*Client, bool) {
	h.mu.Lock()
	h.currentID++
	id := h.currentID
	h.mu.Unlock()

	c := &Client{
		hub:         h,
		conn:        conn,
		Send:        make(chan []byte, 256),
		ID:          id,
		connectedAt: time.Now(),
	}
	c.Metadata.RemoteAddr = r.RemoteAddr
	c.Metadata.UserAgent = r.Header.Get("User-Agent")

	c.Send <- []byte{ClientInfo, c.ID}
	if msg := h.viewMessage(); msg != nil {
		c.Send <- msg
	}
	if msg := h.cacheMessage(); msg != nil {
		c.Send <- msg
	}

	select {
	case h.register <- c:
		return c, true
	case <-h.done:
		return nil, false
	}
}

// sendAllButClient sends a message to all connected clients except
// the one specified.
func (h *hub) sendAllButClient(client *Client, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c == client {
			continue
		}
		select {
		case c.Send <- message:
		default:
		}
	}
}

// serveWS upgrades the request and attaches the connection to the
// hub. Client requests run with the hub context, since the request
// context ends once the connection is hijacked.
func (h *hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Errorf("web: upgrade: %v", err)
		return
	}

	c, ok := h.newClient(conn, r)
	if !ok {
		conn.Close()
		return
	}

	go c.ReadPump(h.ctx)
	go c.WritePump()
}
