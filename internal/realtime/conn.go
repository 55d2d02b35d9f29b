package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

const writeWait = 10 * time.Second

var (
	errConnClosed = errors.New("connection closed")
	errBufferFull = errors.New("connection buffer exceeded")
)

// Conn is one websocket connection of an authenticated user. Outbound frames
// go through a buffered queue drained by a single writer goroutine.
type Conn struct {
	ID          string
	UserID      uuid.UUID
	ConnectedAt time.Time

	ws   *websocket.Conn
	send chan []byte
	once sync.Once
	done chan struct{}

	// rooms is guarded by the hub lock.
	rooms map[string]struct{}
}

func newConn(ws *websocket.Conn, userID uuid.UUID, buffer int, now time.Time) *Conn {
	if buffer <= 0 {
		buffer = 1
	}
	return &Conn{
		ID:          uuid.NewString(),
		UserID:      userID,
		ConnectedAt: now,
		ws:          ws,
		send:        make(chan []byte, buffer),
		done:        make(chan struct{}),
		rooms:       make(map[string]struct{}),
	}
}

// enqueue queues payload without blocking. A full queue closes the
// connection so one slow reader cannot stall a broadcast.
func (c *Conn) enqueue(payload []byte) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	default:
		c.Close()
		return errBufferFull
	}
}

// Close stops the writer and closes the socket. It is safe to call more than once.
func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.done)
		if c.ws != nil {
			_ = c.ws.Close()
		}
	})
}

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				c.Close()
				return
			}
		}
	}
}

func (c *Conn) write(payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return websocket.Message.Send(c.ws, string(payload))
}
