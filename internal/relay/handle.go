package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// sessionHandle is the write side of one websocket session. Every
// outbound frame goes through a bounded queue drained by a single
// writer goroutine; gorilla connections allow only one concurrent
// writer.
type sessionHandle struct {
	conn         *websocket.Conn
	send         chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
}

func newSessionHandle(conn *websocket.Conn, queueDepth int, writeTimeout time.Duration) *sessionHandle {
	h := &sessionHandle{
		conn:         conn,
		send:         make(chan []byte, queueDepth),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
	}
	go h.writeLoop()
	return h
}

// Deliver queues one frame without blocking. A slow peer that fills its
// queue loses the frame rather than stalling the sender's read loop.
func (h *sessionHandle) Deliver(frame []byte) error {
	select {
	case <-h.done:
		return ErrHandleClosed
	default:
	}
	select {
	case h.send <- frame:
		return nil
	default:
		return ErrQueueFull
	}
}

func (h *sessionHandle) Close() error {
	h.closeOnce.Do(func() {
		close(h.done)
		_ = h.conn.Close()
	})
	return nil
}

func (h *sessionHandle) writeLoop() {
	for {
		select {
		case <-h.done:
			return
		case frame := <-h.send:
			_ = h.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := h.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				_ = h.Close()
				return
			}
		}
	}
}
