package main

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WriteWait bounds the time spent writing to a slow client
var WriteWait = 5 * time.Second

// wsConn models a ws connection to a view.
// Change messages are buffered and sent as one JSON array,
// replies to commands are sent immediately.
type wsConn struct {
	sync.Mutex
	conn   *websocket.Conn
	buffer []JSONChangeMessage

	Name    string
	closing bool
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn, Name: "error: uninitialized"}
}

// writeJSON buffers a change message, to be sent later
func (ws *wsConn) writeJSON(msg JSONChangeMessage) {
	ws.Lock()
	defer ws.Unlock()

	if ws.closing {
		return
	}
	// if nothing was buffered yet, schedule a flush for later
	if ws.buffer == nil {
		time.AfterFunc(MessageSendInterval, ws.Flush)
	}
	ws.buffer = append(ws.buffer, msg)
}

// writeImmediateJSON sends an object immediately (no buffering)
func (ws *wsConn) writeImmediateJSON(msg interface{}) {
	ws.Lock()
	defer ws.Unlock()
	ws.write(msg)
}

func (ws *wsConn) write(msg interface{}) {
	if ws.closing {
		return
	}
	ws.conn.SetWriteDeadline(time.Now().Add(WriteWait))
	if err := ws.conn.WriteJSON(msg); err != nil {
		log.Errorf("%s: error %s", ws.Name, err.Error())
	}
}

func (ws *wsConn) close() {
	log.Debug("WS closing ", ws.Name)
	ws.Lock()
	defer ws.Unlock()
	ws.closing = true
	ws.buffer = nil
}

// Flush sends the buffered messages
func (ws *wsConn) Flush() {
	ws.Lock()
	defer ws.Unlock()

	log.Debug("WS flush ", ws.Name, ", len=", len(ws.buffer))
	if ws.buffer == nil {
		return
	}
	ws.write(ws.buffer)
	ws.buffer = nil
}
