package wsutils

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Message is the signalling frame: an event name and a JSON encoded payload.
type Message struct {
	Event string `json:"event"`
	Data  string `json:"data"`
}

type ThreadSafeWriter struct {
	*websocket.Conn
	sync.Mutex
}

func (t *ThreadSafeWriter) WriteJSON(val interface{}) error {
	t.Lock()
	defer t.Unlock()

	_ = t.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.Conn.WriteJSON(val)
}

// WriteEvent marshals data into the frame payload.
func (t *ThreadSafeWriter) WriteEvent(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return t.WriteJSON(&Message{Event: event, Data: string(payload)})
}

func (t *ThreadSafeWriter) WritePing() error {
	t.Lock()
	defer t.Unlock()

	return t.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Close sends a close frame before dropping the socket.
func (t *ThreadSafeWriter) Close() error {
	t.Lock()
	_ = t.Conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	t.Unlock()
	return t.Conn.Close()
}

func (t *ThreadSafeWriter) ReadJSON(val any) error {
	return t.Conn.ReadJSON(val)
}

func NewThreadSafeWriter(conn *websocket.Conn) *ThreadSafeWriter {
	return &ThreadSafeWriter{
		Conn: conn,
	}
}
