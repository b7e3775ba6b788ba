package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"backboard/internal/run"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
	wsEventBuf   = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients hit this from the dashboard origin; CORS is already
	// wide open at the HTTP layer.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket upgrades the connection and streams coordinator events as
// JSON messages. The first message is always the full current view so a
// reconnecting client starts from consistent state.
func (s *DashboardServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	id, events := s.coord.Subscribe(wsEventBuf)
	s.log.Debug("websocket client connected", "subscriber", id)

	go s.wsReadLoop(conn, id)
	s.wsWriteLoop(conn, events)
}

// wsReadLoop drains incoming frames so control messages are processed, and
// tears the subscription down when the client goes away.
func (s *DashboardServer) wsReadLoop(conn *websocket.Conn, id int) {
	defer func() {
		s.coord.Unsubscribe(id)
		conn.Close()
	}()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// wsWriteLoop pushes the initial view, then every coordinator event, with
// periodic pings. It ends when the subscription channel closes or a write
// fails.
func (s *DashboardServer) wsWriteLoop(conn *websocket.Conn, events <-chan run.Event) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	if err := s.writeWS(conn, wsMessage{Type: "view", View: ptr(s.coord.View())}); err != nil {
		return
	}

	for {
		select {
		case e, ok := <-events:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.writeWS(conn, wsMessage{Type: "event", Event: &e}); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *DashboardServer) writeWS(conn *websocket.Conn, msg wsMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// wsMessage is the envelope for everything pushed over the socket.
type wsMessage struct {
	Type  string     `json:"type"`
	View  *run.View  `json:"view,omitempty"`
	Event *run.Event `json:"event,omitempty"`
}

func ptr[T any](v T) *T { return &v }
