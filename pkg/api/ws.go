package api

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// upgrader is shared by every websocket route. Origin checking is left to
// a reverse proxy in front of this process, matching the teacher's local
// desktop-shell deployment model.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// safeConn serializes writes to a *websocket.Conn, which is not safe for
// concurrent writers — following the teacher's web channel adapter
// pattern of wrapping the raw connection once per handler.
type safeConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newSafeConn(conn *websocket.Conn) *safeConn {
	return &safeConn{conn: conn}
}

func (s *safeConn) WriteJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *safeConn) Close() error {
	return s.conn.Close()
}
