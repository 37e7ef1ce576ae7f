package gateway

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kottz/kolmodin-go/internal/logger"
	"github.com/kottz/kolmodin-go/internal/lobby"
)

// writeWait, pongWait and pingPeriod govern connection liveness: the
// server relies on the framing layer's own ping/pong, not an
// application-level heartbeat.
const (
	writeWait               = 10 * time.Second
	pongWait                = 60 * time.Second
	pingPeriod              = (pongWait * 9) / 10
	downstreamQueueCapacity = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Manager is the subset of lobby.Manager the gateway needs: looking up a
// lobby by id.
type Manager interface {
	Lookup(lobbyID string) (lobby.Handle, bool)
}

// NewHandler returns the gin handler for GET /ws. checkOrigin validates
// the request's Origin header against the configured CORS allow-list.
func NewHandler(manager Manager, checkOrigin func(*http.Request) bool) gin.HandlerFunc {
	upgrader.CheckOrigin = func(r *http.Request) bool {
		if checkOrigin == nil {
			return true
		}
		return checkOrigin(r)
	}

	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Gateway().Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		s := &session{
			conn:     conn,
			clientID: uuid.NewString(),
			send:     make(chan []byte, downstreamQueueCapacity),
			manager:  manager,
		}
		go s.writePump()
		go s.readPump()
	}
}

// session is the per-connection reader/writer task pair of the WebSocket
// Session Handler, bound to at most one Lobby Agent for the lifetime of
// the connection.
type session struct {
	conn     *websocket.Conn
	clientID string
	send     chan []byte
	manager  Manager

	lobby     lobby.Handle
	connected bool
}

// readPump reads frames from the socket. The first frame must be
// ConnectToLobby; every frame after that is forwarded to the bound Lobby
// Agent as a ClientEvent.
func (s *session) readPump() {
	log := logger.Gateway().With().Str("client_id", s.clientID).Logger()
	defer func() {
		if s.connected {
			s.lobby.ClientDisconnected(s.clientID)
		}
		close(s.send)
		s.conn.Close()
	}()

	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Msg("websocket read error")
			}
			return
		}
		if messageType == websocket.BinaryMessage {
			continue // binary frames carry no defined meaning on this connection
		}

		if !s.connected {
			if !s.handleConnectFrame(message) {
				return
			}
			continue
		}

		s.lobby.ClientEvent(s.clientID, message)
	}
}

// handleConnectFrame validates and processes the mandatory first frame.
// Returns false if the connection should be closed.
func (s *session) handleConnectFrame(message []byte) bool {
	frame, err := ParseClientFrame(message)
	if err != nil || frame.Kind != ClientConnectToLobby {
		s.writeAndClose(SystemErrorFrame("first frame must be ConnectToLobby"))
		return false
	}

	handle, ok := s.manager.Lookup(frame.LobbyID)
	if !ok {
		s.writeAndClose(SystemErrorFrame("unknown lobby"))
		return false
	}

	s.lobby = handle
	s.connected = true
	s.lobby.ClientConnected(s.clientID, s.send)
	return true
}

// writeAndClose best-effort enqueues one last frame for writePump to
// flush; the caller then returns from readPump, whose deferred close(s.send)
// is the sole place the channel is ever closed, so writePump observes it
// and shuts the connection down.
func (s *session) writeAndClose(frame []byte) {
	select {
	case s.send <- frame:
	default:
	}
}

// writePump writes frames enqueued on send to the socket, and drives the
// framing layer's own ping/pong liveness.
func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
