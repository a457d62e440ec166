package transport

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// SessionHandler is the subset of pkg/session.Session the transport layer
// needs to dispatch parsed messages onto. Declared here (rather than
// importing pkg/session) to keep transport free of motion-pipeline
// awareness; pkg/session.Session satisfies it.
type SessionHandler interface {
	Start()
	Stop()
	HandleConfig(msg *ConfigMsg)
	HandleClick(msg *ClickMsg) error
	HandleScroll(msg *ScrollMsg) error
	HandleMoveDelta(msg *MoveDeltaMsg)
	HandleCamFrameMeta(msg *CamFrameMetaMsg)
	HandleCamFrameBody(data []byte, nowMs float64)
	HandleImuSample(msg *ImuSampleMsg, nowMs float64)
}

// NowMs returns the current time in epoch milliseconds, suitable for the
// freshness timestamps Handle* methods expect. A package-level var so
// tests can substitute it.
var NowMs = defaultNowMs

// Server upgrades incoming HTTP connections to the phone<->host WebSocket
// channel and drives one SessionHandler per connection. TLS termination,
// static asset hosting, and the operator dashboard are handled (if at
// all) upstream of this server; it only implements the /ws wire contract.
type Server struct {
	NewSession func() SessionHandler
	Logger     *log.Logger

	upgrader websocket.Upgrader
}

// NewServer creates a Server that constructs one SessionHandler per
// connection via newSession.
func NewServer(newSession func() SessionHandler, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		NewSession: newSession,
		Logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP implements http.Handler, upgrading the request to a WebSocket
// and running the connection's message loop until the client disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Printf("transport: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	sess := s.NewSession()
	sess.Start()
	defer sess.Stop()

	s.Logger.Printf("transport: session %s connected", connID)
	defer s.Logger.Printf("transport: session %s disconnected", connID)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.sendError(conn, err.Error())
			}
			return
		}
		switch msgType {
		case websocket.TextMessage:
			s.handleText(conn, sess, data)
		case websocket.BinaryMessage:
			sess.HandleCamFrameBody(data, NowMs())
		}
	}
}

func (s *Server) handleText(conn *websocket.Conn, sess SessionHandler, data []byte) {
	msg, err := ParseClientMessage(data)
	if err != nil {
		s.sendError(conn, err.Error())
		return
	}

	switch msg.Type {
	case MsgHello:
		ok := true
		s.sendServerState(conn, &ServerStateMsg{T: "server.state", OK: &ok})
	case MsgConfig:
		sess.HandleConfig(msg.Config)
		configured := true
		s.sendServerState(conn, &ServerStateMsg{T: "server.state", Configured: &configured})
	case MsgClick:
		if err := sess.HandleClick(msg.Click); err != nil {
			s.sendError(conn, err.Error())
		}
	case MsgScroll:
		if err := sess.HandleScroll(msg.Scroll); err != nil {
			s.sendError(conn, err.Error())
		}
	case MsgMoveDelta:
		sess.HandleMoveDelta(msg.MoveDelta)
	case MsgImuSample:
		sess.HandleImuSample(msg.ImuSample, NowMs())
	case MsgCamFrame:
		sess.HandleCamFrameMeta(msg.CamFrame)
	default:
		s.sendError(conn, "unknown message type: "+string(msg.Type))
	}
}

func (s *Server) sendServerState(conn *websocket.Conn, msg *ServerStateMsg) {
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	_ = conn.WriteMessage(websocket.TextMessage, b)
}

func (s *Server) sendError(conn *websocket.Conn, message string) {
	b, err := json.Marshal(ErrorMsg{T: "error", Message: message})
	if err != nil {
		return
	}
	_ = conn.WriteMessage(websocket.TextMessage, b)
}
