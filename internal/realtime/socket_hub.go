package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/ArowuTest/calmcoins-backend/internal/utils"
	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"golang.org/x/exp/slog"
)

var errNoToken = errors.New("authentication required")

// SocketHub is the socket.io server. Every authenticated connection joins
// the room of its user.
type SocketHub struct {
	server *socketio.Server
	secret string
	log    *slog.Logger
}

// NewSocketHub creates the socket.io server. checkOrigin may be nil to accept any origin.
func NewSocketHub(jwtSecret string, checkOrigin func(r *http.Request) bool, log *slog.Logger) *SocketHub {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	if log == nil {
		log = slog.Default()
	}
	server := socketio.NewServer(&engineio.Options{
		Transports: []transport.Transport{
			&websocket.Transport{CheckOrigin: checkOrigin},
			&polling.Transport{CheckOrigin: checkOrigin},
		},
	})

	h := &SocketHub{server: server, secret: jwtSecret, log: log.With("service", "SocketHub")}

	server.OnConnect("/", func(s socketio.Conn) error {
		s.SetContext("")
		userID, err := h.authenticate(s.URL())
		if err != nil {
			h.log.Info("Socket connection rejected", "socketId", s.ID(), "error", err)
			return err
		}
		s.SetContext(userID)
		s.Join(UserRoom(userID))
		h.log.Debug("Socket authenticated", "socketId", s.ID(), "userId", userID)
		return nil
	})

	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		h.log.Debug("Socket closed", "socketId", s.ID(), "reason", reason)
	})

	server.OnError("/", func(s socketio.Conn, e error) {
		h.log.Warn("Socket error", "error", e)
	})

	return h
}

// authenticate resolves the user of a handshake from its token query parameter
func (h *SocketHub) authenticate(u url.URL) (string, error) {
	token := u.Query().Get("token")
	if token == "" {
		token = u.Query().Get("auth_token")
	}
	if token == "" {
		return "", errNoToken
	}
	claims, err := utils.ValidateJWT(token, h.secret)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// Publish emits ev to the room of its user
func (h *SocketHub) Publish(_ context.Context, ev Event) error {
	if ev.UserID == "" {
		return errors.New("event has no user")
	}
	h.server.BroadcastToRoom("/", UserRoom(ev.UserID), ev.Name, ev.Data)
	return nil
}

// Serve runs the socket.io event loop until Close
func (h *SocketHub) Serve() error {
	return h.server.Serve()
}

// Close stops the socket.io server
func (h *SocketHub) Close() error {
	return h.server.Close()
}

// Handler mounts the socket.io endpoint on gin
func (h *SocketHub) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.server.ServeHTTP(c.Writer, c.Request)
	}
}
