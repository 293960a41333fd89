package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"parley/internal/config"
	"parley/internal/session"
	"parley/internal/ws"
)

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is delegated to the deployment's proxy layer.
		return true
	},
}

// handleWebSocket admits an authenticated identity and hands the connection
// to a session. All validation happens before the upgrade so rejections stay
// plain HTTP responses.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	identity, err := s.tokens.Verify(token)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if s.cfg.SessionPolicy == config.SessionPolicyReject {
		if _, connected := s.registry.Lookup(identity); connected {
			http.Error(w, "Already connected", http.StatusConflict)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"identity": identity,
			"error":    err,
		}).Warn("WebSocket upgrade failed")
		return
	}

	transport := ws.NewConnection(conn, identity, ws.Options{
		SendBuffer:     s.cfg.SendBuffer,
		WriteTimeout:   s.cfg.WSWriteTimeout,
		ReadTimeout:    s.cfg.WSReadTimeout,
		PingInterval:   s.cfg.PingInterval,
		MaxMessageSize: s.cfg.MaxMessageSize,
	})

	sess := session.New(transport, s.registry, s.router, s.notifier)
	go sess.Run(s.engineContext())
}
