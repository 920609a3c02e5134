package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nanocal/nanocontrol/fastheat"
)

// writeWait bounds one status message write
const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// statusStream pushes the experiment progress as JSON whenever it changes,
// at most once per StatusInterval, until the client goes away
func (s *Server) statusStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has replied to the client
		s.log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	s.log.Info("Status stream opened", zap.String("remote_addr", remote))

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	// the read side only notices the close frame
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.log.Warn("WebSocket read error", zap.Error(err), zap.String("remote_addr", remote))
				}
				return
			}
		}
	}()

	limiter := rate.NewLimiter(rate.Every(s.cfg.StatusInterval), 1)
	var (
		last fastheat.Progress
		sent bool
	)
	for {
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		p := s.Progress()
		if sent && p == last {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(p); err != nil {
			s.log.Warn("WebSocket write error", zap.Error(err), zap.String("remote_addr", remote))
			break
		}
		last, sent = p, true
	}
	s.log.Info("Status stream closed", zap.String("remote_addr", remote))
}
