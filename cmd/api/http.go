package main

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/supportChat-gRPC/internal/data"
	"github.com/PaulBabatuyi/supportChat-gRPC/internal/observability"
)

// helloTimeout bounds how long a websocket client may take to authenticate.
const helloTimeout = 10 * time.Second

// wsHello is the first frame a websocket client sends. Browsers cannot set
// an Authorization header on the upgrade request, so the token travels here.
type wsHello struct {
	Token    string `json:"token"`
	MarkRead bool   `json:"mark_read,omitempty"`
}

// newRouter serves metrics, health checks and the websocket chat watch.
func newRouter(srv *Server, insecureOrigins bool) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health/live", observability.HealthLiveHandler)
	r.Get("/health/ready", observability.HealthReadyHandler(srv.svc.Ping))

	r.Get("/ws/chats/{id}", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: insecureOrigins})
		if err != nil {
			srv.logger.Warn("websocket accept error", zap.Error(err))
			return
		}
		srv.watchWebSocket(r.Context(), conn, chi.URLParam(r, "id"))
	})
	return r
}

func (s *Server) watchWebSocket(ctx context.Context, conn *websocket.Conn, chatID string) {
	defer conn.CloseNow()

	helloCtx, cancel := context.WithTimeout(ctx, helloTimeout)
	var hello wsHello
	err := wsjson.Read(helloCtx, conn, &hello)
	cancel()
	if err != nil {
		conn.Close(websocket.StatusPolicyViolation, "expected auth frame")
		return
	}

	claims, err := s.auth.VerifyToken(hello.Token)
	if err != nil {
		conn.Close(websocket.StatusPolicyViolation, "unauthenticated")
		return
	}
	role, err := data.ParseRole(claims.Role)
	if err != nil {
		conn.Close(websocket.StatusPolicyViolation, "token carries no usable role")
		return
	}

	// the client only listens from here on; CloseRead cancels ctx when it hangs up
	ctx = conn.CloseRead(ctx)

	if hello.MarkRead {
		if _, err := s.svc.MarkRead(ctx, chatID, role); err != nil {
			s.logger.Warn("websocket mark read failed", zap.String("chat_id", chatID), zap.Error(err))
		}
	}

	observability.WatchStreamsActive.WithLabelValues("websocket").Inc()
	defer observability.WatchStreamsActive.WithLabelValues("websocket").Dec()

	err = s.pump(ctx, chatID, func(ev *WatchEvent) error {
		writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return wsjson.Write(writeCtx, conn, ev)
	})
	if err != nil {
		s.logger.Debug("websocket watch ended", zap.String("chat_id", chatID), zap.Error(err))
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}
