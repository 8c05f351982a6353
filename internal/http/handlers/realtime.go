package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/yungbote/coursegen-backend/internal/http/middleware"
	"github.com/yungbote/coursegen-backend/internal/http/response"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
	"github.com/yungbote/coursegen-backend/internal/realtime"
)

type RealtimeHandler struct {
	log      *logger.Logger
	hub      *realtime.Hub
	auth     *middleware.AuthMiddleware
	router   *realtime.Router
	upgrader websocket.Upgrader
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.Hub, auth *middleware.AuthMiddleware, router *realtime.Router, origins []string) *RealtimeHandler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &RealtimeHandler{
		log:    log.With("handler", "RealtimeHandler"),
		hub:    hub,
		auth:   auth,
		router: router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowed) == 0 || allowed[origin]
			},
		},
	}
}

// GET /ws?token=...
//
// The token is checked before the upgrade so a bad one gets a plain 401.
func (h *RealtimeHandler) Serve(c *gin.Context) {
	rd, err := h.auth.ParseToken(c.Query("token"))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug("Websocket upgrade failed", "error", err)
		return
	}
	h.log.Debug("Websocket open", "user_id", rd.UserID)
	h.hub.Serve(c.Request.Context(), rd.UserID, ws, h.router)
	h.log.Debug("Websocket closed", "user_id", rd.UserID)
}
