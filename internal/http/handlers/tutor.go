package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/coursegen-backend/internal/http/response"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
	"github.com/yungbote/coursegen-backend/internal/services"
)

type TutorHandler struct {
	log     *logger.Logger
	tutor   services.TutorService
	devMode bool
}

func NewTutorHandler(log *logger.Logger, tutor services.TutorService, devMode bool) *TutorHandler {
	return &TutorHandler{log: log.With("handler", "TutorHandler"), tutor: tutor, devMode: devMode}
}

// POST /tutor/chat
//
// Tokens are flushed as they arrive. Once the first byte is written the
// status is fixed, so a mid-stream failure ends the body early; in dev mode
// a final "Error: ..." line is appended.
func (h *TutorHandler) Chat(c *gin.Context) {
	var q services.TutorQuery
	if err := c.ShouldBindJSON(&q); err != nil {
		response.RespondBindError(c, err)
		return
	}
	stream, err := h.tutor.Stream(c.Request.Context(), q)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	defer stream.Close()

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	for tok, ok := stream.Next(); ok; tok, ok = stream.Next() {
		if _, err := c.Writer.WriteString(tok); err != nil {
			h.log.Debug("Tutor client went away", "error", err)
			return
		}
		c.Writer.Flush()
	}
	if f := stream.Err(); f != nil {
		h.log.Warn("Tutor stream failed", "kind", f.Kind, "error", f)
		if h.devMode {
			_, _ = c.Writer.WriteString("\nError: " + f.Error())
			c.Writer.Flush()
		}
	}
}
