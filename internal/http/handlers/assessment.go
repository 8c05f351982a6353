package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/coursegen-backend/internal/http/response"
	"github.com/yungbote/coursegen-backend/internal/services"
)

type AssessmentHandler struct {
	assessments services.AssessmentService
}

func NewAssessmentHandler(assessments services.AssessmentService) *AssessmentHandler {
	return &AssessmentHandler{assessments: assessments}
}

// POST /test-sessions/:id/analyze
func (h *AssessmentHandler) AnalyzeSession(c *gin.Context) {
	sessionID, err := uintParam(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	rows, err := h.assessments.AnalyzeSession(c.Request.Context(), sessionID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"assessments": rows})
}
