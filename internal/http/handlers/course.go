package handlers

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/coursegen-backend/internal/http/response"
	"github.com/yungbote/coursegen-backend/internal/services"
)

type CourseHandler struct {
	courses    services.CourseService
	generation services.CourseGenerationService
	review     services.ReviewService
}

func NewCourseHandler(courses services.CourseService, generation services.CourseGenerationService, review services.ReviewService) *CourseHandler {
	return &CourseHandler{courses: courses, generation: generation, review: review}
}

// bindOptionalJSON binds a body whose fields are all optional; an empty body
// leaves dst at its zero value.
func bindOptionalJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// POST /admin/courses
func (h *CourseHandler) CreateCourse(c *gin.Context) {
	var in services.CreateCourseInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondBindError(c, err)
		return
	}
	course, err := h.courses.Create(c.Request.Context(), in)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"course": course})
}

// GET /admin/courses/:id
func (h *CourseHandler) GetCourse(c *gin.Context) {
	courseID, err := uintParam(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	view, err := h.courses.Get(c.Request.Context(), courseID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"course": view})
}

// POST /admin/courses/:id/compose
func (h *CourseHandler) Compose(c *gin.Context) {
	courseID, err := uintParam(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	var in services.ComposeInput
	if err := bindOptionalJSON(c, &in); err != nil {
		response.RespondBindError(c, err)
		return
	}
	job, err := h.generation.Compose(c.Request.Context(), courseID, in)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{"job_id": job.ID, "session_id": job.SessionID, "job": job})
}

// GET /admin/courses/:id/draft
func (h *CourseHandler) GetDraft(c *gin.Context) {
	courseID, err := uintParam(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	draft, err := h.generation.GetDraft(c.Request.Context(), courseID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, draft)
}

// POST /admin/courses/:id/draft/approve
func (h *CourseHandler) ReviewDraft(c *gin.Context) {
	courseID, err := uintParam(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	var in services.ReviewInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondBindError(c, err)
		return
	}
	out, err := h.review.Decide(c.Request.Context(), courseID, in)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, out)
}

// POST /admin/courses/:id/draft/chat
func (h *CourseHandler) DraftChat(c *gin.Context) {
	courseID, err := uintParam(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	var in services.ChatInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondBindError(c, err)
		return
	}
	turn, err := h.review.Chat(c.Request.Context(), courseID, in.Message)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"turn": turn})
}

// GET /admin/courses/:id/draft/history
func (h *CourseHandler) DraftHistory(c *gin.Context) {
	courseID, err := uintParam(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	snaps, err := h.review.History(c.Request.Context(), courseID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"history": snaps})
}

// POST /admin/courses/:id/lessons/generate
func (h *CourseHandler) GenerateLessons(c *gin.Context) {
	courseID, err := uintParam(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	var in services.GenerateLessonsInput
	if err := bindOptionalJSON(c, &in); err != nil {
		response.RespondBindError(c, err)
		return
	}
	out, err := h.generation.GenerateLessons(c.Request.Context(), courseID, in)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{"jobs": out})
}

// POST /admin/courses/:id/documents
func (h *CourseHandler) AddDocument(c *gin.Context) {
	courseID, err := uintParam(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	var in services.AddDocumentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondBindError(c, err)
		return
	}
	job, err := h.generation.AddDocument(c.Request.Context(), courseID, in)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{"job_id": job.ID, "job": job})
}

// POST /courses/:id/tests/generate
func (h *CourseHandler) GenerateTests(c *gin.Context) {
	courseID, err := uintParam(c, "id")
	if err != nil {
		response.RespondError(c, err)
		return
	}
	var in services.GenerateTestsInput
	if err := bindOptionalJSON(c, &in); err != nil {
		response.RespondBindError(c, err)
		return
	}
	job, err := h.generation.GenerateTests(c.Request.Context(), courseID, in)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{"job_id": job.ID, "job": job})
}
