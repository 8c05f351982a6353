package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/coursegen-backend/internal/platform/apierr"
)

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Detail string `json:"detail"`
}

// RespondError maps err onto its status code and writes {"detail": ...}.
// Errors without a kind are reported as 500.
func RespondError(c *gin.Context, err error) {
	status, detail := statusAndDetail(err)
	c.JSON(status, ErrorBody{Detail: detail})
}

// AbortError is RespondError for middleware.
func AbortError(c *gin.Context, err error) {
	status, detail := statusAndDetail(err)
	c.AbortWithStatusJSON(status, ErrorBody{Detail: detail})
}

// RespondBindError reports a request body or query that failed to bind.
func RespondBindError(c *gin.Context, err error) {
	RespondError(c, apierr.New(apierr.KindValidation, err))
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

func RespondAccepted(c *gin.Context, payload any) {
	c.JSON(http.StatusAccepted, payload)
}

func statusAndDetail(err error) (int, string) {
	if err == nil {
		return http.StatusInternalServerError, "unknown error"
	}
	var ae *apierr.Error
	if errors.As(err, &ae) {
		return apierr.StatusFor(ae.Kind), err.Error()
	}
	return http.StatusInternalServerError, err.Error()
}
