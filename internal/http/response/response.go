package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/draftsync-backend/internal/domain/aggregates"
	"github.com/yungbote/draftsync-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
}

// ErrorEnvelope carries the error and, for rolled back mutations, the
// restored value the client should show.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
	Value any      `json:"value,omitempty"`
}

type ValueEnvelope struct {
	Value any `json:"value"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondDomainError maps err through apierr. restored may be nil.
func RespondDomainError(c *gin.Context, err error, restored any) {
	ae := apierr.FromError(err)
	c.JSON(ae.Status, ErrorEnvelope{
		Error: APIError{Message: ae.Error(), Code: ae.Code, Field: aggregates.FieldOf(err)},
		Value: restored,
	})
}

func RespondOK(c *gin.Context, value any) {
	c.JSON(http.StatusOK, ValueEnvelope{Value: value})
}

func RespondAccepted(c *gin.Context, value any) {
	c.JSON(http.StatusAccepted, ValueEnvelope{Value: value})
}

func RespondCreated(c *gin.Context, value any) {
	c.JSON(http.StatusCreated, ValueEnvelope{Value: value})
}
