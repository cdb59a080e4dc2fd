package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"github.com/dmitrijs2005/usersvc/internal/common"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

// statusOf maps an error code to its HTTP status.
func statusOf(err error) int {
	switch common.CodeOf(err) {
	case common.CodeInvalidInput:
		return http.StatusBadRequest
	case common.CodeConflict:
		return http.StatusConflict
	case common.CodeUnauthorized, common.CodeTokenExpired:
		return http.StatusUnauthorized
	case common.CodeForbidden:
		return http.StatusForbidden
	case common.CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as {"detail": ...}. Server-side failures are logged with
// their cause; the caller only ever sees the detail.
func (s *HTTPServer) fail(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.requestLogger(c).Error(c.Request.Context(), "request failed", "status", status, "error", err)
	}
	c.AbortWithStatusJSON(status, errorResponse{Detail: common.DetailOf(err)})
}

// unprocessable answers 422 for bodies or queries that could not be bound.
func (s *HTTPServer) unprocessable(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, errorResponse{Detail: bindDetail(err)})
}

func bindDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request"
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return strings.Join(msgs, "; ")
}

func fieldMessage(fe validator.FieldError) string {
	field := snakeCase(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s: field required", field)
	case "email":
		return fmt.Sprintf("%s: value is not a valid email address", field)
	case "min":
		return fmt.Sprintf("%s: must be at least %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s: failed on the %q rule", field, fe.Tag())
	}
}

// snakeCase turns a Go field name into its JSON key, RefreshToken -> refresh_token.
func snakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
