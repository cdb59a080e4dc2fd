package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Register fields are pointers so that absent and empty differ: absent is
// a 422 here, empty is passed on and rejected by the service with its own
// message. A "required" tag would reject both.
type registerRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Nickname *string `json:"nickname"`
}

func (r *registerRequest) missing() string {
	var msgs []string
	for _, f := range []struct {
		name string
		val  *string
	}{{"email", r.Email}, {"password", r.Password}, {"nickname", r.Nickname}} {
		if f.val == nil {
			msgs = append(msgs, f.name+": field required")
		}
	}
	return strings.Join(msgs, "; ")
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// An empty refresh_token is still a token; the service rejects it as invalid.
type refreshRequest struct {
	RefreshToken *string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
}

type logoutQuery struct {
	ForceError bool `form:"force_error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// POST /register
func (s *HTTPServer) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.unprocessable(c, err)
		return
	}
	if missing := req.missing(); missing != "" {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, errorResponse{Detail: missing})
		return
	}

	user, err := s.users.Register(c.Request.Context(), *req.Email, *req.Password, *req.Nickname)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

// POST /login
func (s *HTTPServer) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.unprocessable(c, err)
		return
	}

	pair, err := s.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, pair)
}

// POST /refresh
func (s *HTTPServer) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.unprocessable(c, err)
		return
	}

	if req.RefreshToken == nil {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, errorResponse{Detail: "refresh_token: field required"})
		return
	}

	access, err := s.users.Refresh(c.Request.Context(), *req.RefreshToken)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, refreshResponse{AccessToken: access})
}

// GET /logout?force_error=bool
func (s *HTTPServer) logout(c *gin.Context) {
	var q logoutQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.unprocessable(c, err)
		return
	}

	msg, err := s.users.Logout(c.Request.Context(), q.ForceError)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, messageResponse{Message: msg})
}
