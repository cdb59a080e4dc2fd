package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/usersvc/internal/server/metrics"
	"github.com/gin-gonic/gin"
)

func (s *HTTPServer) routes() *gin.Engine {
	r := gin.New()
	r.Use(s.recovery(), s.requestID(), s.accessLog())

	r.POST("/register", s.register)
	r.POST("/login", s.login)
	r.POST("/refresh", s.refresh)
	r.GET("/logout", s.logout)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(s.gatherer)))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{Detail: "Not Found"})
	})

	return r
}
