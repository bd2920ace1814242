package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
)

func (s *Server) registerRoutes() {
	s.engine.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
	}))

	api := s.engine.Group("/api")
	api.POST("/chat", s.chatHandler)
	api.GET("/status", statusHandler)
}
