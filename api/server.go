package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stellarlinkco/persona-ssr/internal/config"
	"github.com/stellarlinkco/persona-ssr/internal/queue"
	"github.com/stellarlinkco/persona-ssr/internal/store"
)

type Server struct {
	router *gin.Engine
	store  store.Store
	queue  *queue.Queue
	config *config.Config
}

func NewServer(cfg *config.Config, st store.Store, q *queue.Queue) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	r := gin.New()
	s := &Server{
		router: r,
		store:  st,
		queue:  q,
		config: cfg,
	}
	s.registerMiddleware()
	if err := s.registerRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) Run(addr string) error {
	if s == nil || s.router == nil {
		return errors.New("api: nil server")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		addr = ":8080"
	}
	return s.router.Run(addr)
}
