package api

import (
	"errors"
	"os"
	"strings"
)

func (s *Server) registerRoutes() error {
	if s == nil || s.router == nil {
		return nil
	}

	api := s.router.Group("/api")
	apiKey := strings.TrimSpace(os.Getenv("SSR_API_KEY"))
	if apiKey != "" {
		api.Use(apiKeyAuthMiddleware(apiKey))
	} else if strings.EqualFold(strings.TrimSpace(os.Getenv("SSR_DISABLE_AUTH")), "true") {
		// Explicitly allow unauthenticated access.
	} else {
		return errors.New("api: missing auth configuration: set SSR_API_KEY or set SSR_DISABLE_AUTH=true")
	}

	api.GET("/health", s.handleHealth)

	api.GET("/personas", s.handleListPersonas)
	api.POST("/personas", s.handleCreatePersona)
	api.DELETE("/personas/:id", s.handleDeletePersona)

	api.GET("/criteria", s.handleListCriteria)
	api.POST("/criteria", s.handleCreateCriterion)
	api.DELETE("/criteria/:id", s.handleDeleteCriterion)

	api.GET("/prompt-templates", s.handleListTemplates)
	api.POST("/prompt-templates", s.handleCreateTemplate)
	api.DELETE("/prompt-templates/:id", s.handleDeleteTemplate)

	api.GET("/benchmarks", s.handleListBenchmarks)
	api.POST("/benchmarks", s.handleCreateBenchmark)
	api.DELETE("/benchmarks/:id", s.handleDeleteBenchmark)

	api.POST("/tasks", s.handleCreateTask)
	api.GET("/tasks", s.handleListTasks)
	api.GET("/tasks/:id", s.handleGetTask)
	api.POST("/tasks/:id/enqueue", s.handleEnqueueTask)

	api.GET("/evaluate", s.handleEvaluate)
	api.GET("/aggregates", s.handleAggregates)

	api.GET("/sessions", s.handleListSessions)
	api.GET("/sessions/*path", s.handleDownloadSession)

	api.POST("/bootstrap", s.handleBootstrap)

	return nil
}
