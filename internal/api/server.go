package api

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/david/casematch/internal/ai"
	"github.com/david/casematch/internal/auth"
	"github.com/david/casematch/internal/db"
	"github.com/david/casematch/internal/pipeline"
	"github.com/david/casematch/internal/scoring"
)

type Server struct {
	Echo *echo.Echo

	store    db.RecordStore
	pipeline *pipeline.Pipeline
	scorer   *scoring.Scorer
	auth     *auth.Authenticator

	// Procedure research runs as a single background job at a time.
	jobMu      sync.Mutex
	runningJob *backgroundJob
}

// Deps wires the server to its collaborators.
type Deps struct {
	Store       db.RecordStore
	Pipeline    *pipeline.Pipeline
	Scorer      *scoring.Scorer
	Auth        *auth.Authenticator
	CORSOrigins []string
}

func NewServer(deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, auth.AdminSecretHeader},
	}))

	s := &Server{
		Echo:     e,
		store:    deps.Store,
		pipeline: deps.Pipeline,
		scorer:   deps.Scorer,
		auth:     deps.Auth,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	api := s.Echo.Group("/api")

	cases := api.Group("/cases")
	cases.Use(s.auth.UserMiddleware)
	cases.POST("", s.handleCreateCase)
	cases.GET("", s.handleListCases)
	cases.GET("/:id", s.handleGetCase)
	cases.GET("/:id/chat", s.handleChatHistory)

	api.GET("/procedures", s.handleListProcedures)

	aiGroup := api.Group("/ai")
	aiGroup.POST("/analyze/:caseId", s.handleAnalyze)
	aiGroup.POST("/chat/:caseId", s.handleChat)

	api.POST("/research/funding/:caseId", s.handleResearchFunding)
	api.POST("/score", s.handleScore)

	// Admin routes (catalog maintenance)
	admin := api.Group("")
	admin.Use(s.auth.AdminMiddleware)
	admin.POST("/procedures", s.handleCreateProcedure)
	admin.POST("/research/procedures", s.handleResearchProcedures)
	admin.GET("/admin/job/:id", s.handleJobStatus)
}

func (s *Server) Start(port int) error {
	return s.Echo.Start(fmt.Sprintf(":%d", port))
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// fail maps a domain error onto a JSON error response.
func fail(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	msg := "Internal server error"
	switch {
	case errors.Is(err, db.ErrNotFound):
		status, msg = http.StatusNotFound, "Not found"
	case errors.Is(err, ai.ErrUpstreamClassification):
		status, msg = http.StatusBadGateway, "Classification failed"
	case errors.Is(err, pipeline.ErrResearchUnavailable):
		status, msg = http.StatusServiceUnavailable, "Research is not configured"
	case errors.Is(err, pipeline.ErrEmptyMessage):
		status, msg = http.StatusBadRequest, "Message is required"
	}
	if status >= http.StatusInternalServerError {
		zap.L().Error("api: request failed",
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}
	return c.JSON(status, map[string]any{"success": false, "error": msg})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]any{"success": false, "error": msg})
}
