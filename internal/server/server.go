// Package server exposes the pollution analysis pipeline over HTTP for
// CI integrations that call a long-lived sidecar instead of shelling out.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"flakyfence.dev/pkg/flakyfence/internal/adapter"
	"flakyfence.dev/pkg/flakyfence/internal/domain"
	m "flakyfence.dev/pkg/flakyfence/internal/model"
)

// Server serves pollution analyses over HTTP.
type Server struct {
	analyzer domain.Analyzer
	executor adapter.TestExecutor
	engine   *gin.Engine
}

// New constructs a Server around the given pipeline.
func New(analyzer domain.Analyzer, executor adapter.TestExecutor) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{analyzer: analyzer, executor: executor}

	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/healthz", s.getHealth)
	router.POST("/analyze", s.postAnalyze)

	s.engine = router

	return s
}

// Run blocks serving on addr until the listener fails.
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

// Handler exposes the router, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

type analyzeRequest struct {
	Project string   `json:"project"`
	Tests   []string `json:"tests"`
	Limit   *int     `json:"limit"`
}

type analyzeResponse struct {
	Tests    int         `json:"tests"`
	Findings []m.Finding `json:"findings"`
}

func (s *Server) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// postAnalyze runs one full analysis. Tests default to the project's
// collected suite and limit to DefaultLimit; an explicit limit of 0
// lifts the cap.
func (s *Server) postAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project := req.Project
	if project == "" {
		project = "."
	}

	limit := m.DefaultLimit
	if req.Limit != nil {
		limit = *req.Limit
	}

	tests := make([]m.TestID, 0, len(req.Tests))
	for _, id := range req.Tests {
		tests = append(tests, m.TestID(id))
	}

	if len(tests) == 0 {
		collected, err := s.executor.Collect(c.Request.Context(), project)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		tests = collected
	}

	if len(tests) == 0 {
		c.JSON(http.StatusOK, analyzeResponse{Tests: 0, Findings: []m.Finding{}})
		return
	}

	findings, err := s.analyzer.Analyze(c.Request.Context(), project, tests, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if findings == nil {
		findings = []m.Finding{}
	}

	c.JSON(http.StatusOK, analyzeResponse{Tests: len(tests), Findings: findings})
}
