package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/david/casematch/internal/models"
)

const researchJobTimeout = 15 * time.Minute

type backgroundJob struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"` // running, completed, failed
	StartedAt time.Time          `json:"started_at"`
	EndedAt   time.Time          `json:"ended_at,omitempty"`
	Result    any                `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
	Cancel    context.CancelFunc `json:"-"`
}

// handleResearchProcedures refreshes the procedure catalog. With ?async=true the
// research runs in the background and the response carries a job to poll.
func (s *Server) handleResearchProcedures(c echo.Context) error {
	if !strings.EqualFold(c.QueryParam("async"), "true") {
		procs, err := s.pipeline.ResearchProcedures(c.Request().Context())
		if err != nil {
			return fail(c, err)
		}
		if procs == nil {
			procs = []models.Procedure{}
		}
		return c.JSON(http.StatusOK, map[string]any{
			"success":    true,
			"count":      len(procs),
			"procedures": procs,
		})
	}

	s.jobMu.Lock()
	if s.runningJob != nil && s.runningJob.Status == "running" {
		job := s.runningJob
		s.jobMu.Unlock()
		return c.JSON(http.StatusConflict, map[string]any{
			"success": false,
			"error":   "A research job is already running",
			"job_id":  job.ID,
		})
	}

	// Detached from the request so the job outlives the response.
	jobCtx, jobCancel := context.WithTimeout(
		context.WithoutCancel(c.Request().Context()), researchJobTimeout,
	)
	job := &backgroundJob{
		ID:        uuid.New().String()[:8],
		Status:    "running",
		StartedAt: time.Now(),
		Cancel:    jobCancel,
	}
	s.runningJob = job
	s.jobMu.Unlock()

	go s.runProcedureResearch(jobCtx, job)

	return c.JSON(http.StatusAccepted, map[string]any{
		"success": true,
		"message": "Procedure research started",
		"job_id":  job.ID,
		"poll":    fmt.Sprintf("/api/admin/job/%s", job.ID),
	})
}

func (s *Server) runProcedureResearch(ctx context.Context, job *backgroundJob) {
	defer job.Cancel()
	log := zap.L().With(zap.String("job_id", job.ID))

	procs, err := s.pipeline.ResearchProcedures(ctx)

	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	job.EndedAt = time.Now()
	if err != nil {
		job.Status = "failed"
		job.Error = err.Error()
		log.Error("api: procedure research job failed", zap.Error(err))
		return
	}
	job.Status = "completed"
	job.Result = map[string]any{"count": len(procs)}
	log.Info("api: procedure research job completed", zap.Int("count", len(procs)))
}

func (s *Server) handleJobStatus(c echo.Context) error {
	queried := c.Param("id")

	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	job := s.runningJob
	if job == nil || job.ID != queried {
		return c.JSON(http.StatusNotFound, map[string]any{"success": false, "error": "job not found"})
	}

	resp := map[string]any{
		"id":         job.ID,
		"status":     job.Status,
		"started_at": job.StartedAt,
	}
	if !job.EndedAt.IsZero() {
		resp["ended_at"] = job.EndedAt
		resp["duration"] = job.EndedAt.Sub(job.StartedAt).String()
	}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	return c.JSON(http.StatusOK, resp)
}
