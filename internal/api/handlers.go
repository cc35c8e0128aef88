package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/david/casematch/internal/auth"
	"github.com/david/casematch/internal/db"
	"github.com/david/casematch/internal/models"
	"github.com/david/casematch/internal/pipeline"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type createCaseRequest struct {
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	Category         string         `json:"category"`
	ApplicantDetails map[string]any `json:"applicant_details"`
}

func (s *Server) handleCreateCase(c echo.Context) error {
	var req createCaseRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if req.Title == "" || req.Description == "" {
		return badRequest(c, "Title and description are required")
	}

	newCase := models.Case{
		Title:            req.Title,
		Description:      req.Description,
		Category:         models.ParseCategory(req.Category),
		ApplicantDetails: req.ApplicantDetails,
		Status:           models.CaseStatusPending,
	}
	if userID, err := auth.GetUserIDFromContext(c); err == nil {
		newCase.UserID = &userID
	}

	rec, err := db.ToRecord(newCase)
	if err != nil {
		return fail(c, err)
	}
	saved, err := s.store.Insert(c.Request().Context(), db.TableCases, rec)
	if err != nil {
		return fail(c, err)
	}
	created, err := db.Decode[models.Case](saved)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) handleListCases(c echo.Context) error {
	recs, err := s.store.List(c.Request().Context(), db.TableCases, db.QueryOptions{
		Limit:   listLimit(c),
		OrderBy: "created_at",
		Desc:    true,
	})
	if err != nil {
		return fail(c, err)
	}
	cases, err := db.DecodeAll[models.Case](recs)
	if err != nil {
		return fail(c, err)
	}
	if cases == nil {
		cases = []models.Case{}
	}
	return c.JSON(http.StatusOK, cases)
}

func (s *Server) handleGetCase(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "Invalid case ID")
	}
	rec, err := s.store.Get(c.Request().Context(), db.TableCases, id)
	if err != nil {
		return fail(c, err)
	}
	found, err := db.Decode[models.Case](rec)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, found)
}

func (s *Server) handleListProcedures(c echo.Context) error {
	ctx := c.Request().Context()
	opts := db.QueryOptions{Limit: listLimit(c), OrderBy: "name"}

	var (
		recs []db.Record
		err  error
	)
	if category := models.ParseCategory(c.QueryParam("category")); category != "" {
		recs, err = s.store.QueryByField(ctx, db.TableProcedures, "category", string(category), opts)
	} else {
		recs, err = s.store.List(ctx, db.TableProcedures, opts)
	}
	if err != nil {
		return fail(c, err)
	}
	procs, err := db.DecodeAll[models.Procedure](recs)
	if err != nil {
		return fail(c, err)
	}
	if procs == nil {
		procs = []models.Procedure{}
	}
	return c.JSON(http.StatusOK, procs)
}

func (s *Server) handleCreateProcedure(c echo.Context) error {
	var proc models.Procedure
	if err := c.Bind(&proc); err != nil {
		return badRequest(c, "Invalid request body")
	}
	proc.ID = uuid.Nil
	proc.Name = strings.TrimSpace(proc.Name)
	if proc.Name == "" {
		return badRequest(c, "Name is required")
	}
	proc.Category = models.ParseCategory(string(proc.Category))
	if proc.Category == "" {
		proc.Category = models.CategoryOther
	}

	rec, err := db.ToRecord(proc)
	if err != nil {
		return fail(c, err)
	}
	saved, err := s.store.Insert(c.Request().Context(), db.TableProcedures, rec)
	if err != nil {
		return fail(c, err)
	}
	created, err := db.Decode[models.Procedure](saved)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) handleAnalyze(c echo.Context) error {
	caseID, ok := pathID(c, "caseId")
	if !ok {
		return badRequest(c, "Invalid case ID")
	}
	res, err := s.pipeline.Analyze(c.Request().Context(), caseID)
	if err != nil {
		return fail(c, err)
	}
	if res.Outcome == pipeline.OutcomeNoMatch {
		return c.JSON(http.StatusOK, map[string]any{
			"success":        false,
			"message":        pipeline.NoMatchMessage,
			"classification": res.Classification,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":        true,
		"classification": res.Classification,
		"procedure":      res.Match.Procedure,
		"match_score":    res.Match.Score,
		"guidance":       res.Guidance,
		"analysis":       res.Analysis,
		"case":           res.Case,
	})
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleChat(c echo.Context) error {
	caseID, ok := pathID(c, "caseId")
	if !ok {
		return badRequest(c, "Invalid case ID")
	}
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	reply, err := s.pipeline.Chat(c.Request().Context(), caseID, req.Message)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"response": reply})
}

func (s *Server) handleChatHistory(c echo.Context) error {
	caseID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "Invalid case ID")
	}
	msgs, err := s.pipeline.History(c.Request().Context(), caseID)
	if err != nil {
		return fail(c, err)
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	return c.JSON(http.StatusOK, msgs)
}

func (s *Server) handleResearchFunding(c echo.Context) error {
	caseID, ok := pathID(c, "caseId")
	if !ok {
		return badRequest(c, "Invalid case ID")
	}
	ranked, err := s.pipeline.ResearchFunding(c.Request().Context(), caseID)
	if err != nil {
		return fail(c, err)
	}
	if ranked == nil {
		ranked = []pipeline.RankedOpportunity{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":       true,
		"count":         len(ranked),
		"opportunities": ranked,
	})
}

type scoreRequest struct {
	Case        models.Case               `json:"case"`
	Opportunity models.FundingOpportunity `json:"opportunity"`
}

// handleScore scores one case/opportunity pair without touching the store.
func (s *Server) handleScore(c echo.Context) error {
	var req scoreRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.Case.Description) == "" && strings.TrimSpace(req.Case.Title) == "" {
		return badRequest(c, "Case title or description is required")
	}
	if strings.TrimSpace(req.Opportunity.Name) == "" {
		return badRequest(c, "Opportunity name is required")
	}
	req.Case.Category = models.ParseCategory(string(req.Case.Category))
	result := s.scorer.Score(c.Request().Context(), req.Case, req.Opportunity)
	return c.JSON(http.StatusOK, result)
}

// pathID reads a UUID path parameter in canonical form.
func pathID(c echo.Context, name string) (string, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return "", false
	}
	return id.String(), true
}

func listLimit(c echo.Context) int {
	limit := defaultListLimit
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= maxListLimit {
			limit = parsed
		}
	}
	return limit
}
