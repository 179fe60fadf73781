package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stellarlinkco/persona-ssr/internal/benchmark"
	"github.com/stellarlinkco/persona-ssr/internal/oracle"
	"github.com/stellarlinkco/persona-ssr/internal/ssr"
	"github.com/stellarlinkco/persona-ssr/internal/store"
)

type personaRequest struct {
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
	Notes  string `json:"notes"`
}

type criterionRequest struct {
	Label    string   `json:"label"`
	Question string   `json:"question"`
	Anchors  []string `json:"anchors"`
}

type templateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

type benchmarkRequest struct {
	Label        string    `json:"label"`
	SessionLabel string    `json:"session_label"`
	CriterionID  int64     `json:"criterion_id"`
	Distribution []float64 `json:"distribution"`
	SampleSize   int       `json:"sample_size"`
}

type taskRequest struct {
	Title            string            `json:"title"`
	StimulusText     string            `json:"stimulus_text"`
	ImageName        string            `json:"image_name"`
	ImageData        string            `json:"image_data"`
	PersonaIDs       []int64           `json:"persona_ids"`
	CriterionIDs     []int64           `json:"criterion_ids"`
	Guidance         string            `json:"guidance"`
	SessionLabel     string            `json:"session_label"`
	OperationContext map[string]string `json:"operation_context"`
	PromptTemplateID *int64            `json:"prompt_template_id"`
	Method           string            `json:"method"`
	Seed             *int64            `json:"seed"`
}

type taskWithResults struct {
	Task    *store.Task     `json:"task"`
	Results []*store.Result `json:"results"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// --- personas ---

func (s *Server) handleListPersonas(c *gin.Context) {
	personas, err := s.store.ListPersonas(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if personas == nil {
		personas = []*store.Persona{}
	}
	c.JSON(http.StatusOK, personas)
}

func (s *Server) handleCreatePersona(c *gin.Context) {
	var req personaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing persona name"))
		return
	}

	persona := &store.Persona{Name: req.Name, Age: req.Age, Gender: req.Gender, Notes: req.Notes}
	id, err := s.store.CreatePersona(c.Request.Context(), persona)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	created, err := s.store.GetPersona(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleDeletePersona(c *gin.Context) {
	s.deleteByID(c, "persona", s.store.DeletePersona)
}

// --- criteria ---

func (s *Server) handleListCriteria(c *gin.Context) {
	criteria, err := s.store.ListCriteria(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if criteria == nil {
		criteria = []*store.Criterion{}
	}
	c.JSON(http.StatusOK, criteria)
}

func (s *Server) handleCreateCriterion(c *gin.Context) {
	var req criterionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Label) == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing criterion label"))
		return
	}

	anchors := req.Anchors
	if len(anchors) == 0 {
		anchors = ssr.DefaultRetentionAnchors
	}
	if _, err := ssr.NewAnchorSet(anchors); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	criterion := &store.Criterion{Label: req.Label, Question: req.Question, Anchors: anchors}
	id, err := s.store.CreateCriterion(c.Request.Context(), criterion)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	created, err := s.store.GetCriterion(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleDeleteCriterion(c *gin.Context) {
	s.deleteByID(c, "criterion", s.store.DeleteCriterion)
}

// --- prompt templates ---

func (s *Server) handleListTemplates(c *gin.Context) {
	templates, err := s.store.ListTemplates(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if templates == nil {
		templates = []*store.PromptTemplate{}
	}
	c.JSON(http.StatusOK, templates)
}

func (s *Server) handleCreateTemplate(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Content) == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing template name or content"))
		return
	}

	template := &store.PromptTemplate{Name: req.Name, Description: req.Description, Content: req.Content}
	id, err := s.store.CreateTemplate(c.Request.Context(), template)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	created, err := s.store.GetTemplate(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleDeleteTemplate(c *gin.Context) {
	s.deleteByID(c, "template", s.store.DeleteTemplate)
}

// --- benchmarks ---

func (s *Server) handleListBenchmarks(c *gin.Context) {
	benchmarks, err := s.store.ListBenchmarks(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if benchmarks == nil {
		benchmarks = []*store.Benchmark{}
	}
	c.JSON(http.StatusOK, benchmarks)
}

func (s *Server) handleCreateBenchmark(c *gin.Context) {
	var req benchmarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Label) == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing benchmark label"))
		return
	}
	if len(req.Distribution) != ssr.Scale {
		respondError(c, http.StatusBadRequest, fmt.Errorf("distribution must contain %d values", ssr.Scale))
		return
	}
	if _, err := s.store.GetCriterion(c.Request.Context(), req.CriterionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(c, http.StatusBadRequest, errors.New("invalid criterion id"))
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	var dist [ssr.Scale]float64
	copy(dist[:], req.Distribution)
	for _, v := range dist {
		if v < 0 {
			respondError(c, http.StatusBadRequest, errors.New("distribution values must be non-negative"))
			return
		}
	}
	dist = benchmark.Normalize(dist)

	sampleSize := req.SampleSize
	if sampleSize <= 0 {
		sampleSize = 100
	}

	bench := &store.Benchmark{
		Label:        req.Label,
		SessionLabel: req.SessionLabel,
		CriterionID:  req.CriterionID,
		Distribution: dist,
		SampleSize:   sampleSize,
	}
	id, err := s.store.CreateBenchmark(c.Request.Context(), bench)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	bench.ID = id
	c.JSON(http.StatusCreated, bench)
}

func (s *Server) handleDeleteBenchmark(c *gin.Context) {
	s.deleteByID(c, "benchmark", s.store.DeleteBenchmark)
}

// --- tasks ---

func (s *Server) handleCreateTask(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing task title"))
		return
	}
	if len(req.PersonaIDs) == 0 || len(req.CriterionIDs) == 0 {
		respondError(c, http.StatusBadRequest, errors.New("task needs persona_ids and criterion_ids"))
		return
	}

	ctx := c.Request.Context()
	for _, id := range req.PersonaIDs {
		if _, err := s.store.GetPersona(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondError(c, http.StatusBadRequest, fmt.Errorf("invalid persona id %d", id))
				return
			}
			respondError(c, http.StatusInternalServerError, err)
			return
		}
	}
	for _, id := range req.CriterionIDs {
		if _, err := s.store.GetCriterion(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondError(c, http.StatusBadRequest, fmt.Errorf("invalid criterion id %d", id))
				return
			}
			respondError(c, http.StatusInternalServerError, err)
			return
		}
	}
	if req.PromptTemplateID != nil {
		if _, err := s.store.GetTemplate(ctx, *req.PromptTemplateID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondError(c, http.StatusBadRequest, errors.New("invalid prompt template id"))
				return
			}
			respondError(c, http.StatusInternalServerError, err)
			return
		}
	}

	method, err := ssr.ParseMethod(req.Method)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	task := &store.Task{
		Title:            req.Title,
		StimulusText:     req.StimulusText,
		ImageName:        req.ImageName,
		ImageData:        req.ImageData,
		PersonaIDs:       req.PersonaIDs,
		CriterionIDs:     req.CriterionIDs,
		Guidance:         req.Guidance,
		SessionLabel:     req.SessionLabel,
		OperationContext: req.OperationContext,
		PromptTemplateID: req.PromptTemplateID,
		Method:           method,
		Seed:             req.Seed,
	}
	id, err := s.store.CreateTask(ctx, task)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	if s.queue != nil {
		if err := s.queue.Enqueue(ctx, id); err != nil {
			respondError(c, http.StatusInternalServerError, fmt.Errorf("task %d created but not enqueued: %w", id, err))
			return
		}
	}

	created, err := s.store.GetTask(ctx, id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleListTasks(c *gin.Context) {
	ctx := c.Request.Context()
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	out := make([]taskWithResults, 0, len(tasks))
	for _, task := range tasks {
		results, err := s.store.ListResults(ctx, store.ResultFilter{TaskID: task.ID})
		if err != nil {
			respondError(c, http.StatusInternalServerError, err)
			return
		}
		if results == nil {
			results = []*store.Result{}
		}
		out = append(out, taskWithResults{Task: task, Results: results})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetTask(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	ctx := c.Request.Context()
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(c, http.StatusNotFound, fmt.Errorf("task %d not found", id))
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	results, err := s.store.ListResults(ctx, store.ResultFilter{TaskID: id})
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if results == nil {
		results = []*store.Result{}
	}
	c.JSON(http.StatusOK, taskWithResults{Task: task, Results: results})
}

func (s *Server) handleEnqueueTask(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if s.queue == nil {
		respondError(c, http.StatusServiceUnavailable, errors.New("queue not running"))
		return
	}

	if err := s.queue.Enqueue(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(c, http.StatusNotFound, fmt.Errorf("task %d not found", id))
			return
		}
		respondError(c, http.StatusConflict, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "enqueued"})
}

// --- evaluation ---

func (s *Server) handleEvaluate(c *gin.Context) {
	ev := &benchmark.Evaluator{
		Store:   s.store,
		Ceiling: s.config.Evaluation.Ceiling,
		Trials:  s.config.Evaluation.Trials,
		Seed:    s.config.Evaluation.Seed,
	}
	report, err := ev.Evaluate(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleAggregates(c *gin.Context) {
	aggs, err := benchmark.AggregateScores(c.Request.Context(), s.store)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if aggs == nil {
		aggs = []benchmark.Aggregate{}
	}
	c.JSON(http.StatusOK, aggs)
}

// --- sessions ---

func (s *Server) handleListSessions(c *gin.Context) {
	root := oracle.SessionRootFromConfig(s.config)
	files, err := oracle.ListSessionFiles(root)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if files == nil {
		files = []oracle.SessionFile{}
	}
	c.JSON(http.StatusOK, files)
}

func (s *Server) handleDownloadSession(c *gin.Context) {
	rel := strings.TrimPrefix(c.Param("path"), "/")
	if rel == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing session path"))
		return
	}

	root := oracle.SessionRootFromConfig(s.config)
	full, err := oracle.ResolveSessionFile(root, rel)
	if err != nil {
		respondError(c, http.StatusNotFound, fmt.Errorf("session %q not found", rel))
		return
	}
	c.File(full)
}

// --- bootstrap ---

// handleBootstrap seeds an empty store with starter personas, criteria
// and a template. A store that already has personas is left untouched.
func (s *Server) handleBootstrap(c *gin.Context) {
	summary, err := store.SeedDefaults(c.Request.Context(), s.store)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if !summary.Seeded {
		c.JSON(http.StatusOK, gin.H{"status": "skipped", "reason": "data already present"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "seeded",
		"personas":  summary.Personas,
		"criteria":  summary.Criteria,
		"templates": summary.Templates,
	})
}

// --- helpers ---

func (s *Server) deleteByID(c *gin.Context, what string, del func(ctx context.Context, id int64) error) {
	id, err := parseIDParam(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if err := del(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(c, http.StatusNotFound, fmt.Errorf("%s %d not found", what, id))
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func parseIDParam(c *gin.Context) (int64, error) {
	raw := strings.TrimSpace(c.Param("id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func respondError(c *gin.Context, status int, err error) {
	if err == nil {
		c.Status(status)
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
