// Package queue runs scoring tasks on a single sequential lane. One
// worker drains a FIFO of task ids; each task fans out into persona x
// criterion scoring requests that are processed in order and persisted
// as they complete.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/stellarlinkco/persona-ssr/internal/config"
	"github.com/stellarlinkco/persona-ssr/internal/oracle"
	"github.com/stellarlinkco/persona-ssr/internal/ssr"
	"github.com/stellarlinkco/persona-ssr/internal/store"
)

const defaultCapacity = 256

// Queue owns every task status transition. API handlers only create task
// rows and hand ids to Enqueue; they never write status themselves.
type Queue struct {
	store  store.Store
	oracle oracle.Oracle
	mapper ssr.Mapper

	// onOracleFailure is config.PolicyFail or config.PolicyUniform.
	onOracleFailure string
	// sessionRoot is where completed-task artifacts are written. Empty
	// disables artifact writing.
	sessionRoot string

	jobs chan int64
	// pending holds ids waiting in the lane or in flight; membership
	// lasts until process returns so a racing Enqueue stays a no-op.
	pending map[int64]struct{}
	mu      sync.Mutex

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// Option tweaks queue construction.
type Option func(*Queue)

// WithCapacity sets how many task ids may wait in the lane before Enqueue
// reports the queue full.
func WithCapacity(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.jobs = make(chan int64, n)
		}
	}
}

// WithSessionRoot overrides where completed-task artifacts are written.
func WithSessionRoot(root string) Option {
	return func(q *Queue) { q.sessionRoot = root }
}

// New builds a stopped queue. The oracle may be nil when only the tfidf
// and uniform methods are used; enqueueing an oracle-method task without
// one fails that task at processing time.
func New(st store.Store, orc oracle.Oracle, cfg *config.Config, opts ...Option) (*Queue, error) {
	if st == nil {
		return nil, errors.New("queue: nil store")
	}
	if cfg == nil {
		cfg = config.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		store:           st,
		oracle:          orc,
		mapper:          ssr.Mapper{Temperature: cfg.SSR.Temperature},
		onOracleFailure: cfg.SSR.OnOracleFailure,
		sessionRoot:     oracle.SessionRootFromConfig(cfg),
		jobs:            make(chan int64, defaultCapacity),
		pending:         make(map[int64]struct{}),
		ctx:             ctx,
		cancel:          cancel,
	}
	if q.onOracleFailure == "" {
		q.onOracleFailure = config.PolicyFail
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Start launches the single worker. Safe to call more than once.
func (q *Queue) Start() {
	q.startOnce.Do(func() {
		q.wg.Add(1)
		go q.worker()
	})
}

// Stop cancels the worker and waits for the in-flight task to finish its
// current store write. Queued but unprocessed tasks stay pending in the
// store and are picked up again by RecoverPending on the next start.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		q.cancel()
		q.wg.Wait()
	})
}

// Enqueue puts a task on the lane. Enqueueing a task that is already
// waiting or being dispatched is a no-op; enqueueing a running task is
// an error. Failed and
// completed tasks may be re-enqueued, which resets them to pending and
// appends new results next to the old ones.
func (q *Queue) Enqueue(ctx context.Context, taskID int64) error {
	if q == nil {
		return errors.New("queue: nil queue")
	}
	if err := q.ctx.Err(); err != nil {
		return errors.New("queue: stopped")
	}

	task, err := q.store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status == store.StatusRunning {
		return fmt.Errorf("queue: task %d is running", taskID)
	}

	q.mu.Lock()
	if _, ok := q.pending[taskID]; ok {
		q.mu.Unlock()
		return nil
	}
	q.pending[taskID] = struct{}{}
	q.mu.Unlock()

	if task.Status != store.StatusPending {
		if err := q.store.SetTaskStatus(ctx, taskID, store.StatusPending, ""); err != nil {
			q.forget(taskID)
			return err
		}
	}

	select {
	case q.jobs <- taskID:
		return nil
	default:
		q.forget(taskID)
		return errors.New("queue: full")
	}
}

// RecoverPending re-enqueues tasks left pending in the store, in
// submission order. Called once after Start so a restart resumes where
// the previous process stopped.
func (q *Queue) RecoverPending(ctx context.Context) error {
	tasks, err := q.store.ListPendingTasks(ctx)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		if err := q.Enqueue(ctx, task.ID); err != nil {
			return fmt.Errorf("queue: recover task %d: %w", task.ID, err)
		}
	}
	return nil
}

func (q *Queue) forget(taskID int64) {
	q.mu.Lock()
	delete(q.pending, taskID)
	q.mu.Unlock()
}

func (q *Queue) worker() {
	defer q.wg.Done()

	for {
		select {
		case <-q.ctx.Done():
			return
		case taskID := <-q.jobs:
			if err := q.process(q.ctx, taskID); err != nil {
				// Canceled mid-task; leave the status as the last write.
				if q.ctx.Err() != nil {
					return
				}
				_ = q.store.SetTaskStatus(context.Background(), taskID, store.StatusFailed, err.Error())
			}
			q.forget(taskID)
		}
	}
}

func (q *Queue) process(ctx context.Context, taskID int64) error {
	task, err := q.store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	if err := q.store.SetTaskStatus(ctx, taskID, store.StatusRunning, ""); err != nil {
		return err
	}

	personas, criteria, template, err := q.loadTaskInputs(ctx, task)
	if err != nil {
		return err
	}

	stimulus := Stimulus(task, template)
	var results []*store.Result

	for _, persona := range personas {
		for _, criterion := range criteria {
			res, err := q.scoreOne(ctx, task, persona, criterion, template, stimulus)
			if err != nil {
				// Results persisted so far stay in the store.
				return err
			}
			if _, err := q.store.CreateResult(ctx, res); err != nil {
				return err
			}
			results = append(results, res)
		}
	}

	if err := q.store.SetTaskStatus(ctx, taskID, store.StatusCompleted, ""); err != nil {
		return err
	}

	// Best effort; a failed artifact write never fails a completed task.
	q.writeTaskArtifact(task, personas, criteria, template, results)
	return nil
}

func (q *Queue) loadTaskInputs(ctx context.Context, task *store.Task) ([]*store.Persona, []*store.Criterion, *store.PromptTemplate, error) {
	personas := make([]*store.Persona, 0, len(task.PersonaIDs))
	for _, id := range task.PersonaIDs {
		p, err := q.store.GetPersona(ctx, id)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("queue: load persona %d: %w", id, err)
		}
		personas = append(personas, p)
	}

	criteria := make([]*store.Criterion, 0, len(task.CriterionIDs))
	for _, id := range task.CriterionIDs {
		c, err := q.store.GetCriterion(ctx, id)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("queue: load criterion %d: %w", id, err)
		}
		criteria = append(criteria, c)
	}

	var template *store.PromptTemplate
	if task.PromptTemplateID != nil {
		t, err := q.store.GetTemplate(ctx, *task.PromptTemplateID)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("queue: load template %d: %w", *task.PromptTemplateID, err)
		}
		template = t
	}

	return personas, criteria, template, nil
}

// scoreOne produces one persona x criterion result without persisting it.
func (q *Queue) scoreOne(ctx context.Context, task *store.Task, persona *store.Persona, criterion *store.Criterion, template *store.PromptTemplate, stimulus string) (*store.Result, error) {
	anchors, err := ssr.NewAnchorSet(criterion.Anchors)
	if err != nil {
		return nil, fmt.Errorf("queue: criterion %d: %w", criterion.ID, err)
	}

	var (
		text       string
		sessionRef string
		dist       *ssr.Distribution
	)

	switch task.Method {
	case ssr.MethodUniform:
		dist = ssr.Uniform(ssr.MethodUniform)

	case ssr.MethodTFIDF:
		var templateText string
		if template != nil {
			templateText = template.Content
		}
		text = ssr.SynthesizeResponse(ssr.SynthesisInput{
			PersonaID:        persona.ID,
			PersonaAge:       persona.Age,
			PersonaGender:    persona.Gender,
			CriterionLabel:   criterion.Label,
			Guidance:         task.Guidance,
			Stimulus:         stimulus,
			OperationContext: task.OperationContext,
			TemplateText:     templateText,
			Seed:             task.Seed,
		})
		dist, err = q.mapper.Map(text, anchors, ssr.MethodTFIDF, task.Seed)
		if err != nil {
			return nil, err
		}

	case ssr.MethodOracle:
		if q.oracle == nil {
			return nil, errors.New("queue: no oracle configured")
		}
		out, invokeErr := q.oracle.Invoke(ctx, &oracle.Request{
			Prompt:      ReactionPrompt(persona, criterion, task, stimulus),
			ImageBase64: task.ImageData,
			ImageName:   task.ImageName,
		})
		if invokeErr != nil {
			if q.onOracleFailure != config.PolicyUniform {
				return nil, fmt.Errorf("queue: persona %d criterion %d: %w", persona.ID, criterion.ID, invokeErr)
			}
			dist = ssr.Uniform(ssr.MethodUniform)
			break
		}
		text = out.Text
		sessionRef = out.SessionRef
		dist, err = q.mapper.Map(text, anchors, ssr.MethodOracle, task.Seed)
		if err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("queue: task %d has unknown method %q", task.ID, task.Method)
	}

	summary := fmt.Sprintf("%s (%d/%s) evaluated %s.", persona.Name, persona.Age, persona.Gender, criterion.Label)
	if text != "" {
		summary += " " + text
	}

	return &store.Result{
		TaskID:       task.ID,
		PersonaID:    persona.ID,
		CriterionID:  criterion.ID,
		Summary:      summary,
		Distribution: *dist,
		Rating:       dist.Mode,
		SessionRef:   sessionRef,
	}, nil
}

// taskArtifact is the JSON payload written next to the oracle's own
// session logs when a task completes, so one directory tree holds both.
type taskArtifact struct {
	Task struct {
		ID           int64             `json:"id"`
		Title        string            `json:"title"`
		Status       string            `json:"status"`
		StimulusText string            `json:"stimulus_text"`
		ImageName    string            `json:"image_name,omitempty"`
		PersonaIDs   []int64           `json:"persona_ids"`
		CriterionIDs []int64           `json:"criterion_ids"`
		Guidance     string            `json:"guidance,omitempty"`
		SessionLabel string            `json:"session_label,omitempty"`
		Context      map[string]string `json:"operation_context,omitempty"`
		Method       string            `json:"method"`
		CreatedAt    time.Time         `json:"created_at"`
	} `json:"task"`
	Personas []artifactPersona   `json:"personas"`
	Criteria []artifactCriterion `json:"criteria"`
	Template *artifactTemplate   `json:"prompt_template,omitempty"`
	Results  []artifactResult    `json:"results"`
}

type artifactPersona struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
	Notes  string `json:"notes,omitempty"`
}

type artifactCriterion struct {
	ID       int64    `json:"id"`
	Label    string   `json:"label"`
	Question string   `json:"question"`
	Anchors  []string `json:"anchors"`
}

type artifactTemplate struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

type artifactResult struct {
	PersonaID    int64              `json:"persona_id"`
	CriterionID  int64              `json:"criterion_id"`
	Distribution [ssr.Scale]float64 `json:"distribution"`
	Rating       int                `json:"rating"`
	Method       string             `json:"method"`
	Summary      string             `json:"summary"`
}

func (q *Queue) writeTaskArtifact(task *store.Task, personas []*store.Persona, criteria []*store.Criterion, template *store.PromptTemplate, results []*store.Result) {
	if q.sessionRoot == "" {
		return
	}

	var payload taskArtifact
	payload.Task.ID = task.ID
	payload.Task.Title = task.Title
	payload.Task.Status = string(store.StatusCompleted)
	payload.Task.StimulusText = task.StimulusText
	payload.Task.ImageName = task.ImageName
	payload.Task.PersonaIDs = task.PersonaIDs
	payload.Task.CriterionIDs = task.CriterionIDs
	payload.Task.Guidance = task.Guidance
	payload.Task.SessionLabel = task.SessionLabel
	payload.Task.Context = task.OperationContext
	payload.Task.Method = string(task.Method)
	payload.Task.CreatedAt = task.CreatedAt

	for _, p := range personas {
		payload.Personas = append(payload.Personas, artifactPersona{
			ID: p.ID, Name: p.Name, Age: p.Age, Gender: p.Gender, Notes: p.Notes,
		})
	}
	for _, c := range criteria {
		payload.Criteria = append(payload.Criteria, artifactCriterion{
			ID: c.ID, Label: c.Label, Question: c.Question, Anchors: c.Anchors,
		})
	}
	if template != nil {
		payload.Template = &artifactTemplate{ID: template.ID, Name: template.Name, Content: template.Content}
	}
	for _, r := range results {
		payload.Results = append(payload.Results, artifactResult{
			PersonaID:    r.PersonaID,
			CriterionID:  r.CriterionID,
			Distribution: r.Distribution.Probs,
			Rating:       r.Rating,
			Method:       string(r.Distribution.Method),
			Summary:      r.Summary,
		})
	}

	dir := oracle.SessionDayDir(q.sessionRoot, time.Now().UTC())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	b, err := json.MarshalIndent(&payload, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(dir, fmt.Sprintf("task-%d.json", task.ID)), b, 0o644)
}
