package store

import (
	"context"
	"time"

	"github.com/stellarlinkco/persona-ssr/internal/ssr"
)

// TaskStatus tracks a task through the queue state machine.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

// Persona is a synthetic respondent.
type Persona struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	Gender    string    `json:"gender"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Criterion is a Likert question with its five anchor sentences.
type Criterion struct {
	ID        int64     `json:"id"`
	Label     string    `json:"label"`
	Question  string    `json:"question"`
	Anchors   []string  `json:"anchors"` // exactly ssr.Scale entries
	CreatedAt time.Time `json:"created_at"`
}

// PromptTemplate is reusable free text appended to composed prompts.
type PromptTemplate struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

// Task is one queued scoring batch; it fans out into persona x criterion
// scoring requests processed sequentially.
type Task struct {
	ID               int64             `json:"id"`
	Title            string            `json:"title"`
	StimulusText     string            `json:"stimulus_text,omitempty"`
	ImageName        string            `json:"image_name,omitempty"`
	ImageData        string            `json:"-"` // base64 transport encoding, write-only
	PersonaIDs       []int64           `json:"persona_ids"`
	CriterionIDs     []int64           `json:"criterion_ids"`
	Guidance         string            `json:"guidance,omitempty"`
	SessionLabel     string            `json:"session_label,omitempty"`
	OperationContext map[string]string `json:"operation_context,omitempty"`
	PromptTemplateID *int64            `json:"prompt_template_id,omitempty"`
	Method           ssr.Method        `json:"method"`
	Seed             *int64            `json:"seed,omitempty"`
	Status           TaskStatus        `json:"status"`
	Error            string            `json:"error,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// Result is one scored persona x criterion reaction. Immutable after
// creation; history is append-only across re-enqueues.
type Result struct {
	ID           int64            `json:"id"`
	TaskID       int64            `json:"task_id"`
	PersonaID    int64            `json:"persona_id"`
	CriterionID  int64            `json:"criterion_id"`
	Summary      string           `json:"summary"`
	Distribution ssr.Distribution `json:"distribution"`
	Rating       int              `json:"rating"` // the distribution mode, denormalized for queries
	SessionRef   string           `json:"session_ref,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Benchmark is a human-collected reference distribution, entered
// independently of any task.
type Benchmark struct {
	ID           int64              `json:"id"`
	Label        string             `json:"label"`
	SessionLabel string             `json:"session_label,omitempty"`
	CriterionID  int64              `json:"criterion_id"`
	Distribution [ssr.Scale]float64 `json:"distribution"`
	SampleSize   int                `json:"sample_size"`
	CreatedAt    time.Time          `json:"created_at"`
}

// ResultFilter narrows result listings.
type ResultFilter struct {
	TaskID       int64 // zero matches all
	CriterionID  int64 // zero matches all
	SessionLabel string
	// CompletedTasksOnly restricts results to tasks in completed status.
	CompletedTasksOnly bool
}

// PersonaStore persists personas.
type PersonaStore interface {
	CreatePersona(ctx context.Context, p *Persona) (int64, error)
	GetPersona(ctx context.Context, id int64) (*Persona, error)
	ListPersonas(ctx context.Context) ([]*Persona, error)
	DeletePersona(ctx context.Context, id int64) error
}

// CriterionStore persists criteria and their anchor sets.
type CriterionStore interface {
	CreateCriterion(ctx context.Context, c *Criterion) (int64, error)
	GetCriterion(ctx context.Context, id int64) (*Criterion, error)
	ListCriteria(ctx context.Context) ([]*Criterion, error)
	DeleteCriterion(ctx context.Context, id int64) error
}

// TemplateStore persists prompt templates.
type TemplateStore interface {
	CreateTemplate(ctx context.Context, t *PromptTemplate) (int64, error)
	GetTemplate(ctx context.Context, id int64) (*PromptTemplate, error)
	ListTemplates(ctx context.Context) ([]*PromptTemplate, error)
	DeleteTemplate(ctx context.Context, id int64) error
}

// BenchmarkStore persists human reference distributions.
type BenchmarkStore interface {
	CreateBenchmark(ctx context.Context, b *Benchmark) (int64, error)
	ListBenchmarks(ctx context.Context) ([]*Benchmark, error)
	DeleteBenchmark(ctx context.Context, id int64) error
}

// TaskStore is the queue's view of task persistence. SetTaskStatus is the
// single writer path for status transitions.
type TaskStore interface {
	CreateTask(ctx context.Context, t *Task) (int64, error)
	GetTask(ctx context.Context, id int64) (*Task, error)
	ListTasks(ctx context.Context) ([]*Task, error)
	ListPendingTasks(ctx context.Context) ([]*Task, error)
	SetTaskStatus(ctx context.Context, id int64, status TaskStatus, errMsg string) error
}

// ResultStore is the queue's completion sink plus read access for
// benchmarks and reports.
type ResultStore interface {
	CreateResult(ctx context.Context, r *Result) (int64, error)
	ListResults(ctx context.Context, filter ResultFilter) ([]*Result, error)
}

// Store combines all persistence concerns behind one handle.
type Store interface {
	PersonaStore
	CriterionStore
	TemplateStore
	BenchmarkStore
	TaskStore
	ResultStore
	Close() error
}
