package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stellarlinkco/persona-ssr/internal/ssr"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	insertResultStmt  *sql.Stmt
	setTaskStatusStmt *sql.Stmt
	listPendingStmt   *sql.Stmt
	resultsByTaskStmt *sql.Stmt
}

// NewSQLiteStore opens or creates a SQLite store at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store: empty sqlite path")
	}
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create sqlite dir: %w", err)
			}
		}
	}

	// DSN pragmas apply to every pooled connection; an Exec-ed PRAGMA
	// only configures the connection it runs on.
	dsn := "file:" + path + "?_foreign_keys=on&_journal_mode=WAL"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	if path == ":memory:" {
		// Each sqlite3 connection gets its own :memory: database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping sqlite: %w", err)
	}

	if err := initSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	st := &SQLiteStore{db: db}
	if err := st.prepareStatements(); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func initSQLiteSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS personas (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			age INTEGER NOT NULL,
			gender TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS criteria (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			label TEXT NOT NULL,
			question TEXT NOT NULL,
			anchors_json TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS prompt_templates (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS benchmarks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			label TEXT NOT NULL,
			session_label TEXT NOT NULL DEFAULT '',
			criterion_id INTEGER NOT NULL,
			distribution_json TEXT NOT NULL,
			sample_size INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			stimulus_text TEXT NOT NULL DEFAULT '',
			image_name TEXT NOT NULL DEFAULT '',
			image_data TEXT NOT NULL DEFAULT '',
			persona_ids_json TEXT NOT NULL,
			criterion_ids_json TEXT NOT NULL,
			guidance TEXT NOT NULL DEFAULT '',
			session_label TEXT NOT NULL DEFAULT '',
			operation_context_json TEXT NOT NULL DEFAULT '{}',
			prompt_template_id INTEGER,
			method TEXT NOT NULL,
			seed INTEGER,
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id INTEGER NOT NULL,
			persona_id INTEGER NOT NULL,
			criterion_id INTEGER NOT NULL,
			summary TEXT NOT NULL,
			distribution_json TEXT NOT NULL,
			rating INTEGER NOT NULL,
			session_ref TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			FOREIGN KEY(task_id) REFERENCES tasks(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_task_id ON results(task_id)`,
		`CREATE INDEX IF NOT EXISTS idx_results_criterion_id ON results(criterion_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store: init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) prepareStatements() error {
	if s == nil || s.db == nil {
		return errors.New("store: nil sqlite store")
	}

	ctx := context.Background()
	type stmtSpec struct {
		dst    **sql.Stmt
		query  string
		errFmt string
	}

	specs := []stmtSpec{
		{
			dst: &s.insertResultStmt,
			query: `
				INSERT INTO results (
					task_id, persona_id, criterion_id, summary, distribution_json, rating, session_ref, created_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare insert result: %w",
		},
		{
			dst:    &s.setTaskStatusStmt,
			query:  `UPDATE tasks SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
			errFmt: "store: prepare set task status: %w",
		},
		{
			dst: &s.listPendingStmt,
			query: `
				SELECT ` + taskColumns + `
				FROM tasks
				WHERE status = 'pending'
				ORDER BY created_at ASC, id ASC
			`,
			errFmt: "store: prepare list pending: %w",
		},
		{
			dst: &s.resultsByTaskStmt,
			query: `
				SELECT ` + resultColumns + `
				FROM results
				WHERE task_id = ?
				ORDER BY id ASC
			`,
			errFmt: "store: prepare results by task: %w",
		},
	}

	for _, spec := range specs {
		stmt, err := s.db.PrepareContext(ctx, spec.query)
		if err != nil {
			return fmt.Errorf(spec.errFmt, err)
		}
		*spec.dst = stmt
	}

	return nil
}

// Close releases database resources.
func (s *SQLiteStore) Close() error {
	if s == nil {
		return nil
	}
	for _, stmt := range []*sql.Stmt{
		s.insertResultStmt,
		s.setTaskStatusStmt,
		s.listPendingStmt,
		s.resultsByTaskStmt,
	} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ErrNotFound reports a missing row.
var ErrNotFound = errors.New("store: not found")

const taskColumns = `id, title, stimulus_text, image_name, image_data, persona_ids_json,
	criterion_ids_json, guidance, session_label, operation_context_json,
	prompt_template_id, method, seed, status, error, created_at, updated_at`

const resultColumns = `id, task_id, persona_id, criterion_id, summary, distribution_json,
	rating, session_ref, created_at`

// --- personas ---

func (s *SQLiteStore) CreatePersona(ctx context.Context, p *Persona) (int64, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	if p == nil {
		return 0, errors.New("store: nil persona")
	}
	if strings.TrimSpace(p.Name) == "" {
		return 0, errors.New("store: empty persona name")
	}

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO personas (name, age, gender, notes, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.Name, p.Age, p.Gender, p.Notes, createdAt.UTC().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert persona: %w", err)
	}
	return lastInsertID(res, "persona")
}

func (s *SQLiteStore) GetPersona(ctx context.Context, id int64) (*Persona, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, age, gender, notes, created_at FROM personas WHERE id = ?`, id)
	p, err := scanPersona(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get persona: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) ListPersonas(ctx context.Context) ([]*Persona, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, age, gender, notes, created_at FROM personas ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: list personas: %w", err)
	}
	defer rows.Close()

	var out []*Persona
	for rows.Next() {
		p, err := scanPersona(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan persona: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeletePersona(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "personas", id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPersona(row rowScanner) (*Persona, error) {
	var p Persona
	var createdAtMS int64
	if err := row.Scan(&p.ID, &p.Name, &p.Age, &p.Gender, &p.Notes, &createdAtMS); err != nil {
		return nil, err
	}
	p.CreatedAt = time.UnixMilli(createdAtMS).UTC()
	return &p, nil
}

// --- criteria ---

func (s *SQLiteStore) CreateCriterion(ctx context.Context, c *Criterion) (int64, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	if c == nil {
		return 0, errors.New("store: nil criterion")
	}
	if strings.TrimSpace(c.Label) == "" {
		return 0, errors.New("store: empty criterion label")
	}
	if len(c.Anchors) != ssr.Scale {
		return 0, fmt.Errorf("store: criterion needs %d anchors, got %d", ssr.Scale, len(c.Anchors))
	}

	anchorsJSON, err := json.Marshal(c.Anchors)
	if err != nil {
		return 0, fmt.Errorf("store: marshal anchors: %w", err)
	}

	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO criteria (label, question, anchors_json, created_at) VALUES (?, ?, ?, ?)`,
		c.Label, c.Question, string(anchorsJSON), createdAt.UTC().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert criterion: %w", err)
	}
	return lastInsertID(res, "criterion")
}

func (s *SQLiteStore) GetCriterion(ctx context.Context, id int64) (*Criterion, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, label, question, anchors_json, created_at FROM criteria WHERE id = ?`, id)
	c, err := scanCriterion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get criterion: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) ListCriteria(ctx context.Context) ([]*Criterion, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, label, question, anchors_json, created_at FROM criteria ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: list criteria: %w", err)
	}
	defer rows.Close()

	var out []*Criterion
	for rows.Next() {
		c, err := scanCriterion(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan criterion: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteCriterion(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "criteria", id)
}

func scanCriterion(row rowScanner) (*Criterion, error) {
	var c Criterion
	var anchorsJSON string
	var createdAtMS int64
	if err := row.Scan(&c.ID, &c.Label, &c.Question, &anchorsJSON, &createdAtMS); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(anchorsJSON), &c.Anchors); err != nil {
		return nil, fmt.Errorf("decode anchors: %w", err)
	}
	c.CreatedAt = time.UnixMilli(createdAtMS).UTC()
	return &c, nil
}

// --- prompt templates ---

func (s *SQLiteStore) CreateTemplate(ctx context.Context, t *PromptTemplate) (int64, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	if t == nil {
		return 0, errors.New("store: nil template")
	}
	if strings.TrimSpace(t.Name) == "" || strings.TrimSpace(t.Content) == "" {
		return 0, errors.New("store: missing template name/content")
	}

	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO prompt_templates (name, description, content, created_at) VALUES (?, ?, ?, ?)`,
		t.Name, t.Description, t.Content, createdAt.UTC().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert template: %w", err)
	}
	return lastInsertID(res, "template")
}

func (s *SQLiteStore) GetTemplate(ctx context.Context, id int64) (*PromptTemplate, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, content, created_at FROM prompt_templates WHERE id = ?`, id)
	var t PromptTemplate
	var createdAtMS int64
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Content, &createdAtMS); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get template: %w", err)
	}
	t.CreatedAt = time.UnixMilli(createdAtMS).UTC()
	return &t, nil
}

func (s *SQLiteStore) ListTemplates(ctx context.Context) ([]*PromptTemplate, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, content, created_at FROM prompt_templates ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: list templates: %w", err)
	}
	defer rows.Close()

	var out []*PromptTemplate
	for rows.Next() {
		var t PromptTemplate
		var createdAtMS int64
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.Content, &createdAtMS); err != nil {
			return nil, fmt.Errorf("store: scan template: %w", err)
		}
		t.CreatedAt = time.UnixMilli(createdAtMS).UTC()
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteTemplate(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "prompt_templates", id)
}

// --- benchmarks ---

func (s *SQLiteStore) CreateBenchmark(ctx context.Context, b *Benchmark) (int64, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	if b == nil {
		return 0, errors.New("store: nil benchmark")
	}
	if strings.TrimSpace(b.Label) == "" {
		return 0, errors.New("store: empty benchmark label")
	}
	if b.CriterionID <= 0 {
		return 0, errors.New("store: missing benchmark criterion")
	}
	if b.SampleSize <= 0 {
		return 0, errors.New("store: benchmark sample size must be positive")
	}

	distJSON, err := json.Marshal(b.Distribution)
	if err != nil {
		return 0, fmt.Errorf("store: marshal benchmark distribution: %w", err)
	}

	createdAt := b.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO benchmarks (label, session_label, criterion_id, distribution_json, sample_size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		b.Label, b.SessionLabel, b.CriterionID, string(distJSON), b.SampleSize, createdAt.UTC().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert benchmark: %w", err)
	}
	return lastInsertID(res, "benchmark")
}

func (s *SQLiteStore) ListBenchmarks(ctx context.Context) ([]*Benchmark, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, label, session_label, criterion_id, distribution_json, sample_size, created_at
		 FROM benchmarks ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: list benchmarks: %w", err)
	}
	defer rows.Close()

	var out []*Benchmark
	for rows.Next() {
		var b Benchmark
		var distJSON string
		var createdAtMS int64
		if err := rows.Scan(&b.ID, &b.Label, &b.SessionLabel, &b.CriterionID, &distJSON, &b.SampleSize, &createdAtMS); err != nil {
			return nil, fmt.Errorf("store: scan benchmark: %w", err)
		}
		if err := json.Unmarshal([]byte(distJSON), &b.Distribution); err != nil {
			return nil, fmt.Errorf("store: decode benchmark distribution: %w", err)
		}
		b.CreatedAt = time.UnixMilli(createdAtMS).UTC()
		out = append(out, &b)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteBenchmark(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "benchmarks", id)
}

// --- tasks ---

func (s *SQLiteStore) CreateTask(ctx context.Context, t *Task) (int64, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	if t == nil {
		return 0, errors.New("store: nil task")
	}
	if strings.TrimSpace(t.Title) == "" {
		return 0, errors.New("store: empty task title")
	}
	if len(t.PersonaIDs) == 0 || len(t.CriterionIDs) == 0 {
		return 0, errors.New("store: task needs personas and criteria")
	}
	method, err := ssr.ParseMethod(string(t.Method))
	if err != nil {
		return 0, err
	}

	status := t.Status
	if status == "" {
		status = StatusPending
	}

	personaJSON, err := json.Marshal(t.PersonaIDs)
	if err != nil {
		return 0, fmt.Errorf("store: marshal persona ids: %w", err)
	}
	criterionJSON, err := json.Marshal(t.CriterionIDs)
	if err != nil {
		return 0, fmt.Errorf("store: marshal criterion ids: %w", err)
	}
	opCtx := t.OperationContext
	if opCtx == nil {
		opCtx = map[string]string{}
	}
	opCtxJSON, err := json.Marshal(opCtx)
	if err != nil {
		return 0, fmt.Errorf("store: marshal operation context: %w", err)
	}

	now := time.Now().UTC()
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	var templateID any
	if t.PromptTemplateID != nil {
		templateID = *t.PromptTemplateID
	}
	var seed any
	if t.Seed != nil {
		seed = *t.Seed
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (
			title, stimulus_text, image_name, image_data, persona_ids_json, criterion_ids_json,
			guidance, session_label, operation_context_json, prompt_template_id, method, seed,
			status, error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Title, t.StimulusText, t.ImageName, t.ImageData, string(personaJSON), string(criterionJSON),
		t.Guidance, t.SessionLabel, string(opCtxJSON), templateID, string(method), seed,
		string(status), t.Error, createdAt.UnixMilli(), createdAt.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert task: %w", err)
	}
	return lastInsertID(res, "task")
}

func (s *SQLiteStore) GetTask(ctx context.Context, id int64) (*Task, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get task: %w", err)
	}
	return t, nil
}

func (s *SQLiteStore) ListTasks(ctx context.Context) ([]*Task, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: list tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ListPendingTasks returns pending tasks in submission order.
func (s *SQLiteStore) ListPendingTasks(ctx context.Context) ([]*Task, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	rows, err := s.listPendingStmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: list pending tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// SetTaskStatus transitions a task and records its error message, which is
// cleared on non-failed transitions.
func (s *SQLiteStore) SetTaskStatus(ctx context.Context, id int64, status TaskStatus, errMsg string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	switch status {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
	default:
		return fmt.Errorf("store: invalid task status %q", status)
	}
	if status != StatusFailed {
		errMsg = ""
	}

	res, err := s.setTaskStatusStmt.ExecContext(ctx, string(status), errMsg, time.Now().UTC().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("store: set task status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: set task status: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func collectTasks(rows *sql.Rows) ([]*Task, error) {
	var out []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	var personaJSON, criterionJSON, opCtxJSON, method, status string
	var templateID sql.NullInt64
	var seed sql.NullInt64
	var createdAtMS, updatedAtMS int64

	err := row.Scan(
		&t.ID, &t.Title, &t.StimulusText, &t.ImageName, &t.ImageData, &personaJSON,
		&criterionJSON, &t.Guidance, &t.SessionLabel, &opCtxJSON,
		&templateID, &method, &seed, &status, &t.Error, &createdAtMS, &updatedAtMS,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(personaJSON), &t.PersonaIDs); err != nil {
		return nil, fmt.Errorf("decode persona ids: %w", err)
	}
	if err := json.Unmarshal([]byte(criterionJSON), &t.CriterionIDs); err != nil {
		return nil, fmt.Errorf("decode criterion ids: %w", err)
	}
	if err := json.Unmarshal([]byte(opCtxJSON), &t.OperationContext); err != nil {
		return nil, fmt.Errorf("decode operation context: %w", err)
	}
	if templateID.Valid {
		v := templateID.Int64
		t.PromptTemplateID = &v
	}
	if seed.Valid {
		v := seed.Int64
		t.Seed = &v
	}
	t.Method = ssr.Method(method)
	t.Status = TaskStatus(status)
	t.CreatedAt = time.UnixMilli(createdAtMS).UTC()
	t.UpdatedAt = time.UnixMilli(updatedAtMS).UTC()
	return &t, nil
}

// --- results ---

// CreateResult persists one scored reaction. Results are immutable; there
// is no update path.
func (s *SQLiteStore) CreateResult(ctx context.Context, r *Result) (int64, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	if r == nil {
		return 0, errors.New("store: nil result")
	}
	if r.TaskID <= 0 || r.PersonaID <= 0 || r.CriterionID <= 0 {
		return 0, errors.New("store: result missing task/persona/criterion")
	}
	if err := r.Distribution.Validate(); err != nil {
		return 0, err
	}

	distJSON, err := json.Marshal(r.Distribution)
	if err != nil {
		return 0, fmt.Errorf("store: marshal distribution: %w", err)
	}

	rating := r.Rating
	if rating == 0 {
		rating = r.Distribution.Mode
	}

	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.insertResultStmt.ExecContext(ctx,
		r.TaskID, r.PersonaID, r.CriterionID, r.Summary, string(distJSON), rating,
		r.SessionRef, createdAt.UTC().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert result: %w", err)
	}
	return lastInsertID(res, "result")
}

func (s *SQLiteStore) ListResults(ctx context.Context, filter ResultFilter) ([]*Result, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	if filter.TaskID > 0 && filter.CriterionID == 0 && filter.SessionLabel == "" && !filter.CompletedTasksOnly {
		rows, err := s.resultsByTaskStmt.QueryContext(ctx, filter.TaskID)
		if err != nil {
			return nil, fmt.Errorf("store: list results: %w", err)
		}
		defer rows.Close()
		return collectResults(rows)
	}

	query := `SELECT r.id, r.task_id, r.persona_id, r.criterion_id, r.summary,
		r.distribution_json, r.rating, r.session_ref, r.created_at
		FROM results r JOIN tasks t ON t.id = r.task_id WHERE 1=1`
	var args []any
	if filter.TaskID > 0 {
		query += ` AND r.task_id = ?`
		args = append(args, filter.TaskID)
	}
	if filter.CriterionID > 0 {
		query += ` AND r.criterion_id = ?`
		args = append(args, filter.CriterionID)
	}
	if filter.SessionLabel != "" {
		query += ` AND t.session_label = ?`
		args = append(args, filter.SessionLabel)
	}
	if filter.CompletedTasksOnly {
		query += ` AND t.status = 'completed'`
	}
	query += ` ORDER BY r.id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list results: %w", err)
	}
	defer rows.Close()
	return collectResults(rows)
}

func collectResults(rows *sql.Rows) ([]*Result, error) {
	var out []*Result
	for rows.Next() {
		var r Result
		var distJSON string
		var createdAtMS int64
		if err := rows.Scan(&r.ID, &r.TaskID, &r.PersonaID, &r.CriterionID, &r.Summary,
			&distJSON, &r.Rating, &r.SessionRef, &createdAtMS); err != nil {
			return nil, fmt.Errorf("store: scan result: %w", err)
		}
		if err := json.Unmarshal([]byte(distJSON), &r.Distribution); err != nil {
			return nil, fmt.Errorf("store: decode distribution: %w", err)
		}
		r.CreatedAt = time.UnixMilli(createdAtMS).UTC()
		out = append(out, &r)
	}
	return out, rows.Err()
}

// --- helpers ---

func (s *SQLiteStore) check(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return errors.New("store: nil context")
	}
	return nil
}

func (s *SQLiteStore) deleteByID(ctx context.Context, table string, id int64) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete from %s: %w", table, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func lastInsertID(res sql.Result, what string) (int64, error) {
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: %s id: %w", what, err)
	}
	return id, nil
}
