package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/stepwise-ai/stepwise/internal/decompose"
	"github.com/stepwise-ai/stepwise/internal/llm"
	"github.com/stepwise-ai/stepwise/internal/middleware"
	"github.com/stepwise-ai/stepwise/internal/model"
	"github.com/stepwise-ai/stepwise/internal/settings"
)

// DecompositionService turns prompts into task lists. The provider path is
// best-effort: if the toggle is off or the provider path fails for any
// reason, the heuristic splitter supplies the result instead.
type DecompositionService struct {
	db         *sql.DB
	settings   *settings.Service
	configs    *ModelConfigService
	sseMan     *SSEManager
	llmTimeout time.Duration

	// newProvider is replaced in tests.
	newProvider func(cfg *model.ModelConfig) (llm.Provider, error)
}

func NewDecompositionService(
	db *sql.DB,
	settingsSvc *settings.Service,
	configs *ModelConfigService,
	sseMan *SSEManager,
	llmTimeout time.Duration,
) *DecompositionService {
	return &DecompositionService{
		db:          db,
		settings:    settingsSvc,
		configs:     configs,
		sseMan:      sseMan,
		llmTimeout:  llmTimeout,
		newProvider: llm.New,
	}
}

// Decompose splits prompt into tasks. It never fails: every path ends in a
// non-empty task list, and persistence problems are logged, not returned.
func (s *DecompositionService) Decompose(ctx context.Context, prompt string) *model.Decomposition {
	start := time.Now()

	var (
		tasks     []model.TaskDescriptor
		source    = model.SourceHeuristic
		modelName string
	)

	if s.settings.DecompositionEnabled(ctx) {
		cfg, err := s.configs.ResolveDefault(ctx)
		if err != nil {
			log.Printf("decompose: resolve default model config: %v", err)
		} else if cfg != nil {
			got, err := s.modelDecompose(ctx, cfg, prompt)
			if err != nil {
				log.Printf("decompose: model path %s/%s: %v (falling back)", cfg.Provider, cfg.Model, err)
			} else {
				tasks = got
				source = model.SourceModel
				modelName = cfg.Model
			}
		}
	}
	if tasks == nil {
		tasks = decompose.Decompose(prompt)
	}

	dec := &model.Decomposition{
		DecompositionID: uuid.NewString(),
		Prompt:          prompt,
		Tasks:           tasks,
		Source:          source,
		Model:           modelName,
		TraceID:         middleware.TraceIDFromCtx(ctx),
		DurationMs:      time.Since(start).Milliseconds(),
		CreatedAt:       time.Now().UTC().Format(time.RFC3339Nano),
	}

	s.persist(ctx, dec)

	if s.sseMan != nil {
		s.sseMan.PublishJSON(TopicActivity, "decomposition.created", map[string]any{
			"decomposition_id": dec.DecompositionID,
			"source":           dec.Source,
			"task_count":       len(dec.Tasks),
			"trace_id":         dec.TraceID,
		})
	}
	return dec
}

func (s *DecompositionService) modelDecompose(ctx context.Context, cfg *model.ModelConfig, prompt string) ([]model.TaskDescriptor, error) {
	provider, err := s.newProvider(cfg)
	if err != nil {
		return nil, err
	}
	callCtx, cancel := context.WithTimeout(ctx, s.llmTimeout)
	defer cancel()
	return llm.Decompose(callCtx, provider, prompt)
}

// persist writes the record best-effort; the caller already has the result.
func (s *DecompositionService) persist(ctx context.Context, dec *model.Decomposition) {
	if s.db == nil {
		return
	}
	tasksJSON, err := json.Marshal(dec.Tasks)
	if err != nil {
		log.Printf("decompose: marshal tasks for %s: %v", dec.DecompositionID, err)
		return
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO decompositions (id, prompt, tasks, source, model, trace_id, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		dec.DecompositionID,
		dec.Prompt,
		string(tasksJSON),
		dec.Source,
		dec.Model,
		dec.TraceID,
		dec.DurationMs,
		dec.CreatedAt,
	); err != nil {
		log.Printf("decompose: persist %s: %v", dec.DecompositionID, err)
	}
}

func (s *DecompositionService) List(ctx context.Context, limit int) ([]model.Decomposition, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, prompt, tasks, source, model, trace_id, duration_ms, created_at
		FROM decompositions
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Decomposition, 0)
	for rows.Next() {
		item, err := scanDecomposition(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *DecompositionService) Get(ctx context.Context, id string) (*model.Decomposition, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, prompt, tasks, source, model, trace_id, duration_ms, created_at
		FROM decompositions
		WHERE id = $1`, id)
	item, err := scanDecomposition(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return item, err
}

type decompositionScanner interface {
	Scan(dest ...any) error
}

func scanDecomposition(row decompositionScanner) (*model.Decomposition, error) {
	var item model.Decomposition
	var tasksJSON string
	if err := row.Scan(
		&item.DecompositionID,
		&item.Prompt,
		&tasksJSON,
		&item.Source,
		&item.Model,
		&item.TraceID,
		&item.DurationMs,
		&item.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tasksJSON), &item.Tasks); err != nil {
		return nil, err
	}
	return &item, nil
}
