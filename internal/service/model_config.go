package service

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/stepwise-ai/stepwise/internal/model"
)

type CreateModelConfigInput struct {
	Name        string
	Provider    string
	Model       string
	APIKey      string
	APIKeyEnv   string
	BaseURL     string
	MaxTokens   *int
	Temperature *float64
	IsDefault   bool
}

type UpdateModelConfigInput struct {
	Name        *string
	Provider    *string
	Model       *string
	APIKey      *string
	APIKeyEnv   *string
	BaseURL     *string
	MaxTokens   *int
	Temperature *float64
}

// ModelConfigService manages the provider/model configs used for
// decomposition calls.
type ModelConfigService struct {
	db *sql.DB
}

func NewModelConfigService(db *sql.DB) *ModelConfigService {
	return &ModelConfigService{db: db}
}

func (s *ModelConfigService) List(ctx context.Context) ([]model.ModelConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, provider, model, api_key, api_key_env, base_url, max_tokens, temperature, is_default, created_at, updated_at
		FROM model_configs
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.ModelConfig, 0)
	for rows.Next() {
		item, err := scanModelConfig(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *ModelConfigService) Get(ctx context.Context, id string) (*model.ModelConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, provider, model, api_key, api_key_env, base_url, max_tokens, temperature, is_default, created_at, updated_at
		FROM model_configs
		WHERE id = $1`, id)
	item, err := scanModelConfig(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return item, err
}

func (s *ModelConfigService) getByName(ctx context.Context, name string) (*model.ModelConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, provider, model, api_key, api_key_env, base_url, max_tokens, temperature, is_default, created_at, updated_at
		FROM model_configs
		WHERE name = $1`, name)
	item, err := scanModelConfig(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return item, err
}

func (s *ModelConfigService) Create(ctx context.Context, in CreateModelConfigInput) (*model.ModelConfig, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("name is required")
	}
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider != "openai" && provider != "anthropic" {
		return nil, fmt.Errorf("provider must be openai or anthropic")
	}
	if strings.TrimSpace(in.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}

	id := uuid.NewString()
	maxTokens := 1024
	if in.MaxTokens != nil {
		maxTokens = *in.MaxTokens
	}
	temperature := 0.0
	if in.Temperature != nil {
		temperature = *in.Temperature
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if in.IsDefault {
		if _, err := tx.ExecContext(ctx, `UPDATE model_configs SET is_default = FALSE WHERE is_default = TRUE`); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO model_configs
			(id, name, provider, model, api_key, api_key_env, base_url, max_tokens, temperature, is_default, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		id,
		strings.TrimSpace(in.Name),
		provider,
		strings.TrimSpace(in.Model),
		in.APIKey,
		strings.TrimSpace(in.APIKeyEnv),
		strings.TrimSpace(in.BaseURL),
		maxTokens,
		temperature,
		in.IsDefault,
		now,
		now,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *ModelConfigService) Update(ctx context.Context, id string, in UpdateModelConfigInput) (*model.ModelConfig, error) {
	existing, err := s.Get(ctx, id)
	if err != nil || existing == nil {
		return existing, err
	}

	name := existing.Name
	if in.Name != nil && strings.TrimSpace(*in.Name) != "" {
		name = strings.TrimSpace(*in.Name)
	}
	provider := existing.Provider
	if in.Provider != nil && strings.TrimSpace(*in.Provider) != "" {
		provider = strings.ToLower(strings.TrimSpace(*in.Provider))
		if provider != "openai" && provider != "anthropic" {
			return nil, fmt.Errorf("provider must be openai or anthropic")
		}
	}
	modelName := existing.Model
	if in.Model != nil && strings.TrimSpace(*in.Model) != "" {
		modelName = strings.TrimSpace(*in.Model)
	}
	apiKey := existing.APIKey
	if in.APIKey != nil {
		apiKey = *in.APIKey
	}
	apiKeyEnv := existing.APIKeyEnv
	if in.APIKeyEnv != nil {
		apiKeyEnv = strings.TrimSpace(*in.APIKeyEnv)
	}
	baseURL := existing.BaseURL
	if in.BaseURL != nil {
		baseURL = strings.TrimSpace(*in.BaseURL)
	}
	maxTokens := existing.MaxTokens
	if in.MaxTokens != nil {
		maxTokens = *in.MaxTokens
	}
	temperature := existing.Temperature
	if in.Temperature != nil {
		temperature = *in.Temperature
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx, `
		UPDATE model_configs SET
			name = $1,
			provider = $2,
			model = $3,
			api_key = $4,
			api_key_env = $5,
			base_url = $6,
			max_tokens = $7,
			temperature = $8,
			updated_at = $9
		WHERE id = $10`,
		name, provider, modelName, apiKey, apiKeyEnv, baseURL, maxTokens, temperature, now, id,
	); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *ModelConfigService) Delete(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM model_configs WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// SetDefault marks one config as the default and clears the flag everywhere
// else. Returns nil when the config does not exist.
func (s *ModelConfigService) SetDefault(ctx context.Context, id string) (*model.ModelConfig, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE model_configs SET is_default = FALSE WHERE is_default = TRUE`); err != nil {
		return nil, err
	}
	result, err := tx.ExecContext(ctx, `UPDATE model_configs SET is_default = TRUE, updated_at = $1 WHERE id = $2`,
		time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// ResolveDefault returns the config flagged as default, or the only config
// when exactly one exists. Returns nil when nothing is usable.
func (s *ModelConfigService) ResolveDefault(ctx context.Context) (*model.ModelConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, provider, model, api_key, api_key_env, base_url, max_tokens, temperature, is_default, created_at, updated_at
		FROM model_configs
		WHERE is_default = TRUE
		LIMIT 1`)
	item, err := scanModelConfig(row)
	if err == nil {
		return item, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	items, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) == 1 {
		return &items[0], nil
	}
	return nil, nil
}

// seedFile is the YAML shape accepted by SeedFromFile.
type seedFile struct {
	ModelConfigs []struct {
		Name        string  `yaml:"name"`
		Provider    string  `yaml:"provider"`
		Model       string  `yaml:"model"`
		APIKey      string  `yaml:"api_key"`
		APIKeyEnv   string  `yaml:"api_key_env"`
		BaseURL     string  `yaml:"base_url"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float64 `yaml:"temperature"`
		Default     bool    `yaml:"default"`
	} `yaml:"model_configs"`
}

// SeedFromFile inserts configs from a YAML file, skipping names that
// already exist so local edits survive restarts.
func (s *ModelConfigService) SeedFromFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read providers file: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse providers file: %w", err)
	}

	created := 0
	for _, entry := range seed.ModelConfigs {
		existing, err := s.getByName(ctx, entry.Name)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		in := CreateModelConfigInput{
			Name:      entry.Name,
			Provider:  entry.Provider,
			Model:     entry.Model,
			APIKey:    entry.APIKey,
			APIKeyEnv: entry.APIKeyEnv,
			BaseURL:   entry.BaseURL,
			IsDefault: entry.Default,
		}
		if entry.MaxTokens > 0 {
			in.MaxTokens = &entry.MaxTokens
		}
		if entry.Temperature != 0 {
			in.Temperature = &entry.Temperature
		}
		if _, err := s.Create(ctx, in); err != nil {
			return fmt.Errorf("seed %s: %w", entry.Name, err)
		}
		created++
	}
	if created > 0 {
		log.Printf("seeded %d model config(s) from %s", created, path)
	}
	return nil
}

type modelConfigScanner interface {
	Scan(dest ...any) error
}

func scanModelConfig(row modelConfigScanner) (*model.ModelConfig, error) {
	var item model.ModelConfig
	if err := row.Scan(
		&item.ID,
		&item.Name,
		&item.Provider,
		&item.Model,
		&item.APIKey,
		&item.APIKeyEnv,
		&item.BaseURL,
		&item.MaxTokens,
		&item.Temperature,
		&item.IsDefault,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &item, nil
}
