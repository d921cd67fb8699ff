package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/mithublue/photoframe-generator/internal/domain"
)

const creationSchemaSQL = `
CREATE TABLE IF NOT EXISTS creations (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	source_type TEXT NOT NULL,
	webhook_url TEXT NOT NULL DEFAULT '',
	profile_key TEXT NOT NULL,
	frame_key TEXT NOT NULL,
	output_key TEXT NOT NULL DEFAULT '',
	thumb_key TEXT NOT NULL DEFAULT '',
	params JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS usage_logs (
	id BIGSERIAL PRIMARY KEY,
	user_id TEXT NOT NULL,
	creation_id TEXT NOT NULL,
	pixels_rendered BIGINT NOT NULL,
	output_bytes BIGINT NOT NULL,
	compute_time_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
`

type PostgresCreationStore struct {
	db *sql.DB
}

func NewPostgresCreationStore(ctx context.Context, dsn string) (*PostgresCreationStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresCreationStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresCreationStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, creationSchemaSQL); err != nil {
		return fmt.Errorf("ensure creations schema: %w", err)
	}
	return nil
}

func (s *PostgresCreationStore) Close() error {
	return s.db.Close()
}

func (s *PostgresCreationStore) Create(ctx context.Context, creation domain.Creation) error {
	paramsJSON, err := json.Marshal(creation.Params)
	if err != nil {
		return fmt.Errorf("marshal creation params: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO creations (id, user_id, status, source_type, webhook_url, profile_key, frame_key, output_key, thumb_key, params, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		creation.ID,
		creation.UserID,
		creation.Status,
		creation.SourceType,
		creation.WebhookURL,
		creation.ProfileKey,
		creation.FrameKey,
		creation.OutputKey,
		creation.ThumbKey,
		paramsJSON,
		creation.CreatedAt,
		creation.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert creation: %w", err)
	}

	return nil
}

func (s *PostgresCreationStore) Get(ctx context.Context, id string) (domain.Creation, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, user_id, status, source_type, webhook_url, profile_key, frame_key, output_key, thumb_key, params, created_at, updated_at
		 FROM creations
		 WHERE id = $1`,
		id,
	)

	var (
		creation   domain.Creation
		paramsJSON []byte
	)
	if err := row.Scan(
		&creation.ID,
		&creation.UserID,
		&creation.Status,
		&creation.SourceType,
		&creation.WebhookURL,
		&creation.ProfileKey,
		&creation.FrameKey,
		&creation.OutputKey,
		&creation.ThumbKey,
		&paramsJSON,
		&creation.CreatedAt,
		&creation.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return domain.Creation{}, false, nil
		}
		return domain.Creation{}, false, fmt.Errorf("query creation: %w", err)
	}

	if err := json.Unmarshal(paramsJSON, &creation.Params); err != nil {
		return domain.Creation{}, false, fmt.Errorf("unmarshal creation params: %w", err)
	}

	return creation, true, nil
}

func (s *PostgresCreationStore) UpdateStatus(ctx context.Context, id, status string) (domain.Creation, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE creations
		 SET status = $1, updated_at = $2
		 WHERE id = $3`,
		status,
		now,
		id,
	)
	if err != nil {
		return domain.Creation{}, fmt.Errorf("update creation status: %w", err)
	}

	return s.mustGet(ctx, id)
}

func (s *PostgresCreationStore) SetOutputs(ctx context.Context, id, outputKey, thumbKey string) (domain.Creation, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE creations
		 SET output_key = $1, thumb_key = $2, updated_at = $3
		 WHERE id = $4`,
		outputKey,
		thumbKey,
		now,
		id,
	)
	if err != nil {
		return domain.Creation{}, fmt.Errorf("update creation outputs: %w", err)
	}

	return s.mustGet(ctx, id)
}

func (s *PostgresCreationStore) CreateUsageLog(ctx context.Context, usage domain.UsageLog) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO usage_logs (user_id, creation_id, pixels_rendered, output_bytes, compute_time_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		usage.UserID,
		usage.CreationID,
		usage.PixelsRendered,
		usage.OutputBytes,
		usage.ComputeTimeMS,
		usage.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert usage log: %w", err)
	}
	return nil
}

func (s *PostgresCreationStore) mustGet(ctx context.Context, id string) (domain.Creation, error) {
	creation, ok, err := s.Get(ctx, id)
	if err != nil {
		return domain.Creation{}, err
	}
	if !ok {
		return domain.Creation{}, ErrCreationNotFound
	}
	return creation, nil
}
