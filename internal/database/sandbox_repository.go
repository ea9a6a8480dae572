package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"agoracore/internal/models"
)

// SandboxRepository manages sandbox validation result storage.
type SandboxRepository struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewSandboxRepository creates a new sandbox repository.
func NewSandboxRepository(pool *pgxpool.Pool, log *logrus.Logger) *SandboxRepository {
	if log == nil {
		log = logrus.New()
	}
	return &SandboxRepository{pool: pool, log: log}
}

// CreateTable creates the sandbox_results table if it doesn't exist.
func (r *SandboxRepository) CreateTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS sandbox_results (
			id UUID PRIMARY KEY,
			participant_id UUID NOT NULL REFERENCES participants(id),
			run_id UUID,
			status VARCHAR(20) NOT NULL DEFAULT 'running',
			checks JSONB NOT NULL DEFAULT '[]',
			completed_at TIMESTAMP WITH TIME ZONE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_sandbox_results_participant_id ON sandbox_results(participant_id);
	`
	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create sandbox_results table: %w", err)
	}
	r.log.Info("Sandbox results table created/verified")
	return nil
}

// Insert creates a new sandbox result row in the running state.
func (r *SandboxRepository) Insert(ctx context.Context, sr *models.SandboxResult) error {
	if sr.ID == uuid.Nil {
		sr.ID = uuid.New()
	}
	sr.CreatedAt = time.Now()
	checksJSON, err := json.Marshal(sr.Checks)
	if err != nil {
		return fmt.Errorf("failed to marshal sandbox checks: %w", err)
	}
	query := `
		INSERT INTO sandbox_results (id, participant_id, run_id, status, checks, completed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.pool.Exec(ctx, query, sr.ID, sr.ParticipantID, sr.RunID, sr.Status, checksJSON, sr.CompletedAt, sr.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert sandbox result: %w", err)
	}
	return nil
}

// AttachRun links a sandbox result to the synthetic run backing it.
func (r *SandboxRepository) AttachRun(ctx context.Context, id, runID uuid.UUID) error {
	query := `UPDATE sandbox_results SET run_id = $1 WHERE id = $2`
	_, err := r.pool.Exec(ctx, query, runID, id)
	if err != nil {
		return fmt.Errorf("failed to attach run to sandbox result: %w", err)
	}
	return nil
}

// Finalize writes the final check list and status for a sandbox result.
func (r *SandboxRepository) Finalize(ctx context.Context, id uuid.UUID, status models.SandboxStatus, checks []models.SandboxCheck) error {
	checksJSON, err := json.Marshal(checks)
	if err != nil {
		return fmt.Errorf("failed to marshal sandbox checks: %w", err)
	}
	now := time.Now()
	query := `UPDATE sandbox_results SET status = $1, checks = $2, completed_at = $3 WHERE id = $4`
	_, err = r.pool.Exec(ctx, query, status, checksJSON, now, id)
	if err != nil {
		return fmt.Errorf("failed to finalize sandbox result: %w", err)
	}
	return nil
}

// GetByID retrieves a sandbox result by ID.
func (r *SandboxRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SandboxResult, error) {
	query := `
		SELECT id, participant_id, run_id, status, checks, completed_at, created_at
		FROM sandbox_results WHERE id = $1
	`
	return r.scanRow(r.pool.QueryRow(ctx, query, id))
}

func (r *SandboxRepository) scanRow(row pgx.Row) (*models.SandboxResult, error) {
	var sr models.SandboxResult
	var checksJSON []byte
	err := row.Scan(&sr.ID, &sr.ParticipantID, &sr.RunID, &sr.Status, &checksJSON, &sr.CompletedAt, &sr.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan sandbox result row: %w", err)
	}
	if len(checksJSON) > 0 {
		if err := json.Unmarshal(checksJSON, &sr.Checks); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sandbox checks: %w", err)
		}
	}
	return &sr, nil
}
