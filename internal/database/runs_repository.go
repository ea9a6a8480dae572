package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"agoracore/internal/models"
)

// RunRepository manages debate run storage.
type RunRepository struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewRunRepository creates a new run repository.
func NewRunRepository(pool *pgxpool.Pool, log *logrus.Logger) *RunRepository {
	if log == nil {
		log = logrus.New()
	}
	return &RunRepository{pool: pool, log: log}
}

// CreateTable creates the runs and participations tables if they don't exist.
func (r *RunRepository) CreateTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS runs (
			id UUID PRIMARY KEY,
			topic TEXT NOT NULL,
			format VARCHAR(20) NOT NULL,
			mode VARCHAR(10) NOT NULL DEFAULT 'async',
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			is_sandbox BOOLEAN NOT NULL DEFAULT FALSE,
			max_turns INT NOT NULL,
			current_turn INT NOT NULL DEFAULT 0,
			turn_timeout_seconds INT NOT NULL,
			turn_cooldown_seconds INT NOT NULL,
			started_at TIMESTAMP WITH TIME ZONE,
			completed_at TIMESTAMP WITH TIME ZONE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS participations (
			id UUID PRIMARY KEY,
			run_id UUID NOT NULL REFERENCES runs(id),
			participant_id UUID NOT NULL REFERENCES participants(id),
			side VARCHAR(10) NOT NULL,
			turn_order INT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
		CREATE INDEX IF NOT EXISTS idx_participations_run_id ON participations(run_id);
	`
	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create runs tables: %w", err)
	}
	r.log.Info("Runs tables created/verified")
	return nil
}

// Insert adds a new run.
func (r *RunRepository) Insert(ctx context.Context, run *models.Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	run.CreatedAt = time.Now()
	if run.Mode == "" {
		run.Mode = models.RunModeAsync
	}

	query := `
		INSERT INTO runs (
			id, topic, format, mode, status, is_sandbox, max_turns, current_turn,
			turn_timeout_seconds, turn_cooldown_seconds, started_at, completed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.pool.Exec(ctx, query,
		run.ID, run.Topic, run.Format, run.Mode, run.Status, run.IsSandbox, run.MaxTurns, run.CurrentTurn,
		run.TurnTimeoutSeconds, run.TurnCooldownSeconds, run.StartedAt, run.CompletedAt, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	r.log.WithFields(logrus.Fields{"id": run.ID, "topic": run.Topic}).Debug("Run inserted")
	return nil
}

// GetByID retrieves a run by ID.
func (r *RunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	query := `
		SELECT id, topic, format, mode, status, is_sandbox, max_turns, current_turn,
			   turn_timeout_seconds, turn_cooldown_seconds, started_at, completed_at, created_at
		FROM runs WHERE id = $1
	`
	return r.scanRow(r.pool.QueryRow(ctx, query, id))
}

// LockForStart acquires a row lock on the run and returns it, to be called
// within a transaction guarding the pending-to-in_progress transition so two
// callers can't both start the same run.
func (r *RunRepository) LockForStart(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Run, error) {
	query := `
		SELECT id, topic, format, mode, status, is_sandbox, max_turns, current_turn,
			   turn_timeout_seconds, turn_cooldown_seconds, started_at, completed_at, created_at
		FROM runs WHERE id = $1 FOR UPDATE
	`
	return r.scanRow(tx.QueryRow(ctx, query, id))
}

// BeginTx starts a transaction on the underlying pool.
func (r *RunRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// MarkInProgress transitions a run from pending to in_progress.
func (r *RunRepository) MarkInProgress(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	now := time.Now()
	query := `UPDATE runs SET status = 'in_progress', started_at = $1 WHERE id = $2 AND status = 'pending'`
	result, err := tx.Exec(ctx, query, now, id)
	if err != nil {
		return fmt.Errorf("failed to mark run in_progress: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("run %s is not pending", id)
	}
	return nil
}

// UpdateCurrentTurn advances the run's current_turn counter.
func (r *RunRepository) UpdateCurrentTurn(ctx context.Context, id uuid.UUID, turnNumber int) error {
	query := `UPDATE runs SET current_turn = $1 WHERE id = $2`
	_, err := r.pool.Exec(ctx, query, turnNumber, id)
	if err != nil {
		return fmt.Errorf("failed to update run current_turn: %w", err)
	}
	return nil
}

// Complete marks a run completed.
func (r *RunRepository) Complete(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	query := `UPDATE runs SET status = 'completed', completed_at = $1 WHERE id = $2`
	_, err := r.pool.Exec(ctx, query, now, id)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	r.log.WithFields(logrus.Fields{"id": id}).Debug("Run completed")
	return nil
}

// Fail marks a run failed.
func (r *RunRepository) Fail(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	query := `UPDATE runs SET status = 'failed', completed_at = $1 WHERE id = $2`
	_, err := r.pool.Exec(ctx, query, now, id)
	if err != nil {
		return fmt.Errorf("failed to fail run: %w", err)
	}
	r.log.WithFields(logrus.Fields{"id": id}).Warn("Run marked failed")
	return nil
}

// InsertParticipation adds a participation slot to a run.
func (r *RunRepository) InsertParticipation(ctx context.Context, p *models.Participation) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	query := `
		INSERT INTO participations (id, run_id, participant_id, side, turn_order)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query, p.ID, p.RunID, p.ParticipantID, p.Side, p.TurnOrder)
	if err != nil {
		return fmt.Errorf("failed to insert participation: %w", err)
	}
	return nil
}

// ListParticipations lists a run's participations ordered by turn_order.
func (r *RunRepository) ListParticipations(ctx context.Context, runID uuid.UUID) ([]*models.Participation, error) {
	query := `
		SELECT id, run_id, participant_id, side, turn_order
		FROM participations WHERE run_id = $1 ORDER BY turn_order ASC
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participations: %w", err)
	}
	defer rows.Close()

	var out []*models.Participation
	for rows.Next() {
		var p models.Participation
		if err := rows.Scan(&p.ID, &p.RunID, &p.ParticipantID, &p.Side, &p.TurnOrder); err != nil {
			return nil, fmt.Errorf("failed to scan participation row: %w", err)
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participation rows: %w", err)
	}
	return out, nil
}

func (r *RunRepository) scanRow(row pgx.Row) (*models.Run, error) {
	var run models.Run
	err := row.Scan(
		&run.ID, &run.Topic, &run.Format, &run.Mode, &run.Status, &run.IsSandbox, &run.MaxTurns, &run.CurrentTurn,
		&run.TurnTimeoutSeconds, &run.TurnCooldownSeconds, &run.StartedAt, &run.CompletedAt, &run.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan run row: %w", err)
	}
	return &run, nil
}

// CountInProgressByParticipant counts in-progress runs a participant is a
// member of, excluding excludeRunID, for the external-participant concurrent
// debate limit.
func (r *RunRepository) CountInProgressByParticipant(ctx context.Context, participantID, excludeRunID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM runs r
		JOIN participations p ON p.run_id = r.id
		WHERE p.participant_id = $1 AND r.status = 'in_progress' AND r.id != $2
	`
	var count int
	if err := r.pool.QueryRow(ctx, query, participantID, excludeRunID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count in-progress runs for participant: %w", err)
	}
	return count, nil
}
