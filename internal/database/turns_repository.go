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

// TurnRepository manages debate turn storage.
type TurnRepository struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewTurnRepository creates a new turn repository.
func NewTurnRepository(pool *pgxpool.Pool, log *logrus.Logger) *TurnRepository {
	if log == nil {
		log = logrus.New()
	}
	return &TurnRepository{pool: pool, log: log}
}

// CreateTable creates the turns table if it doesn't exist.
func (r *TurnRepository) CreateTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS turns (
			id UUID PRIMARY KEY,
			run_id UUID NOT NULL REFERENCES runs(id),
			participant_id UUID NOT NULL REFERENCES participants(id),
			turn_number INT NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			stance VARCHAR(10),
			claim TEXT NOT NULL DEFAULT '',
			argument TEXT NOT NULL DEFAULT '',
			citations JSONB NOT NULL DEFAULT '[]',
			token_count INT NOT NULL DEFAULT 0,
			rebuttal_target_id UUID,
			submitted_at TIMESTAMP WITH TIME ZONE,
			validated_at TIMESTAMP WITH TIME ZONE
		);

		CREATE INDEX IF NOT EXISTS idx_turns_run_id ON turns(run_id);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_turns_run_turn_number ON turns(run_id, turn_number);
	`
	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create turns table: %w", err)
	}
	r.log.Info("Turns table created/verified")
	return nil
}

// InsertPending creates a pending turn slot before dispatch.
func (r *TurnRepository) InsertPending(ctx context.Context, runID, participantID uuid.UUID, turnNumber int) (uuid.UUID, error) {
	id := uuid.New()
	query := `
		INSERT INTO turns (id, run_id, participant_id, turn_number, status, citations)
		VALUES ($1, $2, $3, $4, 'pending', '[]')
	`
	_, err := r.pool.Exec(ctx, query, id, runID, participantID, turnNumber)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert pending turn: %w", err)
	}
	return id, nil
}

// SaveValidated writes a successfully generated and validated turn.
func (r *TurnRepository) SaveValidated(ctx context.Context, id uuid.UUID, stance *string, claim, argument string, citations []models.Citation, tokenCount int, rebuttalTarget *uuid.UUID) error {
	citationsJSON, err := json.Marshal(citations)
	if err != nil {
		return fmt.Errorf("failed to marshal citations: %w", err)
	}
	now := time.Now()
	query := `
		UPDATE turns
		SET status = 'validated', stance = $1, claim = $2, argument = $3, citations = $4,
			token_count = $5, rebuttal_target_id = $6, submitted_at = $7, validated_at = $7
		WHERE id = $8
	`
	_, err = r.pool.Exec(ctx, query, stance, claim, argument, citationsJSON, tokenCount, rebuttalTarget, now, id)
	if err != nil {
		return fmt.Errorf("failed to save validated turn: %w", err)
	}
	return nil
}

// MarkTimeout writes a turn's timeout-marker content, per the Debate
// Orchestrator's turn timeout handling.
func (r *TurnRepository) MarkTimeout(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE turns
		SET status = 'timeout', claim = $1, argument = $2, citations = '[]'
		WHERE id = $3
	`
	_, err := r.pool.Exec(ctx, query, "[Agent timed out for this turn]", "[No response received within the time limit]", id)
	if err != nil {
		return fmt.Errorf("failed to mark turn timeout: %w", err)
	}
	return nil
}

// MarkFormatError writes a turn's error-marker content, per the Debate
// Orchestrator's turn error handling.
func (r *TurnRepository) MarkFormatError(ctx context.Context, id uuid.UUID, errMsg string) error {
	if len(errMsg) > 200 {
		errMsg = errMsg[:200]
	}
	argument := fmt.Sprintf("[Agent encountered a technical error: %s]", errMsg)
	if errMsg == "" {
		argument = "[Agent encountered a technical error]"
	}
	query := `
		UPDATE turns
		SET status = 'format_error', claim = $1, argument = $2, citations = '[]', rebuttal_target_id = NULL
		WHERE id = $3
	`
	_, err := r.pool.Exec(ctx, query, "[Technical error occurred]", argument, id)
	if err != nil {
		return fmt.Errorf("failed to mark turn format_error: %w", err)
	}
	return nil
}

// GetByID retrieves a turn by ID.
func (r *TurnRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Turn, error) {
	query := `
		SELECT id, run_id, participant_id, turn_number, status, stance, claim, argument,
			   citations, token_count, rebuttal_target_id, submitted_at, validated_at
		FROM turns WHERE id = $1
	`
	return r.scanRow(r.pool.QueryRow(ctx, query, id))
}

// ListByRun lists all turns for a run ordered by turn_number, for use as
// the "previous turns" context fed back into the Gateway.
func (r *TurnRepository) ListByRun(ctx context.Context, runID uuid.UUID) ([]*models.Turn, error) {
	query := `
		SELECT id, run_id, participant_id, turn_number, status, stance, claim, argument,
			   citations, token_count, rebuttal_target_id, submitted_at, validated_at
		FROM turns WHERE run_id = $1 ORDER BY turn_number ASC
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns by run: %w", err)
	}
	defer rows.Close()
	return r.scanRows(rows)
}

func (r *TurnRepository) scanRow(row pgx.Row) (*models.Turn, error) {
	var t models.Turn
	var citationsJSON []byte
	err := row.Scan(
		&t.ID, &t.RunID, &t.ParticipantID, &t.TurnNumber, &t.Status, &t.Stance, &t.Claim, &t.Argument,
		&citationsJSON, &t.TokenCount, &t.RebuttalTargetID, &t.SubmittedAt, &t.ValidatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan turn row: %w", err)
	}
	if len(citationsJSON) > 0 {
		if err := json.Unmarshal(citationsJSON, &t.Citations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal turn citations: %w", err)
		}
	}
	return &t, nil
}

func (r *TurnRepository) scanRows(rows pgx.Rows) ([]*models.Turn, error) {
	var out []*models.Turn
	for rows.Next() {
		var t models.Turn
		var citationsJSON []byte
		err := rows.Scan(
			&t.ID, &t.RunID, &t.ParticipantID, &t.TurnNumber, &t.Status, &t.Stance, &t.Claim, &t.Argument,
			&citationsJSON, &t.TokenCount, &t.RebuttalTargetID, &t.SubmittedAt, &t.ValidatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan turn row: %w", err)
		}
		if len(citationsJSON) > 0 {
			if err := json.Unmarshal(citationsJSON, &t.Citations); err != nil {
				return nil, fmt.Errorf("failed to unmarshal turn citations: %w", err)
			}
		}
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating turn rows: %w", err)
	}
	return out, nil
}
