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

// ParticipantRepository manages participant storage.
type ParticipantRepository struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewParticipantRepository creates a new participant repository.
func NewParticipantRepository(pool *pgxpool.Pool, log *logrus.Logger) *ParticipantRepository {
	if log == nil {
		log = logrus.New()
	}
	return &ParticipantRepository{pool: pool, log: log}
}

// CreateTable creates the participants table if it doesn't exist.
func (r *ParticipantRepository) CreateTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS participants (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			kind VARCHAR(20) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			endpoint_url TEXT,
			model VARCHAR(255),
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_participants_kind ON participants(kind);
		CREATE INDEX IF NOT EXISTS idx_participants_status ON participants(status);
	`
	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create participants table: %w", err)
	}
	r.log.Info("Participants table created/verified")
	return nil
}

// Insert adds a new participant.
func (r *ParticipantRepository) Insert(ctx context.Context, p *models.Participant) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()

	query := `
		INSERT INTO participants (id, name, kind, status, endpoint_url, model, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query, p.ID, p.Name, p.Kind, p.Status, p.EndpointURL, p.Model, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert participant: %w", err)
	}

	r.log.WithFields(logrus.Fields{"id": p.ID, "name": p.Name, "kind": p.Kind}).Debug("Participant inserted")
	return nil
}

// GetByID retrieves a participant by ID.
func (r *ParticipantRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	query := `
		SELECT id, name, kind, status, endpoint_url, model, created_at
		FROM participants WHERE id = $1
	`
	return r.scanRow(r.pool.QueryRow(ctx, query, id))
}

// UpdateStatus transitions a participant's sandbox-validation status.
func (r *ParticipantRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ParticipantStatus) error {
	query := `UPDATE participants SET status = $1 WHERE id = $2`
	result, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update participant status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("participant not found: %s", id)
	}
	r.log.WithFields(logrus.Fields{"id": id, "status": status}).Debug("Participant status updated")
	return nil
}

// ListActive lists participants eligible to be dispatched to (builtin, or
// external and sandbox-passed).
func (r *ParticipantRepository) ListActive(ctx context.Context) ([]*models.Participant, error) {
	query := `
		SELECT id, name, kind, status, endpoint_url, model, created_at
		FROM participants
		WHERE kind = 'builtin' OR status = 'active'
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active participants: %w", err)
	}
	defer rows.Close()
	return r.scanRows(rows)
}

func (r *ParticipantRepository) scanRow(row pgx.Row) (*models.Participant, error) {
	var p models.Participant
	if err := row.Scan(&p.ID, &p.Name, &p.Kind, &p.Status, &p.EndpointURL, &p.Model, &p.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan participant row: %w", err)
	}
	return &p, nil
}

func (r *ParticipantRepository) scanRows(rows pgx.Rows) ([]*models.Participant, error) {
	var out []*models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ID, &p.Name, &p.Kind, &p.Status, &p.EndpointURL, &p.Model, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant row: %w", err)
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participant rows: %w", err)
	}
	return out, nil
}
