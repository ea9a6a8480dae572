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

// TopicRepository manages discussion topic storage.
type TopicRepository struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewTopicRepository creates a new topic repository.
func NewTopicRepository(pool *pgxpool.Pool, log *logrus.Logger) *TopicRepository {
	if log == nil {
		log = logrus.New()
	}
	return &TopicRepository{pool: pool, log: log}
}

// CreateTable creates the topics and topic_participants tables.
func (r *TopicRepository) CreateTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS topics (
			id UUID PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT,
			status VARCHAR(20) NOT NULL DEFAULT 'open',
			polling_interval_seconds INT NOT NULL,
			closes_at TIMESTAMP WITH TIME ZONE,
			closed_at TIMESTAMP WITH TIME ZONE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS topic_participants (
			id UUID PRIMARY KEY,
			topic_id UUID NOT NULL REFERENCES topics(id),
			participant_id UUID NOT NULL REFERENCES participants(id),
			comment_count INT NOT NULL DEFAULT 0,
			max_comments INT NOT NULL,
			UNIQUE(topic_id, participant_id)
		);

		CREATE INDEX IF NOT EXISTS idx_topics_status ON topics(status);
	`
	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create topics tables: %w", err)
	}
	r.log.Info("Topics tables created/verified")
	return nil
}

// Insert adds a new topic.
func (r *TopicRepository) Insert(ctx context.Context, t *models.Topic) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now()
	query := `
		INSERT INTO topics (id, title, description, status, polling_interval_seconds, closes_at, closed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query, t.ID, t.Title, t.Description, t.Status, t.PollingIntervalSeconds, t.ClosesAt, t.ClosedAt, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert topic: %w", err)
	}
	return nil
}

// GetByID retrieves a topic by ID.
func (r *TopicRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Topic, error) {
	query := `
		SELECT id, title, description, status, polling_interval_seconds, closes_at, closed_at, created_at
		FROM topics WHERE id = $1
	`
	return r.scanRow(r.pool.QueryRow(ctx, query, id))
}

// Close transitions a topic to closed.
func (r *TopicRepository) Close(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	query := `UPDATE topics SET status = 'closed', closed_at = $1 WHERE id = $2 AND status = 'open'`
	_, err := r.pool.Exec(ctx, query, now, id)
	if err != nil {
		return fmt.Errorf("failed to close topic: %w", err)
	}
	return nil
}

// InsertParticipant adds a participant quota slot to a topic.
func (r *TopicRepository) InsertParticipant(ctx context.Context, tp *models.TopicParticipant) error {
	if tp.ID == uuid.Nil {
		tp.ID = uuid.New()
	}
	query := `
		INSERT INTO topic_participants (id, topic_id, participant_id, comment_count, max_comments)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query, tp.ID, tp.TopicID, tp.ParticipantID, tp.CommentCount, tp.MaxComments)
	if err != nil {
		return fmt.Errorf("failed to insert topic participant: %w", err)
	}
	return nil
}

// ListParticipants lists a topic's participant quotas.
func (r *TopicRepository) ListParticipants(ctx context.Context, topicID uuid.UUID) ([]*models.TopicParticipant, error) {
	query := `
		SELECT id, topic_id, participant_id, comment_count, max_comments
		FROM topic_participants WHERE topic_id = $1
	`
	rows, err := r.pool.Query(ctx, query, topicID)
	if err != nil {
		return nil, fmt.Errorf("failed to query topic participants: %w", err)
	}
	defer rows.Close()

	var out []*models.TopicParticipant
	for rows.Next() {
		var tp models.TopicParticipant
		if err := rows.Scan(&tp.ID, &tp.TopicID, &tp.ParticipantID, &tp.CommentCount, &tp.MaxComments); err != nil {
			return nil, fmt.Errorf("failed to scan topic participant row: %w", err)
		}
		out = append(out, &tp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating topic participant rows: %w", err)
	}
	return out, nil
}

// IncrementCommentCount bumps a participant's comment count for a topic.
func (r *TopicRepository) IncrementCommentCount(ctx context.Context, topicID, participantID uuid.UUID) error {
	query := `UPDATE topic_participants SET comment_count = comment_count + 1 WHERE topic_id = $1 AND participant_id = $2`
	_, err := r.pool.Exec(ctx, query, topicID, participantID)
	if err != nil {
		return fmt.Errorf("failed to increment comment count: %w", err)
	}
	return nil
}

func (r *TopicRepository) scanRow(row pgx.Row) (*models.Topic, error) {
	var t models.Topic
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.PollingIntervalSeconds, &t.ClosesAt, &t.ClosedAt, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan topic row: %w", err)
	}
	return &t, nil
}
