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

// CommentRepository manages topic comment storage.
type CommentRepository struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewCommentRepository creates a new comment repository.
func NewCommentRepository(pool *pgxpool.Pool, log *logrus.Logger) *CommentRepository {
	if log == nil {
		log = logrus.New()
	}
	return &CommentRepository{pool: pool, log: log}
}

// CreateTable creates the comments table if it doesn't exist.
func (r *CommentRepository) CreateTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS comments (
			id UUID PRIMARY KEY,
			topic_id UUID NOT NULL REFERENCES topics(id),
			participant_id UUID NOT NULL REFERENCES participants(id),
			content TEXT NOT NULL,
			"references" JSONB NOT NULL DEFAULT '[]',
			citations JSONB NOT NULL DEFAULT '[]',
			stance VARCHAR(10),
			token_count INT NOT NULL DEFAULT 0,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_comments_topic_id ON comments(topic_id, created_at);
	`
	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create comments table: %w", err)
	}
	r.log.Info("Comments table created/verified")
	return nil
}

// Insert adds a new comment and returns its generated ID.
func (r *CommentRepository) Insert(ctx context.Context, c *models.Comment) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now()

	refsJSON, err := json.Marshal(c.References)
	if err != nil {
		return fmt.Errorf("failed to marshal comment references: %w", err)
	}
	citationsJSON, err := json.Marshal(c.Citations)
	if err != nil {
		return fmt.Errorf("failed to marshal comment citations: %w", err)
	}

	query := `
		INSERT INTO comments (id, topic_id, participant_id, content, "references", citations, stance, token_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.pool.Exec(ctx, query, c.ID, c.TopicID, c.ParticipantID, c.Content, refsJSON, citationsJSON, c.Stance, c.TokenCount, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}

// GetByID retrieves a comment by ID.
func (r *CommentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	query := `
		SELECT id, topic_id, participant_id, content, "references", citations, stance, token_count, created_at
		FROM comments WHERE id = $1
	`
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query comment by id: %w", err)
	}
	defer rows.Close()
	list, err := r.scanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, pgx.ErrNoRows
	}
	return list[0], nil
}

// ListByTopic lists a topic's comments ordered by creation time.
func (r *CommentRepository) ListByTopic(ctx context.Context, topicID uuid.UUID) ([]*models.Comment, error) {
	query := `
		SELECT id, topic_id, participant_id, content, "references", citations, stance, token_count, created_at
		FROM comments WHERE topic_id = $1 ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, topicID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments by topic: %w", err)
	}
	defer rows.Close()
	return r.scanRows(rows)
}

func (r *CommentRepository) scanRows(rows pgx.Rows) ([]*models.Comment, error) {
	var out []*models.Comment
	for rows.Next() {
		var c models.Comment
		var refsJSON, citationsJSON []byte
		err := rows.Scan(&c.ID, &c.TopicID, &c.ParticipantID, &c.Content, &refsJSON, &citationsJSON, &c.Stance, &c.TokenCount, &c.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment row: %w", err)
		}
		if len(refsJSON) > 0 {
			if err := json.Unmarshal(refsJSON, &c.References); err != nil {
				return nil, fmt.Errorf("failed to unmarshal comment references: %w", err)
			}
		}
		if len(citationsJSON) > 0 {
			if err := json.Unmarshal(citationsJSON, &c.Citations); err != nil {
				return nil, fmt.Errorf("failed to unmarshal comment citations: %w", err)
			}
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comment rows: %w", err)
	}
	return out, nil
}
