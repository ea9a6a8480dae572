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

// FactcheckRepository manages fact-check request and result storage.
type FactcheckRepository struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewFactcheckRepository creates a new fact-check repository.
func NewFactcheckRepository(pool *pgxpool.Pool, log *logrus.Logger) *FactcheckRepository {
	if log == nil {
		log = logrus.New()
	}
	return &FactcheckRepository{pool: pool, log: log}
}

// CreateTable creates the factcheck_requests and factcheck_results tables.
func (r *FactcheckRepository) CreateTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS factcheck_requests (
			id UUID PRIMARY KEY,
			run_id UUID,
			topic_id UUID,
			turn_id UUID,
			comment_id UUID,
			claim_hash VARCHAR(64) NOT NULL,
			dedup_count INT NOT NULL DEFAULT 1,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_factcheck_requests_run_claim
			ON factcheck_requests(run_id, claim_hash) WHERE run_id IS NOT NULL;
		CREATE UNIQUE INDEX IF NOT EXISTS idx_factcheck_requests_topic_claim
			ON factcheck_requests(topic_id, claim_hash) WHERE topic_id IS NOT NULL;
		CREATE INDEX IF NOT EXISTS idx_factcheck_requests_status ON factcheck_requests(status);

		CREATE TABLE IF NOT EXISTS factcheck_results (
			id UUID PRIMARY KEY,
			request_id UUID NOT NULL UNIQUE REFERENCES factcheck_requests(id),
			verdict VARCHAR(30) NOT NULL,
			citation_url TEXT,
			citation_accessible BOOLEAN,
			content_match BOOLEAN,
			logic_valid BOOLEAN,
			details JSONB,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
	`
	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create factcheck tables: %w", err)
	}
	r.log.Info("Factcheck tables created/verified")
	return nil
}

// InsertRequestDedup inserts a fact-check request for a run-scoped claim,
// or increments the dedup counter on the existing row if one with the same
// (run_id, claim_hash) already exists. Returns the request and whether a
// new row was created.
func (r *FactcheckRepository) InsertRequestDedup(ctx context.Context, req *models.FactcheckRequest) (*models.FactcheckRequest, bool, error) {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	req.CreatedAt = time.Now()
	req.Status = models.FactcheckPending

	conflictTarget := "(run_id, claim_hash) WHERE run_id IS NOT NULL"
	if req.RunID == nil {
		conflictTarget = "(topic_id, claim_hash) WHERE topic_id IS NOT NULL"
	}

	query := fmt.Sprintf(`
		INSERT INTO factcheck_requests (id, run_id, topic_id, turn_id, comment_id, claim_hash, dedup_count, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $8)
		ON CONFLICT %s DO UPDATE SET dedup_count = factcheck_requests.dedup_count + 1
		RETURNING id, run_id, topic_id, turn_id, comment_id, claim_hash, status, created_at, (xmax = 0) AS inserted
	`, conflictTarget)

	var out models.FactcheckRequest
	var inserted bool
	err := r.pool.QueryRow(ctx, query,
		req.ID, req.RunID, req.TopicID, req.TurnID, req.CommentID, req.ClaimHash, req.Status, req.CreatedAt,
	).Scan(&out.ID, &out.RunID, &out.TopicID, &out.TurnID, &out.CommentID, &out.ClaimHash, &out.Status, &out.CreatedAt, &inserted)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert factcheck request: %w", err)
	}
	return &out, inserted, nil
}

// CountByRun returns the number of fact-check requests already created for
// a run, used to enforce the per-run fact-check quota.
func (r *FactcheckRepository) CountByRun(ctx context.Context, runID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM factcheck_requests WHERE run_id = $1`, runID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count factcheck requests for run: %w", err)
	}
	return count, nil
}

// CountByTopic returns the number of fact-check requests already created
// for a topic, used to enforce the per-topic fact-check quota.
func (r *FactcheckRepository) CountByTopic(ctx context.Context, topicID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM factcheck_requests WHERE topic_id = $1`, topicID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count factcheck requests for topic: %w", err)
	}
	return count, nil
}

// GetByID retrieves a fact-check request by ID.
func (r *FactcheckRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.FactcheckRequest, error) {
	query := `
		SELECT id, run_id, topic_id, turn_id, comment_id, claim_hash, status, created_at
		FROM factcheck_requests WHERE id = $1
	`
	return r.scanRow(r.pool.QueryRow(ctx, query, id))
}

// UpdateStatus transitions a fact-check request's status.
func (r *FactcheckRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.FactcheckRequestStatus) error {
	query := `UPDATE factcheck_requests SET status = $1 WHERE id = $2`
	_, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update factcheck request status: %w", err)
	}
	return nil
}

// ListPendingOrProcessing lists requests to recover into the worker queue
// on startup: any request that was left pending or mid-processing by a
// previous crash.
func (r *FactcheckRepository) ListPendingOrProcessing(ctx context.Context) ([]*models.FactcheckRequest, error) {
	query := `
		SELECT id, run_id, topic_id, turn_id, comment_id, claim_hash, status, created_at
		FROM factcheck_requests WHERE status IN ('pending', 'processing')
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending factcheck requests: %w", err)
	}
	defer rows.Close()

	var out []*models.FactcheckRequest
	for rows.Next() {
		req, err := r.scanFromRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating factcheck request rows: %w", err)
	}
	return out, nil
}

// InsertResult stores the referee's verdict for a request.
func (r *FactcheckRepository) InsertResult(ctx context.Context, res *models.FactcheckResult) error {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	res.CreatedAt = time.Now()

	detailsJSON, err := json.Marshal(res.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal factcheck result details: %w", err)
	}

	query := `
		INSERT INTO factcheck_results (id, request_id, verdict, citation_url, citation_accessible, content_match, logic_valid, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.pool.Exec(ctx, query, res.ID, res.RequestID, res.Verdict, res.CitationURL, res.CitationAccessible, res.ContentMatch, res.LogicValid, detailsJSON, res.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert factcheck result: %w", err)
	}
	r.log.WithFields(logrus.Fields{"request_id": res.RequestID, "verdict": res.Verdict}).Info("Factcheck completed")
	return nil
}

func (r *FactcheckRepository) scanRow(row pgx.Row) (*models.FactcheckRequest, error) {
	var req models.FactcheckRequest
	err := row.Scan(&req.ID, &req.RunID, &req.TopicID, &req.TurnID, &req.CommentID, &req.ClaimHash, &req.Status, &req.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan factcheck request row: %w", err)
	}
	return &req, nil
}

func (r *FactcheckRepository) scanFromRows(rows pgx.Rows) (*models.FactcheckRequest, error) {
	var req models.FactcheckRequest
	err := rows.Scan(&req.ID, &req.RunID, &req.TopicID, &req.TurnID, &req.CommentID, &req.ClaimHash, &req.Status, &req.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan factcheck request row: %w", err)
	}
	return &req, nil
}
