package factcheck

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"agoracore/internal/database"
	"agoracore/internal/eventbus"
	"agoracore/internal/models"
)

// queueCapacity bounds the in-memory backlog of request ids awaiting
// processing. It is a cache, not a system of record: Recover repopulates it
// from Postgres on startup, so a full channel blocks the enqueuer rather
// than losing work.
const queueCapacity = 256

// Worker is a single long-lived consumer that verifies fact-check requests
// against their citations, one at a time, writing status transitions back
// through the repository so progress survives a restart.
type Worker struct {
	requests *database.FactcheckRepository
	turns    *database.TurnRepository
	comments *database.CommentRepository
	referee  *Referee
	bus      *eventbus.Bus
	log      *logrus.Logger

	queue  chan uuid.UUID
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWorker constructs a Worker. Call Start to begin processing and Recover
// (typically before Start) to re-enqueue work left incomplete by a crash.
func NewWorker(requests *database.FactcheckRepository, turns *database.TurnRepository, comments *database.CommentRepository, referee *Referee, bus *eventbus.Bus, log *logrus.Logger) *Worker {
	if log == nil {
		log = logrus.New()
	}
	return &Worker{
		requests: requests,
		turns:    turns,
		comments: comments,
		referee:  referee,
		bus:      bus,
		log:      log,
		queue:    make(chan uuid.UUID, queueCapacity),
		done:     make(chan struct{}),
	}
}

// Enqueue submits a request id for processing. It blocks only if the
// in-memory queue is saturated.
func (w *Worker) Enqueue(ctx context.Context, requestID uuid.UUID) error {
	select {
	case w.queue <- requestID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recover re-enqueues every request left pending or mid-processing by a
// previous run, so an at-least-once guarantee survives a worker crash.
func (w *Worker) Recover(ctx context.Context) error {
	pending, err := w.requests.ListPendingOrProcessing(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending factcheck requests: %w", err)
	}
	for _, req := range pending {
		w.queue <- req.ID
	}
	if len(pending) > 0 {
		w.log.WithField("count", len(pending)).Info("Recovered pending factcheck requests")
	}
	return nil
}

// Start launches the processing loop in a background goroutine.
func (w *Worker) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	go w.loop(ctx)
}

// Stop cancels the processing loop and waits for it to exit.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	<-w.done
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case requestID := <-w.queue:
			w.process(ctx, requestID)
		}
	}
}

func (w *Worker) process(ctx context.Context, requestID uuid.UUID) {
	req, err := w.requests.GetByID(ctx, requestID)
	if err != nil {
		if err == pgx.ErrNoRows {
			w.log.WithField("request_id", requestID).Warn("Factcheck request not found")
			return
		}
		w.log.WithError(err).WithField("request_id", requestID).Error("Failed to load factcheck request")
		return
	}

	if err := w.requests.UpdateStatus(ctx, req.ID, models.FactcheckProcessing); err != nil {
		w.log.WithError(err).Error("Failed to mark factcheck request processing")
		return
	}

	claim, citations, err := w.loadSubject(ctx, req)
	if err != nil {
		w.log.WithError(err).WithField("request_id", requestID).Warn("Subject not found for factcheck")
		_ = w.requests.UpdateStatus(ctx, req.ID, models.FactcheckFailed)
		return
	}

	var verification Verification
	if len(citations) == 0 {
		verification = Verification{
			Verdict: models.VerdictInconclusive,
			Details: map[string]any{"reason": "No citations to verify"},
		}
	} else {
		func() {
			defer func() {
				if r := recover(); r != nil {
					w.log.WithField("panic", r).Error("Referee verification panicked")
					verification = Verification{Verdict: models.VerdictInconclusive, Details: map[string]any{"reason": "verification failed"}}
				}
			}()
			verification = w.referee.VerifyClaim(ctx, claim, citations)
		}()
	}

	result := &models.FactcheckResult{
		RequestID:          req.ID,
		Verdict:            verification.Verdict,
		CitationAccessible: boolPtr(verification.CitationAccessible),
		ContentMatch:       boolPtr(verification.ContentMatch),
		LogicValid:         boolPtr(verification.LogicValid),
		Details:            verification.Details,
	}
	if verification.CitationURL != "" {
		url := verification.CitationURL
		result.CitationURL = &url
	}

	if err := w.requests.InsertResult(ctx, result); err != nil {
		w.log.WithError(err).Error("Failed to save factcheck result")
		_ = w.requests.UpdateStatus(ctx, req.ID, models.FactcheckFailed)
		return
	}
	if err := w.requests.UpdateStatus(ctx, req.ID, models.FactcheckCompleted); err != nil {
		w.log.WithError(err).Error("Failed to mark factcheck request completed")
		return
	}

	if w.bus != nil {
		runID := uuid.Nil
		if req.RunID != nil {
			runID = *req.RunID
		} else if req.TopicID != nil {
			runID = *req.TopicID
		}
		w.bus.Publish(runID, eventbus.EventFactcheckUpdated, map[string]any{
			"request_id": req.ID,
			"verdict":    verification.Verdict,
		})
	}
}

func (w *Worker) loadSubject(ctx context.Context, req *models.FactcheckRequest) (string, []models.Citation, error) {
	if req.TurnID != nil {
		turn, err := w.turns.GetByID(ctx, *req.TurnID)
		if err != nil {
			return "", nil, err
		}
		return turn.Claim, turn.Citations, nil
	}
	if req.CommentID != nil {
		comment, err := w.comments.GetByID(ctx, *req.CommentID)
		if err != nil {
			return "", nil, err
		}
		return comment.Content, comment.Citations, nil
	}
	return "", nil, fmt.Errorf("factcheck request %s has no turn or comment reference", req.ID)
}

func boolPtr(b bool) *bool { return &b }

// ClaimHash derives the dedup key used by InsertRequestDedup: a sha256 of
// the claim text, matching the reference orchestrator's dedup hash.
func ClaimHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
