// Package orchestrator drives the turn-by-turn Debate run loop and the
// polling-cycle Topic discussion loop: dispatching participants through a
// Gateway, filtering content, persisting results, and publishing live
// events.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"agoracore/internal/contentfilter"
	"agoracore/internal/database"
	"agoracore/internal/eventbus"
	"agoracore/internal/factcheck"
	"agoracore/internal/gateway"
	"agoracore/internal/models"
)

// maxConcurrentDebatesPerParticipant caps how many other in_progress debates
// an external participant may be a member of before new turns for it are
// refused rather than queued against an already-saturated endpoint.
const maxConcurrentDebatesPerParticipant = 3

// GatewayFactory resolves the Gateway implementation for a participant:
// Builtin for built-in participants, External for developer-hosted ones.
type GatewayFactory interface {
	For(participant *models.Participant) gateway.Gateway
}

// DebateOrchestrator runs a single Run to completion: dispatching each
// turn round-robin across its Participations, applying timeouts, content
// filtering, and auto-fact-check dispatch.
type DebateOrchestrator struct {
	Runs         *database.RunRepository
	Turns        *database.TurnRepository
	Participants *database.ParticipantRepository
	Factchecks   *database.FactcheckRepository
	Worker       *factcheck.Worker
	Filter       *contentfilter.Filter
	Bus          *eventbus.Bus
	Gateways     GatewayFactory
	MaxFactcheck int
	Log          *logrus.Logger
}

// Run drives a run from pending through completion or failure. Errors are
// swallowed after marking the run failed: Run is meant to be launched in
// its own goroutine.
func (o *DebateOrchestrator) Run(ctx context.Context, runID uuid.UUID) {
	if err := o.runLoop(ctx, runID); err != nil {
		o.Log.WithError(err).WithField("run_id", runID).Error("Debate run failed")
		if failErr := o.Runs.Fail(ctx, runID); failErr != nil {
			o.Log.WithError(failErr).WithField("run_id", runID).Error("Failed to mark run failed")
		}
	}
}

func (o *DebateOrchestrator) runLoop(ctx context.Context, runID uuid.UUID) error {
	if err := o.start(ctx, runID); err != nil {
		return err
	}

	run, err := o.Runs.GetByID(ctx, runID)
	if err != nil {
		return err
	}
	participations, err := o.Runs.ListParticipations(ctx, runID)
	if err != nil {
		return err
	}
	if len(participations) == 0 {
		return errors.New("run has no participations")
	}

	for turnNumber := 1; turnNumber <= run.MaxTurns; turnNumber++ {
		slot := participations[(turnNumber-1)%len(participations)]
		if err := o.dispatchTurn(ctx, run, slot, turnNumber); err != nil {
			return err
		}
		if err := o.Runs.UpdateCurrentTurn(ctx, runID, turnNumber); err != nil {
			return err
		}

		if turnNumber < run.MaxTurns {
			if run.Mode == models.RunModeLive {
				o.Bus.Publish(runID, eventbus.EventCooldownStart, map[string]any{
					"seconds":   run.TurnCooldownSeconds,
					"next_turn": turnNumber + 1,
				})
			}
			select {
			case <-time.After(time.Duration(run.TurnCooldownSeconds) * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if err := o.Runs.Complete(ctx, runID); err != nil {
		return err
	}
	o.Bus.Publish(runID, eventbus.EventDebateComplete, map[string]any{"run_id": runID})
	return nil
}

// start acquires a row lock on the run and transitions it from pending to
// in_progress, guarding against two callers starting the same run.
func (o *DebateOrchestrator) start(ctx context.Context, runID uuid.UUID) error {
	tx, err := o.Runs.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := o.Runs.LockForStart(ctx, tx, runID); err != nil {
		return err
	}
	if err := o.Runs.MarkInProgress(ctx, tx, runID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (o *DebateOrchestrator) dispatchTurn(ctx context.Context, run *models.Run, slot *models.Participation, turnNumber int) error {
	participant, err := o.Participants.GetByID(ctx, slot.ParticipantID)
	if err != nil {
		return err
	}

	turnID, err := o.Turns.InsertPending(ctx, run.ID, participant.ID, turnNumber)
	if err != nil {
		return err
	}
	if run.Mode == models.RunModeLive {
		o.Bus.Publish(run.ID, eventbus.EventTurnStart, map[string]any{"turn_id": turnID, "turn_number": turnNumber})
	}

	if participant.Kind == models.ParticipantExternal {
		concurrent, err := o.Runs.CountInProgressByParticipant(ctx, participant.ID, run.ID)
		if err != nil {
			return err
		}
		if concurrent >= maxConcurrentDebatesPerParticipant {
			o.Log.WithField("participant_id", participant.ID).Warn("Concurrent debate limit exceeded")
			return o.Turns.MarkFormatError(ctx, turnID, "concurrent debate limit exceeded")
		}
	}

	previousTurns, err := o.loadPreviousTurns(ctx, run.ID)
	if err != nil {
		return err
	}

	gw := o.Gateways.For(participant)
	turnCtx, cancel := context.WithTimeout(ctx, time.Duration(run.TurnTimeoutSeconds)*time.Second)
	result, genErr := gw.GenerateTurn(turnCtx, gateway.TurnRequest{
		Topic:         run.Topic,
		Side:          string(slot.Side),
		PreviousTurns: previousTurns,
		TurnNumber:    turnNumber,
	})
	cancel()

	switch {
	case errors.Is(genErr, context.DeadlineExceeded):
		o.Log.WithField("turn_id", turnID).Warn("Turn timed out")
		err = o.Turns.MarkTimeout(ctx, turnID)
	case genErr != nil:
		o.Log.WithError(genErr).WithField("turn_id", turnID).Error("Turn generation failed")
		err = o.Turns.MarkFormatError(ctx, turnID, genErr.Error())
	default:
		err = o.saveTurnResult(ctx, run, turnID, result)
	}
	if err != nil {
		return err
	}

	if run.Mode == models.RunModeLive {
		o.Bus.Publish(run.ID, eventbus.EventTurnComplete, map[string]any{"turn_id": turnID, "turn_number": turnNumber})
	}
	return nil
}

func (o *DebateOrchestrator) saveTurnResult(ctx context.Context, run *models.Run, turnID uuid.UUID, result *gateway.TurnResult) error {
	if safe, reason := o.Filter.Check(result.Argument); !safe {
		return o.Turns.MarkFormatError(ctx, turnID, "content policy violation: "+reason)
	}

	rebuttalTarget := sanitizeRebuttalTarget(result.RebuttalTarget)
	stance := result.Stance
	if err := o.Turns.SaveValidated(ctx, turnID, &stance, result.Claim, result.Argument, result.Citations, result.TokenCount, rebuttalTarget); err != nil {
		return err
	}

	if len(result.Citations) > 0 {
		o.maybeAutoFactcheck(ctx, run.ID, turnID, result.Claim)
	}
	return nil
}

func (o *DebateOrchestrator) maybeAutoFactcheck(ctx context.Context, runID, turnID uuid.UUID, claim string) {
	count, err := o.Factchecks.CountByRun(ctx, runID)
	if err != nil {
		o.Log.WithError(err).Warn("Failed to count factcheck requests for run")
		return
	}
	if count >= o.MaxFactcheck {
		return
	}

	req, created, err := o.Factchecks.InsertRequestDedup(ctx, &models.FactcheckRequest{
		RunID:     &runID,
		TurnID:    &turnID,
		ClaimHash: factcheck.ClaimHash(claim),
	})
	if err != nil {
		o.Log.WithError(err).Warn("Failed to enqueue auto-factcheck")
		return
	}
	if !created {
		return
	}
	if err := o.Worker.Enqueue(ctx, req.ID); err != nil {
		o.Log.WithError(err).Warn("Failed to submit factcheck to worker queue")
	}
}

func (o *DebateOrchestrator) loadPreviousTurns(ctx context.Context, runID uuid.UUID) ([]gateway.PreviousTurn, error) {
	turns, err := o.Turns.ListByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	out := make([]gateway.PreviousTurn, 0, len(turns))
	for _, t := range turns {
		if t.Status != models.TurnStatusValidated {
			continue
		}
		stance := ""
		if t.Stance != nil {
			stance = *t.Stance
		}
		out = append(out, gateway.PreviousTurn{TurnNumber: t.TurnNumber, Stance: stance, Claim: t.Claim, Argument: t.Argument})
	}
	return out, nil
}

// sanitizeRebuttalTarget accepts a participant-supplied rebuttal target only
// if it parses as a UUID and falls within the length range a UUID string
// (with or without hyphens) can take; anything else is silently dropped
// rather than rejecting the whole turn.
func sanitizeRebuttalTarget(raw string) *uuid.UUID {
	if len(raw) < 32 || len(raw) > 36 {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}
