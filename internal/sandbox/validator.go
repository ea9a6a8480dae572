// Package sandbox runs a fixed synthetic debate against a newly registered
// external participant and scores it against a handful of named checks
// before promoting it to active.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"agoracore/internal/database"
	"agoracore/internal/gateway"
	"agoracore/internal/models"
)

const (
	sandboxTopic             = "AI 규제가 필요한가?"
	sandboxMaxTurns          = 6
	connectivityTimeout      = 10 * time.Second
	sandboxTurnTimeout       = 120 * time.Second
	sandboxTokenLimit        = 500
	builtinParticipantName   = "Claude Pro"
)

// Validator drives a sandbox Run for one external participant and records
// the outcome as a SandboxResult, activating or failing the participant.
type Validator struct {
	Participants *database.ParticipantRepository
	Runs         *database.RunRepository
	Turns        *database.TurnRepository
	Results      *database.SandboxRepository
	Gateways     GatewayFactory
	HTTPClient   *http.Client
	Log          *logrus.Logger
}

// GatewayFactory resolves the Gateway implementation for a participant.
type GatewayFactory interface {
	For(participant *models.Participant) gateway.Gateway
}

// NewValidator constructs a Validator with a default 10s-capable HTTP client
// for connectivity checks.
func NewValidator(participants *database.ParticipantRepository, runs *database.RunRepository, turns *database.TurnRepository, results *database.SandboxRepository, gateways GatewayFactory, log *logrus.Logger) *Validator {
	if log == nil {
		log = logrus.New()
	}
	return &Validator{
		Participants: participants,
		Runs:         runs,
		Turns:        turns,
		Results:      results,
		Gateways:     gateways,
		HTTPClient:   &http.Client{Timeout: connectivityTimeout},
		Log:          log,
	}
}

type turnOutcome struct {
	result  *gateway.TurnResult
	timeout bool
	errMsg  string
}

// Validate runs the full sandbox flow for participantID: connectivity check,
// then (if reachable) a synthetic 6-turn debate against a builtin
// participant, evaluated into named checks, then finalized.
func (v *Validator) Validate(ctx context.Context, participantID uuid.UUID) error {
	participant, err := v.Participants.GetByID(ctx, participantID)
	if err != nil {
		return fmt.Errorf("failed to load participant: %w", err)
	}
	if participant.EndpointURL == nil || *participant.EndpointURL == "" {
		sr := &models.SandboxResult{
			ParticipantID: participantID,
			Status:        models.SandboxFailed,
			Checks: []models.SandboxCheck{
				{Check: "connectivity", Passed: false, Detail: "Participant not found or no endpoint"},
			},
		}
		return v.Results.Insert(ctx, sr)
	}

	sr := &models.SandboxResult{ParticipantID: participantID, Status: models.SandboxRunning}
	if err := v.Results.Insert(ctx, sr); err != nil {
		return fmt.Errorf("failed to create sandbox result: %w", err)
	}

	var checks []models.SandboxCheck
	ok, detail := v.checkConnectivity(ctx, *participant.EndpointURL)
	checks = append(checks, models.SandboxCheck{Check: "connectivity", Passed: ok, Detail: detail})
	if !ok {
		return v.finalize(ctx, sr.ID, participantID, checks)
	}

	outcomes, runID, err := v.runSandboxDebate(ctx, participant)
	if err != nil {
		checks = append(checks, models.SandboxCheck{Check: "connectivity", Passed: false, Detail: truncate(err.Error(), 200)})
		return v.finalize(ctx, sr.ID, participantID, checks)
	}
	if err := v.Results.AttachRun(ctx, sr.ID, runID); err != nil {
		v.Log.WithError(err).Warn("Failed to attach run to sandbox result")
	}

	checks = append(checks, evaluateTurns(outcomes)...)
	return v.finalize(ctx, sr.ID, participantID, checks)
}

// checkConnectivity mirrors the reference implementation's GET /health probe
// with its exact detail strings.
func (v *Validator) checkConnectivity(ctx context.Context, endpointURL string) (bool, string) {
	reqCtx, cancel := context.WithTimeout(ctx, connectivityTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpointURL+"/health", nil)
	if err != nil {
		return false, fmt.Sprintf("Connectivity error: %s", truncate(err.Error(), 150))
	}
	resp, err := v.HTTPClient.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return false, "Health check timed out (10s)"
		}
		return false, fmt.Sprintf("Connection failed: %s", truncate(err.Error(), 150))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return true, "Endpoint reachable"
	}
	return false, fmt.Sprintf("Health check returned status %d", resp.StatusCode)
}

// runSandboxDebate runs a 1v1 sandbox Run: a builtin "Claude Pro" participant
// on pro, the candidate external participant on con, 6 turns round-robin.
func (v *Validator) runSandboxDebate(ctx context.Context, external *models.Participant) ([]turnOutcome, uuid.UUID, error) {
	builtin, err := v.findBuiltinParticipant(ctx)
	if err != nil {
		return nil, uuid.Nil, err
	}

	run := &models.Run{
		Topic:               sandboxTopic,
		Format:              models.RunFormat1v1,
		Mode:                models.RunModeAsync,
		Status:              models.RunStatusInProgress,
		IsSandbox:           true,
		MaxTurns:            sandboxMaxTurns,
		TurnTimeoutSeconds:  int(sandboxTurnTimeout.Seconds()),
		TurnCooldownSeconds: 0,
	}
	if err := v.Runs.Insert(ctx, run); err != nil {
		return nil, uuid.Nil, fmt.Errorf("failed to create sandbox run: %w", err)
	}
	if err := v.Runs.InsertParticipation(ctx, &models.Participation{RunID: run.ID, ParticipantID: builtin.ID, Side: models.SidePro, TurnOrder: 0}); err != nil {
		return nil, uuid.Nil, err
	}
	if err := v.Runs.InsertParticipation(ctx, &models.Participation{RunID: run.ID, ParticipantID: external.ID, Side: models.SideCon, TurnOrder: 1}); err != nil {
		return nil, uuid.Nil, err
	}

	proGateway := v.Gateways.For(builtin)
	conGateway := v.Gateways.For(external)

	var previousTurns []gateway.PreviousTurn
	var outcomes []turnOutcome

	for turnNumber := 1; turnNumber <= sandboxMaxTurns; turnNumber++ {
		isPro := turnNumber%2 == 1
		side := models.SideCon
		gw := conGateway
		agentID := external.ID
		if isPro {
			side = models.SidePro
			gw = proGateway
			agentID = builtin.ID
		}

		turnID, err := v.Turns.InsertPending(ctx, run.ID, agentID, turnNumber)
		if err != nil {
			return nil, uuid.Nil, err
		}

		turnCtx, cancel := context.WithTimeout(ctx, sandboxTurnTimeout)
		result, genErr := gw.GenerateTurn(turnCtx, gateway.TurnRequest{
			Topic:         sandboxTopic,
			Side:          string(side),
			PreviousTurns: previousTurns,
			TurnNumber:    turnNumber,
		})
		cancel()

		outcome := turnOutcome{}
		switch {
		case errors.Is(genErr, context.DeadlineExceeded):
			outcome.timeout = true
			if err := v.Turns.MarkTimeout(ctx, turnID); err != nil {
				return nil, uuid.Nil, err
			}
			previousTurns = append(previousTurns, gateway.PreviousTurn{TurnNumber: turnNumber, Claim: "[Agent timed out]", Argument: "[No response within time limit]"})
		case genErr != nil:
			outcome.errMsg = truncate(genErr.Error(), 200)
			if err := v.Turns.MarkFormatError(ctx, turnID, genErr.Error()); err != nil {
				return nil, uuid.Nil, err
			}
			previousTurns = append(previousTurns, gateway.PreviousTurn{TurnNumber: turnNumber, Claim: "[Error]", Argument: fmt.Sprintf("[Error: %s]", outcome.errMsg)})
		default:
			outcome.result = result
			stance := result.Stance
			if err := v.Turns.SaveValidated(ctx, turnID, &stance, result.Claim, result.Argument, result.Citations, result.TokenCount, nil); err != nil {
				return nil, uuid.Nil, err
			}
			previousTurns = append(previousTurns, gateway.PreviousTurn{TurnNumber: turnNumber, Stance: result.Stance, Claim: result.Claim, Argument: result.Argument})
		}

		if !isPro {
			outcomes = append(outcomes, outcome)
		}
	}

	if err := v.Runs.Complete(ctx, run.ID); err != nil {
		return nil, uuid.Nil, err
	}
	return outcomes, run.ID, nil
}

func (v *Validator) findBuiltinParticipant(ctx context.Context) (*models.Participant, error) {
	active, err := v.Participants.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	var fallback *models.Participant
	for _, p := range active {
		if p.Kind != models.ParticipantBuiltin {
			continue
		}
		if fallback == nil {
			fallback = p
		}
		if p.Name == builtinParticipantName {
			return p, nil
		}
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, errors.New("no builtin participant found for sandbox debate")
}

// evaluateTurns scores the external participant's con-side turns into the
// five named checks the reference sandbox produces.
func evaluateTurns(outcomes []turnOutcome) []models.SandboxCheck {
	jsonOK := len(outcomes) > 0
	for _, o := range outcomes {
		if o.result == nil || o.errMsg != "" {
			jsonOK = false
			break
		}
	}
	jsonDetail := "All turns returned valid JSON"
	if !jsonOK {
		jsonDetail = "One or more turns failed to return valid JSON"
	}

	timeoutOK := true
	for _, o := range outcomes {
		if o.timeout {
			timeoutOK = false
			break
		}
	}
	timeoutDetail := "All turns responded within timeout"
	if !timeoutOK {
		timeoutDetail = "One or more turns timed out"
	}

	tokenOK := true
	for _, o := range outcomes {
		if o.result != nil && o.result.TokenCount > sandboxTokenLimit {
			tokenOK = false
			break
		}
	}
	tokenDetail := "All turns within 500 token limit"
	if !tokenOK {
		tokenDetail = "One or more turns exceeded 500 token limit"
	}

	hasValid := false
	for _, o := range outcomes {
		if o.result != nil {
			hasValid = true
			break
		}
	}
	citationOK := hasValid
	for _, o := range outcomes {
		if o.result != nil && len(o.result.Citations) < 1 {
			citationOK = false
			break
		}
	}
	citationDetail := "All turns include citations"
	if !citationOK {
		citationDetail = "One or more turns missing citations"
	}

	stanceOK := hasValid
	for _, o := range outcomes {
		if o.result != nil && o.result.Stance != string(models.SideCon) {
			stanceOK = false
			break
		}
	}
	stanceDetail := "Consistent con stance maintained"
	if !stanceOK {
		stanceDetail = "Stance inconsistency detected"
	}

	return []models.SandboxCheck{
		{Check: "json_format", Passed: jsonOK, Detail: jsonDetail},
		{Check: "timeout", Passed: timeoutOK, Detail: timeoutDetail},
		{Check: "token_limit", Passed: tokenOK, Detail: tokenDetail},
		{Check: "citation", Passed: citationOK, Detail: citationDetail},
		{Check: "stance_consistency", Passed: stanceOK, Detail: stanceDetail},
	}
}

func (v *Validator) finalize(ctx context.Context, sandboxResultID, participantID uuid.UUID, checks []models.SandboxCheck) error {
	allPassed := true
	for _, c := range checks {
		if !c.Passed {
			allPassed = false
			break
		}
	}
	status := models.SandboxPassed
	participantStatus := models.ParticipantStatusActive
	if !allPassed {
		status = models.SandboxFailed
		participantStatus = models.ParticipantStatusFailed
	}

	if err := v.Results.Finalize(ctx, sandboxResultID, status, checks); err != nil {
		return fmt.Errorf("failed to finalize sandbox result: %w", err)
	}
	if err := v.Participants.UpdateStatus(ctx, participantID, participantStatus); err != nil {
		return fmt.Errorf("failed to update participant status: %w", err)
	}
	v.Log.WithFields(logrus.Fields{"participant_id": participantID, "status": status}).Info("Sandbox validation completed")
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
