package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// externalTurnTimeout bounds a single HTTP call to a developer-hosted
// participant endpoint.
const externalTurnTimeout = 120 * time.Second

// External is the Gateway implementation backed by a developer-hosted HTTP
// endpoint, called via POST with a JSON payload and expected to respond
// with a JSON turn payload within externalTurnTimeout.
type External struct {
	EndpointURL string
	HTTPClient  *http.Client
}

// NewExternal constructs an External gateway targeting endpointURL.
func NewExternal(endpointURL string) *External {
	return &External{
		EndpointURL: endpointURL,
		HTTPClient:  &http.Client{Timeout: externalTurnTimeout},
	}
}

type externalTurnRequestPayload struct {
	Topic           string                   `json:"topic"`
	Side            string                   `json:"side"`
	TurnNumber      int                      `json:"turn_number"`
	PreviousTurns   []externalPreviousTurn   `json:"previous_turns"`
	TimeoutSeconds  int                      `json:"timeout_seconds"`
}

type externalPreviousTurn struct {
	TurnNumber int    `json:"turn_number"`
	Side       string `json:"side"`
	Claim      string `json:"claim"`
	Argument   string `json:"argument"`
}

type externalTurnResponsePayload struct {
	Stance         string            `json:"stance"`
	Claim          string            `json:"claim"`
	Argument       string            `json:"argument"`
	Citations      []citationJSON    `json:"citations"`
	RebuttalTarget *string           `json:"rebuttal_target"`
}

// GenerateTurn POSTs the turn request to the participant's /turn endpoint
// and validates the required response fields are present.
func (e *External) GenerateTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	payload := externalTurnRequestPayload{
		Topic:          req.Topic,
		Side:           req.Side,
		TurnNumber:     req.TurnNumber,
		TimeoutSeconds: 120,
	}
	for _, t := range req.PreviousTurns {
		payload.PreviousTurns = append(payload.PreviousTurns, externalPreviousTurn{
			TurnNumber: t.TurnNumber, Side: t.Stance, Claim: t.Claim, Argument: t.Argument,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal external turn request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.EndpointURL+"/turn", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build external turn request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("external agent request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode != http.StatusOK {
		return nil, &VendorError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var parsed externalTurnResponsePayload
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &FormatError{Reason: "response is not valid JSON"}
	}
	if parsed.Stance == "" || parsed.Claim == "" || parsed.Argument == "" || parsed.Citations == nil {
		return nil, &FormatError{Reason: "missing required fields"}
	}

	result := &TurnResult{Stance: parsed.Stance, Claim: parsed.Claim, Argument: parsed.Argument}
	if parsed.RebuttalTarget != nil {
		result.RebuttalTarget = *parsed.RebuttalTarget
	}
	for _, c := range parsed.Citations {
		result.Citations = append(result.Citations, c.toModel())
	}
	truncated, count := truncateArgument(result.Argument)
	result.Argument = truncated
	result.TokenCount = count
	return result, nil
}

// GenerateComment is not supported by external participants in this
// implementation, matching the reference agent, which never overrides the
// base class's unimplemented comment generation for external agents.
func (e *External) GenerateComment(ctx context.Context, req CommentRequest) (*CommentResult, error) {
	return nil, fmt.Errorf("external participants do not support comment generation")
}
