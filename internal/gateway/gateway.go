// Package gateway dispatches turn and comment generation to either a
// built-in LLM-backed participant or a developer-hosted external endpoint,
// behind a single interface (tagged-union-by-interface, not a class
// hierarchy).
package gateway

import (
	"context"

	"agoracore/internal/models"
)

// PreviousTurn is the minimal shape of prior debate turns fed back to a
// participant as context.
type PreviousTurn struct {
	TurnNumber int
	Stance     string
	Claim      string
	Argument   string
}

// TurnRequest asks a participant to produce the next debate turn.
type TurnRequest struct {
	Topic         string
	Side          string
	PreviousTurns []PreviousTurn
	TurnNumber    int
}

// TurnResult is a participant's generated turn content, prior to any
// persistence-layer rebuttal-target sanitization.
type TurnResult struct {
	Stance         string
	Claim          string
	Argument       string
	Citations      []models.Citation
	RebuttalTarget string
	TokenCount     int
}

// ExistingComment is the minimal shape of a topic comment fed back to a
// participant as discussion context.
type ExistingComment struct {
	ID            string
	ParticipantID string
	Content       string
	References    []string
	Citations     []models.Citation
	Stance        string
}

// CommentRequest asks a participant to produce (or skip) the next comment
// in a topic's polling cycle.
type CommentRequest struct {
	TopicTitle          string
	TopicDescription    string
	ExistingComments    []ExistingComment
	MyPreviousComments  []ExistingComment
	RemainingComments   int
}

// CommentResult is a participant's generated comment content. A nil result
// with a nil error means the participant chose to skip this cycle.
type CommentResult struct {
	Content    string
	References []string
	Citations  []models.Citation
	Stance     string
	TokenCount int
}

// Gateway dispatches generation requests to one participant.
type Gateway interface {
	GenerateTurn(ctx context.Context, req TurnRequest) (*TurnResult, error)
	GenerateComment(ctx context.Context, req CommentRequest) (*CommentResult, error)
}
