// Package models defines the persisted entities of the Agora debate and
// discussion core: participants, runs, turns, comments, fact-check records
// and sandbox results.
package models

import (
	"time"

	"github.com/google/uuid"
)

// ParticipantKind distinguishes a built-in LLM-backed participant from one
// hosted by a third-party developer behind an HTTPS endpoint.
type ParticipantKind string

const (
	ParticipantBuiltin  ParticipantKind = "builtin"
	ParticipantExternal ParticipantKind = "external"
)

// ParticipantStatus tracks an external participant's sandbox lifecycle.
type ParticipantStatus string

const (
	ParticipantStatusPending ParticipantStatus = "pending"
	ParticipantStatusActive  ParticipantStatus = "active"
	ParticipantStatusFailed  ParticipantStatus = "failed"
)

// Participant is a debate or discussion agent, built-in or developer-hosted.
type Participant struct {
	ID          uuid.UUID         `db:"id" json:"id"`
	Name        string            `db:"name" json:"name"`
	Kind        ParticipantKind   `db:"kind" json:"kind"`
	Status      ParticipantStatus `db:"status" json:"status"`
	EndpointURL *string           `db:"endpoint_url" json:"endpoint_url,omitempty"`
	Model       *string           `db:"model" json:"model,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
}

// RunFormat describes the shape of a debate run.
type RunFormat string

const (
	RunFormat1v1  RunFormat = "1v1"
	RunFormatTeam RunFormat = "team"
)

// RunMode controls whether a Run publishes turn-by-turn live events.
type RunMode string

const (
	RunModeAsync RunMode = "async"
	RunModeLive  RunMode = "live"
)

// RunStatus is the lifecycle state of a debate Run.
type RunStatus string

const (
	RunStatusPending    RunStatus = "pending"
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
)

// Run is a single debate: a topic, a format, and a fixed number of turns
// dispatched round-robin across its Participations.
type Run struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	Topic               string     `db:"topic" json:"topic"`
	Format              RunFormat  `db:"format" json:"format"`
	Mode                RunMode    `db:"mode" json:"mode"`
	Status              RunStatus  `db:"status" json:"status"`
	IsSandbox           bool       `db:"is_sandbox" json:"is_sandbox"`
	MaxTurns            int        `db:"max_turns" json:"max_turns"`
	CurrentTurn         int        `db:"current_turn" json:"current_turn"`
	TurnTimeoutSeconds  int        `db:"turn_timeout_seconds" json:"turn_timeout_seconds"`
	TurnCooldownSeconds int        `db:"turn_cooldown_seconds" json:"turn_cooldown_seconds"`
	StartedAt           *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt         *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
}

// Side is the stance a Participation argues within a Run.
type Side string

const (
	SidePro Side = "pro"
	SideCon Side = "con"
)

// Participation binds a Participant to a Run at a fixed turn-order slot.
type Participation struct {
	ID            uuid.UUID `db:"id" json:"id"`
	RunID         uuid.UUID `db:"run_id" json:"run_id"`
	ParticipantID uuid.UUID `db:"participant_id" json:"participant_id"`
	Side          Side      `db:"side" json:"side"`
	TurnOrder     int       `db:"turn_order" json:"turn_order"`
}

// TurnStatus is the outcome of dispatching a single Turn.
type TurnStatus string

const (
	TurnStatusPending     TurnStatus = "pending"
	TurnStatusValidated   TurnStatus = "validated"
	TurnStatusTimeout     TurnStatus = "timeout"
	TurnStatusFormatError TurnStatus = "format_error"
)

// Citation is a source a participant offers in support of a claim.
type Citation struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Quote string `json:"quote"`
}

// Turn is one dispatched slot of a Run: a claim, an argument and its
// supporting citations, contributed by one Participation.
type Turn struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	RunID             uuid.UUID  `db:"run_id" json:"run_id"`
	ParticipantID     uuid.UUID  `db:"participant_id" json:"participant_id"`
	TurnNumber        int        `db:"turn_number" json:"turn_number"`
	Status            TurnStatus `db:"status" json:"status"`
	Stance            *string    `db:"stance" json:"stance,omitempty"`
	Claim             string     `db:"claim" json:"claim"`
	Argument          string     `db:"argument" json:"argument"`
	Citations         []Citation `db:"citations" json:"citations"`
	TokenCount        int        `db:"token_count" json:"token_count"`
	RebuttalTargetID  *uuid.UUID `db:"rebuttal_target_id" json:"rebuttal_target_id,omitempty"`
	SubmittedAt       *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	ValidatedAt       *time.Time `db:"validated_at" json:"validated_at,omitempty"`
}

// TopicStatus is the lifecycle state of a discussion Topic.
type TopicStatus string

const (
	TopicStatusOpen   TopicStatus = "open"
	TopicStatusClosed TopicStatus = "closed"
)

// Topic is a free-form, polling-driven discussion among participants with
// per-participant comment quotas.
type Topic struct {
	ID                     uuid.UUID   `db:"id" json:"id"`
	Title                  string      `db:"title" json:"title"`
	Description            *string     `db:"description" json:"description,omitempty"`
	Status                 TopicStatus `db:"status" json:"status"`
	PollingIntervalSeconds int         `db:"polling_interval_seconds" json:"polling_interval_seconds"`
	ClosesAt               *time.Time  `db:"closes_at" json:"closes_at,omitempty"`
	ClosedAt               *time.Time  `db:"closed_at" json:"closed_at,omitempty"`
	CreatedAt              time.Time   `db:"created_at" json:"created_at"`
}

// TopicParticipant binds a Participant to a Topic with a comment quota.
type TopicParticipant struct {
	ID            uuid.UUID `db:"id" json:"id"`
	TopicID       uuid.UUID `db:"topic_id" json:"topic_id"`
	ParticipantID uuid.UUID `db:"participant_id" json:"participant_id"`
	CommentCount  int       `db:"comment_count" json:"comment_count"`
	MaxComments   int       `db:"max_comments" json:"max_comments"`
}

// Comment is one contribution a participant makes to a Topic's discussion.
type Comment struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	TopicID       uuid.UUID  `db:"topic_id" json:"topic_id"`
	ParticipantID uuid.UUID  `db:"participant_id" json:"participant_id"`
	Content       string     `db:"content" json:"content"`
	References    []string   `db:"references" json:"references"`
	Citations     []Citation `db:"citations" json:"citations"`
	Stance        *string    `db:"stance" json:"stance,omitempty"`
	TokenCount    int        `db:"token_count" json:"token_count"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// FactcheckRequestStatus tracks a fact-check job through the worker queue.
type FactcheckRequestStatus string

const (
	FactcheckPending    FactcheckRequestStatus = "pending"
	FactcheckProcessing FactcheckRequestStatus = "processing"
	FactcheckCompleted  FactcheckRequestStatus = "completed"
	FactcheckFailed     FactcheckRequestStatus = "failed"
)

// FactcheckRequest is a dedup-keyed job to verify a Turn's or Comment's
// claim against its citations.
type FactcheckRequest struct {
	ID        uuid.UUID              `db:"id" json:"id"`
	RunID     *uuid.UUID             `db:"run_id" json:"run_id,omitempty"`
	TopicID   *uuid.UUID             `db:"topic_id" json:"topic_id,omitempty"`
	TurnID    *uuid.UUID             `db:"turn_id" json:"turn_id,omitempty"`
	CommentID *uuid.UUID             `db:"comment_id" json:"comment_id,omitempty"`
	ClaimHash string                 `db:"claim_hash" json:"claim_hash"`
	Status    FactcheckRequestStatus `db:"status" json:"status"`
	CreatedAt time.Time              `db:"created_at" json:"created_at"`
}

// FactcheckVerdict is the referee's conclusion for a FactcheckRequest.
type FactcheckVerdict string

const (
	VerdictVerified           FactcheckVerdict = "verified"
	VerdictSourceInaccessible FactcheckVerdict = "source_inaccessible"
	VerdictSourceMismatch     FactcheckVerdict = "source_mismatch"
	VerdictInconclusive       FactcheckVerdict = "inconclusive"
)

// FactcheckResult is the outcome a referee recorded for a FactcheckRequest.
type FactcheckResult struct {
	ID                 uuid.UUID        `db:"id" json:"id"`
	RequestID          uuid.UUID        `db:"request_id" json:"request_id"`
	Verdict            FactcheckVerdict `db:"verdict" json:"verdict"`
	CitationURL        *string          `db:"citation_url" json:"citation_url,omitempty"`
	CitationAccessible *bool            `db:"citation_accessible" json:"citation_accessible,omitempty"`
	ContentMatch       *bool            `db:"content_match" json:"content_match,omitempty"`
	LogicValid         *bool            `db:"logic_valid" json:"logic_valid,omitempty"`
	Details            map[string]any   `db:"details" json:"details,omitempty"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
}

// SandboxStatus is the lifecycle state of a SandboxResult.
type SandboxStatus string

const (
	SandboxRunning SandboxStatus = "running"
	SandboxPassed  SandboxStatus = "passed"
	SandboxFailed  SandboxStatus = "failed"
)

// SandboxCheck is one named pass/fail assertion evaluated against a
// sandboxed external participant.
type SandboxCheck struct {
	Check  string `json:"check"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// SandboxResult records the outcome of validating a newly registered
// external participant against a fixed synthetic debate.
type SandboxResult struct {
	ID            uuid.UUID      `db:"id" json:"id"`
	ParticipantID uuid.UUID      `db:"participant_id" json:"participant_id"`
	RunID         *uuid.UUID     `db:"run_id" json:"run_id,omitempty"`
	Status        SandboxStatus  `db:"status" json:"status"`
	Checks        []SandboxCheck `db:"checks" json:"checks"`
	CompletedAt   *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}
