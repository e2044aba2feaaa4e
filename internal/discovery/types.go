package discovery

import (
	"context"
	"encoding/json"
	"time"
)

// Candidate is a third-party invocable actor under consideration for the
// user's task. It is assembled once from the catalog search plus the detail
// enrichment and is read-only afterwards.
type Candidate struct {
	ID             string            `json:"id"`
	DisplayName    string            `json:"display_name"`
	Owner          string            `json:"owner"`
	Description    string            `json:"description"`
	Popularity     PopularitySignals `json:"popularity"`
	DeclaredSchema json.RawMessage   `json:"declared_schema,omitempty"`
	DetailText     string            `json:"detail_text,omitempty"`
	PricingHint    string            `json:"pricing_hint,omitempty"`
	Deprecated     bool              `json:"deprecated"`
}

// PopularitySignals carries the catalog's usage statistics for a candidate.
type PopularitySignals struct {
	UsageCount     int       `json:"usage_count"`
	RunCount       int       `json:"run_count"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// CandidateScore is the evaluator's verdict for one candidate. It is computed
// once and never mutated.
type CandidateScore struct {
	CandidateID     string         `json:"candidate_id"`
	CriterionScores map[string]int `json:"criterion_scores"`
	OverallScore    float64        `json:"overall_score"`
	Strengths       []string       `json:"strengths"`
	Weaknesses      []string       `json:"weaknesses"`
	Narrative       string         `json:"narrative"`
}

// AttemptOutcome classifies how a single synthesize+invoke cycle ended.
type AttemptOutcome string

const (
	OutcomeSuccess         AttemptOutcome = "success"
	OutcomeRetryableFail   AttemptOutcome = "retryable_failure"
	OutcomeMalformedOutput AttemptOutcome = "malformed_output"
	OutcomeNonRetryable    AttemptOutcome = "non_retryable_failure"
)

// ExecutionAttempt records one synthesize+invoke cycle.
type ExecutionAttempt struct {
	AttemptNumber    int            `json:"attempt_number"`
	SynthesizedInput map[string]any `json:"synthesized_input,omitempty"`
	Outcome          AttemptOutcome `json:"outcome"`
	Reason           string         `json:"reason,omitempty"`
	RawText          string         `json:"raw_text,omitempty"`
}

// ExecutionOutcome is owned exclusively by one candidate's control loop and
// never shared across loops.
type ExecutionOutcome struct {
	CandidateID     string             `json:"candidate_id"`
	Attempts        []ExecutionAttempt `json:"attempts"`
	Succeeded       bool               `json:"succeeded"`
	FinalInput      map[string]any     `json:"final_input,omitempty"`
	SampleOutput    []json.RawMessage  `json:"sample_output,omitempty"`
	DurationSeconds float64            `json:"duration_seconds,omitempty"`
}

// FinalRecord merges a candidate, its optional score and its execution
// outcome into the emitted result.
type FinalRecord struct {
	Candidate Candidate         `json:"candidate"`
	Score     *CandidateScore   `json:"score,omitempty"`
	Outcome   *ExecutionOutcome `json:"outcome,omitempty"`
}

// RunStatus is the terminal status reported by the platform for an actor run.
type RunStatus string

const (
	RunSucceeded RunStatus = "SUCCEEDED"
	RunFailed    RunStatus = "FAILED"
	RunTimedOut  RunStatus = "TIMED-OUT"
	RunAborted   RunStatus = "ABORTED"
)

// RunResult is what the candidate runner reports back after a run reaches a
// terminal status.
type RunResult struct {
	Status          RunStatus
	RunID           string
	DurationSeconds float64
	OutputLocation  string
}

// CandidateSource resolves search terms to raw candidate descriptors.
type CandidateSource interface {
	Search(ctx context.Context, terms []string, limit int) ([]Candidate, error)
}

// DetailEnricher augments a candidate with descriptive text and a pricing
// hint. Failures are non-fatal; the candidate proceeds with empty detail.
type DetailEnricher interface {
	Fetch(ctx context.Context, candidate Candidate) (detailText, pricingHint string, err error)
}

// GenerationBackend is the completion interface shared by the evaluator and
// the input synthesizer.
type GenerationBackend interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CandidateRunner invokes a candidate and exposes its output sample.
type CandidateRunner interface {
	Invoke(ctx context.Context, candidateID string, input map[string]any, timeout time.Duration, memoryMB int) (RunResult, error)
	ListOutputSample(ctx context.Context, outputLocation string, limit int) ([]json.RawMessage, error)
}
