package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"unicode/utf8"

	"actorscout/config"
	"actorscout/internal/telemetry"
)

// Synthesizer is the contract the controller drives each attempt through.
type Synthesizer interface {
	Synthesize(ctx context.Context, candidate Candidate, userIntent, priorFailureReason string, attemptNumber, maxAttempts int) (map[string]any, error)
}

// reasonUnparsableGeneration is recorded when the synthesizer's generation
// output could not be parsed; the failed attempt still consumes a slot.
const reasonUnparsableGeneration = "unparsable generation output"

// reasonTimedOut marks timeout-class run statuses. Varying input content
// would not resolve a timeout, so the loop stops without spending the
// remaining attempts.
const reasonTimedOut = "timed out"

// maxRecordedRawText bounds how much raw generation text is preserved per
// malformed-output attempt.
const maxRecordedRawText = 2000

// ExecutionController owns one bounded-attempt state machine per selected
// candidate: Idle → Synthesizing → Invoking → {Succeeded, Retryable,
// NonRetryable}, terminating in Succeeded, NonRetryable or ExhaustedAttempts.
type ExecutionController struct {
	cfg       config.DiscoveryConfig
	synth     Synthesizer
	runner    CandidateRunner
	logger    *log.Logger
	telemetry *telemetry.Telemetry
}

// NewExecutionController creates a controller bound to a synthesizer and a
// candidate runner. Each Execute call keeps all mutable state local, so one
// controller may drive any number of candidates concurrently.
func NewExecutionController(cfg config.DiscoveryConfig, synth Synthesizer, runner CandidateRunner, logger *log.Logger, tele *telemetry.Telemetry) *ExecutionController {
	if logger == nil {
		logger = log.New(log.Writer(), "[EXEC] ", log.LstdFlags)
	}
	return &ExecutionController{cfg: cfg, synth: synth, runner: runner, logger: logger, telemetry: tele}
}

// Execute drives synthesize→invoke→classify cycles for one candidate until
// success, a non-retryable outcome, or attempt exhaustion. Every failure is
// preserved in the attempt history with its reason; nothing escalates past
// this candidate.
func (c *ExecutionController) Execute(ctx context.Context, candidate Candidate, userIntent string) *ExecutionOutcome {
	outcome := &ExecutionOutcome{CandidateID: candidate.ID}
	var failureReason string

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		// Synthesizing: the most recent failure reason travels verbatim
		// into the repair prompt (empty on attempt 1).
		input, err := c.synth.Synthesize(ctx, candidate, userIntent, failureReason, attempt, c.cfg.MaxAttempts)
		if err != nil {
			var parseErr *SynthesisParseError
			if errors.As(err, &parseErr) {
				failureReason = reasonUnparsableGeneration
				c.recordAttempt(outcome, ExecutionAttempt{
					AttemptNumber: attempt,
					Outcome:       OutcomeMalformedOutput,
					Reason:        failureReason,
					RawText:       truncateText(parseErr.RawText, maxRecordedRawText),
				})
				continue
			}
			failureReason = err.Error()
			c.recordAttempt(outcome, ExecutionAttempt{
				AttemptNumber: attempt,
				Outcome:       OutcomeRetryableFail,
				Reason:        failureReason,
			})
			continue
		}

		// Invoking: bounded wall-clock timeout and memory allocation.
		res, err := c.runner.Invoke(ctx, candidate.ID, input, c.cfg.RunTimeout, c.cfg.RunMemoryMB)
		if err != nil {
			failureReason = err.Error()
			c.recordAttempt(outcome, ExecutionAttempt{
				AttemptNumber:    attempt,
				SynthesizedInput: input,
				Outcome:          OutcomeRetryableFail,
				Reason:           failureReason,
			})
			continue
		}

		switch res.Status {
		case RunSucceeded:
			c.recordAttempt(outcome, ExecutionAttempt{
				AttemptNumber:    attempt,
				SynthesizedInput: input,
				Outcome:          OutcomeSuccess,
			})
			outcome.Succeeded = true
			outcome.FinalInput = input
			outcome.DurationSeconds = res.DurationSeconds
			outcome.SampleOutput = c.fetchSample(ctx, candidate.ID, res.OutputLocation)
			c.recordRun(candidate.ID, outcome)
			c.logger.Printf("candidate %s succeeded on attempt %d (run %s, %.1fs)", candidate.ID, attempt, res.RunID, res.DurationSeconds)
			return outcome

		case RunTimedOut:
			c.recordAttempt(outcome, ExecutionAttempt{
				AttemptNumber:    attempt,
				SynthesizedInput: input,
				Outcome:          OutcomeNonRetryable,
				Reason:           reasonTimedOut,
			})
			c.recordRun(candidate.ID, outcome)
			c.logger.Printf("candidate %s timed out on attempt %d; not retrying", candidate.ID, attempt)
			return outcome

		default:
			failureReason = fmt.Sprintf("run ended with status %s", res.Status)
			c.recordAttempt(outcome, ExecutionAttempt{
				AttemptNumber:    attempt,
				SynthesizedInput: input,
				Outcome:          OutcomeRetryableFail,
				Reason:           failureReason,
			})
			continue
		}
	}

	c.recordRun(candidate.ID, outcome)
	c.logger.Printf("candidate %s exhausted %d attempts", candidate.ID, c.cfg.MaxAttempts)
	return outcome
}

// fetchSample captures a bounded output sample after a successful run. A
// failed listing call does not demote the success; the sample is just absent.
func (c *ExecutionController) fetchSample(ctx context.Context, candidateID, outputLocation string) []json.RawMessage {
	if outputLocation == "" {
		return nil
	}
	sample, err := c.runner.ListOutputSample(ctx, outputLocation, c.cfg.OutputSampleSize)
	if err != nil {
		c.logger.Printf("warn: listing output sample for %s failed: %v", candidateID, err)
		return nil
	}
	if len(sample) > c.cfg.OutputSampleSize {
		sample = sample[:c.cfg.OutputSampleSize]
	}
	return sample
}

func (c *ExecutionController) recordAttempt(outcome *ExecutionOutcome, attempt ExecutionAttempt) {
	outcome.Attempts = append(outcome.Attempts, attempt)
	if c.telemetry != nil {
		c.telemetry.RecordAttempt(outcome.CandidateID, string(attempt.Outcome))
	}
}

func (c *ExecutionController) recordRun(candidateID string, outcome *ExecutionOutcome) {
	if c.telemetry != nil {
		c.telemetry.RecordRun(candidateID, outcome.Succeeded, outcome.DurationSeconds)
	}
}

// truncateText cuts s to at most max bytes, backing off to a rune boundary so
// a multi-byte character is never split.
func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
