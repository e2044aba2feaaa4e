package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"actorscout/internal/helpers"
)

// InputSynthesizer produces a structured input instance for a candidate's
// declared schema. It makes exactly one best-effort generation call per
// invocation; the retry budget lives in the execution controller.
type InputSynthesizer struct {
	llm    GenerationBackend
	logger *log.Logger
}

// NewInputSynthesizer creates a new input synthesizer.
func NewInputSynthesizer(llm GenerationBackend, logger *log.Logger) *InputSynthesizer {
	if logger == nil {
		logger = log.New(log.Writer(), "[SYNTH] ", log.LstdFlags)
	}
	return &InputSynthesizer{llm: llm, logger: logger}
}

// Synthesize generates an input instance for the candidate. From the second
// attempt onward the prompt carries the verbatim prior failure reason, which
// is what lets the loop converge on the violated constraint. A response that
// is not valid JSON after fence-stripping is a *SynthesisParseError.
func (s *InputSynthesizer) Synthesize(ctx context.Context, candidate Candidate, userIntent, priorFailureReason string, attemptNumber, maxAttempts int) (map[string]any, error) {
	prompt := s.createSynthesisPrompt(candidate, userIntent, priorFailureReason, attemptNumber, maxAttempts)

	raw, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("input generation call: %w", err)
	}

	payload, err := helpers.ExtractJSON(raw)
	if err != nil {
		return nil, &SynthesisParseError{CandidateID: candidate.ID, RawText: raw, Err: err}
	}

	var input map[string]any
	if err := json.Unmarshal([]byte(payload), &input); err != nil {
		return nil, &SynthesisParseError{CandidateID: candidate.ID, RawText: raw, Err: err}
	}
	return input, nil
}

func (s *InputSynthesizer) createSynthesisPrompt(candidate Candidate, userIntent, priorFailureReason string, attemptNumber, maxAttempts int) string {
	schema := "(the actor declares no input schema; produce a minimal sensible JSON object)"
	if len(candidate.DeclaredSchema) > 0 {
		schema = string(candidate.DeclaredSchema)
	}

	repair := ""
	if attemptNumber > 1 && priorFailureReason != "" {
		repair = fmt.Sprintf(`
PREVIOUS ATTEMPT FAILED (attempt %d of %d). The exact failure reason was:
%s

Produce a corrected input instance that avoids this failure.
`, attemptNumber-1, maxAttempts, priorFailureReason)
	}

	return fmt.Sprintf(`You are preparing the run input for the actor %q (%s).

The actor's declared input schema is:
%s

USER INTENT: %q
%s
RESPONSE FORMAT:
Respond ONLY with a single valid JSON object that satisfies the schema and serves the user intent. Fill every required field with realistic values. Do not include any other text or explanation.`,
		candidate.DisplayName, candidate.ID, schema, userIntent, repair)
}
