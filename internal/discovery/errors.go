package discovery

import "fmt"

// SourceUnavailableError signals a catalog outage. The run continues with an
// empty candidate set rather than failing.
type SourceUnavailableError struct {
	Err error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("candidate source unavailable: %v", e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// EvaluationError drops one candidate from scoring; it never aborts the batch.
type EvaluationError struct {
	CandidateID string
	Err         error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation failed for %s: %v", e.CandidateID, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// SynthesisParseError marks a generation response that was not valid
// structured data after fence-stripping. It is retryable within the
// candidate's own attempt budget.
type SynthesisParseError struct {
	CandidateID string
	RawText     string
	Err         error
}

func (e *SynthesisParseError) Error() string {
	return fmt.Sprintf("input synthesis for %s produced unparsable output: %v", e.CandidateID, e.Err)
}

func (e *SynthesisParseError) Unwrap() error { return e.Err }

// InvocationError covers transport, authorization and validation failures
// from the invocation layer. Retryable within the attempt budget.
type InvocationError struct {
	CandidateID string
	Err         error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invocation failed for %s: %v", e.CandidateID, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }
