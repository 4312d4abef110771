package services

import (
	"errors"
	"fmt"
)

// Corpus faults are startup-fatal: the caller should refuse to boot without a
// usable curriculum file rather than grade ungrounded by accident.
var (
	ErrCorpusNotFound  = errors.New("curriculum corpus file not found")
	ErrCorpusMalformed = errors.New("curriculum corpus is malformed")
)

// ErrImageDecode means the answer image could not be decoded as a raster image.
var ErrImageDecode = errors.New("source image is not a decodable raster image")

// Auth flow errors.
var (
	ErrInvalidCode = errors.New("verification code does not match")
	ErrCodeExpired = errors.New("verification code has expired")
)

// errModelRefused marks a model refusal. Refusals are never retried.
var errModelRefused = errors.New("model refused to grade the submission")

// errSchemaViolation marks a model reply that does not conform to the declared
// output schema. It gets exactly one corrective retry before escalating.
var errSchemaViolation = errors.New("model response violates the output schema")

// Reason is the coarse failure code a GradingError carries across the module
// boundary. Delivery surfaces map each reason to a distinct user-facing message.
type Reason string

const (
	ReasonTransient         Reason = "transient"
	ReasonTimeout           Reason = "timeout"
	ReasonMalformedResponse Reason = "malformed_response"
	ReasonRefused           Reason = "refused"
	ReasonBadImage          Reason = "bad_image"
	// ReasonFailed marks a model call that fails the same way on every
	// attempt, e.g. an invalid request. Retrying cannot help, so surfaces
	// must not tell the user to try again.
	ReasonFailed Reason = "failed"
)

// GradingError is the single typed failure the grading pipeline exposes.
// No raw provider error detail is meant to reach end users; the wrapped error
// exists for logs.
type GradingError struct {
	Reason Reason
	Err    error
}

func (e *GradingError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("grading failed: %s", e.Reason)
	}
	return fmt.Sprintf("grading failed (%s): %v", e.Reason, e.Err)
}

func (e *GradingError) Unwrap() error { return e.Err }

func gradingFailed(reason Reason, err error) *GradingError {
	return &GradingError{Reason: reason, Err: err}
}

// FailureReason extracts the reason code from an error returned by the
// pipeline. Unrecognized errors report as transient so surfaces still show an
// actionable "try again" style message.
func FailureReason(err error) Reason {
	var ge *GradingError
	if errors.As(err, &ge) {
		return ge.Reason
	}
	return ReasonTransient
}
