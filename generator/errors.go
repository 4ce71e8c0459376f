package generator

import (
	"errors"
	"fmt"
)

// ErrorCode 标识流水线失败的类别。
type ErrorCode string

const (
	CodeUpstreamFailure   ErrorCode = "UPSTREAM_FAILURE"
	CodeMalformedResponse ErrorCode = "MALFORMED_RESPONSE"
	CodeTemplateNotFound  ErrorCode = "TEMPLATE_NOT_FOUND"
)

var (
	ErrUpstreamFailure   = errors.New("upstream model call failed")
	ErrMalformedResponse = errors.New("malformed model response")
	ErrTemplateNotFound  = errors.New("template not found")
)

// PipelineError carries the failure category, the stage it happened in and
// the underlying cause. errors.Is matches both the category sentinel and
// the cause.
type PipelineError struct {
	Code      ErrorCode
	Stage     string
	Details   string
	Retryable bool
	Err       error
}

func (e *PipelineError) Error() string {
	msg := string(e.Code)
	if e.Stage != "" {
		msg = e.Stage + ": " + msg
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PipelineError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := sentinelFor(e.Code); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func sentinelFor(code ErrorCode) error {
	switch code {
	case CodeUpstreamFailure:
		return ErrUpstreamFailure
	case CodeMalformedResponse:
		return ErrMalformedResponse
	case CodeTemplateNotFound:
		return ErrTemplateNotFound
	}
	return nil
}

func upstreamError(err error, retryable bool) *PipelineError {
	return &PipelineError{Code: CodeUpstreamFailure, Retryable: retryable, Err: err}
}

func malformedError(details string, cause error) *PipelineError {
	return &PipelineError{Code: CodeMalformedResponse, Details: details, Err: cause}
}

func templateNotFoundError(c Category) *PipelineError {
	return &PipelineError{Code: CodeTemplateNotFound, Details: fmt.Sprintf("category %d", int(c))}
}

// IsRetryable reports whether err is a PipelineError flagged as transient.
func IsRetryable(err error) bool {
	var pe *PipelineError
	return errors.As(err, &pe) && pe.Retryable
}

// withStage tags err with the pipeline stage it surfaced from. Non-pipeline
// errors are wrapped as upstream failures so callers always see a category.
func withStage(stage string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		tagged := *pe
		if tagged.Stage == "" {
			tagged.Stage = stage
		}
		return &tagged
	}
	return &PipelineError{Code: CodeUpstreamFailure, Stage: stage, Err: err}
}
