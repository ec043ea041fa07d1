package services

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is a stable failure classification persisted with failed sessions and
// consulted by the workflow retry policy.
type Kind string

const (
	KindJoinTimeout       Kind = "join_timeout"
	KindJoinTransient     Kind = "join_transient"
	KindAuthRequired      Kind = "auth_required"
	KindInvalidURL        Kind = "invalid_url"
	KindMeetingEnded      Kind = "meeting_ended"
	KindDeviceError       Kind = "device_error"
	KindEmptyRecording    Kind = "empty_recording"
	KindModelUnavailable  Kind = "model_unavailable"
	KindEmptyAudio        Kind = "empty_audio"
	KindProviderTransient Kind = "provider_transient"
	KindQuotaExceeded     Kind = "quota_exceeded"
	KindChunkMerge        Kind = "chunk_merge"
	KindRenderError       Kind = "render_error"
	KindDeliveryTransient Kind = "delivery_transient"
	KindInvalidRecipient  Kind = "invalid_recipient"
	KindInvalidInput      Kind = "invalid_input"
	KindInterrupted       Kind = "interrupted"
	KindUnknown           Kind = "unknown"
)

// retryableKinds are retried with backoff before a session is failed. All
// other kinds fail the session on first occurrence.
var retryableKinds = map[Kind]struct{}{
	KindJoinTimeout:       {},
	KindJoinTransient:     {},
	KindProviderTransient: {},
	KindDeliveryTransient: {},
}

// Failure tags an error with its classification and originating stage so the
// workflow manager can decide between retry and terminal failure without
// string matching.
type Failure struct {
	Kind    Kind
	Stage   string
	Message string
	Err     error
}

func (f *Failure) Error() string {
	detail := f.Message
	if detail == "" && f.Err != nil {
		detail = f.Err.Error()
	}
	if f.Stage != "" {
		return fmt.Sprintf("%s: %s: %s", f.Stage, f.Kind, detail)
	}
	return fmt.Sprintf("%s: %s", f.Kind, detail)
}

func (f *Failure) Unwrap() error { return f.Err }

// Wrap classifies an error for the given stage. The message should describe
// the failed operation; err may be nil when the condition was detected
// locally rather than returned by a collaborator.
func Wrap(kind Kind, stage, message string, err error) error {
	if kind == "" {
		kind = KindUnknown
	}
	return &Failure{Kind: kind, Stage: stage, Message: strings.TrimSpace(message), Err: err}
}

// Details describes a classified failure for persistence and logging.
type Details struct {
	Kind    Kind
	Stage   string
	Message string
}

// FailureDetails recovers the classification from an error chain. Unclassified
// errors map to KindUnknown with the raw error text.
func FailureDetails(err error) Details {
	var f *Failure
	if errors.As(err, &f) {
		message := f.Message
		if message == "" && f.Err != nil {
			message = f.Err.Error()
		}
		return Details{Kind: f.Kind, Stage: f.Stage, Message: message}
	}
	d := Details{Kind: KindUnknown}
	if err != nil {
		d.Message = err.Error()
	}
	return d
}

// Retryable reports whether the error carries a transient classification.
func Retryable(err error) bool {
	var f *Failure
	if !errors.As(err, &f) {
		return false
	}
	_, ok := retryableKinds[f.Kind]
	return ok
}

// IsKind reports whether the error chain carries the given classification.
func IsKind(err error, kind Kind) bool {
	var f *Failure
	return errors.As(err, &f) && f.Kind == kind
}
