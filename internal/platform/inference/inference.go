// Package inference adapts external text-generation backends. Every provider
// makes exactly one attempt per call, bounded by its configured timeout, and
// reports failures as *Failure with an explicit Kind.
package inference

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/ehr/carechat/internal/platform/metrics"
)

type Kind string

const (
	// KindUnreachable: the backend could not be contacted at all.
	KindUnreachable Kind = "unreachable"
	// KindTimeout: the call exceeded its deadline.
	KindTimeout Kind = "timeout"
	// KindUnconfigured: no endpoint or credentials; no call was made.
	KindUnconfigured Kind = "unconfigured"
	// KindBackendError: the backend answered with an error status, a body
	// that could not be decoded, or an empty reply.
	KindBackendError Kind = "backend_error"
)

type Failure struct {
	Kind Kind
	Err  error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return "inference " + string(f.Kind)
	}
	return fmt.Sprintf("inference %s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// KindOf returns the failure kind carried by err.
func KindOf(err error) (Kind, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind, true
	}
	return "", false
}

func fail(kind Kind, err error) *Failure {
	return &Failure{Kind: kind, Err: err}
}

// PatientContext is the patient data sent alongside a message. Contact
// details are deliberately left out; the backend only needs enough to ground
// its answer.
type PatientContext struct {
	ID           string     `json:"id"`
	Name         string     `json:"name,omitempty"`
	DOB          *time.Time `json:"dob,omitempty"`
	MedicalNotes string     `json:"medicalNotes,omitempty"`
}

// classifyTransport turns a transport-level error into Timeout or Unreachable.
func classifyTransport(ctx context.Context, err error) *Failure {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fail(KindTimeout, err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return fail(KindTimeout, err)
	}
	return fail(KindUnreachable, err)
}

func observe(provider string, start time.Time, err error) {
	result := "ok"
	if kind, ok := KindOf(err); ok {
		result = string(kind)
	}
	metrics.InferenceRequests.WithLabelValues(provider, result).Inc()
	if result != string(KindUnconfigured) {
		metrics.InferenceDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	}
}
