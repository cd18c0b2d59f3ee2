// Package dispatch fans a validated lead out to independent delivery sinks.
package dispatch

import (
	"context"
	stderrors "errors"
	"time"

	"lead-dispatch/internal/common/errors"
	"lead-dispatch/internal/common/metrics"
	"lead-dispatch/internal/lead"
)

// Stage orders sinks that depend on values produced by earlier sinks.
type Stage int

const (
	// StageStore sinks persist the lead and may return an external id.
	StageStore Stage = iota
	// StageNotify sinks alert humans.
	StageNotify
	// StageConvert sinks report the conversion to ad platforms.
	StageConvert
)

var stages = []Stage{StageStore, StageNotify, StageConvert}

func (s Stage) String() string {
	switch s {
	case StageStore:
		return "store"
	case StageNotify:
		return "notify"
	case StageConvert:
		return "convert"
	default:
		return "unknown"
	}
}

func (s Stage) known() bool {
	return s >= StageStore && s <= StageConvert
}

// DeliveryContext carries values derived by earlier stages.
type DeliveryContext struct {
	// ExternalID is the id assigned by the first successful store, if any.
	ExternalID string
	// EventID is ExternalID when present, otherwise a locally generated fallback.
	EventID     string
	SubmittedAt time.Time
}

// Outcome is the result of one delivery attempt.
type Outcome struct {
	Sink       string           `json:"sink"`
	Success    bool             `json:"success"`
	Skipped    bool             `json:"skipped,omitempty"`
	Detail     string           `json:"detail,omitempty"`
	ExternalID string           `json:"externalId,omitempty"`
	Code       errors.ErrorCode `json:"code,omitempty"`
	Duration   time.Duration    `json:"duration"`
}

// Result is the label used for metrics.
func (o Outcome) Result() string {
	switch {
	case o.Success:
		return metrics.ResultSuccess
	case o.Skipped:
		return metrics.ResultSkipped
	default:
		return metrics.ResultFailure
	}
}

// Sink delivers a lead to one external system. Deliver must not panic or block past
// ctx; the coordinator enforces both anyway.
type Sink interface {
	Name() string
	Stage() Stage
	Deliver(ctx context.Context, l lead.Lead, dc DeliveryContext) Outcome
}

// NotifiedMarker is implemented by stores that can flag a row once a notifier fired.
type NotifiedMarker interface {
	MarkNotified(ctx context.Context, externalID string) error
}

// NotifiedFlagger is implemented by notifiers whose success the stored row records.
// Only these trigger MarkNotified.
type NotifiedFlagger interface {
	FlagsNotified() bool
}

// Targeter exposes the endpoint a sink talks to, for failure logs.
type Targeter interface {
	Target() string
}

// Succeeded builds a successful Outcome.
func Succeeded(sink, externalID string) Outcome {
	return Outcome{Sink: sink, Success: true, ExternalID: externalID}
}

// Skip builds the Outcome of a sink whose credentials are unset.
func Skip(sink, setting string) Outcome {
	stdErr := errors.NewConfigurationMissingError(sink, setting)
	return Outcome{
		Sink:    sink,
		Skipped: true,
		Detail:  stdErr.Message,
		Code:    stdErr.Code,
	}
}

// Failed builds a failed Outcome. StandardErrors keep their code and details; any
// other error is classified and its message kept verbatim.
func Failed(sink string, err error) Outcome {
	var stdErr *errors.StandardError
	if stderrors.As(err, &stdErr) {
		detail := stdErr.Details
		if detail == "" {
			detail = stdErr.Message
		}
		return Outcome{Sink: sink, Detail: detail, Code: stdErr.Code}
	}
	return Outcome{
		Sink:   sink,
		Detail: err.Error(),
		Code:   errors.Classify(sink, err).Code,
	}
}

// DispatchResult aggregates the outcomes of one lead, in configured sink order.
type DispatchResult struct {
	LeadID         string    `json:"leadId"`
	Outcomes       []Outcome `json:"outcomes"`
	OverallSuccess bool      `json:"overallSuccess"`
}

// Outcome returns the outcome of the named sink.
func (r DispatchResult) Outcome(sink string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Sink == sink {
			return o, true
		}
	}
	return Outcome{}, false
}
