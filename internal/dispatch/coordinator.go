package dispatch

import (
	"context"
	"fmt"
	"time"

	"lead-dispatch/internal/common/errors"
	"lead-dispatch/internal/common/logger"
	"lead-dispatch/internal/common/metrics"
	"lead-dispatch/internal/common/observability"
	"lead-dispatch/internal/lead"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const DefaultSinkTimeout = 5 * time.Second

// FailureRecorder keeps failed deliveries for manual replay.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, l lead.Lead, dc DeliveryContext, o Outcome) error
}

type Options struct {
	Sinks    []Sink
	Timeout  time.Duration
	Required []string
	Logger   logger.Logger
	Recorder FailureRecorder
	Obs      *observability.Observability
	// NewID generates fallback event ids. Defaults to "lead_<uuid>".
	NewID func() string
	Now   func() time.Time
}

// Coordinator delivers a lead to every configured sink. Dispatch never returns an
// error: every failure ends up in an Outcome.
type Coordinator struct {
	sinks    []Sink
	timeout  time.Duration
	required map[string]bool
	logger   logger.Logger
	recorder FailureRecorder
	obs      *observability.Observability
	newID    func() string
	now      func() time.Time
}

func NewCoordinator(opts Options) *Coordinator {
	c := &Coordinator{
		sinks:    opts.Sinks,
		timeout:  opts.Timeout,
		required: make(map[string]bool, len(opts.Required)),
		logger:   opts.Logger,
		recorder: opts.Recorder,
		obs:      opts.Obs,
		newID:    opts.NewID,
		now:      opts.Now,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultSinkTimeout
	}
	if c.logger == nil {
		c.logger = logger.NewNoOpLogger()
	}
	if c.newID == nil {
		c.newID = func() string { return "lead_" + uuid.NewString() }
	}
	if c.now == nil {
		c.now = time.Now
	}
	for _, name := range opts.Required {
		c.required[name] = true
	}
	return c
}

// Sinks returns the configured sinks in order.
func (c *Coordinator) Sinks() []Sink {
	return c.sinks
}

// Dispatch runs the store, notify and convert stages in order. Sinks inside a stage run
// concurrently, each bounded by the sink timeout. Cancellation of ctx is ignored: an
// accepted lead is always attempted on every sink.
func (c *Coordinator) Dispatch(ctx context.Context, l lead.Lead) DispatchResult {
	ctx = context.WithoutCancel(ctx)
	dc := DeliveryContext{SubmittedAt: c.now().UTC()}
	outcomes := make([]Outcome, len(c.sinks))
	c.rejectUnknownStages(outcomes)

	for _, stage := range stages {
		c.runStage(ctx, stage, l, dc, outcomes)

		switch stage {
		case StageStore:
			dc.ExternalID = c.firstStoreID(outcomes)
			dc.EventID = dc.ExternalID
			if dc.EventID == "" {
				dc.EventID = c.newID()
			}
		case StageNotify:
			c.markNotified(ctx, outcomes)
		}
	}

	result := DispatchResult{
		LeadID:         dc.EventID,
		Outcomes:       outcomes,
		OverallSuccess: c.overallSuccess(outcomes),
	}

	c.report(ctx, l, dc, result)
	return result
}

func (c *Coordinator) runStage(ctx context.Context, stage Stage, l lead.Lead, dc DeliveryContext, outcomes []Outcome) {
	type indexed struct {
		i int
		o Outcome
	}

	results := make(chan indexed, len(c.sinks))
	pending := 0
	for i, s := range c.sinks {
		if s.Stage() != stage {
			continue
		}
		pending++
		go func(i int, s Sink) {
			results <- indexed{i: i, o: c.deliver(ctx, s, l, dc)}
		}(i, s)
	}

	for ; pending > 0; pending-- {
		r := <-results
		outcomes[r.i] = r.o
	}
}

// deliver calls one sink under the timeout. A sink that ignores its context is
// abandoned at the deadline; its goroutine finishes into a buffered channel.
func (c *Coordinator) deliver(ctx context.Context, s Sink, l lead.Lead, dc DeliveryContext) Outcome {
	start := time.Now()
	name := s.Name()

	ctx, span := c.obs.StartSpan(ctx, "sink.deliver",
		attribute.String("sink", name),
		attribute.String("stage", s.Stage().String()),
		attribute.String("event_id", dc.EventID),
	)
	defer span.End()

	sinkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan Outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Outcome{
					Sink:   name,
					Detail: fmt.Sprintf("panic: %v", r),
					Code:   errors.ErrCodeSinkPanic,
				}
			}
		}()
		done <- s.Deliver(sinkCtx, l, dc)
	}()

	var o Outcome
	select {
	case o = <-done:
	case <-sinkCtx.Done():
		o = Failed(name, errors.Classify(name, sinkCtx.Err()))
		if o.Code == errors.ErrCodeTimeout {
			o.Detail = fmt.Sprintf("timeout after %s", c.timeout)
		}
	}

	o.Sink = name
	o.Duration = time.Since(start)
	if !o.Success && !o.Skipped && o.Detail == "" {
		o.Detail = "delivery failed"
	}

	if !o.Success && !o.Skipped {
		span.SetStatus(codes.Error, o.Detail)
	}
	span.SetAttributes(attribute.String("result", o.Result()))

	metrics.SinkDeliveries.WithLabelValues(name, o.Result()).Inc()
	metrics.SinkDeliveryDuration.WithLabelValues(name).Observe(o.Duration.Seconds())
	c.obs.RecordDelivery(ctx, name, o.Result(), o.Duration)

	return o
}

func (c *Coordinator) firstStoreID(outcomes []Outcome) string {
	for i, s := range c.sinks {
		if s.Stage() == StageStore && outcomes[i].Success && outcomes[i].ExternalID != "" {
			return outcomes[i].ExternalID
		}
	}
	return ""
}

// rejectUnknownStages fails sinks whose stage is never run.
func (c *Coordinator) rejectUnknownStages(outcomes []Outcome) {
	for i, s := range c.sinks {
		if s.Stage().known() {
			continue
		}
		o := Failed(s.Name(), errors.NewUnknownStageError(s.Name(), fmt.Sprintf("stage %d", int(s.Stage()))))
		outcomes[i] = o
		metrics.SinkDeliveries.WithLabelValues(o.Sink, o.Result()).Inc()
	}
}

// markNotified flags stored rows once a notifier implementing NotifiedFlagger
// succeeded. Failures only warn.
func (c *Coordinator) markNotified(ctx context.Context, outcomes []Outcome) {
	notified := false
	for i, s := range c.sinks {
		f, ok := s.(NotifiedFlagger)
		if ok && f.FlagsNotified() && s.Stage() == StageNotify && outcomes[i].Success {
			notified = true
			break
		}
	}
	if !notified {
		return
	}

	for i, s := range c.sinks {
		marker, ok := s.(NotifiedMarker)
		if !ok || s.Stage() != StageStore || !outcomes[i].Success || outcomes[i].ExternalID == "" {
			continue
		}
		id := outcomes[i].ExternalID
		if err := c.bounded(ctx, func(ctx context.Context) error { return marker.MarkNotified(ctx, id) }); err != nil {
			c.logger.Warn("failed to mark lead as notified", map[string]interface{}{
				"sink":       s.Name(),
				"externalId": id,
				"error":      err,
			})
		}
	}
}

// bounded runs fn under the sink timeout, converting panics into errors.
func (c *Coordinator) bounded(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) overallSuccess(outcomes []Outcome) bool {
	for name := range c.required {
		found := false
		for _, o := range outcomes {
			if o.Sink == name {
				found = true
				if !o.Success {
					return false
				}
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (c *Coordinator) report(ctx context.Context, l lead.Lead, dc DeliveryContext, result DispatchResult) {
	metrics.Dispatches.WithLabelValues(fmt.Sprintf("%t", result.OverallSuccess)).Inc()

	summary := make(map[string]interface{}, len(result.Outcomes))
	for i, o := range result.Outcomes {
		summary[o.Sink] = o.Result()

		switch {
		case o.Skipped:
			c.logger.Info("sink skipped", map[string]interface{}{
				"sink":   o.Sink,
				"detail": o.Detail,
			})
		case !o.Success:
			fields := map[string]interface{}{
				"sink":     o.Sink,
				"code":     string(o.Code),
				"detail":   o.Detail,
				"eventId":  dc.EventID,
				"duration": o.Duration.String(),
				"lead":     l.Fields(),
			}
			if t, ok := c.sinks[i].(Targeter); ok {
				fields["target"] = t.Target()
			}
			c.logger.Error("sink delivery failed", fields)
			c.record(ctx, l, dc, o)
		}
	}

	c.logger.Info("lead dispatched", map[string]interface{}{
		"leadId":         result.LeadID,
		"overallSuccess": result.OverallSuccess,
		"outcomes":       summary,
	})
}

func (c *Coordinator) record(ctx context.Context, l lead.Lead, dc DeliveryContext, o Outcome) {
	if c.recorder == nil {
		return
	}
	err := c.bounded(context.WithoutCancel(ctx), func(ctx context.Context) error {
		return c.recorder.RecordFailure(ctx, l, dc, o)
	})
	if err != nil {
		c.logger.Warn("failed to journal sink failure", map[string]interface{}{
			"sink":  o.Sink,
			"error": err,
		})
	}
}
