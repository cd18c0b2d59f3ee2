package facebookcapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"lead-dispatch/internal/common/errors"
	httpclient "lead-dispatch/internal/common/http"
	"lead-dispatch/internal/common/logger"
	"lead-dispatch/internal/dispatch"
	"lead-dispatch/internal/lead"
)

const Name = "facebook_capi"

// Sink reports the lead to the Facebook Conversions API with hashed identifiers.
type Sink struct {
	config Config
	client *httpclient.Client
	logger logger.Logger
}

func New(cfg Config, client *httpclient.Client, log logger.Logger) *Sink {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Sink{config: cfg, client: client, logger: log}
}

func (s *Sink) Name() string          { return Name }
func (s *Sink) Stage() dispatch.Stage { return dispatch.StageConvert }
func (s *Sink) Target() string        { return s.config.endpoint() }

func (s *Sink) Deliver(ctx context.Context, l lead.Lead, dc dispatch.DeliveryContext) dispatch.Outcome {
	if setting := s.config.missing(); setting != "" {
		return dispatch.Skip(Name, setting)
	}
	if dc.SubmittedAt.IsZero() {
		dc.SubmittedAt = time.Now()
	}

	req := buildRequest(s.config, l, dc)
	if s.config.TestEventCode != "" {
		s.logger.Info("sending conversion in test mode", map[string]interface{}{
			"sink":          Name,
			"testEventCode": s.config.TestEventCode,
			"eventId":       dc.EventID,
		})
	}

	resp, err := s.client.SendJSON(ctx, http.MethodPost, s.config.endpoint(), req, nil)
	if err != nil {
		return dispatch.Failed(Name, errors.Classify(Name, err))
	}
	if !resp.OK() {
		return dispatch.Failed(Name, errors.NewStatusError(Name, resp.StatusCode, string(resp.Body)))
	}

	var body eventResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return dispatch.Failed(Name, errors.NewTransportFailureError(Name, fmt.Errorf("malformed response: %w", err)))
	}
	if body.EventsReceived < 1 {
		return dispatch.Failed(Name, errors.NewTransportFailureError(Name, fmt.Errorf("no events received")))
	}

	return dispatch.Succeeded(Name, body.FBTraceID)
}
