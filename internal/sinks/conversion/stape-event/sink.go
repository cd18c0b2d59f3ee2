package stapeevent

import (
	"context"
	"net/http"
	"time"

	"lead-dispatch/internal/common/errors"
	httpclient "lead-dispatch/internal/common/http"
	"lead-dispatch/internal/common/logger"
	"lead-dispatch/internal/dispatch"
	"lead-dispatch/internal/lead"
)

const Name = "stape"

// Sink sends the lead as an event to a server-side GTM container hosted on Stape.
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
func (s *Sink) Target() string        { return s.config.Endpoint }

func (s *Sink) Deliver(ctx context.Context, l lead.Lead, dc dispatch.DeliveryContext) dispatch.Outcome {
	if setting := s.config.missing(); setting != "" {
		return dispatch.Skip(Name, setting)
	}
	if dc.SubmittedAt.IsZero() {
		dc.SubmittedAt = time.Now()
	}

	headers := map[string]string{
		"Authorization": "Bearer " + s.config.APIKey,
		"User-Agent":    "Cars-Vault-Website/1.0",
	}

	resp, err := s.client.SendJSON(ctx, http.MethodPost, s.config.Endpoint, buildRequest(s.config, l, dc), headers)
	if err != nil {
		return dispatch.Failed(Name, errors.Classify(Name, err))
	}
	if !resp.OK() {
		return dispatch.Failed(Name, errors.NewStatusError(Name, resp.StatusCode, string(resp.Body)))
	}

	// GTM containers often answer with an empty or non-JSON body; the status is enough.
	return dispatch.Succeeded(Name, "")
}
