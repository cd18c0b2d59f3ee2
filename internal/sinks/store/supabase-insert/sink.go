package supabaseinsert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"lead-dispatch/internal/common/errors"
	httpclient "lead-dispatch/internal/common/http"
	"lead-dispatch/internal/common/logger"
	"lead-dispatch/internal/dispatch"
	"lead-dispatch/internal/lead"
)

const Name = "supabase"

// Sink inserts the lead into the hosted leads table and later flags the row once a
// notifier fired.
type Sink struct {
	config Config
	client *httpclient.Client
	logger logger.Logger
	now    func() time.Time
}

func New(cfg Config, client *httpclient.Client, log logger.Logger) *Sink {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Sink{config: cfg, client: client, logger: log, now: time.Now}
}

func (s *Sink) Name() string          { return Name }
func (s *Sink) Stage() dispatch.Stage { return dispatch.StageStore }
func (s *Sink) Target() string        { return s.config.endpoint() }

func (s *Sink) headers(prefer string) map[string]string {
	return map[string]string{
		"apikey":        s.config.APIKey,
		"Authorization": "Bearer " + s.config.APIKey,
		"Prefer":        prefer,
	}
}

func (s *Sink) Deliver(ctx context.Context, l lead.Lead, _ dispatch.DeliveryContext) dispatch.Outcome {
	if setting := s.config.missing(); setting != "" {
		return dispatch.Skip(Name, setting)
	}

	resp, err := s.client.SendJSON(ctx, http.MethodPost, s.config.endpoint(), NewRow(l), s.headers("return=representation"))
	if err != nil {
		return dispatch.Failed(Name, errors.Classify(Name, err))
	}
	if !resp.OK() {
		return dispatch.Failed(Name, errors.NewStatusError(Name, resp.StatusCode, string(resp.Body)))
	}

	id, err := insertedID(resp.Body)
	if err != nil {
		return dispatch.Failed(Name, errors.NewTransportFailureError(Name, err))
	}

	s.logger.Debug("lead row inserted", map[string]interface{}{"sink": Name, "id": id})
	return dispatch.Succeeded(Name, id)
}

// MarkNotified sets telegram_sent on the inserted row.
func (s *Sink) MarkNotified(ctx context.Context, externalID string) error {
	target := s.config.endpoint() + "?id=eq." + url.QueryEscape(externalID)
	patch := notifiedPatch{TelegramSent: true, TelegramSentAt: s.now().UTC()}

	resp, err := s.client.SendJSON(ctx, http.MethodPatch, target, patch, s.headers("return=minimal"))
	if err != nil {
		return errors.Classify(Name, err)
	}
	if !resp.OK() {
		return errors.NewStatusError(Name, resp.StatusCode, string(resp.Body))
	}
	return nil
}

// insertedID reads the id of the first returned row. Ids may be numeric or uuid.
func insertedID(body []byte) (string, error) {
	var rows []map[string]interface{}
	if err := json.Unmarshal(body, &rows); err != nil {
		return "", fmt.Errorf("malformed response: %w", err)
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("malformed response: no row returned")
	}

	switch id := rows[0]["id"].(type) {
	case string:
		if id != "" {
			return id, nil
		}
	case float64:
		return fmt.Sprintf("%.0f", id), nil
	}
	return "", fmt.Errorf("malformed response: row has no id")
}
