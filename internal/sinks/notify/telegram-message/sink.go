package telegrammessage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"lead-dispatch/internal/common/errors"
	httpclient "lead-dispatch/internal/common/http"
	"lead-dispatch/internal/common/logger"
	"lead-dispatch/internal/dispatch"
	"lead-dispatch/internal/lead"
)

const Name = "telegram"

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// Sink posts a formatted alert to the sales chat through the Telegram Bot API.
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
func (s *Sink) Stage() dispatch.Stage { return dispatch.StageNotify }

// FlagsNotified ties the store's telegram_sent column to this sink.
func (s *Sink) FlagsNotified() bool { return true }

// Target hides the bot token.
func (s *Sink) Target() string { return "telegram:chat/" + s.config.ChatID }

func (s *Sink) Deliver(ctx context.Context, l lead.Lead, dc dispatch.DeliveryContext) dispatch.Outcome {
	if setting := s.config.missing(); setting != "" {
		return dispatch.Skip(Name, setting)
	}

	at := dc.SubmittedAt
	if at.IsZero() {
		at = time.Now()
	}

	req := sendMessageRequest{
		ChatID:                s.config.ChatID,
		Text:                  FormatMessage(l, at, s.config.Location),
		ParseMode:             "MarkdownV2",
		DisableWebPagePreview: true,
	}

	resp, err := s.client.SendJSON(ctx, http.MethodPost, s.config.endpoint(), req, nil)
	if err != nil {
		return dispatch.Failed(Name, errors.Classify(Name, err))
	}
	if !resp.OK() {
		return dispatch.Failed(Name, errors.NewStatusError(Name, resp.StatusCode, string(resp.Body)))
	}

	var body sendMessageResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return dispatch.Failed(Name, errors.NewTransportFailureError(Name, fmt.Errorf("malformed response: %w", err)))
	}
	if !body.OK {
		return dispatch.Failed(Name, errors.NewTransportFailureError(Name, fmt.Errorf("telegram rejected message: %s", body.Description)))
	}

	return dispatch.Succeeded(Name, strconv.FormatInt(body.Result.MessageID, 10))
}
