package dispatchlead

import (
	"context"

	"lead-dispatch/internal/common/logger"
	"lead-dispatch/internal/dispatch"
	"lead-dispatch/internal/lead"
)

// Input is the raw landing-page form carried in the job variables.
type Input struct {
	Form lead.Form
}

type Output struct {
	LeadID         string            `json:"leadId"`
	Next           string            `json:"next"`
	PayoutMethod   string            `json:"payoutMethod"`
	OverallSuccess bool              `json:"overallSuccess"`
	Outcomes       map[string]string `json:"dispatchOutcomes"`
}

// LeadSubmitter is satisfied by *dispatch.Submitter.
type LeadSubmitter interface {
	Submit(ctx context.Context, form lead.Form) (dispatch.Receipt, error)
}

type ServiceDependencies struct {
	Submitter LeadSubmitter
	Logger    logger.Logger
}
