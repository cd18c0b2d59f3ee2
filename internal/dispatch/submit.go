package dispatch

import (
	"context"

	"lead-dispatch/internal/common/logger"
	"lead-dispatch/internal/lead"
)

// Dispatcher is satisfied by *Coordinator.
type Dispatcher interface {
	Dispatch(ctx context.Context, l lead.Lead) DispatchResult
}

// HandoffSaver caches what the thank-you page needs to fire its conversion signal.
type HandoffSaver interface {
	Save(ctx context.Context, leadID string, l lead.Lead) error
}

// Routes the landing page navigates to after a submission.
const (
	NextThankYou   = "/thank-you"
	NextCashOption = "/cash-option"
)

// Receipt is what the caller gets back for an accepted submission.
type Receipt struct {
	LeadID string         `json:"leadId"`
	Next   string         `json:"next"`
	Lead   lead.Lead      `json:"-"`
	Result DispatchResult `json:"-"`
}

type Submitter struct {
	dispatcher Dispatcher
	handoff    HandoffSaver
	logger     logger.Logger
}

// NewSubmitter builds a Submitter. handoff may be nil.
func NewSubmitter(d Dispatcher, handoff HandoffSaver, log logger.Logger) *Submitter {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Submitter{dispatcher: d, handoff: handoff, logger: log}
}

// Submit validates the form and dispatches the lead. Errors come only from validation;
// delivery problems are reported in the Receipt's Result. Once validated, the lead is
// delivered even if ctx is canceled, e.g. by a client disconnect.
func (s *Submitter) Submit(ctx context.Context, form lead.Form) (Receipt, error) {
	ctx = context.WithoutCancel(ctx)
	l, err := lead.ParseForm(form)
	if err != nil {
		s.logger.Warn("lead rejected by validator", map[string]interface{}{
			"error":  err,
			"source": form.Source,
		})
		return Receipt{}, err
	}

	result := s.dispatcher.Dispatch(ctx, l)

	if s.handoff != nil {
		if err := s.handoff.Save(ctx, result.LeadID, l); err != nil {
			s.logger.Warn("failed to cache conversion handoff", map[string]interface{}{
				"leadId": result.LeadID,
				"error":  err,
			})
		}
	}

	next := NextCashOption
	if l.IsCrypto() {
		next = NextThankYou
	}

	return Receipt{
		LeadID: result.LeadID,
		Next:   next,
		Lead:   l,
		Result: result,
	}, nil
}
