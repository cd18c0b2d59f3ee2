package dispatchlead

import (
	"context"
	stderrors "errors"

	"lead-dispatch/internal/common/errors"
	"lead-dispatch/internal/common/logger"
	"lead-dispatch/internal/lead"
)

type Service struct {
	submitter LeadSubmitter
	logger    logger.Logger
	config    *Config
}

func NewService(deps ServiceDependencies, cfg *Config) *Service {
	return &Service{
		submitter: deps.Submitter,
		logger:    deps.Logger,
		config:    cfg,
	}
}

// Execute validates and dispatches one lead. Only validation problems are errors; a
// lead every sink failed on still completes.
func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	receipt, err := s.submitter.Submit(ctx, input.Form)
	if err != nil {
		var verr *lead.ValidationError
		if stderrors.As(err, &verr) {
			return nil, verr.Standard()
		}
		return nil, errors.NewValidationFailureError(err.Error())
	}

	outcomes := make(map[string]string, len(receipt.Result.Outcomes))
	for _, o := range receipt.Result.Outcomes {
		outcomes[o.Sink] = o.Result()
	}

	return &Output{
		LeadID:         receipt.LeadID,
		Next:           receipt.Next,
		PayoutMethod:   string(receipt.Lead.PayoutMethod),
		OverallSuccess: receipt.Result.OverallSuccess,
		Outcomes:       outcomes,
	}, nil
}
