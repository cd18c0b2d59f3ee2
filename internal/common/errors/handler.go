package errors

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// JobErrorHandler turns worker errors into Zeebe fail or throw commands.
type JobErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewJobErrorHandler(logger Logger) *JobErrorHandler {
	return &JobErrorHandler{logger: logger}
}

// HandleJobError fails the job with retries for transient errors and throws a BPMN
// error for everything else.
func (h *JobErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := normalize(err)
	bpmnErr := ConvertToBPMNError(stdErr)

	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":           job.GetKey(),
		"jobType":          job.GetType(),
		"errorCode":        string(stdErr.Code),
		"bpmnErrorCode":    bpmnErr.Code,
		"message":          bpmnErr.Message,
		"details":          stdErr.Details,
		"retries":          bpmnErr.Retries,
		"workflowInstance": job.GetProcessInstanceKey(),
	})

	vars := bpmnErr.ToErrorVariables()

	if bpmnErr.Retries > 0 && job.GetRetries() > 0 {
		retries := bpmnErr.Retries
		if int(job.GetRetries()) < retries {
			retries = int(job.GetRetries())
		}
		cmd := client.NewFailJobCommand().
			JobKey(job.GetKey()).
			Retries(int32(retries - 1)).
			ErrorMessage(bpmnErr.Message)
		if withVars, varErr := cmd.VariablesFromMap(vars); varErr == nil {
			_, err = withVars.Send(ctx)
		} else {
			_, err = cmd.Send(ctx)
		}
	} else {
		cmd := client.NewThrowErrorCommand().
			JobKey(job.GetKey()).
			ErrorCode(bpmnErr.Code).
			ErrorMessage(bpmnErr.Message)
		if withVars, varErr := cmd.VariablesFromMap(vars); varErr == nil {
			_, err = withVars.Send(ctx)
		} else {
			_, err = cmd.Send(ctx)
		}
	}

	if err != nil {
		h.logger.Error("failed to report job error to zeebe", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
	}
}

func normalize(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}
