// Package api is the HTTP intake used by the static landing page.
package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net"
	"net/http"

	"lead-dispatch/internal/common/logger"
	"lead-dispatch/internal/common/metrics"
	"lead-dispatch/internal/dispatch"
	"lead-dispatch/internal/handoff"
	"lead-dispatch/internal/lead"
	"lead-dispatch/internal/pixel"

	"github.com/go-chi/chi/v5"
)

const maxFormBytes = 16 << 10

// LeadSubmitter is satisfied by *dispatch.Submitter.
type LeadSubmitter interface {
	Submit(ctx context.Context, form lead.Form) (dispatch.Receipt, error)
}

// HandoffTaker is satisfied by *handoff.Store.
type HandoffTaker interface {
	Take(ctx context.Context, leadID string) (handoff.Payload, error)
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker func(ctx context.Context) error

type Handlers struct {
	submitter  LeadSubmitter
	handoff    HandoffTaker
	conversion pixel.Conversion
	checks     map[string]HealthChecker
	logger     logger.Logger
}

// NewHandlers builds the handlers. handoff may be nil, in which case the conversion
// endpoint always answers 204.
func NewHandlers(s LeadSubmitter, h HandoffTaker, conv pixel.Conversion, log logger.Logger) *Handlers {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Handlers{
		submitter:  s,
		handoff:    h,
		conversion: conv,
		checks:     make(map[string]HealthChecker),
		logger:     log,
	}
}

// AddHealthCheck registers a dependency reported by /health.
func (h *Handlers) AddHealthCheck(name string, check HealthChecker) {
	h.checks[name] = check
}

type submitResponse struct {
	Success bool   `json:"success"`
	LeadID  string `json:"leadId"`
	Next    string `json:"next"`
}

type errorResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Fields  []lead.FieldError `json:"fields,omitempty"`
}

// SubmitLead handles POST /api/leads.
func (h *Handlers) SubmitLead(w http.ResponseWriter, r *http.Request) {
	var form lead.Form
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBytes))
	if err := dec.Decode(&form); err != nil {
		metrics.LeadsRejected.WithLabelValues("http").Inc()
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}
	form.Tracking = trackingFrom(r)

	receipt, err := h.submitter.Submit(r.Context(), form)
	if err != nil {
		var verr *lead.ValidationError
		if !stderrors.As(err, &verr) {
			h.logger.Error("lead submission failed", map[string]interface{}{"error": err})
			respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
			return
		}
		metrics.LeadsRejected.WithLabelValues("http").Inc()
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: verr.Fields})
		return
	}

	respondJSON(w, http.StatusAccepted, submitResponse{
		Success: true,
		LeadID:  receipt.LeadID,
		Next:    receipt.Next,
	})
}

type conversionResponse struct {
	LeadID string        `json:"leadId"`
	Events []pixel.Event `json:"events"`
}

// TakeConversion handles GET /api/leads/{id}/conversion. The handoff is consumed, so a
// second call for the same lead answers 204.
func (h *Handlers) TakeConversion(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "id")
	if h.handoff == nil || leadID == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	payload, err := h.handoff.Take(r.Context(), leadID)
	if err != nil {
		if !stderrors.Is(err, handoff.ErrNotFound) {
			h.logger.Warn("failed to take conversion handoff", map[string]interface{}{
				"leadId": leadID,
				"error":  err,
			})
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	collector := &pixel.Collector{}
	emitter := pixel.NewEmitter(h.logger).
		Register(pixel.ManagerFacebook, collector).
		Register(pixel.ManagerGoogle, collector)
	emitter.EmitAll(r.Context(), pixel.BuildConversionEvents(payload.Lead(), payload.LeadID, h.conversion))

	events := collector.Events()
	if len(events) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondJSON(w, http.StatusOK, conversionResponse{LeadID: payload.LeadID, Events: events})
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(r.Context()); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}
	respondJSON(w, status, map[string]interface{}{"status": state, "dependencies": deps})
}

func trackingFrom(r *http.Request) lead.Tracking {
	// RemoteAddr is host:port from the listener, or a bare IP once RealIP rewrote it.
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return lead.Tracking{
		UserAgent: r.UserAgent(),
		IPAddress: ip,
		SessionID: r.Header.Get("X-Session-Id"),
	}
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
