package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lead-dispatch/internal/common/logger"
	"lead-dispatch/internal/dispatch"
	"lead-dispatch/internal/handoff"
	"lead-dispatch/internal/lead"
	"lead-dispatch/internal/pixel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mocks
// ==========================

type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) Submit(ctx context.Context, form lead.Form) (dispatch.Receipt, error) {
	args := m.Called(ctx, form)
	return args.Get(0).(dispatch.Receipt), args.Error(1)
}

type MockHandoff struct {
	mock.Mock
}

func (m *MockHandoff) Take(ctx context.Context, leadID string) (handoff.Payload, error) {
	args := m.Called(ctx, leadID)
	return args.Get(0).(handoff.Payload), args.Error(1)
}

var conv = pixel.Conversion{Value: 15, Currency: "USD", CryptoOnly: true}

func newTestRouter(t *testing.T, s LeadSubmitter, h HandoffTaker) http.Handler {
	t.Helper()
	handlers := NewHandlers(s, h, conv, logger.NewTestLogger(t))
	return NewRouter(handlers, []string{"https://cars-vault.com"})
}

const validBody = `{
	"name": "Ahmed Ali",
	"phone": "+971501234567",
	"email": "a@x.com",
	"city": "Dubai",
	"brand": "BMW",
	"model": "X5",
	"payoutMethod": "crypto",
	"cryptoToken": "USDT",
	"source": "hero_form"
}`

// ==========================
// POST /api/leads
// ==========================

func TestSubmitLead_Accepted(t *testing.T) {
	sub := new(MockSubmitter)
	sub.On("Submit", mock.Anything, mock.MatchedBy(func(f lead.Form) bool {
		return f.Name == "Ahmed Ali" &&
			f.Tracking.UserAgent == "Mozilla/5.0" &&
			f.Tracking.IPAddress == "203.0.113.7" &&
			f.Tracking.SessionID == "sess-1"
	})).Return(dispatch.Receipt{LeadID: "42", Next: dispatch.NextThankYou}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader(validBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("X-Real-IP", "203.0.113.7")
	req.Header.Set("X-Session-Id", "sess-1")
	rec := httptest.NewRecorder()

	newTestRouter(t, sub, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	var resp submitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "42", resp.LeadID)
	assert.Equal(t, "/thank-you", resp.Next)
	sub.AssertExpectations(t)
}

func TestSubmitLead_Rejected(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		submitErr  error
		wantStatus int
		wantFields int
	}{
		{
			name:       "validation error lists fields",
			body:       validBody,
			submitErr:  &lead.ValidationError{Fields: []lead.FieldError{{Field: "phone", Message: "invalid"}}},
			wantStatus: http.StatusBadRequest,
			wantFields: 1,
		},
		{
			name:       "malformed body",
			body:       `{"name":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "schema failure is a server error",
			body:       validBody,
			submitErr:  stderrors.New("form schema: bad pattern"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := new(MockSubmitter)
			if tt.submitErr != nil {
				sub.On("Submit", mock.Anything, mock.Anything).Return(dispatch.Receipt{}, tt.submitErr)
			}

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader(tt.body))
			newTestRouter(t, sub, nil).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Len(t, resp.Fields, tt.wantFields)
			sub.AssertExpectations(t)
		})
	}
}

func TestSubmitLead_RealSubmitterIgnoresSinkFailures(t *testing.T) {
	// Every sink failing must still be a 202 for the visitor.
	c := dispatch.NewCoordinator(dispatch.Options{Sinks: []dispatch.Sink{downSink{}}})
	s := dispatch.NewSubmitter(c, nil, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader(validBody))
	newTestRouter(t, s, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"next":"/thank-you"`)
}

type downSink struct{}

func (downSink) Name() string          { return "down" }
func (downSink) Stage() dispatch.Stage { return dispatch.StageStore }
func (downSink) Deliver(context.Context, lead.Lead, dispatch.DeliveryContext) dispatch.Outcome {
	return dispatch.Outcome{Sink: "down", Detail: "connection refused"}
}

// ==========================
// GET /api/leads/{id}/conversion
// ==========================

func TestTakeConversion(t *testing.T) {
	cryptoPayload := handoff.Payload{LeadID: "42", Brand: "BMW", Model: "X5", PayoutMethod: lead.PayoutCrypto, CryptoToken: "USDT"}
	cashPayload := handoff.Payload{LeadID: "43", Brand: "Audi", Model: "Q7", PayoutMethod: lead.PayoutCash}

	tests := []struct {
		name       string
		leadID     string
		payload    handoff.Payload
		takeErr    error
		wantStatus int
		wantEvents int
	}{
		{name: "crypto lead fires lead and ads events", leadID: "42", payload: cryptoPayload, wantStatus: http.StatusOK, wantEvents: 2},
		{name: "cash lead has no conversion", leadID: "43", payload: cashPayload, wantStatus: http.StatusNoContent},
		{name: "already taken", leadID: "44", takeErr: handoff.ErrNotFound, wantStatus: http.StatusNoContent},
		{name: "redis down", leadID: "45", takeErr: stderrors.New("connection refused"), wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := new(MockHandoff)
			h.On("Take", mock.Anything, tt.leadID).Return(tt.payload, tt.takeErr).Once()

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/leads/"+tt.leadID+"/conversion", nil)
			newTestRouter(t, new(MockSubmitter), h).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantEvents > 0 {
				var resp conversionResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				require.Len(t, resp.Events, tt.wantEvents)
				assert.Equal(t, pixel.EventLead, resp.Events[0].Name)
				assert.Equal(t, "BMW X5 Crypto Valuation Lead", resp.Events[0].Params["content_name"])
				assert.Equal(t, pixel.AdsSendTo, resp.Events[1].Params["send_to"])
			}
			h.AssertExpectations(t)
		})
	}
}

func TestTakeConversion_NoHandoffStore(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/leads/42/conversion", nil)
	newTestRouter(t, new(MockSubmitter), nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

// ==========================
// Health, metrics, CORS
// ==========================

func TestHealth(t *testing.T) {
	handlers := NewHandlers(new(MockSubmitter), nil, conv, nil)
	handlers.AddHealthCheck("redis", func(context.Context) error { return nil })
	router := NewRouter(handlers, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"ok"`)

	handlers.AddHealthCheck("elasticsearch", func(context.Context) error { return stderrors.New("no route to host") })
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")
}

func TestMetricsEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t, new(MockSubmitter), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/leads", nil)
	req.Header.Set("Origin", "https://cars-vault.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()

	newTestRouter(t, new(MockSubmitter), nil).ServeHTTP(rec, req)

	assert.Equal(t, "https://cars-vault.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
