package dispatch

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"lead-dispatch/internal/common/errors"
	"lead-dispatch/internal/common/logger"
	"lead-dispatch/internal/common/metrics"
	"lead-dispatch/internal/lead"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test doubles
// ==========================

type stubSink struct {
	name    string
	stage   Stage
	deliver func(ctx context.Context, l lead.Lead, dc DeliveryContext) Outcome

	calls atomic.Int32
	mu    sync.Mutex
	seen  []lead.Lead
	dcs   []DeliveryContext
}

func (s *stubSink) Name() string   { return s.name }
func (s *stubSink) Stage() Stage   { return s.stage }
func (s *stubSink) Target() string { return "stub://" + s.name }

func (s *stubSink) Deliver(ctx context.Context, l lead.Lead, dc DeliveryContext) Outcome {
	s.calls.Add(1)
	s.mu.Lock()
	s.seen = append(s.seen, l)
	s.dcs = append(s.dcs, dc)
	s.mu.Unlock()
	if s.deliver == nil {
		return Succeeded(s.name, "")
	}
	return s.deliver(ctx, l, dc)
}

func (s *stubSink) lastContext() DeliveryContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dcs[len(s.dcs)-1]
}

type markingStore struct {
	stubSink
	markErr error
	marked  []string
	markMu  sync.Mutex
}

func (m *markingStore) MarkNotified(ctx context.Context, externalID string) error {
	m.markMu.Lock()
	defer m.markMu.Unlock()
	m.marked = append(m.marked, externalID)
	return m.markErr
}

type flaggingNotifier struct {
	stubSink
}

func (f *flaggingNotifier) FlagsNotified() bool { return true }

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordFailure(ctx context.Context, l lead.Lead, dc DeliveryContext, o Outcome) error {
	args := m.Called(ctx, l, dc, o)
	return args.Error(0)
}

func ahmed() lead.Lead {
	return lead.Lead{
		Name:         "Ahmed Ali",
		Phone:        "+971501234567",
		Email:        "a@x.com",
		City:         "Dubai",
		Brand:        "BMW",
		Model:        "X5",
		PayoutMethod: lead.PayoutCrypto,
		CryptoToken:  "USDT",
		Source:       "hero_form",
	}
}

func hang(ctx context.Context, _ lead.Lead, _ DeliveryContext) Outcome {
	select {}
}

func newTestCoordinator(t *testing.T, timeout time.Duration, sinks ...Sink) *Coordinator {
	return NewCoordinator(Options{
		Sinks:   sinks,
		Timeout: timeout,
		Logger:  logger.NewTestLogger(t),
	})
}

// ==========================
// Scenarios
// ==========================

func TestDispatch_StoreSucceedsChatFails(t *testing.T) {
	store := &stubSink{name: "store", stage: StageStore, deliver: func(context.Context, lead.Lead, DeliveryContext) Outcome {
		return Succeeded("store", "abc-123")
	}}
	chat := &stubSink{name: "chat", stage: StageNotify, deliver: func(context.Context, lead.Lead, DeliveryContext) Outcome {
		return Failed("chat", stderrors.New("network error"))
	}}

	result := newTestCoordinator(t, time.Second, store, chat).Dispatch(context.Background(), ahmed())

	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, "store", result.Outcomes[0].Sink)
	assert.True(t, result.Outcomes[0].Success)
	assert.Equal(t, "abc-123", result.Outcomes[0].ExternalID)
	assert.Equal(t, "chat", result.Outcomes[1].Sink)
	assert.False(t, result.Outcomes[1].Success)
	assert.Equal(t, "network error", result.Outcomes[1].Detail)
	assert.True(t, result.OverallSuccess)
	assert.Equal(t, "abc-123", result.LeadID)
}

func TestDispatch_CompletesWhenEverySinkHangs(t *testing.T) {
	sinks := []Sink{
		&stubSink{name: "store", stage: StageStore, deliver: hang},
		&stubSink{name: "chat", stage: StageNotify, deliver: hang},
		&stubSink{name: "capi", stage: StageConvert, deliver: hang},
		&stubSink{name: "stape", stage: StageConvert, deliver: hang},
	}
	c := newTestCoordinator(t, 50*time.Millisecond, sinks...)

	done := make(chan DispatchResult, 1)
	go func() { done <- c.Dispatch(context.Background(), ahmed()) }()

	select {
	case result := <-done:
		require.Len(t, result.Outcomes, 4)
		for _, o := range result.Outcomes {
			assert.False(t, o.Success, o.Sink)
			assert.Equal(t, errors.ErrCodeTimeout, o.Code, o.Sink)
			assert.Contains(t, o.Detail, "timeout")
		}
		assert.True(t, result.OverallSuccess)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch did not complete")
	}
}

func TestDispatch_EveryFailureModeIsContained(t *testing.T) {
	sinks := []Sink{
		&stubSink{name: "panics", stage: StageStore, deliver: func(context.Context, lead.Lead, DeliveryContext) Outcome {
			panic("boom")
		}},
		&stubSink{name: "errors", stage: StageNotify, deliver: func(context.Context, lead.Lead, DeliveryContext) Outcome {
			return Failed("errors", errors.NewStatusError("errors", 502, "bad gateway"))
		}},
		&stubSink{name: "empty", stage: StageNotify, deliver: func(context.Context, lead.Lead, DeliveryContext) Outcome {
			return Outcome{}
		}},
		&stubSink{name: "ok", stage: StageConvert},
	}

	result := newTestCoordinator(t, time.Second, sinks...).Dispatch(context.Background(), ahmed())

	require.Len(t, result.Outcomes, 4)
	assert.Equal(t, errors.ErrCodeSinkPanic, result.Outcomes[0].Code)
	assert.Contains(t, result.Outcomes[0].Detail, "boom")
	assert.Equal(t, errors.ErrCodeTransportFailure, result.Outcomes[1].Code)
	assert.Contains(t, result.Outcomes[1].Detail, "status 502")
	assert.Equal(t, "empty", result.Outcomes[2].Sink)
	assert.Equal(t, "delivery failed", result.Outcomes[2].Detail)
	assert.True(t, result.Outcomes[3].Success)
}

func TestDispatch_ExactlyOneAttemptPerSink(t *testing.T) {
	store := &markingStore{stubSink: stubSink{name: "store", stage: StageStore, deliver: func(context.Context, lead.Lead, DeliveryContext) Outcome {
		return Succeeded("store", "row-1")
	}}}
	chat := &flaggingNotifier{stubSink{name: "chat", stage: StageNotify}}
	capi := &stubSink{name: "capi", stage: StageConvert}
	stape := &stubSink{name: "stape", stage: StageConvert}

	newTestCoordinator(t, time.Second, store, chat, capi, stape).Dispatch(context.Background(), ahmed())

	for _, s := range []*stubSink{&store.stubSink, &chat.stubSink, capi, stape} {
		assert.Equal(t, int32(1), s.calls.Load(), s.name)
	}
	assert.Equal(t, []string{"row-1"}, store.marked)
}

func TestDispatch_UnconfiguredStoreStillDispatchesOthers(t *testing.T) {
	store := &stubSink{name: "store", stage: StageStore, deliver: func(context.Context, lead.Lead, DeliveryContext) Outcome {
		return Skip("store", "api_key")
	}}
	chat := &stubSink{name: "chat", stage: StageNotify}
	capi := &stubSink{name: "capi", stage: StageConvert}

	c := NewCoordinator(Options{
		Sinks:   []Sink{store, chat, capi},
		Timeout: time.Second,
		Logger:  logger.NewTestLogger(t),
		NewID:   func() string { return "lead_fallback" },
	})
	result := c.Dispatch(context.Background(), ahmed())

	require.Len(t, result.Outcomes, 3)
	assert.True(t, result.Outcomes[0].Skipped)
	assert.False(t, result.Outcomes[0].Success)
	assert.Equal(t, "not configured", result.Outcomes[0].Detail)
	assert.True(t, result.Outcomes[1].Success)
	assert.True(t, result.Outcomes[2].Success)

	assert.Equal(t, "lead_fallback", result.LeadID)
	dc := capi.lastContext()
	assert.Empty(t, dc.ExternalID)
	assert.Equal(t, "lead_fallback", dc.EventID)
}

func TestDispatch_DefaultFallbackID(t *testing.T) {
	result := newTestCoordinator(t, time.Second, &stubSink{name: "chat", stage: StageNotify}).
		Dispatch(context.Background(), ahmed())

	assert.True(t, strings.HasPrefix(result.LeadID, "lead_"))
}

func TestDispatch_StoreIDReachesLaterStages(t *testing.T) {
	store := &stubSink{name: "store", stage: StageStore, deliver: func(context.Context, lead.Lead, DeliveryContext) Outcome {
		return Succeeded("store", "abc-123")
	}}
	chat := &stubSink{name: "chat", stage: StageNotify}
	capi := &stubSink{name: "capi", stage: StageConvert}

	newTestCoordinator(t, time.Second, capi, chat, store).Dispatch(context.Background(), ahmed())

	assert.Empty(t, store.lastContext().EventID)
	assert.Equal(t, "abc-123", chat.lastContext().ExternalID)
	assert.Equal(t, "abc-123", capi.lastContext().EventID)
	assert.False(t, capi.lastContext().SubmittedAt.IsZero())
}

func TestDispatch_MarkNotified(t *testing.T) {
	tests := []struct {
		name       string
		chatOK     bool
		alertOK    bool
		markErr    error
		wantMarked []string
	}{
		{"chat succeeded", true, false, nil, []string{"row-9"}},
		{"chat failed", false, false, nil, nil},
		{"chat failed, alert succeeded", false, true, nil, nil},
		{"mark fails only warns", true, true, stderrors.New("patch failed"), []string{"row-9"}},
	}

	notifier := func(name string, ok bool) func(context.Context, lead.Lead, DeliveryContext) Outcome {
		return func(context.Context, lead.Lead, DeliveryContext) Outcome {
			if ok {
				return Succeeded(name, "")
			}
			return Failed(name, stderrors.New("status 500: "))
		}
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &markingStore{
				stubSink: stubSink{name: "store", stage: StageStore, deliver: func(context.Context, lead.Lead, DeliveryContext) Outcome {
					return Succeeded("store", "row-9")
				}},
				markErr: tt.markErr,
			}
			chat := &flaggingNotifier{stubSink{name: "chat", stage: StageNotify, deliver: notifier("chat", tt.chatOK)}}
			alert := &stubSink{name: "alert", stage: StageNotify, deliver: notifier("alert", tt.alertOK)}

			result := newTestCoordinator(t, time.Second, store, chat, alert).Dispatch(context.Background(), ahmed())

			assert.Equal(t, tt.wantMarked, store.marked)
			assert.True(t, result.Outcomes[0].Success)
			assert.Equal(t, "row-9", result.Outcomes[0].ExternalID)
			assert.Equal(t, tt.alertOK, result.Outcomes[2].Success)
		})
	}
}

func TestDispatch_IgnoresCallerCancellation(t *testing.T) {
	var storeHits atomic.Int32
	store := &stubSink{name: "store", stage: StageStore, deliver: func(ctx context.Context, _ lead.Lead, _ DeliveryContext) Outcome {
		if ctx.Err() != nil {
			return Failed("store", errors.Classify("store", ctx.Err()))
		}
		storeHits.Add(1)
		return Succeeded("store", "abc-123")
	}}
	chat := &stubSink{name: "chat", stage: StageNotify}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := newTestCoordinator(t, time.Second, store, chat).Dispatch(ctx, ahmed())

	assert.Equal(t, int32(1), storeHits.Load())
	assert.Equal(t, "abc-123", result.LeadID)
	for _, o := range result.Outcomes {
		assert.True(t, o.Success, o.Sink)
		assert.Empty(t, o.Code, o.Sink)
	}
}

func TestDispatch_UnknownStageFails(t *testing.T) {
	stray := &stubSink{name: "stray", stage: Stage(7)}
	chat := &stubSink{name: "chat", stage: StageNotify}

	result := newTestCoordinator(t, time.Second, stray, chat).Dispatch(context.Background(), ahmed())

	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, "stray", result.Outcomes[0].Sink)
	assert.False(t, result.Outcomes[0].Success)
	assert.Equal(t, errors.ErrCodeUnknownStage, result.Outcomes[0].Code)
	assert.Equal(t, "stage 7", result.Outcomes[0].Detail)
	assert.Equal(t, int32(0), stray.calls.Load())
	assert.True(t, result.Outcomes[1].Success)
}

func TestDispatch_RequiredSinks(t *testing.T) {
	store := &stubSink{name: "store", stage: StageStore, deliver: func(context.Context, lead.Lead, DeliveryContext) Outcome {
		return Failed("store", stderrors.New("connection refused"))
	}}
	chat := &stubSink{name: "chat", stage: StageNotify}

	tests := []struct {
		name     string
		required []string
		want     bool
	}{
		{"none required", nil, true},
		{"succeeded sink required", []string{"chat"}, true},
		{"failed sink required", []string{"store"}, false},
		{"missing sink required", []string{"crm"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCoordinator(Options{
				Sinks:    []Sink{store, chat},
				Timeout:  time.Second,
				Required: tt.required,
				Logger:   logger.NewTestLogger(t),
			})
			assert.Equal(t, tt.want, c.Dispatch(context.Background(), ahmed()).OverallSuccess)
		})
	}
}

func TestDispatch_RecordsFailuresOnly(t *testing.T) {
	recorder := new(MockRecorder)
	recorder.On("RecordFailure", mock.Anything, mock.Anything, mock.Anything, mock.MatchedBy(func(o Outcome) bool {
		return o.Sink == "chat" && o.Detail == "network error"
	})).Return(stderrors.New("es down")).Once()

	store := &stubSink{name: "store", stage: StageStore, deliver: func(context.Context, lead.Lead, DeliveryContext) Outcome {
		return Skip("store", "url")
	}}
	chat := &stubSink{name: "chat", stage: StageNotify, deliver: func(context.Context, lead.Lead, DeliveryContext) Outcome {
		return Failed("chat", stderrors.New("network error"))
	}}
	capi := &stubSink{name: "capi", stage: StageConvert}

	c := NewCoordinator(Options{
		Sinks:    []Sink{store, chat, capi},
		Timeout:  time.Second,
		Logger:   logger.NewTestLogger(t),
		Recorder: recorder,
	})
	result := c.Dispatch(context.Background(), ahmed())

	assert.True(t, result.OverallSuccess)
	recorder.AssertExpectations(t)
	recorder.AssertNumberOfCalls(t, "RecordFailure", 1)
}

func TestDispatch_LeadIsNotShared(t *testing.T) {
	mutator := &stubSink{name: "mutator", stage: StageStore, deliver: func(_ context.Context, l lead.Lead, _ DeliveryContext) Outcome {
		l.Name = "changed"
		return Succeeded("mutator", "")
	}}
	reader := &stubSink{name: "reader", stage: StageNotify}

	original := ahmed()
	newTestCoordinator(t, time.Second, mutator, reader).Dispatch(context.Background(), original)

	assert.Equal(t, "Ahmed Ali", original.Name)
	assert.Equal(t, "Ahmed Ali", reader.seen[0].Name)
}

func TestOutcomeHelpers(t *testing.T) {
	assert.Equal(t, metrics.ResultSuccess, Succeeded("s", "1").Result())
	assert.Equal(t, metrics.ResultSkipped, Skip("s", "token").Result())
	assert.Equal(t, metrics.ResultFailure, Failed("s", stderrors.New("x")).Result())

	timeout := Failed("s", context.DeadlineExceeded)
	assert.Equal(t, errors.ErrCodeTimeout, timeout.Code)

	result := DispatchResult{Outcomes: []Outcome{Succeeded("a", "1")}}
	o, ok := result.Outcome("a")
	assert.True(t, ok)
	assert.Equal(t, "1", o.ExternalID)
	_, ok = result.Outcome("b")
	assert.False(t, ok)
}
