package rag

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	name  string
	text  string
	err   error
	delay time.Duration
	calls int
}

func (f *fakeGenerator) Name() string { return f.name }

func (f *fakeGenerator) Generate(ctx context.Context, _ GenerateRequest) (string, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

type statusErr struct {
	status    int
	retryable bool
}

func (e statusErr) Error() string   { return "provider returned error" }
func (e statusErr) Retryable() bool { return e.retryable }

type recordingAlerter struct {
	mu     sync.Mutex
	alerts []Alert
}

func (r *recordingAlerter) Alert(_ context.Context, a Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
}

func testPlans(timeout, attempt time.Duration) []GenerationPlan {
	return []GenerationPlan{{
		Operation:      OperationConsultation,
		Providers:      []string{"primary", "secondary", "tertiary"},
		Timeout:        timeout,
		AttemptTimeout: attempt,
	}}
}

func TestOrchestratorPrimarySucceeds(t *testing.T) {
	primary := &fakeGenerator{name: "primary", text: "réponse"}
	secondary := &fakeGenerator{name: "secondary", text: "autre"}
	o := NewOrchestrator([]Generator{primary, secondary}, testPlans(time.Second, time.Second), true, nil)

	out, err := o.Run(context.Background(), "", GenerateRequest{Prompt: "p"})

	require.NoError(t, err)
	assert.Equal(t, "réponse", out.Text)
	assert.Equal(t, "primary", out.Provider)
	assert.Equal(t, OutcomeSucceeded, out.Status)
	assert.Equal(t, 0, secondary.calls)
}

func TestOrchestratorCascadesOnRetryable(t *testing.T) {
	primary := &fakeGenerator{name: "primary", err: statusErr{status: 429, retryable: true}}
	secondary := &fakeGenerator{name: "secondary", err: statusErr{status: 503, retryable: true}}
	tertiary := &fakeGenerator{name: "tertiary", text: "ok"}
	o := NewOrchestrator([]Generator{primary, secondary, tertiary}, testPlans(time.Second, time.Second), true, nil)

	out, err := o.Run(context.Background(), OperationConsultation, GenerateRequest{})

	require.NoError(t, err)
	assert.Equal(t, "tertiary", out.Provider)
	require.Len(t, out.Attempts, 3)
	assert.True(t, out.Attempts[0].Retryable)
	assert.False(t, out.Attempts[0].Success)
	assert.True(t, out.Attempts[2].Success)
}

func TestOrchestratorStopsOnNonRetryable(t *testing.T) {
	primary := &fakeGenerator{name: "primary", err: statusErr{status: 401}}
	secondary := &fakeGenerator{name: "secondary", text: "ok"}
	o := NewOrchestrator([]Generator{primary, secondary}, testPlans(time.Second, time.Second), true, nil)

	out, err := o.Run(context.Background(), OperationConsultation, GenerateRequest{})

	require.Error(t, err)
	assert.Equal(t, CodeProviderUnavailable, CodeOf(err))
	assert.Equal(t, OutcomeExhausted, out.Status)
	assert.Equal(t, 0, secondary.calls)
}

func TestOrchestratorExhausted(t *testing.T) {
	primary := &fakeGenerator{name: "primary", err: errors.New("boom")}
	secondary := &fakeGenerator{name: "secondary", text: ""}
	o := NewOrchestrator([]Generator{primary, secondary}, testPlans(time.Second, time.Second), true, nil)

	out, err := o.Run(context.Background(), OperationConsultation, GenerateRequest{})

	assert.Equal(t, CodeAllProvidersUnavailable, CodeOf(err))
	assert.ErrorIs(t, err, ErrAllProvidersUnavailable)
	assert.Len(t, out.Attempts, 2)
}

func TestOrchestratorAttemptTimeoutCascades(t *testing.T) {
	primary := &fakeGenerator{name: "primary", text: "late", delay: time.Second}
	secondary := &fakeGenerator{name: "secondary", text: "on time"}
	o := NewOrchestrator([]Generator{primary, secondary}, testPlans(time.Second, 20*time.Millisecond), true, nil)

	out, err := o.Run(context.Background(), OperationConsultation, GenerateRequest{})

	require.NoError(t, err)
	assert.Equal(t, "secondary", out.Provider)
	assert.True(t, out.Attempts[0].Retryable)
}

func TestOrchestratorOverallTimeout(t *testing.T) {
	primary := &fakeGenerator{name: "primary", text: "late", delay: time.Second}
	secondary := &fakeGenerator{name: "secondary", text: "late", delay: time.Second}
	o := NewOrchestrator([]Generator{primary, secondary}, testPlans(30*time.Millisecond, time.Second), true, nil)

	_, err := o.Run(context.Background(), OperationConsultation, GenerateRequest{})

	require.Error(t, err)
	assert.Equal(t, CodeTimeout, CodeOf(err))
	assert.ErrorIs(t, err, ErrTimeout)
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 504, pe.HTTPStatus())
	assert.Equal(t, 0, secondary.calls)
}

func TestOrchestratorNoFallbackAlerts(t *testing.T) {
	primary := &fakeGenerator{name: "primary", err: statusErr{status: 500, retryable: true}}
	secondary := &fakeGenerator{name: "secondary", text: "ok"}
	alerter := &recordingAlerter{}
	o := NewOrchestrator([]Generator{primary, secondary}, testPlans(time.Second, time.Second), false, alerter)

	_, err := o.Run(context.Background(), OperationConsultation, GenerateRequest{})

	require.Error(t, err)
	assert.Equal(t, CodeAllProvidersUnavailable, CodeOf(err))
	assert.Equal(t, 0, secondary.calls)
	require.Len(t, alerter.alerts, 1)
	assert.Equal(t, "primary", alerter.alerts[0].Provider)
}

func TestOrchestratorNoFallbackTimeout(t *testing.T) {
	primary := &fakeGenerator{name: "primary", text: "late", delay: time.Second}
	secondary := &fakeGenerator{name: "secondary", text: "ok"}
	o := NewOrchestrator([]Generator{primary, secondary}, testPlans(400*time.Millisecond, 100*time.Millisecond), false, &recordingAlerter{})

	out, err := o.Run(context.Background(), OperationConsultation, GenerateRequest{})

	require.Error(t, err)
	assert.Equal(t, CodeTimeout, CodeOf(err))
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 504, pe.HTTPStatus())
	require.Len(t, out.Attempts, 1)
	assert.GreaterOrEqual(t, out.Attempts[0].Duration, 300*time.Millisecond)
	assert.Equal(t, 0, secondary.calls)
}

func TestOrchestratorNoFallbackUsesPlanBudget(t *testing.T) {
	primary := &fakeGenerator{name: "primary", text: "slow but on time", delay: 200 * time.Millisecond}
	o := NewOrchestrator([]Generator{primary}, testPlans(time.Second, 100*time.Millisecond), false, &recordingAlerter{})

	out, err := o.Run(context.Background(), OperationConsultation, GenerateRequest{})

	require.NoError(t, err)
	assert.Equal(t, "slow but on time", out.Text)
}

func TestOrchestratorLastProviderTimeout(t *testing.T) {
	primary := &fakeGenerator{name: "primary", err: statusErr{status: 503, retryable: true}}
	secondary := &fakeGenerator{name: "secondary", text: "late", delay: time.Second}
	o := NewOrchestrator([]Generator{primary, secondary}, testPlans(300*time.Millisecond, 50*time.Millisecond), true, nil)

	out, err := o.Run(context.Background(), OperationConsultation, GenerateRequest{})

	require.Error(t, err)
	assert.Equal(t, CodeTimeout, CodeOf(err))
	assert.ErrorIs(t, err, ErrTimeout)
	require.Len(t, out.Attempts, 2)
	assert.GreaterOrEqual(t, out.Attempts[1].Duration, 200*time.Millisecond)
}

func TestOrchestratorUnknownOperation(t *testing.T) {
	o := NewOrchestrator(nil, testPlans(time.Second, time.Second), true, nil)
	_, err := o.Run(context.Background(), "drafting", GenerateRequest{})
	assert.Error(t, err)

	_, err = o.Run(context.Background(), OperationConsultation, GenerateRequest{})
	assert.Equal(t, CodeAllProvidersUnavailable, CodeOf(err))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.True(t, IsRetryable(errors.New("connection reset")))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(statusErr{status: 400}))
	assert.True(t, IsRetryable(statusErr{status: 429, retryable: true}))
	assert.False(t, IsRetryable(nil))
}
