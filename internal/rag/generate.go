package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"legal-rag/internal/contextutil"
)

// GenerateRequest is a single completion request sent to a generator.
type GenerateRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// Generator is an LLM completion backend.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// Alert is raised when generation fails with no fallback allowed.
type Alert struct {
	Operation string
	Provider  string
	Reason    string
	Err       error
}

// Alerter notifies operators of terminal generation failures.
type Alerter interface {
	Alert(ctx context.Context, a Alert)
}

// LogAlerter reports alerts through the context logger.
type LogAlerter struct{}

// Alert implements Alerter.
func (LogAlerter) Alert(ctx context.Context, a Alert) {
	contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "generation failed without fallback",
		"operator_alert", true,
		"operation", a.Operation,
		"provider", a.Provider,
		"reason", a.Reason,
		"error", a.Err,
	)
}

// Attempt records one provider call made by the orchestrator.
type Attempt struct {
	Provider  string        `json:"provider"`
	Success   bool          `json:"success"`
	Retryable bool          `json:"retryable,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
}

// OutcomeStatus is the final state of a generation cascade.
type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeExhausted OutcomeStatus = "exhausted"
)

// GenerationOutcome is the result of Orchestrator.Run.
type GenerationOutcome struct {
	Text     string
	Provider string
	Attempts []Attempt
	Status   OutcomeStatus
}

// retryable is implemented by provider errors that know whether a retry elsewhere can help.
type retryable interface {
	Retryable() bool
}

// IsRetryable reports whether a failed attempt may cascade to the next provider. Timeouts and
// unclassified errors are retryable; provider errors decide for themselves.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return !errors.Is(err, context.Canceled)
}

// Orchestrator runs generation against an ordered provider list per operation.
type Orchestrator struct {
	generators map[string]Generator
	plans      map[string]GenerationPlan
	fallback   bool
	alerter    Alerter
}

// NewOrchestrator creates an orchestrator. Plans naming unknown generators skip them at run time.
func NewOrchestrator(generators []Generator, plans []GenerationPlan, fallback bool, alerter Alerter) *Orchestrator {
	byName := make(map[string]Generator, len(generators))
	for _, g := range generators {
		byName[g.Name()] = g
	}
	byOp := make(map[string]GenerationPlan, len(plans))
	for _, plan := range plans {
		byOp[plan.Operation] = plan
	}
	if alerter == nil {
		alerter = LogAlerter{}
	}
	return &Orchestrator{generators: byName, plans: byOp, fallback: fallback, alerter: alerter}
}

// attempts resolves the ordered attempt list for plan. Without fallback only the first available
// provider is used.
func (o *Orchestrator) attempts(plan GenerationPlan) []Generator {
	list := make([]Generator, 0, len(plan.Providers))
	for _, name := range plan.Providers {
		if g, ok := o.generators[name]; ok {
			list = append(list, g)
		}
	}
	if !o.fallback && len(list) > 1 {
		list = list[:1]
	}
	return list
}

// Run generates a completion for operation. The whole cascade runs under the plan timeout; each
// attempt that can still cascade runs under min(AttemptTimeout, remaining). The last attempt, and
// the single attempt without fallback, get the whole remaining budget.
func (o *Orchestrator) Run(ctx context.Context, operation string, req GenerateRequest) (GenerationOutcome, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if operation == "" {
		operation = OperationConsultation
	}
	plan, ok := o.plans[operation]
	if !ok {
		return GenerationOutcome{Status: OutcomeExhausted}, fmt.Errorf("unknown operation %q", operation)
	}

	list := o.attempts(plan)
	if len(list) == 0 {
		return GenerationOutcome{Status: OutcomeExhausted}, newError(ErrAllProvidersUnavailable, CodeAllProvidersUnavailable,
			fmt.Sprintf("no generator configured for operation %s", operation), nil)
	}

	runCtx := ctx
	if plan.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, plan.Timeout)
		defer cancel()
	}

	outcome := GenerationOutcome{Status: OutcomeExhausted}
	var lastErr error
	for i, gen := range list {
		if err := runCtx.Err(); err != nil {
			lastErr = err
			break
		}

		attemptCtx := runCtx
		cancel := func() {}
		if plan.AttemptTimeout > 0 && o.fallback && i < len(list)-1 {
			attemptCtx, cancel = context.WithTimeout(runCtx, plan.AttemptTimeout)
		}
		start := time.Now()
		text, err := gen.Generate(attemptCtx, req)
		cancel()

		attempt := Attempt{Provider: gen.Name(), Duration: time.Since(start)}
		if err == nil && text == "" {
			err = errors.New("empty completion")
		}
		if err == nil {
			attempt.Success = true
			outcome.Attempts = append(outcome.Attempts, attempt)
			outcome.Text = text
			outcome.Provider = gen.Name()
			outcome.Status = OutcomeSucceeded
			logger.InfoContext(ctx, "generation succeeded",
				"operation", operation,
				"provider", gen.Name(),
				"attempt", i+1,
				"duration", attempt.Duration,
			)
			return outcome, nil
		}

		attempt.Error = err.Error()
		attempt.Retryable = IsRetryable(err)
		outcome.Attempts = append(outcome.Attempts, attempt)
		lastErr = err

		logger.WarnContext(ctx, "generation attempt failed",
			"operation", operation,
			"provider", gen.Name(),
			"attempt", i+1,
			"retryable", attempt.Retryable,
			"error", err,
		)

		if !o.fallback {
			o.alerter.Alert(ctx, Alert{Operation: operation, Provider: gen.Name(), Reason: "fallback disabled", Err: err})
			break
		}
		if !attempt.Retryable {
			break
		}
	}

	if ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return outcome, newError(ErrTimeout, CodeTimeout,
			fmt.Sprintf("%s exceeded %s", operation, plan.Timeout), lastErr)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return outcome, newError(ErrTimeout, CodeTimeout, "request deadline exceeded during generation", lastErr)
	}
	if len(outcome.Attempts) > 0 && errors.Is(lastErr, context.DeadlineExceeded) {
		return outcome, newError(ErrTimeout, CodeTimeout,
			fmt.Sprintf("%s timed out on provider %s", operation, outcome.Attempts[len(outcome.Attempts)-1].Provider), lastErr)
	}
	if len(outcome.Attempts) < len(list) {
		return outcome, newError(ErrProviderUnavailable, CodeProviderUnavailable,
			fmt.Sprintf("generation stopped after %d of %d providers", len(outcome.Attempts), len(list)), lastErr)
	}
	return outcome, newError(ErrAllProvidersUnavailable, CodeAllProvidersUnavailable,
		fmt.Sprintf("all %d generation attempts failed", len(list)), lastErr)
}
