package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"travel-monitor/models"
	"travel-monitor/scraper/tfs"
	"travel-monitor/utils"
)

var (
	// ErrNoData marks a provider that answered without a usable price.
	ErrNoData = errors.New("no usable price")
	// ErrProviderPanic marks a provider that panicked.
	ErrProviderPanic = errors.New("provider panicked")
)

// Provider is one price source for a transport type. A nil result with a
// nil error means the page was read but yielded no price.
type Provider interface {
	Name() string
	Attempt(ctx context.Context, q models.Query) (*models.ProviderResult, error)
}

// FailureKind classifies a provider failure.
type FailureKind string

const (
	FailureTransient FailureKind = "transient"
	FailureNoData    FailureKind = "no-data"
	FailureMisuse    FailureKind = "misuse"
	FailureCanceled  FailureKind = "canceled"
)

// ProviderFailure records why one provider did not produce a price.
type ProviderFailure struct {
	Provider string
	Kind     FailureKind
	Err      error
}

func (f ProviderFailure) Error() string {
	return fmt.Sprintf("%s (%s): %v", f.Provider, f.Kind, f.Err)
}

func (f ProviderFailure) Unwrap() error { return f.Err }

// State is a step of one discovery.
type State string

const (
	StatePending   State = "PENDING"
	StateSuccess   State = "SUCCESS"
	StateExhausted State = "EXHAUSTED"
)

// TryState is the state of trying the n-th provider, counting from 1.
func TryState(n int) State {
	return State(fmt.Sprintf("PROVIDER_%d_TRY", n))
}

// Outcome is the result of one discovery. Observation is always set:
// priced on SUCCESS, unpriced on EXHAUSTED.
type Outcome struct {
	State       State
	Trace       []State
	Provider    string
	Observation models.PriceObservation
	Failures    []ProviderFailure
}

// Canceled reports whether discovery stopped because ctx ended.
func (o Outcome) Canceled() bool {
	for _, f := range o.Failures {
		if f.Kind == FailureCanceled {
			return true
		}
	}
	return false
}

// Orchestrator tries an ordered list of providers until one yields a price.
type Orchestrator struct {
	providers []Provider
	logger    *utils.Logger
	now       func() time.Time
}

// NewOrchestrator builds an orchestrator over providers, tried in order.
func NewOrchestrator(logger *utils.Logger, providers ...Provider) *Orchestrator {
	return &Orchestrator{providers: providers, logger: logger, now: time.Now}
}

// Providers returns the provider names in trial order.
func (o *Orchestrator) Providers() []string {
	names := make([]string, len(o.providers))
	for i, p := range o.providers {
		names[i] = p.Name()
	}
	return names
}

// Discover runs the fallback chain for q. Each failure is logged once with
// the provider's name. Cancellation stops the chain immediately.
func (o *Orchestrator) Discover(ctx context.Context, q models.Query) Outcome {
	out := Outcome{State: StatePending, Trace: []State{StatePending}}

	for i, p := range o.providers {
		name := p.Name()
		if err := ctx.Err(); err != nil {
			out.Failures = append(out.Failures, ProviderFailure{Provider: name, Kind: FailureCanceled, Err: err})
			break
		}

		out.State = TryState(i + 1)
		out.Trace = append(out.Trace, out.State)

		r, err := attempt(ctx, p, q)
		if err == nil && r != nil && r.Price > 0 {
			out.State = StateSuccess
			out.Trace = append(out.Trace, StateSuccess)
			out.Provider = name
			out.Observation = models.NewObservation(q, r, name, o.now())
			return out
		}

		f := classify(ctx, name, err)
		out.Failures = append(out.Failures, f)
		if f.Kind == FailureNoData {
			o.logger.Info("      %s: %s", name, f.Err)
		} else {
			o.logger.Warn("      %s failed (%s): %v", name, f.Kind, f.Err)
		}
		if f.Kind == FailureCanceled {
			break
		}
	}

	out.State = StateExhausted
	out.Trace = append(out.Trace, StateExhausted)
	out.Observation = models.NewObservation(q, nil, "", o.now())
	return out
}

func attempt(ctx context.Context, p Provider, q models.Query) (r *models.ProviderResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r, err = nil, fmt.Errorf("%w: %v", ErrProviderPanic, rec)
		}
	}()
	return p.Attempt(ctx, q)
}

func classify(ctx context.Context, provider string, err error) ProviderFailure {
	f := ProviderFailure{Provider: provider, Err: err}
	switch {
	case err == nil:
		f.Kind, f.Err = FailureNoData, ErrNoData
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		f.Kind = FailureCanceled
	case errors.Is(err, tfs.ErrInvalidParams), errors.Is(err, ErrProviderPanic):
		f.Kind = FailureMisuse
	default:
		f.Kind = FailureTransient
	}
	return f
}
