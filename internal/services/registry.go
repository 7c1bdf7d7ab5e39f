package services

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/agentgov/internal/audit"
	"github.com/fyrsmithlabs/agentgov/internal/breaker"
	"github.com/fyrsmithlabs/agentgov/internal/config"
	"github.com/fyrsmithlabs/agentgov/internal/escalator"
	"github.com/fyrsmithlabs/agentgov/internal/hookchain"
	"github.com/fyrsmithlabs/agentgov/internal/policy"
	"github.com/fyrsmithlabs/agentgov/internal/static"
)

// Registry provides access to all agentgov services.
// Use accessor methods to retrieve individual services.
type Registry interface {
	Breaker() *breaker.Breaker
	Escalator() *escalator.Escalator
	Chain() *hookchain.Chain
	Checker() *static.Checker
	Policies() *policy.Store
	Audit() *audit.Recorder
	Config() *config.Config

	// Start launches background work (policy watching).
	Start(ctx context.Context) error
	// Close releases the registry's resources in reverse
	// dependency order.
	Close() error
}

// Options configures the registry with service instances.
type Options struct {
	Breaker   *breaker.Breaker
	Escalator *escalator.Escalator
	Chain     *hookchain.Chain
	Checker   *static.Checker
	Policies  *policy.Store
	Audit     *audit.Recorder
	Config    *config.Config
}

// registry is the concrete implementation of Registry.
type registry struct {
	breaker   *breaker.Breaker
	escalator *escalator.Escalator
	chain     *hookchain.Chain
	checker   *static.Checker
	policies  *policy.Store
	audit     *audit.Recorder
	config    *config.Config
}

// NewRegistry creates a new service registry.
func NewRegistry(opts Options) Registry {
	return &registry{
		breaker:   opts.Breaker,
		escalator: opts.Escalator,
		chain:     opts.Chain,
		checker:   opts.Checker,
		policies:  opts.Policies,
		audit:     opts.Audit,
		config:    opts.Config,
	}
}

func (r *registry) Breaker() *breaker.Breaker       { return r.breaker }
func (r *registry) Escalator() *escalator.Escalator { return r.escalator }
func (r *registry) Chain() *hookchain.Chain         { return r.chain }
func (r *registry) Checker() *static.Checker        { return r.checker }
func (r *registry) Policies() *policy.Store         { return r.policies }
func (r *registry) Audit() *audit.Recorder          { return r.audit }
func (r *registry) Config() *config.Config          { return r.config }

// Start begins policy file watching when configured. It returns
// once the watcher is running; watching stops when ctx is canceled.
func (r *registry) Start(ctx context.Context) error {
	if r.config != nil && r.config.Policy.Watch && r.policies != nil {
		if err := r.policies.Watch(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close shuts down the policy store and flushes audit sinks.
func (r *registry) Close() error {
	var errs []error
	if r.policies != nil {
		if err := r.policies.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.audit != nil {
		if err := r.audit.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
