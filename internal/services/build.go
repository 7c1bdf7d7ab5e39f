package services

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentgov/internal/audit"
	"github.com/fyrsmithlabs/agentgov/internal/breaker"
	"github.com/fyrsmithlabs/agentgov/internal/config"
	"github.com/fyrsmithlabs/agentgov/internal/escalator"
	"github.com/fyrsmithlabs/agentgov/internal/hookchain"
	"github.com/fyrsmithlabs/agentgov/internal/policy"
	"github.com/fyrsmithlabs/agentgov/internal/static"
)

// Build constructs the full service graph from configuration: the
// circuit breaker, retry escalator, static checker, policy store,
// audit recorder with its sinks, and the hook chain with the
// lifecycle hooks registered.
func Build(cfg *config.Config, logger *zap.Logger) (Registry, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	brk, err := breaker.New(cfg.Breaker, logger)
	if err != nil {
		return nil, fmt.Errorf("creating breaker: %w", err)
	}

	esc := escalator.New(&escalator.Config{
		MaxSameSignature: cfg.Escalator.MaxSameSignature,
	}, logger)

	checker, err := static.New(&cfg.Static, logger)
	if err != nil {
		return nil, fmt.Errorf("creating static checker: %w", err)
	}

	store := policy.NewStore(cfg.Policy.Dir, logger)

	sinks, err := buildSinks(cfg)
	if err != nil {
		return nil, err
	}
	recorder := audit.NewRecorder(logger, sinks...)

	chain := hookchain.New(logger)
	hooks := []hookchain.Hook{
		hookchain.NewPreRunHook(store, logger),
		hookchain.NewPreReviewHook(checker, logger),
		hookchain.NewPostReviewHook(recorder, logger),
		hookchain.NewStopHook(recorder, logger),
	}
	for _, h := range hooks {
		if err := chain.Register(h); err != nil {
			return nil, fmt.Errorf("registering hook %s: %w", h.Name(), err)
		}
	}

	return NewRegistry(Options{
		Breaker:   brk,
		Escalator: esc,
		Chain:     chain,
		Checker:   checker,
		Policies:  store,
		Audit:     recorder,
		Config:    cfg,
	}), nil
}

func buildSinks(cfg *config.Config) ([]audit.Sink, error) {
	fileSink, err := audit.NewFileSink(cfg.Audit.Path)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	sinks := []audit.Sink{fileSink}

	if cfg.Audit.NATS.Enabled {
		natsSink, err := audit.NewNATSSink(cfg.Audit.NATS.URL, cfg.Audit.NATS.SubjectPrefix)
		if err != nil {
			return nil, fmt.Errorf("connecting audit NATS sink: %w", err)
		}
		sinks = append(sinks, natsSink)
	}
	return sinks, nil
}
