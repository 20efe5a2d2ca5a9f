package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/atlas-cli/internal/channel"
	"github.com/sells-group/atlas-cli/internal/config"
	"github.com/sells-group/atlas-cli/internal/connector"
	"github.com/sells-group/atlas-cli/internal/coordinator"
	"github.com/sells-group/atlas-cli/internal/daterange"
	"github.com/sells-group/atlas-cli/internal/funnel"
	"github.com/sells-group/atlas-cli/internal/insights"
	"github.com/sells-group/atlas-cli/internal/orchestrator"
	"github.com/sells-group/atlas-cli/internal/store"
	"github.com/sells-group/atlas-cli/internal/usage"
)

// appEnv holds the initialized pipeline needed by the serve/funnel/report
// commands.
type appEnv struct {
	Orchestrator *orchestrator.Orchestrator
	Store        store.Store
	Recorder     *usage.Memory
}

// Close releases resources held by the environment.
func (a *appEnv) Close() {
	if a.Store != nil {
		_ = a.Store.Close()
	}
}

// initApp validates config for the mode, opens the store and wires the
// orchestrator. Callers should defer env.Close().
func initApp(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	classifier, err := loadClassifier()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	registry := buildRegistry(cfg.Connectors)
	if len(registry) == 0 {
		_ = st.Close()
		return nil, eris.New("no connectors configured")
	}

	gen := insights.New(cfg.Anthropic.Key, cfg.Anthropic.Model)
	if cfg.Anthropic.Key == "" {
		zap.L().Info("anthropic key not set, reports will be data-only")
	}

	recorder := usage.NewMemory()
	orc := orchestrator.New(
		daterange.Resolver{},
		registry,
		coordinator.New(cfg.Connectors.Timeout()),
		funnel.NewAggregator(classifier, cfg.Funnel.LeadEvent),
		gen,
		recorder,
	)

	return &appEnv{Orchestrator: orc, Store: st, Recorder: recorder}, nil
}

func loadClassifier() (*channel.Classifier, error) {
	if cfg.Channels.RulesPath == "" {
		return channel.NewClassifier(), nil
	}
	c, err := channel.LoadClassifier(cfg.Channels.RulesPath)
	if err != nil {
		return nil, eris.Wrap(err, "load channel rules")
	}
	zap.L().Info("loaded channel rules", zap.String("path", cfg.Channels.RulesPath))
	return c, nil
}

// buildRegistry constructs one connector per configured provider.
func buildRegistry(cc config.ConnectorsConfig) map[string]connector.Connector {
	registry := make(map[string]connector.Connector)
	if cc.GA4.Enabled() {
		registry[connector.GA4] = connector.NewGA4(cc.GA4.BaseURL, cc.GA4.Key, cc.GA4.RPS)
	}
	if cc.HubSpot.Enabled() {
		registry[connector.HubSpot] = connector.NewHubSpot(cc.HubSpot.BaseURL, cc.HubSpot.Key, cc.HubSpot.RPS)
	}
	if cc.LinkedIn.Enabled() {
		registry[connector.LinkedIn] = connector.NewLinkedIn(cc.LinkedIn.BaseURL, cc.LinkedIn.Key, cc.LinkedIn.RPS)
	}
	if cc.Reddit.Enabled() {
		registry[connector.Reddit] = connector.NewReddit(cc.Reddit.BaseURL, cc.Reddit.Key, cc.Reddit.RPS)
	}
	for name := range registry {
		zap.L().Debug("connector registered", zap.String("provider", name))
	}
	return registry
}
