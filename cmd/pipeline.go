package cmd

import (
	"fmt"
	"log/slog"

	"wallebot/pkg/automation"
	"wallebot/pkg/bus"
	"wallebot/pkg/config"
	"wallebot/pkg/history"
	"wallebot/pkg/intent"
	"wallebot/pkg/ledger"
	"wallebot/pkg/llm"
	"wallebot/pkg/router"
	"wallebot/pkg/search"
	"wallebot/pkg/transcribe"
)

const defaultLedgerPath = "data/orders.db"

// pipeline bundles the router with the backends that need lifecycle
// management after the run ends.
type pipeline struct {
	router *router.Router
	model  *llm.Client
	ledger *ledger.Store
	events *bus.EventBus
}

// buildPipeline constructs every backend adapter and wires them into a
// router. The same pipeline serves the gateway and the one-shot CLI.
func buildPipeline(cfg *config.Config, log *slog.Logger) (*pipeline, error) {
	model, err := llm.New(cfg.OpenAI, cfg.Assistant.Persona)
	if err != nil {
		return nil, fmt.Errorf("initialize chat model: %w", err)
	}

	transcriber, err := transcribe.New(cfg.OpenAI, log)
	if err != nil {
		return nil, fmt.Errorf("initialize transcriber: %w", err)
	}

	searchClient, err := search.New(cfg.Search, log)
	if err != nil {
		return nil, fmt.Errorf("initialize product search: %w", err)
	}

	ledgerPath := cfg.Ledger.Path
	if ledgerPath == "" {
		ledgerPath = defaultLedgerPath
	}
	ledgerStore, err := ledger.Open(ledgerPath)
	if err != nil {
		return nil, fmt.Errorf("open order ledger: %w", err)
	}

	events := bus.NewEventBus()

	r, err := router.New(router.Deps{
		Transcriber: transcriber,
		Classifier:  intent.NewClassifier(cfg.Assistant),
		Search:      searchClient,
		Ledger:      ledgerStore,
		Responder:   model,
		Automator:   automation.NewDriver(cfg.Automation, log),
		History:     history.NewStore(cfg.Assistant.HistorySize),
		Events:      events,
		Log:         log,
	})
	if err != nil {
		ledgerStore.Close()
		events.Close()
		return nil, fmt.Errorf("initialize router: %w", err)
	}

	return &pipeline{
		router: r,
		model:  model,
		ledger: ledgerStore,
		events: events,
	}, nil
}

func (p *pipeline) Close() {
	p.events.Close()
	if err := p.ledger.Close(); err != nil {
		slog.Default().Error("Failed to close order ledger", "error", err)
	}
}
