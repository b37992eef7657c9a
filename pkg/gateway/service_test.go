package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"wallebot/pkg/bus"
	"wallebot/pkg/channel"
	"wallebot/pkg/config"
)

type stubHandler struct{}

func (stubHandler) HandleMessage(context.Context, bus.InboundMessage) bus.OutboundMessage {
	return bus.OutboundMessage{}
}

func (stubHandler) HandlePurchase(context.Context, bus.InboundMessage, string) bus.OutboundMessage {
	return bus.OutboundMessage{}
}

type stubAdapter struct {
	name string
}

func (a stubAdapter) Name() string { return a.name }

func (a stubAdapter) Run(ctx context.Context, _ channel.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

type stubHealth struct {
	err error
}

func (h stubHealth) Health(context.Context) error { return h.err }

func TestNewServiceValidation(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	adapters := []channel.Adapter{stubAdapter{name: "telegram"}}

	if _, err := NewService(nil, stubHandler{}, adapters, stubHealth{}, nil, nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := NewService(cfg, nil, adapters, stubHealth{}, nil, nil); err == nil {
		t.Fatal("expected error for nil handler")
	}
	if _, err := NewService(cfg, stubHandler{}, nil, stubHealth{}, nil, nil); err == nil {
		t.Fatal("expected error for empty adapter list")
	}
	if _, err := NewService(cfg, stubHandler{}, adapters, nil, nil, nil); err == nil {
		t.Fatal("expected error for nil health checker")
	}
	if _, err := NewService(cfg, stubHandler{}, adapters, stubHealth{}, nil, nil); err != nil {
		t.Fatalf("expected valid service, got %v", err)
	}
}

func TestIsReady(t *testing.T) {
	t.Parallel()

	svc := &Service{channelStates: map[string]channelState{"telegram": {Running: true}}}
	if svc.isReady() {
		t.Fatal("expected not ready without model health")
	}

	svc.modelLastOKAt = time.Now().UTC()
	if !svc.isReady() {
		t.Fatal("expected ready with running channel and healthy model")
	}

	svc.modelLastErr = "boom"
	if svc.isReady() {
		t.Fatal("expected not ready when model has error")
	}

	svc.modelLastErr = ""
	svc.channelStates["telegram"] = channelState{Running: false, Error: "stopped"}
	if svc.isReady() {
		t.Fatal("expected not ready without a running channel")
	}
}

func TestRunFailsFastOnUnhealthyModel(t *testing.T) {
	t.Parallel()

	svc, err := NewService(&config.Config{}, stubHandler{}, []channel.Adapter{stubAdapter{name: "telegram"}}, stubHealth{err: errors.New("unreachable")}, nil, nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	if err := svc.Run(context.Background()); err == nil {
		t.Fatal("expected startup failure when the model is unreachable")
	}
}

func TestRecordEventCounters(t *testing.T) {
	t.Parallel()

	svc := &Service{channelStates: map[string]channelState{}}

	svc.recordEvent(bus.Event{Type: bus.EventTurnReceived})
	svc.recordEvent(bus.Event{Type: bus.EventTurnReplied})
	svc.recordEvent(bus.Event{Type: bus.EventTurnFailed})
	svc.recordEvent(bus.Event{Type: bus.EventAutomationStarted})
	svc.recordEvent(bus.Event{Type: bus.EventAutomationFinished, Error: "timeout"})
	svc.recordEvent(bus.Event{Type: bus.EventAutomationFinished})

	status := svc.currentStatus("ok")
	if status.Turns.Received != 1 || status.Turns.Replied != 1 || status.Turns.Failed != 1 {
		t.Fatalf("unexpected turn counters: %+v", status.Turns)
	}
	if status.Turns.AutomationRuns != 1 || status.Turns.AutomationFails != 1 {
		t.Fatalf("unexpected automation counters: %+v", status.Turns)
	}
}
