// Package gateway runs the channel adapters and exposes the status HTTP
// surface for liveness and readiness probes.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"wallebot/pkg/bus"
	"wallebot/pkg/channel"
	"wallebot/pkg/config"
)

const (
	defaultHealthHost   = "0.0.0.0"
	defaultHealthPort   = 18790
	modelCheckInterval  = 30 * time.Second
	eventStreamCapacity = 64
)

// HealthChecker reports whether the conversational model backend is
// reachable. Satisfied by the llm client.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Service supervises the channel adapters, polls model health, and serves
// /healthz and /readyz.
type Service struct {
	cfg     *config.Config
	log     *slog.Logger
	model   HealthChecker
	handler channel.Handler
	events  *bus.EventBus

	channels []channel.Adapter

	mu            sync.RWMutex
	startedAt     time.Time
	modelLastOKAt time.Time
	modelLastErr  string
	channelStates map[string]channelState
	turns         turnCounters
}

type channelState struct {
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

type turnCounters struct {
	Received        int64 `json:"received"`
	Replied         int64 `json:"replied"`
	Failed          int64 `json:"failed"`
	AutomationRuns  int64 `json:"automation_runs"`
	AutomationFails int64 `json:"automation_failures"`
}

type statusResponse struct {
	Status        string                  `json:"status"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
	ModelLastOKAt string                  `json:"model_last_ok_at,omitempty"`
	ModelLastErr  string                  `json:"model_last_error,omitempty"`
	Channels      map[string]channelState `json:"channels"`
	Turns         turnCounters            `json:"turns"`
}

// NewService wires the handler, adapters, and event stream into a runnable
// gateway.
func NewService(cfg *config.Config, handler channel.Handler, adapters []channel.Adapter, model HealthChecker, events *bus.EventBus, log *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if handler == nil {
		return nil, errors.New("message handler is required")
	}
	if len(adapters) == 0 {
		return nil, errors.New("at least one channel adapter is required")
	}
	if model == nil {
		return nil, errors.New("model health checker is required")
	}
	if log == nil {
		log = slog.Default()
	}

	channelStates := make(map[string]channelState, len(adapters))
	for _, adapter := range adapters {
		channelStates[adapter.Name()] = channelState{}
	}

	return &Service{
		cfg:           cfg,
		log:           log.With("component", "gateway.service"),
		model:         model,
		handler:       handler,
		events:        events,
		channels:      adapters,
		channelStates: channelStates,
	}, nil
}

// Run blocks until the context is cancelled or a channel adapter or the
// status server fails.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	if err := s.checkModelHealth(ctx); err != nil {
		return err
	}

	serverErrors := make(chan error, 1)
	go s.runHealthServer(ctx, serverErrors)

	if s.events != nil {
		go s.consumeEvents(ctx)
	}

	ticker := time.NewTicker(modelCheckInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = s.checkModelHealth(ctx)
			}
		}
	}()

	errCh := make(chan error, len(s.channels))
	for _, adapter := range s.channels {
		adapter := adapter
		s.setChannelState(adapter.Name(), channelState{Running: true})

		go func() {
			err := adapter.Run(ctx, s.handler)
			s.setChannelState(adapter.Name(), channelState{Running: false, Error: errorString(err)})
			if err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("run %s channel: %w", adapter.Name(), err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErrors:
		return err
	case err := <-errCh:
		return err
	}
}

// consumeEvents tallies router turn events into the status counters.
func (s *Service) consumeEvents(ctx context.Context) {
	stream, unsubscribe := s.events.Subscribe(ctx, eventStreamCapacity)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-stream:
			if !ok {
				return
			}
			s.recordEvent(event)
		}
	}
}

func (s *Service) recordEvent(event bus.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch event.Type {
	case bus.EventTurnReceived:
		s.turns.Received++
	case bus.EventTurnReplied:
		s.turns.Replied++
	case bus.EventTurnFailed:
		s.turns.Failed++
	case bus.EventAutomationStarted:
		s.turns.AutomationRuns++
	case bus.EventAutomationFinished:
		if event.Error != "" {
			s.turns.AutomationFails++
		}
	}
}

func (s *Service) runHealthServer(ctx context.Context, errCh chan<- error) {
	host := strings.TrimSpace(s.cfg.Gateway.Host)
	if host == "" {
		host = defaultHealthHost
	}

	port := s.cfg.Gateway.Port
	if port <= 0 {
		port = defaultHealthPort
	}

	addr := host + ":" + strconv.Itoa(port)
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Gateway status server started", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- fmt.Errorf("start status server: %w", err)
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondStatus(w, http.StatusOK, "ok")
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	s.respondStatus(w, statusCode, status)
}

func (s *Service) respondStatus(w http.ResponseWriter, statusCode int, status string) {
	payload := s.currentStatus(status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	channels := make(map[string]channelState, len(s.channelStates))
	for name, state := range s.channelStates {
		channels[name] = state
	}

	modelLastOK := ""
	if !s.modelLastOKAt.IsZero() {
		modelLastOK = s.modelLastOKAt.Format(time.RFC3339)
	}

	return statusResponse{
		Status:        status,
		UptimeSeconds: uptime,
		ModelLastOKAt: modelLastOK,
		ModelLastErr:  s.modelLastErr,
		Channels:      channels,
		Turns:         s.turns,
	}
}

func (s *Service) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.channelStates) == 0 {
		return false
	}

	anyRunning := false
	for _, state := range s.channelStates {
		if state.Running {
			anyRunning = true
			break
		}
	}

	if !anyRunning {
		return false
	}

	if s.modelLastOKAt.IsZero() {
		return false
	}

	if s.modelLastErr != "" {
		return false
	}

	return true
}

func (s *Service) checkModelHealth(ctx context.Context) error {
	if err := s.model.Health(ctx); err != nil {
		s.mu.Lock()
		s.modelLastErr = err.Error()
		s.mu.Unlock()
		return fmt.Errorf("model health check failed: %w", err)
	}

	s.mu.Lock()
	s.modelLastErr = ""
	s.modelLastOKAt = time.Now().UTC()
	s.mu.Unlock()

	return nil
}

func (s *Service) setChannelState(name string, state channelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelStates[name] = state
}

func errorString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
