package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"wallebot/pkg/config"
)

const defaultTimeout = 45 * time.Second

// addToCartPattern matches the "add to cart" control on the product page.
// Target-site markup changes often; failure here is an expected outcome.
const addToCartPattern = `/add to cart/i`

// State names one position in the add-to-cart flow.
type State string

const (
	StateNotStarted  State = "not_started"
	StateSessionOpen State = "session_open"
	StatePageLoaded  State = "page_loaded"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
)

// Result is the terminal outcome of one add-to-cart attempt. When State is
// StateFailed, Reason carries a user-presentable diagnostic.
type Result struct {
	State    State
	Reason   string
	Duration time.Duration
}

// Completed reports whether the flow reached the terminal success state.
func (r Result) Completed() bool {
	return r.State == StateCompleted
}

// browserSession is one live browser session for a single attempt. Open
// and Click honor the attempt context; Close must release the session even
// after that context has expired.
type browserSession interface {
	Open(ctx context.Context, url string) error
	Click(ctx context.Context, pattern string) error
	Close()
}

// Driver runs best-effort headless-browser purchase flows.
//
// Every attempt launches a fresh browser session and releases it on every
// exit path, including timeout and cancellation.
type Driver struct {
	timeout  time.Duration
	headless bool
	log      *slog.Logger
	open     func(headless bool) (browserSession, error)
}

func NewDriver(cfg config.AutomationConfig, log *slog.Logger) *Driver {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	if log == nil {
		log = slog.Default()
	}

	return &Driver{
		timeout:  timeout,
		headless: cfg.Headless,
		log:      log.With("component", "automation"),
		open:     openRodSession,
	}
}

// AddToCart walks the fixed state machine:
// NotStarted -> SessionOpen -> PageLoaded -> Completed | Failed.
//
// It never returns an error; failure is an expected, frequent outcome and is
// reported through the Result for the caller to surface verbatim.
func (d *Driver) AddToCart(ctx context.Context, productURL string) Result {
	startedAt := time.Now()

	productURL = strings.TrimSpace(productURL)
	if !strings.HasPrefix(productURL, "http://") && !strings.HasPrefix(productURL, "https://") {
		return d.fail(startedAt, StateNotStarted, errors.New("product url must be http(s)"))
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	d.log.Info("Automation attempt started", "url", productURL, "timeout", d.timeout)

	session, err := d.open(d.headless)
	if err != nil {
		return d.fail(startedAt, StateNotStarted, fmt.Errorf("launch browser: %w", err))
	}
	defer session.Close()

	if err := session.Open(ctx, productURL); err != nil {
		return d.fail(startedAt, StateSessionOpen, fmt.Errorf("open product page: %w", err))
	}

	if err := session.Click(ctx, addToCartPattern); err != nil {
		return d.fail(startedAt, StatePageLoaded, fmt.Errorf("activate add-to-cart control: %w", err))
	}

	duration := time.Since(startedAt)
	d.log.Info("Automation attempt completed", "url", productURL, "duration_ms", duration.Milliseconds())

	return Result{State: StateCompleted, Duration: duration}
}

// fail builds the terminal failure result, mapping deadline expiry to the
// fixed "timeout" reason.
func (d *Driver) fail(startedAt time.Time, reached State, err error) Result {
	duration := time.Since(startedAt)
	reason := failureReason(err)

	d.log.Warn("Automation attempt failed", "reached_state", string(reached), "reason", reason, "duration_ms", duration.Milliseconds())

	return Result{State: StateFailed, Reason: reason, Duration: duration}
}

func failureReason(err error) string {
	switch {
	case err == nil:
		return "unknown"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return err.Error()
	}
}

// rodSession drives a chromium process through rod.
//
// The browser handle is deliberately not bound to the attempt context:
// context scoping happens per call in Open and Click, so Close still
// reaches the process after a timeout.
type rodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

func openRodSession(headless bool) (browserSession, error) {
	l := launcher.New().Headless(headless)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, err
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, err
	}

	return &rodSession{launcher: l, browser: browser}, nil
}

func (s *rodSession) Open(ctx context.Context, url string) error {
	page, err := s.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return err
	}

	s.page = page
	return page.WaitLoad()
}

func (s *rodSession) Click(ctx context.Context, pattern string) error {
	if s.page == nil {
		return errors.New("no page open")
	}

	element, err := s.page.Context(ctx).ElementR("button", pattern)
	if err != nil {
		return err
	}

	return element.Click(proto.InputMouseButtonLeft, 1)
}

// Close terminates the chromium process and removes its user-data dir. Kill
// precedes Cleanup because Cleanup waits for browser exit.
func (s *rodSession) Close() {
	_ = s.browser.Close()
	s.launcher.Kill()
	s.launcher.Cleanup()
}
