package automation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"wallebot/pkg/config"
)

func TestAddToCartRejectsNonHTTPURL(t *testing.T) {
	t.Parallel()

	d := NewDriver(config.AutomationConfig{TimeoutSeconds: 1}, nil)

	for _, url := range []string{"", "ftp://example.com/item", "javascript:alert(1)", "  "} {
		result := d.AddToCart(context.Background(), url)
		if result.State != StateFailed {
			t.Fatalf("AddToCart(%q) state = %q, want failed", url, result.State)
		}
		if result.Completed() {
			t.Fatal("failed result must not report completed")
		}
	}
}

func TestFailureReasonMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want string
	}{
		{context.DeadlineExceeded, "timeout"},
		{fmt.Errorf("load product page: %w", context.DeadlineExceeded), "timeout"},
		{context.Canceled, "canceled"},
		{errors.New("no such element"), "no such element"},
		{nil, "unknown"},
	}

	for _, tc := range cases {
		if got := failureReason(tc.err); got != tc.want {
			t.Fatalf("failureReason(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestNewDriverDefaultsTimeout(t *testing.T) {
	t.Parallel()

	d := NewDriver(config.AutomationConfig{}, nil)
	if d.timeout != defaultTimeout {
		t.Fatalf("timeout = %v, want %v", d.timeout, defaultTimeout)
	}

	d = NewDriver(config.AutomationConfig{TimeoutSeconds: 5}, nil)
	if d.timeout != 5*time.Second {
		t.Fatalf("timeout = %v, want 5s", d.timeout)
	}
}

// fakeSession stands in for a live browser session.
type fakeSession struct {
	openErr  error
	clickErr error
	blocking bool
	closed   chan struct{}
}

func newFakeSession() *fakeSession {
	return &fakeSession{closed: make(chan struct{})}
}

func (s *fakeSession) Open(ctx context.Context, _ string) error {
	if s.blocking {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.openErr
}

func (s *fakeSession) Click(_ context.Context, _ string) error {
	return s.clickErr
}

func (s *fakeSession) Close() {
	close(s.closed)
}

func testDriver(session browserSession, timeout time.Duration) *Driver {
	d := NewDriver(config.AutomationConfig{}, nil)
	d.timeout = timeout
	d.open = func(bool) (browserSession, error) { return session, nil }
	return d
}

func TestAddToCartCompletes(t *testing.T) {
	t.Parallel()

	session := newFakeSession()
	d := testDriver(session, time.Second)

	result := d.AddToCart(context.Background(), "https://www.flipkart.com/item")
	if !result.Completed() {
		t.Fatalf("expected completed result, got %+v", result)
	}

	select {
	case <-session.closed:
	default:
		t.Fatal("session must be released after a completed attempt")
	}
}

func TestAddToCartTimeoutReleasesSession(t *testing.T) {
	t.Parallel()

	session := newFakeSession()
	session.blocking = true
	d := testDriver(session, 50*time.Millisecond)

	done := make(chan Result, 1)
	go func() {
		done <- d.AddToCart(context.Background(), "https://www.flipkart.com/item")
	}()

	var result Result
	select {
	case result = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("AddToCart did not return after the hard timeout")
	}

	if result.State != StateFailed || result.Reason != "timeout" {
		t.Fatalf("expected Failed(timeout), got %+v", result)
	}

	select {
	case <-session.closed:
	case <-time.After(time.Second):
		t.Fatal("session must be released after a timed-out attempt")
	}
}

func TestAddToCartMissingControlReleasesSession(t *testing.T) {
	t.Parallel()

	session := newFakeSession()
	session.clickErr = errors.New("no such element")
	d := testDriver(session, time.Second)

	result := d.AddToCart(context.Background(), "https://www.flipkart.com/item")
	if result.State != StateFailed {
		t.Fatalf("expected failed result, got %+v", result)
	}
	if result.Reason == "" || result.Reason == "timeout" {
		t.Fatalf("expected element diagnostic, got %q", result.Reason)
	}

	select {
	case <-session.closed:
	default:
		t.Fatal("session must be released after a failed attempt")
	}
}

func TestAddToCartLaunchFailure(t *testing.T) {
	t.Parallel()

	d := NewDriver(config.AutomationConfig{}, nil)
	d.open = func(bool) (browserSession, error) { return nil, errors.New("no chromium") }

	result := d.AddToCart(context.Background(), "https://www.flipkart.com/item")
	if result.State != StateFailed {
		t.Fatalf("expected failed result, got %+v", result)
	}
}
