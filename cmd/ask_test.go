package cmd

import (
	"testing"

	"wallebot/pkg/bus"
)

func TestIsExitCommand(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{input: "exit", want: true},
		{input: " quit ", want: true},
		{input: "/exit", want: true},
		{input: "EXIT", want: true},
		{input: "hello", want: false},
		{input: "quit now", want: false},
	}

	for _, tt := range tests {
		if got := isExitCommand(tt.input); got != tt.want {
			t.Fatalf("isExitCommand(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestResolveQuestion(t *testing.T) {
	t.Cleanup(func() { questionText = "" })

	questionText = " from flag "
	if got := resolveQuestion([]string{"ignored"}); got != "from flag" {
		t.Fatalf("resolveQuestion = %q, want flag value", got)
	}

	questionText = ""
	if got := resolveQuestion([]string{"suggest", "a", "phone"}); got != "suggest a phone" {
		t.Fatalf("resolveQuestion = %q, want joined args", got)
	}

	if got := resolveQuestion(nil); got != "" {
		t.Fatalf("resolveQuestion = %q, want empty", got)
	}
}

func TestCliMessage(t *testing.T) {
	msg := cliMessage("hello")
	if msg.Channel != "cli" || msg.Kind != bus.KindText || msg.Content != "hello" {
		t.Fatalf("unexpected cli message: %+v", msg)
	}
}
