package intent

import (
	"testing"

	"wallebot/pkg/config"
)

func TestClassifyRuleTable(t *testing.T) {
	t.Parallel()

	c := NewClassifier(config.AssistantConfig{})

	cases := []struct {
		name string
		text string
		want Intent
	}{
		{"shopping keyword", "Suggest a laptop under ₹50000", ProductSearch},
		{"currency marker", "anything under 10000", ProductSearch},
		{"order with hash", "Where is my order #WALL12345", OrderStatus},
		{"order with status", "what is my order status", OrderStatus},
		{"order word alone", "I placed an order yesterday", Conversational},
		{"casual", "how's the weather", Conversational},
		{"empty", "", Conversational},
		{"whitespace", "   ", Conversational},
		{"case insensitive", "BUY A PHONE", ProductSearch},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := c.Classify(tc.text); got != tc.want {
				t.Fatalf("Classify(%q) = %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}

func TestClassifyShoppingRuleWinsOverOrderRule(t *testing.T) {
	t.Parallel()

	c := NewClassifier(config.AssistantConfig{})

	// Matches both the shopping list ("phone") and the order pattern
	// ("order" + "status"); the shopping rule is evaluated first.
	if got := c.Classify("order status of my phone"); got != ProductSearch {
		t.Fatalf("Classify = %q, want %q", got, ProductSearch)
	}
}

func TestClassifyConfiguredKeywords(t *testing.T) {
	t.Parallel()

	c := NewClassifier(config.AssistantConfig{
		ShoppingKeywords: []string{"camera"},
		OrderKeywords:    []string{"tracking"},
	})

	if got := c.Classify("suggest a laptop"); got != Conversational {
		t.Fatalf("default keywords should be replaced, got %q", got)
	}
	if got := c.Classify("need a camera"); got != ProductSearch {
		t.Fatalf("Classify = %q, want %q", got, ProductSearch)
	}
	if got := c.Classify("order tracking please"); got != OrderStatus {
		t.Fatalf("Classify = %q, want %q", got, OrderStatus)
	}
}

func TestIsCasualGreeting(t *testing.T) {
	t.Parallel()

	c := NewClassifier(config.AssistantConfig{})

	if !c.IsCasualGreeting("hi") {
		t.Fatal("expected greeting match for 'hi'")
	}
	if !c.IsCasualGreeting("Hello, who are you?") {
		t.Fatal("expected greeting match for 'Hello, who are you?'")
	}
	if c.IsCasualGreeting("where is my parcel") {
		t.Fatal("unexpected greeting match")
	}
}
