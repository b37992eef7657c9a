package intent

import (
	"strings"

	"wallebot/pkg/config"
)

// Intent is the classified purpose of one user message.
type Intent string

const (
	ProductSearch  Intent = "product_search"
	OrderStatus    Intent = "order_status"
	Conversational Intent = "conversational"
)

// Default trigger lists, overridable through assistant config.
var (
	defaultShoppingKeywords = []string{"suggest", "buy", "phone", "laptop", "under", "₹", "rs"}
	defaultOrderKeywords    = []string{"#", "status"}
	defaultGreetingPhrases  = []string{
		"hi", "hello", "hey", "how are you", "who are you", "what can you do",
		"what is this", "help", "start", "yo", "hola",
	}
)

type rule struct {
	name   string
	match  func(string) bool
	intent Intent
}

// Classifier assigns exactly one Intent per message using an ordered rule
// list; the first matching rule wins and the fallthrough is Conversational.
//
// Rule order is load-bearing: "order a phone" matches the shopping rule
// before the order rule ever runs.
type Classifier struct {
	rules     []rule
	greetings []string
}

// NewClassifier builds the rule table from assistant config, falling back to
// the default keyword lists when config leaves them empty.
func NewClassifier(cfg config.AssistantConfig) *Classifier {
	shopping := nonEmptyOr(cfg.ShoppingKeywords, defaultShoppingKeywords)
	order := nonEmptyOr(cfg.OrderKeywords, defaultOrderKeywords)
	greetings := nonEmptyOr(cfg.GreetingPhrases, defaultGreetingPhrases)

	rules := []rule{
		{
			name:   "shopping",
			intent: ProductSearch,
			match: func(text string) bool {
				return containsAny(text, shopping)
			},
		},
		{
			name:   "order",
			intent: OrderStatus,
			match: func(text string) bool {
				return strings.Contains(text, "order") && containsAny(text, order)
			},
		},
	}

	return &Classifier{rules: rules, greetings: greetings}
}

// Classify is total: every input maps to exactly one intent, and empty or
// unmatched text is Conversational. Matching is case-insensitive substring
// containment, preserving the observed behavior of the trigger lists.
func (c *Classifier) Classify(text string) Intent {
	normalized := normalize(text)
	if normalized == "" {
		return Conversational
	}

	for _, r := range c.rules {
		if r.match(normalized) {
			return r.intent
		}
	}

	return Conversational
}

// IsCasualGreeting is a secondary, non-exclusive check used to decorate
// conversational replies; it is independent of intent classification.
func (c *Classifier) IsCasualGreeting(text string) bool {
	return containsAny(normalize(text), c.greetings)
}

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

func containsAny(text string, needles []string) bool {
	for _, needle := range needles {
		if needle == "" {
			continue
		}
		if strings.Contains(text, needle) {
			return true
		}
	}
	return false
}

func nonEmptyOr(values []string, fallback []string) []string {
	clean := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.ToLower(strings.TrimSpace(value))
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}
	if len(clean) == 0 {
		return fallback
	}
	return clean
}
