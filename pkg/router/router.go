// Package router turns normalized inbound messages into exactly one reply
// each, dispatching to the search, ledger, or conversational backend based
// on the classified intent.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"wallebot/pkg/automation"
	"wallebot/pkg/bus"
	"wallebot/pkg/history"
	"wallebot/pkg/intent"
	"wallebot/pkg/ledger"
	"wallebot/pkg/search"
)

const noMatchesReply = "Sorry, couldn't find matching products. Try a different description?"
const orderLoggedReply = "📦 Got it! I've logged your order query. Our team will follow up shortly."
const genericFailureReply = "Sorry, something went wrong while processing your request. Please try again."
const purchaseDoneReply = "Item added to cart ✅"

// Telegram rejects inline keyboard button labels past 64 characters.
const maxButtonLabelRunes = 64

// Transcriber converts a voice payload into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, formatHint string) (string, error)
}

// Searcher looks up product candidates for a free-text query.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) []search.Product
	Limit() int
}

// Ledger appends order queries for offline follow-up.
type Ledger interface {
	Record(ctx context.Context, userID string, query string) (ledger.Entry, error)
}

// Responder generates a conversational answer with prior turns as context.
type Responder interface {
	Respond(ctx context.Context, question string, turns []history.Turn) (string, error)
}

// Automator drives the best-effort add-to-cart browser flow.
type Automator interface {
	AddToCart(ctx context.Context, productURL string) automation.Result
}

// Deps carries the backend adapters the router dispatches to.
type Deps struct {
	Transcriber Transcriber
	Classifier  *intent.Classifier
	Search      Searcher
	Ledger      Ledger
	Responder   Responder
	Automator   Automator
	History     *history.Store
	Events      *bus.EventBus
	Log         *slog.Logger
}

// Router owns the per-turn state machine: transcribe, classify, dispatch,
// reply. Every inbound message produces exactly one outbound message or is
// ignored entirely.
type Router struct {
	deps Deps
	log  *slog.Logger
}

// New validates the dependency set and constructs a router.
func New(deps Deps) (*Router, error) {
	if deps.Classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if deps.Search == nil {
		return nil, errors.New("search client is required")
	}
	if deps.Ledger == nil {
		return nil, errors.New("ledger store is required")
	}
	if deps.Responder == nil {
		return nil, errors.New("responder is required")
	}
	if deps.History == nil {
		deps.History = history.NewStore(0)
	}

	log := deps.Log
	if log == nil {
		log = slog.Default()
	}

	return &Router{
		deps: deps,
		log:  log.With("component", "router"),
	}, nil
}

// HandleMessage processes one inbound turn and returns the reply. An empty
// reply means the message was ignored (unknown kind, blank content).
func (r *Router) HandleMessage(ctx context.Context, msg bus.InboundMessage) bus.OutboundMessage {
	turnID := uuid.NewString()
	startedAt := time.Now()

	// One in-flight turn per user. The lock covers transcription as well as
	// dispatch, so a user's replies arrive in receipt order even when a slow
	// voice turn precedes a fast text turn.
	unlock := r.deps.History.Lock(msg.SenderID)
	defer unlock()

	text, ok := r.resolveText(ctx, msg, turnID)
	if !ok {
		return bus.OutboundMessage{}
	}

	detected := r.deps.Classifier.Classify(text)

	r.publish(ctx, bus.Event{
		Type:    bus.EventTurnReceived,
		At:      startedAt,
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		UserID:  msg.SenderID,
		TurnID:  turnID,
		Intent:  string(detected),
		Payload: map[string]string{"kind": string(msg.Kind)},
	})

	reply, err := r.dispatch(ctx, msg, detected, text)
	if err != nil {
		r.log.Error("Turn failed",
			"turn_id", turnID,
			"user_id", msg.SenderID,
			"intent", string(detected),
			"error", err)

		r.publish(ctx, bus.Event{
			Type:    bus.EventTurnFailed,
			At:      time.Now(),
			Channel: msg.Channel,
			ChatID:  msg.ChatID,
			UserID:  msg.SenderID,
			TurnID:  turnID,
			Intent:  string(detected),
			Error:   err.Error(),
		})

		return bus.OutboundMessage{Channel: msg.Channel, ChatID: msg.ChatID, Content: genericFailureReply}
	}

	r.log.Info("Turn completed",
		"turn_id", turnID,
		"user_id", msg.SenderID,
		"intent", string(detected),
		"duration_ms", time.Since(startedAt).Milliseconds())

	r.publish(ctx, bus.Event{
		Type:    bus.EventTurnReplied,
		At:      time.Now(),
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		UserID:  msg.SenderID,
		TurnID:  turnID,
		Intent:  string(detected),
	})

	reply.Channel = msg.Channel
	reply.ChatID = msg.ChatID
	return reply
}

// HandlePurchase runs the add-to-cart automation for an explicit /buy
// request. Failure is an expected outcome and is reported as a soft message.
func (r *Router) HandlePurchase(ctx context.Context, msg bus.InboundMessage, productURL string) bus.OutboundMessage {
	reply := bus.OutboundMessage{Channel: msg.Channel, ChatID: msg.ChatID}

	if r.deps.Automator == nil {
		reply.Content = "Purchase automation is not enabled."
		return reply
	}

	turnID := uuid.NewString()

	r.publish(ctx, bus.Event{
		Type:    bus.EventAutomationStarted,
		At:      time.Now(),
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		UserID:  msg.SenderID,
		TurnID:  turnID,
		Payload: map[string]string{"url": productURL},
	})

	result := r.deps.Automator.AddToCart(ctx, productURL)

	event := bus.Event{
		Type:    bus.EventAutomationFinished,
		At:      time.Now(),
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		UserID:  msg.SenderID,
		TurnID:  turnID,
		Payload: map[string]string{
			"state":       string(result.State),
			"duration_ms": fmt.Sprintf("%d", result.Duration.Milliseconds()),
		},
	}
	if !result.Completed() {
		event.Error = result.Reason
	}
	r.publish(ctx, event)

	if result.Completed() {
		reply.Content = purchaseDoneReply
	} else {
		reply.Content = "Automation failed: " + result.Reason
	}
	return reply
}

// resolveText extracts the turn's text, transcribing voice payloads.
//
// Transcription failures degrade to empty text so the turn still produces
// a reply through the conversational path instead of crashing.
func (r *Router) resolveText(ctx context.Context, msg bus.InboundMessage, turnID string) (string, bool) {
	switch msg.Kind {
	case bus.KindText:
		text := strings.TrimSpace(msg.Content)
		if text == "" {
			return "", false
		}
		return text, true
	case bus.KindVoice:
		if msg.Voice == nil || len(msg.Voice.Data) == 0 {
			return "", false
		}
		if r.deps.Transcriber == nil {
			r.log.Warn("Voice message received without a transcriber", "turn_id", turnID)
			return "", true
		}

		text, err := r.deps.Transcriber.Transcribe(ctx, msg.Voice.Data, msg.Voice.FormatHint)
		if err != nil {
			r.log.Warn("Transcription failed", "turn_id", turnID, "user_id", msg.SenderID, "error", err)
			return "", true
		}

		r.log.Info("Voice transcribed", "turn_id", turnID, "user_id", msg.SenderID, "text", text)
		return strings.TrimSpace(text), true
	default:
		return "", false
	}
}

// dispatch routes one classified turn to its backend. Panics from backend
// adapters are contained here so a bad turn cannot take down the intake
// loop for other users.
func (r *Router) dispatch(ctx context.Context, msg bus.InboundMessage, detected intent.Intent, text string) (reply bus.OutboundMessage, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reply = bus.OutboundMessage{}
			err = fmt.Errorf("dispatch panic: %v", rec)
		}
	}()

	switch detected {
	case intent.ProductSearch:
		return r.dispatchSearch(ctx, text), nil
	case intent.OrderStatus:
		return r.dispatchOrder(ctx, msg.SenderID, text)
	default:
		return r.dispatchConversational(ctx, msg, text)
	}
}

func (r *Router) dispatchSearch(ctx context.Context, query string) bus.OutboundMessage {
	products := r.deps.Search.Search(ctx, query, r.deps.Search.Limit())
	if len(products) == 0 {
		return bus.OutboundMessage{Content: noMatchesReply}
	}

	var sb strings.Builder
	sb.WriteString("🛒 Top matches:\n")

	links := make([]bus.InlineLink, 0, len(products))
	for i, product := range products {
		fmt.Fprintf(&sb, "%d. %s", i+1, product.Name)
		if product.Price != "" {
			fmt.Fprintf(&sb, " (%s)", product.Price)
		}
		sb.WriteString("\n")

		if product.URL != "" {
			links = append(links, bus.InlineLink{
				Label: buttonLabel(i+1, product.Name),
				URL:   product.URL,
			})
		}
	}

	return bus.OutboundMessage{Content: strings.TrimRight(sb.String(), "\n"), InlineLinks: links}
}

func (r *Router) dispatchOrder(ctx context.Context, userID string, text string) (bus.OutboundMessage, error) {
	entry, err := r.deps.Ledger.Record(ctx, userID, text)
	if err != nil {
		return bus.OutboundMessage{}, fmt.Errorf("record order query: %w", err)
	}

	r.log.Info("Order query recorded", "user_id", userID, "entry_id", entry.ID)
	return bus.OutboundMessage{Content: orderLoggedReply}, nil
}

func (r *Router) dispatchConversational(ctx context.Context, msg bus.InboundMessage, text string) (bus.OutboundMessage, error) {
	answer, err := r.deps.Responder.Respond(ctx, text, r.deps.History.Turns(msg.SenderID))
	if err != nil {
		return bus.OutboundMessage{}, fmt.Errorf("generate answer: %w", err)
	}

	r.deps.History.Append(msg.SenderID, text, answer)

	if r.deps.Classifier.IsCasualGreeting(text) {
		answer = greetingIntro(msg.Metadata["first_name"]) + answer
	}

	return bus.OutboundMessage{Content: answer}, nil
}

func (r *Router) publish(ctx context.Context, event bus.Event) {
	if r.deps.Events == nil {
		return
	}
	r.deps.Events.Publish(ctx, event)
}

// greetingIntro builds the personalized prefix for casual greetings.
func greetingIntro(firstName string) string {
	name := strings.TrimSpace(firstName)
	if name == "" {
		return "👋 Hi! "
	}
	return "👋 Hi " + name + "! "
}

func buttonLabel(position int, name string) string {
	label := fmt.Sprintf("%d. %s", position, strings.TrimSpace(name))
	runes := []rune(label)
	if len(runes) <= maxButtonLabelRunes {
		return label
	}
	return string(runes[:maxButtonLabelRunes-1]) + "…"
}
