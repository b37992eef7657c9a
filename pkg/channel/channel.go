package channel

import (
	"context"

	"wallebot/pkg/bus"
)

// Handler is the pipeline entry point a transport adapter dispatches into.
//
// HandleMessage processes one normalized inbound message (text or voice) and
// returns the single reply for that turn; an empty reply means the message
// was ignored. HandlePurchase runs the explicit add-to-cart action a user
// triggers against a previously returned product URL.
type Handler interface {
	HandleMessage(ctx context.Context, msg bus.InboundMessage) bus.OutboundMessage
	HandlePurchase(ctx context.Context, msg bus.InboundMessage, productURL string) bus.OutboundMessage
}

// Adapter bridges one external transport (for example Telegram) into the bot.
type Adapter interface {
	Name() string
	Run(ctx context.Context, handler Handler) error
}
