package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"wallebot/pkg/bus"
	"wallebot/pkg/channel"
	"wallebot/pkg/config"
)

const channelName = "telegram"
const messagePreviewLimit = 240
const typingRefreshInterval = 4 * time.Second

// Telegram bot API caps downloadable files at 20 MB.
const maxVoiceDownloadBytes = 20 << 20

const startReply = "👋 Hi, I'm Wallmart's AI Assistant WALL-E 🤖.\n" +
	"Ask me for product suggestions or order help!"

const helpReply = "Examples:\n" +
	"• Send a voice note: \"Need a phone under ten thousand\"\n" +
	"• Text: Suggest a laptop under ₹50000\n" +
	"• Where is my order #WALL12345\n" +
	"• /buy <product-url>"

const buyUsageReply = "Usage: /buy <product-url>"

// Adapter bridges Telegram updates into pipeline inbound/outbound messages.
type Adapter struct {
	cfg        config.TelegramConfig
	allowFrom  map[string]struct{}
	httpClient *http.Client
	log        *slog.Logger
}

// NewAdapter validates Telegram configuration and constructs an adapter instance.
func NewAdapter(cfg config.TelegramConfig, log *slog.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("channels.telegram.token is required")
	}

	if log == nil {
		log = slog.Default()
	}

	return &Adapter{
		cfg:        cfg,
		allowFrom:  allowFromSet(cfg.AllowFrom),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.With("component", "channel.telegram"),
	}, nil
}

// Name returns the channel identifier used in logs and reply routing.
func (a *Adapter) Name() string {
	return channelName
}

// Run starts Telegram long polling and forwards updates into the handler.
//
// Each update is processed on its own goroutine; per-user ordering is the
// handler's concern, different users must never block each other.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	bot, err := telego.NewBot(strings.TrimSpace(a.cfg.Token))
	if err != nil {
		return fmt.Errorf("initialize telegram bot: %w", err)
	}

	updates, err := bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	a.log.Info("Telegram channel started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil
				}
				return errors.New("telegram updates channel closed")
			}

			message := update.Message
			if message == nil || message.From == nil {
				continue
			}

			senderID := strconv.FormatInt(message.From.ID, 10)
			if !a.senderAllowed(senderID) {
				a.log.Debug("Ignoring message from unauthorized sender", "sender_id", senderID)
				continue
			}

			go a.processMessage(ctx, bot, handler, message)
		}
	}
}

// processMessage normalizes one Telegram message and dispatches it.
func (a *Adapter) processMessage(ctx context.Context, bot *telego.Bot, handler channel.Handler, message *telego.Message) {
	senderID := strconv.FormatInt(message.From.ID, 10)
	chatID := strconv.FormatInt(message.Chat.ID, 10)

	inbound := bus.InboundMessage{
		Channel:    channelName,
		SenderID:   senderID,
		ChatID:     chatID,
		ReceivedAt: time.Now().UTC(),
		Metadata: map[string]string{
			"first_name": strings.TrimSpace(message.From.FirstName),
		},
	}

	text := strings.TrimSpace(message.Text)

	var outbound bus.OutboundMessage
	switch {
	case strings.HasPrefix(text, "/"):
		outbound = a.handleCommand(ctx, handler, inbound, text)
	case message.Voice != nil:
		payload, hint, err := a.downloadVoice(ctx, bot, message.Voice)
		if err != nil {
			a.log.Error("Failed to download voice note", "chat_id", chatID, "error", err)
			outbound = bus.OutboundMessage{Content: "Sorry, I couldn't read that voice note. Please try again."}
		} else {
			inbound.Kind = bus.KindVoice
			inbound.Voice = &bus.VoicePayload{Data: payload, FormatHint: hint}
			a.log.Info("Received voice message", "chat_id", chatID, "sender_id", senderID, "bytes", len(payload))

			stopTyping := a.startTypingIndicator(ctx, bot, message.Chat.ID)
			outbound = handler.HandleMessage(ctx, inbound)
			stopTyping()
		}
	case text != "":
		inbound.Kind = bus.KindText
		inbound.Content = text
		a.log.Info("Received message", "chat_id", chatID, "sender_id", senderID, "content", previewText(text))

		stopTyping := a.startTypingIndicator(ctx, bot, message.Chat.ID)
		outbound = handler.HandleMessage(ctx, inbound)
		stopTyping()
	default:
		// Stickers, photos and other update kinds are ignored without a reply.
		return
	}

	a.send(ctx, bot, message.Chat.ID, outbound)
}

// handleCommand answers /start and /help locally and routes /buy into the
// purchase flow. Unknown commands are ignored without a reply.
func (a *Adapter) handleCommand(ctx context.Context, handler channel.Handler, inbound bus.InboundMessage, text string) bus.OutboundMessage {
	command, args := splitCommand(text)

	switch command {
	case "/start":
		return bus.OutboundMessage{Content: startReply}
	case "/help":
		return bus.OutboundMessage{Content: helpReply}
	case "/buy":
		if args == "" {
			return bus.OutboundMessage{Content: buyUsageReply}
		}
		return handler.HandlePurchase(ctx, inbound, args)
	default:
		return bus.OutboundMessage{}
	}
}

// downloadVoice fetches the voice note payload through the bot file API.
func (a *Adapter) downloadVoice(ctx context.Context, bot *telego.Bot, voice *telego.Voice) ([]byte, string, error) {
	file, err := bot.GetFile(ctx, &telego.GetFileParams{FileID: voice.FileID})
	if err != nil {
		return nil, "", fmt.Errorf("resolve voice file: %w", err)
	}
	if file.FilePath == "" {
		return nil, "", errors.New("voice file has no download path")
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, bot.FileDownloadURL(file.FilePath), nil)
	if err != nil {
		return nil, "", fmt.Errorf("build download request: %w", err)
	}

	resp, err := a.httpClient.Do(request)
	if err != nil {
		return nil, "", fmt.Errorf("download voice file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download voice file: status %d", resp.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxVoiceDownloadBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read voice payload: %w", err)
	}

	return payload, voiceFormatHint(file.FilePath, voice.MimeType), nil
}

// send delivers one reply, attaching an inline keyboard when the reply
// carries product links.
func (a *Adapter) send(ctx context.Context, bot *telego.Bot, chatID int64, outbound bus.OutboundMessage) {
	if outbound.Empty() {
		return
	}

	params := tu.Message(tu.ID(chatID), outbound.Content)
	if len(outbound.InlineLinks) > 0 {
		rows := make([][]telego.InlineKeyboardButton, 0, len(outbound.InlineLinks))
		for _, link := range outbound.InlineLinks {
			rows = append(rows, tu.InlineKeyboardRow(tu.InlineKeyboardButton(link.Label).WithURL(link.URL)))
		}
		params = params.
			WithReplyMarkup(tu.InlineKeyboard(rows...)).
			WithLinkPreviewOptions(&telego.LinkPreviewOptions{IsDisabled: true})
	}

	a.log.Info("Sending message", "chat_id", chatID, "content", previewText(outbound.Content))

	if _, err := bot.SendMessage(ctx, params); err != nil {
		a.log.Error("Failed to send telegram message", "chat_id", chatID, "error", err)
	}
}

// senderAllowed checks whether a sender is permitted by allow_from config.
//
// When no allow list is configured, all senders are accepted.
func (a *Adapter) senderAllowed(senderID string) bool {
	if len(a.allowFrom) == 0 {
		return true
	}

	_, ok := a.allowFrom[strings.TrimSpace(senderID)]
	return ok
}

// splitCommand separates "/buy https://..." into the command and its argument.
// The "@botname" suffix Telegram appends in groups is stripped.
func splitCommand(text string) (string, string) {
	command, args, _ := strings.Cut(strings.TrimSpace(text), " ")
	if at := strings.Index(command, "@"); at > 0 {
		command = command[:at]
	}
	return strings.ToLower(command), strings.TrimSpace(args)
}

// voiceFormatHint derives the container hint for the transcriber.
func voiceFormatHint(filePath string, mimeType string) string {
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filePath)), "."); ext != "" {
		return ext
	}
	if strings.Contains(strings.ToLower(mimeType), "ogg") {
		return "ogg"
	}
	return ""
}

// allowFromSet normalizes allow_from values into a lookup set.
func allowFromSet(allowFrom []string) map[string]struct{} {
	if len(allowFrom) == 0 {
		return nil
	}

	allowed := make(map[string]struct{}, len(allowFrom))
	for _, value := range allowFrom {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		allowed[trimmed] = struct{}{}
	}

	if len(allowed) == 0 {
		return nil
	}

	return allowed
}

// previewText returns a bounded log-safe preview of message text.
func previewText(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= messagePreviewLimit {
		return trimmed
	}

	return trimmed[:messagePreviewLimit] + "..."
}

// startTypingIndicator sends an initial typing action and refreshes it
// periodically until the returned cancel function is called.
func (a *Adapter) startTypingIndicator(ctx context.Context, bot *telego.Bot, chatID int64) context.CancelFunc {
	typingCtx, cancel := context.WithCancel(ctx)

	sendTyping := func() {
		if err := bot.SendChatAction(typingCtx, tu.ChatAction(tu.ID(chatID), telego.ChatActionTyping)); err != nil && typingCtx.Err() == nil {
			a.log.Debug("Failed to send typing indicator", "chat_id", chatID, "error", err)
		}
	}

	sendTyping()

	go func() {
		ticker := time.NewTicker(typingRefreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-typingCtx.Done():
				return
			case <-ticker.C:
				sendTyping()
			}
		}
	}()

	return cancel
}
