package bus

import "time"

// MessageKind distinguishes the supported inbound payload kinds.
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindVoice MessageKind = "voice"
)

// VoicePayload carries raw audio bytes plus a container hint ("ogg", "mp3", "wav").
type VoicePayload struct {
	Data       []byte
	FormatHint string
}

// InboundMessage is one normalized transport event entering the pipeline.
//
// Immutable once received; consumed by exactly one turn.
type InboundMessage struct {
	Channel    string            `json:"channel"`
	SenderID   string            `json:"sender_id"`
	ChatID     string            `json:"chat_id"`
	Kind       MessageKind       `json:"kind"`
	Content    string            `json:"content,omitempty"`
	Voice      *VoicePayload     `json:"-"`
	ReceivedAt time.Time         `json:"received_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// InlineLink is one clickable action attached to a reply.
type InlineLink struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// OutboundMessage is the single reply artifact produced per inbound message.
type OutboundMessage struct {
	Channel     string       `json:"channel"`
	ChatID      string       `json:"chat_id"`
	Content     string       `json:"content"`
	InlineLinks []InlineLink `json:"inline_links,omitempty"`
}

// Empty reports whether this reply carries nothing to send.
func (m OutboundMessage) Empty() bool {
	return m.Content == "" && len(m.InlineLinks) == 0
}
