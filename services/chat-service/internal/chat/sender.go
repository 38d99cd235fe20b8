package chat

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Message is a user's chat message addressed to a conversation.
type Message struct {
	UserID         string
	DeviceID       string
	ConversationID string
	Text           string
}

// Receipt acknowledges an accepted message.
type Receipt struct {
	ConversationID string
	MessageID      string
}

// Sender hands messages to the conversation backend.
type Sender interface {
	Send(ctx context.Context, msg Message) (*Receipt, error)
}

type logSender struct {
	logger *zerolog.Logger
}

// NewLogSender returns a Sender that acknowledges and logs every message.
// A new conversation id is assigned when the message does not name one.
func NewLogSender(logger *zerolog.Logger) Sender {
	return &logSender{logger: logger}
}

func (s *logSender) Send(_ context.Context, msg Message) (*Receipt, error) {
	receipt := &Receipt{
		ConversationID: msg.ConversationID,
		MessageID:      uuid.NewString(),
	}
	if receipt.ConversationID == "" {
		receipt.ConversationID = uuid.NewString()
	}

	s.logger.Info().
		Str("user_id", msg.UserID).
		Str("conversation_id", receipt.ConversationID).
		Str("message_id", receipt.MessageID).
		Int("length", len(msg.Text)).
		Msg("message accepted")

	return receipt, nil
}
