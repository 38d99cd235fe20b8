package chat

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	s := NewLogSender(&logger)

	r, err := s.Send(context.Background(), Message{UserID: "u1", Text: "hello"})
	require.NoError(t, err)
	assert.NotEmpty(t, r.ConversationID)
	assert.NotEmpty(t, r.MessageID)
	assert.Contains(t, buf.String(), `"user_id":"u1"`)
	assert.NotContains(t, buf.String(), "hello")

	r2, err := s.Send(context.Background(), Message{UserID: "u1", ConversationID: "c1", Text: "again"})
	require.NoError(t, err)
	assert.Equal(t, "c1", r2.ConversationID)
}
