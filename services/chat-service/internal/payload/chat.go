package payload

type SendMessageRequest struct {
	ConversationID string `json:"conversationId" validate:"omitempty,max=64"`
	Message        string `json:"message"        validate:"required,max=4000"`
}

type SendMessageResponse struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
}
