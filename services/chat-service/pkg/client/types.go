package client

// User is the public profile returned on sign-in.
type User struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is the outcome of register or login. The refresh token stays in
// the cookie jar and is never exposed here.
type Session struct {
	User        User   `json:"user"`
	AccessToken string `json:"accessToken"`
	DeviceID    string `json:"deviceId"`
}

type Identity struct {
	UserID   string `json:"userId"`
	DeviceID string `json:"deviceId"`
}

type SendMessageRequest struct {
	ConversationID string `json:"conversationId,omitempty"`
	Message        string `json:"message"`
}

type SendMessageResponse struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
	DeviceID    string `json:"deviceId"`
}

type logoutRequest struct {
	AccessToken string `json:"accessToken"`
}

type errorResponse struct {
	Message string `json:"message"`
}
