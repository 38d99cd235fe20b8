package model

import "time"

// RefreshSession is the refresh token a user is currently signed in with,
// plus the access token most recently issued from it.
type RefreshSession struct {
	Token       string    `bson:"token"`
	DeviceID    string    `bson:"device_id"`
	AccessToken string    `bson:"access_token"`
	IPAddress   string    `bson:"ip_address,omitempty"`
	UserAgent   string    `bson:"user_agent,omitempty"`
	CreatedAt   time.Time `bson:"created_at"`
}
