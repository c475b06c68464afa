package domain

import "time"

// Session is an authenticated user session backed by a bearer token.
type Session struct {
	Token       string    `json:"token"`
	PhoneNumber string    `json:"phone_number"`
	UserType    UserType  `json:"user_type"`
	CreatedAt   time.Time `json:"created_at"`
}
