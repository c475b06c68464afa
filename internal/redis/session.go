package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"freightpay/internal/domain"
)

const sessionPrefix = "session:"

// SessionStore handles bearer-token sessions in Redis.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

// Create issues a new session token for the given user.
func (s *SessionStore) Create(ctx context.Context, phoneNumber string, userType domain.UserType) (*domain.Session, error) {
	session := &domain.Session{
		Token:       uuid.New().String(),
		PhoneNumber: phoneNumber,
		UserType:    userType,
		CreatedAt:   time.Now(),
	}

	data, err := json.Marshal(session)
	if err != nil {
		return nil, err
	}

	if err := s.client.Set(ctx, sessionPrefix+session.Token, data, s.ttl).Err(); err != nil {
		return nil, err
	}

	return session, nil
}

// Get looks up a session by token. Returns nil if the token is unknown
// or expired.
func (s *SessionStore) Get(ctx context.Context, token string) (*domain.Session, error) {
	data, err := s.client.Get(ctx, sessionPrefix+token).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Delete removes a session.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	return s.client.Del(ctx, sessionPrefix+token).Err()
}
