package redis

import (
	"context"

	"freightpay/internal/domain"
)

// ProfileCacheInterface defines the interface for profile cache operations.
type ProfileCacheInterface interface {
	GetProfile(ctx context.Context, userType domain.UserType, phoneNumber string) (*CachedProfile, error)
	SetProfile(ctx context.Context, userType domain.UserType, profile *CachedProfile) error
	InvalidateProfile(ctx context.Context, userType domain.UserType, phoneNumber string) error
}

// SessionStoreInterface defines the interface for session operations.
type SessionStoreInterface interface {
	Create(ctx context.Context, phoneNumber string, userType domain.UserType) (*domain.Session, error)
	Get(ctx context.Context, token string) (*domain.Session, error)
	Delete(ctx context.Context, token string) error
}

// Ensure concrete types implement interfaces.
var (
	_ ProfileCacheInterface = (*CacheStore)(nil)
	_ SessionStoreInterface = (*SessionStore)(nil)
)
