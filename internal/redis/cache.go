package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"freightpay/internal/domain"
)

// CacheStore handles profile caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// ProfileCacheTTL bounds staleness of cached balance/subscription data
// between invalidations.
const ProfileCacheTTL = 60 * time.Second

// Key prefixes
const (
	driverInfoPrefix     = "cache:driver_info:"
	cargoOwnerInfoPrefix = "cache:cargo_owner_info:"
)

// CachedProfile is the cached server-side view of a user's wallet and
// subscription, keyed by phone number. Invalidated whenever a payment
// is verified so the next read reflects the settled balance.
type CachedProfile struct {
	PhoneNumber      string `json:"phone_number"`
	UserType         string `json:"user_type"`
	WalletBalance    int64  `json:"wallet_balance"`
	SubscriptionPlan string `json:"subscription_plan"`
	SubscribedUntil  int64  `json:"subscribed_until"`
}

func profileKey(userType domain.UserType, phoneNumber string) string {
	if userType == domain.UserTypeCargoOwner {
		return cargoOwnerInfoPrefix + phoneNumber
	}
	return driverInfoPrefix + phoneNumber
}

// GetProfile retrieves a cached profile. Returns nil on cache miss.
func (s *CacheStore) GetProfile(ctx context.Context, userType domain.UserType, phoneNumber string) (*CachedProfile, error) {
	data, err := s.client.Get(ctx, profileKey(userType, phoneNumber)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var profile CachedProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// SetProfile stores a profile in cache.
func (s *CacheStore) SetProfile(ctx context.Context, userType domain.UserType, profile *CachedProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, profileKey(userType, profile.PhoneNumber), data, ProfileCacheTTL).Err()
}

// InvalidateProfile removes the cached profile for a user.
func (s *CacheStore) InvalidateProfile(ctx context.Context, userType domain.UserType, phoneNumber string) error {
	return s.client.Del(ctx, profileKey(userType, phoneNumber)).Err()
}
