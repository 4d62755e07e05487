package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skillboard/portal/internal/core/domain"
)

// TokenStore keeps refresh records in Redis.
// Key format: auth:rt:<token_hash>
type TokenStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewTokenStore(client *redis.Client) *TokenStore {
	return &TokenStore{client: client, now: time.Now}
}

// Save stores rec until it expires. Records already past expiry are dropped.
func (s *TokenStore) Save(ctx context.Context, hash string, rec domain.RefreshRecord) error {
	ttl := rec.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode refresh record: %w", err)
	}
	if err := s.client.Set(ctx, refreshKey(hash), b, ttl).Err(); err != nil {
		return fmt.Errorf("save refresh record: %w", err)
	}
	return nil
}

// Consume fetches and deletes the record in one GETDEL.
func (s *TokenStore) Consume(ctx context.Context, hash string) (*domain.RefreshRecord, error) {
	b, err := s.client.GetDel(ctx, refreshKey(hash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("consume refresh record: %w", err)
	}
	return decodeRecord(b)
}

func (s *TokenStore) Revoke(ctx context.Context, hash string) error {
	if err := s.client.Del(ctx, refreshKey(hash)).Err(); err != nil {
		return fmt.Errorf("revoke refresh record: %w", err)
	}
	return nil
}

func decodeRecord(b []byte) (*domain.RefreshRecord, error) {
	var rec domain.RefreshRecord
	if err := json.Unmarshal(b, &rec); err != nil || rec.UserID == "" {
		return nil, domain.ErrTokenInvalid
	}
	return &rec, nil
}

func refreshKey(hash string) string {
	return "auth:rt:" + hash
}
