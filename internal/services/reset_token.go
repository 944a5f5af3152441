package services

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/spf13/viper"

	"github.com/sliqpay/backend/internal/cache"
)

func resetKey(token string) string {
	return "pwreset:" + token
}

// createResetToken stores a random, unguessable token mapping to the
// user for the configured TTL.
func (s *AuthService) createResetToken(ctx context.Context, userID string) (string, error) {
	b := make([]byte, 32)
	if _, err := cryptorand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)

	ttl := time.Duration(viper.GetInt("reset_token.ttl_seconds")) * time.Second
	if err := s.store.Set(ctx, resetKey(token), userID, ttl); err != nil {
		return "", err
	}
	return token, nil
}

// consumeResetToken resolves and destroys the token in one call so it
// cannot be used twice. An absent or expired token yields "".
func (s *AuthService) consumeResetToken(ctx context.Context, token string) (string, error) {
	userID, err := s.store.Get(ctx, resetKey(token))
	if errors.Is(err, cache.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if err := s.store.Del(ctx, resetKey(token)); err != nil {
		return "", err
	}
	return userID, nil
}
