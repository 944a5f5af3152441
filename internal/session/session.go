package session

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/sliqpay/backend/internal/cache"
)

// Data is the payload stored with every session.
type Data struct {
	UserID    string   `json:"userId"`
	Roles     []string `json:"roles,omitempty"`
	CreatedAt int64    `json:"createdAt"` // unix millis
}

// Record is a stored session keyed by its opaque identifier.
type Record struct {
	ID   string `json:"id"`
	Data Data   `json:"data"`
}

// Manager creates, reads and destroys sessions in the key-value store.
type Manager struct {
	store cache.Store
}

func NewManager(store cache.Store) *Manager {
	viper.SetDefault("session.cookie_name", "sid")
	viper.SetDefault("session.ttl_seconds", 60*60*24*7) // 7 days
	return &Manager{store: store}
}

// DefaultTTL returns the configured session lifetime.
func (m *Manager) DefaultTTL() time.Duration {
	return time.Duration(viper.GetInt("session.ttl_seconds")) * time.Second
}

// CookieName returns the configured session cookie name.
func (m *Manager) CookieName() string {
	return viper.GetString("session.cookie_name")
}

func sessionKey(id string) string {
	return "sess:" + id
}

// newSessionID generates an opaque identifier with well over 128 bits of
// randomness. The id carries no decodable payload.
func newSessionID() (string, error) {
	suffix := make([]byte, 16)
	if _, err := cryptorand.Read(suffix); err != nil {
		return "", err
	}
	return uuid.NewString() + hex.EncodeToString(suffix), nil
}

// Create stores a new session and returns its record. A non-positive ttl
// falls back to the configured default.
func (m *Manager) Create(ctx context.Context, data Data, ttl time.Duration) (*Record, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = m.DefaultTTL()
	}
	data.CreatedAt = time.Now().UnixMilli()

	record := &Record{ID: id, Data: data}
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	if err := m.store.Set(ctx, sessionKey(id), string(payload), ttl); err != nil {
		return nil, err
	}
	return record, nil
}

// Get returns the session for id, or nil if it is missing or expired.
// When refreshTTL is set the expiry is extended to ttl (or the default).
func (m *Manager) Get(ctx context.Context, id string, refreshTTL bool, ttl time.Duration) (*Record, error) {
	raw, err := m.store.Get(ctx, sessionKey(id))
	if errors.Is(err, cache.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var record Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, err
	}

	if refreshTTL {
		if ttl <= 0 {
			ttl = m.DefaultTTL()
		}
		if err := m.store.Expire(ctx, sessionKey(id), int64(ttl/time.Second)); err != nil {
			return nil, err
		}
	}
	return &record, nil
}

// Destroy removes the session. Destroying an absent session is not an error.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	return m.store.Del(ctx, sessionKey(id))
}

func isProduction() bool {
	return viper.GetString("environment") == "production"
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if isProduction() {
		sameSite = http.SameSiteStrictMode
	}
	return &http.Cookie{
		Name:     m.CookieName(),
		Value:    value,
		Path:     "/",
		Domain:   viper.GetString("cookie.domain"),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   isProduction(),
		SameSite: sameSite,
	}
}

// SetCookie attaches the session cookie to the response.
func (m *Manager) SetCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, m.cookie(id, int(m.DefaultTTL()/time.Second)))
}

// ClearCookie expires the session cookie.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, m.cookie("", -1))
}
