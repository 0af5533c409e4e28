// Package session keeps admin logins in Valkey. The browser holds an
// opaque random ID; Valkey holds the JSON payload under a digest of that
// ID, so a keyspace dump never yields a usable cookie. Every successful
// lookup slides the expiry forward.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	CookieName = "cf_session"

	// IdleTTL is how long an unused session survives.
	IdleTTL = 8 * time.Hour

	keyPrefix = "session:"
	idBytes   = 32
)

// Data is the authenticated admin's identity as stored in Valkey.
type Data struct {
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

func (d *Data) IsAdmin() bool {
	return d.Role == "admin"
}

// Store issues, resolves and revokes session cookies.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	secure bool
}

// NewStore returns a Store on client. secure sets the cookie's Secure
// attribute and should be true whenever the service is served over TLS.
func NewStore(client *redis.Client, secure bool) *Store {
	return &Store{client: client, ttl: IdleTTL, secure: secure}
}

// Create persists data under a fresh ID and sets the cookie on w.
func (s *Store) Create(ctx context.Context, w http.ResponseWriter, data *Data) (string, error) {
	raw := make([]byte, idBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	id := hex.EncodeToString(raw)

	data.CreatedAt = time.Now().UTC()
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, storageKey(id), payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	s.setCookie(w, id, int(s.ttl.Seconds()))
	return id, nil
}

// Get resolves the request's cookie. Missing, malformed or expired
// sessions return (nil, nil). A hit extends the idle expiry.
func (s *Store) Get(ctx context.Context, r *http.Request) (*Data, error) {
	id, ok := cookieID(r)
	if !ok {
		return nil, nil
	}

	payload, err := s.client.GetEx(ctx, storageKey(id), s.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var data Data
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &data, nil
}

// Destroy deletes the stored session, if any, and always expires the
// cookie so a stale browser value is cleared too.
func (s *Store) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if _, err := r.Cookie(CookieName); err != nil {
		return nil
	}
	s.setCookie(w, "", -1)

	id, ok := cookieID(r)
	if !ok {
		return nil
	}
	if err := s.client.Del(ctx, storageKey(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *Store) setCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// cookieID returns the session ID from r if it has the shape Create
// issues. Anything else is rejected without a Valkey round trip.
func cookieID(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || len(c.Value) != 2*idBytes {
		return "", false
	}
	if _, err := hex.DecodeString(c.Value); err != nil {
		return "", false
	}
	return c.Value, true
}

func storageKey(id string) string {
	sum := sha256.Sum256([]byte(id))
	return keyPrefix + hex.EncodeToString(sum[:])
}
