package enrollment

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const codeBytes = 10

var (
	ErrCodeNotFound = errors.New("enrollment code not found")
	ErrCodeExpired  = errors.New("enrollment code has expired")
)

// Code is a one-time secret that pairs a device with an agent account.
// The plaintext is only known when the code is created.
type Code struct {
	Code      string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type CodeStore struct {
	mu    sync.Mutex
	codes map[string]Code // keyed by hash
	ttl   time.Duration
	now   func() time.Time
}

func NewCodeStore(ttl time.Duration) *CodeStore {
	return &CodeStore{
		codes: make(map[string]Code),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Create issues a fresh code for userID. Earlier pending codes for the same
// user stay valid until they expire or are revoked.
func (cs *CodeStore) Create(userID string) (Code, error) {
	b := make([]byte, codeBytes)
	if _, err := rand.Read(b); err != nil {
		return Code{}, fmt.Errorf("failed to generate random code: %w", err)
	}
	plain := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b)

	now := cs.now()
	code := Code{
		Code:      plain,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(cs.ttl),
	}

	cs.mu.Lock()
	cs.codes[hashCode(plain)] = Code{UserID: userID, CreatedAt: now, ExpiresAt: code.ExpiresAt}
	cs.mu.Unlock()

	slog.Info("Enrollment code created", "user_id", userID, "expires_at", code.ExpiresAt)
	return code, nil
}

// Redeem consumes code and returns the user it was issued for. A code can
// be redeemed once.
func (cs *CodeStore) Redeem(plain string) (string, error) {
	key := hashCode(normalize(plain))

	cs.mu.Lock()
	defer cs.mu.Unlock()

	code, ok := cs.codes[key]
	if !ok {
		return "", ErrCodeNotFound
	}
	delete(cs.codes, key)
	if cs.now().After(code.ExpiresAt) {
		return "", ErrCodeExpired
	}
	return code.UserID, nil
}

func (cs *CodeStore) Revoke(userID string) int {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	removed := 0
	for key, code := range cs.codes {
		if code.UserID == userID {
			delete(cs.codes, key)
			removed++
		}
	}
	return removed
}

// Pending lists unexpired codes without their plaintext.
func (cs *CodeStore) Pending() []Code {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	now := cs.now()
	result := make([]Code, 0, len(cs.codes))
	for _, code := range cs.codes {
		if now.After(code.ExpiresAt) {
			continue
		}
		result = append(result, code)
	}
	return result
}

func (cs *CodeStore) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cs.cleanup()
		}
	}
}

func (cs *CodeStore) cleanup() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	now := cs.now()
	removed := 0
	for key, code := range cs.codes {
		if now.After(code.ExpiresAt) {
			delete(cs.codes, key)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("Cleaned up enrollment codes", "removed", removed)
	}
	return removed
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// codes are read off a screen and typed on a phone
func normalize(code string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(code), "-", ""))
}
