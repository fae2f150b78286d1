// Package pending is the ephemeral staging area for form data collected
// before a payment attempt. Entries are keyed by an opaque one-time token
// and expire on a fixed one-hour horizon. This is scratch space: nothing
// staged here may be the only copy of data a payment confirmation depends
// on.
package pending

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/academyhq/academy-server/internal/pkg/env"
)

// TTL is the staging horizon. Fixed at stage time, never extended.
const TTL = time.Hour

const tokenLength = 32

var (
	// ErrNotFound is returned for unknown or already-consumed tokens.
	ErrNotFound = errors.New("staging token not found")
	// ErrExpired is returned for tokens whose horizon passed before
	// consumption. Distinct from ErrNotFound so callers can answer 410 vs 404.
	ErrExpired = errors.New("staging token expired")
)

// Entry is one staged payload with its lifecycle bounds.
type Entry struct {
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Store stages pre-payment form data under unpredictable one-time tokens.
// Consume is destructive: exactly one caller can retrieve a given token.
type Store interface {
	Stage(payload json.RawMessage) (string, error)
	Consume(token string) (json.RawMessage, error)
}

var (
	globalStore Store
	storeOnce   sync.Once
)

// GetStore returns the process-wide staging store. The backend is selected
// by PENDING_STORE: "redis" shares staged data across instances through the
// cache server, anything else uses the in-process store with its sweeper.
func GetStore() Store {
	storeOnce.Do(func() {
		if strings.EqualFold(env.GetEnv("PENDING_STORE", "memory"), "redis") {
			globalStore = NewRedisStore()
			return
		}
		ms := NewMemoryStore()
		ms.StartSweeper(5 * time.Minute)
		globalStore = ms
	})
	return globalStore
}

// Alphabet for token generation (62 characters: 0-9, a-z, A-Z).
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// newToken creates a cryptographically secure random Base62 token.
func newToken() (string, error) {
	// Rejection sampling to avoid modulo bias.
	// 248 is the largest multiple of 62 below 256.
	const maxRandomByte = 248

	token := make([]byte, tokenLength)
	buf := make([]byte, tokenLength*2)
	written := 0

	for written < tokenLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read secure random bytes: %w", err)
		}

		for _, b := range buf {
			if b >= maxRandomByte {
				continue
			}
			token[written] = alphabet[int(b)%len(alphabet)]
			written++
			if written == tokenLength {
				break
			}
		}
	}

	return string(token), nil
}
