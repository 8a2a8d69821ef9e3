package keyring

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"kkexlink/pkg/core"
)

type KeyRing struct {
	mu       sync.RWMutex
	keys     []*APIKey
	current  int
	strategy RotationStrategy
	clock    func() time.Time
	logger   zerolog.Logger
}

// APIKey is one credential pair plus the nonce state the venue tracks for it.
type APIKey struct {
	ID         string
	Key        string
	Secret     string
	Disabled   bool
	LastUsed   time.Time
	ErrorCount int

	lastNonce atomic.Int64
}

type RotationStrategy int

const (
	RotationRoundRobin RotationStrategy = iota
	RotationOnError
	RotationOnRateLimit
)

type Option func(*KeyRing)

// WithClock replaces the time source used for nonces and usage stamps.
func WithClock(clock func() time.Time) Option {
	return func(k *KeyRing) {
		k.clock = clock
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(k *KeyRing) {
		k.logger = l
	}
}

func NewKeyRing(keys []*APIKey, strategy RotationStrategy, opts ...Option) *KeyRing {
	k := &KeyRing{
		keys:     make([]*APIKey, 0, len(keys)),
		strategy: strategy,
		clock:    time.Now,
		logger:   zerolog.Nop(),
	}
	for _, key := range keys {
		k.keys = append(k.keys, &APIKey{
			ID:       key.ID,
			Key:      key.Key,
			Secret:   key.Secret,
			Disabled: key.Disabled,
		})
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// FromCredentials builds a single-key ring. It returns nil when creds is nil.
func FromCredentials(creds *core.Credentials, opts ...Option) *KeyRing {
	if creds == nil {
		return nil
	}
	return NewKeyRing([]*APIKey{{ID: "default", Key: creds.APIKey, Secret: creds.SecretKey}}, RotationRoundRobin, opts...)
}

func (k *KeyRing) Current() *APIKey {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if len(k.keys) == 0 {
		return nil
	}

	for i := 0; i < len(k.keys); i++ {
		idx := (k.current + i) % len(k.keys)
		if !k.keys[idx].Disabled {
			return k.keys[idx]
		}
	}

	return nil
}

// Lease is one key checkout: the credentials to sign with, the nonce to send
// and the ID of the key that must answer for the outcome.
type Lease struct {
	KeyID       string
	Credentials core.Credentials
	Nonce       int64
}

// Acquire returns the current key's credentials together with a fresh nonce
// and stamps the key as used. Round-robin rings advance afterwards.
func (k *KeyRing) Acquire() (Lease, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	key := k.currentLocked()
	if key == nil {
		return Lease{}, core.ErrNoAPIKey
	}

	now := k.clock()
	key.LastUsed = now
	lease := Lease{
		KeyID:       key.ID,
		Credentials: core.Credentials{APIKey: key.Key, SecretKey: key.Secret},
		Nonce:       key.nextNonce(now.UnixMilli()),
	}

	if k.strategy == RotationRoundRobin {
		k.rotateLocked()
	}

	return lease, nil
}

func (k *KeyRing) currentLocked() *APIKey {
	for i := 0; i < len(k.keys); i++ {
		idx := (k.current + i) % len(k.keys)
		if !k.keys[idx].Disabled {
			k.current = idx
			return k.keys[idx]
		}
	}
	return nil
}

func (k *KeyRing) Rotate() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.rotateLocked()
}

func (k *KeyRing) rotateLocked() {
	if len(k.keys) == 0 {
		return
	}

	start := k.current
	for {
		k.current = (k.current + 1) % len(k.keys)
		if !k.keys[k.current].Disabled {
			return
		}
		if k.current == start {
			return
		}
	}
}

// OnError charges a failed private call to the key that signed it. The ring
// only rotates away from that key if it is still the current one.
func (k *KeyRing) OnError(keyID string, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	idx := k.indexLocked(keyID)
	if idx < 0 {
		return
	}
	key := k.keys[idx]
	key.ErrorCount++

	if idx != k.current {
		return
	}
	switch {
	case k.strategy == RotationOnError,
		k.strategy == RotationOnRateLimit && core.IsRateLimitError(err):
		k.logger.Debug().Str("key", key.String()).Err(err).Msg("rotating api key")
		k.rotateLocked()
	}
}

func (k *KeyRing) indexLocked(id string) int {
	for i, key := range k.keys {
		if key.ID == id {
			return i
		}
	}
	return -1
}

func (k *KeyRing) Disable(id string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, key := range k.keys {
		if key.ID == id {
			key.Disabled = true
			return
		}
	}
}

func (k *KeyRing) Enable(id string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, key := range k.keys {
		if key.ID == id {
			key.Disabled = false
			key.ErrorCount = 0
			return
		}
	}
}

func (k *KeyRing) Add(key *APIKey) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, existing := range k.keys {
		if existing.ID == key.ID {
			return
		}
	}

	k.keys = append(k.keys, &APIKey{
		ID:     key.ID,
		Key:    key.Key,
		Secret: key.Secret,
	})
}

func (k *KeyRing) Remove(id string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for i, key := range k.keys {
		if key.ID == id {
			k.keys = append(k.keys[:i], k.keys[i+1:]...)
			if k.current >= len(k.keys) && len(k.keys) > 0 {
				k.current = 0
			}
			return
		}
	}
}

// Nonce returns a millisecond nonce for this key. Values are strictly
// increasing even when the clock stalls, steps back, or callers race.
func (a *APIKey) Nonce(now time.Time) int64 {
	return a.nextNonce(now.UnixMilli())
}

func (a *APIKey) nextNonce(candidate int64) int64 {
	for {
		last := a.lastNonce.Load()
		next := candidate
		if next <= last {
			next = last + 1
		}
		if a.lastNonce.CompareAndSwap(last, next) {
			return next
		}
	}
}

func (a *APIKey) String() string {
	return fmt.Sprintf("APIKey{ID:%s, Key:%s}", a.ID, maskKey(a.Key))
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
