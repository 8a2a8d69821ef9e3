package keyring

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kkexlink/pkg/core"
)

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestAPIKey_NonceStrictlyIncreasing(t *testing.T) {
	key := &APIKey{ID: "a", Key: "k", Secret: "s"}
	at := time.UnixMilli(1_000)

	assert.Equal(t, int64(1_000), key.Nonce(at))
	assert.Equal(t, int64(1_001), key.Nonce(at))
	assert.Equal(t, int64(1_002), key.Nonce(time.UnixMilli(500)))
	assert.Equal(t, int64(5_000), key.Nonce(time.UnixMilli(5_000)))
}

func TestAPIKey_NonceConcurrent(t *testing.T) {
	key := &APIKey{ID: "a"}
	at := time.UnixMilli(1_000)

	const workers = 32
	const perWorker = 100

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]struct{}, workers*perWorker)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, perWorker)
			for j := 0; j < perWorker; j++ {
				local = append(local, key.Nonce(at))
			}
			mu.Lock()
			for _, n := range local {
				seen[n] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}

func TestKeyRing_Acquire(t *testing.T) {
	kr := NewKeyRing([]*APIKey{
		{ID: "a", Key: "key-a", Secret: "sec-a"},
		{ID: "b", Key: "key-b", Secret: "sec-b"},
	}, RotationRoundRobin, WithClock(fixedClock(42)))

	lease, err := kr.Acquire()
	require.NoError(t, err)
	assert.Equal(t, "a", lease.KeyID)
	assert.Equal(t, core.Credentials{APIKey: "key-a", SecretKey: "sec-a"}, lease.Credentials)
	assert.Equal(t, int64(42), lease.Nonce)

	lease, err = kr.Acquire()
	require.NoError(t, err)
	assert.Equal(t, "b", lease.KeyID)
	assert.Equal(t, "key-b", lease.Credentials.APIKey)
	assert.Equal(t, int64(42), lease.Nonce)

	lease, err = kr.Acquire()
	require.NoError(t, err)
	assert.Equal(t, "key-a", lease.Credentials.APIKey)
	assert.Equal(t, int64(43), lease.Nonce)
}

func TestKeyRing_AcquireEmpty(t *testing.T) {
	kr := NewKeyRing(nil, RotationRoundRobin)

	_, err := kr.Acquire()
	assert.ErrorIs(t, err, core.ErrNoAPIKey)
	assert.Nil(t, kr.Current())
}

func TestKeyRing_DisableSkipsKey(t *testing.T) {
	kr := NewKeyRing([]*APIKey{
		{ID: "a", Key: "key-a"},
		{ID: "b", Key: "key-b"},
	}, RotationOnError)

	kr.Disable("a")
	assert.Equal(t, "b", kr.Current().ID)

	kr.Disable("b")
	_, err := kr.Acquire()
	assert.ErrorIs(t, err, core.ErrNoAPIKey)

	kr.Enable("a")
	assert.Equal(t, "a", kr.Current().ID)
}

func TestKeyRing_OnError(t *testing.T) {
	rateLimited := core.NewExchangeError("kkex", core.ErrorTypeRateLimit, 429, "slow down")

	t.Run("on_error_rotates", func(t *testing.T) {
		kr := NewKeyRing([]*APIKey{{ID: "a"}, {ID: "b"}}, RotationOnError)
		kr.OnError("a", errors.New("boom"))
		assert.Equal(t, "b", kr.Current().ID)
	})

	t.Run("on_rate_limit_ignores_other_errors", func(t *testing.T) {
		kr := NewKeyRing([]*APIKey{{ID: "a"}, {ID: "b"}}, RotationOnRateLimit)
		kr.OnError("a", errors.New("boom"))
		assert.Equal(t, "a", kr.Current().ID)

		kr.OnError("a", rateLimited)
		assert.Equal(t, "b", kr.Current().ID)
	})

	t.Run("stale_key_does_not_rotate", func(t *testing.T) {
		kr := NewKeyRing([]*APIKey{{ID: "a"}, {ID: "b"}}, RotationOnError)
		kr.Rotate()
		kr.OnError("a", errors.New("boom"))
		assert.Equal(t, "b", kr.Current().ID)
	})

	t.Run("unknown_key_ignored", func(t *testing.T) {
		kr := NewKeyRing([]*APIKey{{ID: "a"}}, RotationOnError)
		kr.OnError("gone", errors.New("boom"))
		assert.Equal(t, 0, kr.Current().ErrorCount)
	})
}

func TestKeyRing_OnErrorChargesSigningKey(t *testing.T) {
	kr := NewKeyRing([]*APIKey{{ID: "a"}, {ID: "b"}}, RotationRoundRobin)

	lease, err := kr.Acquire()
	require.NoError(t, err)
	require.Equal(t, "a", lease.KeyID)

	kr.OnError(lease.KeyID, errors.New("boom"))

	errorsByID := map[string]int{}
	for i := 0; i < 2; i++ {
		key := kr.Current()
		errorsByID[key.ID] = key.ErrorCount
		kr.Rotate()
	}
	assert.Equal(t, map[string]int{"a": 1, "b": 0}, errorsByID)
}

func TestKeyRing_AddRemove(t *testing.T) {
	kr := NewKeyRing([]*APIKey{{ID: "a"}}, RotationOnError)

	kr.Add(&APIKey{ID: "b", Key: "key-b"})
	kr.Add(&APIKey{ID: "b", Key: "dup"})
	kr.Rotate()
	assert.Equal(t, "key-b", kr.Current().Key)

	kr.Remove("b")
	assert.Equal(t, "a", kr.Current().ID)
}

func TestFromCredentials(t *testing.T) {
	assert.Nil(t, FromCredentials(nil))

	kr := FromCredentials(&core.Credentials{APIKey: "k", SecretKey: "s"}, WithClock(fixedClock(7)))
	lease, err := kr.Acquire()
	require.NoError(t, err)
	assert.Equal(t, "default", lease.KeyID)
	assert.Equal(t, "k", lease.Credentials.APIKey)
	assert.Equal(t, int64(7), lease.Nonce)
}

func TestAPIKey_String(t *testing.T) {
	assert.Equal(t, "APIKey{ID:a, Key:****}", (&APIKey{ID: "a", Key: "short"}).String())
	assert.Equal(t, "APIKey{ID:a, Key:abcd****mnop}", (&APIKey{ID: "a", Key: "abcdefghijklmnop"}).String())
}
