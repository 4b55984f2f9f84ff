package cache_test

import (
	"testing"
	"time"

	"github.com/contactrelay/mailgateway/pkg/cache"
	"github.com/stretchr/testify/assert"
)

func TestMemory(t *testing.T) {
	t.Run("set and get", func(t *testing.T) {
		m := cache.NewMemory(0)
		defer m.Close()

		assert.NoError(t, m.Set("key", "value", time.Minute))

		value, ok, err := m.Get("key")
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "value", value)
	})

	t.Run("missing key", func(t *testing.T) {
		m := cache.NewMemory(0)
		defer m.Close()

		value, ok, err := m.Get("missing")
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, value)
	})

	t.Run("expired entry is dropped on read", func(t *testing.T) {
		m := cache.NewMemory(0)
		defer m.Close()

		assert.NoError(t, m.Set("key", "value", 5*time.Millisecond))
		time.Sleep(10 * time.Millisecond)

		_, ok, err := m.Get("key")
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("zero ttl is not stored", func(t *testing.T) {
		m := cache.NewMemory(0)
		defer m.Close()

		assert.NoError(t, m.Set("key", "value", 0))

		_, ok, _ := m.Get("key")
		assert.False(t, ok)
	})

	t.Run("delete", func(t *testing.T) {
		m := cache.NewMemory(0)
		defer m.Close()

		assert.NoError(t, m.Set("key", "value", time.Minute))
		assert.NoError(t, m.Delete("key"))

		_, ok, _ := m.Get("key")
		assert.False(t, ok)
	})

	t.Run("delete prefix drops matching keys only", func(t *testing.T) {
		m := cache.NewMemory(0)
		defer m.Close()

		assert.NoError(t, m.Set("messages:list:a", 1, time.Minute))
		assert.NoError(t, m.Set("messages:list:b", 2, time.Minute))
		assert.NoError(t, m.Set("messages:stats", 3, time.Minute))

		assert.NoError(t, m.DeletePrefix("messages:list:"))

		_, ok, _ := m.Get("messages:list:a")
		assert.False(t, ok)
		_, ok, _ = m.Get("messages:list:b")
		assert.False(t, ok)
		_, ok, _ = m.Get("messages:stats")
		assert.True(t, ok)
	})

	t.Run("set overwrites", func(t *testing.T) {
		m := cache.NewMemory(0)
		defer m.Close()

		assert.NoError(t, m.Set("key", "old", time.Minute))
		assert.NoError(t, m.Set("key", "new", time.Minute))

		value, ok, _ := m.Get("key")
		assert.True(t, ok)
		assert.Equal(t, "new", value)
	})

	t.Run("janitor sweeps expired entries", func(t *testing.T) {
		m := cache.NewMemory(10 * time.Millisecond)
		defer m.Close()

		assert.NoError(t, m.Set("key", "value", 5*time.Millisecond))

		assert.Eventually(t, func() bool {
			_, ok, _ := m.Get("key")
			return !ok
		}, time.Second, 5*time.Millisecond)
	})
}
