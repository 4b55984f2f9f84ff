// Package cache provides the cache-aside store used for message reads.
// Failures from a Cache must be treated as misses by callers, never as
// request failures.
package cache

import "time"

type Cache interface {
	Get(key string) (interface{}, bool, error)
	Set(key string, value interface{}, ttl time.Duration) error
	Delete(key string) error
	DeletePrefix(prefix string) error
}
