package cache

import (
	"context"
	"fmt"
	"time"
)

// Store is the opaque key→value backend behind the market cache. Values are
// serialized bytes; callers own (de)serialization. Implementations must make
// each operation independently atomic.
type Store interface {
	// Get returns the value for key, or a KEY_NOT_FOUND CacheError if the
	// key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)

	Ping(ctx context.Context) error
	Close() error
}

// CacheError represents a cache backend failure.
type CacheError struct {
	Operation string
	Key       string
	Code      string
	Err       error
}

func (e *CacheError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("cache %s operation failed for key '%s': %v", e.Operation, e.Key, e.Err)
	}
	return fmt.Sprintf("cache %s operation failed: %v", e.Operation, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrCodeKeyNotFound      = "KEY_NOT_FOUND"
	ErrCodeConnectionFailed = "CONNECTION_FAILED"
	ErrCodeSerialization    = "SERIALIZATION_ERROR"
)

// NewCacheError creates a new cache error.
func NewCacheError(operation, key, code string, err error) *CacheError {
	return &CacheError{
		Operation: operation,
		Key:       key,
		Code:      code,
		Err:       err,
	}
}

// IsNotFound checks if err is a "key not found" cache error.
func IsNotFound(err error) bool {
	if cacheErr, ok := err.(*CacheError); ok {
		return cacheErr.Code == ErrCodeKeyNotFound
	}
	return false
}
