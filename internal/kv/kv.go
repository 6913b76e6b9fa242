// Package kv provides the origin-partitioned key-value store that holds
// every piece of per-client state: the user profile, completion records,
// daily counters and the catalog version marker.
//
// A storage origin is the opaque id carried in the client's origin cookie.
// Every key lives inside exactly one origin partition; tabs of the same
// client share a partition and observe its changes through Watch.
//
// Three backends implement Store:
//   - MemoryStore: in-process map, used for development and tests
//   - RedisStore: hashes plus WATCH/MULTI and PUBLISH/SUBSCRIBE
//   - PostgresStore: kv_entries table with a version column and LISTEN/NOTIFY
package kv

import (
	"context"
	"errors"
)

// Storage keys. The names are kept stable so change notifications seen by
// existing clients keep matching.
const (
	KeyUser             = "app:user"
	KeyCompletions      = "surveys.completions.v1"
	KeyDailyCompletions = "surveys.dailyCompletions.v1"
	KeyVersion          = "surveys:version"
)

// WatchedKeys are the keys whose changes should refresh a survey listing.
var WatchedKeys = []string{KeyUser, KeyCompletions, KeyDailyCompletions, KeyVersion}

// IsWatchedKey reports whether key is one of WatchedKeys.
func IsWatchedKey(key string) bool {
	for _, k := range WatchedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// MaxUpdateAttempts bounds the compare-and-swap retries of Update.
const MaxUpdateAttempts = 5

var (
	// ErrConflict is returned by Update when the value kept changing
	// underneath it for MaxUpdateAttempts attempts.
	ErrConflict = errors.New("kv: concurrent update conflict")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("kv: store closed")
)

// Change identifies a key that was written or deleted.
type Change struct {
	Origin string `json:"origin"`
	Key    string `json:"key"`
}

// UpdateFunc computes the new value of a key from its current value.
//
// old is nil and exists is false when the key is absent. Returning
// write=false leaves the key untouched. Returning write=true with a nil
// next deletes the key.
//
// UpdateFunc may be called several times for one Update, so it must not
// have side effects.
type UpdateFunc func(old []byte, exists bool) (next []byte, write bool, err error)

// Store is an origin-partitioned key-value store.
type Store interface {
	// Get returns the raw value of key. found is false if the key is absent.
	Get(ctx context.Context, origin, key string) (value []byte, found bool, err error)

	// Set overwrites key with value.
	Set(ctx context.Context, origin, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, origin, key string) error

	// Update performs an atomic read-modify-write of key. If the value
	// changes between the read and the write, the read is repeated, up to
	// MaxUpdateAttempts times before ErrConflict is returned.
	Update(ctx context.Context, origin, key string, fn UpdateFunc) error

	// Watch streams a Change for every successful write or delete until
	// ctx is cancelled, after which the channel is closed. Slow readers may
	// miss changes.
	Watch(ctx context.Context) (<-chan Change, error)

	// Close releases the store's resources.
	Close() error
}

// watchBuffer is the channel capacity handed to Watch callers.
const watchBuffer = 64
