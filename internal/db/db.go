package db

import (
	"context"
	"time"
)

// Store is the database facade wired at startup. Consumers depend on the narrow interfaces below.
type Store interface {
	Pinger
	EntryStore
	CacheStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// EntryStore keeps hash entries together with a set index of the entities that own them.
type EntryStore interface {
	// PutIndexed writes the hash at key and adds member to the index set in one round trip.
	PutIndexed(ctx context.Context, key string, fields map[string]string, index, member string) error
	// DeleteIndexed removes the hashes and drops member from the index set.
	// It returns how many of the keys existed.
	DeleteIndexed(ctx context.Context, keys []string, index, member string) (int, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	SMembers(ctx context.Context, index string) ([]string, error)
}

// CacheStore holds opaque values with an expiry.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
