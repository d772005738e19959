package db

import "errors"

// ErrKeyNotFound is returned by Get for a missing key.
var ErrKeyNotFound = errors.New("db: key not found")

// Operation names used in Error.
const (
	OpPutIndexed    = "HSET+SADD"
	OpDeleteIndexed = "DEL+SREM"
	OpHGetAll       = "HGETALL"
	OpSMembers      = "SMEMBERS"
	OpGet           = "GET"
	OpSet           = "SET"
)

// Error wraps a driver error with the operation that failed.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + " " + e.Key + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }
