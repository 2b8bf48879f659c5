// Package storage defines the key-value medium the repositories persist to.
//
// The medium plays the part a browser's local storage plays for a
// client-side app: string keys mapped to string values, each write replacing
// the whole value of one key. Backends live in the sub-packages:
//
//	storage/memory  in-process map (tests, throwaway runs)
//	storage/sqlite  embedded single-file database
//	storage/mysql   shared network database
package storage

import (
	"context"
	"io"
)

// Storage is the port every backend implements.
//
// A write to one key is atomic at the backend's granularity. There are no
// multi-key transactions; repositories that need read-modify-write
// serialize it themselves.
type Storage interface {
	// Get returns the value stored under key. ok is false when the key is
	// absent; that is not an error.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}

// Backend is a Storage that owns resources and must be closed on shutdown.
type Backend interface {
	Storage
	io.Closer
}
