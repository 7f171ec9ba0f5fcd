// Package objectstore abstracts the storage backends that hold persisted
// sensitivity chunks: local filesystem, in-memory (tests) and S3-compatible
// object storage.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrNotFound is returned when an object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrInvalidConfig is returned for an unrecognized or incomplete
	// store configuration.
	ErrInvalidConfig = errors.New("invalid object store configuration")
)

// Store is the minimal surface the sensitivity pipeline needs: whole-object
// reads and overwriting writes. There are no conditional operations; the
// design assumes one writer per path at a time.
type Store interface {
	// Get opens the object at key for reading.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Put writes the object at key, replacing any previous content.
	Put(ctx context.Context, key string, body io.Reader, size int64) error

	// Delete removes the object at key. Deleting a missing object is not
	// an error.
	Delete(ctx context.Context, key string) error

	// List returns the keys under prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Type selects a storage backend.
type Type string

const (
	TypeFilesystem Type = "fs"
	TypeMemory     Type = "memory"
	TypeS3         Type = "s3"
)

// IsValid reports whether t names a known backend.
func (t Type) IsValid() bool {
	switch t {
	case TypeFilesystem, TypeMemory, TypeS3:
		return true
	default:
		return false
	}
}

// Config selects and parameterizes a backend.
type Config struct {
	Type Type

	// Root is the base directory for the filesystem backend.
	Root string

	// S3 backend settings.
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// New builds the configured backend, wrapped with Prometheus
// instrumentation.
func New(cfg Config) (Store, error) {
	switch cfg.Type {
	case TypeFilesystem:
		fs, err := NewFSStore(cfg.Root)
		if err != nil {
			return nil, err
		}
		return NewInstrumented(fs, "fs"), nil
	case TypeMemory:
		return NewInstrumented(NewMemStore(), "memory"), nil
	case TypeS3:
		s3, err := NewS3Store(cfg)
		if err != nil {
			return nil, err
		}
		return NewInstrumented(s3, "s3"), nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidConfig, cfg.Type)
	}
}
