package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned (wrapped) by Fetch when the key does not exist.
var ErrNotFound = errors.New("storage: not found")

// ErrBadKey is returned for keys that escape the backend's namespace.
var ErrBadKey = errors.New("storage: bad key")

// Store reads and writes objects by key.
type Store interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

// Backend kinds accepted by Open.
const (
	KindFS     = "fs"
	KindMemory = "memory"
	KindS3     = "s3"
	KindSQL    = "sql"
)

// Options selects and configures a backend.
type Options struct {
	Kind string

	// fs
	Dir string

	// memory; zero keeps objects forever
	TTL time.Duration

	// s3
	Bucket   string
	Region   string
	Endpoint string

	// sql
	Driver string
	DSN    string
	Table  string
}

// Open returns the backend described by o. SQL backends are migrated before
// they are returned.
func Open(ctx context.Context, o Options) (Store, error) {
	switch strings.ToLower(o.Kind) {
	case KindFS, "":
		return NewFS(o.Dir)
	case KindMemory:
		return NewMemory(o.TTL), nil
	case KindS3:
		return NewS3FromEnv(ctx, o.Bucket, o.Region, o.Endpoint)
	case KindSQL:
		return OpenSQL(ctx, o.Driver, o.DSN, o.Table)
	default:
		return nil, fmt.Errorf("storage: unsupported kind %q", o.Kind)
	}
}
