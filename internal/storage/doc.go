// Package storage moves raw exports in and finished reports out.
//
// Every backend implements Store: Fetch(key) returns the object bytes or an
// error wrapping ErrNotFound, Put(key, data) creates or replaces the object.
// Keys are slash-separated regardless of backend.
//
//   - FS:     files under a root directory
//   - Memory: an in-process map with optional TTL eviction
//   - S3:     one bucket through aws-sdk-go-v2
//   - SQL:    one table through database/sql (pgx, mysql, sqlite3)
//
// Open builds a backend from Options.
package storage
