package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrKeyNotFound   = errors.New("db: key not found")
	ErrIndexNotFound = errors.New("db: index not found")
	ErrIndexExists   = errors.New("db: index already exists")
	// ErrTextSearchUnsupported is returned by SearchText on backends
	// whose SupportsTextSearch reports false.
	ErrTextSearchUnsupported = errors.New("db: text search not supported")
)

// Op constants map to backend command names for error context.
const (
	OpCreateIndex  = "FT.CREATE"
	OpDropIndex    = "FT.DROPINDEX"
	OpIndexInfo    = "FT.INFO"
	OpSearch       = "FT.SEARCH"
	OpHGetAll      = "HGETALL"
	OpHSet         = "HSET"
	OpGet          = "GET"
	OpSet          = "SET"
	OpMilvusSearch = "milvus.Search"
	OpMilvusHas    = "milvus.HasCollection"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
