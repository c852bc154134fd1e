package tether

import (
	"errors"
	"fmt"
)

// ErrUnknownFormat indicates that no codec is registered for the requested
// format. It is returned from decode, encode, and alias operations, and from
// Load/Adopt when the format cannot be resolved.
var ErrUnknownFormat = errors.New("unknown format")

// ErrClosed indicates an operation was attempted on a closed document.
// A save scheduled after Close is reported through the error channel with
// this error rather than being silently discarded.
var ErrClosed = errors.New("document closed")

// Node access errors. These indicate handle misuse, not persistence failure.
var (
	// ErrNotMap is returned by map operations on a slice node.
	ErrNotMap = errors.New("node is not a map")

	// ErrNotSlice is returned by slice operations on a map node.
	ErrNotSlice = errors.New("node is not a slice")

	// ErrNotContainer is returned by Child/ChildAt when the value at the
	// requested key or index is a scalar.
	ErrNotContainer = errors.New("value is not a container")

	// ErrNoSuchKey is returned by Child when the key is absent.
	ErrNoSuchKey = errors.New("no such key")

	// ErrOutOfRange is returned by slice operations with an invalid index.
	ErrOutOfRange = errors.New("index out of range")
)

// DecodeError indicates that a codec rejected the input text. The file
// content is left untouched.
type DecodeError struct {
	Format string
	Path   string // empty when decoding does not originate from a file
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("decode %s (%s): %v", e.Path, e.Format, e.Err)
	}
	return fmt.Sprintf("decode (%s): %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError indicates that a codec could not represent the current
// in-memory tree. The prior on-disk content is left as-is; no partial
// write occurs.
type EncodeError struct {
	Format string
	Err    error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode (%s): %v", e.Format, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// StorageError indicates a filesystem failure on read, directory creation,
// or write.
type StorageError struct {
	Op   string // "read", "mkdir", "write", or "transcode"
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ConfigError indicates invalid options, such as Adopt without a
// destination path.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}
