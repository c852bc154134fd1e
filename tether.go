package tether

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zoobzio/capitan"
)

// Load reads and parses the file at path into a Document whose tree is
// observed from the moment it is returned. The format is inferred from
// the file extension unless WithFormat overrides it; the save destination
// defaults to the load path unless WithSaveTo overrides it.
//
// Load-time failures abort construction: ErrUnknownFormat when no codec
// is registered, *StorageError when the file cannot be read, and
// *DecodeError when the codec rejects the content.
func Load(ctx context.Context, path string, opts ...Option) (*Document, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	format := cfg.format
	if format == "" {
		format = formatFromPath(path)
	}
	codec, err := lookupCodec(format)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &StorageError{Op: "read", Path: path, Err: err}
	}
	if cfg.encoding != nil {
		data, err = cfg.encoding.NewDecoder().Bytes(data)
		if err != nil {
			return nil, &StorageError{Op: "transcode", Path: path, Err: err}
		}
	}

	var root any
	if err := codec.Unmarshal(data, &root); err != nil {
		return nil, &DecodeError{Format: format, Path: path, Err: err}
	}
	root, err = normalizeTree(root)
	if err != nil {
		return nil, &DecodeError{Format: format, Path: path, Err: err}
	}

	dest := cfg.saveTo
	if dest == "" {
		dest = path
	}
	doc := newDocument(root, dest, format, codec, cfg)
	capitan.Emit(ctx, DocumentLoaded,
		KeyPath.Field(path),
		KeyFormat.Field(format),
		KeyBytes.Field(len(data)),
		KeyDebounce.Field(cfg.debounce),
	)
	return doc, nil
}

// Adopt binds an existing in-memory tree to a destination file without
// reading anything from disk. A destination is mandatory: Adopt fails
// with *ConfigError when WithSaveTo is absent. The format is inferred
// from the destination's extension unless WithFormat overrides it.
//
// The tree is adopted, not copied; further mutations must go through the
// returned document's handles to be observed.
func Adopt(root any, opts ...Option) (*Document, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.saveTo == "" {
		return nil, &ConfigError{Field: "SaveTo", Reason: "adopt requires a destination path"}
	}

	format := cfg.format
	if format == "" {
		format = formatFromPath(cfg.saveTo)
	}
	codec, err := lookupCodec(format)
	if err != nil {
		return nil, err
	}

	root, err = normalizeTree(unwrapValue(root))
	if err != nil {
		return nil, &ConfigError{Field: "Root", Reason: err.Error()}
	}

	doc := newDocument(root, cfg.saveTo, format, codec, cfg)
	capitan.Emit(context.Background(), DocumentAdopted,
		KeyPath.Field(cfg.saveTo),
		KeyFormat.Field(format),
		KeyDebounce.Field(cfg.debounce),
	)
	return doc, nil
}

// formatFromPath derives a format identifier from a file extension:
// the text after the last '.', lower-cased, without the dot.
func formatFromPath(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return ""
	}
	return strings.ToLower(ext[1:])
}

// normalizeTree validates that v is a container and unwraps any Node
// values nested in it, so foreign subtrees spliced in from other
// documents never carry their old handles.
func normalizeTree(v any) (any, error) {
	switch v.(type) {
	case map[string]any, []any:
		return normalizeValue(v), nil
	}
	return nil, fmt.Errorf("document root must be a map or slice, got %T", v)
}

// normalizeValue unwraps Node values recursively, in place.
func normalizeValue(v any) any {
	v = unwrapValue(v)
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeValue(e)
		}
	case []any:
		for i, e := range t {
			t[i] = normalizeValue(e)
		}
	}
	return v
}
