package tether

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/clbanning/mxj/v2"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Codec defines the serialization contract for document data.
// Implement this interface to bind documents to alternative formats like
// HCL, INI, or custom binary formats, then register it with RegisterCodec.
type Codec interface {
	// Marshal serializes a value to bytes.
	Marshal(v any) ([]byte, error)

	// Unmarshal deserializes bytes into a value. Documents always pass a
	// pointer to any and expect dynamic trees (map[string]any, []any,
	// scalars).
	Unmarshal(data []byte, v any) error

	// ContentType returns the MIME type for observability and debugging.
	ContentType() string
}

var (
	codecMu sync.RWMutex
	codecs  = map[string]Codec{}
)

func init() {
	RegisterCodec("json", JSONCodec{})
	RegisterCodec("yaml", YAMLCodec{})
	RegisterCodec("toml", TOMLCodec{})
	RegisterCodec("xml", XMLCodec{})
	// Extension aliases for the built-ins.
	_ = AliasCodec("yml", "yaml")
	_ = AliasCodec("plist", "xml")
}

// RegisterCodec inserts or overwrites the codec for a format.
// Overwriting an existing registration is allowed; last write wins.
// Formats must be registered before any document using them is loaded
// or saved.
func RegisterCodec(format string, c Codec) {
	codecMu.Lock()
	defer codecMu.Unlock()
	codecs[format] = c
}

// AliasCodec registers an existing format's codec under a new key.
// Returns ErrUnknownFormat if the source format is unregistered.
func AliasCodec(alias, format string) error {
	codecMu.Lock()
	defer codecMu.Unlock()
	c, ok := codecs[format]
	if !ok {
		return fmt.Errorf("alias %q: %q: %w", alias, format, ErrUnknownFormat)
	}
	codecs[alias] = c
	return nil
}

// lookupCodec resolves a format to its registered codec.
func lookupCodec(format string) (Codec, error) {
	codecMu.RLock()
	defer codecMu.RUnlock()
	c, ok := codecs[format]
	if !ok {
		return nil, fmt.Errorf("%q: %w", format, ErrUnknownFormat)
	}
	return c, nil
}

// Decode deserializes data using the codec registered for format.
// Codec parse failures are wrapped in *DecodeError; an unregistered format
// fails with ErrUnknownFormat.
func Decode(format string, data []byte) (any, error) {
	c, err := lookupCodec(format)
	if err != nil {
		return nil, err
	}
	var v any
	if err := c.Unmarshal(data, &v); err != nil {
		return nil, &DecodeError{Format: format, Err: err}
	}
	return v, nil
}

// Encode serializes v using the codec registered for format.
// Codec serialize failures are wrapped in *EncodeError; an unregistered
// format fails with ErrUnknownFormat.
func Encode(format string, v any) ([]byte, error) {
	c, err := lookupCodec(format)
	if err != nil {
		return nil, err
	}
	data, err := c.Marshal(v)
	if err != nil {
		return nil, &EncodeError{Format: format, Err: err}
	}
	return data, nil
}

// JSONCodec implements Codec using encoding/json.
// Output is indented with two spaces and ends with a newline.
type JSONCodec struct{}

// Marshal serializes v as indented JSON.
func (JSONCodec) Marshal(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Unmarshal deserializes JSON bytes into v. Numbers decode as float64.
func (JSONCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// ContentType returns the JSON MIME type.
func (JSONCodec) ContentType() string {
	return "application/json"
}

// Ensure JSONCodec implements Codec.
var _ Codec = JSONCodec{}

// YAMLCodec implements Codec using gopkg.in/yaml.v3.
type YAMLCodec struct{}

// Marshal serializes v as YAML.
func (YAMLCodec) Marshal(v any) ([]byte, error) {
	return yaml.Marshal(v)
}

// Unmarshal deserializes YAML bytes into v.
func (YAMLCodec) Unmarshal(data []byte, v any) error {
	return yaml.Unmarshal(data, v)
}

// ContentType returns the YAML MIME type.
func (YAMLCodec) ContentType() string {
	return "application/x-yaml"
}

// Ensure YAMLCodec implements Codec.
var _ Codec = YAMLCodec{}

// TOMLCodec implements Codec using github.com/pelletier/go-toml/v2.
// TOML requires a map at the root; slice and scalar roots fail to encode.
type TOMLCodec struct{}

// Marshal serializes v as TOML.
func (TOMLCodec) Marshal(v any) ([]byte, error) {
	return toml.Marshal(v)
}

// Unmarshal deserializes TOML bytes into v.
func (TOMLCodec) Unmarshal(data []byte, v any) error {
	return toml.Unmarshal(data, v)
}

// ContentType returns the TOML MIME type.
func (TOMLCodec) ContentType() string {
	return "application/toml"
}

// Ensure TOMLCodec implements Codec.
var _ Codec = TOMLCodec{}

// XMLCodec implements Codec using github.com/clbanning/mxj, which maps XML
// to and from dynamic map trees.
//
// XML is lossy for round-trips: element order is not preserved, scalars
// decode as strings unless they parse as numbers or booleans, and single
// top-level keys gain a wrapping element. These cases are excluded from
// the round-trip guarantee.
type XMLCodec struct{}

// Marshal serializes a map tree as indented XML.
// The root value must be a map.
func (XMLCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("xml root must be a map, got %T", v)
	}
	data, err := mxj.Map(m).XmlIndent("", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Unmarshal deserializes XML bytes into v, casting scalars that parse as
// numbers or booleans. The target must be a pointer to any.
func (XMLCodec) Unmarshal(data []byte, v any) error {
	p, ok := v.(*any)
	if !ok {
		return fmt.Errorf("xml target must be *any, got %T", v)
	}
	mv, err := mxj.NewMapXml(bytes.TrimSpace(data), true)
	if err != nil {
		return err
	}
	*p = map[string]any(mv)
	return nil
}

// ContentType returns the XML MIME type.
func (XMLCodec) ContentType() string {
	return "application/xml"
}

// Ensure XMLCodec implements Codec.
var _ Codec = XMLCodec{}
