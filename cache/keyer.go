package cache

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jonwraymond/graphcache/endpoint"
)

// KeySeparator joins the key prefix and digest.
const KeySeparator = "//"

// KeyInput holds everything a cache key depends on.
type KeyInput struct {
	Type       endpoint.ServiceType
	Identifier string
	Name       string

	// Operation is the normalized operation text.
	Operation string

	// Variables is the raw JSON variables object. Empty or null means {}.
	Variables json.RawMessage
}

// Keyer generates deterministic cache keys.
//
// Contract:
// - Determinism: same inputs must produce same key, regardless of map iteration
// order and across process restarts.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	// Key generates a cache key for in.
	Key(in KeyInput) (string, error)
}

// DefaultKeyer generates MD5 based cache keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a new default keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// Key generates a deterministic cache key.
// Format: <prefix>//<md5 hex>
// where prefix is type:name for identifier-sharing types and
// type:identifier:name otherwise, and the digest covers the canonical JSON
// object {"variables": <canonical variables string>, "normalizedOp": <operation>}.
func (k *DefaultKeyer) Key(in KeyInput) (string, error) {
	vars, err := CanonicalVariables(in.Variables)
	if err != nil {
		return "", fmt.Errorf("cache: failed to canonicalize variables: %w", err)
	}

	// Field order is fixed by declaration order.
	payload, err := marshal(struct {
		Variables    string `json:"variables"`
		NormalizedOp string `json:"normalizedOp"`
	}{vars, in.Operation})
	if err != nil {
		return "", fmt.Errorf("cache: failed to encode key payload: %w", err)
	}

	sum := md5.Sum(payload)
	key := Prefix(in.Type, in.Identifier, in.Name) + KeySeparator + hex.EncodeToString(sum[:])
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// Prefix returns the service-scoped key prefix.
func Prefix(t endpoint.ServiceType, identifier, name string) string {
	if t.SharesIdentifier() {
		return string(t) + ":" + name
	}
	return string(t) + ":" + identifier + ":" + name
}

// CanonicalVariables returns the canonical JSON text of a variables object.
// Object keys are sorted; array order is preserved; numbers keep their
// original text.
func CanonicalVariables(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "{}", nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	if dec.More() {
		return "", fmt.Errorf("trailing data after variables")
	}

	b, err := canonicalize(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// canonicalize produces a deterministic JSON representation of the input.
// Maps are sorted by key to ensure consistent ordering.
func canonicalize(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}

	switch val := v.(type) {
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	default:
		return marshal(v)
	}
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}

		keyBytes, err := marshal(k)
		if err != nil {
			return nil, err
		}
		result = append(result, keyBytes...)
		result = append(result, ':')

		valBytes, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, '}')

	return result, nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}

		valBytes, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, ']')

	return result, nil
}

// marshal encodes v as JSON without HTML escaping or a trailing newline.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Ensure DefaultKeyer implements Keyer
var _ Keyer = (*DefaultKeyer)(nil)
