package moodle

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
	"github.com/mitchellh/mapstructure"
)

// Result is the decoded JSON payload of a successful web-service call.
//
// The shape depends on the remote function, so the value is kept as the
// generic structure produced by encoding/json: nil, bool, float64, string,
// map[string]any or []any.
type Result struct {
	value any
}

// NewResult wraps an already decoded JSON value.
func NewResult(v any) Result {
	return Result{value: v}
}

// Value returns the decoded payload unchanged.
func (r Result) Value() any {
	return r.value
}

// IsNull reports whether the function returned JSON null (or nothing).
func (r Result) IsNull() bool {
	return r.value == nil
}

// Map returns the payload as an object.
func (r Result) Map() (map[string]any, bool) {
	m, ok := r.value.(map[string]any)
	return m, ok
}

// Slice returns the payload as an array.
func (r Result) Slice() ([]any, bool) {
	s, ok := r.value.([]any)
	return s, ok
}

// String returns the named field of an object payload formatted as a
// string, or "" if the payload is not an object or the field is absent.
func (r Result) String(key string) string {
	m, ok := r.Map()
	if !ok {
		return ""
	}
	return stringField(m, key)
}

// Decode copies the payload into out, matching fields by their json tag.
// Numeric strings and numbers convert into each other, since Moodle is not
// consistent about which one it sends.
func (r Result) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := dec.Decode(r.value); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}
	return nil
}

// Query runs a jq expression over the payload and collects every output.
func (r Result) Query(expr string) ([]any, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression %q: %w", expr, err)
	}

	var out []any
	iter := query.Run(r.value)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return nil, fmt.Errorf("jq expression %q failed: %w", expr, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// MarshalJSON re-encodes the payload.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.value)
}

// UnmarshalJSON decodes a payload into the generic structure.
func (r *Result) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	r.value = v
	return nil
}

// stringField formats a scalar object field as a string.
func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	if s, ok := scalarString(v); ok {
		return s
	}
	return ""
}
