package moodle

import (
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	wserrors "github.com/unige/moodle-ws-mcp-server/internal/errors"
)

// Param is one named value in an ordered parameter list.
type Param struct {
	Key   string
	Value any
}

// Params is an ordered parameter list. Go maps have no insertion order, so
// callers that care about field order pass Params instead; plain maps are
// walked in sorted key order.
type Params []Param

// Set appends a parameter and returns the list, for chaining.
func (p Params) Set(key string, value any) Params {
	return append(p, Param{Key: key, Value: value})
}

// PostField is a single flattened form field.
type PostField struct {
	Path  []string // unescaped key segments, outermost first
	Value string   // unescaped scalar value
}

// Name returns the bracketed field name, e.g. courses[0][fullname].
// Each segment is escaped on its own; the brackets are not.
func (f PostField) Name() string {
	if len(f.Path) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(url.QueryEscape(f.Path[0]))
	for _, seg := range f.Path[1:] {
		sb.WriteByte('[')
		sb.WriteString(url.QueryEscape(seg))
		sb.WriteByte(']')
	}
	return sb.String()
}

// Encode returns the field as name=value.
func (f PostField) Encode() string {
	return f.Name() + "=" + url.QueryEscape(f.Value)
}

// EncodeForm turns args into an application/x-www-form-urlencoded body.
//
// Mappings, sequences and structs are flattened with Flatten. A string or
// []byte is used verbatim, nil yields an empty body, and any other scalar is
// sent as its formatted value.
func EncodeForm(args any) (string, error) {
	switch v := args.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	}

	if s, ok := scalarString(args); ok {
		return s, nil
	}

	fields, err := Flatten(args)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Encode())
	}
	return strings.Join(parts, "&"), nil
}

// Flatten converts a nested mapping or sequence into bracket-named fields.
//
// Every scalar leaf at path k1..kn becomes one field named k1[k2]...[kn].
// Containers are walked recursively; an empty container contributes no
// field at all. Sequence elements are keyed by index.
func Flatten(args any) ([]PostField, error) {
	if _, ok := scalarString(args); ok {
		return nil, wserrors.NewValidationError("args", fmt.Sprintf("%T", args), "top-level value must be a mapping or a sequence")
	}
	return flattenValue(nil, args, nil)
}

func flattenValue(path []string, v any, fields []PostField) ([]PostField, error) {
	var err error

	switch val := v.(type) {
	case Params:
		for _, p := range val {
			if fields, err = flattenValue(extend(path, p.Key), p.Value, fields); err != nil {
				return nil, err
			}
		}
		return fields, nil
	case url.Values:
		for _, key := range sortedKeys(val) {
			vals := val[key]
			var next any = vals
			if len(vals) == 1 {
				next = vals[0]
			}
			if fields, err = flattenValue(extend(path, key), next, fields); err != nil {
				return nil, err
			}
		}
		return fields, nil
	}

	if s, ok := scalarString(v); ok {
		if len(path) == 0 {
			return nil, wserrors.NewValidationError("args", s, "scalar value has no field name")
		}
		return append(fields, PostField{Path: path, Value: s}), nil
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		for _, key := range sortedMapKeys(rv) {
			name, ok := scalarString(key.Interface())
			if !ok {
				return nil, wserrors.NewValidationError(pathName(path), fmt.Sprintf("%v", key.Interface()), "map keys must be scalars")
			}
			if fields, err = flattenValue(extend(path, name), rv.MapIndex(key).Interface(), fields); err != nil {
				return nil, err
			}
		}
		return fields, nil

	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if fields, err = flattenValue(extend(path, strconv.Itoa(i)), rv.Index(i).Interface(), fields); err != nil {
				return nil, err
			}
		}
		return fields, nil

	case reflect.Struct:
		return flattenStruct(path, rv, fields)

	default:
		return nil, wserrors.NewValidationError(pathName(path), fmt.Sprintf("%T", v), "unsupported value type")
	}
}

// scalarString formats v if it is a leaf value. Booleans become 1 or 0 and
// nil becomes the empty string.
func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", true
	case string:
		return x, true
	case []byte:
		return string(x), true
	case bool:
		if x {
			return "1", true
		}
		return "0", true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case json.Number:
		return x.String(), true
	case time.Time:
		return strconv.FormatInt(x.Unix(), 10), true
	case fmt.Stringer:
		return x.String(), true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return "", true
		}
		return scalarString(rv.Elem().Interface())
	case reflect.String:
		return rv.String(), true
	case reflect.Bool:
		return scalarString(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32), true
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), true
	}
	return "", false
}

// flattenStruct walks the exported fields of a struct, naming each one by
// its json tag. Fields tagged "-" are skipped, omitempty fields are skipped
// when empty, and untagged embedded structs are inlined. Each field value
// goes back through flattenValue, so scalar structs such as time.Time stay
// leaves.
func flattenStruct(path []string, rv reflect.Value, fields []PostField) ([]PostField, error) {
	rt := rv.Type()
	var err error

	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		name, opts, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if name == "-" && opts == "" {
			continue
		}
		fv := rv.Field(i)

		if sf.Anonymous && name == "" {
			inner := fv
			for inner.Kind() == reflect.Pointer && !inner.IsNil() {
				inner = inner.Elem()
			}
			if inner.Kind() == reflect.Pointer && inner.Type().Elem().Kind() == reflect.Struct {
				continue
			}
			if inner.Kind() == reflect.Struct && !isLeafType(inner.Type()) {
				if fields, err = flattenStruct(path, inner, fields); err != nil {
					return nil, err
				}
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}
		if hasOption(opts, "omitempty") && isEmptyValue(fv) {
			continue
		}
		if name == "" {
			name = sf.Name
		}

		if fields, err = flattenValue(extend(path, name), fv.Interface(), fields); err != nil {
			return nil, err
		}
	}
	return fields, nil
}

var (
	timeType     = reflect.TypeFor[time.Time]()
	stringerType = reflect.TypeFor[fmt.Stringer]()
)

// isLeafType reports whether scalarString formats values of struct type t.
func isLeafType(t reflect.Type) bool {
	return t == timeType || t.Implements(stringerType)
}

func hasOption(opts, option string) bool {
	for opts != "" {
		var opt string
		opt, opts, _ = strings.Cut(opts, ",")
		if opt == option {
			return true
		}
	}
	return false
}

// isEmptyValue follows encoding/json's omitempty rule.
func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.Interface, reflect.Pointer:
		return v.IsZero()
	}
	return false
}

// sortedMapKeys orders map keys deterministically: integer keys, including
// strings that parse as integers, numerically and first; the rest lexically.
func sortedMapKeys(rv reflect.Value) []reflect.Value {
	keys := rv.MapKeys()
	sort.SliceStable(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		switch a.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return a.Int() < b.Int()
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			return a.Uint() < b.Uint()
		}
		as, _ := scalarString(a.Interface())
		bs, _ := scalarString(b.Interface())
		return keyLess(as, bs)
	})
	return keys
}

func keyLess(a, b string) bool {
	an, aErr := strconv.ParseInt(a, 10, 64)
	bn, bErr := strconv.ParseInt(b, 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		if an != bn {
			return an < bn
		}
		return a < b
	case aErr == nil:
		return true
	case bErr == nil:
		return false
	}
	return a < b
}

func sortedKeys(values url.Values) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keyLess(keys[i], keys[j])
	})
	return keys
}

// extend returns path+seg without aliasing path's backing array.
func extend(path []string, seg string) []string {
	out := make([]string, len(path)+1)
	copy(out, path)
	out[len(path)] = seg
	return out
}

func pathName(path []string) string {
	if len(path) == 0 {
		return "args"
	}
	return PostField{Path: path}.Name()
}
