// Package canon produces canonical JSON and domain-separated hashes.
//
// Canonical JSON follows RFC 8785: object keys sorted by UTF-16 code units,
// no HTML escaping, NFC-normalized strings, no floats and no null. Amounts
// are encoded as base-unit decimal strings so 256-bit values survive any
// JSON reader.
//
// Canonical bytes are the only input to the hashes in hash.go; action
// records, tally digests and lottery draws all depend on them being stable
// across runs and platforms.
package canon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/launchpad/internal/amount"
)

// Marshal encodes v as canonical JSON.
//
// Supported values: string, bool, int, int64, uint64, uint32, uint8,
// integral json.Number, amount.Amount, []any, []string, map[string]any and
// map[string]string.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encode(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("null is forbidden in canonical JSON")
	case string:
		return encodeString(buf, val)
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case uint64:
		buf.WriteString(strconv.FormatUint(val, 10))
	case uint32:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint8:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case json.Number:
		if _, err := strconv.ParseInt(string(val), 10, 64); err != nil {
			if _, err := strconv.ParseUint(string(val), 10, 64); err != nil {
				return fmt.Errorf("non-integer number in canonical JSON: %s", val)
			}
		}
		buf.WriteString(string(val))
	case amount.Amount:
		return encodeString(buf, val.String())
	case []string:
		items := make([]any, len(val))
		for i, s := range val {
			items[i] = s
		}
		return encodeArray(buf, items)
	case []any:
		return encodeArray(buf, val)
	case map[string]string:
		obj := make(map[string]any, len(val))
		for k, s := range val {
			obj[k] = s
		}
		return encodeObject(buf, obj)
	case map[string]any:
		return encodeObject(buf, val)
	case float32, float64:
		return fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

func encodeArray(buf *bytes.Buffer, items []any) error {
	buf.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encode(buf, item); err != nil {
			return fmt.Errorf("array[%d]: %w", i, err)
		}
	}
	buf.WriteByte(']')
	return nil
}

func encodeObject(buf *bytes.Buffer, obj map[string]any) error {
	buf.WriteByte('{')
	for i, k := range SortedKeys(obj) {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeString(buf, k); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		buf.WriteByte(':')
		if err := encode(buf, obj[k]); err != nil {
			return fmt.Errorf("value for key %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// encodeString writes an NFC-normalized JSON string. Only control
// characters, backslash and quote are escaped.
func encodeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	out := bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'})
	buf.Write(unescapeLineSeparators(out))
	return nil
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes emitted by
// encoding/json back into literal characters. An escape preceded by an
// odd run of backslashes is literal text and stays untouched.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == '\\' && i+1 < len(data) {
			if data[i+1] == 'u' && i+5 < len(data) && string(data[i+2:i+5]) == "202" {
				switch data[i+5] {
				case '8':
					out = append(out, "\u2028"...)
					i += 5
					continue
				case '9':
					out = append(out, "\u2029"...)
					i += 5
					continue
				}
			}
			// Copy the escape pair as a unit so "\\u2028" is never split.
			out = append(out, data[i], data[i+1])
			i++
			continue
		}
		out = append(out, data[i])
	}
	return out
}

// SortedKeys returns the keys of obj in RFC 8785 order (UTF-16 code units).
// Go's native string order compares UTF-8 bytes and differs for
// characters outside the BMP.
func SortedKeys[V any](obj map[string]V) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// Normalize converts any JSON-encodable value into the generic form
// Marshal accepts: objects become map[string]any, numbers json.Number.
// Object members that encode as null are dropped.
func Normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	return pruneNulls(out), nil
}

// NormalizeObject is Normalize for values that encode as JSON objects.
func NormalizeObject(v any) (map[string]any, error) {
	n, err := Normalize(v)
	if err != nil {
		return nil, err
	}
	obj, ok := n.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("normalize: %T does not encode as an object", v)
	}
	return obj, nil
}

// Canonicalize is Marshal(Normalize(v)).
func Canonicalize(v any) ([]byte, error) {
	n, err := Normalize(v)
	if err != nil {
		return nil, err
	}
	return Marshal(n)
}

func pruneNulls(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			if item == nil {
				delete(val, k)
				continue
			}
			val[k] = pruneNulls(item)
		}
	case []any:
		for i, item := range val {
			val[i] = pruneNulls(item)
		}
	}
	return v
}
