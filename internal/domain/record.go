package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrMalformed indicates that a record is missing required fields or has fields of the wrong shape.
var ErrMalformed = errors.New("malformed record")

// Record is a decoded JSON object.
type Record = map[string]any

// lookup returns the first of keys that is present with a non-null value.
func lookup(rec Record, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := rec[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func requiredString(rec Record, keys ...string) (string, error) {
	v, ok := lookup(rec, keys...)
	if !ok {
		return "", fmt.Errorf("%w: %s is required", ErrMalformed, keys[0])
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrMalformed, keys[0], v)
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrMalformed, keys[0])
	}
	return s, nil
}

func requiredDecimal(rec Record, key string) (decimal.Decimal, error) {
	v, ok := lookup(rec, key)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s is required", ErrMalformed, key)
	}
	d, err := toDecimal(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %v", ErrMalformed, key, err)
	}
	return d, nil
}

// toDecimal accepts the numeric shapes produced by encoding/json (float64, json.Number)
// as well as numeric strings.
func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case json.Number:
		return decimal.NewFromString(n.String())
	case string:
		return decimal.NewFromString(strings.TrimSpace(n))
	case float64:
		return decimal.NewFromFloat(n), nil
	case float32:
		return decimal.NewFromFloat32(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	default:
		return decimal.Zero, fmt.Errorf("not a number: %T", v)
	}
}

// optionalStrings reads a list of strings, returning nil when the key is absent.
func optionalStrings(rec Record, key string) ([]string, error) {
	v, ok := lookup(rec, key)
	if !ok {
		return nil, nil
	}
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...), nil
	case []any:
		out := make([]string, 0, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s[%d] must be a string, got %T", ErrMalformed, key, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s must be a list, got %T", ErrMalformed, key, v)
	}
}

// DecodeRecord decodes JSON text into a Record, keeping numbers as json.Number.
func DecodeRecord(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformed)
	}
	return rec, nil
}

func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
