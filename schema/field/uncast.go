package field

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// timeLayouts are tried in order when a string is coerced into a time.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Uncast coerces a scalar literal into the native representation of the
// field before it is bound as a query parameter, e.g. "1" into int64(1) for
// integer fields. Values that cannot be coerced are returned unchanged and
// left to the database. Virtual and JSON fields are never coerced; slices
// are coerced element-wise.
func (d *Descriptor) Uncast(v any) any {
	if d == nil || d.Virtual || d.Type.IsJSON() || v == nil {
		return v
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice && d.Type != TypeBytes {
		if _, ok := v.([]byte); !ok {
			out := make([]any, rv.Len())
			for i := range out {
				out[i] = d.Uncast(rv.Index(i).Interface())
			}
			return out
		}
	}
	switch d.Type {
	case TypeInt, TypeInt64:
		return uncastInt(v)
	case TypeFloat:
		if s, ok := v.(string); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f
			}
		}
	case TypeDecimal:
		switch x := v.(type) {
		case string:
			if dec, err := decimal.NewFromString(strings.TrimSpace(x)); err == nil {
				return dec
			}
		case float64:
			return decimal.NewFromFloat(x)
		case int:
			return decimal.NewFromInt(int64(x))
		case int64:
			return decimal.NewFromInt(x)
		}
	case TypeString, TypeText:
		switch x := v.(type) {
		case int:
			return strconv.Itoa(x)
		case int64:
			return strconv.FormatInt(x, 10)
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64)
		}
	case TypeBool:
		return uncastBool(v)
	case TypeTime:
		if s, ok := v.(string); ok {
			for _, layout := range timeLayouts {
				if t, err := time.Parse(layout, s); err == nil {
					return t
				}
			}
		}
	case TypeUUID:
		if s, ok := v.(string); ok {
			if id, err := uuid.Parse(s); err == nil {
				return id
			}
		}
	case TypeBytes:
		if s, ok := v.(string); ok {
			return []byte(s)
		}
	}
	return v
}

// Encode converts a value into what is written to the column on insert
// and update. JSON fields are marshaled; every other type goes through Uncast.
func (d *Descriptor) Encode(v any) (any, error) {
	if d == nil || v == nil {
		return v, nil
	}
	if !d.Type.IsJSON() {
		return d.Uncast(v), nil
	}
	switch x := v.(type) {
	case json.RawMessage:
		return string(x), nil
	case []byte:
		return string(x), nil
	}
	buf, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("field: encode %q: %w", d.Name, err)
	}
	return string(buf), nil
}

// Decode converts a value scanned from the column into the native
// representation of the field. Text results are read as strings and JSON
// fields are unmarshaled.
func (d *Descriptor) Decode(v any) (any, error) {
	if d == nil || v == nil {
		return v, nil
	}
	if b, ok := v.([]byte); ok && d.Type != TypeBytes {
		v = string(b)
	}
	if !d.Type.IsJSON() {
		return d.Uncast(v), nil
	}
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("field: decode %q: %w", d.Name, err)
	}
	return out, nil
}

func uncastInt(v any) any {
	switch x := v.(type) {
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return n
		}
	case float64:
		if x == math.Trunc(x) && x >= math.MinInt64 && x <= math.MaxInt64 {
			return int64(x)
		}
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	}
	return v
}

func uncastBool(v any) any {
	switch x := v.(type) {
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "1":
			return true
		case "false", "0":
			return false
		}
	case int:
		return x != 0
	case int64:
		return x != 0
	}
	return v
}
