package expression

import (
	"encoding/json"
	"math"
	"strconv"
)

// Kind identifies the variant stored in a Value.
type Kind uint8

const (
	// KindUndefined is the value of an attribute that is not present.
	KindUndefined Kind = iota
	// KindNull represents an explicit null.
	KindNull
	// KindBoolean represents a boolean value.
	KindBoolean
	// KindNumber represents a numeric value. All numbers are float64.
	KindNumber
	// KindString represents a string value.
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBoolean:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	default:
		return "undefined"
	}
}

// Value is a feature attribute or a filter literal.
//
// Values of different kinds are never equal and never ordered against each
// other; there is no implicit coercion between variants.
type Value struct {
	kind Kind
	num  float64
	str  string
	b    bool
}

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric Value.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBoolean, b: b} }

// Null returns the null Value.
func Null() Value { return Value{kind: KindNull} }

// Undefined returns the Value read for an absent attribute.
func Undefined() Value { return Value{} }

// ValueOf converts a decoded Go value into a Value. Types that have no Value
// variant (maps, slices, structs) resolve to Undefined.
func ValueOf(v any) Value {
	switch val := v.(type) {
	case nil:
		return Null()
	case Value:
		return val
	case string:
		return String(val)
	case bool:
		return Bool(val)
	case float64:
		return Number(val)
	case float32:
		return Number(float64(val))
	case int:
		return Number(float64(val))
	case int8:
		return Number(float64(val))
	case int16:
		return Number(float64(val))
	case int32:
		return Number(float64(val))
	case int64:
		return Number(float64(val))
	case uint:
		return Number(float64(val))
	case uint8:
		return Number(float64(val))
	case uint16:
		return Number(float64(val))
	case uint32:
		return Number(float64(val))
	case uint64:
		return Number(float64(val))
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return Undefined()
		}
		return Number(f)
	default:
		return Undefined()
	}
}

// Kind reports the variant of v.
func (v Value) Kind() Kind { return v.kind }

// IsUndefined reports whether v is the absent-attribute value.
func (v Value) IsUndefined() bool { return v.kind == KindUndefined }

// Str returns the string payload, or "" for non-string values.
func (v Value) Str() string {
	if v.kind == KindString {
		return v.str
	}
	return ""
}

// Num returns the numeric payload, or 0 for non-numeric values.
func (v Value) Num() float64 {
	if v.kind == KindNumber {
		return v.num
	}
	return 0
}

// Boolean returns the boolean payload, or false for non-boolean values.
func (v Value) Boolean() bool {
	return v.kind == KindBoolean && v.b
}

// Interface returns v as a plain Go value (nil for null and undefined).
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBoolean:
		return v.b
	default:
		return nil
	}
}

// Key returns a kind-qualified string that identifies v within a lookup set.
// Two values have the same key only if they are Equal. NaN is the exception:
// it is never equal to anything, so lookup sets must not hold it.
func (v Value) Key() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBoolean:
		if v.b {
			return "b:1"
		}
		return "b:0"
	case KindNumber:
		if v.num == 0 {
			// -0 and +0 compare equal.
			return "n:0"
		}
		return "n:" + strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindString:
		return "s:" + v.str
	default:
		return "undefined"
	}
}

// Equal reports strict equality: same kind and same payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBoolean:
		return v.b == o.b
	default:
		return true
	}
}

// Compare orders v against o when both have the same kind. It returns ok=false
// if the kinds differ, if either value is undefined, or if either number is
// NaN; no ordering holds in those cases.
func (v Value) Compare(o Value) (cmp int, ok bool) {
	if v.kind != o.kind {
		return 0, false
	}
	switch v.kind {
	case KindString:
		switch {
		case v.str < o.str:
			return -1, true
		case v.str > o.str:
			return 1, true
		}
		return 0, true
	case KindNumber:
		if math.IsNaN(v.num) || math.IsNaN(o.num) {
			return 0, false
		}
		switch {
		case v.num < o.num:
			return -1, true
		case v.num > o.num:
			return 1, true
		}
		return 0, true
	case KindBoolean:
		switch {
		case v.b == o.b:
			return 0, true
		case o.b:
			return -1, true
		}
		return 1, true
	case KindNull:
		return 0, true
	default:
		return 0, false
	}
}

// MarshalJSON encodes v as its plain JSON form. Undefined encodes as null.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON decodes a JSON scalar into v.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = ValueOf(raw)
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return strconv.Quote(v.str)
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindBoolean:
		return strconv.FormatBool(v.b)
	case KindNull:
		return "null"
	default:
		return "undefined"
	}
}
