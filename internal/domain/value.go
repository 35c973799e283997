package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ValueKind discriminates the closed variant used for observation values and
// modality thresholds.
type ValueKind int

const (
	ValueAbsent ValueKind = iota
	ValueBool
	ValueNumber
	ValueText
)

// Value is the normalized form of a dynamically-typed observation value.
// Every incoming value is coerced exactly once, and all type-aware
// comparisons consume this variant instead of raw interface values.
type Value struct {
	Kind ValueKind
	Bool bool
	Num  float64
	Str  string
}

// AbsentValue returns the absent variant.
func AbsentValue() Value { return Value{Kind: ValueAbsent} }

// BoolValue wraps a boolean.
func BoolValue(b bool) Value { return Value{Kind: ValueBool, Bool: b} }

// NumberValue wraps a number.
func NumberValue(n float64) Value { return Value{Kind: ValueNumber, Num: n} }

// TextValue wraps a string. An empty or blank string is absent.
func TextValue(s string) Value {
	if strings.TrimSpace(s) == "" {
		return AbsentValue()
	}
	return Value{Kind: ValueText, Str: s}
}

// NormalizeValue coerces a raw observation value into the closed variant:
// nil and blank strings become absent, booleans stay booleans, all numeric
// types and numeric strings become numbers, everything else is text.
func NormalizeValue(raw any) Value {
	switch v := raw.(type) {
	case nil:
		return AbsentValue()
	case bool:
		return BoolValue(v)
	case float64:
		return NumberValue(v)
	case float32:
		return NumberValue(float64(v))
	case int:
		return NumberValue(float64(v))
	case int32:
		return NumberValue(float64(v))
	case int64:
		return NumberValue(float64(v))
	case json.Number:
		if n, err := v.Float64(); err == nil {
			return NumberValue(n)
		}
		return TextValue(v.String())
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return AbsentValue()
		}
		if n, err := strconv.ParseFloat(strings.ReplaceAll(trimmed, ",", "."), 64); err == nil {
			return NumberValue(n)
		}
		return Value{Kind: ValueText, Str: trimmed}
	default:
		return AbsentValue()
	}
}

// AsNumber returns the numeric reading of the value. Text that parses as a
// number coerces; booleans and absent values do not.
func (v Value) AsNumber() (float64, bool) {
	switch v.Kind {
	case ValueNumber:
		return v.Num, true
	case ValueText:
		if n, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// AsText returns the textual reading of the value.
func (v Value) AsText() string {
	switch v.Kind {
	case ValueText:
		return v.Str
	case ValueNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	}
	return ""
}

// IsAbsent reports whether the value carries no observation.
func (v Value) IsAbsent() bool { return v.Kind == ValueAbsent }

// MarshalJSON renders the variant as its natural JSON form.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueBool:
		return json.Marshal(v.Bool)
	case ValueNumber:
		return json.Marshal(v.Num)
	case ValueText:
		return json.Marshal(v.Str)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON parses the natural JSON form back into the variant.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = NormalizeValue(raw)
	return nil
}

// Holds evaluates the condition against an observed value. Type-mismatched
// comparisons evaluate to false rather than erroring: a numeric threshold
// against a non-numeric value simply does not match.
func (c ModalityCondition) Holds(observed Value) bool {
	if observed.IsAbsent() {
		return false
	}

	switch c.Operator {
	case OpGT, OpLT, OpGTE, OpLTE:
		left, lok := observed.AsNumber()
		right, rok := c.Threshold.AsNumber()
		if !lok || !rok {
			return false
		}
		switch c.Operator {
		case OpGT:
			return left > right
		case OpLT:
			return left < right
		case OpGTE:
			return left >= right
		case OpLTE:
			return left <= right
		}
	case OpEQ:
		switch c.Threshold.Kind {
		case ValueBool:
			return observed.Kind == ValueBool && observed.Bool == c.Threshold.Bool
		case ValueNumber:
			left, lok := observed.AsNumber()
			if !lok {
				return false
			}
			return left == c.Threshold.Num
		case ValueText:
			// String equality is case- and whitespace-insensitive.
			return strings.EqualFold(
				strings.TrimSpace(observed.AsText()),
				strings.TrimSpace(c.Threshold.Str),
			)
		}
	case OpContains:
		needle := strings.ToLower(strings.TrimSpace(c.Threshold.AsText()))
		if needle == "" {
			return false
		}
		return strings.Contains(strings.ToLower(observed.AsText()), needle)
	}

	return false
}
