package trace

import (
	"errors"
	"fmt"

	"github.com/ohler55/ojg/oj"
)

// ErrMalformedRecord is returned when a decoded record lacks a required field
// or carries a field of the wrong type.
var ErrMalformedRecord = errors.New("malformed interval record")

// Wire field names of an interval record.
const (
	FieldEnter     = "enter"
	FieldLeave     = "leave"
	FieldLocation  = "location"
	FieldPrimitive = "primitive"
	FieldParent    = "parent"
	FieldUtil      = "util"
)

// Fields returns the generic JSON form of the interval.
func (iv Interval) Fields() map[string]any {
	out := map[string]any{
		FieldEnter:     iv.Enter,
		FieldLeave:     iv.Leave,
		FieldLocation:  iv.Location,
		FieldPrimitive: iv.Primitive,
	}

	if iv.Parent != "" {
		out[FieldParent] = iv.Parent
	}

	if len(iv.Util) > 0 {
		util := make([]any, len(iv.Util))
		for i, u := range iv.Util {
			util[i] = u
		}

		out[FieldUtil] = util
	}

	return out
}

// MarshalLine encodes the interval as one compact JSON line without the
// trailing newline.
func (iv Interval) MarshalLine() ([]byte, error) {
	data, err := oj.Marshal(iv.Fields())
	if err != nil {
		return nil, fmt.Errorf("marshal interval: %w", err)
	}

	return data, nil
}

// ParseLine decodes one JSON interval line.
func ParseLine(line []byte) (Interval, error) {
	value, err := oj.Parse(line)
	if err != nil {
		return Interval{}, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}

	return FromFields(value)
}

// FromFields converts a generic decoded JSON value into an interval and
// validates it.
func FromFields(value any) (Interval, error) {
	obj, ok := value.(map[string]any)
	if !ok {
		return Interval{}, fmt.Errorf("%w: expected object, got %T", ErrMalformedRecord, value)
	}

	enter, ok := Number(obj[FieldEnter])
	if !ok {
		return Interval{}, fmt.Errorf("%w: field %q", ErrMalformedRecord, FieldEnter)
	}

	leave, ok := Number(obj[FieldLeave])
	if !ok {
		return Interval{}, fmt.Errorf("%w: field %q", ErrMalformedRecord, FieldLeave)
	}

	loc, ok := obj[FieldLocation].(string)
	if !ok {
		return Interval{}, fmt.Errorf("%w: field %q", ErrMalformedRecord, FieldLocation)
	}

	iv := Interval{Enter: enter, Leave: leave, Location: loc}
	iv.Primitive, _ = obj[FieldPrimitive].(string)
	iv.Parent, _ = obj[FieldParent].(string)

	if raw, present := obj[FieldUtil]; present {
		util, err := Numbers(raw)
		if err != nil {
			return Interval{}, fmt.Errorf("field %q: %w", FieldUtil, err)
		}

		iv.Util = util
	}

	if err := iv.Validate(); err != nil {
		return Interval{}, err
	}

	return iv, nil
}

// Number converts a decoded JSON number into float64. The ojg parser yields
// int64 for integral literals and float64 otherwise.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// Numbers converts a decoded JSON array of numbers.
func Numbers(v any) ([]float64, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected array, got %T", ErrMalformedRecord, v)
	}

	out := make([]float64, len(arr))

	for i, item := range arr {
		f, isNum := Number(item)
		if !isNum {
			return nil, fmt.Errorf("%w: element %d is %T", ErrMalformedRecord, i, item)
		}

		out[i] = f
	}

	return out, nil
}
