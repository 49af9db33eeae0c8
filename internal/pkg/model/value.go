package model

import (
	"encoding/json"
	"strconv"
)

type valueKind uint8

const (
	kindString valueKind = iota
	kindFloat
	kindInt
	kindBool
)

// Value is the closed variant a sensor state is allowed to be on the wire:
// a string, a number or a boolean. It marshals to the bare JSON scalar.
type Value struct {
	kind valueKind
	str  string
	num  float64
	i    int64
	b    bool
}

func StringValue(s string) Value {
	return Value{kind: kindString, str: s}
}

func FloatValue(f float64) Value {
	return Value{kind: kindFloat, num: f}
}

func IntValue(i int64) Value {
	return Value{kind: kindInt, i: i}
}

func BoolValue(b bool) Value {
	return Value{kind: kindBool, b: b}
}

// FormattedFloat renders f with the given number of decimals and carries it
// as a string state. The hub displays these verbatim, so percentages and
// gigabyte figures keep a stable precision instead of a raw float.
func FormattedFloat(f float64, decimals int) Value {
	return StringValue(strconv.FormatFloat(f, 'f', decimals, 64))
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case kindFloat:
		return json.Marshal(v.num)
	case kindInt:
		return json.Marshal(v.i)
	case kindBool:
		return json.Marshal(v.b)
	default:
		return json.Marshal(v.str)
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*v = BoolValue(b)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*v = FloatValue(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*v = StringValue(s)
	return nil
}

// String renders the value for logs and diagnostics.
func (v Value) String() string {
	switch v.kind {
	case kindFloat:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case kindInt:
		return strconv.FormatInt(v.i, 10)
	case kindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.str
	}
}
