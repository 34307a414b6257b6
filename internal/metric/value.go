package metric

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sort"
	"strconv"
)

type Kind int

const (
	KindScalar Kind = iota
	KindComposite
)

func (k Kind) String() string {
	if k == KindComposite {
		return "composite"
	}
	return "scalar"
}

// Value is what a metric returns: either a single score or a set of named
// sub-scores. The zero Value is Scalar(0).
type Value struct {
	kind   Kind
	scalar float64
	parts  map[string]float64
}

func Scalar(f float64) Value {
	return Value{kind: KindScalar, scalar: f}
}

// Composite copies m so callers may keep mutating their map.
func Composite(m map[string]float64) Value {
	return Value{kind: KindComposite, parts: maps.Clone(m)}
}

func (v Value) Kind() Kind { return v.kind }

// Float returns the scalar score. It is 0 for composite values.
func (v Value) Float() float64 { return v.scalar }

// Parts returns a copy of the composite sub-scores.
func (v Value) Parts() map[string]float64 { return maps.Clone(v.parts) }

// PartNames returns the composite keys in sorted order.
func (v Value) PartNames() []string {
	names := make([]string, 0, len(v.parts))
	for k := range v.parts {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (v Value) String() string {
	if v.kind == KindScalar {
		return strconv.FormatFloat(v.scalar, 'f', -1, 64)
	}
	b, _ := json.Marshal(v.parts)
	return string(b)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindComposite {
		if v.parts == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.parts)
	}
	return json.Marshal(v.scalar)
}

func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var parts map[string]float64
		if err := json.Unmarshal(b, &parts); err != nil {
			return fmt.Errorf("decoding composite value: %w", err)
		}
		*v = Value{kind: KindComposite, parts: parts}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("decoding scalar value: %w", err)
	}
	*v = Scalar(f)
	return nil
}

// ParseValue decodes the last non-empty line of an external scorer's output,
// which must be a JSON number or an object of numbers.
func ParseValue(out []byte) (Value, error) {
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	last := bytes.TrimSpace(lines[len(lines)-1])
	if len(last) == 0 {
		return Value{}, errors.New("scorer produced no output")
	}
	var v Value
	if err := v.UnmarshalJSON(last); err != nil {
		return Value{}, fmt.Errorf("parsing scorer output %q: %w", last, err)
	}
	return v, nil
}
