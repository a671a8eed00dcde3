package passenger

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrUnknownField is returned by SetField for names that match no attribute.
var ErrUnknownField = errors.New("unknown passenger field")

var fieldAliases = map[string]Field{
	"pclass":           FieldPclass,
	"class":            FieldPclass,
	"sex":              FieldSex,
	"age":              FieldAge,
	"sibsp":            FieldSibSp,
	"siblings_spouses": FieldSibSp,
	"parch":            FieldParch,
	"parents_children": FieldParch,
	"fare":             FieldFare,
	"embarked":         FieldEmbarked,
	"port":             FieldEmbarked,
}

// ParseField resolves a wire name or alias, ignoring case.
func ParseField(name string) (Field, error) {
	f, ok := fieldAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return f, nil
}

// Model owns the passenger attributes being edited. It is not safe for
// concurrent use; callers serialize access.
type Model struct {
	input Input
}

// NewModel returns a model holding the default attributes.
func NewModel() *Model {
	return &Model{input: Default()}
}

// NewModelFrom returns a model holding in.
func NewModelFrom(in Input) *Model {
	return &Model{input: in}
}

// SetField coerces raw to the field's type and replaces that field only.
// Numeric values that do not parse leave the field undefined; range checks
// are left to Validate.
func (m *Model) SetField(name, raw string) error {
	f, err := ParseField(name)
	if err != nil {
		return err
	}

	next := m.input
	switch f {
	case FieldPclass:
		next.Pclass = next.setInt(f, raw)
	case FieldSibSp:
		next.SibSp = next.setInt(f, raw)
	case FieldParch:
		next.Parch = next.setInt(f, raw)
	case FieldAge:
		next.Age = next.setFloat(f, raw)
	case FieldFare:
		next.Fare = next.setFloat(f, raw)
	case FieldSex:
		next.Sex = Sex(raw)
	case FieldEmbarked:
		next.Embarked = Port(raw)
	}
	m.input = next
	return nil
}

// Snapshot returns a copy of the current attributes.
func (m *Model) Snapshot() Input {
	return m.input
}

func (in *Input) setInt(f Field, raw string) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	in.undefined.set(f, err != nil)
	if err != nil {
		return 0
	}
	return v
}

func (in *Input) setFloat(f Field, raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || !finite(v) {
		in.undefined.set(f, true)
		return math.NaN()
	}
	in.undefined.set(f, false)
	return v
}
