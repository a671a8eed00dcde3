// Package passenger holds the attributes of a hypothetical passenger and the
// editable model a presentation layer mutates one field at a time.
package passenger

import (
	"encoding/json"
	"math"
)

// Sex is the passenger's sex as the scoring service spells it.
type Sex string

const (
	Male   Sex = "male"
	Female Sex = "female"
)

// Port is the port of embarkation.
type Port string

const (
	Cherbourg   Port = "C"
	Queenstown  Port = "Q"
	Southampton Port = "S"
)

// Field names one of the seven passenger attributes by its wire name.
type Field string

const (
	FieldPclass   Field = "Pclass"
	FieldSex      Field = "Sex"
	FieldAge      Field = "Age"
	FieldSibSp    Field = "SibSp"
	FieldParch    Field = "Parch"
	FieldFare     Field = "Fare"
	FieldEmbarked Field = "Embarked"
)

// Fields lists every attribute in wire order.
var Fields = []Field{FieldPclass, FieldSex, FieldAge, FieldSibSp, FieldParch, FieldFare, FieldEmbarked}

type fieldSet uint8

func (s fieldSet) has(f Field) bool { return s&fieldBit(f) != 0 }

func (s *fieldSet) set(f Field, on bool) {
	if on {
		*s |= fieldBit(f)
	} else {
		*s &^= fieldBit(f)
	}
}

func fieldBit(f Field) fieldSet {
	for i, name := range Fields {
		if name == f {
			return 1 << i
		}
	}
	return 0
}

// Input is one complete set of passenger attributes. Numeric fields whose raw
// value could not be parsed are undefined and encode as JSON null.
type Input struct {
	Pclass   int     `json:"Pclass" validate:"oneof=1 2 3"`
	Sex      Sex     `json:"Sex" validate:"oneof=male female"`
	Age      float64 `json:"Age" validate:"gte=0"`
	SibSp    int     `json:"SibSp" validate:"gte=0"`
	Parch    int     `json:"Parch" validate:"gte=0"`
	Fare     float64 `json:"Fare" validate:"gte=0"`
	Embarked Port    `json:"Embarked" validate:"oneof=C Q S"`

	undefined fieldSet
}

// Default returns the attributes a fresh form starts with.
func Default() Input {
	return Input{
		Pclass:   1,
		Sex:      Male,
		Age:      30,
		SibSp:    0,
		Parch:    0,
		Fare:     50,
		Embarked: Southampton,
	}
}

// Undefined reports the fields that currently hold no usable value.
func (in Input) Undefined() []Field {
	var out []Field
	for _, f := range Fields {
		if in.IsUndefined(f) {
			out = append(out, f)
		}
	}
	return out
}

// IsUndefined reports whether f holds no usable value.
func (in Input) IsUndefined(f Field) bool {
	switch f {
	case FieldAge:
		if !finite(in.Age) {
			return true
		}
	case FieldFare:
		if !finite(in.Fare) {
			return true
		}
	}
	return in.undefined.has(f)
}

type wireInput struct {
	Pclass   *int     `json:"Pclass"`
	Sex      Sex      `json:"Sex"`
	Age      *float64 `json:"Age"`
	SibSp    *int     `json:"SibSp"`
	Parch    *int     `json:"Parch"`
	Fare     *float64 `json:"Fare"`
	Embarked Port     `json:"Embarked"`
}

// MarshalJSON encodes the exact request body the scoring service expects.
func (in Input) MarshalJSON() ([]byte, error) {
	w := wireInput{Sex: in.Sex, Embarked: in.Embarked}
	if !in.IsUndefined(FieldPclass) {
		w.Pclass = &in.Pclass
	}
	if !in.IsUndefined(FieldAge) {
		w.Age = &in.Age
	}
	if !in.IsUndefined(FieldSibSp) {
		w.SibSp = &in.SibSp
	}
	if !in.IsUndefined(FieldParch) {
		w.Parch = &in.Parch
	}
	if !in.IsUndefined(FieldFare) {
		w.Fare = &in.Fare
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a request body. Missing or null numeric fields
// become undefined; mistyped ones are an error.
func (in *Input) UnmarshalJSON(data []byte) error {
	var w wireInput
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := Input{Sex: w.Sex, Embarked: w.Embarked}
	if w.Pclass != nil {
		out.Pclass = *w.Pclass
	} else {
		out.undefined.set(FieldPclass, true)
	}
	if w.Age != nil {
		out.Age = *w.Age
	} else {
		out.Age = math.NaN()
		out.undefined.set(FieldAge, true)
	}
	if w.SibSp != nil {
		out.SibSp = *w.SibSp
	} else {
		out.undefined.set(FieldSibSp, true)
	}
	if w.Parch != nil {
		out.Parch = *w.Parch
	} else {
		out.undefined.set(FieldParch, true)
	}
	if w.Fare != nil {
		out.Fare = *w.Fare
	} else {
		out.Fare = math.NaN()
		out.undefined.set(FieldFare, true)
	}
	*in = out
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
