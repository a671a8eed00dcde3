package passenger

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetFieldReplacesOnlyThatField(t *testing.T) {
	m := NewModel()
	before := m.Snapshot()

	require.NoError(t, m.SetField("Age", "22.5"))

	after := m.Snapshot()
	assert.Equal(t, 22.5, after.Age)
	after.Age = before.Age
	assert.Equal(t, before, after)
}

func TestSetFieldCoercesTypes(t *testing.T) {
	m := NewModel()
	require.NoError(t, m.SetField("class", "3"))
	require.NoError(t, m.SetField("SIBSP", " 2 "))
	require.NoError(t, m.SetField("parents_children", "1"))
	require.NoError(t, m.SetField("fare", "7.25"))
	require.NoError(t, m.SetField("sex", "female"))
	require.NoError(t, m.SetField("port", "Q"))

	in := m.Snapshot()
	assert.Equal(t, 3, in.Pclass)
	assert.Equal(t, 2, in.SibSp)
	assert.Equal(t, 1, in.Parch)
	assert.Equal(t, 7.25, in.Fare)
	assert.Equal(t, Female, in.Sex)
	assert.Equal(t, Queenstown, in.Embarked)
	assert.Empty(t, in.Undefined())
}

func TestSetFieldUnparsableNumberIsUndefined(t *testing.T) {
	m := NewModel()
	require.NoError(t, m.SetField("Age", "abc"))
	require.NoError(t, m.SetField("Parch", ""))
	require.NoError(t, m.SetField("Fare", "NaN"))

	in := m.Snapshot()
	assert.True(t, math.IsNaN(in.Age))
	assert.Equal(t, []Field{FieldAge, FieldParch, FieldFare}, in.Undefined())

	require.NoError(t, m.SetField("Age", "40"))
	assert.False(t, m.Snapshot().IsUndefined(FieldAge))
}

func TestSetFieldUnknownName(t *testing.T) {
	m := NewModel()
	err := m.SetField("cabin", "B5")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownField))
	assert.Equal(t, Default(), m.Snapshot())
}

func TestSnapshotIsACopy(t *testing.T) {
	m := NewModel()
	snap := m.Snapshot()
	require.NoError(t, m.SetField("Pclass", "2"))
	assert.Equal(t, 1, snap.Pclass)
	assert.Equal(t, 2, m.Snapshot().Pclass)
}

func TestMarshalMatchesWireContract(t *testing.T) {
	in := Input{Pclass: 1, Sex: Female, Age: 30, SibSp: 0, Parch: 0, Fare: 100, Embarked: Southampton}

	body, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Pclass":1,"Sex":"female","Age":30,"SibSp":0,"Parch":0,"Fare":100,"Embarked":"S"}`, string(body))
}

func TestMarshalUndefinedAsNull(t *testing.T) {
	m := NewModel()
	require.NoError(t, m.SetField("SibSp", "two"))
	require.NoError(t, m.SetField("Age", "?"))

	body, err := json.Marshal(m.Snapshot())
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(body, &raw))
	assert.Len(t, raw, 7)
	assert.Nil(t, raw["SibSp"])
	assert.Nil(t, raw["Age"])
	assert.Equal(t, "male", raw["Sex"])
}

func TestRoundTripPreservesValuesAndTypes(t *testing.T) {
	in := Input{Pclass: 3, Sex: Male, Age: 22, SibSp: 1, Parch: 2, Fare: 7.25, Embarked: Cherbourg}

	body, err := json.Marshal(in)
	require.NoError(t, err)

	var out Input
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, in, out)
}

func TestUnmarshalRejectsMistypedInteger(t *testing.T) {
	var in Input
	err := json.Unmarshal([]byte(`{"Pclass":1.5,"Sex":"male","Age":1,"SibSp":0,"Parch":0,"Fare":1,"Embarked":"S"}`), &in)
	assert.Error(t, err)
}

func TestUnmarshalMissingFieldsAreUndefined(t *testing.T) {
	var in Input
	require.NoError(t, json.Unmarshal([]byte(`{"Sex":"male","Embarked":"S","Pclass":2}`), &in))
	assert.Equal(t, []Field{FieldAge, FieldSibSp, FieldParch, FieldFare}, in.Undefined())
}

func TestValidate(t *testing.T) {
	require.NoError(t, Default().Validate())

	in := Input{Pclass: 4, Sex: "other", Age: -1, SibSp: -1, Parch: 0, Fare: -3, Embarked: "X"}
	err := in.Validate()
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))

	got := map[Field]string{}
	for _, f := range verr.Fields {
		got[f.Field] = f.Message
	}
	assert.Equal(t, map[Field]string{
		FieldPclass:   "must be one of 1, 2, 3",
		FieldSex:      "must be one of male, female",
		FieldAge:      "must be non-negative",
		FieldSibSp:    "must be non-negative",
		FieldFare:     "must be non-negative",
		FieldEmbarked: "must be one of C, Q, S",
	}, got)
}

func TestValidateReportsUndefinedOnce(t *testing.T) {
	m := NewModel()
	require.NoError(t, m.SetField("Age", "old"))

	var verr *ValidationError
	require.True(t, errors.As(m.Snapshot().Validate(), &verr))
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, FieldError{Field: FieldAge, Message: "is not a number"}, verr.Fields[0])
}
