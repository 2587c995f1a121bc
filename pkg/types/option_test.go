package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionValueFormat(t *testing.T) {
	tests := []struct {
		name string
		v    OptionValue
		want string
	}{
		{"int", IntValue(-12), "-12"},
		{"float", FloatValue(0.5), "0.5"},
		{"float integral", FloatValue(255), "255"},
		{"bool true", BoolValue(true), "True"},
		{"bool false", BoolValue(false), "False"},
		{"string", StringValue("export/a b.avi"), "export/a b.avi"},
		{"color", ColorValue("ff00aa"), "#FF00AA"},
		{"choice", ChoiceValue("gif"), "gif"},
		{"list", ListValue("a", 1.5), `["a",1.5]`},
		{"empty list", ListValue(), "[]"},
		{"dict", DictValue(map[string]any{"b": 2.0, "a": "x"}), `{"a":"x","b":2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.Format())
		})
	}
}

func TestParseOptionValueLossless(t *testing.T) {
	values := []OptionValue{
		IntValue(300), FloatValue(1e-7), FloatValue(3.25), BoolValue(true), BoolValue(false),
		StringValue(""), ColorValue("#00FF0080"), ChoiceValue("video"),
		ListValue("x", "y"), DictValue(map[string]any{"marker": []any{"#FF0000", 0.0}}),
	}
	for _, v := range values {
		t.Run(v.Kind().String()+"/"+v.Format(), func(t *testing.T) {
			got, err := ParseOptionValue(v.Kind(), v.Format())
			require.NoError(t, err)
			assert.True(t, v.Equal(got), "%s != %s", v.Format(), got.Format())
		})
	}
}

func TestParseOptionValueErrors(t *testing.T) {
	_, err := ParseOptionValue(KindInt, "1.5")
	assert.ErrorIs(t, err, ErrInvalidOptionValue)
	_, err = ParseOptionValue(KindBool, "maybe")
	assert.ErrorIs(t, err, ErrInvalidOptionValue)
	_, err = ParseOptionValue(KindList, "{}")
	assert.ErrorIs(t, err, ErrInvalidOptionValue)
	_, err = ParseOptionValue(KindColor, "red")
	assert.ErrorIs(t, err, ErrInvalidColor)
}

func TestOptionSpecCheck(t *testing.T) {
	spec, ok := LookupOption(DefaultOptions, "mask_opacity")
	require.True(t, ok)

	v, err := spec.Check(IntValue(1))
	require.NoError(t, err)
	assert.Equal(t, KindFloat, v.Kind())

	_, err = spec.Check(FloatValue(1.5))
	assert.ErrorIs(t, err, ErrInvalidOptionValue)

	_, err = spec.Check(StringValue("1"))
	assert.ErrorIs(t, err, ErrInvalidOptionValue)

	export, ok := LookupOption(DefaultOptions, "export_type")
	require.True(t, ok)
	_, err = export.Check(ChoiceValue("mp3"))
	assert.True(t, errors.Is(err, ErrInvalidOptionValue))
	_, err = export.Check(ChoiceValue("gif"))
	assert.NoError(t, err)
}

func TestDefaultOptionsAreConsistent(t *testing.T) {
	seen := map[string]bool{}
	for i := range DefaultOptions {
		spec := &DefaultOptions[i]
		assert.False(t, seen[spec.Key], "duplicate key %s", spec.Key)
		seen[spec.Key] = true
		assert.Equal(t, spec.Kind, spec.Default.Kind(), spec.Key)
		_, err := spec.Check(spec.Default)
		assert.NoError(t, err, spec.Key)
	}
	_, ok := LookupOption(DefaultOptions, "no_such_option")
	assert.False(t, ok)
}
