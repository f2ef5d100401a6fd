package value

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruthy(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want bool
	}{
		{"none", None(), false},
		{"null", Null(), false},
		{"false", Bool(false), false},
		{"true", Bool(true), true},
		{"zero int", Int(0), false},
		{"nonzero int", Int(1), true},
		{"empty string", String(""), false},
		{"nonempty string", String("x"), true},
		{"empty array", Array(nil), false},
		{"nonempty array", Array([]Value{Int(1)}), true},
		{"empty object", EmptyObject(), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.v.Truthy())
		})
	}
}

func TestObjectFieldRoundTrip(t *testing.T) {
	obj := EmptyObject().WithField("a", Int(1)).WithField("b", String("x"))
	v, ok := obj.Field("a")
	require.True(t, ok)
	assert.Equal(t, int64(1), mustInt(t, v))

	obj2 := obj.WithoutField("a")
	_, ok = obj2.Field("a")
	assert.False(t, ok)
	assert.Equal(t, []string{"b"}, obj2.ObjectKeys())
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	u := uuid.New()
	vals := []Value{
		None(),
		Null(),
		Bool(true),
		Int(-42),
		Float(3.14),
		String("hello"),
		Bytes([]byte{1, 2, 3}),
		Datetime(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)),
		Duration(5 * time.Second),
		UUID(u),
		Array([]Value{Int(1), String("a")}),
		EmptyObject().WithField("x", Int(1)),
		Record("person", String("a")),
	}
	for _, v := range vals {
		enc := Encode(v)
		dec, err := Decode(enc)
		require.NoError(t, err)
		assert.True(t, Equal(v, dec), "kind=%s", v.Kind())
	}
}

func TestDecimalEncodeDecode(t *testing.T) {
	d, err := Decimal("10.500")
	require.NoError(t, err)
	enc := Encode(d)
	dec, err := Decode(enc)
	require.NoError(t, err)
	assert.True(t, Equal(d, dec))
}

func mustInt(t *testing.T, v Value) int64 {
	t.Helper()
	i, ok := v.AsInt()
	require.True(t, ok)
	return i
}
