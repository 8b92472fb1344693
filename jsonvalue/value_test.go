package jsonvalue_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/orlodrimbot/mwbot/jsonvalue"
)

func TestParseScalars(t *testing.T) {
	v, err := jsonvalue.Parse("null")
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	v, err = jsonvalue.Parse("true")
	require.NoError(t, err)
	assert.True(t, v.IsBool())
	assert.True(t, v.Bool())

	v, err = jsonvalue.Parse(`"hello\nworld"`)
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld", v.String())

	v, err = jsonvalue.Parse("1234567890123456789")
	require.NoError(t, err)
	assert.True(t, v.IsNumber())
	assert.Equal(t, "1234567890123456789", v.NumberString())
	n, ok := v.Int64()
	assert.True(t, ok)
	assert.Equal(t, int64(1234567890123456789), n)
}

func TestParseTrailingData(t *testing.T) {
	_, err := jsonvalue.Parse("1 2")
	assert.Error(t, err)
}

func TestParseInvalid(t *testing.T) {
	for _, s := range []string{"", "{", "[1,]", `{"a":}`, "tru"} {
		_, err := jsonvalue.Parse(s)
		assert.Error(t, err, "input %q should fail to parse", s)
	}
}

func TestObjectKeyOrderPreserved(t *testing.T) {
	v, err := jsonvalue.Parse(`{"zebra": 1, "apple": 2, "mango": 3}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"zebra", "apple", "mango"}, v.Keys())
	assert.Equal(t, "1", v.Get("zebra").NumberString())
	assert.Equal(t, "2", v.Get("apple").NumberString())
}

func TestSetPreservesInsertionOrderOnReplace(t *testing.T) {
	v := jsonvalue.NewObject()
	v.Set("first", jsonvalue.NewInt(1))
	v.Set("second", jsonvalue.NewInt(2))
	v.Set("first", jsonvalue.NewInt(100))
	assert.Equal(t, []string{"first", "second"}, v.Keys())
	n, _ := v.Get("first").Int64()
	assert.Equal(t, int64(100), n)
}

func TestSetAppendsNewKeyAtEnd(t *testing.T) {
	v := jsonvalue.NewObject()
	v.Set("a", jsonvalue.NewInt(1))
	v.Set("b", jsonvalue.NewInt(2))
	v.Delete("a")
	v.Set("a", jsonvalue.NewInt(3))
	assert.Equal(t, []string{"b", "a"}, v.Keys())
}

func TestDelete(t *testing.T) {
	v := jsonvalue.NewObject()
	v.Set("a", jsonvalue.NewInt(1))
	v.Set("b", jsonvalue.NewInt(2))
	v.Delete("a")
	assert.False(t, v.Has("a"))
	assert.Equal(t, []string{"b"}, v.Keys())
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	original := `{"title":"Main Page","revid":123456789012345,"tags":["a","b"],"ok":true,"missing":null}`
	v, err := jsonvalue.Parse(original)
	require.NoError(t, err)

	data, merr := v.MarshalJSON()
	require.NoError(t, merr)

	var roundTripped jsonvalue.Value
	require.NoError(t, roundTripped.UnmarshalJSON(data))
	assert.True(t, v.Equal(roundTripped))

	// The large revid survives as the exact same digit string, not a
	// float64-rounded approximation.
	assert.Equal(t, "123456789012345", roundTripped.Get("revid").NumberString())
	assert.Equal(t, []string{"title", "revid", "tags", "ok", "missing"}, roundTripped.Keys())
}

func TestArrayAccessors(t *testing.T) {
	v, err := jsonvalue.Parse(`[1,2,3]`)
	require.NoError(t, err)
	assert.Equal(t, 3, v.Len())
	n, _ := v.At(1).Int()
	assert.Equal(t, 2, n)
	assert.True(t, v.At(99).IsNull())
}

func TestAppend(t *testing.T) {
	var v jsonvalue.Value
	v.Append(jsonvalue.NewString("x"))
	v.Append(jsonvalue.NewString("y"))
	assert.Equal(t, 2, v.Len())
	assert.Equal(t, "x", v.At(0).String())
}

func TestCopyIsDeep(t *testing.T) {
	v := jsonvalue.NewObject()
	v.Set("nested", jsonvalue.NewArray(jsonvalue.NewInt(1)))
	cp := v.Copy()
	cp.Get("nested")
	// Mutating v's nested array after Copy must not affect cp.
	nested := v.Get("nested")
	nested.Append(jsonvalue.NewInt(2))
	v.Set("nested", nested)
	assert.Equal(t, 2, v.Get("nested").Len())
	assert.Equal(t, 1, cp.Get("nested").Len())
}

func TestEqual(t *testing.T) {
	a, err := jsonvalue.Parse(`{"a":1,"b":[1,2]}`)
	require.NoError(t, err)
	b, err := jsonvalue.Parse(`{"b":[1,2],"a":1}`)
	require.NoError(t, err)
	assert.True(t, a.Equal(b), "key order must not affect structural equality")

	c, err := jsonvalue.Parse(`{"a":1,"b":[1,3]}`)
	require.NoError(t, err)
	assert.False(t, a.Equal(c))
}

func TestGetOnWrongTypeReturnsNull(t *testing.T) {
	v := jsonvalue.NewInt(5)
	assert.True(t, v.Get("x").IsNull())
	assert.Nil(t, v.Array())
	assert.Nil(t, v.Keys())
}
