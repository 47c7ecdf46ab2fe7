package value

import (
	"encoding/json"
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		checkFn func(t *testing.T, v Value)
	}{
		{
			name:  "integer stays int",
			input: `5`,
			checkFn: func(t *testing.T, v Value) {
				assert.Equal(t, KindInt, v.Kind())
				assert.Equal(t, int64(5), v.AsInt())
			},
		},
		{
			name:  "fraction becomes float",
			input: `2.5`,
			checkFn: func(t *testing.T, v Value) {
				assert.Equal(t, KindFloat, v.Kind())
				assert.Equal(t, 2.5, v.AsFloat())
			},
		},
		{
			name:  "huge integer stays exact",
			input: `123456789012345678901234567890`,
			checkFn: func(t *testing.T, v Value) {
				assert.Equal(t, KindInt, v.Kind())
				assert.True(t, v.IsBigInt())
				assert.Equal(t, "123456789012345678901234567890", v.AsBigInt().String())
				assert.Equal(t, int64(math.MaxInt64), v.AsInt())
			},
		},
		{
			name:  "huge number with exponent becomes float",
			input: `1.5e30`,
			checkFn: func(t *testing.T, v Value) {
				assert.Equal(t, KindFloat, v.Kind())
			},
		},
		{
			name:  "object keeps key order",
			input: `{"z":1,"a":[true,null,"x"]}`,
			checkFn: func(t *testing.T, v Value) {
				require.Equal(t, KindMap, v.Kind())
				entries := v.Entries()
				require.Len(t, entries, 2)
				assert.Equal(t, "z", entries[0].Key)
				assert.Equal(t, "a", entries[1].Key)
				list := entries[1].Value.Items()
				require.Len(t, list, 3)
				assert.True(t, list[0].AsBool())
				assert.True(t, list[1].IsNull())
				assert.Equal(t, "x", list[2].AsString())
			},
		},
		{
			name:  "empty list is not null",
			input: `[]`,
			checkFn: func(t *testing.T, v Value) {
				assert.Equal(t, KindList, v.Kind())
				assert.Equal(t, 0, v.Len())
			},
		},
		{name: "trailing garbage", input: `1 2`, wantErr: true},
		{name: "empty input", input: ``, wantErr: true},
		{name: "not json", input: `{nope}`, wantErr: true},
		{name: "overflowing float", input: `1e400`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Parse([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.checkFn != nil {
				tt.checkFn(t, v)
			}
		})
	}
}

func TestMarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		want  string
	}{
		{name: "null", value: Value{}, want: `null`},
		{name: "int", value: Int(5), want: `5`},
		{name: "whole float keeps fraction", value: Float(2), want: `2.0`},
		{name: "float", value: Float(0.25), want: `0.25`},
		{name: "string without html escaping", value: String("<a&b>"), want: `"<a&b>"`},
		{
			name:  "ordered map",
			value: Map(Entry{Key: "b", Value: Int(1)}, Entry{Key: "a", Value: List(Bool(false), Null())}),
			want:  `{"b":1,"a":[false,null]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.value.MarshalJSON()
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
		})
	}
}

func TestMarshalJSONRejectsNaN(t *testing.T) {
	_, err := json.Marshal(List(Float(math.NaN())))
	assert.Error(t, err)
}

func TestUnmarshalIntoStruct(t *testing.T) {
	var req struct {
		Args []Value `json:"Args"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"Args":[2,3.5,"x",{"k":null}]}`), &req))
	require.Len(t, req.Args, 4)
	assert.Equal(t, KindInt, req.Args[0].Kind())
	assert.Equal(t, KindFloat, req.Args[1].Kind())
	assert.Equal(t, "x", req.Args[2].AsString())
	inner, ok := req.Args[3].Get("k")
	assert.True(t, ok)
	assert.True(t, inner.IsNull())
}

func TestMapDuplicateKeyKeepsLastValue(t *testing.T) {
	m := Map(Entry{Key: "a", Value: Int(1)}, Entry{Key: "b", Value: Int(2)}, Entry{Key: "a", Value: Int(3)})
	assert.Equal(t, 2, m.Len())
	got, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, int64(3), got.AsInt())
	assert.Equal(t, "a", m.Entries()[0].Key)
}

func TestFromAny(t *testing.T) {
	v, err := FromAny(map[string]any{
		"n":    3,
		"list": []any{"x", 1.5, nil},
		"ok":   true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"list":["x",1.5,null],"n":3,"ok":true}`, v.String())

	type point struct {
		X int `json:"x"`
	}
	v, err = FromAny(point{X: 7})
	require.NoError(t, err)
	x, ok := v.Get("x")
	require.True(t, ok)
	assert.Equal(t, int64(7), x.AsInt())

	_, err = FromAny(make(chan int))
	assert.Error(t, err)
}

func TestEqual(t *testing.T) {
	assert.True(t, Int(2).Equal(Float(2)))
	assert.False(t, Int(2).Equal(String("2")))
	assert.True(t, Map(Entry{Key: "a", Value: Int(1)}, Entry{Key: "b", Value: Int(2)}).
		Equal(Map(Entry{Key: "b", Value: Int(2)}, Entry{Key: "a", Value: Int(1)})))
	assert.False(t, List(Int(1)).Equal(List(Int(1), Int(2))))
	assert.True(t, Null().Equal(Value{}))
}

func TestInterface(t *testing.T) {
	v := List(Int(1), String("s"), Map(Entry{Key: "k", Value: Bool(true)}))
	assert.Equal(t, []any{int64(1), "s", map[string]any{"k": true}}, v.Interface())
}

func TestBigInt(t *testing.T) {
	n, ok := new(big.Int).SetString("-12345678901234567891", 10)
	require.True(t, ok)

	v := BigInt(n)
	assert.True(t, v.IsBigInt())
	assert.Equal(t, `-12345678901234567891`, v.String())
	assert.Equal(t, int64(math.MinInt64), v.AsInt())
	assert.InDelta(t, -1.2345678901234567e19, v.AsFloat(), 1e4)

	// Values are copied in and out.
	n.SetInt64(0)
	assert.Equal(t, `-12345678901234567891`, v.String())
	v.AsBigInt().SetInt64(0)
	assert.Equal(t, `-12345678901234567891`, v.String())

	small := BigInt(big.NewInt(7))
	assert.False(t, small.IsBigInt())
	assert.True(t, small.Equal(Int(7)))

	parsed, err := Parse([]byte(`-12345678901234567891`))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(v))
	assert.False(t, parsed.Equal(Int(math.MinInt64)))

	fromUint, err := FromAny(uint64(math.MaxUint64))
	require.NoError(t, err)
	assert.Equal(t, `18446744073709551615`, fromUint.String())
}
