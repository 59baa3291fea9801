package record_test

import (
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/require"

	"github.com/fiberdb/core/internal/record"
)

func roundTrip(t *testing.T, v record.Value) record.Value {
	t.Helper()
	size := record.Sizeof(v)
	buf := record.Encode(make([]byte, 0, size), v)
	require.Len(t, buf, size)

	decoded, n, err := record.Decode(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	return decoded
}

func TestCodecScalarRoundTrip(t *testing.T) {
	cases := []record.Value{
		record.Nil(),
		record.Bool(true),
		record.Bool(false),
		record.Uint(0),
		record.Uint(1 << 40),
		record.Int(-12345),
		record.Float32(3.5),
		record.Float64(2.71828),
		record.String(""),
		record.String("hello, world"),
		record.Binary([]byte{0x00, 0x01, 0xff}),
	}

	for _, v := range cases {
		got := roundTrip(t, v)
		require.Equal(t, v.Kind(), got.Kind())
	}
}

func TestCodecArrayRoundTrip(t *testing.T) {
	v := record.Array([]record.Value{
		record.Int(1),
		record.Int(2),
		record.String("three"),
	})
	got := roundTrip(t, v)
	require.Equal(t, record.KindArray, got.Kind())
	require.Len(t, got.Arr(), 3)
	require.Equal(t, int64(1), got.Arr()[0].Int())
	require.Equal(t, "three", got.Arr()[2].Str())
}

func TestCodecMapPreservesKeyOrder(t *testing.T) {
	mv := &record.MapValue{
		Keys:   []string{"z", "a", "m"},
		Values: []record.Value{record.Int(1), record.Int(2), record.Int(3)},
	}
	v := record.Map(mv)
	got := roundTrip(t, v)
	require.Equal(t, []string{"z", "a", "m"}, got.MapVal().Keys)
}

func TestCodecDecimalRoundTrip(t *testing.T) {
	d, _, err := new(apd.Decimal).SetString("123.456")
	require.NoError(t, err)
	v := record.Decimal(d)
	got := roundTrip(t, v)
	require.Equal(t, record.KindDecimal, got.Kind())
	require.Equal(t, 0, d.Cmp(got.Dec()))
}

func TestCodecNestedRoundTrip(t *testing.T) {
	inner := record.Array([]record.Value{record.Int(4), record.Int(5), record.Int(6)})
	v := record.Array([]record.Value{record.Int(1), inner, record.String("tail")})
	got := roundTrip(t, v)
	require.Equal(t, int64(5), got.Arr()[1].Arr()[1].Int())
}
