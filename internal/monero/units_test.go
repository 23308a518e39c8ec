package monero

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromXMR(t *testing.T) {
	cases := []struct {
		in   string
		want Atomic
	}{
		{"1", Atomic(AtomicPerXMR)},
		{"0.001", 1_000_000_000},
		{"0.000000000001", 1},
		{"0.0000000000019", 1},
		{"0", 0},
	}
	for _, tc := range cases {
		got, err := FromXMR(decimal.RequireFromString(tc.in))
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := FromXMR(decimal.RequireFromString("-0.5"))
	assert.Error(t, err)

	_, err = FromXMR(decimal.RequireFromString("99999999999"))
	assert.Error(t, err)
}

func TestAtomic_XMRRoundTrip(t *testing.T) {
	a := Atomic(math.MaxUint64)
	back, err := FromXMR(a.XMR())
	require.NoError(t, err)
	assert.Equal(t, a, back)
	assert.Equal(t, "1.5", Atomic(1_500_000_000_000).String())
}

func TestParseXMR(t *testing.T) {
	a, err := ParseXMR(" 2.75 ")
	require.NoError(t, err)
	assert.Equal(t, Atomic(2_750_000_000_000), a)

	_, err = ParseXMR("two")
	assert.Error(t, err)
}

func TestAtomic_ScanAndValue(t *testing.T) {
	var a Atomic
	require.NoError(t, a.Scan([]byte("18446744073709551615")))
	assert.Equal(t, Atomic(math.MaxUint64), a)

	v, err := a.Value()
	require.NoError(t, err)
	assert.Equal(t, "18446744073709551615", v)

	require.NoError(t, a.Scan(int64(42)))
	assert.Equal(t, Atomic(42), a)
	require.NoError(t, a.Scan(nil))
	assert.Equal(t, Atomic(0), a)
	assert.Error(t, a.Scan(int64(-1)))
	assert.Error(t, a.Scan(3.14))
}

func TestAtomic_JSON(t *testing.T) {
	var a Atomic
	require.NoError(t, json.Unmarshal([]byte(`"1000"`), &a))
	assert.Equal(t, Atomic(1000), a)
	require.NoError(t, json.Unmarshal([]byte(`2000`), &a))
	assert.Equal(t, Atomic(2000), a)

	out, err := json.Marshal(Atomic(5))
	require.NoError(t, err)
	assert.Equal(t, "5", string(out))
}
