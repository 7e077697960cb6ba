package quantize

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helios-quant/pairtrade/pkg/errors"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}

	return d
}

func TestPrice(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		tick string
		want string
	}{
		{name: "tick 0.01 rounds to two digits", raw: "1.2348", tick: "0.01", want: "1.23"},
		{name: "tick 0.01 rounds half up", raw: "1.235", tick: "0.01", want: "1.24"},
		{name: "tick 0.1 rounds to one digit", raw: "1752.34", tick: "0.1", want: "1752.3"},
		{name: "tick 0.0001 keeps four digits", raw: "0.06174", tick: "0.0001", want: "0.0617"},
		{name: "tick with trailing zeros", raw: "1.2348", tick: "0.010", want: "1.23"},
		{name: "tick of one leaves price untouched", raw: "1752.34", tick: "1", want: "1752.34"},
		{name: "tick above one leaves price untouched", raw: "1752.34", tick: "5", want: "1752.34"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Price(dec(tt.raw), dec(tt.tick))
			require.NoError(t, err)
			assert.True(t, got.Equal(dec(tt.want)), "got %s, want %s", got, tt.want)
		})
	}
}

func TestPriceInvalidTick(t *testing.T) {
	_, err := Price(dec("1.23"), decimal.Zero)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidTickSpec))

	_, err = Price(dec("1.23"), dec("-0.01"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidTickSpec))
}

func TestSizeFractionalStep(t *testing.T) {
	got, err := Size(dec("2.37"), dec("0.1"))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("2.4")), "got %s", got)

	got, err = Size(dec("0.0123456"), dec("0.001"))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("0.012")), "got %s", got)
}

func TestSizeCoarseStep(t *testing.T) {
	// Steps of 1 or more truncate toward the leading magnitude of the step.
	// 27 at step 10 must come out as 20, not 30.
	tests := []struct {
		raw  string
		step string
		want string
	}{
		{raw: "23", step: "10", want: "20"},
		{raw: "27", step: "10", want: "20"},
		{raw: "29.9", step: "10", want: "20"},
		{raw: "270", step: "100", want: "200"},
		{raw: "2.37", step: "1", want: "2"},
	}

	for _, tt := range tests {
		got, err := Size(dec(tt.raw), dec(tt.step))
		require.NoError(t, err)
		assert.True(t, got.Equal(dec(tt.want)), "size(%s, %s) = %s, want %s", tt.raw, tt.step, got, tt.want)
	}
}

func TestSizeInvalidStep(t *testing.T) {
	_, err := Size(dec("2.37"), decimal.Zero)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidTickSpec))
}
