package lumen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var rate = UnitsToMicros(DefaultRatePerHour)

func TestDecay_OneHour(t *testing.T) {
	// 2400 Lm anchored at T, read at T+3600s, rate 10/hr -> 2390 Lm.
	anchor := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	got := Decay(UnitsToMicros(2400), rate, anchor, anchor.Add(time.Hour))
	assert.Equal(t, UnitsToMicros(2390), got)
}

func TestDecay_Table(t *testing.T) {
	anchor := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		amount  int64
		elapsed time.Duration
		want    int64
	}{
		{"zero elapsed", UnitsToMicros(100), 0, UnitsToMicros(100)},
		{"half hour", UnitsToMicros(100), 30 * time.Minute, UnitsToMicros(95)},
		{"full decay", UnitsToMicros(100), 10 * time.Hour, 0},
		{"beyond full decay stays zero", UnitsToMicros(100), 100 * time.Hour, 0},
		{"zero amount", 0, time.Hour, 0},
		{"negative amount clamps", -5, time.Hour, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Decay(tc.amount, rate, anchor, anchor.Add(tc.elapsed)))
		})
	}
}

func TestDecay_FutureAnchorReturnsAmountUnchanged(t *testing.T) {
	anchor := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	got := Decay(UnitsToMicros(500), rate, anchor, anchor.Add(-time.Hour))
	assert.Equal(t, UnitsToMicros(500), got)
}

func TestDecay_Monotonic(t *testing.T) {
	anchor := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	prev := Decay(UnitsToMicros(300), rate, anchor, anchor)
	for s := 1; s <= 3600*40; s += 977 {
		cur := Decay(UnitsToMicros(300), rate, anchor, anchor.Add(time.Duration(s)*time.Second))
		assert.LessOrEqual(t, cur, prev)
		assert.GreaterOrEqual(t, cur, int64(0))
		prev = cur
	}
}

func TestFloorToUnit(t *testing.T) {
	assert.Equal(t, UnitsToMicros(12), FloorToUnit(UnitsToMicros(12)+999_999))
	assert.Equal(t, int64(0), FloorToUnit(999_999))
	assert.Equal(t, int64(0), FloorToUnit(-3))
}

func TestAvailable_FloorsAtZero(t *testing.T) {
	anchor := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	// gross 0, committed 500 -> net -500, available 0.
	assert.Equal(t, int64(0), Available(0, UnitsToMicros(500), rate, anchor, anchor))
	assert.Equal(t, -UnitsToMicros(500), Net(0, UnitsToMicros(500), rate, anchor, anchor))
}

func TestAvailable_SharedAnchorDecaysBothSides(t *testing.T) {
	anchor := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := anchor.Add(2 * time.Hour)
	// Both sides lose 20 Lm; the spread is preserved until committed floors.
	got := Available(UnitsToMicros(1000), UnitsToMicros(400), rate, anchor, now)
	assert.Equal(t, UnitsToMicros(600), got)
}

func TestMicrosToUnits(t *testing.T) {
	assert.InDelta(t, 2390.5, MicrosToUnits(UnitsToMicros(2390)+500_000), 1e-9)
}

func TestFloatToMicros_RoundsToNearest(t *testing.T) {
	// 0.29 has no exact binary representation; truncation would give 289999.
	assert.Equal(t, int64(290_000), FloatToMicros(0.29))
	assert.Equal(t, int64(12_345_678), FloatToMicros(12.345678))
	assert.Equal(t, UnitsToMicros(2400), FloatToMicros(2400))
	assert.Equal(t, int64(0), FloatToMicros(0))
}
