package lumen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCommittedSum_EachObligationDecaysFromItsOwnAnchor(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	obs := []Obligation{
		{FaceMicros: UnitsToMicros(100), CreatedAt: base},                     // 1h old -> 90
		{FaceMicros: UnitsToMicros(50), CreatedAt: base.Add(30 * time.Minute)}, // 30m old -> 45
	}
	got := CommittedSum(obs, rate, base.Add(time.Hour))
	assert.Equal(t, UnitsToMicros(135), got)
}

func TestCommittedSum_FullyDecayedObligationContributesNothing(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	obs := []Obligation{
		{FaceMicros: UnitsToMicros(100), CreatedAt: base}, // 10h at 10/hr -> 0
		{FaceMicros: UnitsToMicros(20), CreatedAt: base.Add(9 * time.Hour)},
	}
	got := CommittedSum(obs, rate, base.Add(10*time.Hour))
	assert.Equal(t, UnitsToMicros(10), got)
}

func TestCommittedSum_Empty(t *testing.T) {
	assert.Equal(t, int64(0), CommittedSum(nil, rate, time.Now()))
}
