// Package lumen holds the pure decay and commitment arithmetic for the Lm
// economy. All amounts are int64 micro-Lm (1 Lm = 1_000_000 micros) so that
// millions of evaluations cannot accumulate float drift; conversion to
// display units happens only at the HTTP boundary.
package lumen

import (
	"math"
	"time"
)

// MicrosPerUnit is the fixed-point scale: 1 Lm in micro-Lm.
const MicrosPerUnit int64 = 1_000_000

// DefaultRatePerHour is the default decay rate in whole Lm per hour.
const DefaultRatePerHour int64 = 10

// UnitsToMicros converts whole Lm to micro-Lm.
func UnitsToMicros(units int64) int64 {
	return units * MicrosPerUnit
}

// MicrosToUnits converts micro-Lm to display Lm.
func MicrosToUnits(micros int64) float64 {
	return float64(micros) / float64(MicrosPerUnit)
}

// FloatToMicros converts a display-unit amount from a request body to
// micro-Lm, rounding to the nearest micro. Bare truncation would turn 0.29
// into 289999 micros because of binary float representation.
func FloatToMicros(units float64) int64 {
	return int64(math.Round(units * float64(MicrosPerUnit)))
}

// FloorToUnit truncates micro-Lm down to a whole-Lm boundary. Every mutation
// path that persists a re-anchored decayed value rounds through this so
// fractional leakage cannot accumulate in stored fields.
func FloorToUnit(micros int64) int64 {
	if micros <= 0 {
		return 0
	}
	return micros - micros%MicrosPerUnit
}

// Decay returns the current value of amountMicros after linear decay at
// ratePerHourMicros since the given anchor instant.
//
// Elapsed time is clamped at zero: a future anchor (clock skew) returns the
// amount unchanged, never increases it. The floor is zero; value cannot
// decay negative.
func Decay(amountMicros, ratePerHourMicros int64, since, now time.Time) int64 {
	if amountMicros <= 0 {
		return 0
	}
	elapsed := now.Unix() - since.Unix()
	if elapsed <= 0 {
		return amountMicros
	}
	decayed := ratePerHourMicros * elapsed / 3600
	if decayed >= amountMicros {
		return 0
	}
	return amountMicros - decayed
}

// Available computes the spendable balance: gross minus committed, both
// decayed from the shared anchor, floored at zero.
func Available(grossMicros, committedMicros, ratePerHourMicros int64, anchor, now time.Time) int64 {
	net := Net(grossMicros, committedMicros, ratePerHourMicros, anchor, now)
	if net < 0 {
		return 0
	}
	return net
}

// Net is the signed gross-minus-committed balance, decayed to now. It can be
// negative when a wish was created against an exactly-sufficient balance;
// the deficit is forgiven at fulfillment or cleared by renewal.
func Net(grossMicros, committedMicros, ratePerHourMicros int64, anchor, now time.Time) int64 {
	gross := Decay(grossMicros, ratePerHourMicros, anchor, now)
	committed := Decay(committedMicros, ratePerHourMicros, anchor, now)
	return gross - committed
}
