package lumen

import "time"

// Obligation is the slice of a wish the commitment calculator needs: its
// fixed face value and its own decay anchor.
type Obligation struct {
	FaceMicros int64
	CreatedAt  time.Time
}

// CommittedSum recomputes the true currently-committed total over a set of
// active obligations, each decaying from its own creation instant. This is
// the O(N) truth the cached Account.CommittedMicros approximates; the
// reconciler compares the two and heals drift.
func CommittedSum(obligations []Obligation, ratePerHourMicros int64, now time.Time) int64 {
	var sum int64
	for _, o := range obligations {
		sum += Decay(o.FaceMicros, ratePerHourMicros, o.CreatedAt, now)
	}
	return sum
}
