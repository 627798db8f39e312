package meter

import "math"

// minusLog05 is -log(0.5), used to convert a half-weight period into the
// exponential decay constant.
const minusLog05 = 0.6931471805599453

// EWA is an exponentially weighted average for irregularly sampled data.
// The half period is the distance into the past at which an observation is
// weighed at exactly 0.5 relative to an observation made right now.
// Updates arriving out of order are folded in without reordering, so the
// average stays finite regardless of update order.
//
// References:
// http://tdunning.blogspot.com/2011/03/exponentially-weighted-averaging-for.html
// http://weatheringthrutechdays.blogspot.com/2011/04/follow-up-for-mean-summarizer-post.html
type EWA struct {
	alpha float64
	w     float64
	s     float64
	tn    float64
}

// NewEWA creates a summarizer with the given half-weight period. The period
// is in whatever unit the caller passes to Update as t (milliseconds here).
func NewEWA(halfPeriod float64) *EWA {
	return &EWA{alpha: halfPeriod / minusLog05}
}

// Reset discards all accumulated observations.
func (e *EWA) Reset() {
	e.w = 0
	e.s = 0
	e.tn = 0
}

// Update folds in observation x made at timeline point t.
func (e *EWA) Update(x, t float64) {
	pi := math.Exp(-math.Abs(e.tn-t) / e.alpha)
	if t > e.tn {
		e.s = pi*e.s + x
		e.w = pi*e.w + 1
		e.tn = t
	} else {
		e.s += pi * x
		e.w += pi
	}
}

// Value evaluates the average. With no samples at all it returns 0; the most
// recent sample is never discounted, so w >= 1 once anything has arrived.
func (e *EWA) Value() float64 {
	if math.Abs(e.w) < 1e-6 {
		return 0
	}
	return e.s / e.w
}
