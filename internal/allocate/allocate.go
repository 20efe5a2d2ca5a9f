// Package allocate distributes aggregate funnel counts across channels in
// proportion to an adjacent, already-attributed stage. The leads stage has no
// per-record channel tag, so its total is spread according to each channel's
// share of traffic; the deals and revenue stages chain one allocation deeper.
package allocate

import (
	"math"

	"github.com/sells-group/atlas-cli/internal/channel"
)

// chainedRevenueAllocation pins the revenue-breakdown method: the per-channel
// closed-deal estimate is derived from the already-allocated deals breakdown
// and the global close rate, compounding rounding across the two steps. This
// matches the dashboard's historical numbers; a single direct three-stage
// allocation would drift from them.
const chainedRevenueAllocation = true

// Proportional spreads total across the channels of basis, each channel
// receiving round(total * share). Rounding is half-away-from-zero per
// channel, so the allocated sum may differ from total by at most one unit
// per channel. A zero-total basis allocates zero everywhere.
func Proportional(total int, basis channel.Bucket) channel.Bucket {
	out := make(channel.Bucket, len(basis))
	basisTotal := basis.Total()
	if basisTotal == 0 {
		for c := range basis {
			out[c] = 0
		}
		return out
	}
	for c, v := range basis {
		out[c] = roundHalfAway(float64(total) * float64(v) / float64(basisTotal))
	}
	return out
}

// Revenue estimates per-channel closed-won revenue from the deals-stage
// breakdown, the global close rate, and the average closed deal value.
// With no closed deals everything is zero.
func Revenue(dealsByChannel channel.Bucket, dealsCreated, closedWonCount int, closedWonRevenue float64) channel.Bucket {
	out := make(channel.Bucket, len(dealsByChannel))
	if closedWonCount == 0 || dealsCreated == 0 {
		for c := range dealsByChannel {
			out[c] = 0
		}
		return out
	}

	closeRate := float64(closedWonCount) / float64(dealsCreated)
	avgDealValue := closedWonRevenue / float64(closedWonCount)

	for c, deals := range dealsByChannel {
		if chainedRevenueAllocation {
			closedDeals := roundHalfAway(float64(deals) * closeRate)
			out[c] = roundHalfAway(float64(closedDeals) * avgDealValue)
		}
	}
	return out
}

func roundHalfAway(v float64) int {
	return int(math.Round(v))
}
