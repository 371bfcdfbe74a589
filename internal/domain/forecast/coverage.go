package forecast

import (
	"math"

	"github.com/okian/verdict/internal/domain/ratio"
)

// Tier is the presentation band for a coverage ratio.
type Tier string

// Coverage tiers.
const (
	TierUnknown Tier = "unknown"
	TierAtRisk  Tier = "at_risk"
	TierWatch   Tier = "watch"
	TierHealthy Tier = "healthy"
)

// Default coverage thresholds.
const (
	DefaultAtRiskBelow = 3.0
	DefaultHealthyAt   = 3.5
)

// Thresholds are the coverage tier cutoffs. Ratios below AtRiskBelow are at
// risk; ratios below HealthyAt are on watch; anything else is healthy.
type Thresholds struct {
	AtRiskBelow float64 `json:"at_risk_below"`
	HealthyAt   float64 `json:"healthy_at"`
}

// DefaultThresholds returns {3.0, 3.5}.
func DefaultThresholds() Thresholds {
	return Thresholds{AtRiskBelow: DefaultAtRiskBelow, HealthyAt: DefaultHealthyAt}
}

// Tier maps r to its band. A nil ratio is TierUnknown.
func (th Thresholds) Tier(r *float64) Tier {
	switch {
	case r == nil:
		return TierUnknown
	case *r < th.AtRiskBelow:
		return TierAtRisk
	case *r < th.HealthyAt:
		return TierWatch
	default:
		return TierHealthy
	}
}

// Coverage is open pipeline against the quota still to close.
type Coverage struct {
	OpenAmount float64  `json:"open_amount"`
	Remaining  float64  `json:"remaining_quota"`
	Ratio      *float64 `json:"ratio"`
	Tier       Tier     `json:"tier"`
}

// CoverageOf returns open / max(0, quota - won); the ratio is nil when
// nothing remains.
func CoverageOf(t Totals, quota float64, th Thresholds) Coverage {
	remaining := math.Max(0, quota-t.WonAmount)
	r := ratio.Div(t.OpenAmount, remaining)
	return Coverage{
		OpenAmount: t.OpenAmount,
		Remaining:  remaining,
		Ratio:      r,
		Tier:       th.Tier(r),
	}
}
