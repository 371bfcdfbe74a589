// Package channel scores direct against partner-sourced deals and computes the
// Channel Efficiency Index with direct as the baseline of 100.
package channel

import (
	"sort"
	"strings"

	"github.com/okian/verdict/internal/domain/annotate"
	"github.com/okian/verdict/internal/domain/model"
	"github.com/okian/verdict/internal/domain/ratio"
	"github.com/okian/verdict/internal/domain/scope"
)

// Motion is how a deal was sourced.
type Motion string

// Motions.
const (
	MotionDirect  Motion = "direct"
	MotionPartner Motion = "partner"
)

// Defaults for Options.
const (
	DefaultMaxHealth     = 100.0
	DefaultMinClosedOpps = 3
)

// MotionOf returns partner when the deal names a partner.
func MotionOf(d *model.Deal) Motion {
	if d.IsPartner() {
		return MotionPartner
	}
	return MotionDirect
}

// Options tune scoring.
type Options struct {
	// MaxHealth is the top of the health score scale.
	MaxHealth float64 `json:"max_health"`
	// MinClosedOpps is the closed deal count a partner needs to be ranked.
	MinClosedOpps int `json:"min_closed_opps"`
}

// DefaultOptions returns {100, 3}.
func DefaultOptions() Options {
	return Options{MaxHealth: DefaultMaxHealth, MinClosedOpps: DefaultMinClosedOpps}
}

func (o Options) normalized() Options {
	if o.MaxHealth <= 0 {
		o.MaxHealth = DefaultMaxHealth
	}
	if o.MinClosedOpps <= 0 {
		o.MinClosedOpps = DefaultMinClosedOpps
	}
	return o
}

// Stats are the closed-deal metrics of one motion or partner.
type Stats struct {
	Opps           int      `json:"opps"`
	WonOpps        int      `json:"won_opps"`
	LostOpps       int      `json:"lost_opps"`
	WonAmount      float64  `json:"won_amount"`
	WinRate        *float64 `json:"win_rate"`
	AOV            *float64 `json:"aov"`
	AvgCycleDays   *float64 `json:"avg_cycle_days"`
	AvgHealthScore *float64 `json:"avg_health_score"`
	CEIRaw         float64  `json:"cei_raw"`
}

// accumulator gathers the raw sums Stats is derived from.
type accumulator struct {
	won, lost int
	wonAmount float64
	cycles    []float64
	scores    []float64
}

func (a *accumulator) add(d *annotate.Deal) {
	switch {
	case d.Won():
		a.won++
		a.wonAmount += d.Amount
	case d.Lost():
		a.lost++
	default:
		return
	}
	if !d.CreatedAt.IsZero() && !d.CloseDate.IsZero() {
		a.cycles = append(a.cycles, float64(model.DaysBetween(d.CreatedAt, d.CloseDate)))
	}
	if d.Scored() {
		a.scores = append(a.scores, d.HealthScore)
	}
}

func (a *accumulator) stats(maxHealth float64) Stats {
	opps := a.won + a.lost
	s := Stats{
		Opps:           opps,
		WonOpps:        a.won,
		LostOpps:       a.lost,
		WonAmount:      a.wonAmount,
		WinRate:        ratio.Div(float64(a.won), float64(opps)),
		AOV:            ratio.Div(a.wonAmount, float64(a.won)),
		AvgCycleDays:   ratio.Mean(a.cycles),
		AvgHealthScore: ratio.Mean(a.scores),
	}
	s.CEIRaw = RawEfficiency(s, maxHealth)
	return s
}

// RawEfficiency returns RV*QM for s. RV is won amount per cycle day and is 0
// without a positive cycle; QM is the win rate scaled by average health, or
// the win rate alone when no deal is scored.
func RawEfficiency(s Stats, maxHealth float64) float64 {
	cycle := ratio.Value(s.AvgCycleDays, 0)
	if cycle <= 0 {
		return 0
	}
	rv := s.WonAmount / cycle
	qm := ratio.Value(s.WinRate, 0)
	if s.AvgHealthScore != nil && maxHealth > 0 {
		qm *= *s.AvgHealthScore / maxHealth
	}
	return rv * qm
}

// Index returns raw/baseline*100, or nil when the baseline is unusable.
func Index(raw, baseline float64) *float64 {
	v := ratio.Div(raw, baseline)
	if v == nil {
		return nil
	}
	return ratio.Ptr(*v * 100)
}

// Partner is one partner's rollup. Key is the normalized partner name that
// deals were grouped by.
type Partner struct {
	Key            string   `json:"key"`
	Name           string   `json:"name"`
	Stats          Stats    `json:"stats"`
	CycleDeltaDays *float64 `json:"cycle_delta_days"`
	CEIIndex       *float64 `json:"cei_index"`
}

// Report is the channel view of a quarter.
type Report struct {
	Direct     Stats     `json:"direct"`
	Partner    Stats     `json:"partner"`
	RevenueMix *float64  `json:"revenue_mix"`
	CEIIndex   *float64  `json:"cei_index"`
	Partners   []Partner `json:"partners"`
	Promising  []Partner `json:"promising_partners"`
}

// Score computes channel stats for deals closed in p. Missing motions degrade
// to zero stats; the index is nil when the direct baseline is unusable.
func Score(deals []annotate.Deal, p model.QuotaPeriod, opts Options) Report {
	opts = opts.normalized()
	var direct, partner accumulator
	byPartner := make(map[string]*accumulator)
	names := make(map[string]string)

	for i := range deals {
		d := &deals[i]
		if !p.Contains(d.CloseDate) {
			continue
		}
		if MotionOf(&d.Deal) == MotionDirect {
			direct.add(d)
			continue
		}
		partner.add(d)
		key := scope.NormalizeName(d.PartnerName)
		acc, ok := byPartner[key]
		if !ok {
			acc = &accumulator{}
			byPartner[key] = acc
			names[key] = strings.TrimSpace(d.PartnerName)
		}
		acc.add(d)
	}

	r := Report{
		Direct:  direct.stats(opts.MaxHealth),
		Partner: partner.stats(opts.MaxHealth),
	}
	r.RevenueMix = ratio.Div(r.Partner.WonAmount, r.Partner.WonAmount+r.Direct.WonAmount)
	r.CEIIndex = Index(r.Partner.CEIRaw, r.Direct.CEIRaw)

	r.Partners = make([]Partner, 0, len(byPartner))
	for key, acc := range byPartner {
		s := acc.stats(opts.MaxHealth)
		r.Partners = append(r.Partners, Partner{
			Key:            key,
			Name:           names[key],
			Stats:          s,
			CycleDeltaDays: cycleDelta(s.AvgCycleDays, r.Direct.AvgCycleDays),
			CEIIndex:       Index(s.CEIRaw, r.Direct.CEIRaw),
		})
	}
	sort.Slice(r.Partners, func(i, j int) bool { return r.Partners[i].Key < r.Partners[j].Key })
	r.Promising = Promising(r.Partners, opts.MinClosedOpps)
	return r
}

func cycleDelta(partner, direct *float64) *float64 {
	if partner == nil || direct == nil {
		return nil
	}
	return ratio.Ptr(*partner - *direct)
}

// Promising returns partners with at least minClosed closed deals, fastest
// relative to direct first. Unknown deltas sort last; ties go to the larger
// won amount and then the name.
func Promising(partners []Partner, minClosed int) []Partner {
	out := make([]Partner, 0, len(partners))
	for _, p := range partners {
		if p.Stats.Opps >= minClosed {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.CycleDeltaDays == nil && b.CycleDeltaDays != nil:
			return false
		case a.CycleDeltaDays != nil && b.CycleDeltaDays == nil:
			return true
		case a.CycleDeltaDays != nil && *a.CycleDeltaDays != *b.CycleDeltaDays:
			return *a.CycleDeltaDays < *b.CycleDeltaDays
		case a.Stats.WonAmount != b.Stats.WonAmount:
			return a.Stats.WonAmount > b.Stats.WonAmount
		default:
			return a.Key < b.Key
		}
	})
	return out
}
