package forecast

import (
	"github.com/okian/verdict/internal/domain/model"
	"github.com/okian/verdict/internal/domain/ratio"
)

// Weighted holds the CRM-stated and health-adjusted forecasts for a quarter.
type Weighted struct {
	CRM         float64                  `json:"crm_weighted"`
	AI          float64                  `json:"ai_weighted"`
	Gap         float64                  `json:"gap"`
	AggModifier map[model.Bucket]float64 `json:"agg_modifier"`
	BucketDelta map[model.Bucket]float64 `json:"bucket_delta"`
	Quota       float64                  `json:"quota"`
	PctToGoal   *float64                 `json:"pct_to_goal"`
	LeftToGo    float64                  `json:"left_to_go"`
}

// Weigh applies probabilities and aggregate modifiers to t. The sum of
// BucketDelta always equals Gap.
func Weigh(t Totals, agg map[model.Bucket]float64, probs model.StageProbabilities, quota float64) Weighted {
	w := Weighted{
		CRM:         t.WonAmount,
		AI:          t.WonAmount,
		AggModifier: make(map[model.Bucket]float64, len(model.Buckets)),
		BucketDelta: make(map[model.Bucket]float64, len(model.Buckets)),
		Quota:       quota,
	}
	for _, b := range model.Buckets {
		amt := t.Bucket(b).Amount
		p := probs.For(b)
		mod, ok := agg[b]
		if !ok {
			mod = 1.0
		}
		crm := amt * p
		ai := amt * mod * p
		w.CRM += crm
		w.AI += ai
		w.AggModifier[b] = mod
		w.BucketDelta[b] = ai - crm
	}
	w.Gap = w.AI - w.CRM
	w.PctToGoal = ratio.Div(w.AI, quota)
	w.LeftToGo = quota - w.AI
	return w
}
