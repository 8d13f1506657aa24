package detect

import "github.com/sells-group/dealscout/internal/model"

// QualityScore ranks a deal 0-100 for alert prioritization. Discount depth
// dominates; the deal shape and urgency add smaller bonuses, and rough
// conditions are penalized so a battered "acceptable" unit does not outrank
// a clean open-box one at the same percent off.
func QualityScore(d model.Deal) int {
	score := float64(d.PercentOff) * 0.7

	switch d.Type {
	case model.DealLightning:
		score += 15
		if d.Lightning != nil && d.Lightning.TimeRemainingMin > 0 && d.Lightning.TimeRemainingMin <= 60 {
			score += 10
		}
	case model.DealWarehouse:
		score += 10
		if d.Warehouse != nil {
			switch d.Warehouse.Condition {
			case model.ConditionGood:
				score -= 5
			case model.ConditionAcceptable:
				score -= 10
			}
		}
	case model.DealCoupon:
		score += 5
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return int(score)
}
