package engine

import (
	"sort"

	"climarisk/internal/types"
)

// OverallScore is the activity-weighted mean probability scaled to [0, 100]:
// 100 × Σ(w_c·p_c) / Σ(w_c). Categories missing a weight count as 1.0.
func OverallScore(
	conditions map[types.ConditionCategory]types.ConditionResult,
	profile types.ActivityProfile,
) float64 {
	var weighted, total float64
	for cat, result := range conditions {
		w, ok := profile.Weights[cat]
		if !ok {
			w = 1.0
		}
		weighted += w * result.Probability
		total += w
	}
	if total == 0 {
		return 0
	}
	return 100 * weighted / total
}

// recommendationFloor is the per-category probability below which a
// recommendation is considered noise and dropped.
const recommendationFloor = 0.25

// Recommendations returns the profile's advice for every material category,
// ordered by descending probability. Equal probabilities fall back to the
// canonical category order so output is deterministic.
func Recommendations(
	conditions map[types.ConditionCategory]types.ConditionResult,
	profile types.ActivityProfile,
) []string {
	type ranked struct {
		cat  types.ConditionCategory
		prob float64
		rank int
	}

	canonical := make(map[types.ConditionCategory]int, len(types.AllCategories()))
	for i, cat := range types.AllCategories() {
		canonical[cat] = i
	}

	var picks []ranked
	for cat, result := range conditions {
		if result.Probability < recommendationFloor {
			continue
		}
		if _, ok := profile.Recommendations[cat]; !ok {
			continue
		}
		picks = append(picks, ranked{cat: cat, prob: result.Probability, rank: canonical[cat]})
	}

	sort.Slice(picks, func(i, j int) bool {
		if picks[i].prob != picks[j].prob {
			return picks[i].prob > picks[j].prob
		}
		return picks[i].rank < picks[j].rank
	})

	out := make([]string, 0, len(picks))
	for _, p := range picks {
		out = append(out, profile.Recommendations[p.cat])
	}
	return out
}
