package engine

import (
	"sort"
	"strconv"
	"strings"

	"climarisk/internal/types"
)

// BaselineActivityID is the profile applied when a label cannot be resolved.
const BaselineActivityID = "general"

// profiles is the read-only activity catalog. Weight tables express how
// sensitive each activity is to each condition; recommendation texts are
// surfaced when that condition's probability is material.
var profiles = map[string]types.ActivityProfile{
	"hiking": {
		ID:   "hiking",
		Name: "Hiking",
		Weights: map[types.ConditionCategory]float64{
			types.ConditionVeryHot:           1.5,
			types.ConditionVeryCold:          1.2,
			types.ConditionVeryWindy:         1.0,
			types.ConditionVeryWet:           1.3,
			types.ConditionVeryUncomfortable: 1.4,
		},
		Recommendations: map[types.ConditionCategory]string{
			types.ConditionVeryHot:           "Start before sunrise and carry at least 3 liters of water per person.",
			types.ConditionVeryCold:          "Pack insulating layers and watch for ice on exposed trail sections.",
			types.ConditionVeryWindy:         "Avoid exposed ridgelines and summits in strong wind.",
			types.ConditionVeryWet:           "Waterproof boots and rain shells; expect slick rock and mud.",
			types.ConditionVeryUncomfortable: "Plan frequent shaded breaks and shorten the route.",
		},
	},
	"fishing": {
		ID:   "fishing",
		Name: "Fishing",
		Weights: map[types.ConditionCategory]float64{
			types.ConditionVeryHot:           1.0,
			types.ConditionVeryCold:          1.1,
			types.ConditionVeryWindy:         1.5,
			types.ConditionVeryWet:           0.8,
			types.ConditionVeryUncomfortable: 0.9,
		},
		Recommendations: map[types.ConditionCategory]string{
			types.ConditionVeryHot:           "Fish early morning or dusk; midday heat pushes fish deep.",
			types.ConditionVeryCold:          "Dress for wind chill over water and check for shore ice.",
			types.ConditionVeryWindy:         "High wind makes casting and small-boat handling hazardous.",
			types.ConditionVeryWet:           "Light rain can improve the bite; watch for rising water.",
			types.ConditionVeryUncomfortable: "Bring shade and hydration for long sessions.",
		},
	},
	"camping": {
		ID:   "camping",
		Name: "Camping",
		Weights: map[types.ConditionCategory]float64{
			types.ConditionVeryHot:           1.2,
			types.ConditionVeryCold:          1.5,
			types.ConditionVeryWindy:         1.3,
			types.ConditionVeryWet:           1.6,
			types.ConditionVeryUncomfortable: 1.2,
		},
		Recommendations: map[types.ConditionCategory]string{
			types.ConditionVeryHot:           "Pitch in shade and ventilate the tent; store food cool.",
			types.ConditionVeryCold:          "Bring a sleeping bag rated well below the expected minimum.",
			types.ConditionVeryWindy:         "Stake down everything and avoid camping under dead limbs.",
			types.ConditionVeryWet:           "Choose high ground and bring a ground tarp; flash flooding risk in washes.",
			types.ConditionVeryUncomfortable: "Plan water resupply and rest through the hottest hours.",
		},
	},
	"outdoor_sports": {
		ID:   "outdoor_sports",
		Name: "Outdoor Sports",
		Weights: map[types.ConditionCategory]float64{
			types.ConditionVeryHot:           1.6,
			types.ConditionVeryCold:          1.3,
			types.ConditionVeryWindy:         1.2,
			types.ConditionVeryWet:           1.4,
			types.ConditionVeryUncomfortable: 1.7,
		},
		Recommendations: map[types.ConditionCategory]string{
			types.ConditionVeryHot:           "Schedule matches outside 11:00-16:00 and enforce hydration breaks.",
			types.ConditionVeryCold:          "Extend warm-ups and cover extremities between plays.",
			types.ConditionVeryWindy:         "Expect ball flight disruption; secure goals and equipment.",
			types.ConditionVeryWet:           "Check field drainage; wet turf raises injury risk.",
			types.ConditionVeryUncomfortable: "Heat index this high warrants shortened sessions or postponement.",
		},
	},
	"beach_vacation": {
		ID:   "beach_vacation",
		Name: "Beach Vacation",
		Weights: map[types.ConditionCategory]float64{
			types.ConditionVeryHot:           0.7,
			types.ConditionVeryCold:          1.8,
			types.ConditionVeryWindy:         1.4,
			types.ConditionVeryWet:           1.5,
			types.ConditionVeryUncomfortable: 0.8,
		},
		Recommendations: map[types.ConditionCategory]string{
			types.ConditionVeryHot:           "Reapply sunscreen hourly and limit direct sun at midday.",
			types.ConditionVeryCold:          "Water and air this cold make swimming unpleasant; plan alternatives.",
			types.ConditionVeryWindy:         "Blowing sand and surf chop; heed local flag warnings.",
			types.ConditionVeryWet:           "Have indoor backup plans for washout days.",
			types.ConditionVeryUncomfortable: "Alternate sun exposure with shade and cool water.",
		},
	},
	BaselineActivityID: {
		ID:      BaselineActivityID,
		Name:    "General",
		Weights: baselineWeights(),
		Recommendations: map[types.ConditionCategory]string{
			types.ConditionVeryHot:           "Limit strenuous outdoor activity during peak heat.",
			types.ConditionVeryCold:          "Dress in layers and limit skin exposure.",
			types.ConditionVeryWindy:         "Secure loose objects and use caution outdoors.",
			types.ConditionVeryWet:           "Carry rain protection and avoid low-lying areas.",
			types.ConditionVeryUncomfortable: "Stay hydrated and take breaks in cool spaces.",
		},
	},
}

// aliases maps common user labels onto canonical profile ids.
var aliases = map[string]string{
	"hike":        "hiking",
	"trekking":    "hiking",
	"backpacking": "hiking",
	"fish":        "fishing",
	"angling":     "fishing",
	"camp":        "camping",
	"sports":      "outdoor_sports",
	"sport":       "outdoor_sports",
	"running":     "outdoor_sports",
	"beach":       "beach_vacation",
	"vacation":    "beach_vacation",
	"default":     BaselineActivityID,
	"":            BaselineActivityID,
}

func baselineWeights() map[types.ConditionCategory]float64 {
	w := make(map[types.ConditionCategory]float64, len(types.AllCategories()))
	for _, cat := range types.AllCategories() {
		w[cat] = 1.0
	}
	return w
}

// ResolveActivity maps a user-facing label to its profile. Unknown labels
// return UnknownActivity; callers fall back to the baseline profile.
func ResolveActivity(label string) (types.ActivityProfile, error) {
	key := strings.ToLower(strings.TrimSpace(label))
	if canonical, ok := aliases[key]; ok {
		key = canonical
	}
	if p, ok := profiles[key]; ok {
		return p, nil
	}
	return types.ActivityProfile{}, types.NewAppError(
		types.ErrCodeUnknownActivity,
		"unknown activity "+strconv.Quote(label),
		nil,
	)
}

// BaselineProfile is the all-ones fallback for unknown activities.
func BaselineProfile() types.ActivityProfile {
	return profiles[BaselineActivityID]
}

// ListActivities returns the catalog sorted by id for stable API output.
func ListActivities() []types.ActivityProfile {
	out := make([]types.ActivityProfile, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
