// Package scoring converts a weighted constitution questionnaire into
// three percentages and a primary/secondary classification.
package scoring

import (
	"math"
	"sort"

	"github.com/dtroode/prakriti-server/internal/model"
)

const (
	// MaxWeight is the largest weight a single answer may carry.
	MaxWeight = 1000

	balancedGap = 10
	dualGap     = 15
	// secondaryFloor is the score a runner-up needs to be named secondary.
	secondaryFloor = 25
)

type ranked struct {
	category model.Category
	score    int
}

// Score accumulates answer weights per category and classifies the result.
// Answers with an unknown category, or a weight outside [0, MaxWeight], are
// ignored. Percentages are rounded independently and may not add up to
// exactly 100.
func Score(answers []model.AssessmentAnswer) model.ConstitutionProfile {
	sums := make(map[model.Category]float64, len(model.Categories))
	var total float64
	for _, a := range answers {
		if !known(a.Category) {
			continue
		}
		w := 1.0
		if a.Weight != nil {
			w = *a.Weight
		}
		if !validWeight(w) {
			continue
		}
		sums[a.Category] += w
		total += w
	}
	if math.IsInf(total, 0) {
		return model.ConstitutionProfile{Primary: model.ClassBalanced, Secondary: model.ClassNone}
	}
	if total < 1 {
		total = 1
	}

	p := model.ConstitutionProfile{
		Vata:  percent(sums[model.CategoryVata], total),
		Pitta: percent(sums[model.CategoryPitta], total),
		Kapha: percent(sums[model.CategoryKapha], total),
	}
	p.Primary, p.Secondary = Classify(p.Vata, p.Pitta, p.Kapha)
	return p
}

// Classify derives the primary and secondary classification from three scores.
func Classify(vata, pitta, kapha int) (primary, secondary string) {
	r := []ranked{
		{model.CategoryVata, vata},
		{model.CategoryPitta, pitta},
		{model.CategoryKapha, kapha},
	}
	sort.SliceStable(r, func(i, j int) bool { return r[i].score > r[j].score })
	top, second, third := r[0], r[1], r[2]

	topGap := abs(top.score - second.score)
	lowGap := abs(second.score - third.score)

	if topGap < balancedGap && lowGap < balancedGap {
		return model.ClassBalanced, model.ClassNone
	} else if topGap < dualGap {
		return string(top.category) + "-" + string(second.category), string(third.category)
	} else if topGap >= dualGap {
		// Any single dominance lands here, so 60/35/5 yields no secondary.
		return string(top.category), model.ClassNone
	} else if second.score > secondaryFloor {
		return string(top.category), string(second.category)
	}
	return string(top.category), model.ClassNone
}

// ValidWeight reports whether w is a finite weight in [0, MaxWeight].
func ValidWeight(w float64) bool {
	return validWeight(w)
}

func validWeight(w float64) bool {
	return !math.IsNaN(w) && w >= 0 && w <= MaxWeight
}

func percent(sum, total float64) int {
	return int(math.Round(sum / total * 100))
}

func known(c model.Category) bool {
	for _, k := range model.Categories {
		if c == k {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
