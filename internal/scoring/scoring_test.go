package scoring

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/prakriti-server/internal/model"
)

func answers(vata, pitta, kapha int) []model.AssessmentAnswer {
	var out []model.AssessmentAnswer
	for i := 0; i < vata; i++ {
		out = append(out, model.AssessmentAnswer{Category: model.CategoryVata})
	}
	for i := 0; i < pitta; i++ {
		out = append(out, model.AssessmentAnswer{Category: model.CategoryPitta})
	}
	for i := 0; i < kapha; i++ {
		out = append(out, model.AssessmentAnswer{Category: model.CategoryKapha})
	}
	return out
}

func weight(w float64) *float64 { return &w }

func TestScore_Percentages(t *testing.T) {
	p := Score(answers(6, 3, 1))

	assert.Equal(t, 60, p.Vata)
	assert.Equal(t, 30, p.Pitta)
	assert.Equal(t, 10, p.Kapha)
}

func TestScore_Weights(t *testing.T) {
	p := Score([]model.AssessmentAnswer{
		{Category: model.CategoryVata, Weight: weight(2)},
		{Category: model.CategoryPitta, Weight: weight(1)},
		{Category: model.CategoryKapha, Weight: weight(1)},
	})

	assert.Equal(t, 50, p.Vata)
	assert.Equal(t, 25, p.Pitta)
	assert.Equal(t, 25, p.Kapha)
}

func TestScore_EmptyQuestionnaire(t *testing.T) {
	p := Score(nil)

	assert.Equal(t, 0, p.Vata)
	assert.Equal(t, 0, p.Pitta)
	assert.Equal(t, 0, p.Kapha)
	assert.Equal(t, model.ClassBalanced, p.Primary)
	assert.Equal(t, model.ClassNone, p.Secondary)
}

func TestScore_IndependentRounding(t *testing.T) {
	// 1/3 each rounds to 33 three times.
	p := Score(answers(1, 1, 1))

	assert.Equal(t, 99, p.Vata+p.Pitta+p.Kapha)
}

func TestScore_RoundingErrorBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 1000; i++ {
		n := 1 + rng.Intn(40)
		var in []model.AssessmentAnswer
		for j := 0; j < n; j++ {
			in = append(in, model.AssessmentAnswer{
				Category: model.Categories[rng.Intn(3)],
				Weight:   weight(float64(1 + rng.Intn(5))),
			})
		}
		p := Score(in)

		for _, s := range []int{p.Vata, p.Pitta, p.Kapha} {
			require.GreaterOrEqual(t, s, 0)
			require.LessOrEqual(t, s, 100)
		}
		diff := p.Vata + p.Pitta + p.Kapha - 100
		require.LessOrEqual(t, abs(diff), 2, "scores %d/%d/%d", p.Vata, p.Pitta, p.Kapha)
	}
}

func TestScore_InputOrderIrrelevant(t *testing.T) {
	in := answers(4, 2, 3)
	reversed := make([]model.AssessmentAnswer, len(in))
	for i := range in {
		reversed[len(in)-1-i] = in[i]
	}

	assert.Equal(t, Score(in), Score(reversed))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name          string
		vata          int
		pitta         int
		kapha         int
		wantPrimary   string
		wantSecondary string
	}{
		{"balanced", 34, 33, 33, model.ClassBalanced, model.ClassNone},
		{"balanced regardless of order", 30, 38, 32, model.ClassBalanced, model.ClassNone},
		{"dual", 45, 35, 20, "vata-pitta", "kapha"},
		{"dual led by kapha", 20, 38, 42, "kapha-pitta", "vata"},
		{"single with large runner-up", 60, 35, 5, "vata", model.ClassNone},
		{"single", 70, 20, 10, "vata", model.ClassNone},
		{"single pitta", 10, 80, 10, "pitta", model.ClassNone},
		{"top gap small but low gap large", 40, 35, 25, "vata-pitta", "kapha"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary, secondary := Classify(tt.vata, tt.pitta, tt.kapha)
			assert.Equal(t, tt.wantPrimary, primary)
			assert.Equal(t, tt.wantSecondary, secondary)
		})
	}
}

func TestScore_IgnoresUnknownCategory(t *testing.T) {
	p := Score([]model.AssessmentAnswer{
		{Category: model.CategoryVata},
		{Category: "ether"},
	})

	assert.Equal(t, 100, p.Vata)
}

func TestScore_OutOfRangeWeightsIgnored(t *testing.T) {
	p := Score([]model.AssessmentAnswer{
		{Category: model.CategoryVata, Weight: weight(1e308)},
		{Category: model.CategoryVata, Weight: weight(1e308)},
		{Category: model.CategoryPitta, Weight: weight(1e308)},
		{Category: model.CategoryKapha, Weight: weight(math.NaN())},
		{Category: model.CategoryVata, Weight: weight(-3)},
		{Category: model.CategoryVata},
		{Category: model.CategoryPitta},
	})

	assert.Equal(t, 50, p.Vata)
	assert.Equal(t, 50, p.Pitta)
	assert.Equal(t, 0, p.Kapha)
}

func TestScore_BoundsHoldAtMaxWeight(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		n := 1 + rng.Intn(60)
		var in []model.AssessmentAnswer
		for j := 0; j < n; j++ {
			w := MaxWeight * rng.Float64()
			if j == 0 {
				w = MaxWeight
			}
			in = append(in, model.AssessmentAnswer{
				Category: model.Categories[rng.Intn(3)],
				Weight:   weight(w),
			})
		}
		p := Score(in)

		for _, s := range []int{p.Vata, p.Pitta, p.Kapha} {
			require.GreaterOrEqual(t, s, 0)
			require.LessOrEqual(t, s, 100)
		}
		diff := p.Vata + p.Pitta + p.Kapha - 100
		require.LessOrEqual(t, abs(diff), 2, "scores %d/%d/%d", p.Vata, p.Pitta, p.Kapha)
	}
}

func TestValidWeight(t *testing.T) {
	tests := []struct {
		name string
		w    float64
		want bool
	}{
		{"zero", 0, true},
		{"default", 1, true},
		{"cap", MaxWeight, true},
		{"above cap", MaxWeight + 0.5, false},
		{"huge", 1e308, false},
		{"negative", -1, false},
		{"nan", math.NaN(), false},
		{"inf", math.Inf(1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidWeight(tt.w))
		})
	}
}
