package mood

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLabels struct{}

func (stubLabels) CategoryLabel(c Category) string { return "label-" + c.Key() }
func (stubLabels) Insight(c Category) string       { return "insight-" + c.Key() }

func TestScore(t *testing.T) {
	tests := []struct {
		name     string
		answers  []int
		rating   float64
		category Category
	}{
		{"all five", []int{5, 5, 5, 5, 5}, 10.0, CategoryExcellent},
		{"all one", []int{1, 1, 1, 1, 1}, 2.0, CategoryLow},
		{"all three", []int{3, 3, 3, 3, 3}, 6.0, CategoryGood},
		{"mean 1.4", []int{1, 1, 1, 2, 2}, 2.8, CategoryLow},
		{"mean 1.6", []int{1, 1, 2, 2, 2}, 3.2, CategoryModerate},
		{"mean 2.4", []int{2, 2, 2, 3, 3}, 4.8, CategoryModerate},
		{"mean 2.6", []int{2, 2, 3, 3, 3}, 5.2, CategoryGood},
		{"mean 3.4", []int{3, 3, 3, 4, 4}, 6.8, CategoryGood},
		{"mean 3.6", []int{3, 3, 4, 4, 4}, 7.2, CategoryVeryGood},
		{"mean 4.4", []int{4, 4, 4, 5, 5}, 8.8, CategoryVeryGood},
		{"mean 4.6", []int{4, 4, 5, 5, 5}, 9.2, CategoryExcellent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Score(tt.answers, nil)
			require.NoError(t, err)
			assert.InDelta(t, tt.rating, got.Rating, 1e-9)
			assert.Equal(t, tt.category, got.Category)
			assert.Equal(t, tt.category.String(), got.Label)
			assert.Equal(t, []string{tt.category.Insight()}, got.Insights)
		})
	}
}

func TestScoreWithoutLabelsHasInsights(t *testing.T) {
	got, err := Score([]int{1, 1, 1, 1, 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"You seem to be struggling right now"}, got.Insights)

	for _, c := range Categories {
		assert.NotEmpty(t, c.Insight(), c.String())
	}
}

func TestClassifyBoundaries(t *testing.T) {
	assert.Equal(t, CategoryLow, Classify(1.5))
	assert.Equal(t, CategoryModerate, Classify(2.5))
	assert.Equal(t, CategoryGood, Classify(3.5))
	assert.Equal(t, CategoryVeryGood, Classify(4.5))
	assert.Equal(t, CategoryExcellent, Classify(4.6))
}

func TestScoreLocalized(t *testing.T) {
	got, err := Score([]int{4, 4, 4, 4, 4}, stubLabels{})
	require.NoError(t, err)
	assert.Equal(t, CategoryVeryGood, got.Category)
	assert.Equal(t, "label-very_good", got.Label)
	assert.Equal(t, []string{"insight-very_good"}, got.Insights)
}

func TestScoreDeterministic(t *testing.T) {
	for a := MinAnswer; a <= MaxAnswer; a++ {
		for b := MinAnswer; b <= MaxAnswer; b++ {
			answers := []int{a, b, a, b, 3}
			first, err := Score(answers, stubLabels{})
			require.NoError(t, err)
			second, err := Score(answers, stubLabels{})
			require.NoError(t, err)
			assert.Equal(t, first, second)
			assert.GreaterOrEqual(t, first.Rating, 2.0)
			assert.LessOrEqual(t, first.Rating, 10.0)
		}
	}
}

func TestScoreRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		answers []int
	}{
		{"too few", []int{1, 2, 3, 4}},
		{"too many", []int{1, 2, 3, 4, 5, 5}},
		{"zero", []int{0, 2, 3, 4, 5}},
		{"six", []int{1, 2, 6, 4, 5}},
		{"nil", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Score(tt.answers, nil)
			require.ErrorIs(t, err, ErrInvalidAnswers)
		})
	}
}
