// Package mood turns assessment answers into a mood analysis.
package mood

import (
	"errors"
	"fmt"
	"math"
)

const (
	// QuestionCount is the number of answers an assessment collects.
	QuestionCount = 5

	MinAnswer = 1
	MaxAnswer = 5
)

var ErrInvalidAnswers = errors.New("invalid assessment answers")

// Category is the coarse mood band derived from the mean answer.
type Category int

const (
	CategoryLow Category = iota
	CategoryModerate
	CategoryGood
	CategoryVeryGood
	CategoryExcellent
)

// Categories lists every category in increasing order.
var Categories = []Category{
	CategoryLow,
	CategoryModerate,
	CategoryGood,
	CategoryVeryGood,
	CategoryExcellent,
}

// Key returns the stable identifier used by the content tables.
func (c Category) Key() string {
	switch c {
	case CategoryLow:
		return "low"
	case CategoryModerate:
		return "moderate"
	case CategoryGood:
		return "good"
	case CategoryVeryGood:
		return "very_good"
	case CategoryExcellent:
		return "excellent"
	default:
		return "unknown"
	}
}

// Insight returns the built-in English insight for c.
func (c Category) Insight() string {
	switch c {
	case CategoryLow:
		return "You seem to be struggling right now"
	case CategoryModerate:
		return "You're having a challenging time"
	case CategoryGood:
		return "You're managing well"
	case CategoryVeryGood:
		return "You're in a great place"
	default:
		return "You're feeling amazing!"
	}
}

func (c Category) String() string {
	switch c {
	case CategoryLow:
		return "Low"
	case CategoryModerate:
		return "Moderate"
	case CategoryGood:
		return "Good"
	case CategoryVeryGood:
		return "Very Good"
	case CategoryExcellent:
		return "Excellent"
	default:
		return "Unknown"
	}
}

// Labels provides localized category names and insights.
type Labels interface {
	CategoryLabel(c Category) string
	Insight(c Category) string
}

// Analysis is the derived result of a completed assessment.
type Analysis struct {
	Rating   float64  `json:"rating"`
	Category Category `json:"category"`
	Label    string   `json:"label"`
	Insights []string `json:"insights"`
}

// Score computes the analysis for exactly QuestionCount answers in
// [MinAnswer, MaxAnswer]. labels may be nil, in which case the English
// category name and insight are used.
func Score(answers []int, labels Labels) (Analysis, error) {
	if len(answers) != QuestionCount {
		return Analysis{}, fmt.Errorf("%w: got %d answers, want %d", ErrInvalidAnswers, len(answers), QuestionCount)
	}

	sum := 0
	for i, a := range answers {
		if a < MinAnswer || a > MaxAnswer {
			return Analysis{}, fmt.Errorf("%w: answer %d is %d", ErrInvalidAnswers, i+1, a)
		}
		sum += a
	}

	mean := float64(sum) / float64(len(answers))
	category := Classify(mean)

	analysis := Analysis{
		Rating:   round1(mean / MaxAnswer * 10),
		Category: category,
		Label:    category.String(),
		Insights: []string{category.Insight()},
	}
	if labels != nil {
		analysis.Label = labels.CategoryLabel(category)
		analysis.Insights = []string{labels.Insight(category)}
	}
	return analysis, nil
}

// Classify maps a mean answer to its category. Thresholds are inclusive
// upper bounds checked in increasing order.
func Classify(mean float64) Category {
	switch {
	case mean <= 1.5:
		return CategoryLow
	case mean <= 2.5:
		return CategoryModerate
	case mean <= 3.5:
		return CategoryGood
	case mean <= 4.5:
		return CategoryVeryGood
	default:
		return CategoryExcellent
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
