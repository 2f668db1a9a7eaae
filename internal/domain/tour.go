package domain

import (
	"math"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
)

// Difficulty constants define the allowed tour difficulty levels.
const (
	DifficultyEasy      = "easy"
	DifficultyMedium    = "medium"
	DifficultyDifficult = "difficult"
)

// ValidDifficulties returns the set of valid tour difficulties.
func ValidDifficulties() []string {
	return []string{DifficultyEasy, DifficultyMedium, DifficultyDifficult}
}

// IsValidDifficulty checks whether d is a valid tour difficulty.
func IsValidDifficulty(d string) bool {
	for _, v := range ValidDifficulties() {
		if v == d {
			return true
		}
	}
	return false
}

// Rating defaults written when a tour has no reviews.
const (
	DefaultRatingsAverage  = 4.5
	DefaultRatingsQuantity = 0
)

// Tour is the aggregation root of the catalogue.
type Tour struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Slug            string      `json:"slug"`
	Duration        int         `json:"duration"`
	DurationWeeks   float64     `json:"durationWeeks"`
	MaxGroupSize    int         `json:"maxGroupSize"`
	Difficulty      string      `json:"difficulty"`
	RatingsAverage  float64     `json:"ratingsAverage"`
	RatingsQuantity int         `json:"ratingsQuantity"`
	Price           float64     `json:"price"`
	PriceDiscount   *float64    `json:"priceDiscount,omitempty"`
	Summary         string      `json:"summary"`
	Description     string      `json:"description,omitempty"`
	ImageCover      string      `json:"imageCover"`
	Images          []string    `json:"images"`
	StartDates      []time.Time `json:"startDates"`
	SecretTour      bool        `json:"-"`
	StartLocation   *GeoPoint   `json:"startLocation,omitempty"`
	Locations       []GeoPoint  `json:"locations"`
	Guides          []string    `json:"guides"`
	Reviews         []Review    `json:"reviews,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
	Version         int         `json:"-"`
}

// Weeks returns the tour duration expressed in weeks.
func (t *Tour) Weeks() float64 {
	return float64(t.Duration) / 7
}

// VisibleTours is the visibility scope every tour read path applies.
// Secret tours never appear in listings or lookups.
func VisibleTours() exp.Expression {
	return goqu.C("secret_tour").IsNotTrue()
}

// RoundRating rounds an average rating to one decimal place.
func RoundRating(avg float64) float64 {
	return math.Round(avg*10) / 10
}

// RatingStats is the denormalized review aggregate cached on a tour.
type RatingStats struct {
	Quantity int     `json:"ratingsQuantity"`
	Average  float64 `json:"ratingsAverage"`
}

// DefaultRatingStats is written when a tour's last review is removed.
func DefaultRatingStats() RatingStats {
	return RatingStats{Quantity: DefaultRatingsQuantity, Average: DefaultRatingsAverage}
}

// TourStats is one difficulty bucket of the tour statistics report.
type TourStats struct {
	Difficulty string  `json:"difficulty"`
	NumTours   int     `json:"numTours"`
	NumRatings int     `json:"numRatings"`
	AvgRating  float64 `json:"avgRating"`
	AvgPrice   float64 `json:"avgPrice"`
	MinPrice   float64 `json:"minPrice"`
	MaxPrice   float64 `json:"maxPrice"`
}

// MonthlyPlan lists the tours starting in a calendar month.
type MonthlyPlan struct {
	Month         int      `json:"month"`
	NumTourStarts int      `json:"numTourStarts"`
	Tours         []string `json:"tours"`
}

// TourDistance is a tour's distance from a reference point.
type TourDistance struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
}
