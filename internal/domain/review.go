package domain

import "time"

// Review is a user's rating of a tour. A user reviews a tour at most once.
type Review struct {
	ID        string    `json:"id"`
	Review    string    `json:"review"`
	Rating    float64   `json:"rating"`
	TourID    string    `json:"tour"`
	UserID    string    `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Version   int       `json:"-"`
}

// ReviewRef is the minimal reference resolved before a review is mutated.
// TourID identifies which tour's rating must be recomputed afterwards.
type ReviewRef struct {
	ID     string
	TourID string
	UserID string
}

// ReviewPatch holds the mutable fields of a review. Nil means unchanged.
type ReviewPatch struct {
	Review *string
	Rating *float64
}
