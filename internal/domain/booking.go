package domain

import "time"

// Booking records that a user paid for a tour.
type Booking struct {
	ID        string    `json:"id"`
	TourID    string    `json:"tour"`
	UserID    string    `json:"user"`
	Price     float64   `json:"price"`
	Paid      bool      `json:"paid"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Version   int       `json:"-"`
}

// BookingPatch holds the mutable fields of a booking.
type BookingPatch struct {
	Price *float64
	Paid  *bool
}
