package domain

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

// Review is one renter's verdict on a property; a profile reviews a property
// at most once.
type Review struct {
	ID         string
	PropertyID string
	ProfileID  string
	Rating     int
	Comment    string
	CreatedAt  time.Time
}

func ValidRating(r int) bool { return r >= MinRating && r <= MaxRating }

type ReviewView struct {
	ID           string    `json:"id"`
	PropertyID   string    `json:"propertyId"`
	PropertyName string    `json:"propertyName,omitempty"`
	Author       string    `json:"author,omitempty"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment"`
	CreatedAt    time.Time `json:"createdAt"`
}

// RatingSummary is the average rating of a property, rounded to one decimal.
type RatingSummary struct {
	PropertyID string  `json:"propertyId"`
	Average    float64 `json:"rating"`
	Count      int     `json:"count"`
}

// NewRatingSummary rounds sum/count half up to tenths using integer math.
func NewRatingSummary(propertyID string, sum int64, count int) RatingSummary {
	out := RatingSummary{PropertyID: propertyID, Count: count}
	if count <= 0 {
		return out
	}
	tenths := (sum*20 + int64(count)) / (int64(count) * 2)
	out.Average = float64(tenths) / 10
	return out
}

// PropertyCard is the short listing shown in a renter's favorites.
type PropertyCard struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Country    string `json:"country"`
	PriceMinor int64  `json:"price"`
}
