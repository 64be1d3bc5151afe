package stats

import (
	"math"
	"sort"
	"time"

	"github.com/draggle/rate-my-rez-waterloo/internal/models"
)

// Summary is the aggregate header shown above a property's reviews.
type Summary struct {
	Count     int            `json:"count"`
	AvgRating float64        `json:"avgRating"` // one decimal place
	AvgRent   int            `json:"avgRent"`   // rounded, priced reviews only
	AvgDist   int            `json:"avgDist"`   // rounded, reviews with a distance only
	RatedRent int            `json:"ratedRent"` // how many reviews priced the rent
	RatedDist int            `json:"ratedDist"` // how many reviews gave a distance
	TagCounts map[string]int `json:"tagCounts,omitempty"`
}

// Compute derives the summary for a set of reviews. The overall rating
// averages every review and is rounded to one decimal; rent and distance
// average only reviews that set a positive value, and are zero when none do.
func Compute(reviews []models.Review) Summary {
	s := Summary{Count: len(reviews)}
	if len(reviews) == 0 {
		return s
	}

	var ratingSum, rentSum, distSum int
	for _, r := range reviews {
		ratingSum += r.Rating
		if r.Rent > 0 {
			rentSum += r.Rent
			s.RatedRent++
		}
		if r.Distance > 0 {
			distSum += r.Distance
			s.RatedDist++
		}
		for _, tag := range r.Tags {
			if s.TagCounts == nil {
				s.TagCounts = make(map[string]int)
			}
			s.TagCounts[tag]++
		}
	}

	s.AvgRating = math.Round(float64(ratingSum)/float64(len(reviews))*10) / 10
	if s.RatedRent > 0 {
		s.AvgRent = int(math.Round(float64(rentSum) / float64(s.RatedRent)))
	}
	if s.RatedDist > 0 {
		s.AvgDist = int(math.Round(float64(distSum) / float64(s.RatedDist)))
	}
	return s
}

// SortReviews returns a new slice ordered by the given mode. The input is not
// modified, and reviews that compare equal keep their relative order.
func SortReviews(reviews []models.Review, mode models.SortMode) []models.Review {
	sorted := make([]models.Review, len(reviews))
	copy(sorted, reviews)

	switch mode {
	case models.SortRentLow:
		sort.SliceStable(sorted, func(i, j int) bool {
			return rentKey(sorted[i]) < rentKey(sorted[j])
		})
	case models.SortLocationBest:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].LocationRating > sorted[j].LocationRating
		})
	case models.SortMostHelpful:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].HelpfulCount > sorted[j].HelpfulCount
		})
	default: // SortNewest
		sort.SliceStable(sorted, func(i, j int) bool {
			return timeKey(sorted[i]).After(timeKey(sorted[j]))
		})
	}
	return sorted
}

// rentKey substitutes a large sentinel for unset rents so they sort last.
func rentKey(r models.Review) int {
	if r.Rent == 0 {
		return models.UnsetRentSortValue
	}
	return r.Rent
}

// timeKey treats a missing timestamp as the epoch so such reviews sort oldest.
func timeKey(r models.Review) time.Time {
	if r.Timestamp.IsZero() {
		return time.Unix(0, 0)
	}
	return r.Timestamp
}
