package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StudentLevel is an optional author attribute on a review.
type StudentLevel string

const (
	StudentLevelUnspecified   StudentLevel = ""
	StudentLevelUndergraduate StudentLevel = "Undergraduate"
	StudentLevelGraduate      StudentLevel = "Graduate"
)

// SortMode selects the presentation order of a property's reviews.
type SortMode string

const (
	SortNewest       SortMode = "NEWEST"
	SortRentLow      SortMode = "RENT_LOW"
	SortLocationBest SortMode = "LOCATION_BEST"
	SortMostHelpful  SortMode = "MOST_HELPFUL"
)

// ParseSortMode maps a query-string value to a SortMode, defaulting to NEWEST.
func ParseSortMode(s string) SortMode {
	switch SortMode(s) {
	case SortRentLow, SortLocationBest, SortMostHelpful:
		return SortMode(s)
	default:
		return SortNewest
	}
}

// UnsetRentSortValue is the rent substituted for unset (zero) rents when
// sorting RENT_LOW, pushing them after every priced review.
const UnsetRentSortValue = 9999

// Review is a student's rating of a property. Author identity, property id
// and creation time are immutable after insert; everything else is replaced
// wholesale by an edit. HelpfulCount must always equal len(VotedUIDs); the
// two are only ever changed together in a single atomic update.
type Review struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	PropertyID     string             `bson:"property_id" json:"propertyId"`
	PropertyName   string             `bson:"property_name" json:"propertyName"`
	Category       Category           `bson:"category" json:"category"`
	UserID         string             `bson:"user_id" json:"userId"`
	UserEmail      string             `bson:"user_email" json:"userEmail"`
	Rating         int                `bson:"rating" json:"rating"`
	LocationRating int                `bson:"location_rating" json:"locationRating"` // 0 = unset
	Rent           int                `bson:"rent" json:"rent"`                      // 0 = unset
	Distance       int                `bson:"distance" json:"distance"`              // walk minutes, 0 = unset
	Comment        string             `bson:"comment" json:"comment"`
	Tags           []string           `bson:"tags,omitempty" json:"tags,omitempty"`
	Image          string             `bson:"image,omitempty" json:"image,omitempty"`
	StudentLevel   StudentLevel       `bson:"student_level,omitempty" json:"studentLevel,omitempty"`
	HelpfulCount   int                `bson:"helpful_count" json:"helpfulCount"`
	VotedUIDs      []string           `bson:"voted_uids" json:"votedUids"`
	Timestamp      time.Time          `bson:"timestamp" json:"timestamp"`
	LastEdited     *time.Time         `bson:"last_edited,omitempty" json:"lastEdited,omitempty"`
}

// HasVoted reports whether the given uid already cast a helpful vote.
func (r *Review) HasVoted(uid string) bool {
	for _, v := range r.VotedUIDs {
		if v == uid {
			return true
		}
	}
	return false
}
