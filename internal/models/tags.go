package models

// TagPolarity classifies an amenity tag for display.
type TagPolarity string

const (
	TagGood    TagPolarity = "good"
	TagNeutral TagPolarity = "neutral"
	TagBad     TagPolarity = "bad"
)

// AmenityTag is a fixed-catalog label attachable to a review.
type AmenityTag struct {
	ID       string      `json:"id"`
	Label    string      `json:"label"`
	Icon     string      `json:"icon"`
	Polarity TagPolarity `json:"type"`
}

// AmenityTags is the full tag catalog. Reviews reference tags by id;
// unknown ids are kept as-is and simply not rendered.
var AmenityTags = []AmenityTag{
	{ID: "ac", Label: "AC", Icon: "❄️", Polarity: TagGood},
	{ID: "ensuite", Label: "Ensuite Bath", Icon: "🚿", Polarity: TagGood},
	{ID: "gym", Label: "Gym Nearby", Icon: "💪", Polarity: TagGood},
	{ID: "wifi", Label: "Fast Wifi", Icon: "🚀", Polarity: TagGood},
	{ID: "quiet", Label: "Quiet", Icon: "🤫", Polarity: TagGood},
	{ID: "social", Label: "Social Vibe", Icon: "🎉", Polarity: TagNeutral},
	{ID: "pests", Label: "Pest Issues", Icon: "🪳", Polarity: TagBad},
	{ID: "noise", Label: "Noisy", Icon: "🔊", Polarity: TagBad},
	{ID: "mgmt", Label: "Bad Management", Icon: "📉", Polarity: TagBad},
}

// TagByID looks a tag up in the catalog.
func TagByID(id string) (AmenityTag, bool) {
	for _, t := range AmenityTags {
		if t.ID == id {
			return t, true
		}
	}
	return AmenityTag{}, false
}
