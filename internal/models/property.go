package models

import (
	"fmt"
	"strings"
)

// Category distinguishes the two browsing lists.
type Category string

const (
	CategoryOnCampus  Category = "ON"
	CategoryOffCampus Category = "OFF"
)

// Property is a reviewable housing option. Catalog entries are defined at
// build time; free-text address searches synthesize one on the fly.
// Properties are never persisted: reviews and questions carry a denormalized
// copy of the name so no join is ever needed.
type Property struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Address  string   `json:"address"`
	Category Category `json:"category,omitempty"`
}

// OnCampusResidences is the fixed catalog of UW residences.
var OnCampusResidences = []Property{
	{ID: "cmh", Name: "Claudette Millar Hall (CMH)", Type: "Traditional", Address: "Claudette Millar Hall, Waterloo, ON", Category: CategoryOnCampus},
	{ID: "rev", Name: "Ron Eydt Village (REV)", Type: "Traditional", Address: "Ron Eydt Village, Waterloo, ON", Category: CategoryOnCampus},
	{ID: "v1", Name: "Village 1 (V1)", Type: "Traditional", Address: "Village 1, Waterloo, ON", Category: CategoryOnCampus},
	{ID: "mkv", Name: "Mackenzie King Village (MKV)", Type: "Suite Style", Address: "Mackenzie King Village, Waterloo, ON", Category: CategoryOnCampus},
	{ID: "uwp", Name: "UW Place (UWP)", Type: "Suite Style", Address: "UW Place, Waterloo, ON", Category: CategoryOnCampus},
	{ID: "clv", Name: "Columbia Lake Village (CLV)", Type: "Townhouse", Address: "Columbia Lake Village, Waterloo, ON", Category: CategoryOnCampus},
	{ID: "mh", Name: "Minota Hagey (MH)", Type: "Traditional", Address: "Minota Hagey Residence, Waterloo, ON", Category: CategoryOnCampus},
}

// PopularOffCampus is the fixed catalog of popular student rentals.
var PopularOffCampus = []Property{
	{ID: "icon-330-phillip", Name: "ICON (330 Phillip St)", Type: "Apartment", Address: "330 Phillip St, Waterloo, ON", Category: CategoryOffCampus},
	{ID: "rezone-blair", Name: "RezOne: Blair House", Type: "Apartment", Address: "256 Phillip St, Waterloo, ON", Category: CategoryOffCampus},
	{ID: "rezone-fergus", Name: "RezOne: Fergus House", Type: "Apartment", Address: "254 Phillip St, Waterloo, ON", Category: CategoryOffCampus},
	{ID: "sage-condos", Name: "Sage Condos", Type: "Condo", Address: "Sage Condos Waterloo", Category: CategoryOffCampus},
	{ID: "wcri", Name: "WCRI", Type: "Co-op Housing", Address: "268 Phillip St, Waterloo, ON", Category: CategoryOffCampus},
	{ID: "accommod8u", Name: "Accommod8u (General)", Type: "Rental Agency", Address: "Waterloo, ON", Category: CategoryOffCampus},
}

// Faculties are offered as walk-distance context in the UI.
var Faculties = []string{"Engineering", "Math", "Science", "Arts", "Environment", "Health"}

// Slugify derives a stable property id from free search text: lowercased,
// every non-alphanumeric character replaced with a hyphen, one for one.
// Runs are deliberately not collapsed so existing review collections keep
// their ids. "203 Lester St" -> "203-lester-st".
func Slugify(text string) string {
	text = strings.ToLower(text)
	var b strings.Builder
	for _, r := range text {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// PropertyByID looks up a catalog property in either list.
func PropertyByID(id string) (Property, bool) {
	for _, p := range OnCampusResidences {
		if p.ID == id {
			return p, true
		}
	}
	for _, p := range PopularOffCampus {
		if p.ID == id {
			return p, true
		}
	}
	return Property{}, false
}

// SynthesizeProperty builds a transient property from free search text.
// The id is the slug of the text, so repeated searches for the same address
// converge on the same review collection.
func SynthesizeProperty(searchText string) Property {
	name := strings.TrimSpace(searchText)
	return Property{
		ID:       Slugify(searchText),
		Name:     name,
		Type:     "Custom Address",
		Address:  fmt.Sprintf("%s, Waterloo, ON", name),
		Category: CategoryOffCampus,
	}
}
