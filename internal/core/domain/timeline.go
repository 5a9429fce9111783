package domain

import (
	"strconv"
	"strings"
)

// SegmentType tags the variant carried by a Segment.
type SegmentType string

const (
	SegmentBookedActivity   SegmentType = "booked_activity"
	SegmentReservedActivity SegmentType = "reserved_activity"
	SegmentManualPoi        SegmentType = "manual_poi"
	SegmentItinerary        SegmentType = "itinerary"
)

// PlaceholderTitle marks, together with Unavailable, a segment the server keeps
// as a slot reservation. Placeholders are never shown.
const PlaceholderTitle = "Placeholder"

// Timeline is the root aggregate for one trip. It is replaced wholesale on
// every successful fetch.
type Timeline struct {
	TripHash       string         `json:"trip_hash"`
	City           *City          `json:"city,omitempty"`
	TripProfile    TripProfile    `json:"trip_profile"`
	Plans          []Plan         `json:"plans"`
	FavouriteItems []FavoriteItem `json:"favourite_items,omitempty"`
}

// City is the trip's destination city.
type City struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Center GeoPoint `json:"center"`
}

// TripProfile holds the user-authored segments. Its segment order is the only
// valid addressing scheme for writes.
type TripProfile struct {
	TripHash string    `json:"trip_hash,omitempty"`
	CityID   string    `json:"city_id"`
	Adults   int       `json:"adults"`
	Children int       `json:"children"`
	Segments []Segment `json:"segments"`
}

// Segment is one user-level itinerary entry. Type selects which of the variant
// payloads is meaningful.
type Segment struct {
	Type          SegmentType `json:"type"`
	Title         string      `json:"title"`
	StartDate     *string     `json:"start_date,omitempty"` // yyyy-MM-dd HH:mm[:ss]
	EndDate       *string     `json:"end_date,omitempty"`
	City          string      `json:"city,omitempty"`
	CityID        string      `json:"city_id,omitempty"`
	Coordinate    *GeoPoint   `json:"coordinate,omitempty"`
	Accommodation *string     `json:"accommodation,omitempty"`
	Unavailable   bool        `json:"unavailable,omitempty"`

	// booked_activity / reserved_activity
	AdditionalData *ActivityReference `json:"additional_data,omitempty"`

	// manual_poi
	SinglePoi *Poi `json:"single_poi,omitempty"`

	// itinerary
	DayIDs             []int    `json:"day_ids,omitempty"`
	Category           string   `json:"category,omitempty"`
	IncludeActivityIDs []string `json:"include_activity_ids,omitempty"`
	ExcludeActivityIDs []string `json:"exclude_activity_ids,omitempty"`
}

// IsPlaceholder reports whether the segment is the placeholder sentinel.
func (s Segment) IsPlaceholder() bool {
	return s.Unavailable && s.Title == PlaceholderTitle
}

// IsActivity reports whether the segment references an externally booked activity.
func (s Segment) IsActivity() bool {
	return s.Type == SegmentBookedActivity || s.Type == SegmentReservedActivity
}

// UsesPlan reports whether the segment resolves its content from a generated Plan.
func (s Segment) UsesPlan() bool {
	return s.Type == SegmentItinerary || s.Type == SegmentManualPoi
}

// MatchesPlan reports whether the plan's numeric id is one of the segment's day ids.
func (s Segment) MatchesPlan(p Plan) bool {
	id, ok := p.PlanID()
	if !ok {
		return false
	}
	for _, d := range s.DayIDs {
		if d == id {
			return true
		}
	}
	return false
}

// ActivityReference points at an activity booked outside the planner. Its
// start and end are authoritative.
type ActivityReference struct {
	ActivityID    string    `json:"activity_id"`
	BookingID     string    `json:"booking_id,omitempty"`
	Title         string    `json:"title,omitempty"`
	StartDatetime *string   `json:"start_datetime,omitempty"`
	EndDatetime   *string   `json:"end_datetime,omitempty"`
	Coordinate    *GeoPoint `json:"coordinate,omitempty"`
}

// Poi is a point of interest.
type Poi struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Category   string   `json:"category,omitempty"`
	Coordinate GeoPoint `json:"coordinate"`
}

// Plan is a day container generated by the recommendation engine.
type Plan struct {
	ID        string  `json:"id"`
	City      string  `json:"city,omitempty"`
	StartDate *string `json:"start_date,omitempty"`
	EndDate   *string `json:"end_date,omitempty"`
	Steps     []Step  `json:"steps"`
}

// PlanID parses the plan id as the integer used for day-id matching.
func (p Plan) PlanID() (int, bool) {
	id, err := strconv.Atoi(strings.TrimSpace(p.ID))
	if err != nil {
		return 0, false
	}
	return id, true
}

// Step is one recommended stop inside a Plan.
type Step struct {
	ID             string  `json:"id"`
	Poi            Poi     `json:"poi"`
	StartDateTimes *string `json:"start_date_times,omitempty"`
	EndDateTimes   *string `json:"end_date_times,omitempty"`
	Order          int     `json:"order"`
}

// FavoriteItem is a saved-for-later activity. Favourites are not returned by
// the timeline fetch and are re-attached locally.
type FavoriteItem struct {
	ID         string  `json:"id"`
	Title      string  `json:"title,omitempty"`
	ActivityID *string `json:"activity_id,omitempty"`
}

// SegmentProfile is the payload of a create or edit segment call. A nil
// SegmentIndex creates a new segment.
type SegmentProfile struct {
	TripHash     string  `json:"trip_hash"`
	SegmentIndex *int    `json:"segment_index,omitempty"`
	CityID       string  `json:"city_id"`
	Adults       int     `json:"adults"`
	Children     int     `json:"children"`
	Segment      Segment `json:"segment"`
}

// GenerationStatus is one observation of the backend generation state.
type GenerationStatus struct {
	Generated bool  `json:"generated"`
	Err       error `json:"-"`
}
