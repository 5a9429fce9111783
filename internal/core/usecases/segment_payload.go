package usecases

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/samirrijal/tripline/internal/core/domain"
)

// RecommendationsTitle is the base title of generated itinerary segments.
const RecommendationsTitle = "Recommendations"

var activityIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidActivityID reports whether id is acceptable in include/exclude lists.
func ValidActivityID(id string) bool {
	return activityIDPattern.MatchString(id)
}

// NextRecommendationsTitle returns "Recommendations" or "Recommendations N",
// one past the highest number already used by itinerary segments of the same
// city and day.
func NextRecommendationsTitle(t *domain.Timeline, cityID, cityName, date string) string {
	highest := 0
	for _, seg := range t.TripProfile.Segments {
		if seg.Type != domain.SegmentItinerary || seg.IsPlaceholder() {
			continue
		}
		if !sameCity(seg, t, cityID, cityName) {
			continue
		}
		plan := matchPlan(seg, t.Plans)
		if domain.DatePart(domain.ResolveStartDate(seg, plan)) != date {
			continue
		}
		if n, ok := recommendationsNumber(seg.Title); ok && n > highest {
			highest = n
		}
	}
	if highest == 0 {
		return RecommendationsTitle
	}
	return RecommendationsTitle + " " + strconv.Itoa(highest+1)
}

func recommendationsNumber(title string) (int, bool) {
	title = strings.TrimSpace(title)
	if title == RecommendationsTitle {
		return 1, true
	}
	rest, ok := strings.CutPrefix(title, RecommendationsTitle+" ")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func sameCity(seg domain.Segment, t *domain.Timeline, cityID, cityName string) bool {
	if seg.CityID != "" {
		return seg.CityID == cityID
	}
	tripCity := ""
	if t.City != nil {
		tripCity = t.City.Name
	}
	plan := matchPlan(seg, t.Plans)
	return cityName != "" && strings.EqualFold(domain.ResolveCity(seg, plan, tripCity), cityName)
}

// BookedActivityIDs lists the well-formed activity ids of booked and reserved
// segments, in profile order without duplicates.
func BookedActivityIDs(t *domain.Timeline) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, seg := range t.TripProfile.Segments {
		if !seg.IsActivity() || seg.AdditionalData == nil {
			continue
		}
		id := strings.TrimSpace(seg.AdditionalData.ActivityID)
		if !ValidActivityID(id) || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// FavouriteActivityIDs lists the well-formed favourite activity ids that are
// not already booked.
func FavouriteActivityIDs(favourites []domain.FavoriteItem, booked []string) []string {
	seen := make(map[string]bool, len(booked))
	for _, id := range booked {
		seen[id] = true
	}
	var ids []string
	for _, f := range favourites {
		if f.ActivityID == nil {
			continue
		}
		id := strings.TrimSpace(*f.ActivityID)
		if !ValidActivityID(id) || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
