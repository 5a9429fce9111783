package usecases_test

import (
	"github.com/samirrijal/tripline/internal/core/domain"
)

func str(s string) *string { return &s }

var bilbao = &domain.City{ID: "bio", Name: "Bilbao", Center: domain.GeoPoint{Lat: 43.263, Lon: -2.935}}

func booked(activityID, start string, at domain.GeoPoint) domain.Segment {
	return domain.Segment{
		Type:      domain.SegmentBookedActivity,
		Title:     "Booked " + activityID,
		StartDate: str(start),
		AdditionalData: &domain.ActivityReference{
			ActivityID: activityID,
			Coordinate: &at,
		},
	}
}

func itinerary(title string, dayIDs ...int) domain.Segment {
	return domain.Segment{Type: domain.SegmentItinerary, Title: title, DayIDs: dayIDs}
}

func plan(id, start string, steps ...domain.Step) domain.Plan {
	return domain.Plan{ID: id, StartDate: str(start), Steps: steps}
}

func step(order int, name string, lat, lon float64) domain.Step {
	return domain.Step{
		ID:    name,
		Order: order,
		Poi:   domain.Poi{ID: name, Name: name, Coordinate: domain.GeoPoint{Lat: lat, Lon: lon}},
	}
}

func timeline(hash string, segs []domain.Segment, plans ...domain.Plan) *domain.Timeline {
	return &domain.Timeline{
		TripHash:    hash,
		City:        bilbao,
		TripProfile: domain.TripProfile{TripHash: hash, CityID: bilbao.ID, Adults: 2, Segments: segs},
		Plans:       plans,
	}
}
