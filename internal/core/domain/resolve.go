package domain

import (
	"sort"
	"strings"
)

// Fallback chains for derived MergedItem fields. Each resolver walks its tiers
// in order and returns the first non-empty value.

// ResolveStartDate: additionalData.startDatetime, then segment.startDate, then plan.startDate.
func ResolveStartDate(seg Segment, plan *Plan) string {
	var tiers []*string
	if seg.AdditionalData != nil {
		tiers = append(tiers, seg.AdditionalData.StartDatetime)
	}
	tiers = append(tiers, seg.StartDate)
	if plan != nil {
		tiers = append(tiers, plan.StartDate)
	}
	return firstNonEmpty(tiers...)
}

// ResolveEndDate: additionalData.endDatetime, then segment.endDate, then plan.endDate.
func ResolveEndDate(seg Segment, plan *Plan) string {
	var tiers []*string
	if seg.AdditionalData != nil {
		tiers = append(tiers, seg.AdditionalData.EndDatetime)
	}
	tiers = append(tiers, seg.EndDate)
	if plan != nil {
		tiers = append(tiers, plan.EndDate)
	}
	return firstNonEmpty(tiers...)
}

// ResolveCity: segment.city, then plan.city, then the trip's city name.
func ResolveCity(seg Segment, plan *Plan, tripCity string) string {
	if c := strings.TrimSpace(seg.City); c != "" {
		return c
	}
	if plan != nil {
		if c := strings.TrimSpace(plan.City); c != "" {
			return c
		}
	}
	return strings.TrimSpace(tripCity)
}

// ResolvePoi returns the POI shown for a manual_poi segment: its own singlePoi,
// else the first step (lowest order) of the matched plan.
func ResolvePoi(seg Segment, plan *Plan) *Poi {
	if seg.Type != SegmentManualPoi {
		return nil
	}
	if seg.SinglePoi != nil {
		p := *seg.SinglePoi
		return &p
	}
	if plan == nil || len(plan.Steps) == 0 {
		return nil
	}
	steps := OrderedSteps(*plan)
	p := steps[0].Poi
	return &p
}

// ResolveCoordinate returns the map coordinate of a single-slot item:
// segment.coordinate, then additionalData.coordinate, then the resolved POI.
func ResolveCoordinate(seg Segment, poi *Poi) *GeoPoint {
	if seg.Coordinate != nil {
		c := *seg.Coordinate
		return &c
	}
	if seg.AdditionalData != nil && seg.AdditionalData.Coordinate != nil {
		c := *seg.AdditionalData.Coordinate
		return &c
	}
	if poi != nil {
		c := poi.Coordinate
		return &c
	}
	return nil
}

// ResolveActivityID returns the booked activity id, if any.
func ResolveActivityID(seg Segment) string {
	if !seg.IsActivity() || seg.AdditionalData == nil {
		return ""
	}
	return strings.TrimSpace(seg.AdditionalData.ActivityID)
}

// OrderedSteps returns a copy of the plan's steps sorted by Order, keeping
// server order for ties.
func OrderedSteps(p Plan) []Step {
	steps := make([]Step, len(p.Steps))
	copy(steps, p.Steps)
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Order < steps[j].Order
	})
	return steps
}

func firstNonEmpty(values ...*string) string {
	for _, v := range values {
		if v == nil {
			continue
		}
		if s := strings.TrimSpace(*v); s != "" {
			return s
		}
	}
	return ""
}
