package usecases

import (
	"sort"

	"github.com/samirrijal/tripline/internal/core/domain"
)

// MergeResult is the date-indexed output of MergeTimeline.
type MergeResult struct {
	// Items holds every placeable item in profile order.
	Items []domain.MergedItem
	// Unplaceable holds items whose start date resolves to nothing. They are
	// kept out of the date range and all day buckets.
	Unplaceable []domain.MergedItem
	// Days is the inclusive yyyy-MM-dd range spanned by Items.
	Days []string
}

// MergeTimeline pairs every displayable segment with its plan and resolves its
// dates, city and POI. It does not mutate t.
func MergeTimeline(t *domain.Timeline) MergeResult {
	var res MergeResult
	if t == nil {
		return res
	}

	tripCity := ""
	if t.City != nil {
		tripCity = t.City.Name
	}

	for i, seg := range t.TripProfile.Segments {
		if seg.IsPlaceholder() {
			continue
		}

		var plan *domain.Plan
		if seg.UsesPlan() {
			plan = matchPlan(seg, t.Plans)
			if plan == nil {
				continue
			}
		}

		item := domain.MergedItem{
			Segment:      seg,
			Plan:         plan,
			SegmentIndex: i,
			StartDate:    domain.ResolveStartDate(seg, plan),
			EndDate:      domain.ResolveEndDate(seg, plan),
			City:         domain.ResolveCity(seg, plan, tripCity),
			Poi:          domain.ResolvePoi(seg, plan),
		}
		if !item.Placeable() {
			res.Unplaceable = append(res.Unplaceable, item)
			continue
		}
		res.Items = append(res.Items, item)
	}

	res.Days = dateRange(res.Items)
	return res
}

// matchPlan returns a copy of the first plan whose id is one of the segment's
// day ids.
func matchPlan(seg domain.Segment, plans []domain.Plan) *domain.Plan {
	for _, p := range plans {
		if seg.MatchesPlan(p) {
			plan := p
			return &plan
		}
	}
	return nil
}

// dateRange compares yyyy-MM-dd prefixes as strings for the bounds, then fills
// every calendar day in between.
func dateRange(items []domain.MergedItem) []string {
	var first, last string
	for _, it := range items {
		d := it.Day()
		if first == "" || d < first {
			first = d
		}
		if last == "" || d > last {
			last = d
		}
	}
	if first == "" {
		return nil
	}
	return domain.DayRange(first, last)
}

// groupDay builds the ordered city groups for one day. items must be in
// profile order.
func groupDay(items []domain.MergedItem, day string) []domain.CityGroup {
	var (
		order   []string
		byCity  = make(map[string][]domain.MergedItem)
		primary string
	)
	for _, it := range items {
		if it.Day() != day {
			continue
		}
		if len(order) == 0 {
			primary = it.City
		}
		if _, seen := byCity[it.City]; !seen {
			order = append(order, it.City)
		}
		byCity[it.City] = append(byCity[it.City], it)
	}
	if len(order) == 0 {
		return nil
	}

	rest := make([]string, 0, len(order)-1)
	for _, c := range order {
		if c != primary {
			rest = append(rest, c)
		}
	}
	sort.Strings(rest)
	cities := append([]string{primary}, rest...)

	groups := make([]domain.CityGroup, 0, len(cities))
	for _, city := range cities {
		members := byCity[city]
		sort.SliceStable(members, func(i, j int) bool {
			return domain.SortKey(members[i].StartDate) < domain.SortKey(members[j].StartDate)
		})
		groups = append(groups, domain.CityGroup{City: city, Items: assignOrder(members)})
	}
	return groups
}

// assignOrder numbers a city group from 1. Itineraries take one slot per
// recommended step (at least one) so list and map numbering line up.
func assignOrder(members []domain.MergedItem) []domain.OrderedItem {
	ordered := make([]domain.OrderedItem, 0, len(members))
	next := 1
	for _, it := range members {
		span := it.OrderSlots()
		ordered = append(ordered, domain.OrderedItem{MergedItem: it, Order: next, OrderSpan: span})
		next += span
	}
	return ordered
}
