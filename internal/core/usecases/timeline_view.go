package usecases

import (
	"fmt"
	"sync"

	"github.com/samirrijal/tripline/internal/core/domain"
)

// TimelineView is the read model built from one Timeline snapshot. Everything
// except the selected-day cursor is computed once at construction.
type TimelineView struct {
	tripHash string
	result   MergeResult
	groups   [][]domain.CityGroup

	mu       sync.RWMutex
	selected int
}

// NewTimelineView merges t and groups every day of its date range.
func NewTimelineView(t *domain.Timeline) *TimelineView {
	v := &TimelineView{result: MergeTimeline(t)}
	if t != nil {
		v.tripHash = t.TripHash
	}
	v.groups = make([][]domain.CityGroup, len(v.result.Days))
	for i, day := range v.result.Days {
		v.groups[i] = groupDay(v.result.Items, day)
	}
	return v
}

// TripHash returns the trip the view was built for.
func (v *TimelineView) TripHash() string { return v.tripHash }

// NumberOfDays returns the length of the inclusive date range.
func (v *TimelineView) NumberOfDays() int { return len(v.result.Days) }

// Days returns the inclusive yyyy-MM-dd date range.
func (v *TimelineView) Days() []string {
	return append([]string(nil), v.result.Days...)
}

// Date returns the yyyy-MM-dd date of a day index.
func (v *TimelineView) Date(day int) (string, error) {
	if err := v.checkDay(day); err != nil {
		return "", err
	}
	return v.result.Days[day], nil
}

// SelectDay moves the cursor to a day index.
func (v *TimelineView) SelectDay(day int) error {
	if err := v.checkDay(day); err != nil {
		return err
	}
	v.mu.Lock()
	v.selected = day
	v.mu.Unlock()
	return nil
}

// SelectedDay returns the cursor position.
func (v *TimelineView) SelectedDay() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.selected
}

// Items returns all placeable merged items in profile order.
func (v *TimelineView) Items() []domain.MergedItem {
	return append([]domain.MergedItem(nil), v.result.Items...)
}

// Unplaceable returns the items that have no resolvable date.
func (v *TimelineView) Unplaceable() []domain.MergedItem {
	return append([]domain.MergedItem(nil), v.result.Unplaceable...)
}

// CityGroups returns the ordered city groups of a day. A day without items
// yields an empty slice, not an error.
func (v *TimelineView) CityGroups(day int) ([]domain.CityGroup, error) {
	if err := v.checkDay(day); err != nil {
		return nil, err
	}
	src := v.groups[day]
	out := make([]domain.CityGroup, len(src))
	for i, g := range src {
		out[i] = domain.CityGroup{City: g.City, Items: append([]domain.OrderedItem(nil), g.Items...)}
	}
	return out, nil
}

// NumberOfSections is the number of city groups on a day.
func (v *TimelineView) NumberOfSections(day int) (int, error) {
	if err := v.checkDay(day); err != nil {
		return 0, err
	}
	return len(v.groups[day]), nil
}

// RowsInSection is the number of items in one city group.
func (v *TimelineView) RowsInSection(day, section int) (int, error) {
	g, err := v.group(day, section)
	if err != nil {
		return 0, err
	}
	return len(g.Items), nil
}

// RowsForDay is the number of items across all city groups of a day.
func (v *TimelineView) RowsForDay(day int) (int, error) {
	if err := v.checkDay(day); err != nil {
		return 0, err
	}
	n := 0
	for _, g := range v.groups[day] {
		n += len(g.Items)
	}
	return n, nil
}

// CellDescriptor describes one list row.
func (v *TimelineView) CellDescriptor(day, section, row int) (domain.CellDescriptor, error) {
	g, err := v.group(day, section)
	if err != nil {
		return domain.CellDescriptor{}, err
	}
	if row < 0 || row >= len(g.Items) {
		return domain.CellDescriptor{}, fmt.Errorf("day %d section %d row %d: %w", day, section, row, domain.ErrRowOutOfRange)
	}
	return describe(g.Items[row]), nil
}

// CityHeaders returns one header per city group of a day.
func (v *TimelineView) CityHeaders(day int) ([]domain.CityHeader, error) {
	if err := v.checkDay(day); err != nil {
		return nil, err
	}
	headers := make([]domain.CityHeader, 0, len(v.groups[day]))
	for _, g := range v.groups[day] {
		h := domain.CityHeader{City: g.City, ItemCount: len(g.Items)}
		if n := len(g.Items); n > 0 {
			h.FirstOrder = g.Items[0].Order
			h.LastOrder = g.Items[n-1].LastOrder()
		}
		headers = append(headers, h)
	}
	return headers, nil
}

// OrderedMapPoints lists the day's markers in list order. Itineraries
// contribute one marker per step; items without a coordinate still consume
// their order number.
func (v *TimelineView) OrderedMapPoints(day int) ([]domain.MapPoint, error) {
	if err := v.checkDay(day); err != nil {
		return nil, err
	}
	var points []domain.MapPoint
	for _, g := range v.groups[day] {
		for _, it := range g.Items {
			points = append(points, mapPoints(it)...)
		}
	}
	return points, nil
}

func (v *TimelineView) checkDay(day int) error {
	if day < 0 || day >= len(v.result.Days) {
		return fmt.Errorf("day %d of %d: %w", day, len(v.result.Days), domain.ErrDayOutOfRange)
	}
	return nil
}

func (v *TimelineView) group(day, section int) (domain.CityGroup, error) {
	if err := v.checkDay(day); err != nil {
		return domain.CityGroup{}, err
	}
	if section < 0 || section >= len(v.groups[day]) {
		return domain.CityGroup{}, fmt.Errorf("day %d section %d: %w", day, section, domain.ErrRowOutOfRange)
	}
	return v.groups[day][section], nil
}

func describe(it domain.OrderedItem) domain.CellDescriptor {
	d := domain.CellDescriptor{
		Type:         it.Segment.Type,
		Title:        itemTitle(it.MergedItem),
		City:         it.City,
		StartDate:    it.StartDate,
		EndDate:      it.EndDate,
		Order:        it.Order,
		OrderSpan:    it.OrderSpan,
		SegmentIndex: it.SegmentIndex,
		StepCount:    it.StepCount(),
		Poi:          it.Poi,
		ActivityID:   domain.ResolveActivityID(it.Segment),
	}
	if it.Segment.Type == domain.SegmentItinerary && it.Plan != nil {
		d.Steps = domain.OrderedSteps(*it.Plan)
	}
	return d
}

func mapPoints(it domain.OrderedItem) []domain.MapPoint {
	if it.Segment.Type == domain.SegmentItinerary {
		if it.Plan == nil || len(it.Plan.Steps) == 0 {
			return singlePoint(it)
		}
		steps := domain.OrderedSteps(*it.Plan)
		points := make([]domain.MapPoint, 0, len(steps))
		for k, s := range steps {
			points = append(points, domain.MapPoint{
				Order:        it.Order + k,
				City:         it.City,
				Title:        s.Poi.Name,
				Type:         it.Segment.Type,
				SegmentIndex: it.SegmentIndex,
				Coordinate:   s.Poi.Coordinate,
			})
		}
		return points
	}
	return singlePoint(it)
}

func singlePoint(it domain.OrderedItem) []domain.MapPoint {
	c := domain.ResolveCoordinate(it.Segment, it.Poi)
	if c == nil {
		return nil
	}
	return []domain.MapPoint{{
		Order:        it.Order,
		City:         it.City,
		Title:        itemTitle(it.MergedItem),
		Type:         it.Segment.Type,
		SegmentIndex: it.SegmentIndex,
		Coordinate:   *c,
	}}
}

func itemTitle(it domain.MergedItem) string {
	if it.Segment.Title != "" {
		return it.Segment.Title
	}
	if it.Segment.AdditionalData != nil && it.Segment.AdditionalData.Title != "" {
		return it.Segment.AdditionalData.Title
	}
	if it.Poi != nil {
		return it.Poi.Name
	}
	return ""
}
