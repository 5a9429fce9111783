package usecases_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/samirrijal/tripline/internal/core/domain"
	"github.com/samirrijal/tripline/internal/core/usecases"
)

func TestMergeTimeline_ItineraryInheritsPlanStart(t *testing.T) {
	tl := timeline("trip",
		[]domain.Segment{
			booked("act-1", "2025-01-10 09:00", domain.GeoPoint{Lat: 43.26, Lon: -2.93}),
			itinerary("Recommendations", 5),
		},
		plan("5", "2025-01-10 08:00",
			step(1, "s1", 43.25, -2.92),
			step(2, "s2", 43.24, -2.91),
		),
	)

	res := usecases.MergeTimeline(tl)
	if len(res.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(res.Items))
	}
	if got := res.Items[1].StartDate; got != "2025-01-10 08:00" {
		t.Errorf("itinerary start: got %q, want 2025-01-10 08:00", got)
	}
	if !reflect.DeepEqual(res.Days, []string{"2025-01-10"}) {
		t.Errorf("days: got %v", res.Days)
	}

	view := usecases.NewTimelineView(tl)
	groups, err := view.CityGroups(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 1 || len(groups[0].Items) != 2 {
		t.Fatalf("expected one group with 2 items, got %+v", groups)
	}
	first, second := groups[0].Items[0], groups[0].Items[1]
	if first.Segment.Type != domain.SegmentItinerary || first.Order != 1 || first.OrderSpan != 2 {
		t.Errorf("first item: got type=%s order=%d span=%d", first.Segment.Type, first.Order, first.OrderSpan)
	}
	if second.Segment.Type != domain.SegmentBookedActivity || second.Order != 3 {
		t.Errorf("second item: got type=%s order=%d", second.Segment.Type, second.Order)
	}

	points, err := view.OrderedMapPoints(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var orders []int
	for _, p := range points {
		orders = append(orders, p.Order)
	}
	if !reflect.DeepEqual(orders, []int{1, 2, 3}) {
		t.Errorf("map orders: got %v, want [1 2 3]", orders)
	}
	if points[0].Title != "s1" || points[1].Title != "s2" {
		t.Errorf("map titles: got %q, %q", points[0].Title, points[1].Title)
	}
}

func TestMergeTimeline_DayRangeHasNoGaps(t *testing.T) {
	at := domain.GeoPoint{Lat: 43.26, Lon: -2.93}
	tl := timeline("trip", []domain.Segment{
		booked("a", "2025-01-13 10:00", at),
		booked("b", "2025-01-10 10:00", at),
	})

	view := usecases.NewTimelineView(tl)
	want := []string{"2025-01-10", "2025-01-11", "2025-01-12", "2025-01-13"}
	if !reflect.DeepEqual(view.Days(), want) {
		t.Fatalf("days: got %v, want %v", view.Days(), want)
	}
	for day, rows := range []int{1, 0, 0, 1} {
		got, err := view.RowsForDay(day)
		if err != nil {
			t.Fatalf("day %d: unexpected error: %v", day, err)
		}
		if got != rows {
			t.Errorf("day %d: got %d rows, want %d", day, got, rows)
		}
	}
	if n, _ := view.NumberOfSections(1); n != 0 {
		t.Errorf("empty day: got %d sections", n)
	}
}

func TestMergeTimeline_DayRangeAcrossMonthEnd(t *testing.T) {
	at := domain.GeoPoint{Lat: 43.26, Lon: -2.93}
	tl := timeline("trip", []domain.Segment{
		booked("a", "2024-02-28 10:00", at),
		booked("b", "2024-03-01 10:00:00", at),
	})

	res := usecases.MergeTimeline(tl)
	want := []string{"2024-02-28", "2024-02-29", "2024-03-01"}
	if !reflect.DeepEqual(res.Days, want) {
		t.Errorf("days: got %v, want %v", res.Days, want)
	}
}

func TestMergeTimeline_FiltersPlaceholdersAndUnmatched(t *testing.T) {
	at := domain.GeoPoint{Lat: 43.26, Lon: -2.93}
	placeholder := booked("p", "2025-01-10 10:00", at)
	placeholder.Title = domain.PlaceholderTitle
	placeholder.Unavailable = true

	undated := domain.Segment{
		Type:           domain.SegmentReservedActivity,
		Title:          "Undated",
		AdditionalData: &domain.ActivityReference{ActivityID: "u"},
	}

	tl := timeline("trip",
		[]domain.Segment{
			placeholder,
			itinerary("Orphan", 99),
			undated,
			booked("kept", "2025-01-10 10:00", at),
		},
		plan("5", "2025-01-10 08:00"),
	)

	res := usecases.MergeTimeline(tl)
	if len(res.Items) != 1 || res.Items[0].SegmentIndex != 3 {
		t.Fatalf("expected only segment 3 to be placed, got %+v", res.Items)
	}
	if len(res.Unplaceable) != 1 || res.Unplaceable[0].SegmentIndex != 2 {
		t.Fatalf("expected segment 2 to be unplaceable, got %+v", res.Unplaceable)
	}
	if !reflect.DeepEqual(res.Days, []string{"2025-01-10"}) {
		t.Errorf("unplaceable item must not widen the range: got %v", res.Days)
	}
}

func TestMergeTimeline_EmptyTimeline(t *testing.T) {
	view := usecases.NewTimelineView(timeline("trip", nil))
	if view.NumberOfDays() != 0 {
		t.Errorf("expected 0 days, got %d", view.NumberOfDays())
	}
	if _, err := view.CityGroups(0); !errors.Is(err, domain.ErrDayOutOfRange) {
		t.Errorf("expected ErrDayOutOfRange, got %v", err)
	}

	if res := usecases.MergeTimeline(nil); len(res.Days) != 0 || len(res.Items) != 0 {
		t.Errorf("nil timeline: got %+v", res)
	}
}

func TestTimelineView_CityGroupOrdering(t *testing.T) {
	at := domain.GeoPoint{Lat: 43.26, Lon: -2.93}
	inCity := func(s domain.Segment, city string) domain.Segment {
		s.City = city
		return s
	}
	tl := timeline("trip",
		[]domain.Segment{
			inCity(booked("a", "2025-01-10 18:00", at), "San Sebastian"),
			inCity(booked("b", "2025-01-10 09:00", at), "Madrid"),
			inCity(booked("c", "2025-01-10 12:00", at), "San Sebastian"),
			inCity(itinerary("Recommendations", 1, 2), "Barcelona"),
			inCity(booked("d", "2025-01-10 07:00", at), "Barcelona"),
		},
		plan("2", "2025-01-10 10:00",
			step(2, "y", 41.39, 2.17),
			step(1, "x", 41.38, 2.16),
			step(3, "z", 41.40, 2.18),
		),
	)

	view := usecases.NewTimelineView(tl)
	groups, err := view.CityGroups(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var cities []string
	for _, g := range groups {
		cities = append(cities, g.City)
	}
	if want := []string{"San Sebastian", "Barcelona", "Madrid"}; !reflect.DeepEqual(cities, want) {
		t.Fatalf("city order: got %v, want %v", cities, want)
	}

	wantSlots := map[string]int{"San Sebastian": 2, "Barcelona": 4, "Madrid": 1}
	for _, g := range groups {
		next := 1
		for _, it := range g.Items {
			if it.Order != next {
				t.Errorf("%s: got order %d, want %d", g.City, it.Order, next)
			}
			next = it.LastOrder() + 1
		}
		if got := next - 1; got != wantSlots[g.City] {
			t.Errorf("%s: used %d slots, want %d", g.City, got, wantSlots[g.City])
		}
	}

	ss := groups[0].Items
	if ss[0].SegmentIndex != 2 || ss[1].SegmentIndex != 0 {
		t.Errorf("San Sebastian must sort by start time: got indexes %d, %d", ss[0].SegmentIndex, ss[1].SegmentIndex)
	}

	headers, err := view.CityHeaders(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h := headers[1]; h.City != "Barcelona" || h.ItemCount != 2 || h.FirstOrder != 1 || h.LastOrder != 4 {
		t.Errorf("Barcelona header: got %+v", h)
	}

	cell, err := view.CellDescriptor(0, 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cell.Type != domain.SegmentItinerary || cell.Order != 2 || cell.OrderSpan != 3 || cell.SegmentIndex != 3 {
		t.Errorf("itinerary cell: got %+v", cell)
	}
	if len(cell.Steps) != 3 || cell.Steps[0].ID != "x" {
		t.Errorf("steps must follow step order: got %+v", cell.Steps)
	}
	if _, err := view.CellDescriptor(0, 1, 2); !errors.Is(err, domain.ErrRowOutOfRange) {
		t.Errorf("expected ErrRowOutOfRange, got %v", err)
	}
	if _, err := view.CellDescriptor(0, 3, 0); !errors.Is(err, domain.ErrRowOutOfRange) {
		t.Errorf("expected ErrRowOutOfRange for section, got %v", err)
	}
}

func TestTimelineView_UnpaddedStartsOrderChronologically(t *testing.T) {
	at := domain.GeoPoint{Lat: 43.26, Lon: -2.93}
	tl := timeline("trip", []domain.Segment{
		booked("late", "2025-01-10 10:00", at),
		booked("early", "2025-01-10 9:00", at),
	})

	groups, err := usecases.NewTimelineView(tl).CityGroups(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items := groups[0].Items
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].SegmentIndex != 1 || items[0].Order != 1 {
		t.Errorf("9:00 item must come first with order 1, got index %d order %d", items[0].SegmentIndex, items[0].Order)
	}
	if items[1].SegmentIndex != 0 || items[1].Order != 2 {
		t.Errorf("10:00 item must come second, got index %d order %d", items[1].SegmentIndex, items[1].Order)
	}
}

func TestTimelineView_MergeIsIdempotent(t *testing.T) {
	tl := timeline("trip",
		[]domain.Segment{
			booked("act-1", "2025-01-10 09:00", domain.GeoPoint{Lat: 43.26, Lon: -2.93}),
			itinerary("Recommendations", 5),
			booked("act-2", "2025-01-11 09:00", domain.GeoPoint{Lat: 43.27, Lon: -2.94}),
		},
		plan("5", "2025-01-10 08:00", step(1, "s1", 43.25, -2.92)),
	)

	a, b := usecases.NewTimelineView(tl), usecases.NewTimelineView(tl)
	if !reflect.DeepEqual(a.Days(), b.Days()) {
		t.Fatalf("days differ: %v vs %v", a.Days(), b.Days())
	}
	for day := range a.Days() {
		ga, _ := a.CityGroups(day)
		gb, _ := b.CityGroups(day)
		if !reflect.DeepEqual(ga, gb) {
			t.Errorf("day %d groups differ", day)
		}
		pa, _ := a.OrderedMapPoints(day)
		pb, _ := b.OrderedMapPoints(day)
		if !reflect.DeepEqual(pa, pb) {
			t.Errorf("day %d map points differ", day)
		}
	}
}

func TestTimelineView_SelectDay(t *testing.T) {
	at := domain.GeoPoint{Lat: 43.26, Lon: -2.93}
	view := usecases.NewTimelineView(timeline("trip", []domain.Segment{
		booked("a", "2025-01-10 10:00", at),
		booked("b", "2025-01-11 10:00", at),
	}))

	if err := view.SelectDay(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.SelectedDay() != 1 {
		t.Errorf("got selected day %d", view.SelectedDay())
	}
	if err := view.SelectDay(2); !errors.Is(err, domain.ErrDayOutOfRange) {
		t.Errorf("expected ErrDayOutOfRange, got %v", err)
	}
	if view.SelectedDay() != 1 {
		t.Errorf("failed select must not move the cursor")
	}
	if d, _ := view.Date(1); d != "2025-01-11" {
		t.Errorf("got date %q", d)
	}
}
