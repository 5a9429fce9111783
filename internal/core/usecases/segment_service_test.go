package usecases_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/samirrijal/tripline/internal/core/domain"
	"github.com/samirrijal/tripline/internal/core/usecases"
)

func newSegmentService(repo *mockTimelineRepo) (*usecases.SegmentService, *usecases.TimelineService) {
	timelines := usecases.NewTimelineService(repo, &mockRouteProvider{}, nil, nil, usecases.TimelineServiceConfig{})
	poller := usecases.NewGenerationPoller(repo, usecases.PollerConfig{})
	return usecases.NewSegmentService(repo, poller, timelines, usecases.SegmentServiceConfig{}), timelines
}

func createRequest(start domain.GeoPoint) usecases.CreateSegmentRequest {
	return usecases.CreateSegmentRequest{
		TripHash:           "trip",
		CityID:             bilbao.ID,
		StartDate:          "2025-01-10 09:00",
		EndDate:            "2025-01-10 18:00",
		StartingPoint:      &start,
		StartingPointLabel: "Hotel Carlton",
		Category:           "food",
	}
}

func TestSegmentService_CreateValidation(t *testing.T) {
	repo := &mockTimelineRepo{}
	svc, _ := newSegmentService(repo)

	_, err := svc.CreateSmartSegment(context.Background(), usecases.CreateSegmentRequest{
		TripHash:  "trip",
		StartDate: "2025-01-10",
		EndDate:   "tomorrow 10:00",
	})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := []string{"city_id", "start_date", "end_date", "starting_point"}
	if !reflect.DeepEqual(ve.Fields, want) {
		t.Errorf("fields: got %v, want %v", ve.Fields, want)
	}
	if repo.fetchCount() != 0 || repo.editCount() != 0 {
		t.Errorf("validation failure must not reach the network: %d fetches, %d writes", repo.fetchCount(), repo.editCount())
	}
}

func TestSegmentService_CreateEndBeforeStart(t *testing.T) {
	svc, _ := newSegmentService(&mockTimelineRepo{})
	req := createRequest(bilbao.Center)
	req.EndDate = "2025-01-10 08:00"

	_, err := svc.CreateSmartSegment(context.Background(), req)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || !reflect.DeepEqual(ve.Fields, []string{"end_date"}) {
		t.Fatalf("expected end_date validation error, got %v", err)
	}
}

func TestSegmentService_CreateStartingPoint(t *testing.T) {
	tests := []struct {
		name          string
		start         domain.GeoPoint
		wantPlacement bool
	}{
		{"at city centre", bilbao.Center, false},
		{"50 m from centre", domain.GeoPoint{Lat: bilbao.Center.Lat + 0.00045, Lon: bilbao.Center.Lon}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockTimelineRepo{fetchTimelineFn: fixedTimeline(timeline("trip", nil))}
			svc, _ := newSegmentService(repo)

			if _, err := svc.CreateSmartSegment(context.Background(), createRequest(tt.start)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if repo.editCount() != 1 {
				t.Fatalf("expected exactly one create call, got %d", repo.editCount())
			}
			seg := repo.edits[0].Segment
			if got := seg.Coordinate != nil; got != tt.wantPlacement {
				t.Errorf("coordinate present = %v, want %v", got, tt.wantPlacement)
			}
			if got := seg.Accommodation != nil; got != tt.wantPlacement {
				t.Errorf("accommodation present = %v, want %v", got, tt.wantPlacement)
			}
		})
	}
}

func TestSegmentService_CreatePayload(t *testing.T) {
	onDay := func(s domain.Segment, start string) domain.Segment {
		s.StartDate = str(start)
		return s
	}
	tl := timeline("trip", []domain.Segment{
		onDay(itinerary("Recommendations"), "2025-01-10 08:00"),
		onDay(itinerary("Recommendations 2"), "2025-01-10 14:00"),
		onDay(itinerary("Recommendations 5"), "2025-01-11 08:00"),
		booked("act-1", "2025-01-10 12:00", ptA),
		booked("bad id!", "2025-01-10 13:00", ptA),
	})
	tl.TripProfile.Children = 1
	repo := &mockTimelineRepo{fetchTimelineFn: fixedTimeline(tl)}
	svc, timelines := newSegmentService(repo)
	timelines.SetFavourites("trip", []domain.FavoriteItem{
		{ID: "f1", ActivityID: str("act-1")},
		{ID: "f2", ActivityID: str("act-9")},
		{ID: "f3", ActivityID: str("<script>")},
		{ID: "f4"},
	})

	if _, err := svc.CreateSmartSegment(context.Background(), createRequest(bilbao.Center)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := repo.edits[0]
	if p.SegmentIndex != nil {
		t.Errorf("create must not carry a segment index")
	}
	if p.Adults != 2 || p.Children != 1 || p.CityID != "bio" {
		t.Errorf("unexpected profile header: %+v", p)
	}
	seg := p.Segment
	if seg.Type != domain.SegmentItinerary || seg.Category != "food" {
		t.Errorf("unexpected segment: %+v", seg)
	}
	if seg.Title != "Recommendations 3" {
		t.Errorf("title: got %q, want Recommendations 3", seg.Title)
	}
	if !reflect.DeepEqual(seg.IncludeActivityIDs, []string{"act-9"}) {
		t.Errorf("include: got %v", seg.IncludeActivityIDs)
	}
	if !reflect.DeepEqual(seg.ExcludeActivityIDs, []string{"act-1"}) {
		t.Errorf("exclude: got %v", seg.ExcludeActivityIDs)
	}
}

func TestNextRecommendationsTitle(t *testing.T) {
	tests := []struct {
		name   string
		titles []string
		want   string
	}{
		{"none", nil, "Recommendations"},
		{"first taken", []string{"Recommendations"}, "Recommendations 2"},
		{"gap keeps max", []string{"Recommendations", "Recommendations 4"}, "Recommendations 5"},
		{"foreign titles ignored", []string{"My day", "Recommendations x"}, "Recommendations"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var segs []domain.Segment
			for _, title := range tt.titles {
				s := itinerary(title)
				s.StartDate = str("2025-01-10 10:00")
				segs = append(segs, s)
			}
			got := usecases.NextRecommendationsTitle(timeline("trip", segs), "bio", "Bilbao", "2025-01-10")
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSegmentService_CreatePollsThenRefreshes(t *testing.T) {
	repo := &mockTimelineRepo{fetchTimelineFn: fixedTimeline(timeline("trip", nil))}
	svc, _ := newSegmentService(repo)

	session, err := svc.CreateSmartSegment(context.Background(), createRequest(bilbao.Center))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.fetchCount() != 1 {
		t.Fatalf("expected initial load only, got %d fetches", repo.fetchCount())
	}

	send(repo.stream(0), domain.GenerationStatus{Generated: true})
	if err := session.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.fetchCount() != 2 {
		t.Errorf("expected refresh after generation, got %d fetches", repo.fetchCount())
	}
}

func TestSegmentService_CreateRejected(t *testing.T) {
	repo := &mockTimelineRepo{
		fetchTimelineFn: fixedTimeline(timeline("trip", nil)),
		createOrEditFn: func(ctx context.Context, profile domain.SegmentProfile) (bool, error) {
			return false, nil
		},
	}
	svc, _ := newSegmentService(repo)

	session, err := svc.CreateSmartSegment(context.Background(), createRequest(bilbao.Center))
	var te *domain.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if session != nil {
		t.Error("no poll session on failure")
	}
}

func TestSegmentService_EditSegmentTime(t *testing.T) {
	poi := domain.Segment{
		Type:      domain.SegmentManualPoi,
		Title:     "Guggenheim",
		StartDate: str("2025-01-12 10:00"),
		EndDate:   str("2025-01-12 12:00"),
		DayIDs:    []int{7},
	}
	tl := timeline("trip",
		[]domain.Segment{
			booked("act-1", "2025-01-10 09:00", ptA),
			poi,
			itinerary("Recommendations", 5),
		},
		plan("7", "2025-01-12 08:00", step(1, "guggenheim", 43.268, -2.934)),
		plan("5", "2025-01-11 08:00", step(1, "s1", 43.25, -2.92)),
	)
	repo := &mockTimelineRepo{fetchTimelineFn: fixedTimeline(tl)}
	svc, _ := newSegmentService(repo)
	ctx := context.Background()

	t.Run("unknown index", func(t *testing.T) {
		_, err := svc.EditSegmentTime(ctx, "trip", 3, "10:00", "11:00")
		var ie *domain.IdentityError
		if !errors.As(err, &ie) || ie.Index != 3 {
			t.Fatalf("expected IdentityError, got %v", err)
		}
	})

	t.Run("bad clock", func(t *testing.T) {
		_, err := svc.EditSegmentTime(ctx, "trip", 1, "25:00", "11:00")
		var ve *domain.ValidationError
		if !errors.As(err, &ve) || !reflect.DeepEqual(ve.Fields, []string{"start_time"}) {
			t.Fatalf("expected start_time validation error, got %v", err)
		}
	})

	t.Run("booked activity", func(t *testing.T) {
		_, err := svc.EditSegmentTime(ctx, "trip", 0, "10:00", "11:00")
		var ve *domain.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	if repo.editCount() != 0 {
		t.Fatalf("guards must not write, got %d writes", repo.editCount())
	}

	t.Run("manual poi keeps date and refreshes", func(t *testing.T) {
		before := repo.fetchCount()
		session, err := svc.EditSegmentTime(ctx, "trip", 1, "15:30", "17:00")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if session != nil {
			t.Error("non-itinerary edit must not poll")
		}
		p := repo.edits[len(repo.edits)-1]
		if p.SegmentIndex == nil || *p.SegmentIndex != 1 {
			t.Fatalf("edit must address index 1, got %v", p.SegmentIndex)
		}
		if *p.Segment.StartDate != "2025-01-12 15:30" || *p.Segment.EndDate != "2025-01-12 17:00" {
			t.Errorf("got %s - %s", *p.Segment.StartDate, *p.Segment.EndDate)
		}
		if p.Segment.Title != "Guggenheim" || !reflect.DeepEqual(p.Segment.DayIDs, []int{7}) {
			t.Errorf("full segment must be resubmitted, got %+v", p.Segment)
		}
		if repo.fetchCount() != before+1 {
			t.Errorf("expected one refresh, got %d", repo.fetchCount()-before)
		}
	})

	t.Run("itinerary inherits plan date and polls", func(t *testing.T) {
		session, err := svc.EditSegmentTime(ctx, "trip", 2, "09:00", "13:00")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if session == nil {
			t.Fatal("itinerary edit must return a poll session")
		}
		p := repo.edits[len(repo.edits)-1]
		if *p.Segment.StartDate != "2025-01-11 09:00" {
			t.Errorf("got start %s", *p.Segment.StartDate)
		}
		before := repo.fetchCount()
		send(repo.stream(0), domain.GenerationStatus{Generated: true})
		if err := session.Wait(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if repo.fetchCount() != before+1 {
			t.Errorf("expected refresh after generation")
		}
	})
}

func TestSegmentService_DeleteSegment(t *testing.T) {
	tl := timeline("trip", []domain.Segment{
		booked("a", "2025-01-10 09:00", ptA),
		booked("b", "2025-01-10 10:00", ptB),
	})
	repo := &mockTimelineRepo{fetchTimelineFn: fixedTimeline(tl)}
	svc, _ := newSegmentService(repo)
	ctx := context.Background()

	var ie *domain.IdentityError
	if err := svc.DeleteSegment(ctx, "trip", -1); !errors.As(err, &ie) {
		t.Fatalf("expected IdentityError, got %v", err)
	}
	if len(repo.deletes) != 0 {
		t.Fatal("guard must not reach the network")
	}

	if err := svc.DeleteSegment(ctx, "trip", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(repo.deletes, []int{1}) {
		t.Errorf("deletes: got %v", repo.deletes)
	}
	if repo.fetchCount() != 2 {
		t.Errorf("expected load + refresh, got %d fetches", repo.fetchCount())
	}

	repo.deleteSegmentFn = func(ctx context.Context, tripHash string, index int) (bool, error) {
		return false, errors.New("500")
	}
	var te *domain.TransportError
	if err := svc.DeleteSegment(ctx, "trip", 0); !errors.As(err, &te) {
		t.Errorf("expected TransportError, got %v", err)
	}
}

func TestSegmentService_UnpaddedClocks(t *testing.T) {
	poi := domain.Segment{
		Type:      domain.SegmentManualPoi,
		Title:     "Guggenheim",
		StartDate: str("2025-01-12 10:00"),
		EndDate:   str("2025-01-12 12:00"),
	}
	ctx := context.Background()

	edits := []struct {
		start, end         string
		wantStart, wantEnd string
	}{
		{"9:00", "10:00", "2025-01-12 09:00", "2025-01-12 10:00"},
		{"9:00", "9:30", "2025-01-12 09:00", "2025-01-12 09:30"},
		{"7:05", "23:00", "2025-01-12 07:05", "2025-01-12 23:00"},
	}
	for _, tc := range edits {
		t.Run("edit "+tc.start+"-"+tc.end, func(t *testing.T) {
			repo := &mockTimelineRepo{fetchTimelineFn: fixedTimeline(timeline("trip", []domain.Segment{poi}))}
			svc, _ := newSegmentService(repo)

			if _, err := svc.EditSegmentTime(ctx, "trip", 0, tc.start, tc.end); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			seg := repo.edits[0].Segment
			if *seg.StartDate != tc.wantStart || *seg.EndDate != tc.wantEnd {
				t.Errorf("got %s - %s, want %s - %s", *seg.StartDate, *seg.EndDate, tc.wantStart, tc.wantEnd)
			}
		})
	}

	t.Run("edit 10:00-9:30 ends before start", func(t *testing.T) {
		repo := &mockTimelineRepo{fetchTimelineFn: fixedTimeline(timeline("trip", []domain.Segment{poi}))}
		svc, _ := newSegmentService(repo)

		_, err := svc.EditSegmentTime(ctx, "trip", 0, "10:00", "9:30")
		var ve *domain.ValidationError
		if !errors.As(err, &ve) || !reflect.DeepEqual(ve.Fields, []string{"end_time"}) {
			t.Fatalf("expected end_time validation error, got %v", err)
		}
	})

	t.Run("create 9:00-18:00", func(t *testing.T) {
		repo := &mockTimelineRepo{fetchTimelineFn: fixedTimeline(timeline("trip", nil))}
		svc, _ := newSegmentService(repo)
		req := createRequest(bilbao.Center)
		req.StartDate = "2025-01-10 9:00"

		if err := req.Validate(); err != nil {
			t.Fatalf("unexpected validation error: %v", err)
		}
		if _, err := svc.CreateSmartSegment(ctx, req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := *repo.edits[0].Segment.StartDate; got != "2025-01-10 09:00" {
			t.Errorf("start: got %q, want zero-padded", got)
		}
	})
}

func TestSegmentService_CreateCityMustBelongToTrip(t *testing.T) {
	inMadrid := itinerary("Recommendations")
	inMadrid.CityID = "mad"
	inMadrid.City = "Madrid"
	inMadrid.StartDate = str("2025-01-11 09:00")
	ctx := context.Background()

	t.Run("unknown city", func(t *testing.T) {
		repo := &mockTimelineRepo{fetchTimelineFn: fixedTimeline(timeline("trip", nil))}
		svc, _ := newSegmentService(repo)
		req := createRequest(bilbao.Center)
		req.CityID = "mad"

		_, err := svc.CreateSmartSegment(ctx, req)
		var ve *domain.ValidationError
		if !errors.As(err, &ve) || !reflect.DeepEqual(ve.Fields, []string{"city_id"}) {
			t.Fatalf("expected city_id validation error, got %v", err)
		}
		if repo.editCount() != 0 {
			t.Errorf("unknown city must not be written, got %d writes", repo.editCount())
		}
	})

	t.Run("city of an existing segment", func(t *testing.T) {
		repo := &mockTimelineRepo{fetchTimelineFn: fixedTimeline(timeline("trip", []domain.Segment{inMadrid}))}
		svc, _ := newSegmentService(repo)
		req := createRequest(bilbao.Center)
		req.CityID = "mad"

		if _, err := svc.CreateSmartSegment(ctx, req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		seg := repo.edits[0].Segment
		if seg.CityID != "mad" || seg.Coordinate == nil {
			t.Errorf("without a known centre the starting point is always sent, got %+v", seg)
		}
	})
}
