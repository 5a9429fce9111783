package http

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/tripline/internal/core/domain"
	"github.com/samirrijal/tripline/internal/core/usecases"
)

var tripHashPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// maxWait bounds how long a mutation request may block on ?wait=true.
const maxWait = 60 * time.Second

// TripSummary describes a loaded trip.
type TripSummary struct {
	TripHash     string       `json:"trip_hash"`
	City         *domain.City `json:"city,omitempty"`
	NumberOfDays int          `json:"number_of_days"`
	Days         []string     `json:"days"`
	SelectedDay  int          `json:"selected_day"`
	Segments     int          `json:"segments"`
	Unplaceable  int          `json:"unplaceable"`
}

// DaySummary is one entry of the day list.
type DaySummary struct {
	Index    int    `json:"index"`
	Date     string `json:"date"`
	Sections int    `json:"sections"`
	Rows     int    `json:"rows"`
}

// GroupResponse is one city section of a day.
type GroupResponse struct {
	Header domain.CityHeader       `json:"header"`
	Cells  []domain.CellDescriptor `json:"cells"`
}

// DayResponse is the full list content of one day.
type DayResponse struct {
	Index  int             `json:"index"`
	Date   string          `json:"date"`
	Groups []GroupResponse `json:"groups"`
}

// LegResponse is the travel between two consecutive map points.
type LegResponse struct {
	Index           int     `json:"index"`
	FromOrder       int     `json:"from_order"`
	ToOrder         int     `json:"to_order"`
	DistanceMeters  float64 `json:"distance_m"`
	DurationSeconds float64 `json:"duration_s"`
}

// MutationResponse reports the outcome of a segment write.
type MutationResponse struct {
	Generation *usecases.PollStatus `json:"generation,omitempty"`
	Trip       *TripSummary         `json:"trip,omitempty"`
}

type selectDayRequest struct {
	Day int `json:"day"`
}

type editTimeRequest struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type favouritesRequest struct {
	Items []domain.FavoriteItem `json:"items"`
}

func tripHash(c *fiber.Ctx) (string, bool) {
	h := c.Params("hash")
	return h, tripHashPattern.MatchString(h)
}

func summarize(deps *Dependencies, view *usecases.TimelineView) TripSummary {
	s := TripSummary{
		TripHash:     view.TripHash(),
		NumberOfDays: view.NumberOfDays(),
		Days:         view.Days(),
		SelectedDay:  view.SelectedDay(),
		Unplaceable:  len(view.Unplaceable()),
	}
	if s.Days == nil {
		s.Days = []string{}
	}
	if t, err := deps.Timelines.Snapshot(view.TripHash()); err == nil {
		s.City = t.City
		s.Segments = len(t.TripProfile.Segments)
	}
	return s
}

// loadView resolves :hash and returns the trip's view, fetching it on first use.
func loadView(c *fiber.Ctx, deps *Dependencies) (*usecases.TimelineView, error) {
	hash, ok := tripHash(c)
	if !ok {
		return nil, errBadRequest(c, "invalid trip hash")
	}
	view, err := deps.Timelines.Load(c.UserContext(), hash)
	if err != nil {
		return nil, errFromDomain(c, err)
	}
	return view, nil
}

// GetTripHandler returns the summary of a trip.
func GetTripHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		view, err := loadView(c, deps)
		if view == nil {
			return err
		}
		return c.JSON(summarize(deps, view))
	}
}

// CreateTripHandler creates a trip on the backend.
func CreateTripHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		hash, ok := tripHash(c)
		if !ok {
			return errBadRequest(c, "invalid trip hash")
		}
		var profile domain.TripProfile
		if err := c.BodyParser(&profile); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		profile.TripHash = hash

		view, err := deps.Timelines.CreateTimeline(c.UserContext(), profile)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.Status(201).JSON(summarize(deps, view))
	}
}

// RefreshTripHandler refetches a trip and replaces its snapshot.
func RefreshTripHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		hash, ok := tripHash(c)
		if !ok {
			return errBadRequest(c, "invalid trip hash")
		}
		view, err := deps.Timelines.Refresh(c.UserContext(), hash)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(summarize(deps, view))
	}
}

// ListDaysHandler lists the trip's days with row counts, paginated.
func ListDaysHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		view, err := loadView(c, deps)
		if view == nil {
			return err
		}

		pg := parseDayPage(c, view.NumberOfDays())
		days := make([]DaySummary, 0, pg.End()-pg.Offset)
		for i := pg.Offset; i < pg.End(); i++ {
			date, _ := view.Date(i)
			sections, _ := view.NumberOfSections(i)
			rows, _ := view.RowsForDay(i)
			days = append(days, DaySummary{Index: i, Date: date, Sections: sections, Rows: rows})
		}

		SetLinkHeaders(c, pg)
		return c.JSON(Page[DaySummary]{Data: days, Pagination: pg})
	}
}

// GetDayHandler returns the city groups and cells of one day.
func GetDayHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		view, err := loadView(c, deps)
		if view == nil {
			return err
		}
		day, err := c.ParamsInt("day")
		if err != nil {
			return errBadRequest(c, "day must be an integer")
		}

		date, err := view.Date(day)
		if err != nil {
			return errFromDomain(c, err)
		}
		groups, err := dayGroups(view, day)
		if err != nil {
			return errFromDomain(c, err)
		}
		res := DayResponse{Index: day, Date: date, Groups: groups}
		return c.JSON(res)
	}
}

// SelectDayHandler moves the trip's selected-day cursor.
func SelectDayHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		view, err := loadView(c, deps)
		if view == nil {
			return err
		}
		var req selectDayRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if err := view.SelectDay(req.Day); err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(summarize(deps, view))
	}
}

// MapPointsHandler returns the day's map markers in unified order.
func MapPointsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		view, err := loadView(c, deps)
		if view == nil {
			return err
		}
		day, err := c.ParamsInt("day")
		if err != nil {
			return errBadRequest(c, "day must be an integer")
		}
		points, err := view.OrderedMapPoints(day)
		if err != nil {
			return errFromDomain(c, err)
		}
		if points == nil {
			points = []domain.MapPoint{}
		}
		return c.JSON(points)
	}
}

// LegsHandler resolves the travel legs between the day's map points.
func LegsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		view, err := loadView(c, deps)
		if view == nil {
			return err
		}
		day, err := c.ParamsInt("day")
		if err != nil {
			return errBadRequest(c, "day must be an integer")
		}
		legs := []LegResponse{}
		err = deps.Timelines.ResolveDayLegs(c.UserContext(), view, day, func(l usecases.DayLeg) {
			legs = append(legs, LegResponse{
				Index:           l.Index,
				FromOrder:       l.From.Order,
				ToOrder:         l.To.Order,
				DistanceMeters:  l.Leg.Distance,
				DurationSeconds: l.Leg.Duration.Seconds(),
			})
		})
		if err != nil {
			return errFromDomain(c, err)
		}
		sort.Slice(legs, func(i, j int) bool { return legs[i].Index < legs[j].Index })
		return c.JSON(legs)
	}
}

// UnplaceableHandler lists the items that have no resolvable date.
func UnplaceableHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		view, err := loadView(c, deps)
		if view == nil {
			return err
		}
		items := view.Unplaceable()
		if items == nil {
			items = []domain.MergedItem{}
		}
		return c.JSON(items)
	}
}

// GetFavouritesHandler returns the locally held favourites of a trip.
func GetFavouritesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		hash, ok := tripHash(c)
		if !ok {
			return errBadRequest(c, "invalid trip hash")
		}
		items := deps.Timelines.Favourites(hash)
		if items == nil {
			items = []domain.FavoriteItem{}
		}
		return c.JSON(favouritesRequest{Items: items})
	}
}

// PutFavouritesHandler replaces the locally held favourites of a trip.
func PutFavouritesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		hash, ok := tripHash(c)
		if !ok {
			return errBadRequest(c, "invalid trip hash")
		}
		var req favouritesRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		deps.Timelines.SetFavourites(hash, req.Items)
		return c.JSON(favouritesRequest{Items: deps.Timelines.Favourites(hash)})
	}
}

// CreateSegmentHandler submits a generated itinerary segment. The response is
// 202 with the poll session unless ?wait=true, which blocks until the session
// finishes.
func CreateSegmentHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		hash, ok := tripHash(c)
		if !ok {
			return errBadRequest(c, "invalid trip hash")
		}
		var req usecases.CreateSegmentRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		req.TripHash = hash

		session, err := deps.Segments.CreateSmartSegment(c.UserContext(), req)
		if err != nil {
			return errFromDomain(c, err)
		}
		return respondMutation(c, deps, hash, session)
	}
}

// EditSegmentTimeHandler replaces the time of day of one segment.
func EditSegmentTimeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		hash, ok := tripHash(c)
		if !ok {
			return errBadRequest(c, "invalid trip hash")
		}
		index, err := c.ParamsInt("index")
		if err != nil {
			return errBadRequest(c, "index must be an integer")
		}
		var req editTimeRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		session, err := deps.Segments.EditSegmentTime(c.UserContext(), hash, index, req.StartTime, req.EndTime)
		if err != nil {
			return errFromDomain(c, err)
		}
		return respondMutation(c, deps, hash, session)
	}
}

// DeleteSegmentHandler deletes one segment.
func DeleteSegmentHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		hash, ok := tripHash(c)
		if !ok {
			return errBadRequest(c, "invalid trip hash")
		}
		index, err := c.ParamsInt("index")
		if err != nil {
			return errBadRequest(c, "index must be an integer")
		}
		if err := deps.Segments.DeleteSegment(c.UserContext(), hash, index); err != nil {
			return errFromDomain(c, err)
		}
		return respondMutation(c, deps, hash, nil)
	}
}

// GenerationStatusHandler reports the trip's current poll session.
func GenerationStatusHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		hash, ok := tripHash(c)
		if !ok {
			return errBadRequest(c, "invalid trip hash")
		}
		session, ok := deps.Poller.Session(hash)
		if !ok {
			return errNotFound(c, "no generation in progress for trip "+hash)
		}
		return c.JSON(session.Status())
	}
}

func respondMutation(c *fiber.Ctx, deps *Dependencies, hash string, session *usecases.PollSession) error {
	if session == nil {
		view, err := deps.Timelines.View(hash)
		if err != nil {
			return errFromDomain(c, err)
		}
		s := summarize(deps, view)
		return c.JSON(MutationResponse{Trip: &s})
	}

	c.Set(fiber.HeaderLocation, "/v1/trips/"+hash+"/generation")
	if wait, _ := strconv.ParseBool(c.Query("wait")); !wait {
		st := session.Status()
		return c.Status(202).JSON(MutationResponse{Generation: &st})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), maxWait)
	defer cancel()
	if err := session.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			st := session.Status()
			return c.Status(202).JSON(MutationResponse{Generation: &st})
		}
		return errFromDomain(c, err)
	}

	st := session.Status()
	res := MutationResponse{Generation: &st}
	if view, err := deps.Timelines.View(hash); err == nil {
		s := summarize(deps, view)
		res.Trip = &s
	}
	return c.JSON(res)
}
