package domain

// MergedItem pairs one Segment with at most one resolved Plan. SegmentIndex is
// the segment's position in TripProfile.Segments and is the only identity used
// for edits and deletes.
type MergedItem struct {
	Segment      Segment `json:"segment"`
	Plan         *Plan   `json:"plan,omitempty"`
	SegmentIndex int     `json:"segment_index"`

	// Resolved through the fallback chains in resolve.go. An empty StartDate
	// means the item cannot be placed on any day.
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	City      string `json:"city"`
	Poi       *Poi   `json:"poi,omitempty"`
}

// Day returns the yyyy-MM-dd prefix of the resolved start date.
func (m MergedItem) Day() string {
	return DatePart(m.StartDate)
}

// Placeable reports whether the item has a usable start date.
func (m MergedItem) Placeable() bool {
	return m.Day() != ""
}

// StepCount returns the number of recommended steps of the matched plan.
func (m MergedItem) StepCount() int {
	if m.Plan == nil {
		return 0
	}
	return len(m.Plan.Steps)
}

// OrderSlots is how many unified order numbers the item consumes.
func (m MergedItem) OrderSlots() int {
	if m.Segment.Type == SegmentItinerary {
		return max(m.StepCount(), 1)
	}
	return 1
}

// OrderedItem is a MergedItem with its unified order within a city group.
type OrderedItem struct {
	MergedItem
	Order     int `json:"order"`
	OrderSpan int `json:"order_span"`
}

// LastOrder is the last order number consumed by the item.
func (o OrderedItem) LastOrder() int {
	return o.Order + o.OrderSpan - 1
}

// CityGroup holds the ordered items of one city for one day.
type CityGroup struct {
	City  string        `json:"city"`
	Items []OrderedItem `json:"items"`
}

// CityHeader describes a city group for list section headers.
type CityHeader struct {
	City       string `json:"city"`
	ItemCount  int    `json:"item_count"`
	FirstOrder int    `json:"first_order"`
	LastOrder  int    `json:"last_order"`
}

// CellDescriptor is what a list row needs to render one item.
type CellDescriptor struct {
	Type         SegmentType `json:"type"`
	Title        string      `json:"title"`
	City         string      `json:"city"`
	StartDate    string      `json:"start_date"`
	EndDate      string      `json:"end_date,omitempty"`
	Order        int         `json:"order"`
	OrderSpan    int         `json:"order_span"`
	SegmentIndex int         `json:"segment_index"`
	StepCount    int         `json:"step_count"`
	Poi          *Poi        `json:"poi,omitempty"`
	ActivityID   string      `json:"activity_id,omitempty"`
	Steps        []Step      `json:"steps,omitempty"`
}

// MapPoint is one numbered marker on the day map.
type MapPoint struct {
	Order        int         `json:"order"`
	City         string      `json:"city"`
	Title        string      `json:"title"`
	Type         SegmentType `json:"type"`
	SegmentIndex int         `json:"segment_index"`
	Coordinate   GeoPoint    `json:"coordinate"`
}
