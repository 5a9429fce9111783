package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/tripline/internal/core/domain"
	"github.com/samirrijal/tripline/internal/core/usecases"
)

// dayNode is the source value of the Day type.
type dayNode struct {
	view  *usecases.TimelineView
	index int
}

// buildSchema creates the GraphQL schema wired to the timeline services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	cityType := graphql.NewObject(graphql.ObjectConfig{
		Name: "City",
		Fields: graphql.Fields{
			"id":     &graphql.Field{Type: graphql.String},
			"name":   &graphql.Field{Type: graphql.String},
			"center": &graphql.Field{Type: geoPointType},
		},
	})

	poiType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Poi",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: graphql.String},
			"name":       &graphql.Field{Type: graphql.String},
			"category":   &graphql.Field{Type: graphql.String},
			"coordinate": &graphql.Field{Type: geoPointType},
		},
	})

	cellType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Cell",
		Fields: graphql.Fields{
			"type":          &graphql.Field{Type: graphql.String},
			"title":         &graphql.Field{Type: graphql.String},
			"city":          &graphql.Field{Type: graphql.String},
			"start_date":    &graphql.Field{Type: graphql.String},
			"end_date":      &graphql.Field{Type: graphql.String},
			"order":         &graphql.Field{Type: graphql.Int},
			"order_span":    &graphql.Field{Type: graphql.Int},
			"segment_index": &graphql.Field{Type: graphql.Int},
			"step_count":    &graphql.Field{Type: graphql.Int},
			"activity_id":   &graphql.Field{Type: graphql.String},
			"poi":           &graphql.Field{Type: poiType},
		},
	})

	headerType := graphql.NewObject(graphql.ObjectConfig{
		Name: "CityHeader",
		Fields: graphql.Fields{
			"city":        &graphql.Field{Type: graphql.String},
			"item_count":  &graphql.Field{Type: graphql.Int},
			"first_order": &graphql.Field{Type: graphql.Int},
			"last_order":  &graphql.Field{Type: graphql.Int},
		},
	})

	groupType := graphql.NewObject(graphql.ObjectConfig{
		Name: "CityGroup",
		Fields: graphql.Fields{
			"header": &graphql.Field{Type: headerType},
			"cells":  &graphql.Field{Type: graphql.NewList(cellType)},
		},
	})

	mapPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "MapPoint",
		Fields: graphql.Fields{
			"order":         &graphql.Field{Type: graphql.Int},
			"city":          &graphql.Field{Type: graphql.String},
			"title":         &graphql.Field{Type: graphql.String},
			"type":          &graphql.Field{Type: graphql.String},
			"segment_index": &graphql.Field{Type: graphql.Int},
			"coordinate":    &graphql.Field{Type: geoPointType},
		},
	})

	unplaceableType := graphql.NewObject(graphql.ObjectConfig{
		Name: "UnplaceableItem",
		Fields: graphql.Fields{
			"segment_index": &graphql.Field{Type: graphql.Int},
			"city":          &graphql.Field{Type: graphql.String},
			"title": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(domain.MergedItem).Segment.Title, nil
				},
			},
			"type": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return string(p.Source.(domain.MergedItem).Segment.Type), nil
				},
			},
		},
	})

	dayType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Day",
		Fields: graphql.Fields{
			"index": &graphql.Field{
				Type: graphql.Int,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(dayNode).index, nil
				},
			},
			"date": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					d := p.Source.(dayNode)
					return d.view.Date(d.index)
				},
			},
			"groups": &graphql.Field{
				Type: graphql.NewList(groupType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					d := p.Source.(dayNode)
					return dayGroups(d.view, d.index)
				},
			},
			"map_points": &graphql.Field{
				Type: graphql.NewList(mapPointType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					d := p.Source.(dayNode)
					return d.view.OrderedMapPoints(d.index)
				},
			},
		},
	})

	tripType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Trip",
		Fields: graphql.Fields{
			"trip_hash": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*usecases.TimelineView).TripHash(), nil
				},
			},
			"city": &graphql.Field{
				Type: cityType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					t, err := deps.Timelines.Snapshot(p.Source.(*usecases.TimelineView).TripHash())
					if err != nil || t.City == nil {
						return nil, err
					}
					return t.City, nil
				},
			},
			"number_of_days": &graphql.Field{
				Type: graphql.Int,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*usecases.TimelineView).NumberOfDays(), nil
				},
			},
			"days": &graphql.Field{
				Type: graphql.NewList(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*usecases.TimelineView).Days(), nil
				},
			},
			"selected_day": &graphql.Field{
				Type: graphql.Int,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*usecases.TimelineView).SelectedDay(), nil
				},
			},
			"day": &graphql.Field{
				Type:        dayType,
				Description: "One day of the merged timeline",
				Args: graphql.FieldConfigArgument{
					"index": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					view := p.Source.(*usecases.TimelineView)
					index := p.Args["index"].(int)
					if _, err := view.Date(index); err != nil {
						return nil, err
					}
					return dayNode{view: view, index: index}, nil
				},
			},
			"unplaceable": &graphql.Field{
				Type:        graphql.NewList(unplaceableType),
				Description: "Items without a resolvable date",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*usecases.TimelineView).Unplaceable(), nil
				},
			},
		},
	})

	generationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Generation",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"trip_hash":   &graphql.Field{Type: graphql.String},
			"state":       &graphql.Field{Type: graphql.String},
			"attempts":    &graphql.Field{Type: graphql.Int},
			"error":       &graphql.Field{Type: graphql.String},
			"started_at":  &graphql.Field{Type: graphql.DateTime},
			"finished_at": &graphql.Field{Type: graphql.DateTime},
		},
	})

	hashArg := graphql.FieldConfigArgument{
		"hash": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"trip": &graphql.Field{
				Type:        tripType,
				Description: "Merged timeline of a trip",
				Args:        hashArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					hash, err := hashFromArgs(p.Args)
					if err != nil {
						return nil, err
					}
					return deps.Timelines.Load(p.Context, hash)
				},
			},
			"generation": &graphql.Field{
				Type:        generationType,
				Description: "Current generation poll of a trip",
				Args:        hashArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					hash, err := hashFromArgs(p.Args)
					if err != nil {
						return nil, err
					}
					session, ok := deps.Poller.Session(hash)
					if !ok {
						return nil, nil
					}
					return session.Status(), nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"refreshTrip": &graphql.Field{
				Type:        tripType,
				Description: "Refetch a trip from the backend",
				Args:        hashArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					hash, err := hashFromArgs(p.Args)
					if err != nil {
						return nil, err
					}
					return deps.Timelines.Refresh(p.Context, hash)
				},
			},
			"selectDay": &graphql.Field{
				Type: tripType,
				Args: graphql.FieldConfigArgument{
					"hash": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"day":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					hash, err := hashFromArgs(p.Args)
					if err != nil {
						return nil, err
					}
					view, err := deps.Timelines.Load(p.Context, hash)
					if err != nil {
						return nil, err
					}
					if err := view.SelectDay(p.Args["day"].(int)); err != nil {
						return nil, err
					}
					return view, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

func hashFromArgs(args map[string]interface{}) (string, error) {
	hash, _ := args["hash"].(string)
	if !tripHashPattern.MatchString(hash) {
		return "", errors.New("invalid trip hash")
	}
	return hash, nil
}

func dayGroups(view *usecases.TimelineView, day int) ([]GroupResponse, error) {
	headers, err := view.CityHeaders(day)
	if err != nil {
		return nil, err
	}
	groups := make([]GroupResponse, len(headers))
	for section, h := range headers {
		g := GroupResponse{Header: h, Cells: make([]domain.CellDescriptor, 0, h.ItemCount)}
		for row := 0; row < h.ItemCount; row++ {
			cell, err := view.CellDescriptor(day, section, row)
			if err != nil {
				return nil, err
			}
			g.Cells = append(g.Cells, cell)
		}
		groups[section] = g
	}
	return groups, nil
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})
		return c.JSON(result)
	}
}
