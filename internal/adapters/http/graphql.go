package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/neargrid/internal/core/domain"
	"github.com/samirrijal/neargrid/internal/core/usecases"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	coordinateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coordinate",
		Fields: graphql.Fields{
			"latitude":  &graphql.Field{Type: graphql.Float},
			"longitude": &graphql.Field{Type: graphql.Float},
		},
	})

	markerType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Marker",
		Fields: graphql.Fields{
			"id":             &graphql.Field{Type: graphql.String},
			"latitude":       &graphql.Field{Type: graphql.Float},
			"longitude":      &graphql.Field{Type: graphql.Float},
			"image_url":      &graphql.Field{Type: graphql.String},
			"reaction_count": &graphql.Field{Type: graphql.Int},
			"comment_count":  &graphql.Field{Type: graphql.Int},
		},
	})

	clusterType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Cluster",
		Fields: graphql.Fields{
			"latitude":  &graphql.Field{Type: graphql.Float},
			"longitude": &graphql.Field{Type: graphql.Float},
			"members":   &graphql.Field{Type: graphql.NewList(markerType)},
			"count": &graphql.Field{
				Type: graphql.Int,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if c, ok := p.Source.(domain.Cluster); ok {
						return c.Count(), nil
					}
					return nil, nil
				},
			},
		},
	})

	clusterResultType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ClusterResult",
		Fields: graphql.Fields{
			"center":        &graphql.Field{Type: coordinateType},
			"radius_meters": &graphql.Field{Type: graphql.Float},
			"marker_count":  &graphql.Field{Type: graphql.Int},
			"clusters":      &graphql.Field{Type: graphql.NewList(clusterType)},
		},
	})

	searchAreaType := graphql.NewObject(graphql.ObjectConfig{
		Name: "SearchArea",
		Fields: graphql.Fields{
			"center":        &graphql.Field{Type: coordinateType},
			"radius_meters": &graphql.Field{Type: graphql.Float},
		},
	})

	threadType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Thread",
		Fields: graphql.Fields{
			"id":             &graphql.Field{Type: graphql.String},
			"author_id":      &graphql.Field{Type: graphql.String},
			"content":        &graphql.Field{Type: graphql.String},
			"image_url":      &graphql.Field{Type: graphql.String},
			"location":       &graphql.Field{Type: coordinateType},
			"reaction_count": &graphql.Field{Type: graphql.Int},
			"comment_count":  &graphql.Field{Type: graphql.Int},
			"created_at":     &graphql.Field{Type: graphql.DateTime},
		},
	})

	commentType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Comment",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: graphql.String},
			"thread_id":  &graphql.Field{Type: graphql.String},
			"author_id":  &graphql.Field{Type: graphql.String},
			"content":    &graphql.Field{Type: graphql.String},
			"pending":    &graphql.Field{Type: graphql.Boolean},
			"created_at": &graphql.Field{Type: graphql.DateTime},
		},
	})

	commentPageType := graphql.NewObject(graphql.ObjectConfig{
		Name: "CommentPage",
		Fields: graphql.Fields{
			"comments":    &graphql.Field{Type: graphql.NewList(commentType)},
			"next_cursor": &graphql.Field{Type: graphql.String},
			"has_more":    &graphql.Field{Type: graphql.Boolean},
		},
	})

	regionArgs := graphql.FieldConfigArgument{
		"latitude":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
		"longitude":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
		"latitudeDelta":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
		"longitudeDelta": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
	}
	regionFromArgs := func(args map[string]interface{}) domain.Region {
		return domain.Region{
			Latitude:       args["latitude"].(float64),
			Longitude:      args["longitude"].(float64),
			LatitudeDelta:  args["latitudeDelta"].(float64),
			LongitudeDelta: args["longitudeDelta"].(float64),
		}
	}

	clusterArgs := graphql.FieldConfigArgument{
		"width":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
		"height":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
		"threshold": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.0},
		"limit":     &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
	}
	for k, v := range regionArgs {
		clusterArgs[k] = v
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"clusters": &graphql.Field{
				Type:        clusterResultType,
				Description: "Cluster the threads visible in a viewport",
				Args:        clusterArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Map.Clusters(p.Context, usecases.ClusterQuery{
						Region:      regionFromArgs(p.Args),
						Width:       p.Args["width"].(float64),
						Height:      p.Args["height"].(float64),
						ThresholdPx: p.Args["threshold"].(float64),
						Limit:       p.Args["limit"].(int),
					})
				},
			},
			"searchArea": &graphql.Field{
				Type:        searchAreaType,
				Description: "Centre and ground radius of a viewport",
				Args:        regionArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					center, radius := deps.Map.SearchArea(regionFromArgs(p.Args))
					return map[string]interface{}{
						"center":        center,
						"radius_meters": radius,
					}, nil
				},
			},
			"thread": &graphql.Field{
				Type:        threadType,
				Description: "Get a thread by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Threads.GetByID(p.Context, p.Args["id"].(string))
				},
			},
			"comments": &graphql.Field{
				Type:        commentPageType,
				Description: "One cursor page of a thread's comments, newest first",
				Args: graphql.FieldConfigArgument{
					"threadId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"cursor":   &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"limit":    &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Comments.List(p.Context,
						p.Args["threadId"].(string),
						p.Args["cursor"].(string),
						p.Args["limit"].(int),
					)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
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
