package http

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/neargrid/internal/core/domain"
	"github.com/samirrijal/neargrid/internal/core/usecases"
	"github.com/samirrijal/neargrid/internal/pkg/geospatial"
)

// regionFromQuery reads lat, lon, lat_delta and lon_delta.
func regionFromQuery(c *fiber.Ctx) (domain.Region, error) {
	for _, k := range []string{"lat", "lon", "lat_delta", "lon_delta"} {
		if c.Query(k) == "" {
			return domain.Region{}, errors.New("lat, lon, lat_delta and lon_delta are required")
		}
	}
	return domain.Region{
		Latitude:       c.QueryFloat("lat", 0),
		Longitude:      c.QueryFloat("lon", 0),
		LatitudeDelta:  c.QueryFloat("lat_delta", 0),
		LongitudeDelta: c.QueryFloat("lon_delta", 0),
	}, nil
}

func clusterQuery(c *fiber.Ctx) (usecases.ClusterQuery, error) {
	region, err := regionFromQuery(c)
	if err != nil {
		return usecases.ClusterQuery{}, err
	}
	if c.Query("width") == "" || c.Query("height") == "" {
		return usecases.ClusterQuery{}, errors.New("width and height are required")
	}
	return usecases.ClusterQuery{
		Region:      region,
		Width:       c.QueryFloat("width", 0),
		Height:      c.QueryFloat("height", 0),
		ThresholdPx: c.QueryFloat("threshold", 0),
		Limit:       c.QueryInt("limit", 0),
	}, nil
}

// ClustersHandler clusters the threads visible in a viewport.
func ClustersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := clusterQuery(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		res, err := deps.Map.Clusters(c.UserContext(), q)
		if err != nil {
			return errFromDomain(c, err, "clusters")
		}
		return c.JSON(res)
	}
}

// ClustersGeoJSONHandler returns the same clusters as a GeoJSON FeatureCollection.
func ClustersGeoJSONHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := clusterQuery(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		res, err := deps.Map.Clusters(c.UserContext(), q)
		if err != nil {
			return errFromDomain(c, err, "clusters")
		}
		if err := c.JSON(geospatial.ClustersToGeoJSON(res.Clusters)); err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, "application/geo+json")
		return nil
	}
}

// SearchAreaHandler returns the centre and ground radius of a viewport.
func SearchAreaHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		region, err := regionFromQuery(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		center, radius := deps.Map.SearchArea(region)
		return c.JSON(fiber.Map{
			"center":        center,
			"radius_meters": radius,
		})
	}
}

// NearbyThreadsHandler returns a flat list of threads around a point.
// Superseded by /v1/map/clusters.
func NearbyThreadsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Query("lat") == "" || c.Query("lon") == "" {
			return errBadRequest(c, "lat and lon are required")
		}
		radius := c.QueryFloat("radius", 1000)
		if radius <= 0 {
			return errBadRequest(c, "radius must be positive")
		}
		threads, err := deps.Map.Nearby(c.UserContext(), c.QueryFloat("lat", 0), c.QueryFloat("lon", 0), radius, c.QueryInt("limit", 50))
		if err != nil {
			return errFromDomain(c, err, "threads")
		}
		return c.JSON(threads)
	}
}

type createThreadRequest struct {
	AuthorID  string  `json:"author_id"`
	Content   string  `json:"content"`
	ImageURL  string  `json:"image_url"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// CreateThreadHandler pins a new thread to a location.
func CreateThreadHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req createThreadRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		t, err := deps.Threads.Create(c.UserContext(), &domain.Thread{
			AuthorID: strings.TrimSpace(req.AuthorID),
			Content:  req.Content,
			ImageURL: req.ImageURL,
			Location: domain.Coordinate{Latitude: req.Latitude, Longitude: req.Longitude},
		})
		if err != nil {
			return errFromDomain(c, err, "thread")
		}
		c.Location("/v1/threads/" + t.ID)
		return c.Status(fiber.StatusCreated).JSON(t)
	}
}

// GetThreadHandler returns a single thread.
func GetThreadHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		t, err := deps.Threads.GetByID(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err, "thread")
		}
		return c.JSON(t)
	}
}

// ListCommentsHandler returns one cursor page of a thread's comments.
func ListCommentsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 20)
		if limit <= 0 || limit > 100 {
			limit = 20
		}
		page, err := deps.Comments.List(c.UserContext(), c.Params("id"), c.Query("cursor"), limit)
		if err != nil {
			return errFromDomain(c, err, "thread")
		}
		SetCursorLinkHeader(c, page.NextCursor, limit)
		return c.JSON(page)
	}
}

type postCommentRequest struct {
	AuthorID string `json:"author_id"`
	Content  string `json:"content"`
}

// PostCommentHandler adds a comment to a thread.
func PostCommentHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req postCommentRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		comment, err := deps.Comments.Post(c.UserContext(), c.Params("id"), strings.TrimSpace(req.AuthorID), req.Content)
		if errors.Is(err, domain.ErrNotFound) {
			return errNotFound(c, "thread not found")
		}
		if err != nil {
			return errFromDomain(c, err, "comment")
		}
		return c.Status(fiber.StatusCreated).JSON(comment)
	}
}

// DeleteCommentHandler removes a comment from a thread.
func DeleteCommentHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Comments.Delete(c.UserContext(), c.Params("id"), c.Params("commentId")); err != nil {
			return errFromDomain(c, err, "comment")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
