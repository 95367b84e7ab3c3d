package geospatial

import (
	"github.com/peterstace/simplefeatures/geom"

	"github.com/samirrijal/neargrid/internal/core/domain"
)

// ClustersToGeoJSON converts clusters into a GeoJSON FeatureCollection.
// Multi-marker clusters carry cluster=true and the ids of their members;
// single markers carry their own id and counters.
func ClustersToGeoJSON(clusters []domain.Cluster) geom.GeoJSONFeatureCollection {
	fc := make(geom.GeoJSONFeatureCollection, 0, len(clusters))
	for i, c := range clusters {
		pt := geom.XY{X: c.Longitude, Y: c.Latitude}.AsPoint()

		props := map[string]interface{}{
			"cluster":     c.Count() > 1,
			"point_count": c.Count(),
		}

		var id interface{} = i
		if c.Count() == 1 {
			m := c.Members[0]
			id = m.ID
			props["reaction_count"] = m.ReactionCount
			props["comment_count"] = m.CommentCount
			if m.ImageURL != "" {
				props["image_url"] = m.ImageURL
			}
		} else {
			ids := make([]string, len(c.Members))
			for j, m := range c.Members {
				ids[j] = m.ID
			}
			props["marker_ids"] = ids
		}

		fc = append(fc, geom.GeoJSONFeature{
			Geometry:   pt.AsGeometry(),
			ID:         id,
			Properties: props,
		})
	}
	return fc
}
