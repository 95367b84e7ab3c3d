package telemetry

// SLI names attached to spans as attributes or events.
const (
	// Map
	MetricMarkersPerRegion  = "map.markers_per_region"
	MetricClustersPerRegion = "map.clusters_per_region"
	MetricSearchRadius      = "map.search_radius_m"

	// Business
	MetricCommentsPosted    = "business.comments_posted"
	MetricCommentRollbacks  = "business.comment_rollbacks"
	MetricCommentsRetracted = "business.comments_compensated"
)
