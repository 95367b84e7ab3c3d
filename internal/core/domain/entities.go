package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by repositories when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput wraps validation failures in the service layer.
	ErrInvalidInput = errors.New("invalid input")
)

// TempIDPrefix marks ids of optimistic placeholders that the server has not confirmed yet.
const TempIDPrefix = "temp-"

// Marker is a geo-located point of interest rendered on the map.
type Marker struct {
	ID            string  `json:"id"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	ImageURL      string  `json:"image_url,omitempty"`
	ReactionCount int     `json:"reaction_count"`
	CommentCount  int     `json:"comment_count"`
}

// Coordinate returns the marker position.
func (m Marker) Coordinate() Coordinate {
	return Coordinate{Latitude: m.Latitude, Longitude: m.Longitude}
}

// Cluster groups markers that overlap on screen at the current zoom level.
type Cluster struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Members   []Marker `json:"members"`
}

// Count is the number of markers in the cluster.
func (c Cluster) Count() int {
	return len(c.Members)
}

// Thread is a post pinned to a location.
type Thread struct {
	ID            string     `json:"id"`
	AuthorID      string     `json:"author_id"`
	Content       string     `json:"content"`
	ImageURL      string     `json:"image_url,omitempty"`
	Location      Coordinate `json:"location"`
	ReactionCount int        `json:"reaction_count"`
	CommentCount  int        `json:"comment_count"`
	Distance      *float64   `json:"distance,omitempty"` // computed field
	CreatedAt     time.Time  `json:"created_at"`
}

// Marker converts the thread into its map marker.
func (t Thread) Marker() Marker {
	return Marker{
		ID:            t.ID,
		Latitude:      t.Location.Latitude,
		Longitude:     t.Location.Longitude,
		ImageURL:      t.ImageURL,
		ReactionCount: t.ReactionCount,
		CommentCount:  t.CommentCount,
	}
}

// Comment is a reply on a thread.
type Comment struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	Pending   bool      `json:"pending,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ItemID identifies the comment inside a cached page.
func (c Comment) ItemID() string {
	return c.ID
}

// IsTemporaryID reports whether id belongs to an unconfirmed placeholder.
func IsTemporaryID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// CommentPage is one cursor page of comments, newest first.
type CommentPage struct {
	Comments   []Comment `json:"comments"`
	NextCursor string    `json:"next_cursor,omitempty"`
	HasMore    bool      `json:"has_more"`
}

// CommentEventType distinguishes comment events on the bus.
type CommentEventType string

const (
	CommentCreated CommentEventType = "created"
	CommentDeleted CommentEventType = "deleted"
)

// CommentEvent is published whenever a comment is confirmed or removed.
type CommentEvent struct {
	Type     CommentEventType `json:"type"`
	Origin   string           `json:"origin"` // instance that produced the event
	ThreadID string           `json:"thread_id"`
	Comment  Comment          `json:"comment"`
	At       time.Time        `json:"at"`
}
