package usecases

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/samirrijal/neargrid/internal/core/domain"
	"github.com/samirrijal/neargrid/internal/core/ports"
)

// EncodeCursor renders the keyset position after c as an opaque string.
func EncodeCursor(c domain.Comment) string {
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a cursor produced by EncodeCursor.
func DecodeCursor(s string) (*ports.CommentCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", domain.ErrInvalidInput)
	}
	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return nil, fmt.Errorf("%w: malformed cursor", domain.ErrInvalidInput)
	}
	at, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor time", domain.ErrInvalidInput)
	}
	return &ports.CommentCursor{CreatedAt: at, ID: id}, nil
}
