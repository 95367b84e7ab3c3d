package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/samirrijal/neargrid/internal/core/domain"
)

func TestMapPgError(t *testing.T) {
	other := errors.New("connection reset")

	tests := []struct {
		name     string
		err      error
		notFound bool
	}{
		{"no rows", pgx.ErrNoRows, true},
		{"malformed uuid", &pgconn.PgError{Code: "22P02", Message: `invalid input syntax for type uuid: "nope"`}, true},
		{"missing thread", fmt.Errorf("insert comment: %w", &pgconn.PgError{Code: "23503", ConstraintName: "comments_thread_id_fkey"}), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"other", other, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapPgError(tt.err)
			assert.Equal(t, tt.notFound, errors.Is(got, domain.ErrNotFound), "got %v", got)
			if !tt.notFound {
				assert.ErrorIs(t, got, tt.err)
			}
		})
	}

	assert.NoError(t, mapPgError(nil))
}
