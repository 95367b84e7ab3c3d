package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/neargrid/internal/core/domain"
	"github.com/samirrijal/neargrid/internal/core/ports"
)

// CommentRepo implements ports.CommentRepository with pgx.
type CommentRepo struct {
	db *DB
}

// NewCommentRepo creates a new CommentRepo.
func NewCommentRepo(db *DB) *CommentRepo {
	return &CommentRepo{db: db}
}

// Create inserts a comment and bumps the thread's comment count in one
// transaction. A comment that carries an id is written under it, and writing
// the same id again only reloads the stored created_at, so the count moves
// once per comment.
func (r *CommentRepo) Create(ctx context.Context, c *domain.Comment) error {
	err := pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		if c.ID == "" {
			err := tx.QueryRow(ctx, `
				INSERT INTO comments (thread_id, author_id, content)
				VALUES ($1, $2, $3)
				RETURNING id, created_at
			`, c.ThreadID, c.AuthorID, c.Content).Scan(&c.ID, &c.CreatedAt)
			if err != nil {
				return fmt.Errorf("insert comment: %w", err)
			}
		} else {
			err := tx.QueryRow(ctx, `
				INSERT INTO comments (id, thread_id, author_id, content)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (id) DO NOTHING
				RETURNING created_at
			`, c.ID, c.ThreadID, c.AuthorID, c.Content).Scan(&c.CreatedAt)
			if errors.Is(err, pgx.ErrNoRows) {
				err = tx.QueryRow(ctx, `SELECT created_at FROM comments WHERE id = $1 AND thread_id = $2`,
					c.ID, c.ThreadID).Scan(&c.CreatedAt)
				if err != nil {
					return fmt.Errorf("reload comment %s: %w", c.ID, err)
				}
				return nil
			}
			if err != nil {
				return fmt.Errorf("insert comment: %w", err)
			}
		}
		_, err := tx.Exec(ctx, `UPDATE threads SET comment_count = comment_count + 1 WHERE id = $1`, c.ThreadID)
		return err
	})
	return mapPgError(err)
}

// Delete removes a comment. It returns domain.ErrNotFound when the comment
// does not exist on that thread.
func (r *CommentRepo) Delete(ctx context.Context, threadID, commentID string) error {
	err := pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM comments WHERE id = $1 AND thread_id = $2`, commentID, threadID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		_, err = tx.Exec(ctx, `UPDATE threads SET comment_count = GREATEST(comment_count - 1, 0) WHERE id = $1`, threadID)
		return err
	})
	return mapPgError(err)
}

// ListByThread pages through comments newest first using a
// (created_at, id) keyset.
func (r *CommentRepo) ListByThread(ctx context.Context, threadID string, after *ports.CommentCursor, limit int) ([]domain.Comment, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if after == nil {
		rows, err = r.db.Pool.Query(ctx, `
			SELECT id, thread_id, author_id, content, created_at
			FROM comments
			WHERE thread_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		`, threadID, limit)
	} else {
		rows, err = r.db.Pool.Query(ctx, `
			SELECT id, thread_id, author_id, content, created_at
			FROM comments
			WHERE thread_id = $1 AND (created_at, id) < ($2, $3::uuid)
			ORDER BY created_at DESC, id DESC
			LIMIT $4
		`, threadID, after.CreatedAt, after.ID, limit)
	}
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	comments := []domain.Comment{}
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.ThreadID, &c.AuthorID, &c.Content, &c.CreatedAt); err != nil {
			return nil, mapPgError(err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}
	return comments, nil
}
