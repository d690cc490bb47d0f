package repository

import (
	"context"
	"fmt"

	"github.com/archive-evacuator/internal/database"
	"github.com/archive-evacuator/internal/models"
)

// postRepo is the concrete implementation of PostRepository. Both post
// tables share one column set; the Facebook table keeps the thread and
// audience columns at their defaults.
type postRepo struct {
	db    *database.DB
	table string
}

// NewPostRepo creates a post repository bound to one source table
func NewPostRepo(db *database.DB, table string) PostRepository {
	return &postRepo{db: db, table: table}
}

// Insert adds a post row; a duplicate id maps to database.ErrAlreadyExists.
// Each insert commits on its own so a crash loses at most the in-flight row.
func (r *postRepo) Insert(ctx context.Context, post *models.Post) error {
	query := fmt.Sprintf(
		"INSERT INTO %s (id, parent_id, original_date, privacy, language, text, sensitive) VALUES (?, ?, ?, ?, ?, ?, ?)",
		r.table)
	_, err := r.db.ExecContext(ctx, query,
		post.ID, post.ParentID, post.OriginalDate, string(post.Visibility),
		post.Language, post.Text, boolToInt(post.Sensitive))
	return database.MapConstraintError(err)
}

// Get retrieves one post by id, or nil when absent
func (r *postRepo) Get(ctx context.Context, id int64) (*models.Post, error) {
	query := fmt.Sprintf(
		"SELECT id, parent_id, original_date, privacy, language, text, sensitive, posted FROM %s WHERE id = ?",
		r.table)
	posts, err := r.list(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, nil
	}
	return posts[0], nil
}

// Exists checks if a post with the given id exists
func (r *postRepo) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE id = ?)", r.table)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&exists)
	return exists, err
}

// ListByState retrieves all posts in the given publish state, ascending id
func (r *postRepo) ListByState(ctx context.Context, state models.PublishState) ([]*models.Post, error) {
	query := fmt.Sprintf(
		"SELECT id, parent_id, original_date, privacy, language, text, sensitive, posted FROM %s WHERE posted = ? ORDER BY id",
		r.table)
	return r.list(ctx, query, state.Column())
}

// ListRootsByState retrieves top-level posts in the given state, ascending id
func (r *postRepo) ListRootsByState(ctx context.Context, state models.PublishState) ([]*models.Post, error) {
	query := fmt.Sprintf(
		"SELECT id, parent_id, original_date, privacy, language, text, sensitive, posted FROM %s WHERE posted = ? AND parent_id = 0 ORDER BY id",
		r.table)
	return r.list(ctx, query, state.Column())
}

// ListChildrenByState retrieves direct replies to a post, ascending id
func (r *postRepo) ListChildrenByState(ctx context.Context, parentID int64, state models.PublishState) ([]*models.Post, error) {
	query := fmt.Sprintf(
		"SELECT id, parent_id, original_date, privacy, language, text, sensitive, posted FROM %s WHERE posted = ? AND parent_id = ? ORDER BY id",
		r.table)
	return r.list(ctx, query, state.Column(), parentID)
}

// SetPublishState updates the posted column of one row and commits
func (r *postRepo) SetPublishState(ctx context.Context, id int64, state models.PublishState) error {
	query := fmt.Sprintf("UPDATE %s SET posted = ? WHERE id = ?", r.table)
	_, err := r.db.ExecContext(ctx, query, state.Column(), id)
	return err
}

// Count returns the total number of imported posts
func (r *postRepo) Count(ctx context.Context) (int, error) {
	return r.scalar(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", r.table))
}

// CountPushed returns the number of posts no longer unpublished
func (r *postRepo) CountPushed(ctx context.Context) (int, error) {
	return r.scalar(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE posted != '0'", r.table))
}

// CountPartial returns the number of partially published posts
func (r *postRepo) CountPartial(ctx context.Context) (int, error) {
	return r.scalar(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE posted = '2'", r.table))
}

// CountLongerThan returns the number of posts whose text exceeds length
func (r *postRepo) CountLongerThan(ctx context.Context, length int) (int, error) {
	return r.scalar(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE length(text) > ?", r.table), length)
}

func (r *postRepo) list(ctx context.Context, query string, args ...interface{}) ([]*models.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		var post models.Post
		var visibility, posted string
		var sensitive int
		err := rows.Scan(&post.ID, &post.ParentID, &post.OriginalDate,
			&visibility, &post.Language, &post.Text, &sensitive, &posted)
		if err != nil {
			return nil, err
		}
		post.Visibility = models.Visibility(visibility)
		post.Sensitive = sensitive != 0
		post.Posted = models.ParsePublishState(posted)
		posts = append(posts, &post)
	}
	return posts, rows.Err()
}

func (r *postRepo) scalar(ctx context.Context, query string, args ...interface{}) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
