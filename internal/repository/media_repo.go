package repository

import (
	"context"
	"fmt"

	"github.com/archive-evacuator/internal/database"
	"github.com/archive-evacuator/internal/models"
)

// mediaRepo is the concrete implementation of MediaRepository
type mediaRepo struct {
	db    *database.DB
	table string
}

// NewMediaRepo creates a media repository bound to one source table
func NewMediaRepo(db *database.DB, table string) MediaRepository {
	return &mediaRepo{db: db, table: table}
}

// Insert adds an attachment row; a duplicate (post_id, uri) pair maps to
// database.ErrAlreadyExists.
func (r *mediaRepo) Insert(ctx context.Context, media *models.Media) error {
	query := fmt.Sprintf("INSERT INTO %s (post_id, uri) VALUES (?, ?)", r.table)
	_, err := r.db.ExecContext(ctx, query, media.PostID, media.URI)
	return database.MapConstraintError(err)
}

// ListUnsentForPost retrieves attachments not yet uploaded, ascending id
func (r *mediaRepo) ListUnsentForPost(ctx context.Context, postID int64) ([]*models.Media, error) {
	query := fmt.Sprintf(
		"SELECT id, post_id, uri, posted FROM %s WHERE post_id = ? AND posted = '0' ORDER BY id", r.table)
	return r.list(ctx, query, postID)
}

// ListSentForPost retrieves attachments already carrying a remote id,
// ascending id. A retry pass reuses these ids verbatim.
func (r *mediaRepo) ListSentForPost(ctx context.Context, postID int64) ([]*models.Media, error) {
	query := fmt.Sprintf(
		"SELECT id, post_id, uri, posted FROM %s WHERE post_id = ? AND posted != '0' ORDER BY id", r.table)
	return r.list(ctx, query, postID)
}

// SetPublishState updates the posted column of one row and commits
func (r *mediaRepo) SetPublishState(ctx context.Context, id int64, state models.PublishState) error {
	query := fmt.Sprintf("UPDATE %s SET posted = ? WHERE id = ?", r.table)
	_, err := r.db.ExecContext(ctx, query, state.Column(), id)
	return err
}

// Count returns the total number of imported attachments
func (r *mediaRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", r.table)).Scan(&count)
	return count, err
}

// CountPushed returns the number of attachments already uploaded
func (r *mediaRepo) CountPushed(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE posted != '0'", r.table)).Scan(&count)
	return count, err
}

func (r *mediaRepo) list(ctx context.Context, query string, args ...interface{}) ([]*models.Media, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var medias []*models.Media
	for rows.Next() {
		var media models.Media
		var posted string
		if err := rows.Scan(&media.ID, &media.PostID, &media.URI, &posted); err != nil {
			return nil, err
		}
		media.Posted = models.ParsePublishState(posted)
		medias = append(medias, &media)
	}
	return medias, rows.Err()
}
