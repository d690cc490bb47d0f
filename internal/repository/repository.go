package repository

import (
	"context"

	"github.com/archive-evacuator/internal/database"
	"github.com/archive-evacuator/internal/models"
)

// PostRepository defines the interface for post ledger operations. All list
// methods return rows in ascending id order, which is ascending original
// posting time for both sources.
type PostRepository interface {
	Insert(ctx context.Context, post *models.Post) error
	Get(ctx context.Context, id int64) (*models.Post, error)
	Exists(ctx context.Context, id int64) (bool, error)
	ListByState(ctx context.Context, state models.PublishState) ([]*models.Post, error)
	ListRootsByState(ctx context.Context, state models.PublishState) ([]*models.Post, error)
	ListChildrenByState(ctx context.Context, parentID int64, state models.PublishState) ([]*models.Post, error)
	SetPublishState(ctx context.Context, id int64, state models.PublishState) error
	Count(ctx context.Context) (int, error)
	CountPushed(ctx context.Context) (int, error)
	CountPartial(ctx context.Context) (int, error)
	CountLongerThan(ctx context.Context, length int) (int, error)
}

// MediaRepository defines the interface for attachment ledger operations
type MediaRepository interface {
	Insert(ctx context.Context, media *models.Media) error
	ListUnsentForPost(ctx context.Context, postID int64) ([]*models.Media, error)
	ListSentForPost(ctx context.Context, postID int64) ([]*models.Media, error)
	SetPublishState(ctx context.Context, id int64, state models.PublishState) error
	Count(ctx context.Context) (int, error)
	CountPushed(ctx context.Context) (int, error)
}

// SourceRepos bundles the two repositories of one archive source
type SourceRepos struct {
	Posts PostRepository
	Media MediaRepository
}

// Repositories holds the per-source ledger repositories
type Repositories struct {
	Facebook SourceRepos
	Mastodon SourceRepos
}

// New creates all repositories with the given ledger connection
func New(db *database.DB) *Repositories {
	return &Repositories{
		Facebook: SourceRepos{
			Posts: NewPostRepo(db, "fb_posts"),
			Media: NewMediaRepo(db, "fb_media"),
		},
		Mastodon: SourceRepos{
			Posts: NewPostRepo(db, "mst_posts"),
			Media: NewMediaRepo(db, "mst_media"),
		},
	}
}
