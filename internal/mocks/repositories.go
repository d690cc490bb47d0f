package mocks

import (
	"context"
	"sort"

	"github.com/archive-evacuator/internal/database"
	"github.com/archive-evacuator/internal/models"
)

// MockPostRepository is an in-memory implementation of PostRepository
type MockPostRepository struct {
	Posts       map[int64]*models.Post
	InsertCalls int
	InsertError error
}

func NewMockPostRepository() *MockPostRepository {
	return &MockPostRepository{Posts: make(map[int64]*models.Post)}
}

func (m *MockPostRepository) Insert(ctx context.Context, post *models.Post) error {
	m.InsertCalls++
	if m.InsertError != nil {
		return m.InsertError
	}
	if _, ok := m.Posts[post.ID]; ok {
		return database.ErrAlreadyExists
	}
	copied := *post
	m.Posts[post.ID] = &copied
	return nil
}

func (m *MockPostRepository) Get(ctx context.Context, id int64) (*models.Post, error) {
	return m.Posts[id], nil
}

func (m *MockPostRepository) Exists(ctx context.Context, id int64) (bool, error) {
	_, ok := m.Posts[id]
	return ok, nil
}

func (m *MockPostRepository) ListByState(ctx context.Context, state models.PublishState) ([]*models.Post, error) {
	return m.filter(func(p *models.Post) bool {
		return p.Posted.Column() == state.Column()
	}), nil
}

func (m *MockPostRepository) ListRootsByState(ctx context.Context, state models.PublishState) ([]*models.Post, error) {
	return m.filter(func(p *models.Post) bool {
		return p.Posted.Column() == state.Column() && p.ParentID == 0
	}), nil
}

func (m *MockPostRepository) ListChildrenByState(ctx context.Context, parentID int64, state models.PublishState) ([]*models.Post, error) {
	return m.filter(func(p *models.Post) bool {
		return p.Posted.Column() == state.Column() && p.ParentID == parentID
	}), nil
}

func (m *MockPostRepository) SetPublishState(ctx context.Context, id int64, state models.PublishState) error {
	if post, ok := m.Posts[id]; ok {
		post.Posted = state
	}
	return nil
}

func (m *MockPostRepository) Count(ctx context.Context) (int, error) {
	return len(m.Posts), nil
}

func (m *MockPostRepository) CountPushed(ctx context.Context) (int, error) {
	return len(m.filter(func(p *models.Post) bool {
		return !p.Posted.IsUnpublished()
	})), nil
}

func (m *MockPostRepository) CountPartial(ctx context.Context) (int, error) {
	return len(m.filter(func(p *models.Post) bool {
		return p.Posted.Kind == models.StatePartial
	})), nil
}

func (m *MockPostRepository) CountLongerThan(ctx context.Context, length int) (int, error) {
	return len(m.filter(func(p *models.Post) bool {
		return len(p.Text) > length
	})), nil
}

func (m *MockPostRepository) filter(keep func(*models.Post) bool) []*models.Post {
	var posts []*models.Post
	for _, post := range m.Posts {
		if keep(post) {
			posts = append(posts, post)
		}
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID < posts[j].ID })
	return posts
}

// MockMediaRepository is an in-memory implementation of MediaRepository
type MockMediaRepository struct {
	Media       []*models.Media
	InsertCalls int
	InsertError error
	nextID      int64
}

func NewMockMediaRepository() *MockMediaRepository {
	return &MockMediaRepository{}
}

func (m *MockMediaRepository) Insert(ctx context.Context, media *models.Media) error {
	m.InsertCalls++
	if m.InsertError != nil {
		return m.InsertError
	}
	for _, existing := range m.Media {
		if existing.PostID == media.PostID && existing.URI == media.URI {
			return database.ErrAlreadyExists
		}
	}
	m.nextID++
	copied := *media
	copied.ID = m.nextID
	m.Media = append(m.Media, &copied)
	return nil
}

func (m *MockMediaRepository) ListUnsentForPost(ctx context.Context, postID int64) ([]*models.Media, error) {
	return m.filter(func(media *models.Media) bool {
		return media.PostID == postID && media.Posted.IsUnpublished()
	}), nil
}

func (m *MockMediaRepository) ListSentForPost(ctx context.Context, postID int64) ([]*models.Media, error) {
	return m.filter(func(media *models.Media) bool {
		return media.PostID == postID && !media.Posted.IsUnpublished()
	}), nil
}

func (m *MockMediaRepository) SetPublishState(ctx context.Context, id int64, state models.PublishState) error {
	for _, media := range m.Media {
		if media.ID == id {
			media.Posted = state
		}
	}
	return nil
}

func (m *MockMediaRepository) Count(ctx context.Context) (int, error) {
	return len(m.Media), nil
}

func (m *MockMediaRepository) CountPushed(ctx context.Context) (int, error) {
	return len(m.filter(func(media *models.Media) bool {
		return !media.Posted.IsUnpublished()
	})), nil
}

func (m *MockMediaRepository) filter(keep func(*models.Media) bool) []*models.Media {
	var medias []*models.Media
	for _, media := range m.Media {
		if keep(media) {
			medias = append(medias, media)
		}
	}
	sort.Slice(medias, func(i, j int) bool { return medias[i].ID < medias[j].ID })
	return medias
}
