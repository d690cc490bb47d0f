package mocks

import (
	"context"
	"io"
	"strconv"

	"github.com/archive-evacuator/internal/mastodon"
)

// MockClient is a scripted implementation of the publisher's API client.
// Queued ids are consumed in call order; when the queue runs dry, ids
// continue from an incrementing counter.
type MockClient struct {
	StatusIDQueue []string
	MediaIDQueue  []string
	CreateError   error
	UploadError   error

	Statuses []mastodon.StatusParams
	Uploads  []string

	counter int
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) CreateStatus(ctx context.Context, params mastodon.StatusParams) (string, error) {
	if m.CreateError != nil {
		return "", m.CreateError
	}
	m.Statuses = append(m.Statuses, params)
	return m.nextID(&m.StatusIDQueue), nil
}

func (m *MockClient) UploadMedia(ctx context.Context, file io.Reader, filename string) (string, error) {
	if m.UploadError != nil {
		return "", m.UploadError
	}
	io.Copy(io.Discard, file)
	m.Uploads = append(m.Uploads, filename)
	return m.nextID(&m.MediaIDQueue), nil
}

func (m *MockClient) nextID(queue *[]string) string {
	if len(*queue) > 0 {
		id := (*queue)[0]
		*queue = (*queue)[1:]
		return id
	}
	m.counter++
	return strconv.Itoa(1000 + m.counter)
}
