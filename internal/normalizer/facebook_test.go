package normalizer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/archive-evacuator/internal/mocks"
	"github.com/archive-evacuator/internal/repository"
	"github.com/rs/zerolog"
)

const fbExport = `[
  {
    "timestamp": 1700000000,
    "data": [{"post": "hello"}]
  },
  {
    "timestamp": 1700000100,
    "data": [{"post": "check this out"}],
    "attachments": [
      {"data": [
        {"external_context": {"url": "https://example.com/article"}}
      ]}
    ]
  },
  {
    "timestamp": 1700000200,
    "data": [],
    "attachments": [
      {"data": [
        {"media": {"uri": "media/posts/a.jpg"}},
        {"media": {"uri": "media/posts/b.jpg"}},
        {"media": {"uri": "media/posts/c.jpg"}},
        {"media": {"uri": "media/posts/d.jpg"}},
        {"media": {"uri": "media/posts/e.jpg"}}
      ]}
    ]
  },
  {
    "timestamp": 1700000300,
    "data": []
  }
]`

func writeExport(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	return dir
}

func newFacebookFixture(t *testing.T, content string) (*Facebook, *mocks.MockPostRepository, *mocks.MockMediaRepository) {
	t.Helper()
	dir := writeExport(t, "your_posts_1.json", content)
	posts := mocks.NewMockPostRepository()
	media := mocks.NewMockMediaRepository()
	n, err := NewFacebook(repository.SourceRepos{Posts: posts, Media: media}, dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewFacebook failed: %v", err)
	}
	return n, posts, media
}

func TestFacebookImport(t *testing.T) {
	n, posts, _ := newFacebookFixture(t, fbExport)

	result, err := n.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// The record with neither text nor attachments is dropped
	if result.Posts != 3 {
		t.Errorf("Expected 3 accepted posts, got %d", result.Posts)
	}
	if len(posts.Posts) != 3 {
		t.Errorf("Expected 3 post rows, got %d", len(posts.Posts))
	}

	plain := posts.Posts[1700000000]
	if plain == nil || plain.Text != "hello" {
		t.Fatalf("Expected post 1700000000 with text 'hello', got %+v", plain)
	}
	if plain.OriginalDate != 1700000000 {
		t.Errorf("Expected original date to mirror the timestamp, got %d", plain.OriginalDate)
	}
	if plain.Visibility != "" {
		t.Errorf("Facebook posts carry no audience, got %q", plain.Visibility)
	}
}

func TestFacebookImport_AppendsExternalLink(t *testing.T) {
	n, posts, _ := newFacebookFixture(t, fbExport)

	if _, err := n.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	got := posts.Posts[1700000100].Text
	want := "check this out\nhttps://example.com/article"
	if got != want {
		t.Errorf("Expected link appended to body, got %q", got)
	}
}

func TestFacebookImport_CapsAttachmentsAtFour(t *testing.T) {
	n, _, media := newFacebookFixture(t, fbExport)

	result, err := n.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Media != 4 {
		t.Errorf("Expected 4 media accepted, got %d", result.Media)
	}
	if len(media.Media) != 4 {
		t.Fatalf("Expected 4 media rows, got %d", len(media.Media))
	}
	// The archive-internal path prefix is stripped on import
	if media.Media[0].URI != "a.jpg" {
		t.Errorf("Expected stripped uri 'a.jpg', got %q", media.Media[0].URI)
	}
	if media.Media[0].PostID != 1700000200 {
		t.Errorf("Expected media bound to post 1700000200, got %d", media.Media[0].PostID)
	}
}

func TestFacebookImport_Idempotent(t *testing.T) {
	n, posts, media := newFacebookFixture(t, fbExport)
	ctx := context.Background()

	first, err := n.Run(ctx)
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	second, err := n.Run(ctx)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	if first != second {
		t.Errorf("Re-run changed the result: first %+v, second %+v", first, second)
	}
	if len(posts.Posts) != 3 || len(media.Media) != 4 {
		t.Errorf("Re-run changed the ledger: %d posts, %d media", len(posts.Posts), len(media.Media))
	}
}

func TestNewFacebook_MultiplePostFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"your_posts_1.json", "your_posts_2.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("[]"), 0o644); err != nil {
			t.Fatalf("Failed to write fixture: %v", err)
		}
	}
	_, err := NewFacebook(repository.SourceRepos{Posts: mocks.NewMockPostRepository(), Media: mocks.NewMockMediaRepository()}, dir, zerolog.Nop())
	if err == nil {
		t.Fatal("Expected an error for multiple posts files")
	}
}

func TestNewFacebook_MissingPostFile(t *testing.T) {
	dir := t.TempDir()
	n, err := NewFacebook(repository.SourceRepos{Posts: mocks.NewMockPostRepository(), Media: mocks.NewMockMediaRepository()}, dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("A missing posts file must not fail construction: %v", err)
	}
	if _, err := n.Run(context.Background()); err == nil {
		t.Fatal("Expected Run to fail without a posts file")
	}
}

func TestRepairEncoding(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "mis-encoded accent", input: "JosÃ©", want: "José"},
		{name: "plain ascii", input: "hello", want: "hello"},
		{name: "already utf8 stays put", input: "José", want: "José"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := repairEncoding(tt.input); got != tt.want {
				t.Errorf("repairEncoding(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
