package normalizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/archive-evacuator/internal/database"
	"github.com/archive-evacuator/internal/models"
	"github.com/archive-evacuator/internal/repository"
	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/charmap"
)

// postFilePrefix is the fixed name prefix Facebook gives the posts file
// inside an export.
const postFilePrefix = "your_posts"

// maxAttachments is the attachment cap per post; the remote service accepts
// at most four media per status.
const maxAttachments = 4

// fbRecord is one entry of the Facebook export JSON array.
type fbRecord struct {
	Timestamp int64 `json:"timestamp"`
	Data      []struct {
		Post string `json:"post"`
	} `json:"data"`
	Attachments []struct {
		Data []struct {
			Media *struct {
				URI string `json:"uri"`
			} `json:"media"`
			ExternalContext *struct {
				URL string `json:"url"`
			} `json:"external_context"`
		} `json:"data"`
	} `json:"attachments"`
}

// Facebook normalizes a Facebook export directory into the ledger.
type Facebook struct {
	posts    repository.PostRepository
	media    repository.MediaRepository
	dir      string
	postFile string
	log      zerolog.Logger
}

// NewFacebook locates the posts file inside the export directory. More than
// one candidate is a configuration error; none is only a warning, and Run
// fails if called anyway.
func NewFacebook(repos repository.SourceRepos, dir string, log zerolog.Logger) (*Facebook, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("facebook export dir %s does not exist", dir)
	}

	n := &Facebook{
		posts: repos.Posts,
		media: repos.Media,
		dir:   dir,
		log:   log.With().Str("component", "facebook-normalizer").Logger(),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read facebook export dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), postFilePrefix) {
			continue
		}
		if n.postFile != "" {
			return nil, fmt.Errorf("more than one facebook posts file: %s found when %s exists", entry.Name(), n.postFile)
		}
		n.postFile = entry.Name()
		n.log.Info().Str("file", n.postFile).Msg("Facebook posts file detected")
	}
	if n.postFile == "" {
		n.log.Warn().Str("dir", dir).Msg("Facebook posts file not detected")
	}

	return n, nil
}

// Run reads the export and inserts canonical post and media rows.
func (n *Facebook) Run(ctx context.Context) (Result, error) {
	var result Result

	if n.postFile == "" {
		return result, fmt.Errorf("facebook posts file not detected in %s", n.dir)
	}

	raw, err := os.ReadFile(filepath.Join(n.dir, n.postFile))
	if err != nil {
		return result, fmt.Errorf("failed to read facebook posts file: %w", err)
	}

	var records []fbRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return result, fmt.Errorf("failed to parse facebook posts file: %w", err)
	}

	for _, record := range records {
		if _, err := n.importRecord(ctx, record, &result); err != nil {
			return result, err
		}
	}

	n.log.Info().Int("posts", result.Posts).Int("media", result.Media).Msg("Facebook import finished")
	return result, nil
}

// importRecord handles one export record: repair the text, register up to
// four attachments, fold external links into the body, then insert the post.
// A returned error is fatal for the whole run.
func (n *Facebook) importRecord(ctx context.Context, record fbRecord, result *Result) (Outcome, error) {
	when := time.Unix(record.Timestamp, 0).Format("02-01-2006 15:04:05")

	var text string
	if len(record.Data) > 0 && record.Data[0].Post != "" {
		text = repairEncoding(record.Data[0].Post)
	}

	// Acceptance rule: no text and no attachments means nothing to migrate
	if text == "" && len(record.Attachments) == 0 {
		return OutcomeSkipped, nil
	}
	result.Posts++

	attached := 0
	if len(record.Attachments) > 0 {
		for _, attachment := range record.Attachments[0].Data {
			if attachment.Media != nil {
				if attached > maxAttachments-1 {
					n.log.Warn().Str("post", when).Msgf("Post has more than %d attachments, trimmed to %d", maxAttachments, maxAttachments)
					break
				}
				// Export uris carry the archive-internal prefix up to "posts/"
				_, uri, found := strings.Cut(attachment.Media.URI, "posts/")
				if found && uri != "" {
					err := n.media.Insert(ctx, &models.Media{PostID: record.Timestamp, URI: uri})
					switch {
					case errors.Is(err, database.ErrAlreadyExists):
						n.log.Warn().Str("uri", uri).Msg("Attachment already exists")
					case err != nil:
						return OutcomeSkipped, fmt.Errorf("failed to insert attachment %s: %w", uri, err)
					default:
						n.log.Info().Str("uri", uri).Str("post", when).Msg("Added attachment")
					}
					result.Media++
					attached++
				}
			}
			if attachment.ExternalContext != nil {
				link := attachment.ExternalContext.URL
				if link != "" && !strings.Contains(text, link) {
					text += "\n" + link
					n.log.Warn().Str("link", link).Str("post", when).Msg("Added link to post body")
				}
			}
		}
	}

	post := &models.Post{
		ID:           record.Timestamp,
		OriginalDate: record.Timestamp,
		Text:         text,
	}
	err := n.posts.Insert(ctx, post)
	switch {
	case errors.Is(err, database.ErrAlreadyExists):
		n.log.Warn().Str("post", when).Msg("Post already exists")
		return OutcomeAlreadyImported, nil
	case err != nil:
		return OutcomeSkipped, fmt.Errorf("failed to insert post from %s: %w", when, err)
	default:
		n.log.Info().Str("post", when).Msg("Inserted post")
	}
	return OutcomeInserted, nil
}

// repairEncoding reinterprets a mis-encoded export string as UTF-8. The
// export writes UTF-8 bytes escaped as if they were Latin-1 code points, so
// mapping each rune back to its byte recovers the original text. Strings
// that do not survive the round trip are returned unchanged.
func repairEncoding(s string) string {
	fixed, err := charmap.ISO8859_1.NewEncoder().String(s)
	if err != nil || !utf8.ValidString(fixed) {
		return s
	}
	return fixed
}
