package normalizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/archive-evacuator/internal/database"
	"github.com/archive-evacuator/internal/models"
	"github.com/archive-evacuator/internal/repository"
	"github.com/rs/zerolog"
)

// outboxFile is the fixed name of the ActivityPub outbox inside a Mastodon
// export.
const outboxFile = "outbox.json"

// publishedLayout is the outbox timestamp format, always UTC.
const publishedLayout = "2006-01-02T15:04:05Z"

// activity is one entry of orderedItems. Object stays raw until the type
// check: Announce activities carry a bare URL string there, not an object.
type activity struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	To        []string        `json:"to"`
	CC        []string        `json:"cc"`
	Published string          `json:"published"`
	Object    json.RawMessage `json:"object"`
}

// activityObject is the Create activity payload.
type activityObject struct {
	ID         string          `json:"id"`
	InReplyTo  string          `json:"inReplyTo"`
	Sensitive  bool            `json:"sensitive"`
	ContentMap json.RawMessage `json:"contentMap"`
	Attachment []struct {
		URL string `json:"url"`
	} `json:"attachment"`
}

// Mastodon normalizes an ActivityPub outbox export into the ledger.
type Mastodon struct {
	posts          repository.PostRepository
	media          repository.MediaRepository
	outboxPath     string
	filterMentions bool
	log            zerolog.Logger
}

// NewMastodon checks the export directory holds an outbox file. Absence is
// fatal, unlike the Facebook case: the outbox name is fixed, so a missing
// file cannot mean anything but a wrong directory.
func NewMastodon(repos repository.SourceRepos, dir string, filterMentions bool, log zerolog.Logger) (*Mastodon, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("mastodon export dir %s does not exist", dir)
	}
	outboxPath := filepath.Join(dir, outboxFile)
	if _, err := os.Stat(outboxPath); err != nil {
		return nil, fmt.Errorf("mastodon outbox file %s does not exist", outboxPath)
	}

	return &Mastodon{
		posts:          repos.Posts,
		media:          repos.Media,
		outboxPath:     outboxPath,
		filterMentions: filterMentions,
		log:            log.With().Str("component", "mastodon-normalizer").Logger(),
	}, nil
}

// Run reads the outbox and inserts canonical post and media rows. The outbox
// lists parents before children, so a single pass resolves every local
// thread; replies whose parent never made it into the ledger are fragments
// of foreign threads and are dropped.
func (m *Mastodon) Run(ctx context.Context) (Result, error) {
	var result Result

	raw, err := os.ReadFile(m.outboxPath)
	if err != nil {
		return result, fmt.Errorf("failed to read outbox: %w", err)
	}

	var outbox struct {
		OrderedItems []activity `json:"orderedItems"`
	}
	if err := json.Unmarshal(raw, &outbox); err != nil {
		return result, fmt.Errorf("failed to parse outbox: %w", err)
	}

	for _, item := range outbox.OrderedItems {
		if _, err := m.importActivity(ctx, item, &result); err != nil {
			return result, err
		}
	}

	m.log.Info().Int("posts", result.Posts).Int("media", result.Media).Msg("Mastodon import finished")
	return result, nil
}

// importActivity handles one outbox activity. A returned error is fatal for
// the whole run; every acceptance-rule violation is a logged skip.
func (m *Mastodon) importActivity(ctx context.Context, item activity, result *Result) (Outcome, error) {
	if item.Type == "Announce" {
		m.log.Warn().Str("activity", item.ID).Msg("Skip reshare")
		return OutcomeSkipped, nil
	}

	var object activityObject
	if err := json.Unmarshal(item.Object, &object); err != nil {
		m.log.Warn().Str("activity", item.ID).Err(err).Msg("Skip activity with malformed object")
		return OutcomeSkipped, nil
	}

	visibility := models.VisibilityPrivate
	if len(item.To) == 0 {
		visibility = models.VisibilityDirect
	} else if strings.HasSuffix(item.To[0], "Public") {
		visibility = models.VisibilityPublic
	}

	prefix, suffix := splitObjectURL(object.ID)
	postID, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil {
		m.log.Warn().Str("activity", item.ID).Msg("Skip activity with non-numeric object id")
		return OutcomeSkipped, nil
	}

	var parentID int64
	if object.InReplyTo != "" {
		parentPrefix, parentSuffix := splitObjectURL(object.InReplyTo)
		if parentPrefix != prefix {
			m.log.Warn().Str("activity", item.ID).Msg("Skip reply to a foreign post")
			return OutcomeSkipped, nil
		}
		parentID, err = strconv.ParseInt(parentSuffix, 10, 64)
		if err != nil {
			m.log.Warn().Str("activity", item.ID).Msg("Skip reply with non-numeric parent id")
			return OutcomeSkipped, nil
		}
		exists, err := m.posts.Exists(ctx, parentID)
		if err != nil {
			return OutcomeSkipped, fmt.Errorf("failed to look up parent %d: %w", parentID, err)
		}
		if !exists {
			m.log.Warn().Str("activity", item.ID).Msg("Skip fragment of an external thread")
			return OutcomeSkipped, nil
		}
	} else if len(item.CC) > 1 {
		m.log.Warn().Str("activity", item.ID).Msg("Skip post with ambiguous multi-recipient audience")
		return OutcomeSkipped, nil
	}

	published := item.Published
	if published == "" {
		published = "1900-01-01T00:00:00Z"
	}
	publishedAt, err := time.ParseInLocation(publishedLayout, published, time.UTC)
	if err != nil {
		m.log.Warn().Str("activity", item.ID).Str("published", item.Published).Msg("Skip activity with unparsable date")
		return OutcomeSkipped, nil
	}

	language, body := firstContentEntry(object.ContentMap)
	text := ""
	if body != "" {
		text = htmlToText(body)
	}
	if text != "" && m.filterMentions && text[0] == '@' {
		// The export tool leaks the last reply's mention into some bodies
		m.log.Warn().Str("activity", item.ID).Msg("Skip post starting with a mention")
		return OutcomeSkipped, nil
	}

	// Acceptance rule: no text and no attachments means nothing to migrate
	if text == "" && len(object.Attachment) == 0 {
		return OutcomeSkipped, nil
	}
	result.Posts++

	for _, attachment := range object.Attachment {
		if attachment.URL == "" {
			continue
		}
		err := m.media.Insert(ctx, &models.Media{PostID: postID, URI: attachment.URL})
		switch {
		case errors.Is(err, database.ErrAlreadyExists):
			m.log.Warn().Str("uri", attachment.URL).Msg("Attachment already exists")
		case err != nil:
			return OutcomeSkipped, fmt.Errorf("failed to insert attachment %s: %w", attachment.URL, err)
		default:
			m.log.Info().Str("uri", attachment.URL).Int64("post", postID).Msg("Added attachment")
		}
		result.Media++
	}

	post := &models.Post{
		ID:           postID,
		ParentID:     parentID,
		OriginalDate: publishedAt.Unix(),
		Visibility:   visibility,
		Language:     language,
		Text:         text,
		Sensitive:    object.Sensitive,
	}
	err = m.posts.Insert(ctx, post)
	switch {
	case errors.Is(err, database.ErrAlreadyExists):
		m.log.Warn().Int64("post", postID).Msg("Post already exists")
		return OutcomeAlreadyImported, nil
	case err != nil:
		return OutcomeSkipped, fmt.Errorf("failed to insert post %d: %w", postID, err)
	default:
		m.log.Info().Int64("post", postID).Msg("Inserted post")
	}
	return OutcomeInserted, nil
}

// splitObjectURL splits an ActivityPub object URL around its trailing path
// segment. Two objects share a prefix exactly when they belong to the same
// local actor's statuses.
func splitObjectURL(url string) (prefix, suffix string) {
	idx := strings.LastIndex(url, "/")
	if idx < 0 {
		return "", url
	}
	return url[:idx], url[idx+1:]
}

// firstContentEntry returns the first language and HTML body of a contentMap
// in document order. encoding/json maps lose ordering, so the first key is
// pulled off the token stream instead.
func firstContentEntry(raw json.RawMessage) (language, body string) {
	if len(raw) == 0 {
		return "", ""
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return "", ""
	}
	tok, err := dec.Token()
	if err != nil {
		return "", ""
	}
	key, ok := tok.(string)
	if !ok {
		return "", ""
	}
	var value string
	if err := dec.Decode(&value); err != nil {
		return key, ""
	}
	return key, value
}
