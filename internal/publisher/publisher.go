// Package publisher drives unpublished ledger rows through the remote API:
// media first, then the status text, segmented into a numbered reply chain
// when it exceeds the instance size limit, with thread reconstruction for
// sources that carry reply forests.
package publisher

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/archive-evacuator/internal/mastodon"
	"github.com/archive-evacuator/internal/models"
	"github.com/archive-evacuator/internal/repository"
	"github.com/rs/zerolog"
)

// maxMediaPerStatus is the platform limit on attachments per status.
const maxMediaPerStatus = 4

// Client is the slice of the API client the engine needs.
type Client interface {
	CreateStatus(ctx context.Context, params mastodon.StatusParams) (string, error)
	UploadMedia(ctx context.Context, file io.Reader, filename string) (string, error)
}

// MediaOpener resolves a stored attachment uri to its bytes and a filename.
type MediaOpener func(ctx context.Context, uri string) (io.ReadCloser, string, error)

// Options control one publication pass.
type Options struct {
	// TextSizeLimit is the instance's maximum status length.
	TextSizeLimit int
	// DefaultVisibility applies to rows that carry no audience of their
	// own (the Facebook source).
	DefaultVisibility models.Visibility
	// DryRun exercises every decision without network calls or state
	// writes.
	DryRun bool
	// Retry selects partially published rows instead of unpublished ones
	// and reuses media ids already stored.
	Retry bool
	// Threaded walks the parent/child forest depth-first, anchoring each
	// child to the id its parent produced (the Mastodon source).
	Threaded bool
	// DatePrefix prepends the original posting date to the status text
	// (the Facebook source, whose timeline otherwise loses its dates).
	DatePrefix bool
	// DateTag posts a trailing reply with day/month/year hashtags under
	// every fully published top-level thread.
	DateTag bool
}

// Engine is the publication engine for one source.
type Engine struct {
	posts  repository.PostRepository
	media  repository.MediaRepository
	client Client
	open   MediaOpener
	opts   Options
	log    zerolog.Logger
}

// New creates a publication engine
func New(repos repository.SourceRepos, client Client, open MediaOpener, opts Options, log zerolog.Logger) *Engine {
	return &Engine{
		posts:  repos.Posts,
		media:  repos.Media,
		client: client,
		open:   open,
		opts:   opts,
		log:    log.With().Str("component", "publisher").Logger(),
	}
}

// work is one stack entry of the thread traversal.
type work struct {
	post   *models.Post
	anchor string
}

// Run publishes every selectable row and returns the remote status ids the
// pass produced, in posting order.
func (e *Engine) Run(ctx context.Context) ([]string, error) {
	selectState := models.Unpublished()
	if e.opts.Retry {
		selectState = models.Partial()
	}

	var stack []work
	if e.opts.Threaded {
		seeds, err := e.threadSeeds(ctx, selectState)
		if err != nil {
			return nil, err
		}
		stack = seeds
	} else {
		posts, err := e.posts.ListByState(ctx, selectState)
		if err != nil {
			return nil, err
		}
		for i := len(posts) - 1; i >= 0; i-- {
			stack = append(stack, work{post: posts[i]})
		}
	}

	var published []string
	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		ids, state, err := e.publishPost(ctx, item.post, item.anchor)
		if err != nil {
			return published, err
		}
		published = append(published, ids...)

		if !e.opts.Threaded {
			continue
		}

		if e.opts.DateTag && item.post.ParentID == 0 && state.Kind == models.StatePublished {
			if err := e.publishDateTag(ctx, item.post, state.RemoteID); err != nil {
				return published, err
			}
		}

		// A child is attempted even when the parent only partially
		// published; it anchors to whatever marker the parent stored.
		children, err := e.posts.ListChildrenByState(ctx, item.post.ID, selectState)
		if err != nil {
			return published, err
		}
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, work{post: children[i], anchor: state.Anchor()})
		}
	}
	return published, nil
}

// threadSeeds collects the traversal starting points in reverse id order so
// the stack pops ascending. Besides top-level rows this picks up selectable
// rows whose parent is not itself selectable (a partial reply under an
// already-published parent), anchoring them to the parent's stored state.
func (e *Engine) threadSeeds(ctx context.Context, selectState models.PublishState) ([]work, error) {
	posts, err := e.posts.ListByState(ctx, selectState)
	if err != nil {
		return nil, err
	}
	selectable := make(map[int64]bool, len(posts))
	for _, post := range posts {
		selectable[post.ID] = true
	}

	var seeds []work
	for i := len(posts) - 1; i >= 0; i-- {
		post := posts[i]
		if post.ParentID == 0 {
			seeds = append(seeds, work{post: post})
			continue
		}
		if selectable[post.ParentID] {
			continue // reached through the traversal
		}
		parent, err := e.posts.Get(ctx, post.ParentID)
		if err != nil {
			return nil, err
		}
		anchor := ""
		if parent != nil {
			anchor = parent.Posted.Anchor()
		}
		seeds = append(seeds, work{post: post, anchor: anchor})
	}
	return seeds, nil
}

// publishPost runs the per-post publish algorithm and returns the remote
// ids of every status it created plus the final publish state it stored.
func (e *Engine) publishPost(ctx context.Context, post *models.Post, anchor string) ([]string, models.PublishState, error) {
	mediaIDs, err := e.collectMedia(ctx, post)
	if err != nil {
		return nil, models.Unpublished(), err
	}

	if dropped := len(mediaIDs) - maxMediaPerStatus; dropped > 0 {
		e.log.Warn().Int64("post", post.ID).Int("dropped", dropped).
			Msgf("More than %d media attached, extra files dropped", maxMediaPerStatus)
		mediaIDs = mediaIDs[:maxMediaPerStatus]
	}

	text := post.Text
	if e.opts.DatePrefix {
		text = time.Unix(post.OriginalDate, 0).Format("02-01-2006 15:04:05") + "\r" + text
	}

	visibility := post.Visibility
	if visibility == "" {
		visibility = e.opts.DefaultVisibility
	}

	base := mastodon.StatusParams{
		Visibility: string(visibility),
		Language:   post.Language,
		Sensitive:  post.Sensitive,
	}

	var ids []string
	switch {
	case text == "" && len(mediaIDs) == 0:
		// Unreachable: the normalizers drop such records
		return nil, models.Unpublished(), fmt.Errorf("post %d has neither text nor media", post.ID)

	// The instance limit counts characters, not bytes
	case text == "" || utf8.RuneCountInString(text) <= e.opts.TextSizeLimit:
		params := base
		params.Status = text
		params.MediaIDs = mediaIDs
		params.InReplyToID = anchor
		id, err := e.client.CreateStatus(ctx, params)
		if err != nil {
			return nil, models.Unpublished(), err
		}
		ids = append(ids, id)

	default:
		chunks := splitStatuses(text, e.opts.TextSizeLimit)
		e.log.Info().Int64("post", post.ID).Int("chunks", len(chunks)).Msg("Segmenting long post")
		replyTo := anchor
		for i, chunk := range chunks {
			params := base
			params.Status = chunk
			params.InReplyToID = replyTo
			if i == 0 {
				params.MediaIDs = mediaIDs
			}
			id, err := e.client.CreateStatus(ctx, params)
			if err != nil {
				return ids, models.Unpublished(), err
			}
			ids = append(ids, id)
			replyTo = id
		}
	}

	state := models.Published(ids[0])
	for _, id := range ids {
		if id == mastodon.NoRemoteID {
			state = models.Partial()
			break
		}
	}

	if !e.opts.DryRun {
		if err := e.posts.SetPublishState(ctx, post.ID, state); err != nil {
			return ids, state, err
		}
	}

	e.log.Info().Int64("post", post.ID).Str("state", state.Column()).Bool("dry_run", e.opts.DryRun).Msg("Post published")
	return ids, state, nil
}

// collectMedia uploads the post's unsent attachments and, under retry,
// prepends the ids of attachments uploaded by an earlier pass. Each fresh
// id is written back to its row before the next upload starts.
func (e *Engine) collectMedia(ctx context.Context, post *models.Post) ([]string, error) {
	var mediaIDs []string

	if e.opts.Retry {
		sent, err := e.media.ListSentForPost(ctx, post.ID)
		if err != nil {
			return nil, err
		}
		for _, media := range sent {
			mediaIDs = append(mediaIDs, media.Posted.Column())
		}
	}

	unsent, err := e.media.ListUnsentForPost(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	for _, media := range unsent {
		file, filename, err := e.open(ctx, media.URI)
		if err != nil {
			return nil, fmt.Errorf("failed to open media %s: %w", media.URI, err)
		}
		id, err := e.client.UploadMedia(ctx, file, filename)
		file.Close()
		if err != nil {
			return nil, err
		}
		e.log.Info().Str("uri", media.URI).Str("media_id", id).Bool("dry_run", e.opts.DryRun).Msg("Uploaded media")
		if !e.opts.DryRun {
			if err := e.media.SetPublishState(ctx, media.ID, models.Published(id)); err != nil {
				return nil, err
			}
		}
		mediaIDs = append(mediaIDs, id)
	}
	return mediaIDs, nil
}

// publishDateTag posts the trailing date reply under a fully published
// top-level thread: the post's first words plus day, month and year
// hashtags, so the republished timeline stays searchable by original date.
func (e *Engine) publishDateTag(ctx context.Context, post *models.Post, anchor string) error {
	words := strings.Fields(post.Text)
	if len(words) > 8 {
		words = words[:8]
	}
	when := time.Unix(post.OriginalDate, 0).UTC()
	tag := fmt.Sprintf("%s\n#%02d #%s #%d", strings.Join(words, " "), when.Day(), when.Month(), when.Year())

	visibility := post.Visibility
	if visibility == "" {
		visibility = e.opts.DefaultVisibility
	}
	id, err := e.client.CreateStatus(ctx, mastodon.StatusParams{
		Status:      tag,
		Visibility:  string(visibility),
		Language:    post.Language,
		InReplyToID: anchor,
	})
	if err != nil {
		return err
	}
	e.log.Info().Int64("post", post.ID).Str("status_id", id).Msg("Posted date tag")
	return nil
}
