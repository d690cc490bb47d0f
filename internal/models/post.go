package models

// Visibility is the audience of a published status.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
	VisibilityDirect  Visibility = "direct"
)

// Post is one imported social-media post.
//
// ID is the source-provided identifier: the post timestamp in epoch seconds
// for Facebook, the numeric suffix of the ActivityPub object URL for
// Mastodon. Ascending ID equals ascending original posting time for both.
type Post struct {
	ID           int64        `db:"id"`
	ParentID     int64        `db:"parent_id"` // 0 if top-level; Mastodon source only
	OriginalDate int64        `db:"original_date"`
	Visibility   Visibility   `db:"privacy"`
	Language     string       `db:"language"`
	Text         string       `db:"text"`
	Sensitive    bool         `db:"sensitive"`
	Posted       PublishState `db:"posted"`
}

// Media is one attachment belonging to a Post. URI is a path relative to the
// export directory (Facebook) or a remote URL (Mastodon).
type Media struct {
	ID     int64        `db:"id"`
	PostID int64        `db:"post_id"`
	URI    string       `db:"uri"`
	Posted PublishState `db:"posted"`
}
