package domain

import "time"

// MaxPostTextLength bounds the text of a post and is enforced before any
// row is written.
const MaxPostTextLength = 500

// Post is a short text/image publication. Likes is a set of user ids and
// Replies is append-only in insertion (chronological) order. AuthorID never
// changes after creation.
type Post struct {
	ID        string
	AuthorID  string
	Text      string
	ImageRef  string
	Likes     []string
	Replies   []Reply
	CreatedAt time.Time
}

// Reply is embedded in its parent post. The author fields are a snapshot
// taken at reply time and are not kept in sync with later profile edits.
type Reply struct {
	AuthorID       string
	AuthorUsername string
	AuthorImageRef string
	Text           string
	CreatedAt      time.Time
}
