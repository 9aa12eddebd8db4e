package social

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the platform reports the resource missing.
	ErrNotFound = errors.New("social: resource not found")
	// ErrUnavailable wraps transport failures, timeouts and unexpected statuses.
	ErrUnavailable = errors.New("social: upstream unavailable")
)

const (
	ReferenceReplied = "replied_to"
	ReferenceQuoted  = "quoted"
	ReferenceRetweet = "retweeted"
)

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type ReferencedPost struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type PublicMetrics struct {
	LikeCount    int64 `json:"like_count"`
	RetweetCount int64 `json:"retweet_count"`
	ReplyCount   int64 `json:"reply_count"`
	QuoteCount   int64 `json:"quote_count"`
}

type Post struct {
	ID              string           `json:"id"`
	Text            string           `json:"text"`
	AuthorID        string           `json:"author_id"`
	CreatedAt       time.Time        `json:"created_at"`
	ReferencedPosts []ReferencedPost `json:"referenced_tweets,omitempty"`
	PublicMetrics   PublicMetrics    `json:"public_metrics"`
}

// FirstReference returns the first referenced post entry, if any.
func (p Post) FirstReference() (ReferencedPost, bool) {
	if len(p.ReferencedPosts) == 0 {
		return ReferencedPost{}, false
	}
	return p.ReferencedPosts[0], true
}

// Quotes reports whether the post quotes the given post id.
func (p Post) Quotes(postID string) bool {
	for _, ref := range p.ReferencedPosts {
		if ref.Type == ReferenceQuoted && ref.ID == postID {
			return true
		}
	}
	return false
}

// SearchResult is one page of recent-search results with expanded authors.
type SearchResult struct {
	Posts []Post
	Users map[string]User
}

// Author resolves a post's author from the expansion payload.
func (r *SearchResult) Author(p Post) (User, bool) {
	if r == nil || r.Users == nil {
		return User{}, false
	}
	u, ok := r.Users[p.AuthorID]
	return u, ok
}
