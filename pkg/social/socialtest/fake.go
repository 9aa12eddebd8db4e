// Package socialtest provides an in-memory social.Client for tests.
package socialtest

import (
	"context"
	"strings"
	"sync"
	"time"

	"anoa.com/bountyboard/pkg/social"
)

type Fake struct {
	mu sync.Mutex

	Users       map[string]*social.User // keyed by lower-case username
	UserErrs    map[string]error
	Followers   map[string]struct{}
	FollowerErr error
	Posts       map[string]*social.Post
	PostErr     error
	Search      *social.SearchResult
	SearchErr   error
	Timelines   map[string][]social.Post // keyed by user id
	TimelineErr map[string]error

	SearchQueries []string
	UserLookups   []string
}

var _ social.Client = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		Users:       map[string]*social.User{},
		UserErrs:    map[string]error{},
		Posts:       map[string]*social.Post{},
		Timelines:   map[string][]social.Post{},
		TimelineErr: map[string]error{},
	}
}

// AddUser registers a user and returns it.
func (f *Fake) AddUser(id, username, name string, created time.Time) *social.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &social.User{ID: id, Username: username, Name: name, CreatedAt: created}
	f.Users[strings.ToLower(username)] = u
	return u
}

func (f *Fake) LookupUserByUsername(ctx context.Context, username string) (*social.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.ToLower(strings.TrimPrefix(username, "@"))
	f.UserLookups = append(f.UserLookups, key)
	if err, ok := f.UserErrs[key]; ok {
		return nil, err
	}
	u, ok := f.Users[key]
	if !ok {
		return nil, social.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *Fake) ListFollowerIDs(ctx context.Context, userID string, max int) (map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FollowerErr != nil {
		return nil, f.FollowerErr
	}
	out := make(map[string]struct{}, len(f.Followers))
	for id := range f.Followers {
		out[id] = struct{}{}
	}
	return out, nil
}

func (f *Fake) LookupPost(ctx context.Context, postID string) (*social.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PostErr != nil {
		return nil, f.PostErr
	}
	p, ok := f.Posts[postID]
	if !ok {
		return nil, social.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (f *Fake) SearchRecent(ctx context.Context, query string, maxResults int) (*social.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SearchQueries = append(f.SearchQueries, query)
	if f.SearchErr != nil {
		return nil, f.SearchErr
	}
	if f.Search == nil {
		return &social.SearchResult{Users: map[string]social.User{}}, nil
	}
	return f.Search, nil
}

func (f *Fake) UserPostsSince(ctx context.Context, userID string, since time.Time) ([]social.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.TimelineErr[userID]; ok {
		return nil, err
	}
	var out []social.Post
	for _, p := range f.Timelines[userID] {
		if p.CreatedAt.IsZero() || !p.CreatedAt.Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}
