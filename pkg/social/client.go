// Package social is a small client for the X API v2 endpoints the bounty
// engine needs. All calls share one rate limiter and every request runs under
// its own timeout, so a slow upstream reads as a failed call.
package social

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://api.twitter.com/2"

// Client is the contract the mention processor and the score aggregator use.
type Client interface {
	LookupUserByUsername(ctx context.Context, username string) (*User, error)
	ListFollowerIDs(ctx context.Context, userID string, max int) (map[string]struct{}, error)
	LookupPost(ctx context.Context, postID string) (*Post, error)
	SearchRecent(ctx context.Context, query string, maxResults int) (*SearchResult, error)
	UserPostsSince(ctx context.Context, userID string, since time.Time) ([]Post, error)
}

type Options struct {
	BaseURL        string
	BearerToken    string
	Timeout        time.Duration
	RatePerSecond  float64
	Burst          int
	HTTPClient     *http.Client
	MaxTimelinePgs int
}

type httpClient struct {
	baseURL        string
	token          string
	timeout        time.Duration
	limiter        *rate.Limiter
	client         *http.Client
	maxTimelinePgs int
}

func NewClient(opts Options) Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 1
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.MaxTimelinePgs <= 0 {
		opts.MaxTimelinePgs = 5
	}

	return &httpClient{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		token:          opts.BearerToken,
		timeout:        opts.Timeout,
		limiter:        rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Burst),
		client:         opts.HTTPClient,
		maxTimelinePgs: opts.MaxTimelinePgs,
	}
}

type apiError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
}

type envelope struct {
	Data     json.RawMessage `json:"data"`
	Includes struct {
		Users []User `json:"users"`
	} `json:"includes"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
	Errors []apiError `json:"errors"`
}

func (c *httpClient) get(ctx context.Context, path string, query url.Values) (*envelope, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", ErrUnavailable, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrUnavailable, path, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", ErrUnavailable, path, resp.StatusCode)
	}

	var out envelope
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrUnavailable, path, err)
	}
	return &out, nil
}

// isNotFound recognises the 200-with-errors shape the API uses for missing
// users and deleted posts.
func (e *envelope) isNotFound() bool {
	if len(e.Data) > 0 && string(e.Data) != "null" {
		return false
	}
	for _, apiErr := range e.Errors {
		if strings.Contains(apiErr.Type, "resource-not-found") || strings.Contains(strings.ToLower(apiErr.Title), "not found") {
			return true
		}
	}
	return len(e.Errors) > 0
}

func (c *httpClient) LookupUserByUsername(ctx context.Context, username string) (*User, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return nil, ErrNotFound
	}

	env, err := c.get(ctx, "/users/by/username/"+url.PathEscape(username), url.Values{
		"user.fields": {"created_at,name,username"},
	})
	if err != nil {
		return nil, err
	}
	if env.isNotFound() {
		return nil, ErrNotFound
	}

	var user User
	if err := json.Unmarshal(env.Data, &user); err != nil {
		return nil, fmt.Errorf("%w: decode user: %v", ErrUnavailable, err)
	}
	return &user, nil
}

func (c *httpClient) ListFollowerIDs(ctx context.Context, userID string, max int) (map[string]struct{}, error) {
	if max <= 0 || max > 1000 {
		max = 1000
	}

	env, err := c.get(ctx, "/users/"+url.PathEscape(userID)+"/followers", url.Values{
		"max_results": {strconv.Itoa(max)},
	})
	if err != nil {
		return nil, err
	}

	var users []User
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &users); err != nil {
			return nil, fmt.Errorf("%w: decode followers: %v", ErrUnavailable, err)
		}
	}

	ids := make(map[string]struct{}, len(users))
	for _, u := range users {
		ids[u.ID] = struct{}{}
	}
	return ids, nil
}

func (c *httpClient) LookupPost(ctx context.Context, postID string) (*Post, error) {
	env, err := c.get(ctx, "/tweets/"+url.PathEscape(postID), url.Values{
		"tweet.fields": {"author_id,created_at,referenced_tweets,public_metrics"},
	})
	if err != nil {
		return nil, err
	}
	if env.isNotFound() {
		return nil, ErrNotFound
	}

	var post Post
	if err := json.Unmarshal(env.Data, &post); err != nil {
		return nil, fmt.Errorf("%w: decode post: %v", ErrUnavailable, err)
	}
	return &post, nil
}

func (c *httpClient) SearchRecent(ctx context.Context, query string, maxResults int) (*SearchResult, error) {
	if maxResults < 10 || maxResults > 100 {
		maxResults = 100
	}

	env, err := c.get(ctx, "/tweets/search/recent", url.Values{
		"query":        {query},
		"max_results":  {strconv.Itoa(maxResults)},
		"expansions":   {"author_id,referenced_tweets.id"},
		"tweet.fields": {"author_id,created_at,referenced_tweets,text"},
		"user.fields":  {"created_at,username,name"},
	})
	if err != nil {
		return nil, err
	}

	result := &SearchResult{Users: make(map[string]User, len(env.Includes.Users))}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &result.Posts); err != nil {
			return nil, fmt.Errorf("%w: decode search: %v", ErrUnavailable, err)
		}
	}
	for _, u := range env.Includes.Users {
		result.Users[u.ID] = u
	}
	return result, nil
}

func (c *httpClient) UserPostsSince(ctx context.Context, userID string, since time.Time) ([]Post, error) {
	var posts []Post
	paginationToken := ""

	for page := 0; page < c.maxTimelinePgs; page++ {
		query := url.Values{
			"max_results":  {"100"},
			"start_time":   {since.UTC().Format(time.RFC3339)},
			"tweet.fields": {"created_at,referenced_tweets,public_metrics"},
		}
		if paginationToken != "" {
			query.Set("pagination_token", paginationToken)
		}

		env, err := c.get(ctx, "/users/"+url.PathEscape(userID)+"/tweets", query)
		if err != nil {
			return nil, err
		}

		if len(env.Data) > 0 && string(env.Data) != "null" {
			var pagePosts []Post
			if err := json.Unmarshal(env.Data, &pagePosts); err != nil {
				return nil, fmt.Errorf("%w: decode timeline: %v", ErrUnavailable, err)
			}
			posts = append(posts, pagePosts...)
		}

		if env.Meta.NextToken == "" {
			break
		}
		paginationToken = env.Meta.NextToken
	}

	return posts, nil
}
