package service

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"anoa.com/bountyboard/internal/entity"
	"anoa.com/bountyboard/pkg/handle"
	"anoa.com/bountyboard/pkg/logger"
	"github.com/meilisearch/meilisearch-go"
	"github.com/microcosm-cc/bluemonday"
)

const IndexName = "leaderboard"

type ActiveEventFinder interface {
	FindActive(ctx context.Context) (*entity.BountyEvent, error)
}

// LeaderboardSearch keeps a Meilisearch index of the rebuilt board and
// answers handle / display-name queries against the active event.
type LeaderboardSearch interface {
	Name() string
	AfterRebuild(ctx context.Context, event *entity.BountyEvent, rows []entity.LeaderboardCache) error
	Search(ctx context.Context, query string, limit int) (*SearchResult, error)
}

type LeaderboardDoc struct {
	ID          string           `json:"id"`
	EventID     string           `json:"event_id"`
	Handle      string           `json:"handle"`
	UserName    string           `json:"user_name"`
	TotalScore  float64          `json:"total_score"`
	Position    int              `json:"position"`
	Breakdown   entity.Breakdown `json:"breakdown"`
	LastUpdated int64            `json:"last_updated"`
}

type SearchResult struct {
	Query string           `json:"query"`
	Hits  []LeaderboardDoc `json:"hits"`
	Total int64            `json:"total"`
}

type meiliLeaderboardSearch struct {
	client    meilisearch.ServiceManager
	events    ActiveEventFinder
	sanitizer *bluemonday.Policy
}

func NewLeaderboardSearch(client meilisearch.ServiceManager, events ActiveEventFinder) LeaderboardSearch {
	s := &meiliLeaderboardSearch{
		client:    client,
		events:    events,
		sanitizer: bluemonday.StrictPolicy(),
	}
	s.initIndex()
	return s
}

func (s *meiliLeaderboardSearch) initIndex() {
	log := logger.WithComponent("search")

	filterable := []any{"event_id"}
	if _, err := s.client.Index(IndexName).UpdateFilterableAttributes(&filterable); err != nil {
		log.Warnf("failed to update leaderboard filterable attributes: %v", err)
	}

	sortable := []string{"total_score", "position"}
	if _, err := s.client.Index(IndexName).UpdateSortableAttributes(&sortable); err != nil {
		log.Warnf("failed to update leaderboard sortable attributes: %v", err)
	}
}

func (s *meiliLeaderboardSearch) Name() string { return "search" }

// DocID is stable per (event, handle) so each rebuild overwrites in place.
func DocID(eventID, referrer string) string {
	return eventID + "_" + handle.Username(referrer)
}

func (s *meiliLeaderboardSearch) cleanName(name string) string {
	return strings.Join(strings.Fields(html.UnescapeString(s.sanitizer.Sanitize(name))), " ")
}

// BuildDocs converts score-ordered cache rows into index documents.
func (s *meiliLeaderboardSearch) BuildDocs(event *entity.BountyEvent, rows []entity.LeaderboardCache) []LeaderboardDoc {
	docs := make([]LeaderboardDoc, 0, len(rows))
	for i, row := range rows {
		docs = append(docs, LeaderboardDoc{
			ID:          DocID(event.ID.String(), row.ReferrerHandle),
			EventID:     event.ID.String(),
			Handle:      row.ReferrerHandle,
			UserName:    s.cleanName(row.UserName),
			TotalScore:  row.TotalScore,
			Position:    i + 1,
			Breakdown:   row.Breakdown.Data(),
			LastUpdated: row.LastUpdated.Unix(),
		})
	}
	return docs
}

func (s *meiliLeaderboardSearch) AfterRebuild(ctx context.Context, event *entity.BountyEvent, rows []entity.LeaderboardCache) error {
	docs := s.BuildDocs(event, rows)
	if len(docs) == 0 {
		return nil
	}

	task, err := s.client.Index(IndexName).AddDocuments(docs, strPtr("id"))
	if err != nil {
		return fmt.Errorf("index leaderboard: %w", err)
	}
	logger.WithComponent("search").Infof("queued %d leaderboard documents, task id: %d", len(docs), task.TaskUID)
	return nil
}

func (s *meiliLeaderboardSearch) Search(ctx context.Context, query string, limit int) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	result := &SearchResult{Query: query, Hits: []LeaderboardDoc{}}

	event, err := s.events.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active event: %w", err)
	}
	if event == nil {
		return result, nil
	}

	raw, err := s.client.Index(IndexName).SearchRaw(strings.TrimPrefix(query, handle.Prefix), &meilisearch.SearchRequest{
		Limit:  int64(limit),
		Filter: fmt.Sprintf("event_id = %q", event.ID.String()),
		Sort:   []string{"total_score:desc"},
	})
	if err != nil {
		return nil, fmt.Errorf("search leaderboard: %w", err)
	}

	hits, total, err := ParseHits(*raw)
	if err != nil {
		return nil, err
	}
	result.Hits = hits
	result.Total = total
	return result, nil
}

// ParseHits decodes a raw Meilisearch search response.
func ParseHits(raw []byte) ([]LeaderboardDoc, int64, error) {
	var resp struct {
		Hits               []LeaderboardDoc `json:"hits"`
		EstimatedTotalHits int64            `json:"estimatedTotalHits"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, 0, fmt.Errorf("decode search response: %w", err)
	}
	if resp.Hits == nil {
		resp.Hits = []LeaderboardDoc{}
	}
	return resp.Hits, resp.EstimatedTotalHits, nil
}

func strPtr(s string) *string {
	return &s
}
