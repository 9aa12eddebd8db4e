package dto

import (
	"time"

	"anoa.com/bountyboard/internal/entity"
)

// LeaderboardEntry is one ranked referrer. Position is 1-based.
type LeaderboardEntry struct {
	Handle      string           `json:"handle"`
	UserName    string           `json:"user_name"`
	TotalScore  float64          `json:"total_score"`
	Breakdown   entity.Breakdown `json:"breakdown"`
	Position    int              `json:"position"`
	LastUpdated time.Time        `json:"last_updated"`
}

type EventInfo struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

type LeaderboardResponse struct {
	Event   *EventInfo         `json:"event"`
	Entries []LeaderboardEntry `json:"data"`
}

// RebuildNotice is published on the rebuild channel and forwarded to
// websocket clients.
type RebuildNotice struct {
	Type      string    `json:"type"`
	EventID   string    `json:"event_id"`
	Entries   int       `json:"entries"`
	RebuiltAt time.Time `json:"rebuilt_at"`
}

func NewEventInfo(e *entity.BountyEvent) *EventInfo {
	if e == nil {
		return nil
	}
	return &EventInfo{ID: e.ID.String(), Name: e.Name, StartDate: e.StartDate, EndDate: e.EndDate}
}

// FromRows ranks cache rows that are already ordered by score.
func FromRows(rows []entity.LeaderboardCache) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		entries = append(entries, LeaderboardEntry{
			Handle:      row.ReferrerHandle,
			UserName:    row.UserName,
			TotalScore:  row.TotalScore,
			Breakdown:   row.Breakdown.Data(),
			Position:    i + 1,
			LastUpdated: row.LastUpdated,
		})
	}
	return entries
}
