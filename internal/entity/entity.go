package entity

// All lists the models managed by AutoMigrate.
func All() []any {
	return []any{
		&BountyEvent{},
		&BetaSignup{},
		&ProcessedComment{},
		&LeaderboardCache{},
	}
}
