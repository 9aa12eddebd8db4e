package main

import (
	"errors"
	"fmt"
	"testing"

	leaderboardService "anoa.com/bountyboard/internal/modules/leaderboard/service"
	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	ok := statusFor(&leaderboardService.RunSummary{Referrers: 3, Scored: 3}, nil)
	assert.True(t, ok.Success)
	assert.Equal(t, 3, ok.Summary.Scored)

	wrapped := fmt.Errorf("rebuild: %w", &leaderboardService.FatalJobError{Step: "clear_cache", Err: errors.New("timeout")})
	failed := statusFor(nil, wrapped)
	assert.False(t, failed.Success)
	assert.Equal(t, "clear_cache", failed.Step)
	assert.Contains(t, failed.Details, "timeout")

	busy := statusFor(nil, leaderboardService.ErrRunInProgress)
	assert.Empty(t, busy.Step)
	assert.Equal(t, "Failed to update leaderboard cache", busy.Error)
}
