package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"anoa.com/bountyboard/internal/modules/admin/dto"
	leaderboardService "anoa.com/bountyboard/internal/modules/leaderboard/service"
	"anoa.com/bountyboard/pkg/apperror"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuth struct{ err error }

func (s stubAuth) Login(ctx context.Context, input dto.LoginInput) (*dto.AuthResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.AuthResponse{AccessToken: "tok", TokenType: "Bearer", ExpiresIn: 3600}, nil
}

type stubTrigger struct {
	summary *leaderboardService.RunSummary
	err     error
}

func (s stubTrigger) Trigger(ctx context.Context) (*leaderboardService.RunSummary, error) {
	return s.summary, s.err
}

func do(h *AdminHandler, method, path, body string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/admin/login", h.Login)
	r.POST("/api/admin/leaderboard/rebuild", h.RebuildLeaderboard)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLogin(t *testing.T) {
	w := do(NewAdminHandler(stubAuth{}, stubTrigger{}), http.MethodPost, "/api/admin/login", `{"username":"admin","password":"x"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "tok", resp.AccessToken)

	w = do(NewAdminHandler(stubAuth{}, stubTrigger{}), http.MethodPost, "/api/admin/login", `{"username":"admin"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	denied := stubAuth{err: apperror.New(http.StatusUnauthorized, "invalid credentials", apperror.ErrUnauthorized)}
	w = do(NewAdminHandler(denied, stubTrigger{}), http.MethodPost, "/api/admin/login", `{"username":"admin","password":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRebuildLeaderboard(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		h := NewAdminHandler(stubAuth{}, stubTrigger{summary: &leaderboardService.RunSummary{Referrers: 2, Scored: 2}})
		w := do(h, http.MethodPost, "/api/admin/leaderboard/rebuild", "")
		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "Leaderboard cache updated successfully", body["message"])
		assert.NotNil(t, body["summary"])
	})

	t.Run("fatal", func(t *testing.T) {
		fatalErr := &leaderboardService.FatalJobError{Step: "load_active_event", Err: errors.New("db down")}
		w := do(NewAdminHandler(stubAuth{}, stubTrigger{err: fatalErr}), http.MethodPost, "/api/admin/leaderboard/rebuild", "")
		require.Equal(t, http.StatusInternalServerError, w.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "Failed to update leaderboard cache", body["error"])
		assert.Contains(t, body["details"], "load_active_event")
	})

	t.Run("already running", func(t *testing.T) {
		w := do(NewAdminHandler(stubAuth{}, stubTrigger{err: leaderboardService.ErrRunInProgress}), http.MethodPost, "/api/admin/leaderboard/rebuild", "")
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}
