package http

import (
	"context"
	"errors"
	"net/http"

	"anoa.com/bountyboard/internal/modules/admin/dto"
	adminService "anoa.com/bountyboard/internal/modules/admin/service"
	leaderboardService "anoa.com/bountyboard/internal/modules/leaderboard/service"
	"anoa.com/bountyboard/pkg/logger"
	"anoa.com/bountyboard/pkg/response"
	"anoa.com/bountyboard/pkg/validator"
	"github.com/gin-gonic/gin"
)

// RebuildTrigger runs one leaderboard rebuild on demand.
type RebuildTrigger interface {
	Trigger(ctx context.Context) (*leaderboardService.RunSummary, error)
}

type AdminHandler struct {
	auth    adminService.AuthService
	rebuild RebuildTrigger
}

func NewAdminHandler(auth adminService.AuthService, rebuild RebuildTrigger) *AdminHandler {
	return &AdminHandler{auth: auth, rebuild: rebuild}
}

func (h *AdminHandler) Login(c *gin.Context) {
	var input dto.LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	resp, err := h.auth.Login(c.Request.Context(), input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *AdminHandler) RebuildLeaderboard(c *gin.Context) {
	summary, err := h.rebuild.Trigger(c.Request.Context())
	if errors.Is(err, leaderboardService.ErrRunInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": "Failed to update leaderboard cache", "details": err.Error()})
		return
	}
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"component": "admin",
			"admin":     c.GetString("admin"),
		}).Errorf("manual leaderboard rebuild failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update leaderboard cache", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Leaderboard cache updated successfully",
		"summary": summary,
	})
}
