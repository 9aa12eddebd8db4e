package http

import (
	"net/http"
	"strconv"

	searchService "anoa.com/bountyboard/internal/modules/search/service"
	"anoa.com/bountyboard/pkg/response"
	"github.com/gin-gonic/gin"
)

type SearchHandler struct {
	service searchService.LeaderboardSearch
}

// NewSearchHandler accepts a nil service when search is not configured.
func NewSearchHandler(service searchService.LeaderboardSearch) *SearchHandler {
	return &SearchHandler{service: service}
}

func (h *SearchHandler) Search(c *gin.Context) {
	if h.service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search is not available"})
		return
	}

	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	result, err := h.service.Search(c.Request.Context(), query, limit)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
