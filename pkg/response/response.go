package response

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"anoa.com/bountyboard/pkg/apperror"
	"anoa.com/bountyboard/pkg/logger"
	"github.com/gin-gonic/gin"
)

// ResponseError standardized error response
func ResponseError(c *gin.Context, err error) {
	code := apperror.MapErrorToStatus(err)

	message := err.Error()
	var appErr *apperror.AppError
	isAppErr := errors.As(err, &appErr)
	if isAppErr && appErr.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(appErr.RetryAfter.Seconds()))))
	}
	if !isAppErr && code == http.StatusInternalServerError {
		// Unclassified errors never leak internals to the client.
		message = "Something went wrong. Please try again later."
	}

	if code == http.StatusInternalServerError {
		logger.WithFields(map[string]interface{}{
			"path":   c.FullPath(),
			"method": c.Request.Method,
		}).Errorf("[Internal Error]: %v", err)
	}

	c.JSON(code, gin.H{"error": message})
}

// ClientIP resolves the caller address from proxy headers: the first
// X-Forwarded-For entry, then X-Real-IP, then CF-Connecting-IP.
func ClientIP(c *gin.Context) string {
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(c.GetHeader("X-Real-IP")); realIP != "" {
		return realIP
	}
	if cfIP := strings.TrimSpace(c.GetHeader("CF-Connecting-IP")); cfIP != "" {
		return cfIP
	}
	return "unknown"
}
