package http

import (
	"net/http"
	"strconv"

	leaderboardService "anoa.com/bountyboard/internal/modules/leaderboard/service"
	"anoa.com/bountyboard/pkg/logger"
	"anoa.com/bountyboard/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

type LeaderboardHandler struct {
	reader      leaderboardService.LeaderboardReader
	redisClient *redis.Client
	upgrader    websocket.Upgrader
}

func NewLeaderboardHandler(reader leaderboardService.LeaderboardReader, redisClient *redis.Client, checkOrigin func(r *http.Request) bool) *LeaderboardHandler {
	return &LeaderboardHandler{
		reader:      reader,
		redisClient: redisClient,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(leaderboardService.DefaultLimit)))

	board, err := h.reader.GetLeaderboard(c.Request.Context(), limit)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, board)
}

// HandleWebSocket forwards rebuild notices from the redis channel until the
// client disconnects.
func (h *LeaderboardHandler) HandleWebSocket(c *gin.Context) {
	if h.redisClient == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live updates are not available"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.WithComponent("leaderboard").Warnf("failed to upgrade websocket: %v", err)
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	pubsub := h.redisClient.Subscribe(ctx, leaderboardService.NotifyChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		logger.WithComponent("leaderboard").Errorf("failed to subscribe to %s: %v", leaderboardService.NotifyChannel, err)
		return
	}
	ch := pubsub.Channel()

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				return
			}
		case <-clientClosed:
			return
		case <-ctx.Done():
			return
		}
	}
}
