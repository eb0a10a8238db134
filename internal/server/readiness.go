package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/railzwaylabs/parkway/internal/config"
)

type ReadinessState string

const (
	ReadinessStateReady    ReadinessState = "ready"
	ReadinessStateNotReady ReadinessState = "not_ready"
	ReadinessStateOptional ReadinessState = "optional"
)

type ReadinessIssue struct {
	ID       string            `json:"id"`
	Status   ReadinessState    `json:"status"`
	Evidence map[string]string `json:"evidence,omitempty"`
}

type ReadinessResponse struct {
	SystemState ReadinessState   `json:"system_state"`
	Issues      []ReadinessIssue `json:"issues"`
}

const readinessTimeout = 2 * time.Second

// GetHealth reports liveness only.
func (s *Server) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetReadiness checks the stores the parking sequences depend on.
func (s *Server) GetReadiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	issues := make([]ReadinessIssue, 0, 2)
	ready := true

	dbIssue := ReadinessIssue{ID: "database", Status: ReadinessStateReady}
	if err := s.pingDatabase(ctx); err != nil {
		ready = false
		dbIssue.Status = ReadinessStateNotReady
		dbIssue.Evidence = map[string]string{"error": err.Error()}
	}
	issues = append(issues, dbIssue)

	redisRequired := s.cfg.Capacity.Backend == config.CapacityBackendRedis ||
		s.cfg.Settlement.Sink == config.SettlementSinkRedis
	redisIssue := ReadinessIssue{ID: "redis", Status: ReadinessStateReady}
	switch {
	case s.redis == nil && !redisRequired:
		redisIssue.Status = ReadinessStateOptional
	case s.redis == nil:
		ready = false
		redisIssue.Status = ReadinessStateNotReady
		redisIssue.Evidence = map[string]string{"error": "redis not configured"}
	default:
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisIssue.Status = ReadinessStateNotReady
			redisIssue.Evidence = map[string]string{"error": err.Error()}
			if redisRequired {
				ready = false
			}
		}
	}
	issues = append(issues, redisIssue)

	resp := ReadinessResponse{SystemState: ReadinessStateReady, Issues: issues}
	status := http.StatusOK
	if !ready {
		resp.SystemState = ReadinessStateNotReady
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

func (s *Server) pingDatabase(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
