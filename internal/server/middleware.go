package server

import (
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/railzwaylabs/parkway/internal/clock"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const simulatedTimeHeader = "X-Simulated-Time"

// clientLimiter keeps one token bucket per client IP.
type clientLimiter struct {
	mu      sync.Mutex
	clients map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

func newClientLimiter(perSecond float64, burst int) *clientLimiter {
	return &clientLimiter{
		clients: make(map[string]*rate.Limiter),
		limit:   rate.Limit(perSecond),
		burst:   burst,
	}
}

func (l *clientLimiter) Allow(client string) bool {
	l.mu.Lock()
	limiter, ok := l.clients[client]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.clients[client] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}

func (s *Server) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter != nil && !s.limiter.Allow(c.ClientIP()) {
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

// SimulatedTime moves the request onto a simulated clock when the operator
// has allowed it. The header is ignored otherwise.
func (s *Server) SimulatedTime() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(simulatedTimeHeader))
		if raw == "" || !s.cfg.Clock.AllowSimulation {
			c.Next()
			return
		}

		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			AbortWithError(c, ErrInvalidSimulated)
			return
		}
		c.Request = c.Request.WithContext(clock.WithSimulatedTime(c.Request.Context(), t))
		c.Next()
	}
}

func (s *Server) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(started)),
			zap.String("client_ip", c.ClientIP()),
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate); len(errs) > 0 {
			s.log.Error("request failed", append(fields, zap.String("error", errs.String()))...)
			return
		}
		s.log.Debug("request", fields...)
	}
}
