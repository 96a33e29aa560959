// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// maxClients bounds the limiter map; idle clients are evicted past it.
const maxClients = 10000

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiter allows each client IP n requests per window.
type ipLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	limit   rate.Limit
	burst   int
	window  time.Duration
}

func newIPLimiter(n int, window time.Duration) *ipLimiter {
	return &ipLimiter{
		clients: make(map[string]*client),
		limit:   rate.Every(window / time.Duration(n)),
		burst:   n,
		window:  window,
	}
}

// reserve takes a token for ip and returns how long the caller must wait
// before retrying, zero when the request may proceed.
func (l *ipLimiter) reserve(ip string, now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.clients[ip]
	if !ok {
		if len(l.clients) >= maxClients {
			l.evict(now)
		}
		c = &client{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = now

	r := c.limiter.ReserveN(now, 1)
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return d
	}
	return 0
}

func (l *ipLimiter) evict(now time.Time) {
	for ip, c := range l.clients {
		if now.Sub(c.lastSeen) > l.window {
			delete(l.clients, ip)
		}
	}
}

// rateLimit rejects requests over the per-IP allowance with 429 and a
// Retry-After header in whole seconds.
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}
		wait := s.limiter.reserve(c.ClientIP(), time.Now())
		if wait > 0 {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody{
				Error:   "rate_limited",
				Message: "too many requests, try again later",
			})
			return
		}
		c.Next()
	}
}
