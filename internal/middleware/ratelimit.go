package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"github.com/anshumansp/Business-Consultant-Agent/internal/models"
)

// Store counts hits per key inside a fixed window.
type Store interface {
	// Incr records a hit for key and returns the count so far in the current
	// window together with the time left until the window resets.
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

type visitor struct {
	count    int64
	resetsAt time.Time
}

// MemoryStore keeps counters in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	now      func() time.Time
	stop     chan struct{}
	once     sync.Once
}

// NewMemoryStore starts a store whose expired entries are swept every
// cleanup interval. Call Close to stop the sweeper.
func NewMemoryStore(cleanup time.Duration) *MemoryStore {
	s := &MemoryStore{
		visitors: make(map[string]*visitor),
		now:      time.Now,
		stop:     make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(cleanup)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stop:
				return
			}
		}
	}()

	return s
}

func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	v, ok := s.visitors[key]
	if !ok || !now.Before(v.resetsAt) {
		v = &visitor{resetsAt: now.Add(window)}
		s.visitors[key] = v
	}
	v.count++
	return v.count, v.resetsAt.Sub(now), nil
}

func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, v := range s.visitors {
		if !now.Before(v.resetsAt) {
			delete(s.visitors, k)
		}
	}
}

// Close stops the cleanup goroutine.
func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.stop) })
}

// RedisStore shares counters between relay instances.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	k := s.prefix + key

	count, err := s.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := s.client.PExpire(ctx, k, window).Err(); err != nil {
			return 0, 0, err
		}
		return count, window, nil
	}

	left, err := s.client.PTTL(ctx, k).Result()
	if err != nil {
		return 0, 0, err
	}
	if left < 0 {
		// Key lost its expiry; start the window again.
		if err := s.client.PExpire(ctx, k, window).Err(); err != nil {
			return 0, 0, err
		}
		left = window
	}
	return count, left, nil
}

// RateLimiter caps requests per client IP.
type RateLimiter struct {
	store  Store
	limit  int64
	window time.Duration
	logger *log.Logger
}

func NewRateLimiter(store Store, limit int, window time.Duration, logger *log.Logger) *RateLimiter {
	return &RateLimiter{
		store:  store,
		limit:  int64(limit),
		window: window,
		logger: logger,
	}
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		count, left, err := rl.store.Incr(r.Context(), ip, rl.window)
		if err != nil {
			// Fail open.
			rl.logger.Warn("rate limit store unavailable", "err", err, "request_id", GetRequestID(r.Context()))
			next.ServeHTTP(w, r)
			return
		}

		if count > rl.limit {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(left.Seconds()))))
			writeError(w, http.StatusTooManyRequests, models.ErrorBody{Message: "Too many requests. Please try again later."})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
