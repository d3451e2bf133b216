package memcache

import (
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/pipelined/memcache/meta"
)

// CircuitBreaker guards request execution on a client.
type CircuitBreaker = gobreaker.CircuitBreaker[*meta.Response]

// NewCircuitBreakerConfig returns a constructor for Config.NewCircuitBreaker.
// This is a helper for common use cases: the breaker trips once at least
// 3 requests have been seen and 60% of them failed.
func NewCircuitBreakerConfig(maxRequests uint32, interval, timeout time.Duration) func() *CircuitBreaker {
	return func() *CircuitBreaker {
		settings := gobreaker.Settings{
			Name:        "memcache",
			MaxRequests: maxRequests,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
		}
		return gobreaker.NewCircuitBreaker[*meta.Response](settings)
	}
}
