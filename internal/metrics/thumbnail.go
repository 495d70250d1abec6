package metrics

import "time"

// CacheHit records a thumbnail served from cache
func CacheHit() { CacheLookups.WithLabelValues("hit").Inc() }

// CacheMiss records a lookup that fell through to the creator
func CacheMiss() { CacheLookups.WithLabelValues("miss").Inc() }

// CacheError records a lookup that failed and was treated as a miss
func CacheError() { CacheLookups.WithLabelValues("error").Inc() }

// ThumbnailCreated records a successful render
func ThumbnailCreated(mode string, duration time.Duration) {
	ThumbnailsCreated.WithLabelValues(mode).Inc()
	TransformDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// FallbackUsed records a step down the fallback chain
func FallbackUsed(stage string) {
	Fallbacks.WithLabelValues(stage).Inc()
}

// StaticSave records the outcome of a static save
func StaticSave(result string) {
	StaticSaves.WithLabelValues(result).Inc()
}
