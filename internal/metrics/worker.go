package metrics

import "time"

// JobQueued records a job entering the queue
func JobQueued() {
	JobQueueDepth.Inc()
}

// JobStarted records a job leaving the queue
func JobStarted(jobType string) {
	JobQueueDepth.Dec()
}

// JobCompleted records a successful job completion
func JobCompleted(jobType string, duration time.Duration) {
	JobsTotal.WithLabelValues(jobType, "completed").Inc()
	JobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}

// JobFailed records a job failure
func JobFailed(jobType string) {
	JobsTotal.WithLabelValues(jobType, "failed").Inc()
}

// JobDropped records a job rejected because the queue was full
func JobDropped(jobType string) {
	JobsTotal.WithLabelValues(jobType, "dropped").Inc()
}

// JobRetried records a job retry attempt
func JobRetried(jobType string) {
	JobRetriesTotal.WithLabelValues(jobType).Inc()
}
