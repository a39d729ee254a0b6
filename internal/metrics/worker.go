package metrics

import "time"

// The worker calls JobStarted once per claimed job and then exactly one
// of JobCompleted, JobFailed or JobRetried, which keeps the in-flight
// gauge balanced.

func JobStarted(jobType string) {
	JobsInFlight.Inc()
}

func JobCompleted(jobType string, duration time.Duration) {
	JobsInFlight.Dec()
	JobsTotal.WithLabelValues(jobType, "completed").Inc()
	JobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}

func JobFailed(jobType string) {
	JobsInFlight.Dec()
	JobsTotal.WithLabelValues(jobType, "failed").Inc()
}

func JobRetried(jobType string) {
	JobsInFlight.Dec()
	JobRetriesTotal.WithLabelValues(jobType).Inc()
}
