// Package metrics defines observability hooks for build runs.
package metrics

import "time"

// Recorder defines observability hooks for build and version metrics.
// Implementations may forward to Prometheus. All methods must be safe on the
// NoopRecorder so injection stays optional.
type Recorder interface {
	ObserveBuildDuration(d time.Duration)
	ObserveVersionBuildDuration(version string, d time.Duration, success bool)
	IncBuildOutcome(outcome string) // outcome: success|failed
	ObserveReleaseFetchDuration(d time.Duration)
	SetVersionsBuilt(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuildDuration(time.Duration)                        {}
func (NoopRecorder) ObserveVersionBuildDuration(string, time.Duration, bool)   {}
func (NoopRecorder) IncBuildOutcome(string)                                    {}
func (NoopRecorder) ObserveReleaseFetchDuration(time.Duration)                 {}
func (NoopRecorder) SetVersionsBuilt(int)                                      {}
