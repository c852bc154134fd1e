package tether

import "time"

// MetricsProvider allows integration with metrics systems like Prometheus, StatsD, etc.
// Implement this interface to receive callbacks on key document events.
type MetricsProvider interface {
	// OnChangeDetected is called when a mutation is observed on the tree.
	OnChangeDetected()

	// OnSaveSuccess is called when the tree is durably written.
	// Duration is the time taken to encode and write.
	OnSaveSuccess(duration time.Duration)

	// OnSaveFailure is called when a save fails at any stage.
	// Stage indicates where the failure occurred: "encode" or "write".
	OnSaveFailure(stage string, duration time.Duration)

	// OnStateChange is called when the document transitions between states.
	OnStateChange(from, to State)
}

// NoOpMetricsProvider is a no-op implementation of MetricsProvider.
// Use this as an embedded type to implement only the methods you need.
type NoOpMetricsProvider struct{}

func (NoOpMetricsProvider) OnChangeDetected()                       {}
func (NoOpMetricsProvider) OnSaveSuccess(_ time.Duration)           {}
func (NoOpMetricsProvider) OnSaveFailure(_ string, _ time.Duration) {}
func (NoOpMetricsProvider) OnStateChange(_, _ State)                {}
