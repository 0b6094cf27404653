package api

import (
	"sync"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// RunSnapshot is a point-in-time view of the scheduler's run state.
type RunSnapshot struct {
	Running      bool
	LastStarted  time.Time
	LastFinished time.Time
	LastErr      error
	Runs         int
	Failures     int
}

// RunStatus tracks pipeline runs and mirrors the latest outcome into the
// health server: a failed run marks PipelineService NOT_SERVING until the
// next successful run.
type RunStatus struct {
	mu     sync.Mutex
	snap   RunSnapshot
	health *health.Server
}

func newRunStatus(hs *health.Server) *RunStatus {
	return &RunStatus{health: hs}
}

// RunStarted records the start of a run.
func (r *RunStatus) RunStarted(at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap.Running = true
	r.snap.LastStarted = at
}

// RunFinished records the outcome of a run.
func (r *RunStatus) RunFinished(at time.Time, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap.Running = false
	r.snap.LastFinished = at
	r.snap.LastErr = err
	r.snap.Runs++

	status := healthpb.HealthCheckResponse_SERVING
	if err != nil {
		r.snap.Failures++
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	r.health.SetServingStatus(PipelineService, status)
}

// Snapshot returns a copy of the current state.
func (r *RunStatus) Snapshot() RunSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

// Shutdown marks every service NOT_SERVING.
func (r *RunStatus) Shutdown() {
	r.health.Shutdown()
}
