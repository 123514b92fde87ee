package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/metrics"
)

// Fleet runs one Supervisor per camera.
//
// The pipelines are independent except for their fate: the first one to
// fail cancels all others and Run returns its error.
type Fleet struct {
	supervisors []*Supervisor
}

// NewFleet groups supervisors.
func NewFleet(supervisors ...*Supervisor) *Fleet {
	return &Fleet{supervisors: supervisors}
}

// Run blocks until every pipeline has stopped or one has failed.
func (f *Fleet) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range f.supervisors {
		g.Go(func() error {
			return s.Run(gctx)
		})
	}
	return g.Wait()
}

// Supervisors returns the managed supervisors.
func (f *Fleet) Supervisors() []*Supervisor {
	return f.supervisors
}

// Status implements metrics.StatusProvider.
func (f *Fleet) Status() []metrics.CameraStatus {
	out := make([]metrics.CameraStatus, 0, len(f.supervisors))
	for _, s := range f.supervisors {
		out = append(out, s.Status())
	}
	return out
}
