package server

import (
	"context"

	"github.com/marmos91/dittovault/pkg/metrics"
	"github.com/marmos91/dittovault/pkg/sweep"
)

// sweeperService runs the periodic sweeper until ctx is cancelled.
type sweeperService struct {
	sweeper *sweep.Sweeper
}

// SweeperService wraps a sweeper as a Service.
func SweeperService(s *sweep.Sweeper) Service {
	return &sweeperService{sweeper: s}
}

func (s *sweeperService) Name() string { return "sweeper" }

func (s *sweeperService) Serve(ctx context.Context) error {
	s.sweeper.Start()
	<-ctx.Done()
	return ctx.Err()
}

func (s *sweeperService) Stop(ctx context.Context) error {
	return s.sweeper.Stop(ctx)
}

// metricsService serves /metrics and the health probes.
type metricsService struct {
	srv *metrics.Server
}

// MetricsService wraps the metrics HTTP server as a Service.
func MetricsService(srv *metrics.Server) Service {
	return &metricsService{srv: srv}
}

func (m *metricsService) Name() string { return "metrics" }

func (m *metricsService) Serve(ctx context.Context) error {
	return m.srv.Start(ctx)
}

func (m *metricsService) Stop(ctx context.Context) error {
	return m.srv.Stop(ctx)
}
