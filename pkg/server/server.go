// Package server runs the long-lived parts of a vault process.
//
// The engine itself is a library and has no lifecycle. What runs in the
// background around it (the sweeper, the metrics and health endpoint) is
// expressed as a Service and handed to a VaultServer, which starts every
// service, waits for a shutdown signal or a failure, and stops them in
// reverse registration order.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittovault/internal/logger"
)

// DefaultStopTimeout bounds the shutdown of all services.
const DefaultStopTimeout = 30 * time.Second

// Service is a background component with a blocking Serve.
//
// Serve runs until ctx is cancelled or the service fails. Stop asks a
// running service to finish and may be called even if Serve already
// returned.
type Service interface {
	Name() string
	Serve(ctx context.Context) error
	Stop(ctx context.Context) error
}

// VaultServer manages the lifecycle of the services around one engine.
//
// Thread safety:
// AddService may be called concurrently before Serve. Serve may only be
// called once.
type VaultServer struct {
	services    []Service
	stopTimeout time.Duration

	mu     sync.Mutex
	served bool
}

// New returns an empty server. stopTimeout <= 0 uses DefaultStopTimeout.
func New(stopTimeout time.Duration) *VaultServer {
	if stopTimeout <= 0 {
		stopTimeout = DefaultStopTimeout
	}
	return &VaultServer{
		services:    make([]Service, 0, 2),
		stopTimeout: stopTimeout,
	}
}

// AddService registers s. Names must be unique.
func (s *VaultServer) AddService(svc Service) error {
	if svc == nil {
		return errors.New("service cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		return errors.New("cannot add service after Serve has been called")
	}
	for _, existing := range s.services {
		if existing.Name() == svc.Name() {
			return fmt.Errorf("service %s already registered", svc.Name())
		}
	}

	s.services = append(s.services, svc)
	logger.Debug("Registered %s service", svc.Name())
	return nil
}

// Services returns a snapshot of the registered services.
func (s *VaultServer) Services() []Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Service, len(s.services))
	copy(out, s.services)
	return out
}

// Serve starts every service and blocks until ctx is cancelled or one of
// them fails. All services are then stopped and waited for.
//
// Returns ctx.Err() on a signalled shutdown, or the first service failure.
func (s *VaultServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return errors.New("serve has already been called on this server")
	}
	s.served = true
	if len(s.services) == 0 {
		s.mu.Unlock()
		return errors.New("no services registered; call AddService before Serve")
	}
	services := make([]Service, len(s.services))
	copy(services, s.services)
	s.mu.Unlock()

	logger.Info("Starting vault server with %d service(s)", len(services))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so a failing service never blocks after shutdown began
	errChan := make(chan serviceError, len(services))

	var wg sync.WaitGroup
	for _, svc := range services {
		wg.Add(1)
		go func(svc Service) {
			defer wg.Done()

			name := svc.Name()
			if err := svc.Serve(runCtx); err != nil {
				if !errors.Is(err, context.Canceled) && runCtx.Err() == nil {
					logger.Error("%s service failed: %v", name, err)
					errChan <- serviceError{name: name, err: err}
					return
				}
			}
			logger.Debug("%s service stopped", name)
		}(svc)
	}

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		shutdownErr = ctx.Err()
	case se := <-errChan:
		logger.Error("Service %s failed: %v - stopping all services", se.name, se.err)
		shutdownErr = fmt.Errorf("%s service error: %w", se.name, se.err)
	}

	cancel()
	s.stopAll(services)
	wg.Wait()

	logger.Info("Vault server stopped")
	return shutdownErr
}

type serviceError struct {
	name string
	err  error
}

// stopAll stops services in reverse registration order within the stop
// timeout. Errors are logged and do not prevent stopping the rest.
func (s *VaultServer) stopAll(services []Service) {
	ctx, cancel := context.WithTimeout(context.Background(), s.stopTimeout)
	defer cancel()

	for i := len(services) - 1; i >= 0; i-- {
		svc := services[i]
		if err := svc.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s service: %v", svc.Name(), err)
		}
	}
}
