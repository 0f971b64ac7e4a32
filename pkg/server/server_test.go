package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService blocks in Serve until ctx is done, or fails with serveErr.
type fakeService struct {
	name     string
	serveErr error
	started  chan struct{}

	mu      sync.Mutex
	stopped bool
	order   *[]string
}

func newFake(name string, order *[]string) *fakeService {
	return &fakeService{name: name, started: make(chan struct{}), order: order}
}

func (f *fakeService) Name() string { return f.name }

func (f *fakeService) Serve(ctx context.Context) error {
	close(f.started)
	if f.serveErr != nil {
		return f.serveErr
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeService) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	if f.order != nil {
		*f.order = append(*f.order, f.name)
	}
	return nil
}

func (f *fakeService) wasStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

func TestAddService(t *testing.T) {
	s := New(0)
	assert.Equal(t, DefaultStopTimeout, s.stopTimeout)

	require.NoError(t, s.AddService(newFake("sweeper", nil)))
	assert.Error(t, s.AddService(newFake("sweeper", nil)), "duplicate name")
	assert.Error(t, s.AddService(nil))
	assert.Len(t, s.Services(), 1)
}

func TestServe_NoServices(t *testing.T) {
	err := New(time.Second).Serve(context.Background())
	assert.Error(t, err)
}

func TestServe_StopsInReverseOrderOnCancel(t *testing.T) {
	var order []string
	a, b := newFake("a", &order), newFake("b", &order)

	s := New(time.Second)
	require.NoError(t, s.AddService(a))
	require.NoError(t, s.AddService(b))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	<-a.started
	<-b.started
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	assert.Equal(t, []string{"b", "a"}, order)

	assert.Error(t, s.Serve(context.Background()), "second Serve")
	assert.Error(t, s.AddService(newFake("late", nil)))
}

func TestServe_FailureStopsOthers(t *testing.T) {
	boom := errors.New("listen failed")
	healthy := newFake("sweeper", nil)
	failing := newFake("metrics", nil)
	failing.serveErr = boom

	s := New(time.Second)
	require.NoError(t, s.AddService(healthy))
	require.NoError(t, s.AddService(failing))

	err := s.Serve(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "metrics")
	assert.True(t, healthy.wasStopped())
}
