package ingest

import (
	"context"
	"sync"
)

// BotStatus is a snapshot of the supervised loop.
type BotStatus struct {
	Running   bool   `json:"running"`
	State     string `json:"state"`
	Cursor    int64  `json:"cursor"`
	LastError string `json:"last_error,omitempty"`
}

// BotSupervisor owns one BotLoop's lifecycle. Start is idempotent while the
// loop runs; Stop cancels it and waits for the goroutine to exit.
type BotSupervisor struct {
	loop *BotLoop

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr error
}

func NewBotSupervisor(loop *BotLoop) *BotSupervisor {
	return &BotSupervisor{loop: loop}
}

// Start launches the loop under ctx. It reports false when the loop is
// already running. ctx should outlive the caller's request.
func (s *BotSupervisor) Start(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runningLocked() {
		return false
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done, s.lastErr = cancel, done, nil

	go func() {
		defer close(done)
		err := s.loop.Run(ctx)
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
	}()
	return true
}

// Stop cancels the loop and blocks until it has exited. Stopping a stopped
// supervisor is a no-op.
func (s *BotSupervisor) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Status reports whether the loop runs, its state and cursor.
func (s *BotSupervisor) Status() BotStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := BotStatus{
		Running: s.runningLocked(),
		State:   s.loop.State().String(),
		Cursor:  s.loop.CursorValue(),
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

func (s *BotSupervisor) runningLocked() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}
