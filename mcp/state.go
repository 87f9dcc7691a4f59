package mcp

import "sync"

// State tracks the lifetime of a line stream: how many lines are still being
// handled and whether the input side has closed.
type State struct {
	mu       sync.Mutex
	inFlight int
	closed   bool

	done     chan struct{}
	doneOnce sync.Once
}

// NewState returns the state of an open stream with nothing in flight.
func NewState() *State {
	return &State{done: make(chan struct{})}
}

// ShouldExit is the exit condition of a stream: the input has closed and no
// line is still being handled.
func ShouldExit(streamClosed bool, inFlight int) bool {
	return streamClosed && inFlight == 0
}

// Begin records that a line started being handled.
func (s *State) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight++
}

// End records that a line finished, whatever its outcome.
func (s *State) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight > 0 {
		s.inFlight--
	}
	s.check()
}

// CloseStream records that the input stream has ended.
func (s *State) CloseStream() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.check()
}

// InFlight returns the number of lines being handled.
func (s *State) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// StreamClosed reports whether the input stream has ended.
func (s *State) StreamClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ShouldExit reports whether the stream is finished.
func (s *State) ShouldExit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ShouldExit(s.closed, s.inFlight)
}

// Done is closed once ShouldExit first becomes true.
func (s *State) Done() <-chan struct{} {
	return s.done
}

// check must be called with mu held.
func (s *State) check() {
	if ShouldExit(s.closed, s.inFlight) {
		s.doneOnce.Do(func() { close(s.done) })
	}
}
