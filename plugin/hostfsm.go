package plugin

import (
	"sync"

	"github.com/dqcsim/dqcsim-go/arb"
	dqerrors "github.com/dqcsim/dqcsim-go/errors"
)

// frontendState implements the host-interface state machine spec §4.3
// describes: an Idle/Running FSM shared between the host, calling
// start/wait/send/recv/yield, and the frontend's own run callback,
// calling send/recv, with the "who is blocked" deadlock detection
// spec §5 requires.
type frontendState struct {
	mu   sync.Mutex
	cond *sync.Cond

	running bool

	inbound  []*arb.ArbData // host -> run callback
	outbound []*arb.ArbData // run callback -> host

	runBlockedOnRecv bool
	hostBlocked      bool

	runDone   bool
	runResult *arb.ArbData
	runErr    error

	deadlock    bool
	suspendGen  int
}

func newFrontendState() *frontendState {
	s := &frontendState{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// checkDeadlock must be called with mu held after changing a blocking
// flag or queue. It implements the global "both sides blocked, both
// queues empty" condition.
func (s *frontendState) checkDeadlock() {
	if s.deadlock {
		return
	}
	if s.hostBlocked && s.runBlockedOnRecv && len(s.inbound) == 0 {
		s.deadlock = true
		s.cond.Broadcast()
	}
}

const deadlockHostMsg = "Deadlock: accelerator is blocked on recv() while we are expecting it to return"
const deadlockRunMsg = "Deadlock: host is blocked on wait() while the accelerator is expecting a message"

// start begins running fn in a new goroutine, transitioning Idle ->
// Running. Returns an error if already running.
func (s *frontendState) start(fn func() (*arb.ArbData, error)) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return dqerrors.InvalidOperation("frontend is already running")
	}
	s.running = true
	s.runDone = false
	s.runResult = nil
	s.runErr = nil
	s.mu.Unlock()

	go func() {
		result, err := fn()
		s.mu.Lock()
		s.runDone = true
		s.running = false
		s.runResult = result
		s.runErr = err
		s.suspendGen++
		s.cond.Broadcast()
		s.mu.Unlock()
	}()
	return nil
}

// wait blocks until the run callback returns (or a deadlock is
// detected), per the Running-state Wait command.
func (s *frontendState) wait() (*arb.ArbData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running && !s.runDone {
		return nil, dqerrors.InvalidOperation("frontend is not running")
	}

	s.hostBlocked = true
	s.checkDeadlock()
	for !s.runDone && !s.deadlock {
		s.cond.Wait()
	}
	s.hostBlocked = false

	if s.deadlock {
		return nil, dqerrors.DeadlockError("%s", trimDeadlockPrefix(deadlockHostMsg))
	}
	return s.runResult, s.runErr
}

// hostSend enqueues data for the run callback's next recv.
func (s *frontendState) hostSend(data *arb.ArbData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inbound = append(s.inbound, data)
	s.cond.Broadcast()
	return nil
}

// hostRecv pops the next item the run callback sent, blocking (and
// participating in deadlock detection) if the queue is empty.
func (s *frontendState) hostRecv() (*arb.ArbData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.outbound) > 0 {
		return s.popOutboundLocked(), nil
	}

	s.hostBlocked = true
	s.checkDeadlock()
	for len(s.outbound) == 0 && !s.deadlock {
		s.cond.Wait()
	}
	s.hostBlocked = false

	if len(s.outbound) > 0 {
		return s.popOutboundLocked(), nil
	}
	return nil, dqerrors.DeadlockError("%s", trimDeadlockPrefix(deadlockHostMsg))
}

func (s *frontendState) popOutboundLocked() *arb.ArbData {
	v := s.outbound[0]
	s.outbound = s.outbound[1:]
	return v
}

// yield blocks until the run callback next suspends (on recv, or on
// return).
func (s *frontendState) yield() {
	s.mu.Lock()
	defer s.mu.Unlock()
	startGen := s.suspendGen
	for s.suspendGen == startGen && s.running {
		s.cond.Wait()
	}
}

// runSend is called from inside the run callback.
func (s *frontendState) runSend(data *arb.ArbData) {
	s.mu.Lock()
	s.outbound = append(s.outbound, data)
	s.cond.Broadcast()
	s.mu.Unlock()
}

// runRecv is called from inside the run callback; it blocks until the
// host sends something, or the deadlock condition fires, in which
// case it returns an error to the callback (which is then free to
// propagate it and return, as scenario S4 describes).
func (s *frontendState) runRecv() (*arb.ArbData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.inbound) > 0 {
		return s.popInboundLocked(), nil
	}

	s.runBlockedOnRecv = true
	s.suspendGen++
	s.cond.Broadcast()
	s.checkDeadlock()
	for len(s.inbound) == 0 && !s.deadlock {
		s.cond.Wait()
	}
	s.runBlockedOnRecv = false

	if len(s.inbound) > 0 {
		return s.popInboundLocked(), nil
	}
	return nil, dqerrors.DeadlockError("%s", trimDeadlockPrefix(deadlockRunMsg))
}

func (s *frontendState) popInboundLocked() *arb.ArbData {
	v := s.inbound[0]
	s.inbound = s.inbound[1:]
	return v
}

// trimDeadlockPrefix strips the "Deadlock: " prefix before handing the
// text to errors.DeadlockError, which re-adds it.
func trimDeadlockPrefix(msg string) string {
	const prefix = "Deadlock: "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}
